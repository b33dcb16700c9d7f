package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Service       ServiceConfig       `mapstructure:"service"`
	Databases     DatabasesConfig     `mapstructure:"databases"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Jobs          JobsConfig          `mapstructure:"jobs"`
	Cache         CacheConfig         `mapstructure:"cache"`
}

type ServiceConfig struct {
	Port     string `mapstructure:"port"`
	Timezone string `mapstructure:"timezone"`
}

type DatabasesConfig struct {
	SQL   SQLConfig   `mapstructure:"sql"`
	Redis RedisConfig `mapstructure:"redis"`
}

type SQLConfig struct {
	Host             string `mapstructure:"host"`
	Port             string `mapstructure:"port"`
	Username         string `mapstructure:"username"`
	Password         string `mapstructure:"password"`
	Database         string `mapstructure:"database"`
	ConnectionString string `mapstructure:"connection_string"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database int    `mapstructure:"database"`
}

type NotificationsConfig struct {
	Email  EmailConfig  `mapstructure:"email"`
	SMS    SMSConfig    `mapstructure:"sms"`
	Wechat WechatConfig `mapstructure:"wechat"`
}

type EmailConfig struct {
	Region      string `mapstructure:"region"`
	FromAddress string `mapstructure:"fromAddress"`
}

type SMSConfig struct {
	BaseURL string `mapstructure:"baseUrl"`
	APIKey  string `mapstructure:"apiKey"`
	// APIKeySecretID, when set, overrides APIKey with a value fetched from
	// AWS Secrets Manager at startup.
	APIKeySecretID string `mapstructure:"apiKeySecretId"`
	Region         string `mapstructure:"region"`
}

type WechatConfig struct {
	BaseURL    string `mapstructure:"baseUrl"`
	TemplateID string `mapstructure:"templateId"`
	APIKey     string `mapstructure:"apiKey"`
}

// JobsConfig holds the cron specs for the scheduled jobs. All specs use
// 6-field (seconds-resolution) syntax.
type JobsConfig struct {
	PrepareSpec         string `mapstructure:"prepareSpec"`
	SendSpec            string `mapstructure:"sendSpec"`
	MonthlyBackfillSpec string `mapstructure:"monthlyBackfillSpec"`
	CleanupSpec         string `mapstructure:"cleanupSpec"`

	DispatchWorkers      int           `mapstructure:"dispatchWorkers"`
	TickTimeout          time.Duration `mapstructure:"tickTimeout"`
	DispatchTimeout      time.Duration `mapstructure:"dispatchTimeout"`
	HistoryRetentionDays int           `mapstructure:"historyRetentionDays"`
}

type CacheConfig struct {
	MonthlyTTL  time.Duration `mapstructure:"monthlyTTL"`
	UpcomingTTL time.Duration `mapstructure:"upcomingTTL"`
}

func LoadConfig(path string) (*Config, error) {
	var cfg Config

	viper.AddConfigPath(path)
	viper.SetConfigName("appsettings")
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}
	err = viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("service.port", "8000")
	viper.SetDefault("service.timezone", "Asia/Shanghai")

	// Prepare stages the next minute's reminders half a tick early; send
	// fires on the minute boundary.
	viper.SetDefault("jobs.prepareSpec", "30 * * * * *")
	viper.SetDefault("jobs.sendSpec", "0 * * * * *")
	viper.SetDefault("jobs.monthlyBackfillSpec", "0 0 2 1 * *")
	viper.SetDefault("jobs.cleanupSpec", "0 30 3 * * *")
	viper.SetDefault("jobs.dispatchWorkers", 5)
	viper.SetDefault("jobs.tickTimeout", 30*time.Second)
	viper.SetDefault("jobs.dispatchTimeout", 10*time.Second)
	viper.SetDefault("jobs.historyRetentionDays", 90)

	viper.SetDefault("cache.monthlyTTL", 7*24*time.Hour)
	viper.SetDefault("cache.upcomingTTL", time.Hour)
}
