package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reminder/src/models"
	redis_utils "reminder/src/utils/redis"

	"github.com/sirupsen/logrus"
)

// Cache key layout. Reminder views are derived data: any write to the
// reminders table invalidates them, and a dropped entry only costs a reload.
const (
	monthlyKeyPrefix  = "user:reminders:month:"
	upcomingKeyPrefix = "user:reminders:upcoming:"
	pendingKeyPrefix  = "pending:reminders:"
)

func monthlyKey(userID int64, yearMonth int) string {
	return fmt.Sprintf("%s%d:%06d", monthlyKeyPrefix, userID, yearMonth)
}

func upcomingKey(userID int64) string {
	return fmt.Sprintf("%s%d", upcomingKeyPrefix, userID)
}

// pendingWindowKey addresses the staged due set for one minute window.
func pendingWindowKey(windowStart time.Time) string {
	return pendingKeyPrefix + windowStart.Format("2006-01-02 15:04")
}

// CacheService is the read-through view cache in front of the reminder store.
// Entries are never authoritative; a miss or a Redis failure falls back to
// the store.
type CacheService struct {
	redis       *redis_utils.RedisHandler
	logger      *logrus.Logger
	monthlyTTL  time.Duration
	upcomingTTL time.Duration
}

func NewCacheService(redis *redis_utils.RedisHandler, logger *logrus.Logger, monthlyTTL, upcomingTTL time.Duration) *CacheService {
	if monthlyTTL <= 0 {
		monthlyTTL = 7 * 24 * time.Hour
	}
	if upcomingTTL <= 0 {
		upcomingTTL = time.Hour
	}
	return &CacheService{
		redis:       redis,
		logger:      logger,
		monthlyTTL:  monthlyTTL,
		upcomingTTL: upcomingTTL,
	}
}

// GetMonth returns the cached month view for a user, with ok=false on miss.
// Redis errors degrade to a miss so the read path can continue from the store.
func (c *CacheService) GetMonth(ctx context.Context, userID int64, yearMonth int) ([]models.Reminder, bool) {
	var reminders []models.Reminder
	err := c.redis.Get(ctx, monthlyKey(userID, yearMonth), &reminders)
	if err != nil {
		if !errors.Is(err, redis_utils.ErrKeyMissing) {
			c.logger.WithError(err).WithField("user_id", userID).Warn("monthly reminder cache read failed")
		}
		return nil, false
	}
	return reminders, true
}

func (c *CacheService) SetMonth(ctx context.Context, userID int64, yearMonth int, reminders []models.Reminder) {
	if err := c.redis.Set(ctx, monthlyKey(userID, yearMonth), reminders, c.monthlyTTL); err != nil {
		c.logger.WithError(err).WithField("user_id", userID).Warn("monthly reminder cache write failed")
	}
}

func (c *CacheService) GetUpcoming(ctx context.Context, userID int64) ([]models.Reminder, bool) {
	var reminders []models.Reminder
	err := c.redis.Get(ctx, upcomingKey(userID), &reminders)
	if err != nil {
		if !errors.Is(err, redis_utils.ErrKeyMissing) {
			c.logger.WithError(err).WithField("user_id", userID).Warn("upcoming reminder cache read failed")
		}
		return nil, false
	}
	return reminders, true
}

func (c *CacheService) SetUpcoming(ctx context.Context, userID int64, reminders []models.Reminder) {
	if err := c.redis.Set(ctx, upcomingKey(userID), reminders, c.upcomingTTL); err != nil {
		c.logger.WithError(err).WithField("user_id", userID).Warn("upcoming reminder cache write failed")
	}
}

// InvalidateMonth drops one user's view of a single month.
func (c *CacheService) InvalidateMonth(ctx context.Context, userID int64, yearMonth int) {
	if err := c.redis.Delete(ctx, monthlyKey(userID, yearMonth), upcomingKey(userID)); err != nil {
		c.logger.WithError(err).WithField("user_id", userID).Warn("reminder cache invalidation failed")
	}
}

// InvalidateUser drops every cached reminder view for a user. Called on any
// write whose affected months are not known precisely (template regeneration,
// cascade deletes).
func (c *CacheService) InvalidateUser(ctx context.Context, userID int64) {
	pattern := fmt.Sprintf("%s%d:*", monthlyKeyPrefix, userID)
	if err := c.redis.DeleteByPattern(ctx, pattern); err != nil {
		c.logger.WithError(err).WithField("user_id", userID).Warn("monthly reminder cache invalidation failed")
	}
	if err := c.redis.Delete(ctx, upcomingKey(userID)); err != nil {
		c.logger.WithError(err).WithField("user_id", userID).Warn("upcoming reminder cache invalidation failed")
	}
}

// StagePending writes the due set for one minute window as a Redis hash,
// one field per reminder keyed by id. The short TTL cleans up after windows
// whose send tick never ran.
func (c *CacheService) StagePending(ctx context.Context, windowStart time.Time, reminders []models.Reminder) error {
	if len(reminders) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(reminders))
	for i := range reminders {
		fields[fmt.Sprintf("%d", reminders[i].ID)] = reminders[i]
	}
	return c.redis.HSetJSON(ctx, pendingWindowKey(windowStart), fields, 5*time.Minute)
}

// PendingWindow returns the staged due set as raw id -> JSON fields, empty
// when nothing was staged for the window. Decoding is left to the caller so
// a corrupt field can be reported per reminder.
func (c *CacheService) PendingWindow(ctx context.Context, windowStart time.Time) (map[string]string, error) {
	return c.redis.HGetAll(ctx, pendingWindowKey(windowStart))
}

// DropPendingWindow removes a consumed (or abandoned) staged due set.
func (c *CacheService) DropPendingWindow(ctx context.Context, windowStart time.Time) {
	if err := c.redis.Delete(ctx, pendingWindowKey(windowStart)); err != nil {
		c.logger.WithError(err).Warn("failed to drop staged due set")
	}
}

// InvalidateUsers invalidates a set of users, deduplicating ids. Owner and
// recipient both see generated occurrences, so both get dropped.
func (c *CacheService) InvalidateUsers(ctx context.Context, userIDs ...int64) {
	seen := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		c.InvalidateUser(ctx, id)
	}
}
