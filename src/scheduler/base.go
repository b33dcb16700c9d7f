package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// JobRunner owns the process-wide cron runner. Specs use six fields with a
// seconds column, and every job runs under SkipIfStillRunning so a slow tick
// can never overlap itself.
type JobRunner struct {
	cron   *cron.Cron
	logger *logrus.Logger
}

func NewJobRunner(logger *logrus.Logger, location *time.Location) *JobRunner {
	cronLogger := cron.PrintfLogger(logrusPrinter{logger})
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(location),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger)),
	)
	return &JobRunner{cron: c, logger: logger}
}

// AddJob registers a named job. The job receives a fresh background context
// per invocation; its own timeouts bound the work.
func (r *JobRunner) AddJob(name, spec string, job func(ctx context.Context) error) error {
	log := r.logger.WithField("job", name)
	_, err := r.cron.AddFunc(spec, func() {
		if err := job(context.Background()); err != nil {
			log.WithError(err).Error("scheduled job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("registering job %s with spec %q: %w", name, spec, err)
	}
	log.WithField("spec", spec).Info("job registered")
	return nil
}

func (r *JobRunner) Start() {
	r.cron.Start()
}

// Stop halts scheduling and waits for in-flight jobs to finish.
func (r *JobRunner) Stop() {
	<-r.cron.Stop().Done()
}

// logrusPrinter adapts logrus to the printf shape cron's logger wants.
type logrusPrinter struct {
	logger *logrus.Logger
}

func (p logrusPrinter) Printf(format string, args ...interface{}) {
	p.logger.Infof(format, args...)
}
