package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"reminder/src/models"
	"reminder/src/notifications"
	"reminder/src/repositories"
)

// triggeringKindSimple tags history rows produced by the minute poller for
// template-generated and standalone one-off reminders alike.
const triggeringKindSimple = "SIMPLE"

// DispatchService delivers due reminders on a minute cadence. Every reminder
// picked up by a tick ends with exactly one execution history row; delivery
// itself is never retried, a failed send is recorded and left behind.
type DispatchService struct {
	reminderRepo repositories.ReminderRepository
	profileRepo  repositories.UserProfileRepository
	historyRepo  repositories.ExecutionHistoryRepository
	cache        *CacheService
	senders      *notifications.SenderFactory
	logger       *logrus.Logger
	location     *time.Location

	workers         int
	tickTimeout     time.Duration
	dispatchTimeout time.Duration

	// Clock is replaceable for tests.
	Clock func() time.Time
}

func NewDispatchService(
	reminderRepo repositories.ReminderRepository,
	profileRepo repositories.UserProfileRepository,
	historyRepo repositories.ExecutionHistoryRepository,
	cache *CacheService,
	senders *notifications.SenderFactory,
	logger *logrus.Logger,
	location *time.Location,
	workers int,
	tickTimeout, dispatchTimeout time.Duration,
) *DispatchService {
	if workers <= 0 {
		workers = 5
	}
	if tickTimeout <= 0 {
		tickTimeout = 30 * time.Second
	}
	if dispatchTimeout <= 0 {
		dispatchTimeout = 10 * time.Second
	}
	return &DispatchService{
		reminderRepo:    reminderRepo,
		profileRepo:     profileRepo,
		historyRepo:     historyRepo,
		cache:           cache,
		senders:         senders,
		logger:          logger,
		location:        location,
		workers:         workers,
		tickTimeout:     tickTimeout,
		dispatchTimeout: dispatchTimeout,
		Clock:           time.Now,
	}
}

// PrepareTick runs at second 30 and stages the due set for the upcoming
// minute into Redis, so the send tick at second 0 starts from a precomputed
// snapshot instead of racing a store query at the minute boundary.
func (s *DispatchService) PrepareTick(ctx context.Context) error {
	now := s.Clock().In(s.location)
	windowStart := now.Truncate(time.Minute).Add(time.Minute)
	windowEnd := windowStart.Add(time.Minute)

	due, err := s.reminderRepo.FindDueBetween(ctx, windowStart, windowEnd)
	if err != nil {
		return fmt.Errorf("finding reminders due in window %s: %w", windowStart, err)
	}
	if len(due) == 0 {
		return nil
	}
	if err := s.cache.StagePending(ctx, windowStart, due); err != nil {
		// Not fatal: the send tick falls back to querying the store.
		s.logger.WithError(err).Warn("failed to stage due reminders, send tick will query the store")
		return nil
	}
	s.logger.WithFields(logrus.Fields{
		"window": windowStart.Format("2006-01-02 15:04"),
		"staged": len(due),
	}).Debug("due reminders staged")
	return nil
}

// SendTick runs at second 0 and delivers everything due in the current
// minute window. Work is fanned out over a fixed worker pool and bounded by
// the tick timeout; reminders the tick could not reach before the deadline
// are skipped without a history row.
func (s *DispatchService) SendTick(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.tickTimeout)
	defer cancel()

	now := s.Clock().In(s.location)
	windowStart := now.Truncate(time.Minute)
	log := s.logger.WithFields(logrus.Fields{
		"run_id": uuid.NewString(),
		"window": windowStart.Format("2006-01-02 15:04"),
	})

	due, err := s.collectDue(ctx, log, windowStart)
	if err != nil {
		return err
	}
	defer s.cache.DropPendingWindow(parent, windowStart)
	if len(due) == 0 {
		return nil
	}
	log.WithField("due", len(due)).Info("dispatching due reminders")

	jobs := make(chan models.Reminder)
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for reminder := range jobs {
				s.dispatchOne(ctx, log, reminder)
			}
		}()
	}

	skipped := 0
	for i, reminder := range due {
		select {
		case jobs <- reminder:
		case <-ctx.Done():
			skipped = len(due) - i
		}
		if skipped > 0 {
			break
		}
	}
	close(jobs)
	wg.Wait()

	if skipped > 0 {
		log.WithField("skipped", skipped).Warn("tick deadline reached before all reminders were dispatched")
	}
	return nil
}

// collectDue prefers the staged snapshot and falls back to the store. A
// staged field that no longer decodes still gets its failure recorded.
func (s *DispatchService) collectDue(ctx context.Context, log *logrus.Entry, windowStart time.Time) ([]models.Reminder, error) {
	staged, err := s.cache.PendingWindow(ctx, windowStart)
	if err != nil {
		log.WithError(err).Warn("failed to read staged due set, falling back to the store")
	} else if len(staged) > 0 {
		due := make([]models.Reminder, 0, len(staged))
		for field, payload := range staged {
			var reminder models.Reminder
			if err := json.Unmarshal([]byte(payload), &reminder); err != nil {
				s.recordCorruptStagedEntry(ctx, log, field, err)
				continue
			}
			due = append(due, reminder)
		}
		return due, nil
	}

	windowEnd := windowStart.Add(time.Minute)
	var due []models.Reminder
	backoff := retry.WithMaxRetries(3, retry.NewConstant(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		rows, err := s.reminderRepo.FindDueBetween(ctx, windowStart, windowEnd)
		if err != nil {
			return retry.RetryableError(err)
		}
		due = rows
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("finding reminders due in window %s: %w", windowStart, err)
	}
	return due, nil
}

func (s *DispatchService) recordCorruptStagedEntry(ctx context.Context, log *logrus.Entry, field string, decodeErr error) {
	log.WithError(decodeErr).WithField("field", field).Error("staged reminder payload is corrupt")
	record := &models.ExecutionHistory{
		ExecutedAt:     s.Clock().In(s.location),
		TriggeringKind: triggeringKindSimple,
		Status:         models.ExecutionStatusFailure,
		Details:        fmt.Sprintf("staged payload could not be decoded: %v", decodeErr),
	}
	if id, err := strconv.ParseInt(field, 10, 64); err == nil {
		record.ReminderID = &id
	}
	if err := s.historyRepo.Append(ctx, record); err != nil {
		log.WithError(err).Error("failed to record corrupt staged entry")
	}
}

// dispatchOne resolves the recipient's address, sends over the reminder's
// channel, and appends the single history row for this occurrence.
func (s *DispatchService) dispatchOne(ctx context.Context, log *logrus.Entry, reminder models.Reminder) {
	dctx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
	defer cancel()

	status := models.ExecutionStatusFailure
	details := ""

	switch sender, ok := s.senders.ForChannel(reminder.Channel); {
	case !ok:
		details = fmt.Sprintf("no sender configured for channel %s", reminder.Channel)
	default:
		address, err := s.resolveAddress(dctx, reminder)
		if err != nil {
			details = err.Error()
			break
		}
		masked := notifications.MaskAddress(address)
		if err := sender.Send(dctx, address, reminder.Title, reminder.Description); err != nil {
			details = fmt.Sprintf("delivery to %s failed: %v", masked, err)
			log.WithError(err).WithField("reminder_id", reminder.ID).Warn("reminder delivery failed")
		} else {
			status = models.ExecutionStatusSuccess
			details = fmt.Sprintf("delivered to %s", masked)
		}
	}

	reminderID := reminder.ID
	eventTime := reminder.EventTime
	record := &models.ExecutionHistory{
		ExecutedAt:         s.Clock().In(s.location),
		TriggeringKind:     triggeringKindSimple,
		ReminderID:         &reminderID,
		OwnerID:            reminder.OwnerID,
		RecipientID:        reminder.RecipientID,
		Title:              reminder.Title,
		Description:        reminder.Description,
		ScheduledEventTime: &eventTime,
		Channel:            reminder.Channel,
		Status:             status,
		Details:            details,
	}
	if err := s.historyRepo.Append(ctx, record); err != nil {
		log.WithError(err).WithField("reminder_id", reminder.ID).Error("failed to append execution history")
	}
}

func (s *DispatchService) resolveAddress(ctx context.Context, reminder models.Reminder) (string, error) {
	profile, err := s.profileRepo.FindNotificationProfile(ctx, reminder.RecipientID)
	if err != nil {
		return "", fmt.Errorf("looking up notification profile for user %d: %w", reminder.RecipientID, err)
	}
	if profile == nil {
		return "", fmt.Errorf("user %d has no notification profile", reminder.RecipientID)
	}
	address := profile.AddressFor(reminder.Channel)
	if address == "" {
		return "", fmt.Errorf("user %d has no %s address on file", reminder.RecipientID, reminder.Channel)
	}
	return address, nil
}
