package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"reminder/src/models"
	"reminder/src/repositories"
	"reminder/src/utils"
)

// MaxTemplatesPerOwner caps how many recurring templates one user may hold.
const MaxTemplatesPerOwner = 20

// upcomingHorizon is how far the upcoming-reminders view looks ahead.
const upcomingHorizon = 7 * 24 * time.Hour

var (
	ErrTemplateNotFound     = errors.New("reminder template not found")
	ErrReminderNotFound     = errors.New("reminder not found")
	ErrTemplateLimitReached = fmt.Errorf("a user may own at most %d reminder templates", MaxTemplatesPerOwner)
)

// ReminderService is the write and read front for templates and occurrences.
// Every write path invalidates the cached views of the affected users.
type ReminderService struct {
	templateRepo repositories.TemplateRepository
	reminderRepo repositories.ReminderRepository
	materializer *MaterializerService
	backfill     *BackfillService
	cache        *CacheService
	logger       *logrus.Logger
	location     *time.Location

	// Clock is replaceable for tests.
	Clock func() time.Time
}

func NewReminderService(
	templateRepo repositories.TemplateRepository,
	reminderRepo repositories.ReminderRepository,
	materializer *MaterializerService,
	backfill *BackfillService,
	cache *CacheService,
	logger *logrus.Logger,
	location *time.Location,
) *ReminderService {
	return &ReminderService{
		templateRepo: templateRepo,
		reminderRepo: reminderRepo,
		materializer: materializer,
		backfill:     backfill,
		cache:        cache,
		logger:       logger,
		location:     location,
		Clock:        time.Now,
	}
}

// CreateTemplate validates and persists a new template, then materializes its
// occurrences out to the standard horizon in the same call so the user sees
// them immediately.
func (s *ReminderService) CreateTemplate(ctx context.Context, template *models.ReminderTemplate) error {
	if _, err := ParseCron(template.CronExpression); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", template.CronExpression, err)
	}
	count, err := s.templateRepo.CountByOwner(ctx, template.OwnerID)
	if err != nil {
		return fmt.Errorf("counting templates for owner %d: %w", template.OwnerID, err)
	}
	if count >= MaxTemplatesPerOwner {
		return ErrTemplateLimitReached
	}
	if template.RecipientID == 0 {
		template.RecipientID = template.OwnerID
	}
	template.LastGeneratedYM = nil

	if err := s.templateRepo.Save(ctx, template); err != nil {
		return fmt.Errorf("saving template: %w", err)
	}
	if _, err := s.materializer.Materialize(ctx, template, DefaultHorizonMonths); err != nil {
		return fmt.Errorf("materializing new template %d: %w", template.ID, err)
	}
	return nil
}

// UpdateTemplate persists an edit. When the edit changes what the schedule
// produces, future occurrences are regenerated from scratch; already-elapsed
// ones are history and stay untouched. A pure content edit (title,
// description) leaves existing occurrences as they were snapshotted.
func (s *ReminderService) UpdateTemplate(ctx context.Context, template *models.ReminderTemplate) error {
	existing, err := s.templateRepo.FindByID(ctx, template.ID)
	if err != nil {
		return fmt.Errorf("loading template %d: %w", template.ID, err)
	}
	if existing == nil {
		return ErrTemplateNotFound
	}
	if _, err := ParseCron(template.CronExpression); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", template.CronExpression, err)
	}

	if scheduleDefiningEdit(existing, template) {
		// The future-occurrence delete, the new schedule, and the watermark
		// reset land in one transaction: a failure leaves the old rows and
		// the old watermark consistent with each other.
		template.LastGeneratedYM = nil
		now := s.Clock().In(s.location)
		if _, err := s.templateRepo.SaveWithOccurrenceReset(ctx, template, now); err != nil {
			return fmt.Errorf("saving template %d: %w", template.ID, err)
		}
		if _, err := s.materializer.Materialize(ctx, template, DefaultHorizonMonths); err != nil {
			return fmt.Errorf("rematerializing template %d: %w", template.ID, err)
		}
	} else {
		template.LastGeneratedYM = existing.LastGeneratedYM
		if err := s.templateRepo.Save(ctx, template); err != nil {
			return fmt.Errorf("saving template %d: %w", template.ID, err)
		}
	}
	s.cache.InvalidateUsers(ctx, existing.OwnerID, existing.RecipientID, template.OwnerID, template.RecipientID)
	return nil
}

// DeleteTemplate removes a template and every occurrence it generated,
// elapsed or not.
func (s *ReminderService) DeleteTemplate(ctx context.Context, id int64) error {
	template, err := s.templateRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("loading template %d: %w", id, err)
	}
	if template == nil {
		return ErrTemplateNotFound
	}

	removed, err := s.templateRepo.DeleteWithOccurrences(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting template %d: %w", id, err)
	}
	s.logger.WithFields(logrus.Fields{
		"template_id": id,
		"occurrences": removed,
	}).Info("template deleted")
	s.cache.InvalidateUsers(ctx, template.OwnerID, template.RecipientID)
	return nil
}

// CreateReminder stores a standalone one-off reminder with no originating
// template.
func (s *ReminderService) CreateReminder(ctx context.Context, reminder *models.Reminder) error {
	if reminder.EventTime.IsZero() {
		return errors.New("reminder event time is required")
	}
	if reminder.RecipientID == 0 {
		reminder.RecipientID = reminder.OwnerID
	}
	reminder.TemplateID = nil

	if err := s.reminderRepo.Save(ctx, reminder); err != nil {
		return fmt.Errorf("saving reminder: %w", err)
	}
	s.cache.InvalidateUsers(ctx, reminder.OwnerID, reminder.RecipientID)
	return nil
}

// DeleteReminder removes a single occurrence without touching its template.
func (s *ReminderService) DeleteReminder(ctx context.Context, id int64) error {
	reminder, err := s.reminderRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("loading reminder %d: %w", id, err)
	}
	if reminder == nil {
		return ErrReminderNotFound
	}
	if err := s.reminderRepo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("deleting reminder %d: %w", id, err)
	}
	s.cache.InvalidateUsers(ctx, reminder.OwnerID, reminder.RecipientID)
	return nil
}

// RemindersForMonth returns everything the user owns in the given
// month, generating lagging templates first so the view is complete, then
// serving from cache when possible.
func (s *ReminderService) RemindersForMonth(ctx context.Context, userID int64, year int, month time.Month) ([]models.Reminder, error) {
	if err := s.backfill.EnsureGenerated(ctx, year, month); err != nil {
		return nil, err
	}

	yearMonth := year*100 + int(month)
	if cached, ok := s.cache.GetMonth(ctx, userID, yearMonth); ok {
		return cached, nil
	}

	start := utils.StartOfMonth(yearMonth, s.location)
	end := utils.StartOfMonth(utils.AddMonthsToYearMonth(yearMonth, 1), s.location)
	reminders, err := s.reminderRepo.FindByOwnerBetween(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("loading reminders for user %d in %d: %w", userID, yearMonth, err)
	}
	s.cache.SetMonth(ctx, userID, yearMonth, reminders)
	return reminders, nil
}

// UpcomingReminders returns the user's owned reminders over the next seven days.
func (s *ReminderService) UpcomingReminders(ctx context.Context, userID int64) ([]models.Reminder, error) {
	if cached, ok := s.cache.GetUpcoming(ctx, userID); ok {
		return cached, nil
	}

	now := s.Clock().In(s.location)
	if err := s.backfill.EnsureGenerated(ctx, now.Year(), now.Month()); err != nil {
		return nil, err
	}
	reminders, err := s.reminderRepo.FindByOwnerBetween(ctx, userID, now, now.Add(upcomingHorizon))
	if err != nil {
		return nil, fmt.Errorf("loading upcoming reminders for user %d: %w", userID, err)
	}
	s.cache.SetUpcoming(ctx, userID, reminders)
	return reminders, nil
}

// scheduleDefiningEdit reports whether the edit changes which occurrences the
// template produces, as opposed to only what they say.
func scheduleDefiningEdit(before, after *models.ReminderTemplate) bool {
	return before.CronExpression != after.CronExpression ||
		!equalTimePtr(before.ValidFrom, after.ValidFrom) ||
		!equalTimePtr(before.ValidUntil, after.ValidUntil) ||
		!equalIntPtr(before.MaxExecutions, after.MaxExecutions) ||
		before.Channel != after.Channel ||
		before.RecipientID != after.RecipientID
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
