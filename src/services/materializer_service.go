package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"reminder/src/models"
	"reminder/src/repositories"
	"reminder/src/utils"
)

// DefaultHorizonMonths is the lookahead used when a template is first created
// or its schedule is edited.
const DefaultHorizonMonths = 3

// MaterializerService expands a recurring template's cron schedule into
// concrete reminder rows across a bounded month window, then advances the
// template's watermark. Re-running over an overlapping window is safe: the
// existence check plus the unique index keep generation idempotent.
type MaterializerService struct {
	templateRepo repositories.TemplateRepository
	reminderRepo repositories.ReminderRepository
	cache        *CacheService
	logger       *logrus.Logger
	location     *time.Location

	// Clock is replaceable for tests.
	Clock func() time.Time
}

func NewMaterializerService(
	templateRepo repositories.TemplateRepository,
	reminderRepo repositories.ReminderRepository,
	cache *CacheService,
	logger *logrus.Logger,
	location *time.Location,
) *MaterializerService {
	return &MaterializerService{
		templateRepo: templateRepo,
		reminderRepo: reminderRepo,
		cache:        cache,
		logger:       logger,
		location:     location,
		Clock:        time.Now,
	}
}

// Materialize generates reminders for the template from now through the end
// of the month monthsAhead from the current one, clipped to the template's
// validity window and execution cap. A template whose cron expression does
// not parse is logged and skipped, not treated as a fatal error. Store
// failures abort the template and leave its watermark untouched.
func (s *MaterializerService) Materialize(ctx context.Context, template *models.ReminderTemplate, monthsAhead int) ([]models.Reminder, error) {
	log := s.logger.WithFields(logrus.Fields{
		"template_id":  template.ID,
		"months_ahead": monthsAhead,
	})

	schedule, err := ParseCron(template.CronExpression)
	if err != nil {
		log.WithError(err).Warn("skipping template with invalid cron expression")
		return nil, nil
	}

	now := s.Clock().In(s.location)

	// History is never revisited: generation starts at now, or at the
	// template's validFrom when that is still in the future.
	startTime := now
	if template.ValidFrom != nil {
		validFrom := startOfDay(*template.ValidFrom, s.location)
		if validFrom.After(startTime) {
			startTime = validFrom
		}
	}

	targetYearMonth := utils.AddMonthsToYearMonth(utils.YearMonthOf(now), monthsAhead)
	endTime := utils.EndOfMonth(targetYearMonth, s.location)
	if template.ValidUntil != nil {
		validUntil := endOfDay(*template.ValidUntil, s.location)
		if validUntil.Before(endTime) {
			endTime = validUntil
		}
	}

	// The execution cap counts every occurrence ever generated for the
	// template, so already-persisted rows are part of the budget.
	existingCount := 0
	if template.MaxExecutions != nil {
		existingCount, err = s.reminderRepo.CountByTemplateID(ctx, template.ID)
		if err != nil {
			return nil, fmt.Errorf("counting existing reminders for template %d: %w", template.ID, err)
		}
	}

	var toInsert []models.Reminder
	considered := 0
	cursor := startTime
	for {
		next := schedule.Next(cursor)
		if next.IsZero() || next.After(endTime) {
			break
		}
		cursor = next

		if template.MaxExecutions != nil && existingCount+len(toInsert) >= *template.MaxExecutions {
			break
		}
		considered++

		exists, err := s.reminderRepo.ExistsForTemplateAt(ctx, template.ID, next)
		if err != nil {
			return nil, fmt.Errorf("checking existing reminder for template %d at %s: %w", template.ID, next, err)
		}
		if exists {
			continue
		}

		toInsert = append(toInsert, newReminderFromTemplate(template, next))
	}

	inserted, err := s.reminderRepo.SaveBatch(ctx, toInsert)
	if err != nil {
		return nil, fmt.Errorf("saving generated reminders for template %d: %w", template.ID, err)
	}

	// The watermark is a claim of completeness through the target month, not
	// a row count; it only moves after the rows are durably written.
	if considered > 0 {
		watermark := targetYearMonth
		if template.ValidUntil != nil {
			validUntilYM := utils.YearMonthOf(*template.ValidUntil)
			if validUntilYM < watermark {
				watermark = validUntilYM
			}
		}
		if err := s.templateRepo.UpdateWatermark(ctx, template.ID, watermark); err != nil {
			return inserted, fmt.Errorf("updating watermark for template %d: %w", template.ID, err)
		}
		template.LastGeneratedYM = &watermark
	}

	if len(inserted) > 0 && s.cache != nil {
		s.cache.InvalidateUsers(ctx, template.OwnerID, template.RecipientID)
	}

	log.WithFields(logrus.Fields{
		"generated": len(inserted),
		"window_end": endTime,
	}).Info("template materialized")
	return inserted, nil
}

// newReminderFromTemplate snapshots the template's user-facing fields into a
// concrete occurrence. The copy is deliberate: later template edits must not
// rewrite reminders that already exist.
func newReminderFromTemplate(template *models.ReminderTemplate, eventTime time.Time) models.Reminder {
	templateID := template.ID
	return models.Reminder{
		OwnerID:     template.OwnerID,
		RecipientID: template.RecipientID,
		Title:       template.Title,
		Description: template.Description,
		EventTime:   eventTime,
		Channel:     template.Channel,
		TemplateID:  &templateID,
	}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func endOfDay(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, loc)
}
