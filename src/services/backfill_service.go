package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"reminder/src/repositories"
	"reminder/src/utils"
)

// BackfillService keeps template watermarks caught up to the generation
// horizon. It runs on two cadences: on demand when a month view is requested,
// and monthly as a scheduled safety net. A failure on one template never
// blocks the rest of the batch.
type BackfillService struct {
	templateRepo repositories.TemplateRepository
	materializer *MaterializerService
	logger       *logrus.Logger
	location     *time.Location

	// Clock is replaceable for tests.
	Clock func() time.Time
}

func NewBackfillService(
	templateRepo repositories.TemplateRepository,
	materializer *MaterializerService,
	logger *logrus.Logger,
	location *time.Location,
) *BackfillService {
	return &BackfillService{
		templateRepo: templateRepo,
		materializer: materializer,
		logger:       logger,
		location:     location,
		Clock:        time.Now,
	}
}

// EnsureGenerated makes sure every template's occurrences exist through the
// given month before that month is read. Historical months are never
// regenerated; for those the watermark is simply advanced so the same
// templates are not reselected on every read.
func (s *BackfillService) EnsureGenerated(ctx context.Context, year int, month time.Month) error {
	if month < time.January || month > time.December {
		return fmt.Errorf("invalid month %d", month)
	}
	queryYM := year*100 + int(month)
	nowYM := utils.YearMonthOf(s.Clock().In(s.location))

	templates, err := s.templateRepo.FindNeedingBackfill(ctx, queryYM)
	if err != nil {
		return fmt.Errorf("finding templates needing backfill through %d: %w", queryYM, err)
	}

	for i := range templates {
		template := &templates[i]
		log := s.logger.WithField("template_id", template.ID)

		if queryYM < nowYM {
			if err := s.templateRepo.UpdateWatermark(ctx, template.ID, queryYM); err != nil {
				log.WithError(err).Error("failed to acknowledge historical month")
			}
			continue
		}

		// One month past the queried one, so the viewed month is fully
		// inside the generated window even at its boundary.
		monthsAhead := utils.MonthsBetween(nowYM, queryYM) + 1
		if monthsAhead < 1 {
			monthsAhead = 1
		}
		if _, err := s.materializer.Materialize(ctx, template, monthsAhead); err != nil {
			log.WithError(err).Error("on-demand backfill failed for template")
		}
	}
	return nil
}

// RunMonthly is the scheduled pass that extends every lagging template out to
// the standard horizon.
func (s *BackfillService) RunMonthly(ctx context.Context) error {
	nowYM := utils.YearMonthOf(s.Clock().In(s.location))
	targetYM := utils.AddMonthsToYearMonth(nowYM, DefaultHorizonMonths)

	templates, err := s.templateRepo.FindNeedingBackfill(ctx, targetYM)
	if err != nil {
		return fmt.Errorf("finding templates needing backfill through %d: %w", targetYM, err)
	}
	s.logger.WithFields(logrus.Fields{
		"target_ym": targetYM,
		"templates": len(templates),
	}).Info("monthly backfill starting")

	failures := 0
	for i := range templates {
		template := &templates[i]

		monthsAhead := DefaultHorizonMonths
		if template.LastGeneratedYM != nil {
			monthsAhead = utils.MonthsBetween(*template.LastGeneratedYM, targetYM)
			if monthsAhead < 1 {
				monthsAhead = 1
			}
		}

		if _, err := s.materializer.Materialize(ctx, template, monthsAhead); err != nil {
			failures++
			s.logger.WithError(err).WithField("template_id", template.ID).Error("monthly backfill failed for template")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"templates": len(templates),
		"failures":  failures,
	}).Info("monthly backfill finished")
	return nil
}
