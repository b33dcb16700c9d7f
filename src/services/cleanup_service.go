package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"reminder/src/repositories"
)

// CleanupService trims the execution history audit trail down to the
// configured retention window.
type CleanupService struct {
	historyRepo   repositories.ExecutionHistoryRepository
	logger        *logrus.Logger
	retentionDays int

	// Clock is replaceable for tests.
	Clock func() time.Time
}

func NewCleanupService(historyRepo repositories.ExecutionHistoryRepository, logger *logrus.Logger, retentionDays int) *CleanupService {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &CleanupService{
		historyRepo:   historyRepo,
		logger:        logger,
		retentionDays: retentionDays,
		Clock:         time.Now,
	}
}

// Run deletes history rows older than the retention window.
func (s *CleanupService) Run(ctx context.Context) error {
	cutoff := s.Clock().AddDate(0, 0, -s.retentionDays)
	removed, err := s.historyRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("deleting execution history older than %s: %w", cutoff.Format(time.DateOnly), err)
	}
	s.logger.WithFields(logrus.Fields{
		"cutoff":  cutoff.Format(time.DateOnly),
		"removed": removed,
	}).Info("execution history cleanup finished")
	return nil
}
