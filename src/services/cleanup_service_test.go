package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reminder/src/models"
	"reminder/src/services"
)

func TestCleanupService(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 15, 4, 0, 0, 0, time.UTC)

	historyRepo := &fakeHistoryRepo{}
	old := &models.ExecutionHistory{ExecutedAt: now.AddDate(0, 0, -120), Status: models.ExecutionStatusSuccess}
	recent := &models.ExecutionHistory{ExecutedAt: now.AddDate(0, 0, -10), Status: models.ExecutionStatusFailure}
	require.NoError(t, historyRepo.Append(ctx, old))
	require.NoError(t, historyRepo.Append(ctx, recent))

	cleanup := services.NewCleanupService(historyRepo, testLogger(), 90)
	cleanup.Clock = fixedClock(now)

	require.NoError(t, cleanup.Run(ctx))

	records := historyRepo.allRecords()
	require.Len(t, records, 1)
	assert.Equal(t, models.ExecutionStatusFailure, records[0].Status)
}
