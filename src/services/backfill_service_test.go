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

func newBackfill(t *testing.T, templateRepo *fakeTemplateRepo, reminderRepo *fakeReminderRepo, now time.Time) *services.BackfillService {
	t.Helper()
	m := newMaterializer(t, templateRepo, reminderRepo, now)
	b := services.NewBackfillService(templateRepo, m, testLogger(), time.UTC)
	b.Clock = fixedClock(now)
	return b
}

func TestBackfillServiceEnsureGenerated(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

	t.Run("historical month only advances the watermark", func(t *testing.T) {
		templateRepo := newFakeTemplateRepo()
		reminderRepo := newFakeReminderRepo()
		template := dailyTemplate(templateRepo)
		b := newBackfill(t, templateRepo, reminderRepo, now)

		require.NoError(t, b.EnsureGenerated(ctx, 2024, time.February))

		assert.Empty(t, reminderRepo.all())
		stored, _ := templateRepo.FindByID(ctx, template.ID)
		require.NotNil(t, stored.LastGeneratedYM)
		assert.Equal(t, 202402, *stored.LastGeneratedYM)
	})

	t.Run("current month generates one month past the query", func(t *testing.T) {
		templateRepo := newFakeTemplateRepo()
		reminderRepo := newFakeReminderRepo()
		template := dailyTemplate(templateRepo)
		b := newBackfill(t, templateRepo, reminderRepo, now)

		require.NoError(t, b.EnsureGenerated(ctx, 2024, time.May))

		// Rest of May plus all of June.
		assert.Len(t, reminderRepo.all(), 16+30)
		stored, _ := templateRepo.FindByID(ctx, template.ID)
		require.NotNil(t, stored.LastGeneratedYM)
		assert.Equal(t, 202406, *stored.LastGeneratedYM)
	})

	t.Run("covered templates are left alone", func(t *testing.T) {
		templateRepo := newFakeTemplateRepo()
		reminderRepo := newFakeReminderRepo()
		watermark := 202408
		templateRepo.add(models.ReminderTemplate{
			OwnerID:         1,
			RecipientID:     1,
			Title:           "Covered",
			CronExpression:  "0 9 * * *",
			Channel:         models.ChannelEmail,
			LastGeneratedYM: &watermark,
		})
		b := newBackfill(t, templateRepo, reminderRepo, now)

		require.NoError(t, b.EnsureGenerated(ctx, 2024, time.May))
		assert.Empty(t, reminderRepo.all())
	})

	t.Run("rejects an impossible month", func(t *testing.T) {
		b := newBackfill(t, newFakeTemplateRepo(), newFakeReminderRepo(), now)
		assert.Error(t, b.EnsureGenerated(ctx, 2024, time.Month(13)))
	})
}

func TestBackfillServiceRunMonthly(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

	t.Run("lagging templates are extended to the horizon", func(t *testing.T) {
		templateRepo := newFakeTemplateRepo()
		reminderRepo := newFakeReminderRepo()
		watermark := 202405
		template := templateRepo.add(models.ReminderTemplate{
			OwnerID:         1,
			RecipientID:     1,
			Title:           "Lagging",
			CronExpression:  "0 9 1 * *",
			Channel:         models.ChannelEmail,
			LastGeneratedYM: &watermark,
		})
		b := newBackfill(t, templateRepo, reminderRepo, now)

		require.NoError(t, b.RunMonthly(ctx))

		// First of June, July and August.
		assert.Len(t, reminderRepo.all(), 3)
		stored, _ := templateRepo.FindByID(ctx, template.ID)
		require.NotNil(t, stored.LastGeneratedYM)
		assert.Equal(t, 202408, *stored.LastGeneratedYM)
	})

	t.Run("one failing template does not block the rest", func(t *testing.T) {
		templateRepo := newFakeTemplateRepo()
		reminderRepo := newFakeReminderRepo()
		dailyTemplate(templateRepo)
		dailyTemplate(templateRepo)
		reminderRepo.saveBatchErr = context.DeadlineExceeded
		b := newBackfill(t, templateRepo, reminderRepo, now)

		// Failures are logged per template, the pass itself succeeds.
		require.NoError(t, b.RunMonthly(ctx))
		assert.Empty(t, reminderRepo.all())
	})
}
