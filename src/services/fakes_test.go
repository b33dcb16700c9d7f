package services_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"reminder/src/models"
	"reminder/src/services"
	redis_utils "reminder/src/utils/redis"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testCache(t *testing.T) (*services.CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	handler := redis_utils.NewRedisHandlerWithClient(client)
	return services.NewCacheService(handler, testLogger(), 7*24*time.Hour, time.Hour), mr
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// fakeTemplateRepo is an in-memory TemplateRepository. The transactional
// methods touch occurrences through the wired reminders repo and, like the
// real ones, apply nothing when their injected error fires.
type fakeTemplateRepo struct {
	templates      map[int64]*models.ReminderTemplate
	nextID         int64
	watermarkCalls []int

	reminders *fakeReminderRepo
	saveErr   error
	deleteErr error
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{templates: map[int64]*models.ReminderTemplate{}}
}

func (r *fakeTemplateRepo) add(template models.ReminderTemplate) *models.ReminderTemplate {
	if template.ID == 0 {
		r.nextID++
		template.ID = r.nextID
	} else if template.ID > r.nextID {
		r.nextID = template.ID
	}
	r.templates[template.ID] = &template
	return r.templates[template.ID]
}

func (r *fakeTemplateRepo) FindAll(context.Context) ([]models.ReminderTemplate, error) {
	out := make([]models.ReminderTemplate, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTemplateRepo) FindByID(_ context.Context, id int64) (*models.ReminderTemplate, error) {
	t, ok := r.templates[id]
	if !ok {
		return nil, nil
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTemplateRepo) FindNeedingBackfill(_ context.Context, targetYearMonth int) ([]models.ReminderTemplate, error) {
	var out []models.ReminderTemplate
	for _, t := range r.templates {
		if t.LastGeneratedYM == nil || *t.LastGeneratedYM < targetYearMonth {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTemplateRepo) CountByOwner(_ context.Context, ownerID int64) (int64, error) {
	var count int64
	for _, t := range r.templates {
		if t.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (r *fakeTemplateRepo) Save(_ context.Context, template *models.ReminderTemplate) error {
	if template.ID == 0 {
		r.nextID++
		template.ID = r.nextID
		template.CreatedAt = time.Now()
	}
	template.UpdatedAt = time.Now()
	copied := *template
	r.templates[template.ID] = &copied
	return nil
}

func (r *fakeTemplateRepo) UpdateWatermark(_ context.Context, id int64, yearMonth int) error {
	r.watermarkCalls = append(r.watermarkCalls, yearMonth)
	if t, ok := r.templates[id]; ok {
		ym := yearMonth
		t.LastGeneratedYM = &ym
	}
	return nil
}

func (r *fakeTemplateRepo) SaveWithOccurrenceReset(ctx context.Context, template *models.ReminderTemplate, deleteAfter time.Time) (int64, error) {
	if r.saveErr != nil {
		return 0, r.saveErr
	}
	removed := r.reminders.removeForTemplate(template.ID, &deleteAfter)
	if err := r.Save(ctx, template); err != nil {
		return 0, err
	}
	return removed, nil
}

func (r *fakeTemplateRepo) DeleteByID(_ context.Context, id int64) error {
	delete(r.templates, id)
	return nil
}

func (r *fakeTemplateRepo) DeleteWithOccurrences(_ context.Context, id int64) (int64, error) {
	if r.deleteErr != nil {
		return 0, r.deleteErr
	}
	removed := r.reminders.removeForTemplate(id, nil)
	delete(r.templates, id)
	return removed, nil
}

// fakeReminderRepo is an in-memory ReminderRepository with the same
// duplicate-skipping batch semantics as the real one.
type fakeReminderRepo struct {
	mu        sync.Mutex
	reminders map[int64]models.Reminder
	nextID    int64

	saveBatchErr error
	findDueErr   error
	findDueFails int
}

func newFakeReminderRepo() *fakeReminderRepo {
	return &fakeReminderRepo{reminders: map[int64]models.Reminder{}}
}

func (r *fakeReminderRepo) add(reminder models.Reminder) models.Reminder {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reminder.ID == 0 {
		r.nextID++
		reminder.ID = r.nextID
	} else if reminder.ID > r.nextID {
		r.nextID = reminder.ID
	}
	r.reminders[reminder.ID] = reminder
	return reminder
}

func (r *fakeReminderRepo) all() []models.Reminder {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Reminder, 0, len(r.reminders))
	for _, rem := range r.reminders {
		out = append(out, rem)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventTime.Before(out[j].EventTime) })
	return out
}

func (r *fakeReminderRepo) FindByID(_ context.Context, id int64) (*models.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rem, ok := r.reminders[id]
	if !ok {
		return nil, nil
	}
	return &rem, nil
}

func (r *fakeReminderRepo) ExistsForTemplateAt(_ context.Context, templateID int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rem := range r.reminders {
		if rem.TemplateID != nil && *rem.TemplateID == templateID && rem.EventTime.Equal(at) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeReminderRepo) CountByTemplateID(_ context.Context, templateID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, rem := range r.reminders {
		if rem.TemplateID != nil && *rem.TemplateID == templateID {
			count++
		}
	}
	return count, nil
}

func (r *fakeReminderRepo) Save(_ context.Context, reminder *models.Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reminder.ID == 0 {
		r.nextID++
		reminder.ID = r.nextID
	}
	r.reminders[reminder.ID] = *reminder
	return nil
}

func (r *fakeReminderRepo) SaveBatch(ctx context.Context, reminders []models.Reminder) ([]models.Reminder, error) {
	if r.saveBatchErr != nil {
		return nil, r.saveBatchErr
	}
	var inserted []models.Reminder
	for _, rem := range reminders {
		if rem.TemplateID != nil {
			exists, _ := r.ExistsForTemplateAt(ctx, *rem.TemplateID, rem.EventTime)
			if exists {
				continue
			}
		}
		inserted = append(inserted, r.add(rem))
	}
	return inserted, nil
}

func (r *fakeReminderRepo) FindDueBetween(_ context.Context, start, end time.Time) ([]models.Reminder, error) {
	if r.findDueFails > 0 {
		r.findDueFails--
		return nil, r.findDueErr
	}
	return r.between(start, end, 0), nil
}

func (r *fakeReminderRepo) FindByOwnerBetween(_ context.Context, ownerID int64, start, end time.Time) ([]models.Reminder, error) {
	return r.between(start, end, ownerID), nil
}

func (r *fakeReminderRepo) FindAllBetween(_ context.Context, start, end time.Time) ([]models.Reminder, error) {
	return r.between(start, end, 0), nil
}

func (r *fakeReminderRepo) between(start, end time.Time, ownerID int64) []models.Reminder {
	var out []models.Reminder
	for _, rem := range r.all() {
		if rem.EventTime.Before(start) || !rem.EventTime.Before(end) {
			continue
		}
		if ownerID != 0 && rem.OwnerID != ownerID {
			continue
		}
		out = append(out, rem)
	}
	return out
}

// removeForTemplate drops the template's occurrences, all of them when after
// is nil, otherwise only those past the cutoff.
func (r *fakeReminderRepo) removeForTemplate(templateID int64, after *time.Time) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for id, rem := range r.reminders {
		if rem.TemplateID == nil || *rem.TemplateID != templateID {
			continue
		}
		if after != nil && !rem.EventTime.After(*after) {
			continue
		}
		delete(r.reminders, id)
		removed++
	}
	return removed
}

func (r *fakeReminderRepo) DeleteByID(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reminders, id)
	return nil
}

// fakeHistoryRepo records appended execution history rows.
type fakeHistoryRepo struct {
	mu      sync.Mutex
	records []models.ExecutionHistory
}

func (r *fakeHistoryRepo) Append(_ context.Context, record *models.ExecutionHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record.ID = int64(len(r.records) + 1)
	r.records = append(r.records, *record)
	return nil
}

func (r *fakeHistoryRepo) FindByReminderID(_ context.Context, reminderID int64) ([]models.ExecutionHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ExecutionHistory
	for _, rec := range r.records {
		if rec.ReminderID != nil && *rec.ReminderID == reminderID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeHistoryRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []models.ExecutionHistory
	var removed int64
	for _, rec := range r.records {
		if rec.ExecutedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	r.records = kept
	return removed, nil
}

func (r *fakeHistoryRepo) allRecords() []models.ExecutionHistory {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ExecutionHistory(nil), r.records...)
}

// fakeProfileRepo maps user ids to notification profiles.
type fakeProfileRepo struct {
	profiles map[int64]*models.UserNotificationProfile
}

func (r *fakeProfileRepo) FindNotificationProfile(_ context.Context, userID int64) (*models.UserNotificationProfile, error) {
	return r.profiles[userID], nil
}

// fakeSender records deliveries for one channel.
type fakeSender struct {
	mu      sync.Mutex
	channel models.Channel
	sendErr error
	sent    []string
}

func (s *fakeSender) Channel() models.Channel { return s.channel }

func (s *fakeSender) Send(_ context.Context, address, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, address)
	return nil
}

func (s *fakeSender) addresses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}
