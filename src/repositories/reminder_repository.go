package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reminder/src/models"
)

type ReminderRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Reminder, error)
	// ExistsForTemplateAt reports whether an occurrence generated from the
	// template already exists at the exact event time.
	ExistsForTemplateAt(ctx context.Context, templateID int64, at time.Time) (bool, error)
	CountByTemplateID(ctx context.Context, templateID int64) (int, error)
	Save(ctx context.Context, reminder *models.Reminder) error
	// SaveBatch inserts the given reminders in one transaction, skipping any
	// that collide on (originating_template_id, event_time). It returns the
	// rows actually inserted, ids filled in.
	SaveBatch(ctx context.Context, reminders []models.Reminder) ([]models.Reminder, error)
	// FindDueBetween returns reminders with event_time in [start, end),
	// ordered by event time.
	FindDueBetween(ctx context.Context, start, end time.Time) ([]models.Reminder, error)
	FindByOwnerBetween(ctx context.Context, ownerID int64, start, end time.Time) ([]models.Reminder, error)
	FindAllBetween(ctx context.Context, start, end time.Time) ([]models.Reminder, error)
	DeleteByID(ctx context.Context, id int64) error
}

type reminderRepo struct {
	DB *pgxpool.Pool
}

func NewReminderRepository(db *pgxpool.Pool) ReminderRepository {
	return &reminderRepo{DB: db}
}

const reminderColumns = `
	id, owner_id, recipient_id, title, description, event_time,
	channel, originating_template_id, created_at, updated_at`

func scanReminder(row pgx.Row) (*models.Reminder, error) {
	var m models.Reminder
	err := row.Scan(
		&m.ID,
		&m.OwnerID,
		&m.RecipientID,
		&m.Title,
		&m.Description,
		&m.EventTime,
		&m.Channel,
		&m.TemplateID,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *reminderRepo) FindByID(ctx context.Context, id int64) (*models.Reminder, error) {
	m, err := scanReminder(r.DB.QueryRow(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *reminderRepo) ExistsForTemplateAt(ctx context.Context, templateID int64, at time.Time) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reminders
			WHERE originating_template_id = $1 AND event_time = $2
		)`, templateID, at).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *reminderRepo) CountByTemplateID(ctx context.Context, templateID int64) (int, error) {
	var count int
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM reminders WHERE originating_template_id = $1`, templateID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *reminderRepo) Save(ctx context.Context, reminder *models.Reminder) error {
	if reminder.ID == 0 {
		return r.DB.QueryRow(ctx, `
			INSERT INTO reminders
				(owner_id, recipient_id, title, description, event_time,
				 channel, originating_template_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at, updated_at`,
			reminder.OwnerID,
			reminder.RecipientID,
			reminder.Title,
			reminder.Description,
			reminder.EventTime,
			reminder.Channel,
			reminder.TemplateID,
		).Scan(&reminder.ID, &reminder.CreatedAt, &reminder.UpdatedAt)
	}

	return r.DB.QueryRow(ctx, `
		UPDATE reminders
		SET owner_id = $2, recipient_id = $3, title = $4, description = $5,
			event_time = $6, channel = $7, originating_template_id = $8,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		reminder.ID,
		reminder.OwnerID,
		reminder.RecipientID,
		reminder.Title,
		reminder.Description,
		reminder.EventTime,
		reminder.Channel,
		reminder.TemplateID,
	).Scan(&reminder.UpdatedAt)
}

func (r *reminderRepo) SaveBatch(ctx context.Context, reminders []models.Reminder) ([]models.Reminder, error) {
	if len(reminders) == 0 {
		return nil, nil
	}

	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var inserted []models.Reminder
	for _, reminder := range reminders {
		// The unique index on (originating_template_id, event_time) makes a
		// concurrent duplicate insert a silent skip instead of an error.
		row := tx.QueryRow(ctx, `
			INSERT INTO reminders
				(owner_id, recipient_id, title, description, event_time,
				 channel, originating_template_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (originating_template_id, event_time) DO NOTHING
			RETURNING id, created_at, updated_at`,
			reminder.OwnerID,
			reminder.RecipientID,
			reminder.Title,
			reminder.Description,
			reminder.EventTime,
			reminder.Channel,
			reminder.TemplateID,
		)
		err := row.Scan(&reminder.ID, &reminder.CreatedAt, &reminder.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		inserted = append(inserted, reminder)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return inserted, nil
}

func (r *reminderRepo) FindDueBetween(ctx context.Context, start, end time.Time) ([]models.Reminder, error) {
	return r.findBetween(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE event_time >= $1 AND event_time < $2
		ORDER BY event_time`, start, end)
}

func (r *reminderRepo) FindByOwnerBetween(ctx context.Context, ownerID int64, start, end time.Time) ([]models.Reminder, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE owner_id = $1 AND event_time >= $2 AND event_time < $3
		ORDER BY event_time`, ownerID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectReminders(rows)
}

func (r *reminderRepo) FindAllBetween(ctx context.Context, start, end time.Time) ([]models.Reminder, error) {
	return r.findBetween(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE event_time >= $1 AND event_time < $2
		ORDER BY event_time`, start, end)
}

func (r *reminderRepo) findBetween(ctx context.Context, query string, start, end time.Time) ([]models.Reminder, error) {
	rows, err := r.DB.Query(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectReminders(rows)
}

func (r *reminderRepo) DeleteByID(ctx context.Context, id int64) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	return err
}

func collectReminders(rows pgx.Rows) ([]models.Reminder, error) {
	var reminders []models.Reminder
	for rows.Next() {
		m, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reminders, nil
}
