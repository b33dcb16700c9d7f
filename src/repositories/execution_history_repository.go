package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reminder/src/models"
)

type ExecutionHistoryRepository interface {
	// Append writes one audit record. History is write-once: there is no
	// update path, and the only delete path is DeleteOlderThan.
	Append(ctx context.Context, record *models.ExecutionHistory) error
	FindByReminderID(ctx context.Context, reminderID int64) ([]models.ExecutionHistory, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type executionHistoryRepo struct {
	DB *pgxpool.Pool
}

func NewExecutionHistoryRepository(db *pgxpool.Pool) ExecutionHistoryRepository {
	return &executionHistoryRepo{DB: db}
}

func (r *executionHistoryRepo) Append(ctx context.Context, record *models.ExecutionHistory) error {
	return r.DB.QueryRow(ctx, `
		INSERT INTO execution_history
			(executed_at, triggering_kind, triggering_reminder_id, owner_id,
			 recipient_id, title, description, scheduled_event_time, channel,
			 status, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		record.ExecutedAt,
		record.TriggeringKind,
		record.ReminderID,
		record.OwnerID,
		record.RecipientID,
		record.Title,
		record.Description,
		record.ScheduledEventTime,
		record.Channel,
		record.Status,
		record.Details,
	).Scan(&record.ID)
}

func (r *executionHistoryRepo) FindByReminderID(ctx context.Context, reminderID int64) ([]models.ExecutionHistory, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, executed_at, triggering_kind, triggering_reminder_id,
			owner_id, recipient_id, title, description, scheduled_event_time,
			channel, status, details
		FROM execution_history
		WHERE triggering_reminder_id = $1
		ORDER BY executed_at`, reminderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectHistory(rows)
}

func (r *executionHistoryRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, `
		DELETE FROM execution_history WHERE executed_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func collectHistory(rows pgx.Rows) ([]models.ExecutionHistory, error) {
	var records []models.ExecutionHistory
	for rows.Next() {
		var rec models.ExecutionHistory
		err := rows.Scan(
			&rec.ID,
			&rec.ExecutedAt,
			&rec.TriggeringKind,
			&rec.ReminderID,
			&rec.OwnerID,
			&rec.RecipientID,
			&rec.Title,
			&rec.Description,
			&rec.ScheduledEventTime,
			&rec.Channel,
			&rec.Status,
			&rec.Details,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
