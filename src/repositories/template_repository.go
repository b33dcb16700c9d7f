package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reminder/src/models"
)

type TemplateRepository interface {
	FindAll(ctx context.Context) ([]models.ReminderTemplate, error)
	FindByID(ctx context.Context, id int64) (*models.ReminderTemplate, error)
	// FindNeedingBackfill returns templates whose watermark is null or
	// strictly below targetYearMonth (YYYYMM).
	FindNeedingBackfill(ctx context.Context, targetYearMonth int) ([]models.ReminderTemplate, error)
	CountByOwner(ctx context.Context, ownerID int64) (int64, error)
	Save(ctx context.Context, template *models.ReminderTemplate) error
	// SaveWithOccurrenceReset persists the template and deletes its
	// occurrences after the cutoff in one transaction, so a failed save
	// never strands the store without the rows. It returns how many
	// occurrences were removed.
	SaveWithOccurrenceReset(ctx context.Context, template *models.ReminderTemplate, deleteAfter time.Time) (int64, error)
	UpdateWatermark(ctx context.Context, id int64, yearMonth int) error
	DeleteByID(ctx context.Context, id int64) error
	// DeleteWithOccurrences removes the template and every occurrence it
	// generated in one transaction. A failure leaves both in place.
	DeleteWithOccurrences(ctx context.Context, id int64) (int64, error)
}

type templateRepo struct {
	DB *pgxpool.Pool
}

func NewTemplateRepository(db *pgxpool.Pool) TemplateRepository {
	return &templateRepo{DB: db}
}

const templateColumns = `
	id, owner_id, recipient_id, title, description, cron_expression,
	channel, valid_from, valid_until, max_executions, last_generated_ym,
	created_at, updated_at`

func scanTemplate(row pgx.Row) (*models.ReminderTemplate, error) {
	var t models.ReminderTemplate
	err := row.Scan(
		&t.ID,
		&t.OwnerID,
		&t.RecipientID,
		&t.Title,
		&t.Description,
		&t.CronExpression,
		&t.Channel,
		&t.ValidFrom,
		&t.ValidUntil,
		&t.MaxExecutions,
		&t.LastGeneratedYM,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *templateRepo) FindAll(ctx context.Context) ([]models.ReminderTemplate, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+templateColumns+`
		FROM reminder_templates
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTemplates(rows)
}

func (r *templateRepo) FindByID(ctx context.Context, id int64) (*models.ReminderTemplate, error) {
	t, err := scanTemplate(r.DB.QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM reminder_templates
		WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *templateRepo) FindNeedingBackfill(ctx context.Context, targetYearMonth int) ([]models.ReminderTemplate, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+templateColumns+`
		FROM reminder_templates
		WHERE last_generated_ym IS NULL OR last_generated_ym < $1
		ORDER BY id`, targetYearMonth)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTemplates(rows)
}

func (r *templateRepo) CountByOwner(ctx context.Context, ownerID int64) (int64, error) {
	var count int64
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM reminder_templates WHERE owner_id = $1`, ownerID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// rowQuerier is satisfied by both the pool and an open transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *templateRepo) Save(ctx context.Context, template *models.ReminderTemplate) error {
	if template.ID == 0 {
		return r.DB.QueryRow(ctx, `
			INSERT INTO reminder_templates
				(owner_id, recipient_id, title, description, cron_expression,
				 channel, valid_from, valid_until, max_executions, last_generated_ym)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id, created_at, updated_at`,
			template.OwnerID,
			template.RecipientID,
			template.Title,
			template.Description,
			template.CronExpression,
			template.Channel,
			template.ValidFrom,
			template.ValidUntil,
			template.MaxExecutions,
			template.LastGeneratedYM,
		).Scan(&template.ID, &template.CreatedAt, &template.UpdatedAt)
	}

	return updateTemplate(ctx, r.DB, template)
}

func (r *templateRepo) SaveWithOccurrenceReset(ctx context.Context, template *models.ReminderTemplate, deleteAfter time.Time) (int64, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		DELETE FROM reminders
		WHERE originating_template_id = $1 AND event_time > $2`,
		template.ID, deleteAfter)
	if err != nil {
		return 0, err
	}
	if err := updateTemplate(ctx, tx, template); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func updateTemplate(ctx context.Context, q rowQuerier, template *models.ReminderTemplate) error {
	return q.QueryRow(ctx, `
		UPDATE reminder_templates
		SET owner_id = $2, recipient_id = $3, title = $4, description = $5,
			cron_expression = $6, channel = $7, valid_from = $8,
			valid_until = $9, max_executions = $10, last_generated_ym = $11,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		template.ID,
		template.OwnerID,
		template.RecipientID,
		template.Title,
		template.Description,
		template.CronExpression,
		template.Channel,
		template.ValidFrom,
		template.ValidUntil,
		template.MaxExecutions,
		template.LastGeneratedYM,
	).Scan(&template.UpdatedAt)
}

func (r *templateRepo) UpdateWatermark(ctx context.Context, id int64, yearMonth int) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE reminder_templates
		SET last_generated_ym = $2, updated_at = NOW()
		WHERE id = $1`, id, yearMonth)
	return err
}

func (r *templateRepo) DeleteByID(ctx context.Context, id int64) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM reminder_templates WHERE id = $1`, id)
	return err
}

func (r *templateRepo) DeleteWithOccurrences(ctx context.Context, id int64) (int64, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		DELETE FROM reminders WHERE originating_template_id = $1`, id)
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM reminder_templates WHERE id = $1`, id); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func collectTemplates(rows pgx.Rows) ([]models.ReminderTemplate, error) {
	var templates []models.ReminderTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return templates, nil
}
