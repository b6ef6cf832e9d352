package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository/base"
)

// RecurringSlotRepository управляет шаблонами еженедельных слотов в базе данных
type RecurringSlotRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewRecurringSlotRepository создаёт новый репозиторий
func NewRecurringSlotRepository(pool *pgxpool.Pool, logger *zap.Logger) *RecurringSlotRepository {
	return &RecurringSlotRepository{
		pool:   pool,
		logger: logger,
	}
}

const recurringColumns = `id, owner_id, weekday, start_hour, start_minute, is_active, created_at, updated_at`

func (r *RecurringSlotRepository) list(ctx context.Context, query string, args ...any) ([]*model.RecurringSlotTemplate, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*model.RecurringSlotTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot template: %w", err)
		}
		templates = append(templates, tpl)
	}

	return templates, rows.Err()
}

func scanTemplate(row pgx.Row) (*model.RecurringSlotTemplate, error) {
	tpl := &model.RecurringSlotTemplate{}
	err := row.Scan(
		&tpl.ID,
		&tpl.OwnerID,
		&tpl.Weekday,
		&tpl.StartHour,
		&tpl.StartMinute,
		&tpl.IsActive,
		&tpl.CreatedAt,
		&tpl.UpdatedAt,
	)
	return tpl, err
}

// Create создаёт шаблон
func (r *RecurringSlotRepository) Create(ctx context.Context, tpl *model.RecurringSlotTemplate) error {
	query := `
		INSERT INTO recurring_slot_templates (id, owner_id, weekday, start_hour, start_minute, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(
		ctx,
		query,
		tpl.ID,
		tpl.OwnerID,
		tpl.Weekday,
		tpl.StartHour,
		tpl.StartMinute,
		tpl.IsActive,
		tpl.CreatedAt,
		tpl.UpdatedAt,
	)
	if err != nil {
		if base.IsUniqueViolation(err) {
			r.logger.Debug("Duplicate slot template", zap.String("owner_id", tpl.OwnerID.String()))
		}
		return fmt.Errorf("create slot template: %w", err)
	}

	return nil
}

// GetByID получает шаблон по ID
func (r *RecurringSlotRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.RecurringSlotTemplate, error) {
	query := `SELECT ` + recurringColumns + ` FROM recurring_slot_templates WHERE id = $1`

	tpl, err := scanTemplate(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot template: %w", err)
	}

	return tpl, nil
}

// ListByOwner шаблоны владельца
func (r *RecurringSlotRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.RecurringSlotTemplate, error) {
	query := `
		SELECT ` + recurringColumns + `
		FROM recurring_slot_templates
		WHERE owner_id = $1
		ORDER BY weekday, start_hour, start_minute
	`

	templates, err := r.list(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get slot templates by owner: %w", err)
	}
	return templates, nil
}

// ListActive все активные шаблоны, для генерации слотов
func (r *RecurringSlotRepository) ListActive(ctx context.Context) ([]*model.RecurringSlotTemplate, error) {
	query := `
		SELECT ` + recurringColumns + `
		FROM recurring_slot_templates
		WHERE is_active = true
		ORDER BY owner_id, weekday, start_hour, start_minute
	`

	templates, err := r.list(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get active slot templates: %w", err)
	}
	return templates, nil
}

// Deactivate деактивирует шаблон
func (r *RecurringSlotRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE recurring_slot_templates SET is_active = false, updated_at = NOW() WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivate slot template: %w", err)
	}

	return nil
}

// Delete удаляет шаблон. Уже созданные слоты остаются.
func (r *RecurringSlotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM recurring_slot_templates WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete slot template: %w", err)
	}

	return nil
}
