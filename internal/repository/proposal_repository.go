package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository/base"
)

const proposalColumns = `id, chat_id, proposer_id, counterpart_id, tutor_id, subject, start_time, end_time,
	status, expires_at, session_id, parent_id, round, cancellation_reason, responded_at,
	version, created_at, updated_at`

// ProposalRepository предложения времени занятий
type ProposalRepository struct {
	*base.Repository
}

func NewProposalRepository(pool *pgxpool.Pool) *ProposalRepository {
	return &ProposalRepository{Repository: base.NewRepository(pool)}
}

func scanProposal(row pgx.Row) (*model.Proposal, error) {
	var p model.Proposal
	err := row.Scan(
		&p.ID,
		&p.ChatID,
		&p.ProposerID,
		&p.CounterpartID,
		&p.TutorID,
		&p.Subject,
		&p.StartTime,
		&p.EndTime,
		&p.Status,
		&p.ExpiresAt,
		&p.SessionID,
		&p.ParentID,
		&p.Round,
		&p.CancellationReason,
		&p.RespondedAt,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectProposals(rows pgx.Rows) ([]*model.Proposal, error) {
	defer rows.Close()

	var out []*model.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func insertProposal(ctx context.Context, db base.DBTX, p *model.Proposal) error {
	query := `
		INSERT INTO proposals (id, chat_id, proposer_id, counterpart_id, tutor_id, subject, start_time,
			end_time, status, expires_at, parent_id, round, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := db.Exec(ctx, query,
		p.ID,
		p.ChatID,
		p.ProposerID,
		p.CounterpartID,
		p.TutorID,
		p.Subject,
		p.StartTime,
		p.EndTime,
		p.Status,
		p.ExpiresAt,
		p.ParentID,
		p.Round,
		p.Version,
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}

func updateProposal(ctx context.Context, db base.DBTX, p *model.Proposal, expectedVersion int64) error {
	query := `
		UPDATE proposals
		SET status = $3, session_id = $4, cancellation_reason = $5, responded_at = $6,
			updated_at = $7, version = version + 1
		WHERE id = $1 AND version = $2
	`

	return base.ExecCAS(ctx, db, query,
		p.ID,
		expectedVersion,
		p.Status,
		p.SessionID,
		p.CancellationReason,
		p.RespondedAt,
		p.UpdatedAt,
	)
}

// Create сохраняет предложение
func (r *ProposalRepository) Create(ctx context.Context, p *model.Proposal) error {
	if err := insertProposal(ctx, r.Pool(), p); err != nil {
		return fmt.Errorf("create proposal: %w", err)
	}
	return nil
}

// GetByID получает предложение по ID
func (r *ProposalRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = $1`

	p, err := scanProposal(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get proposal by id: %w", err)
	}

	return p, nil
}

// Update записывает предложение при совпадении версии
func (r *ProposalRepository) Update(ctx context.Context, p *model.Proposal, expectedVersion int64) error {
	if err := updateProposal(ctx, r.Pool(), p, expectedVersion); err != nil {
		return fmt.Errorf("update proposal: %w", err)
	}
	p.Version = expectedVersion + 1
	return nil
}

// CounterPropose закрывает исходное предложение и создаёт встречное в одной транзакции
func (r *ProposalRepository) CounterPropose(ctx context.Context, original *model.Proposal, expectedVersion int64, counter *model.Proposal) error {
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		if err := updateProposal(ctx, tx, original, expectedVersion); err != nil {
			return err
		}
		return insertProposal(ctx, tx, counter)
	})
	if err != nil {
		return fmt.Errorf("counter propose: %w", err)
	}

	original.Version = expectedVersion + 1
	return nil
}

// ListByChat история предложений чата
func (r *ProposalRepository) ListByChat(ctx context.Context, chatID uuid.UUID, filter model.ListFilter) ([]*model.Proposal, error) {
	filter = filter.Normalized()
	query := `
		SELECT ` + proposalColumns + `
		FROM proposals
		WHERE chat_id = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3
	`

	rows, err := r.Query(ctx, query, chatID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list proposals by chat: %w", err)
	}
	return collectProposals(rows)
}

// ListExpirable открытые предложения с истёкшим сроком ответа
func (r *ProposalRepository) ListExpirable(ctx context.Context, now time.Time, limit int) ([]*model.Proposal, error) {
	query := `
		SELECT ` + proposalColumns + `
		FROM proposals
		WHERE status = 'PROPOSED' AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
	`

	rows, err := r.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expirable proposals: %w", err)
	}
	return collectProposals(rows)
}

// ListAcceptedWithoutSession принятые предложения без записи в sessions
func (r *ProposalRepository) ListAcceptedWithoutSession(ctx context.Context, limit int) ([]*model.Proposal, error) {
	query := `
		SELECT ` + prefixed("p", proposalColumns) + `
		FROM proposals p
		LEFT JOIN sessions s ON s.id = p.session_id
		WHERE p.status = 'ACCEPTED' AND p.session_id IS NOT NULL AND s.id IS NULL
		ORDER BY p.updated_at
		LIMIT $1
	`

	rows, err := r.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list accepted proposals without session: %w", err)
	}
	return collectProposals(rows)
}
