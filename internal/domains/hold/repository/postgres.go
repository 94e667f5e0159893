package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"checkout-core/internal/domains/hold/model"
)

var ErrNotFound = errors.New("hold not found")

type Repository interface {
	Create(ctx context.Context, q Querier, h *model.Hold) error
	GetForUpdate(ctx context.Context, q Querier, holdID int64) (*model.Hold, error)
	Get(ctx context.Context, q Querier, holdID int64) (*model.Hold, error)
	MarkUsed(ctx context.Context, q Querier, holdID int64) error
	MarkReleased(ctx context.Context, q Querier, holdID int64) error
	// ListExpiredActive returns up to limit holds that are past their
	// expiry and neither used nor released, for the sweeper.
	ListExpiredActive(ctx context.Context, q Querier, limit int) ([]*model.Hold, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func scanHold(row pgx.Row) (*model.Hold, error) {
	h := &model.Hold{}
	err := row.Scan(&h.ID, &h.ProductID, &h.Qty, &h.ExpiresAt, &h.Used, &h.Released, &h.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan hold: %w", err)
	}
	return h, nil
}

func (r *postgresRepository) Create(ctx context.Context, q Querier, h *model.Hold) error {
	const query = `
		INSERT INTO holds (product_id, qty, expires_at, used, released, created_at)
		VALUES ($1, $2, $3, false, false, now())
		RETURNING id, created_at
	`
	err := q.QueryRow(ctx, query, h.ProductID, h.Qty, h.ExpiresAt).Scan(&h.ID, &h.CreatedAt)
	if err != nil {
		return fmt.Errorf("create hold: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetForUpdate(ctx context.Context, q Querier, holdID int64) (*model.Hold, error) {
	const query = `
		SELECT id, product_id, qty, expires_at, used, released, created_at
		FROM holds
		WHERE id = $1
		FOR UPDATE
	`
	return scanHold(q.QueryRow(ctx, query, holdID))
}

func (r *postgresRepository) Get(ctx context.Context, q Querier, holdID int64) (*model.Hold, error) {
	const query = `
		SELECT id, product_id, qty, expires_at, used, released, created_at
		FROM holds
		WHERE id = $1
	`
	return scanHold(q.QueryRow(ctx, query, holdID))
}

func (r *postgresRepository) MarkUsed(ctx context.Context, q Querier, holdID int64) error {
	const query = `UPDATE holds SET used = true WHERE id = $1`
	tag, err := q.Exec(ctx, query, holdID)
	if err != nil {
		return fmt.Errorf("mark hold used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) MarkReleased(ctx context.Context, q Querier, holdID int64) error {
	const query = `UPDATE holds SET released = true WHERE id = $1`
	tag, err := q.Exec(ctx, query, holdID)
	if err != nil {
		return fmt.Errorf("mark hold released: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) ListExpiredActive(ctx context.Context, q Querier, limit int) ([]*model.Hold, error) {
	const query = `
		SELECT id, product_id, qty, expires_at, used, released, created_at
		FROM holds
		WHERE expires_at <= now()
		AND NOT used
		AND NOT released
		ORDER BY expires_at ASC
		LIMIT $1
	`
	rows, err := q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired holds: %w", err)
	}
	defer rows.Close()

	var holds []*model.Hold
	for rows.Next() {
		h := &model.Hold{}
		if err := rows.Scan(&h.ID, &h.ProductID, &h.Qty, &h.ExpiresAt, &h.Used, &h.Released, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expired hold: %w", err)
		}
		holds = append(holds, h)
	}
	return holds, nil
}
