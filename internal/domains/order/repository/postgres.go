package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"checkout-core/internal/domains/order/model"
)

var ErrNotFound = errors.New("order not found")
var ErrAlreadyExists = errors.New("order already exists for this hold")

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type Repository interface {
	Create(ctx context.Context, q Querier, o *model.Order) error
	GetForUpdate(ctx context.Context, q Querier, orderID int64) (*model.Order, error)
	Get(ctx context.Context, q Querier, orderID int64) (*model.Order, error)
	GetByHoldID(ctx context.Context, q Querier, holdID int64) (*model.Order, error)
	UpdateStatus(ctx context.Context, q Querier, orderID int64, status model.Status) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	o := &model.Order{}
	var amountStr string
	err := row.Scan(&o.ID, &o.HoldID, &o.Status, &amountStr, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	amount, err := moneyFromString(amountStr)
	if err != nil {
		return nil, err
	}
	o.Amount = amount
	return o, nil
}

func (r *postgresRepository) Create(ctx context.Context, q Querier, o *model.Order) error {
	const query = `
		INSERT INTO orders (hold_id, status, amount, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING id, created_at, updated_at
	`
	err := q.QueryRow(ctx, query, o.HoldID, o.Status, o.Amount.StringFixed(2)).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetForUpdate(ctx context.Context, q Querier, orderID int64) (*model.Order, error) {
	const query = `
		SELECT id, hold_id, status, amount, created_at, updated_at
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`
	return scanOrder(q.QueryRow(ctx, query, orderID))
}

func (r *postgresRepository) Get(ctx context.Context, q Querier, orderID int64) (*model.Order, error) {
	const query = `
		SELECT id, hold_id, status, amount, created_at, updated_at
		FROM orders
		WHERE id = $1
	`
	return scanOrder(q.QueryRow(ctx, query, orderID))
}

func (r *postgresRepository) GetByHoldID(ctx context.Context, q Querier, holdID int64) (*model.Order, error) {
	const query = `
		SELECT id, hold_id, status, amount, created_at, updated_at
		FROM orders
		WHERE hold_id = $1
	`
	return scanOrder(q.QueryRow(ctx, query, holdID))
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, q Querier, orderID int64, status model.Status) error {
	const query = `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`
	tag, err := q.Exec(ctx, query, orderID, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
