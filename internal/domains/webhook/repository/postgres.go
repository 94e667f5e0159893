package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"checkout-core/internal/domains/webhook/model"
)

var ErrDuplicate = errors.New("webhook already recorded")
var ErrNotFound = errors.New("webhook log not found")

type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type Repository interface {
	// Create inserts a new log row; returns ErrDuplicate if the
	// idempotency key was already recorded by a concurrent or earlier
	// delivery of the same event.
	Create(ctx context.Context, q Querier, log *model.WebhookLog) error
	GetByIdempotencyKey(ctx context.Context, q Querier, key string) (*model.WebhookLog, error)
	MarkProcessed(ctx context.Context, q Querier, id int64) error
	// ListPendingOrder returns logs still waiting on their order to
	// exist, for the reconciliation sweep.
	ListPendingOrder(ctx context.Context, q Querier, limit int) ([]*model.WebhookLog, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func scanLog(row pgx.Row) (*model.WebhookLog, error) {
	l := &model.WebhookLog{}
	err := row.Scan(&l.ID, &l.IdempotencyKey, &l.OrderID, &l.Outcome, &l.Payload, &l.Status, &l.ProcessedAt, &l.ReceivedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan webhook log: %w", err)
	}
	return l, nil
}

func (r *postgresRepository) Create(ctx context.Context, q Querier, log *model.WebhookLog) error {
	const query = `
		INSERT INTO webhook_logs (idempotency_key, order_id, outcome, payload, status, received_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, received_at
	`
	err := q.QueryRow(ctx, query, log.IdempotencyKey, log.OrderID, log.Outcome, log.Payload, log.Status).
		Scan(&log.ID, &log.ReceivedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("create webhook log: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByIdempotencyKey(ctx context.Context, q Querier, key string) (*model.WebhookLog, error) {
	const query = `
		SELECT id, idempotency_key, order_id, outcome, payload, status, processed_at, received_at
		FROM webhook_logs
		WHERE idempotency_key = $1
	`
	return scanLog(q.QueryRow(ctx, query, key))
}

func (r *postgresRepository) MarkProcessed(ctx context.Context, q Querier, id int64) error {
	const query = `UPDATE webhook_logs SET status = $2, processed_at = now() WHERE id = $1`
	tag, err := q.Exec(ctx, query, id, model.StatusProcessed)
	if err != nil {
		return fmt.Errorf("mark webhook processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) ListPendingOrder(ctx context.Context, q Querier, limit int) ([]*model.WebhookLog, error) {
	const query = `
		SELECT id, idempotency_key, order_id, outcome, payload, status, processed_at, received_at
		FROM webhook_logs
		WHERE status = $1
		ORDER BY received_at ASC
		LIMIT $2
	`
	rows, err := q.Query(ctx, query, model.StatusPendingOrder, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending webhook logs: %w", err)
	}
	defer rows.Close()

	var logs []*model.WebhookLog
	for rows.Next() {
		l := &model.WebhookLog{}
		if err := rows.Scan(&l.ID, &l.IdempotencyKey, &l.OrderID, &l.Outcome, &l.Payload, &l.Status, &l.ProcessedAt, &l.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan pending webhook log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, nil
}
