package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"checkout-core/internal/domains/product/model"
	"checkout-core/pkg/money"
)

var ErrNotFound = errors.New("product not found")

type Repository interface {
	// Get reads the product without locking, for the read-only GET
	// endpoint and for cache refreshes.
	Get(ctx context.Context, q Querier, productID int64) (*model.Product, error)
	// GetForUpdate takes a row lock on the product, used inside a
	// caller-owned transaction before any stock decision is made.
	GetForUpdate(ctx context.Context, q Querier, productID int64) (*model.Product, error)
	// IncrementStockSold bumps stock_sold by qty in a single atomic
	// UPDATE; the product row is not locked beforehand (MarkPaid holds
	// only the order and hold row locks).
	IncrementStockSold(ctx context.Context, q Querier, productID int64, qty int) error
	// UnusedActiveHoldQty sums the qty of holds on productID that are
	// neither used nor released and have not yet expired.
	UnusedActiveHoldQty(ctx context.Context, q Querier, productID int64) (int, error)
	// PendingSettlementQty sums the qty of holds on productID whose
	// order exists and is still pending_payment.
	PendingSettlementQty(ctx context.Context, q Querier, productID int64) (int, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	p := &model.Product{}
	var priceStr string
	err := row.Scan(&p.ID, &p.Name, &priceStr, &p.StockTotal, &p.StockSold, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	price, err := money.FromString(priceStr)
	if err != nil {
		return nil, err
	}
	p.Price = price
	return p, nil
}

func (r *postgresRepository) Get(ctx context.Context, q Querier, productID int64) (*model.Product, error) {
	const query = `
		SELECT id, name, price, stock_total, stock_sold, created_at, updated_at
		FROM products
		WHERE id = $1
	`
	return scanProduct(q.QueryRow(ctx, query, productID))
}

func (r *postgresRepository) GetForUpdate(ctx context.Context, q Querier, productID int64) (*model.Product, error) {
	const query = `
		SELECT id, name, price, stock_total, stock_sold, created_at, updated_at
		FROM products
		WHERE id = $1
		FOR UPDATE
	`
	return scanProduct(q.QueryRow(ctx, query, productID))
}

func (r *postgresRepository) IncrementStockSold(ctx context.Context, q Querier, productID int64, qty int) error {
	const query = `
		UPDATE products
		SET stock_sold = stock_sold + $2, updated_at = now()
		WHERE id = $1
	`
	tag, err := q.Exec(ctx, query, productID, qty)
	if err != nil {
		return fmt.Errorf("increment stock_sold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UnusedActiveHoldQty and PendingSettlementQty implement the two
// subqueries the stock calculator combines with stock_total/stock_sold
// to derive available stock. Both run against the holds/orders tables
// directly; the product repository owns this query rather than
// importing the hold or order packages, since it's plain SQL over
// tables those domains own, not a dependency on their Go types.
func (r *postgresRepository) UnusedActiveHoldQty(ctx context.Context, q Querier, productID int64) (int, error) {
	const query = `
		SELECT COALESCE(SUM(qty), 0)
		FROM holds
		WHERE product_id = $1
		AND NOT used
		AND NOT released
		AND expires_at > now()
	`
	var sum int
	if err := q.QueryRow(ctx, query, productID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum active hold qty: %w", err)
	}
	return sum, nil
}

func (r *postgresRepository) PendingSettlementQty(ctx context.Context, q Querier, productID int64) (int, error) {
	const query = `
		SELECT COALESCE(SUM(h.qty), 0)
		FROM holds h
		JOIN orders o ON o.hold_id = h.id
		WHERE h.product_id = $1
		AND h.used
		AND NOT h.released
		AND o.status = 'pending_payment'
	`
	var sum int
	if err := q.QueryRow(ctx, query, productID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum pending settlement qty: %w", err)
	}
	return sum, nil
}
