// Package service implements the stock calculator and the product
// capability the hold, order and webhook services build on.
package service

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	productcache "checkout-core/internal/domains/product/cache"
	"checkout-core/internal/domains/product/model"
	"checkout-core/internal/domains/product/repository"
	"checkout-core/internal/infrastructure/lock"
	"checkout-core/internal/shared/apperror"
)

// ProductOps is the capability the hold service depends on: locking a
// product row inside its own transaction, learning the authoritative
// available count, and adjusting the cache on the happy and rollback
// paths. The order service uses it too, to bump stock_sold on a paid
// order.
type ProductOps interface {
	// GetView returns the public read model, served from cache when
	// fresh and recomputed from Postgres otherwise.
	GetView(ctx context.Context, productID int64) (*model.View, error)
	// LockAndGetAvailable takes the product row lock within tx and
	// returns the product plus its authoritative available stock
	// (spec's stock_total - stock_sold - unused_active_qty -
	// pending_payment_qty), computed in the same transaction snapshot.
	LockAndGetAvailable(ctx context.Context, tx pgx.Tx, productID int64) (*model.Product, int, error)
	// GetForOrder reads the product (price, name) within tx without
	// taking a row lock; price is immutable after creation so the
	// order service only needs a consistent read, not a lock.
	GetForOrder(ctx context.Context, tx pgx.Tx, productID int64) (*model.Product, error)
	// IncrementStockSold bumps stock_sold within tx; used by the order
	// service when a hold settles into a paid order.
	IncrementStockSold(ctx context.Context, tx pgx.Tx, productID int64, qty int) error
	// CacheDecrement/CacheIncrement adjust the advisory stock cache
	// after a hold is created/released, outside any DB transaction.
	CacheDecrement(ctx context.Context, productID int64, qty int)
	CacheIncrement(ctx context.Context, productID int64, qty int)
}

type productOps struct {
	pool          *pgxpool.Pool
	repo          repository.Repository
	cache         *productcache.Coordinator
	lk            *lock.Locker
	productWait   time.Duration
	productTTL    time.Duration
}

func NewProductOps(pool *pgxpool.Pool, repo repository.Repository, c *productcache.Coordinator, lk *lock.Locker, productLockWait, productLockTTL time.Duration) ProductOps {
	return &productOps{pool: pool, repo: repo, cache: c, lk: lk, productWait: productLockWait, productTTL: productLockTTL}
}

func (s *productOps) GetView(ctx context.Context, productID int64) (*model.View, error) {
	p, err := s.repo.Get(ctx, s.pool, productID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperror.New(apperror.KindNotFound, "product not found")
		}
		return nil, apperror.Wrap(apperror.KindInternal, "load product", err)
	}

	available, ok := s.cache.Get(ctx, productID)
	if !ok {
		available, err = s.computeAvailable(ctx, s.pool, p)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindInternal, "compute available stock", err)
		}
		s.cache.Refresh(ctx, productID, available)
	}

	return &model.View{
		ID:             p.ID,
		Name:           p.Name,
		Price:          p.Price,
		StockTotal:     p.StockTotal,
		StockSold:      p.StockSold,
		AvailableStock: available,
	}, nil
}

func (s *productOps) LockAndGetAvailable(ctx context.Context, tx pgx.Tx, productID int64) (*model.Product, int, error) {
	release, err := s.lk.Acquire(ctx, lock.ProductKey(strconv.FormatInt(productID, 10)), s.productWait, s.productTTL)
	if err != nil {
		return nil, 0, apperror.Wrap(apperror.KindHighContention, "product lock contended", err)
	}
	defer release(ctx)

	p, err := s.repo.GetForUpdate(ctx, tx, productID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, 0, apperror.New(apperror.KindNotFound, "product not found")
		}
		return nil, 0, apperror.Wrap(apperror.KindInternal, "lock product", err)
	}

	available, err := s.computeAvailable(ctx, tx, p)
	if err != nil {
		return nil, 0, apperror.Wrap(apperror.KindInternal, "compute available stock", err)
	}

	// The transaction snapshot is the source of truth; reconcile the
	// cache to it so the next read-through reflects what this
	// transaction just observed rather than a stale prior value.
	s.cache.Refresh(ctx, productID, available)

	return p, available, nil
}

func (s *productOps) GetForOrder(ctx context.Context, tx pgx.Tx, productID int64) (*model.Product, error) {
	p, err := s.repo.Get(ctx, tx, productID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperror.New(apperror.KindNotFound, "product not found")
		}
		return nil, apperror.Wrap(apperror.KindInternal, "load product", err)
	}
	return p, nil
}

func (s *productOps) computeAvailable(ctx context.Context, q repository.Querier, p *model.Product) (int, error) {
	activeQty, err := s.repo.UnusedActiveHoldQty(ctx, q, p.ID)
	if err != nil {
		return 0, err
	}
	pendingQty, err := s.repo.PendingSettlementQty(ctx, q, p.ID)
	if err != nil {
		return 0, err
	}
	available := p.StockTotal - p.StockSold - activeQty - pendingQty
	if available < 0 {
		available = 0
	}
	return available, nil
}

func (s *productOps) IncrementStockSold(ctx context.Context, tx pgx.Tx, productID int64, qty int) error {
	if err := s.repo.IncrementStockSold(ctx, tx, productID, qty); err != nil {
		if err == repository.ErrNotFound {
			return apperror.New(apperror.KindNotFound, "product not found")
		}
		return apperror.Wrap(apperror.KindInternal, "increment stock_sold", err)
	}
	return nil
}

func (s *productOps) CacheDecrement(ctx context.Context, productID int64, qty int) {
	s.cache.Decrement(ctx, productID, qty)
}

func (s *productOps) CacheIncrement(ctx context.Context, productID int64, qty int) {
	s.cache.Increment(ctx, productID, qty)
}
