package service

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	holdmodel "checkout-core/internal/domains/hold/model"
	holdsvc "checkout-core/internal/domains/hold/service"
	"checkout-core/internal/domains/order/model"
	"checkout-core/internal/domains/order/repository"
	productsvc "checkout-core/internal/domains/product/service"
	"checkout-core/internal/infrastructure/lock"
	"checkout-core/internal/shared/apperror"
	"checkout-core/pkg/database"
)

// OrderOps is the capability the webhook service depends on: turning a
// paid/cancelled settlement decision into the order's terminal state.
type OrderOps interface {
	CreateOrderFromHold(ctx context.Context, holdID int64) (*model.Order, error)
	MarkPaid(ctx context.Context, orderID int64) (*model.Order, error)
	Cancel(ctx context.Context, orderID int64) (*model.Order, error)
	Get(ctx context.Context, orderID int64) (*model.Order, error)
}

type orderOps struct {
	pool         *pgxpool.Pool
	repo         repository.Repository
	hold         holdsvc.HoldOps
	product      productsvc.ProductOps
	lk           *lock.Locker
	holdLockWait time.Duration
	holdLockTTL  time.Duration
}

func NewOrderOps(
	pool *pgxpool.Pool,
	repo repository.Repository,
	hold holdsvc.HoldOps,
	product productsvc.ProductOps,
	lk *lock.Locker,
	holdLockWait, holdLockTTL time.Duration,
) OrderOps {
	return &orderOps{
		pool:         pool,
		repo:         repo,
		hold:         hold,
		product:      product,
		lk:           lk,
		holdLockWait: holdLockWait,
		holdLockTTL:  holdLockTTL,
	}
}

// CreateOrderFromHold implements create_order_from_hold: lock the hold
// row inside the order's own transaction, verify it is still active,
// mark it used, price it against the product's current price, and
// insert the pending_payment order.
func (s *orderOps) CreateOrderFromHold(ctx context.Context, holdID int64) (*model.Order, error) {
	holdKey := lock.HoldKey(strconv.FormatInt(holdID, 10))
	release, err := s.lk.Acquire(ctx, holdKey, s.holdLockWait, s.holdLockTTL)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindHighContention, "hold lock contended", err)
	}
	defer release(ctx)

	return database.WithTransactionResult(ctx, s.pool, func(tx pgx.Tx) (*model.Order, error) {
		h, err := s.hold.LockForUpdate(ctx, tx, holdID)
		if err != nil {
			return nil, err
		}
		if existing, err := s.repo.GetByHoldID(ctx, tx, holdID); err == nil {
			return existing, nil
		} else if err != repository.ErrNotFound {
			return nil, apperror.Wrap(apperror.KindInternal, "check existing order", err)
		}

		if err := validateHoldForOrder(h); err != nil {
			return nil, err
		}

		product, err := s.product.GetForOrder(ctx, tx, h.ProductID)
		if err != nil {
			return nil, err
		}

		if err := s.hold.MarkUsed(ctx, tx, holdID); err != nil {
			return nil, err
		}

		o := &model.Order{
			HoldID: holdID,
			Status: model.StatusPendingPayment,
			Amount: product.Price.Mul(h.Qty),
		}
		if err := s.repo.Create(ctx, tx, o); err != nil {
			if err == repository.ErrAlreadyExists {
				return nil, apperror.New(apperror.KindInvalidTransition, "order already exists for this hold")
			}
			return nil, apperror.Wrap(apperror.KindInternal, "insert order", err)
		}
		return o, nil
	})
}

func validateHoldForOrder(h *holdmodel.Hold) error {
	if h.Used {
		return apperror.New(apperror.KindHoldAlreadyUsed, "hold already used")
	}
	if h.Released {
		return apperror.New(apperror.KindHoldReleased, "hold already released")
	}
	if !h.ExpiresAt.After(time.Now()) {
		return apperror.New(apperror.KindHoldExpired, "hold expired")
	}
	return nil
}

// MarkPaid implements the settlement path for a successful payment
// webhook: lock the order row, require pending_payment, flip to paid,
// and bump the product's stock_sold so the unit is permanently
// accounted for.
func (s *orderOps) MarkPaid(ctx context.Context, orderID int64) (*model.Order, error) {
	return database.WithTransactionResult(ctx, s.pool, func(tx pgx.Tx) (*model.Order, error) {
		o, err := s.repo.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			if err == repository.ErrNotFound {
				return nil, apperror.New(apperror.KindNotFound, "order not found")
			}
			return nil, apperror.Wrap(apperror.KindInternal, "lock order", err)
		}
		if o.Status == model.StatusPaid {
			return o, nil
		}
		if o.Status != model.StatusPendingPayment {
			return nil, apperror.New(apperror.KindInvalidTransition, "order is not pending payment")
		}

		h, err := s.hold.LockForUpdate(ctx, tx, o.HoldID)
		if err != nil {
			return nil, err
		}

		if err := s.product.IncrementStockSold(ctx, tx, h.ProductID, h.Qty); err != nil {
			return nil, err
		}
		if err := s.repo.UpdateStatus(ctx, tx, orderID, model.StatusPaid); err != nil {
			return nil, apperror.Wrap(apperror.KindInternal, "mark order paid", err)
		}
		o.Status = model.StatusPaid
		return o, nil
	})
}

// Cancel marks a pending order cancelled and releases its hold even
// though the hold is already used, freeing the reserved stock back to
// the pool.
func (s *orderOps) Cancel(ctx context.Context, orderID int64) (*model.Order, error) {
	var holdID int64
	order, err := database.WithTransactionResult(ctx, s.pool, func(tx pgx.Tx) (*model.Order, error) {
		o, err := s.repo.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			if err == repository.ErrNotFound {
				return nil, apperror.New(apperror.KindNotFound, "order not found")
			}
			return nil, apperror.Wrap(apperror.KindInternal, "lock order", err)
		}
		if o.Status == model.StatusCancelled {
			return o, nil
		}
		if o.Status != model.StatusPendingPayment {
			return nil, apperror.New(apperror.KindInvalidTransition, "order is not pending payment")
		}
		if err := s.repo.UpdateStatus(ctx, tx, orderID, model.StatusCancelled); err != nil {
			return nil, apperror.Wrap(apperror.KindInternal, "cancel order", err)
		}
		o.Status = model.StatusCancelled
		holdID = o.HoldID
		return o, nil
	})
	if err != nil {
		return nil, err
	}

	if holdID != 0 {
		if _, err := s.hold.ReleaseUsedHold(ctx, holdID); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (s *orderOps) Get(ctx context.Context, orderID int64) (*model.Order, error) {
	o, err := s.repo.Get(ctx, s.pool, orderID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperror.New(apperror.KindNotFound, "order not found")
		}
		return nil, apperror.Wrap(apperror.KindInternal, "load order", err)
	}
	return o, nil
}
