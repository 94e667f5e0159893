package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	ordermodel "checkout-core/internal/domains/order/model"
	ordersvc "checkout-core/internal/domains/order/service"
	"checkout-core/internal/domains/webhook/model"
	"checkout-core/internal/domains/webhook/repository"
	"checkout-core/internal/shared/apperror"
)

// Result is what the HTTP handler turns into the webhook response
// body: the spec's success/failed/already_processed/pending_order
// status vocabulary.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	OrderID *int64 `json:"order_id,omitempty"`
}

type inboundPayload struct {
	IdempotencyKey string `json:"idempotency_key"`
	OrderID        int64  `json:"order_id"`
	PaymentStatus  string `json:"payment_status"`
}

// WebhookOps receives payment-gateway callbacks and settles the
// matching order, guarding against duplicate delivery and against the
// gateway's notification beating the order's own creation.
type WebhookOps interface {
	Handle(ctx context.Context, rawPayload []byte) (*Result, error)
	// ReconcilePending re-attempts settlement for logs recorded before
	// their order existed; run on a schedule by the worker.
	ReconcilePending(ctx context.Context, limit int) (int, error)
}

type webhookOps struct {
	pool  *pgxpool.Pool
	repo  repository.Repository
	order ordersvc.OrderOps
}

func NewWebhookOps(pool *pgxpool.Pool, repo repository.Repository, order ordersvc.OrderOps) WebhookOps {
	return &webhookOps{pool: pool, repo: repo, order: order}
}

// Handle implements the webhook settlement algorithm:
//  1. parse the payload
//  2. check for a prior delivery of the same event by idempotency_key;
//     if found, report already processed without touching the order
//  3. look up the order; a KindNotFound means it doesn't exist yet, so
//     record the log as pending_order and return, to be picked up by
//     reconciliation. Any other lookup error (DB unreachable, etc.) is
//     a real failure and is returned as-is rather than deferred.
//  4. otherwise settle the order (mark paid or cancel) first, then
//     insert the log row as processed — settling before recording
//     means a mid-settlement failure leaves no log row behind, so a
//     redelivery retries settlement instead of short-circuiting to
//     already_processed against an order that was never settled. A
//     unique-violation on the insert means a concurrent delivery of
//     the same event already recorded it; since MarkPaid/Cancel are
//     themselves idempotent on order status, that race is harmless.
func (s *webhookOps) Handle(ctx context.Context, rawPayload []byte) (*Result, error) {
	var in inboundPayload
	if err := json.Unmarshal(rawPayload, &in); err != nil {
		return nil, apperror.Wrap(apperror.KindValidationFailed, "invalid webhook payload", err)
	}
	if in.IdempotencyKey == "" || in.OrderID == 0 || in.PaymentStatus == "" {
		return nil, apperror.New(apperror.KindMissingField, "order_id, payment_status and idempotency_key are required")
	}
	outcome := model.Outcome(in.PaymentStatus)
	if outcome != model.OutcomeSuccess && outcome != model.OutcomeFailed {
		return nil, apperror.New(apperror.KindInvalidPayment, fmt.Sprintf("unknown payment_status %q", in.PaymentStatus))
	}

	// A prior delivery of the same event may already have been
	// recorded; the unique constraint on Create is the race-safe
	// backstop, this lookup just avoids the insert attempt on the
	// common repeat-delivery path.
	if _, err := s.repo.GetByIdempotencyKey(ctx, s.pool, in.IdempotencyKey); err == nil {
		return &Result{Status: "already_processed", Message: "webhook already handled"}, nil
	} else if err != repository.ErrNotFound {
		return nil, apperror.Wrap(apperror.KindInternal, "lookup webhook log", err)
	}

	order, lookupErr := s.order.Get(ctx, in.OrderID)
	if lookupErr != nil {
		if apperror.As(lookupErr).Kind != apperror.KindNotFound {
			return nil, lookupErr
		}
		logRow := &model.WebhookLog{
			IdempotencyKey: in.IdempotencyKey,
			OrderID:        in.OrderID,
			Outcome:        outcome,
			Payload:        rawPayload,
			Status:         model.StatusPendingOrder,
		}
		if err := s.repo.Create(ctx, s.pool, logRow); err != nil {
			if err == repository.ErrDuplicate {
				return &Result{Status: "already_processed", Message: "webhook already handled"}, nil
			}
			return nil, apperror.Wrap(apperror.KindInternal, "record webhook", err)
		}
		return &Result{Status: "pending_order", Message: "order not yet created, will reconcile"}, nil
	}

	if err := s.applySettlement(ctx, order, outcome); err != nil {
		return nil, err
	}

	logRow := &model.WebhookLog{
		IdempotencyKey: in.IdempotencyKey,
		OrderID:        in.OrderID,
		Outcome:        outcome,
		Payload:        rawPayload,
		Status:         model.StatusProcessed,
	}
	if err := s.repo.Create(ctx, s.pool, logRow); err != nil {
		if err == repository.ErrDuplicate {
			return &Result{Status: "already_processed", Message: "webhook already handled"}, nil
		}
		return nil, apperror.Wrap(apperror.KindInternal, "record webhook", err)
	}

	status := "success"
	if outcome == model.OutcomeFailed {
		status = "failed"
	}
	return &Result{Status: status, Message: "webhook processed", OrderID: &in.OrderID}, nil
}

// applySettlement turns a payment outcome into the order's terminal
// state. It is idempotent via Order Manager's own status checks, so
// calling it twice for the same order (a settle-then-insert race, or
// a reconciliation re-attempt) is safe.
func (s *webhookOps) applySettlement(ctx context.Context, order *ordermodel.Order, outcome model.Outcome) error {
	switch outcome {
	case model.OutcomeSuccess:
		_, err := s.order.MarkPaid(ctx, order.ID)
		return err
	case model.OutcomeFailed:
		_, err := s.order.Cancel(ctx, order.ID)
		return err
	default:
		return apperror.New(apperror.KindInvalidPayment, fmt.Sprintf("unknown payment_status %q", outcome))
	}
}

// ReconcilePending re-checks pending_order logs against the order
// table; an order created after the webhook arrived settles here
// instead of being lost.
func (s *webhookOps) ReconcilePending(ctx context.Context, limit int) (int, error) {
	logs, err := s.repo.ListPendingOrder(ctx, s.pool, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending webhook logs: %w", err)
	}

	settled := 0
	for _, logRow := range logs {
		order, err := s.order.Get(ctx, logRow.OrderID)
		if err != nil {
			continue
		}
		if err := s.applySettlement(ctx, order, logRow.Outcome); err != nil {
			log.Error().Err(err).Int64("webhook_log_id", logRow.ID).Msg("reconcile pending webhook failed")
			continue
		}
		if err := s.repo.MarkProcessed(ctx, s.pool, logRow.ID); err != nil {
			log.Error().Err(err).Int64("webhook_log_id", logRow.ID).Msg("mark reconciled webhook processed failed")
			continue
		}
		settled++
	}
	return settled, nil
}
