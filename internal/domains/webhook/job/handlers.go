// Package job contains the asynq handler for the webhook
// reconciliation sweep.
package job

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"checkout-core/internal/domains/webhook/service"
)

type ReconcileHandler struct {
	ops       service.WebhookOps
	batchSize int
}

func NewReconcileHandler(ops service.WebhookOps, batchSize int) *ReconcileHandler {
	return &ReconcileHandler{ops: ops, batchSize: batchSize}
}

func (h *ReconcileHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	settled, err := h.ops.ReconcilePending(ctx, h.batchSize)
	if err != nil {
		return err
	}
	log.Info().Int("settled", settled).Msg("webhook reconciliation sweep complete")
	return nil
}
