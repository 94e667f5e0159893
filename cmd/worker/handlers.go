package main

import (
	"github.com/hibiken/asynq"

	"checkout-core/internal/domains/hold/job"
	webhookjob "checkout-core/internal/domains/webhook/job"
	"checkout-core/internal/infrastructure/queue"
	"checkout-core/pkg/container"
)

// HandlerRegistry holds all job handlers the worker's ServeMux
// dispatches to.
type HandlerRegistry struct {
	sweep     *job.SweepHandler
	release   *job.ReleaseHandler
	reconcile *webhookjob.ReconcileHandler
}

func initializeHandlers(c *container.Container) *HandlerRegistry {
	return &HandlerRegistry{
		sweep:     c.HoldSweepHandler,
		release:   c.HoldReleaseHandler,
		reconcile: c.WebhookReconcileHandler,
	}
}

// RegisterHandlers registers all task handlers with the mux.
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(queue.TypeExpireHolds, h.sweep.ProcessTask)
	mux.HandleFunc(queue.TypeReleaseHold, h.release.ProcessTask)
	mux.HandleFunc(queue.TypeReconcileWebhooks, h.reconcile.ProcessTask)
}
