// Package job contains the asynq task handlers for hold expiry: a
// cron-triggered sweep that finds holds past their expiry and, for
// each, a uniquely-keyed release task.
package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"checkout-core/internal/domains/hold/repository"
	"checkout-core/internal/domains/hold/service"
	"checkout-core/internal/infrastructure/queue"
)

const sweepBatchSize = 500

type releasePayload struct {
	HoldID int64 `json:"hold_id"`
}

// SweepHandler runs on the cron schedule: it lists expired, still
// active holds and enqueues one release task per hold, keyed so a
// hold already queued for release is never enqueued twice.
type SweepHandler struct {
	repo   repository.Repository
	pool   *pgxpool.Pool
	client *asynq.Client
}

func NewSweepHandler(repo repository.Repository, pool *pgxpool.Pool, client *asynq.Client) *SweepHandler {
	return &SweepHandler{repo: repo, pool: pool, client: client}
}

func (h *SweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	holds, err := h.repo.ListExpiredActive(ctx, h.pool, sweepBatchSize)
	if err != nil {
		return fmt.Errorf("list expired holds: %w", err)
	}

	for _, hold := range holds {
		payload, err := json.Marshal(releasePayload{HoldID: hold.ID})
		if err != nil {
			return fmt.Errorf("marshal release payload: %w", err)
		}

		task := asynq.NewTask(queue.TypeReleaseHold, payload)
		_, err = h.client.EnqueueContext(ctx, task,
			asynq.TaskID(queue.ReleaseHoldTaskID(hold.ID)),
			asynq.Queue(queue.QueueHolds),
			asynq.MaxRetry(3),
		)
		if err != nil && err != asynq.ErrTaskIDConflict {
			log.Error().Err(err).Int64("hold_id", hold.ID).Msg("enqueue release_hold failed")
		}
	}

	log.Info().Int("count", len(holds)).Msg("expire_holds sweep enqueued releases")
	return nil
}

// ReleaseHandler processes a single release_hold task.
type ReleaseHandler struct {
	ops service.HoldOps
}

func NewReleaseHandler(ops service.HoldOps) *ReleaseHandler {
	return &ReleaseHandler{ops: ops}
}

func (h *ReleaseHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p releasePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal release payload: %w", err)
	}

	released, err := h.ops.ReleaseHold(ctx, p.HoldID)
	if err != nil {
		return fmt.Errorf("release hold %d: %w", p.HoldID, err)
	}
	if !released {
		log.Debug().Int64("hold_id", p.HoldID).Msg("hold already settled, release skipped")
	}
	return nil
}
