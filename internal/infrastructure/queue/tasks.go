// Package queue wires the checkout core's asynchronous jobs onto
// asynq: a uniquely-keyed release task per expired hold, the cron
// sweep that discovers and enqueues them, and the cron webhook
// reconciliation sweep.
package queue

import "fmt"

const (
	TypeReleaseHold       = "hold:release"
	TypeExpireHolds       = "hold:expire_sweep"
	TypeReconcileWebhooks = "webhook:reconcile_sweep"

	QueueHolds    = "holds"
	QueueWebhooks = "webhooks"
)

// ReleaseHoldTaskID makes the release task idempotent at the asynq
// level: enqueuing the same hold twice (e.g. the sweeper running
// again before the first task finishes) is a no-op, not a duplicate
// release attempt.
func ReleaseHoldTaskID(holdID int64) string {
	return fmt.Sprintf("release_hold_%d", holdID)
}
