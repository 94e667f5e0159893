package queue

import (
	"time"

	"github.com/hibiken/asynq"

	"checkout-core/pkg/logger"
)

// Scheduler registers the checkout core's two cron entries: the
// expired-hold sweep and the pending-webhook reconciliation sweep.
// Neither entry carries a payload; the worker's handlers do the
// actual discovery and dispatch (see hold/job and webhook/job).
type Scheduler struct {
	scheduler        *asynq.Scheduler
	sweepInterval    string
	reconcileCron    string
}

func NewScheduler(redisAddress, sweepInterval, reconcileCron string) *Scheduler {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: redisAddress},
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)
	return &Scheduler{scheduler: scheduler, sweepInterval: sweepInterval, reconcileCron: reconcileCron}
}

func (s *Scheduler) RegisterJobs() error {
	if err := s.registerSweepJob(); err != nil {
		return err
	}
	if err := s.registerReconcileJob(); err != nil {
		return err
	}
	return nil
}

func (s *Scheduler) registerSweepJob() error {
	task := asynq.NewTask(TypeExpireHolds, nil)

	_, err := s.scheduler.Register(
		s.sweepInterval,
		task,
		asynq.Queue(QueueHolds),
		asynq.MaxRetry(1),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		logger.Error("failed to register expire_holds sweep", err)
		return err
	}

	logger.Info("registered expire_holds sweep", map[string]interface{}{"interval": s.sweepInterval})
	return nil
}

func (s *Scheduler) registerReconcileJob() error {
	task := asynq.NewTask(TypeReconcileWebhooks, nil)

	_, err := s.scheduler.Register(
		s.reconcileCron,
		task,
		asynq.Queue(QueueWebhooks),
		asynq.MaxRetry(1),
		asynq.Timeout(time.Minute),
	)
	if err != nil {
		logger.Error("failed to register webhook reconciliation sweep", err)
		return err
	}

	logger.Info("registered webhook reconciliation sweep", map[string]interface{}{"interval": s.reconcileCron})
	return nil
}

func (s *Scheduler) Start() error {
	return s.scheduler.Run()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
