package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"repairshop-backend/internal/config"
	"repairshop-backend/internal/domains/promotion/model"
	"repairshop-backend/internal/shared"
	"repairshop-backend/pkg/logger"
)

type Scheduler struct {
	scheduler *asynq.Scheduler
	jobConfig config.JobConfig
}

func NewScheduler(redisAddress string, jobConfig config.JobConfig) *Scheduler {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: redisAddress},
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{
		scheduler: scheduler,
		jobConfig: jobConfig,
	}
}

// RegisterPromotionJobs đăng ký cả hai sweep job của promotion lifecycle
func (s *Scheduler) RegisterPromotionJobs() error {
	if err := s.registerActivateScheduledJob(); err != nil {
		return err
	}
	if err := s.registerExpirePromotionsJob(); err != nil {
		return err
	}
	return nil
}

// ================================================
// JOB 1: Activate Scheduled Promotions (every 5 minutes)
// ================================================
func (s *Scheduler) registerActivateScheduledJob() error {
	payload, err := json.Marshal(model.ActivateScheduledPayload{})
	if err != nil {
		return err
	}

	task := asynq.NewTask(shared.TypeActivateScheduledPromotions, payload)

	_, err = s.scheduler.Register(
		s.jobConfig.PromotionSweepCron,
		task,
		asynq.Queue(shared.QueuePromotion),
		asynq.MaxRetry(1),
		asynq.Timeout(2*time.Minute),
	)
	if err != nil {
		logger.Error("Failed to register ActivateScheduledPromotions job", err)
		return err
	}

	logger.Info("Registered ActivateScheduledPromotions job", map[string]interface{}{
		"cron": s.jobConfig.PromotionSweepCron,
	})
	return nil
}

// ================================================
// JOB 2: Expire Promotions (every 5 minutes)
// ================================================
func (s *Scheduler) registerExpirePromotionsJob() error {
	payload, err := json.Marshal(model.ExpirePromotionsPayload{})
	if err != nil {
		return err
	}

	task := asynq.NewTask(shared.TypeExpirePromotions, payload)

	_, err = s.scheduler.Register(
		s.jobConfig.PromotionSweepCron,
		task,
		asynq.Queue(shared.QueuePromotion),
		asynq.MaxRetry(1),
		asynq.Timeout(2*time.Minute),
	)
	if err != nil {
		logger.Error("Failed to register ExpirePromotions job", err)
		return err
	}

	logger.Info("Registered ExpirePromotions job", map[string]interface{}{
		"cron": s.jobConfig.PromotionSweepCron,
	})
	return nil
}

// Run blocks và chạy scheduler cho đến khi bị shutdown
func (s *Scheduler) Run() error {
	return s.scheduler.Run()
}

// Shutdown dừng scheduler gracefully
func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
