package main

import (
	"github.com/hibiken/asynq"

	promoJob "repairshop-backend/internal/domains/promotion/job"
	"repairshop-backend/internal/shared"
	"repairshop-backend/pkg/container"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	activateScheduled *promoJob.ActivateScheduledHandler
	expirePromotions  *promoJob.ExpirePromotionsHandler
}

// initializeHandlers creates all job handlers with their dependencies
func initializeHandlers(c *container.Container) *HandlerRegistry {
	return &HandlerRegistry{
		activateScheduled: promoJob.NewActivateScheduledHandler(c.PromotionService),
		expirePromotions:  promoJob.NewExpirePromotionsHandler(c.PromotionService),
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(shared.TypeActivateScheduledPromotions, h.activateScheduled.ProcessTask)
	mux.HandleFunc(shared.TypeExpirePromotions, h.expirePromotions.ProcessTask)
}
