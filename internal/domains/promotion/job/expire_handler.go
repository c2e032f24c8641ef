package job

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"repairshop-backend/internal/domains/promotion/service"
	"repairshop-backend/pkg/logger"
)

// ================================================
// EXPIRE PROMOTIONS JOB HANDLER
// ================================================

// ExpirePromotionsHandler lật mọi promotion đã qua end_date sang EXPIRED
// (từ cả SCHEDULED, ACTIVE lẫn INACTIVE). Status chỉ là cache của date
// window - eligibility vẫn tự check window nên sweep trễ không làm
// promotion hết hạn được áp dụng.
type ExpirePromotionsHandler struct {
	promotionService service.ServiceInterface
}

func NewExpirePromotionsHandler(promotionService service.ServiceInterface) *ExpirePromotionsHandler {
	return &ExpirePromotionsHandler{promotionService: promotionService}
}

func (h *ExpirePromotionsHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	expired, err := h.promotionService.ExpireOverdue(ctx)
	if err != nil {
		return fmt.Errorf("expire promotions: %w", err)
	}
	if expired > 0 {
		logger.Info("Completed ExpirePromotions job", map[string]interface{}{
			"expired_count": expired,
		})
	}
	return nil
}
