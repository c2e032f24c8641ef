package job

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"repairshop-backend/internal/domains/promotion/service"
	"repairshop-backend/pkg/logger"
)

// ================================================
// ACTIVATE SCHEDULED PROMOTIONS JOB HANDLER
// ================================================

// ActivateScheduledHandler lật SCHEDULED → ACTIVE cho mọi promotion đã
// đến start_date. Chạy mỗi 5 phút - đây là độ trễ tối đa giữa start_date
// và lúc promotion thực sự ACTIVE.
type ActivateScheduledHandler struct {
	promotionService service.ServiceInterface
}

func NewActivateScheduledHandler(promotionService service.ServiceInterface) *ActivateScheduledHandler {
	return &ActivateScheduledHandler{promotionService: promotionService}
}

func (h *ActivateScheduledHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	activated, err := h.promotionService.ActivateScheduled(ctx)
	if err != nil {
		return fmt.Errorf("activate scheduled promotions: %w", err)
	}
	if activated > 0 {
		logger.Info("Completed ActivateScheduledPromotions job", map[string]interface{}{
			"activated_count": activated,
		})
	}
	return nil
}
