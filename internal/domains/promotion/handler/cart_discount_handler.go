package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"repairshop-backend/internal/domains/promotion/model"
	"repairshop-backend/internal/domains/promotion/service"
	"repairshop-backend/internal/shared/response"
)

// CartDiscountHandler expose API tính giảm giá cho order flow.
// Preview là public, confirm/cancel dành cho order service (internal).
type CartDiscountHandler struct {
	engine service.EngineInterface
}

func NewCartDiscountHandler(engine service.EngineInterface) *CartDiscountHandler {
	return &CartDiscountHandler{engine: engine}
}

// ════════════════════════════════════════════════════════════════
// PREVIEW: POST /v1/cart/discounts/preview
// ════════════════════════════════════════════════════════════════

// Preview tính thử toàn bộ giảm giá cho giỏ hàng. Không ghi nhận usage -
// khách gọi bao nhiêu lần cũng được (mỗi lần đổi giỏ/mã).
func (h *CartDiscountHandler) Preview(c *gin.Context) {
	var req model.PreviewCartRequest
	if err := c.BindJSON(&req); err != nil {
		response.BadRequest(c, "Request body không hợp lệ")
		return
	}
	if err := req.Validate(); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest,
			string(model.ErrCodeValidationFailed), "Dữ liệu không hợp lệ", err)
		return
	}

	result, err := h.engine.PreviewCart(c.Request.Context(), req.ToCartContext())
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// ════════════════════════════════════════════════════════════════
// CONFIRM: POST /v1/orders/discounts/confirm
// ════════════════════════════════════════════════════════════════

// Confirm tính lại giảm giá với data tươi và ghi nhận usage cho order.
// Trả 409 BIZ_QUOTA_EXCEEDED nếu một promotion hết lượt giữa preview và
// confirm - order flow phải cho khách xem lại giỏ.
func (h *CartDiscountHandler) Confirm(c *gin.Context) {
	var req model.ConfirmOrderRequest
	if err := c.BindJSON(&req); err != nil {
		response.BadRequest(c, "Request body không hợp lệ")
		return
	}
	if err := req.Validate(); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest,
			string(model.ErrCodeValidationFailed), "Dữ liệu không hợp lệ", err)
		return
	}

	result, err := h.engine.ConfirmOrder(c.Request.Context(), req.OrderID, req.ToCartContext())
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// ════════════════════════════════════════════════════════════════
// CANCEL: DELETE /v1/orders/:orderId/discounts
// ════════════════════════════════════════════════════════════════

// Cancel hoàn tác mọi usage của order khi order bị hủy. Idempotent.
func (h *CartDiscountHandler) Cancel(c *gin.Context) {
	orderID, ok := paramUUID(c, "orderId")
	if !ok {
		return
	}

	if err := h.engine.CancelOrder(c.Request.Context(), orderID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
