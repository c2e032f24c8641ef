package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"repairshop-backend/internal/domains/promotion/model"
	"repairshop-backend/internal/domains/promotion/service"
	"repairshop-backend/internal/shared/response"
)

// AdminHandler expose API quản trị promotion (yêu cầu role admin)
type AdminHandler struct {
	service service.ServiceInterface
}

func NewAdminHandler(svc service.ServiceInterface) *AdminHandler {
	return &AdminHandler{service: svc}
}

// ════════════════════════════════════════════════════════════════
// CREATE: POST /v1/admin/promotions
// ════════════════════════════════════════════════════════════════

func (h *AdminHandler) Create(c *gin.Context) {
	var req model.CreatePromotionRequest
	if err := c.BindJSON(&req); err != nil {
		response.BadRequest(c, "Request body không hợp lệ")
		return
	}

	if err := req.Validate(); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest,
			string(model.ErrCodeValidationFailed), "Dữ liệu không hợp lệ", err)
		return
	}

	resp, err := h.service.CreatePromotion(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, resp)
}

// ════════════════════════════════════════════════════════════════
// LIST: GET /v1/admin/promotions?status=&scope=&search=&page=&limit=
// ════════════════════════════════════════════════════════════════

func (h *AdminHandler) List(c *gin.Context) {
	filter := &model.ListPromotionsFilter{
		Search: c.Query("search"),
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 20),
	}

	if s := c.Query("status"); s != "" {
		status := model.PromotionStatus(s)
		if !status.IsValid() {
			response.BadRequest(c, "status không hợp lệ")
			return
		}
		filter.Status = &status
	}
	if s := c.Query("scope"); s != "" {
		scope := model.PromotionScope(s)
		if !scope.IsValid() {
			response.BadRequest(c, "scope không hợp lệ")
			return
		}
		filter.Scope = &scope
	}

	promos, total, err := h.service.ListPromotions(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, promos, &response.Meta{
		Page:  filter.Page,
		Limit: filter.Limit,
		Total: total,
	})
}

// ════════════════════════════════════════════════════════════════
// DETAIL: GET /v1/admin/promotions/:id
// ════════════════════════════════════════════════════════════════

func (h *AdminHandler) GetByID(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	resp, err := h.service.GetPromotionDetail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp)
}

// ════════════════════════════════════════════════════════════════
// UPDATE STATUS: PATCH /v1/admin/promotions/:id/status
// ════════════════════════════════════════════════════════════════

func (h *AdminHandler) UpdateStatus(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateStatusRequest
	if err := c.BindJSON(&req); err != nil {
		response.BadRequest(c, "Request body không hợp lệ")
		return
	}
	if err := req.Validate(); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest,
			string(model.ErrCodeValidationFailed), "Dữ liệu không hợp lệ", err)
		return
	}

	resp, err := h.service.UpdateStatus(c.Request.Context(), id, model.PromotionStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp)
}

// ════════════════════════════════════════════════════════════════
// CONFLICTS: POST /v1/admin/promotions/:id/conflicts
//            DELETE /v1/admin/promotions/:id/conflicts/:otherId
// ════════════════════════════════════════════════════════════════

func (h *AdminHandler) DeclareConflict(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req model.DeclareConflictRequest
	if err := c.BindJSON(&req); err != nil {
		response.BadRequest(c, "Request body không hợp lệ")
		return
	}
	if err := req.Validate(); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest,
			string(model.ErrCodeValidationFailed), "Dữ liệu không hợp lệ", err)
		return
	}

	if err := h.service.DeclareConflict(c.Request.Context(), id, req.ConflictsWith); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"promotion_id":   id,
		"conflicts_with": req.ConflictsWith,
	})
}

func (h *AdminHandler) RemoveConflict(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	other, err := uuid.Parse(c.Param("otherId"))
	if err != nil {
		response.BadRequest(c, "otherId không phải UUID hợp lệ")
		return
	}

	if err := h.service.RemoveConflict(c.Request.Context(), id, other); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ════════════════════════════════════════════════════════════════
// USAGE: GET /v1/admin/promotions/:id/usage?page=&limit=
// ════════════════════════════════════════════════════════════════

func (h *AdminHandler) ListUsage(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)

	usages, total, err := h.service.ListUsage(c.Request.Context(), id, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, usages, &response.Meta{
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

// ----------------------------------------------------------------
// Helpers dùng chung cho handler package
// ----------------------------------------------------------------

// respondError map error từ service layer sang HTTP response:
// *model.AppError mang sẵn status + code, còn lại là 500
func respondError(c *gin.Context, err error) {
	var appErr *model.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		response.ErrorWithDetails(c, status, string(appErr.Code), appErr.Message, appErr.Details)
		return
	}
	response.ErrorResponse(c, http.StatusInternalServerError,
		string(model.ErrCodeInternalError), "Có lỗi xảy ra, vui lòng thử lại sau")
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, name+" không phải UUID hợp lệ")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	if raw := c.Query(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}
