package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"repairshop-backend/internal/domains/promotion/model"
	"repairshop-backend/internal/domains/promotion/repository"
	"repairshop-backend/internal/shared/utils"
	"repairshop-backend/pkg/cache"
	"repairshop-backend/pkg/logger"
)

// promotionService xử lý business logic cho promotion admin
type promotionService struct {
	repo   repository.PromotionRepository
	ledger repository.UsageLedger
	cache  cache.Cache
}

// NewPromotionService tạo service instance mới
func NewPromotionService(
	repo repository.PromotionRepository,
	ledger repository.UsageLedger,
	cacheClient cache.Cache,
) ServiceInterface {
	return &promotionService{
		repo:   repo,
		ledger: ledger,
		cache:  cacheClient,
	}
}

// -------------------------------------------------------------------
// CREATE PROMOTION
// -------------------------------------------------------------------

// CreatePromotion tạo promotion mới, luôn ở trạng thái SCHEDULED.
// Scheduler sweep sẽ đẩy sang ACTIVE khi đến start_date - kể cả khi
// start_date đã qua tại thời điểm tạo (sweep kế tiếp xử lý trong 5 phút).
func (s *promotionService) CreatePromotion(ctx context.Context, req *model.CreatePromotionRequest) (*model.PromotionResponse, error) {
	req.NormalizeCode()

	startDate, endDate, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	// requires_code mà không có code thì promotion không bao giờ chạy được
	if req.RequiresCode && req.Code == nil {
		return nil, &model.AppError{
			Code:       model.ErrCodeValidationFailed,
			Message:    "Khuyến mãi yêu cầu mã thì phải có code",
			HTTPStatus: http.StatusBadRequest,
		}
	}

	// Check duplicate code (case-insensitive)
	if req.Code != nil {
		exists, err := s.repo.CheckCodeExists(ctx, *req.Code, nil)
		if err != nil {
			return nil, fmt.Errorf("check code exists: %w", err)
		}
		if exists {
			return nil, &model.AppError{
				Code:       model.ErrCodeDuplicateCode,
				Message:    fmt.Sprintf("Mã %s đã tồn tại", *req.Code),
				HTTPStatus: http.StatusConflict,
			}
		}
	}

	now := time.Now()
	promo := &model.Promotion{
		ID:                    uuid.New(),
		Code:                  req.Code,
		Name:                  req.Name,
		Type:                  model.PromotionType(req.Type),
		Scope:                 model.PromotionScope(req.Scope),
		Value:                 decimal.NewFromFloat(req.Value),
		ApplicableTiers:       req.ApplicableTiers,
		ApplicableCategoryIDs: req.ApplicableCategoryIDs,
		ApplicableProductIDs:  req.ApplicableProductIDs,
		RequiresCode:          req.RequiresCode,
		UsageLimit:            req.UsageLimit,
		UsagePerCustomer:      req.UsagePerCustomer,
		Priority:              req.Priority,
		StartDate:             startDate,
		EndDate:               endDate,
		Status:                model.PromotionStatusScheduled,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	promo.MaxDiscountAmount = utils.ParseFloatToDecimal(req.MaxDiscountAmount)
	promo.MinOrderValue = utils.ParseFloatToDecimal(req.MinOrderValue)

	if err := s.repo.Create(ctx, promo); err != nil {
		if errors.Is(err, model.ErrDuplicateCode) {
			return nil, &model.AppError{
				Code:       model.ErrCodeDuplicateCode,
				Message:    fmt.Sprintf("Mã %s đã tồn tại", promo.DisplayName()),
				HTTPStatus: http.StatusConflict,
			}
		}
		return nil, fmt.Errorf("create promotion: %w", err)
	}

	s.invalidateCandidateCache(ctx)

	logger.Info("Đã tạo promotion mới", map[string]interface{}{
		"promotion_id": promo.ID.String(),
		"name":         promo.Name,
		"scope":        promo.Scope,
	})

	return promo.ToResponse(), nil
}

// -------------------------------------------------------------------
// LIST / DETAIL
// -------------------------------------------------------------------

// ListPromotions trả về danh sách phân trang cho admin
func (s *promotionService) ListPromotions(ctx context.Context, filter *model.ListPromotionsFilter) ([]*model.PromotionResponse, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}

	promos, total, err := s.repo.ListAdmin(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list promotions: %w", err)
	}

	responses := make([]*model.PromotionResponse, len(promos))
	for i, p := range promos {
		responses[i] = p.ToResponse()
	}
	return responses, total, nil
}

// GetPromotionDetail trả về promotion kèm conflict pairs và usage stats
func (s *promotionService) GetPromotionDetail(ctx context.Context, id uuid.UUID) (*model.PromotionDetailResponse, error) {
	promo, err := s.findPromotion(ctx, id)
	if err != nil {
		return nil, err
	}

	conflictIDs, err := s.repo.ConflictsOf(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load conflicts: %w", err)
	}

	stats, err := s.ledger.GetUsageStats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load usage stats: %w", err)
	}

	return &model.PromotionDetailResponse{
		PromotionResponse:     *promo.ToResponse(),
		ApplicableTiers:       promo.ApplicableTiers,
		ApplicableCategoryIDs: promo.ApplicableCategoryIDs,
		ApplicableProductIDs:  promo.ApplicableProductIDs,
		UsagePerCustomer:      promo.UsagePerCustomer,
		ConflictingIDs:        conflictIDs,
		Stats:                 stats,
		CreatedAt:             promo.CreatedAt,
		UpdatedAt:             promo.UpdatedAt,
	}, nil
}

// -------------------------------------------------------------------
// UPDATE STATUS (admin override)
// -------------------------------------------------------------------

// UpdateStatus cho admin bật/tắt promotion thủ công.
//
// Business Logic:
// - Chỉ nhận target ACTIVE hoặc INACTIVE (SCHEDULED/EXPIRED do scheduler sở hữu)
// - EXPIRED là trạng thái chết - không hồi sinh được
// - Bật ACTIVE chỉ hợp lệ khi đang trong date window, ngoài window thì
//   sweep kế tiếp cũng sẽ lật lại ngay nên từ chối luôn cho rõ ràng
func (s *promotionService) UpdateStatus(ctx context.Context, id uuid.UUID, status model.PromotionStatus) (*model.PromotionResponse, error) {
	promo, err := s.findPromotion(ctx, id)
	if err != nil {
		return nil, err
	}

	if promo.Status == model.PromotionStatusExpired {
		return nil, &model.AppError{
			Code:       model.ErrCodeInvalidTransition,
			Message:    "Khuyến mãi đã hết hạn, không thể thay đổi trạng thái",
			HTTPStatus: http.StatusConflict,
		}
	}

	if status == model.PromotionStatusActive && !promo.IsWithinWindow(time.Now()) {
		return nil, &model.AppError{
			Code:       model.ErrCodeInvalidTransition,
			Message:    "Chỉ bật ACTIVE được khi đang trong thời gian khuyến mãi",
			HTTPStatus: http.StatusConflict,
		}
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, model.ErrPromotionNotFound) {
			return nil, model.ErrPromotionNotFoundApp
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.invalidateCandidateCache(ctx)

	logger.Info("Admin đổi trạng thái promotion", map[string]interface{}{
		"promotion_id": id.String(),
		"from":         promo.Status,
		"to":           status,
	})

	promo.Status = status
	return promo.ToResponse(), nil
}

// -------------------------------------------------------------------
// CONFLICT PAIRS
// -------------------------------------------------------------------

// DeclareConflict khai báo hai promotion không được cùng áp dụng.
// Cặp được lưu một lần theo thứ tự canonical, đối xứng by construction.
func (s *promotionService) DeclareConflict(ctx context.Context, id, other uuid.UUID) error {
	if id == other {
		return &model.AppError{
			Code:       model.ErrCodeValidationFailed,
			Message:    "Khuyến mãi không thể xung đột với chính nó",
			HTTPStatus: http.StatusBadRequest,
		}
	}

	// Cả hai đầu phải tồn tại
	for _, pid := range []uuid.UUID{id, other} {
		if _, err := s.findPromotion(ctx, pid); err != nil {
			return err
		}
	}

	if err := s.repo.AddConflict(ctx, id, other); err != nil {
		return fmt.Errorf("declare conflict: %w", err)
	}
	return nil
}

// RemoveConflict gỡ khai báo xung đột (no-op nếu cặp không tồn tại)
func (s *promotionService) RemoveConflict(ctx context.Context, id, other uuid.UUID) error {
	if err := s.repo.RemoveConflict(ctx, id, other); err != nil {
		return fmt.Errorf("remove conflict: %w", err)
	}
	return nil
}

// -------------------------------------------------------------------
// USAGE LEDGER (admin view)
// -------------------------------------------------------------------

// ListUsage trả về lịch sử sử dụng phân trang của một promotion
func (s *promotionService) ListUsage(ctx context.Context, promotionID uuid.UUID, page, limit int) ([]*model.PromotionUsage, int, error) {
	if _, err := s.findPromotion(ctx, promotionID); err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.ledger.ListUsage(ctx, promotionID, page, limit)
}

// -------------------------------------------------------------------
// SCHEDULER SWEEPS
// -------------------------------------------------------------------

// ActivateScheduled lật mọi promotion SCHEDULED đã đến start_date sang
// ACTIVE. Set-based UPDATE - chạy lại không đổi kết quả.
func (s *promotionService) ActivateScheduled(ctx context.Context) (int64, error) {
	flipped, err := s.repo.ActivateDue(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("activate scheduled: %w", err)
	}
	if flipped > 0 {
		s.invalidateCandidateCache(ctx)
	}
	return flipped, nil
}

// ExpireOverdue lật mọi promotion đã qua end_date sang EXPIRED.
// Áp dụng cho cả SCHEDULED (chưa từng chạy), ACTIVE và INACTIVE.
func (s *promotionService) ExpireOverdue(ctx context.Context) (int64, error) {
	flipped, err := s.repo.ExpireDue(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("expire overdue: %w", err)
	}
	if flipped > 0 {
		s.invalidateCandidateCache(ctx)
	}
	return flipped, nil
}

// -------------------------------------------------------------------
// HELPERS
// -------------------------------------------------------------------

func (s *promotionService) findPromotion(ctx context.Context, id uuid.UUID) (*model.Promotion, error) {
	promo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrPromotionNotFound) {
			return nil, model.ErrPromotionNotFoundApp
		}
		return nil, fmt.Errorf("find promotion: %w", err)
	}
	return promo, nil
}

// invalidateCandidateCache xóa cache candidate sau mỗi write. Best-effort:
// cache có TTL 60s nên lỗi invalidation chỉ kéo dài staleness tối đa 1 phút.
func (s *promotionService) invalidateCandidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePattern(ctx, candidateCachePrefix+"*"); err != nil {
		logger.Error("xóa candidate cache thất bại", err)
	}
}

// parseDateRange parse và validate cặp RFC3339 start/end
func parseDateRange(start, end string) (time.Time, time.Time, error) {
	startDate, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return time.Time{}, time.Time{}, &model.AppError{
			Code:       model.ErrCodeValidationFailed,
			Message:    "start_date phải theo định dạng RFC3339",
			HTTPStatus: http.StatusBadRequest,
		}
	}
	endDate, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return time.Time{}, time.Time{}, &model.AppError{
			Code:       model.ErrCodeValidationFailed,
			Message:    "end_date phải theo định dạng RFC3339",
			HTTPStatus: http.StatusBadRequest,
		}
	}
	if !endDate.After(startDate) {
		return time.Time{}, time.Time{}, &model.AppError{
			Code:       model.ErrCodeValidationFailed,
			Message:    "end_date phải sau start_date",
			HTTPStatus: http.StatusBadRequest,
		}
	}
	return startDate, endDate, nil
}
