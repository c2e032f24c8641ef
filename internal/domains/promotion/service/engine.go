package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"repairshop-backend/internal/domains/promotion/model"
	"repairshop-backend/internal/domains/promotion/repository"
	"repairshop-backend/pkg/cache"
)

const (
	candidateCachePrefix = "promo:candidates:"
	candidateCacheTTL    = 60 * time.Second
)

// DiscountEngine là entry point cho order flow: preview giỏ hàng, chốt
// usage khi confirm, hoàn tác khi cancel.
//
// Pipeline: load candidates → eligibility filter → conflict resolve &
// select → tính tiền → (confirm) ghi ledger.
type DiscountEngine struct {
	repo       repository.PromotionRepository
	ledger     repository.UsageLedger
	filter     *EligibilityFilter
	selector   *Selector
	calculator *DiscountCalculator
	cache      cache.Cache
	now        func() time.Time // inject được trong test
}

// NewDiscountEngine tạo engine với dependencies
func NewDiscountEngine(
	repo repository.PromotionRepository,
	ledger repository.UsageLedger,
	cacheClient cache.Cache,
) *DiscountEngine {
	calculator := NewDiscountCalculator()
	return &DiscountEngine{
		repo:       repo,
		ledger:     ledger,
		filter:     NewEligibilityFilter(ledger),
		selector:   NewSelector(calculator),
		calculator: calculator,
		cache:      cacheClient,
		now:        time.Now,
	}
}

// PreviewCart tính toàn bộ discount cho giỏ hàng mà KHÔNG ghi nhận usage.
// Gọi được bao nhiêu lần tùy ý - stateless với ledger.
func (e *DiscountEngine) PreviewCart(ctx context.Context, cart model.CartContext) (*model.CartDiscountResult, error) {
	candidates, err := e.loadCandidates(ctx, cart, true)
	if err != nil {
		return nil, err
	}
	return e.evaluate(ctx, cart, candidates, e.now())
}

// ConfirmOrder tính lại discount với data tươi rồi ghi nhận usage cho mọi
// promotion được áp dụng. Quota được guard ở tầng SQL: nếu một promotion
// hết lượt giữa chừng, các usage đã ghi trong LẦN CONFIRM NÀY được hoàn tác
// và trả lỗi BIZ_QUOTA_EXCEEDED để order flow báo khách tính lại giỏ.
func (e *DiscountEngine) ConfirmOrder(ctx context.Context, orderID uuid.UUID, cart model.CartContext) (*model.CartDiscountResult, error) {
	// Confirm luôn đọc thẳng DB - cache 60s có thể thiếu quota mới nhất
	candidates, err := e.loadCandidates(ctx, cart, false)
	if err != nil {
		return nil, err
	}

	result, err := e.evaluate(ctx, cart, candidates, e.now())
	if err != nil {
		return nil, err
	}

	// Rollback khoanh vùng theo usage id của CHÍNH lần confirm này. Hoàn tác
	// theo order id sẽ xóa nhầm rows của confirmation trước đó khi client
	// retry một order đã confirm (ErrDuplicateUsage) - ledger mất dấu lượt
	// đã cấp và usage_count bị đếm thiếu.
	var recorded []uuid.UUID
	for _, applied := range result.Applied {
		usage := &model.PromotionUsage{
			ID:             uuid.New(),
			PromotionID:    applied.PromotionID,
			CustomerID:     cart.CustomerID,
			OrderID:        orderID,
			DiscountAmount: applied.DiscountAmount,
			UsedAt:         e.now(),
		}
		if err := e.ledger.RecordUsage(ctx, usage); err != nil {
			if len(recorded) > 0 {
				if rbErr := e.ledger.ReverseUsageRows(ctx, recorded); rbErr != nil {
					log.Error().Err(rbErr).
						Str("order_id", orderID.String()).
						Msg("không thể hoàn tác usage sau khi record thất bại")
				}
			}
			switch {
			case errors.Is(err, model.ErrQuotaExceeded):
				return nil, &model.AppError{
					Code:       model.ErrCodeQuotaExceeded,
					Message:    fmt.Sprintf("Khuyến mãi %s vừa hết lượt sử dụng, vui lòng tính lại giỏ hàng", applied.Name),
					HTTPStatus: http.StatusConflict,
				}
			case errors.Is(err, model.ErrDuplicateUsage):
				return nil, &model.AppError{
					Code:       model.ErrCodeValidationFailed,
					Message:    "Đơn hàng này đã được ghi nhận khuyến mãi trước đó",
					HTTPStatus: http.StatusConflict,
				}
			default:
				return nil, err
			}
		}
		recorded = append(recorded, usage.ID)
	}

	return result, nil
}

// CancelOrder hoàn tác mọi usage của order. Idempotent - cancel hai lần
// hoặc cancel order không có promotion đều là no-op.
func (e *DiscountEngine) CancelOrder(ctx context.Context, orderID uuid.UUID) error {
	return e.ledger.ReverseUsage(ctx, orderID)
}

// ----------------------------------------------------------------
// Pipeline internals
// ----------------------------------------------------------------

// loadCandidates đọc candidate set, kèm cache 60s cho preview path.
// Key chỉ phụ thuộc vào shape của cart (tier + product/category ids),
// không phụ thuộc số lượng hay giá - những thứ đó xét ở eligibility.
func (e *DiscountEngine) loadCandidates(ctx context.Context, cart model.CartContext, useCache bool) ([]*model.Promotion, error) {
	if !useCache || e.cache == nil {
		return e.repo.FindActiveCandidates(ctx, cart)
	}

	key := candidateCacheKey(cart)

	var cached []*model.Promotion
	found, err := e.cache.Get(ctx, key, &cached)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("đọc candidate cache thất bại, fallback DB")
	}
	if found {
		return cached, nil
	}

	candidates, err := e.repo.FindActiveCandidates(ctx, cart)
	if err != nil {
		return nil, err
	}

	if err := e.cache.Set(ctx, key, candidates, candidateCacheTTL); err != nil {
		log.Error().Err(err).Str("key", key).Msg("ghi candidate cache thất bại")
	}
	return candidates, nil
}

// evaluate chạy pipeline eligibility → selection → totals trên snapshot
// candidate đã load. `now` truyền vào một lần để mọi check cùng mốc thời gian.
func (e *DiscountEngine) evaluate(
	ctx context.Context,
	cart model.CartContext,
	candidates []*model.Promotion,
	now time.Time,
) (*model.CartDiscountResult, error) {
	candidates, rejections, err := e.mergeRequestedCodes(ctx, cart, candidates)
	if err != nil {
		return nil, err
	}

	var eligible []*model.Promotion
	for _, promo := range candidates {
		rejection, err := e.filter.Check(ctx, promo, cart, now)
		if err != nil {
			return nil, err
		}
		if rejection != nil {
			rejections = append(rejections, *rejection)
			continue
		}
		eligible = append(eligible, promo)
	}

	conflicts, err := e.conflictsAmong(ctx, eligible)
	if err != nil {
		return nil, err
	}

	selection := e.selector.Select(cart, eligible, conflicts)

	result := e.assemble(cart, selection)
	result.Warnings = e.buildWarnings(cart, candidates, rejections, selection.Rejections)
	return result, nil
}

// mergeRequestedCodes đảm bảo mọi mã khách nhập đều có mặt trong candidate
// set để eligibility sinh warning chính xác (mã SCHEDULED/EXPIRED không nằm
// trong candidate query). Mã không tồn tại sinh rejection PROMO_NOT_FOUND.
func (e *DiscountEngine) mergeRequestedCodes(
	ctx context.Context,
	cart model.CartContext,
	candidates []*model.Promotion,
) ([]*model.Promotion, []Rejection, error) {
	var rejections []Rejection

	seen := make(map[string]bool)
	for _, promo := range candidates {
		if promo.Code != nil {
			seen[*promo.Code] = true
		}
	}

	for _, code := range cart.Codes {
		if seen[code] {
			continue
		}
		seen[code] = true

		promo, err := e.repo.FindByCode(ctx, code)
		if err != nil {
			if errors.Is(err, model.ErrPromotionNotFound) {
				rejections = append(rejections, Rejection{
					Code:    model.ErrCodePromoNotFound,
					Message: fmt.Sprintf("Mã khuyến mãi %s không tồn tại", code),
				})
				continue
			}
			return nil, nil, err
		}
		candidates = append(candidates, promo)
	}

	return candidates, rejections, nil
}

// conflictsAmong load các conflict pair giữa các promotion eligible
func (e *DiscountEngine) conflictsAmong(ctx context.Context, eligible []*model.Promotion) (model.ConflictSet, error) {
	if len(eligible) < 2 {
		return model.ConflictSet{}, nil
	}
	ids := make([]uuid.UUID, len(eligible))
	for i, promo := range eligible {
		ids[i] = promo.ID
	}
	return e.repo.ConflictsAmong(ctx, ids)
}

// assemble quy đổi selection thành breakdown tiền cuối cùng.
//
// Thứ tự tính: PRODUCT-scope giảm trên line total → ORDER-scope giảm trên
// (subtotal - product discount) → tier discount trên phần còn lại. ORDER
// discount được TÍNH LẠI trên base sau product discount để tổng giảm không
// bao giờ vượt subtotal.
func (e *DiscountEngine) assemble(cart model.CartContext, selection Selection) *model.CartDiscountResult {
	subtotal := cart.Subtotal()

	result := &model.CartDiscountResult{
		Subtotal:        subtotal,
		ProductDiscount: decimal.Zero,
		OrderDiscount:   decimal.Zero,
		TierDiscount:    decimal.Zero,
	}

	for _, sel := range selection.Product {
		lineProducts := make([]uuid.UUID, len(sel.LineIndexes))
		for i, idx := range sel.LineIndexes {
			lineProducts[i] = cart.Lines[idx].ProductID
		}
		result.ProductDiscount = result.ProductDiscount.Add(sel.Discount)
		result.Applied = append(result.Applied, model.AppliedPromotion{
			PromotionID:    sel.Promotion.ID,
			Code:           sel.Promotion.Code,
			Name:           sel.Promotion.Name,
			Type:           sel.Promotion.Type,
			Scope:          sel.Promotion.Scope,
			DiscountAmount: sel.Discount,
			Message:        fmt.Sprintf("Giảm %s cho sản phẩm áp dụng %s", formatAmount(sel.Discount), sel.Promotion.DisplayName()),
			LineProductIDs: lineProducts,
		})
	}

	if selection.Order != nil {
		promo := selection.Order.Promotion
		orderBase := subtotal.Sub(result.ProductDiscount)
		discount := e.calculator.Calculate(promo, orderBase)
		if discount.IsPositive() {
			result.OrderDiscount = discount
			result.Applied = append(result.Applied, model.AppliedPromotion{
				PromotionID:    promo.ID,
				Code:           promo.Code,
				Name:           promo.Name,
				Type:           promo.Type,
				Scope:          promo.Scope,
				DiscountAmount: discount,
				Message:        fmt.Sprintf("Giảm %s cho đơn hàng từ %s", formatAmount(discount), promo.DisplayName()),
			})
		}
	}

	// Tier discount tính trên subtotal SAU promotion, cùng quy tắc làm tròn
	remaining := subtotal.Sub(result.ProductDiscount).Sub(result.OrderDiscount)
	if cart.TierDiscountRate.IsPositive() && remaining.IsPositive() {
		result.TierDiscount = roundHalfDown(
			remaining.Mul(cart.TierDiscountRate).Div(decimal.NewFromInt(100)), 2)
		if result.TierDiscount.GreaterThan(remaining) {
			result.TierDiscount = remaining
		}
	}

	result.TotalDiscount = result.ProductDiscount.Add(result.OrderDiscount).Add(result.TierDiscount)
	result.FinalAmount = subtotal.Sub(result.TotalDiscount)
	if result.FinalAmount.IsNegative() {
		result.FinalAmount = decimal.Zero
	}

	return result
}

// buildWarnings lọc rejection thành warning cho khách:
//   - Rejection của mã khách CHỦ ĐỘNG nhập luôn được hiển thị (khách cần
//     biết tại sao mã của mình không chạy)
//   - Rejection từ selector (conflict, thua priority) hiển thị cho mọi
//     promotion để kết quả minh bạch
//   - Promotion tự động (không cần mã) fail eligibility thì im lặng -
//     khách không biết nó tồn tại
func (e *DiscountEngine) buildWarnings(
	cart model.CartContext,
	candidates []*model.Promotion,
	eligibilityRejections []Rejection,
	selectionRejections []Rejection,
) []string {
	requested := make(map[string]bool) // promotion ID → khách có nhập mã này
	for _, promo := range candidates {
		if promo.Code != nil && cart.HasCode(*promo.Code) {
			requested[promo.ID.String()] = true
		}
	}

	var warnings []string
	for _, r := range eligibilityRejections {
		// PromotionID rỗng = mã không tồn tại, luôn báo
		if r.PromotionID == "" || requested[r.PromotionID] {
			warnings = append(warnings, r.Message)
		}
	}
	for _, r := range selectionRejections {
		warnings = append(warnings, r.Message)
	}

	return warnings
}

// candidateCacheKey hash shape của cart thành key ngắn
func candidateCacheKey(cart model.CartContext) string {
	h := fnv.New64a()

	if cart.Tier != nil {
		h.Write([]byte(*cart.Tier))
	}
	h.Write([]byte{0})

	ids := make([]string, 0, len(cart.Lines)*2)
	for _, line := range cart.Lines {
		ids = append(ids, line.ProductID.String(), line.CategoryID.String())
	}
	sort.Strings(ids)
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}

	return fmt.Sprintf("%s%x", candidateCachePrefix, h.Sum64())
}

// formatAmount in số tiền không có đuôi thập phân thừa
func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
