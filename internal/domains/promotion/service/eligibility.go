package service

import (
	"context"
	"fmt"
	"time"

	"repairshop-backend/internal/domains/promotion/model"
	"repairshop-backend/internal/domains/promotion/repository"
)

// Rejection mô tả lý do một promotion bị loại, dùng làm warning string
// trong CartDiscountResult
type Rejection struct {
	PromotionID string          `json:"promotion_id"`
	Code        model.ErrorCode `json:"code"`
	Message     string          `json:"message"`
}

// EligibilityFilter quyết định một promotion có dùng được cho cart không.
//
// Các check chạy theo thứ tự cố định, fail đầu tiên short-circuit với lý do
// cụ thể để build warning message chính xác. Thứ tự:
//
//	1. Date window (check trực tiếp, KHÔNG tin status - scheduler có lag)
//	2. Status phải ACTIVE
//	3. requires_code: mã phải được khách nhập (exact, case-sensitive)
//	4. Tier restriction (guest fail mọi promotion giới hạn tier)
//	5. Min order value (subtotal với ORDER, scoped line total với PRODUCT)
//	6. Global quota
//	7. Per-customer quota (guest được miễn - không có identity ổn định)
//	8. Scope match (PRODUCT phải chạm ít nhất một dòng trong cart)
type EligibilityFilter struct {
	ledger repository.UsageLedger
}

// NewEligibilityFilter tạo instance mới
func NewEligibilityFilter(ledger repository.UsageLedger) *EligibilityFilter {
	return &EligibilityFilter{ledger: ledger}
}

// Check trả về nil nếu promotion eligible, ngược lại trả về Rejection với
// lý do fail đầu tiên. Error chỉ non-nil khi đọc ledger thất bại.
func (f *EligibilityFilter) Check(
	ctx context.Context,
	promo *model.Promotion,
	cart model.CartContext,
	now time.Time,
) (*Rejection, error) {
	// Check 1: Date window - verify trực tiếp để chống scheduler lag
	if now.Before(promo.StartDate) {
		return f.reject(promo, model.ErrCodePromoNotStarted,
			fmt.Sprintf("Khuyến mãi %s chưa đến thời gian áp dụng", promo.DisplayName())), nil
	}
	if now.After(promo.EndDate) {
		return f.reject(promo, model.ErrCodePromoExpired,
			fmt.Sprintf("Khuyến mãi %s đã hết hạn", promo.DisplayName())), nil
	}

	// Check 2: Status
	if promo.Status != model.PromotionStatusActive {
		return f.reject(promo, model.ErrCodePromoInactive,
			fmt.Sprintf("Khuyến mãi %s hiện không hoạt động", promo.DisplayName())), nil
	}

	// Check 3: requires_code - chỉ áp dụng khi khách nhập đúng mã
	if promo.RequiresCode {
		if promo.Code == nil || !cart.HasCode(*promo.Code) {
			return f.reject(promo, model.ErrCodePromoCodeRequired,
				fmt.Sprintf("Khuyến mãi %s yêu cầu nhập mã", promo.Name)), nil
		}
	}

	// Check 4: Tier restriction
	if len(promo.ApplicableTiers) > 0 {
		// Guest không có tier → fail mọi promotion giới hạn tier
		if cart.CustomerID == nil || cart.Tier == nil || !promo.AppliesToTier(*cart.Tier) {
			return f.reject(promo, model.ErrCodePromoTierNotEligible,
				fmt.Sprintf("Khuyến mãi %s không áp dụng cho hạng thành viên của bạn", promo.DisplayName())), nil
		}
	}

	// Check 5: Minimum order value
	if promo.MinOrderValue != nil {
		base := cart.Subtotal()
		if promo.Scope == model.PromotionScopeProduct {
			base = cart.ScopedSubtotal(promo)
		}
		if base.LessThan(*promo.MinOrderValue) {
			return f.reject(promo, model.ErrCodePromoMinOrderNotMet,
				fmt.Sprintf("Đơn hàng chưa đạt giá trị tối thiểu %s cho khuyến mãi %s",
					promo.MinOrderValue.String(), promo.DisplayName())), nil
		}
	}

	// Check 6: Global quota
	if !promo.HasRemainingQuota() {
		return f.reject(promo, model.ErrCodePromoUsageLimitExceeded,
			fmt.Sprintf("Khuyến mãi %s đã hết lượt sử dụng", promo.DisplayName())), nil
	}

	// Check 7: Per-customer quota (guest miễn check - không có identity ổn định)
	if cart.CustomerID != nil && promo.UsagePerCustomer != nil {
		used, err := f.ledger.CountCustomerUsage(ctx, promo.ID, *cart.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("count customer usage: %w", err)
		}
		if used >= *promo.UsagePerCustomer {
			return f.reject(promo, model.ErrCodePromoUserLimitExceeded,
				fmt.Sprintf("Bạn đã dùng hết %d lượt cho khuyến mãi %s",
					*promo.UsagePerCustomer, promo.DisplayName())), nil
		}
	}

	// Check 8: Scope match - PRODUCT phải chạm ít nhất một dòng
	if promo.Scope == model.PromotionScopeProduct {
		matched := false
		for _, line := range cart.Lines {
			if promo.MatchesLine(line) {
				matched = true
				break
			}
		}
		if !matched {
			return f.reject(promo, model.ErrCodePromoNotApplicable,
				fmt.Sprintf("Khuyến mãi %s không áp dụng cho sản phẩm trong giỏ hàng", promo.DisplayName())), nil
		}
	}

	return nil, nil
}

func (f *EligibilityFilter) reject(promo *model.Promotion, code model.ErrorCode, message string) *Rejection {
	return &Rejection{
		PromotionID: promo.ID.String(),
		Code:        code,
		Message:     message,
	}
}
