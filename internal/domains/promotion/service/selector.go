package service

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"repairshop-backend/internal/domains/promotion/model"
)

// Selected là một promotion thắng cuộc kèm base amount và các dòng đã claim
type Selected struct {
	Promotion   *model.Promotion
	BaseAmount  decimal.Decimal
	Discount    decimal.Decimal
	LineIndexes []int // chỉ có nghĩa với scope PRODUCT
}

// Selection là kết quả chọn lọc: tối đa một ORDER-scope, 0..N PRODUCT-scope,
// kèm các rejection cho promotion thua cuộc
type Selection struct {
	Order      *Selected
	Product    []Selected
	Rejections []Rejection
}

// Applied trả về toàn bộ promotion đã được chọn
func (s Selection) Applied() []Selected {
	applied := make([]Selected, 0, len(s.Product)+1)
	if s.Order != nil {
		applied = append(applied, *s.Order)
	}
	return append(applied, s.Product...)
}

// Selector chọn tổ hợp promotion thắng cuộc từ các candidate đã qua
// eligibility, tôn trọng conflict pairs và priority ordering.
//
// Thuật toán (deterministic - cùng input luôn cho cùng output):
//
//  1. Partition theo scope.
//  2. ORDER-scope: tối đa MỘT promotion. Sort theo priority desc, tie-break
//     theo provisional discount desc, rồi start_date asc. Nhận candidate
//     đầu tiên, các candidate sau bị loại (xung đột hoặc thua priority).
//  3. PRODUCT-scope: nhiều promotion có thể cùng áp dụng trên các dòng
//     RỜI NHAU - một dòng nhận tối đa một promotion. Sort cùng thứ tự,
//     greedy claim các dòng match còn trống. Candidate xung đột với bất kỳ
//     promotion đã nhận nào bị loại TOÀN BỘ, không áp dụng một phần
//     (conflict declarations áp dụng bất kể scope).
type Selector struct {
	calculator *DiscountCalculator
}

// NewSelector tạo instance mới
func NewSelector(calculator *DiscountCalculator) *Selector {
	return &Selector{calculator: calculator}
}

// rankedCandidate giữ provisional discount để sort ổn định
type rankedCandidate struct {
	promo    *model.Promotion
	discount decimal.Decimal
}

// Select picks the winning combination among eligible promotions.
func (s *Selector) Select(
	cart model.CartContext,
	eligible []*model.Promotion,
	conflicts model.ConflictSet,
) Selection {
	var selection Selection

	subtotal := cart.Subtotal()

	// Step 1: Partition theo scope, tính provisional discount để tie-break
	var orderScoped, productScoped []rankedCandidate
	for _, promo := range eligible {
		switch promo.Scope {
		case model.PromotionScopeOrder:
			orderScoped = append(orderScoped, rankedCandidate{
				promo:    promo,
				discount: s.calculator.Calculate(promo, subtotal),
			})
		case model.PromotionScopeProduct:
			productScoped = append(productScoped, rankedCandidate{
				promo:    promo,
				discount: s.calculator.Calculate(promo, cart.ScopedSubtotal(promo)),
			})
		}
	}

	sortCandidates(orderScoped)
	sortCandidates(productScoped)

	// accepted giữ mọi promotion đã nhận để check conflict scope-agnostic
	var accepted []*model.Promotion

	// Step 2: ORDER-scope - nhận candidate đầu, loại phần còn lại
	for _, candidate := range orderScoped {
		if selection.Order == nil {
			selection.Order = &Selected{
				Promotion:  candidate.promo,
				BaseAmount: subtotal,
				Discount:   candidate.discount,
			}
			accepted = append(accepted, candidate.promo)
			continue
		}

		winner := selection.Order.Promotion
		if conflicts.Conflicts(candidate.promo.ID, winner.ID) {
			selection.Rejections = append(selection.Rejections, Rejection{
				PromotionID: candidate.promo.ID.String(),
				Code:        model.ErrCodePromoConflict,
				Message: fmt.Sprintf("Khuyến mãi %s không được áp dụng vì xung đột với %s",
					candidate.promo.DisplayName(), winner.DisplayName()),
			})
			continue
		}
		selection.Rejections = append(selection.Rejections, Rejection{
			PromotionID: candidate.promo.ID.String(),
			Code:        model.ErrCodePromoConflict,
			Message: fmt.Sprintf("Chỉ một khuyến mãi cấp đơn hàng được áp dụng, %s nhường chỗ cho %s",
				candidate.promo.DisplayName(), winner.DisplayName()),
		})
	}

	// Step 3: PRODUCT-scope - greedy claim các dòng còn trống
	claimed := make(map[int]uuid.UUID) // line index → promotion đã claim

	for _, candidate := range productScoped {
		if blocker := firstConflict(candidate.promo, accepted, conflicts); blocker != nil {
			selection.Rejections = append(selection.Rejections, Rejection{
				PromotionID: candidate.promo.ID.String(),
				Code:        model.ErrCodePromoConflict,
				Message: fmt.Sprintf("Khuyến mãi %s không được áp dụng vì xung đột với %s",
					candidate.promo.DisplayName(), blocker.DisplayName()),
			})
			continue
		}

		var lineIdx []int
		base := decimal.Zero
		for i, line := range cart.Lines {
			if _, taken := claimed[i]; taken {
				continue
			}
			if candidate.promo.MatchesLine(line) {
				lineIdx = append(lineIdx, i)
				base = base.Add(line.Total())
			}
		}

		if len(lineIdx) == 0 {
			selection.Rejections = append(selection.Rejections, Rejection{
				PromotionID: candidate.promo.ID.String(),
				Code:        model.ErrCodePromoConflict,
				Message: fmt.Sprintf("Các sản phẩm phù hợp với khuyến mãi %s đã được khuyến mãi khác áp dụng",
					candidate.promo.DisplayName()),
			})
			continue
		}

		discount := s.calculator.Calculate(candidate.promo, base)
		if discount.IsZero() {
			continue
		}

		for _, i := range lineIdx {
			claimed[i] = candidate.promo.ID
		}
		selection.Product = append(selection.Product, Selected{
			Promotion:   candidate.promo,
			BaseAmount:  base,
			Discount:    discount,
			LineIndexes: lineIdx,
		})
		accepted = append(accepted, candidate.promo)
	}

	return selection
}

// sortCandidates áp tổng thứ tự: priority desc → discount desc → start_date asc.
// Tie-break cuối cùng theo ID để kết quả ổn định tuyệt đối.
func sortCandidates(candidates []rankedCandidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.promo.Priority != b.promo.Priority {
			return a.promo.Priority > b.promo.Priority
		}
		if !a.discount.Equal(b.discount) {
			return a.discount.GreaterThan(b.discount)
		}
		if !a.promo.StartDate.Equal(b.promo.StartDate) {
			return a.promo.StartDate.Before(b.promo.StartDate)
		}
		return a.promo.ID.String() < b.promo.ID.String()
	})
}

// firstConflict trả về promotion đã nhận đầu tiên xung đột với candidate
func firstConflict(candidate *model.Promotion, accepted []*model.Promotion, conflicts model.ConflictSet) *model.Promotion {
	for _, winner := range accepted {
		if conflicts.Conflicts(candidate.ID, winner.ID) {
			return winner
		}
	}
	return nil
}
