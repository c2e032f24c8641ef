package service

import (
	"github.com/shopspring/decimal"

	"repairshop-backend/internal/domains/promotion/model"
)

// DiscountCalculator xử lý logic tính toán discount
type DiscountCalculator struct{}

// NewDiscountCalculator tạo instance mới
func NewDiscountCalculator() *DiscountCalculator {
	return &DiscountCalculator{}
}

// Calculate tính số tiền giảm giá cho một promotion trên base amount.
//
// Business Logic:
// 1. PERCENTAGE:
//   - discount = base × (value / 100), làm tròn half-down 2 chữ số thập phân
//   - Nếu có max_discount_amount: discount = min(discount, max_discount_amount)
//
// 2. FIXED_AMOUNT:
//   - discount = value (giữ nguyên precision đã lưu)
//
// 3. Mọi trường hợp: discount = min(discount, base) - không bao giờ giảm
//    nhiều hơn giá trị của line/order.
//
// Làm tròn half-down (0.5 xu làm tròn XUỐNG) là chủ đích để không giảm
// lố ở các case biên - đối soát với kế toán dựa trên quy tắc này.
func (c *DiscountCalculator) Calculate(promo *model.Promotion, baseAmount decimal.Decimal) decimal.Decimal {
	if baseAmount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	var discount decimal.Decimal

	switch promo.Type {
	case model.PromotionTypePercentage:
		discount = roundHalfDown(baseAmount.Mul(promo.Value).Div(decimal.NewFromInt(100)), 2)

		// Cap tối đa chỉ có nghĩa với PERCENTAGE
		if promo.MaxDiscountAmount != nil && discount.GreaterThan(*promo.MaxDiscountAmount) {
			discount = *promo.MaxDiscountAmount
		}

	case model.PromotionTypeFixedAmount:
		discount = promo.Value

	default:
		return decimal.Zero
	}

	// Không được vượt quá base amount
	if discount.GreaterThan(baseAmount) {
		discount = baseAmount
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}

// roundHalfDown làm tròn về `places` chữ số thập phân, phần dư đúng 0.5
// đơn vị cuối làm tròn XUỐNG (khác với Round của shopspring là half-up).
func roundHalfDown(d decimal.Decimal, places int32) decimal.Decimal {
	shifted := d.Shift(places)
	floor := shifted.Floor()
	frac := shifted.Sub(floor)
	if frac.GreaterThan(decimal.New(5, -1)) {
		floor = floor.Add(decimal.NewFromInt(1))
	}
	return floor.Shift(-places)
}
