package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"repairshop-backend/internal/domains/promotion/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func percentPromo(value string) *model.Promotion {
	return &model.Promotion{
		Type:  model.PromotionTypePercentage,
		Value: dec(value),
	}
}

func fixedPromo(value string) *model.Promotion {
	return &model.Promotion{
		Type:  model.PromotionTypeFixedAmount,
		Value: dec(value),
	}
}

func TestCalculatePercentage(t *testing.T) {
	calc := NewDiscountCalculator()

	tests := []struct {
		name  string
		promo *model.Promotion
		base  string
		want  string
	}{
		{"10% của 200", percentPromo("10"), "200", "20"},
		{"15% của 99.99", percentPromo("15"), "99.99", "15"},           // 14.9985: phần dư .85 > .5 → 15.00
		{"nửa xu làm tròn xuống", percentPromo("10"), "100.05", "10"},  // 10.005 → 10.00
		{"trên nửa xu làm tròn lên", percentPromo("10"), "100.06", "10.01"}, // 10.006 → 10.01
		{"100% là cả đơn", percentPromo("100"), "250", "250"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Calculate(tt.promo, dec(tt.base))
			assert.True(t, got.Equal(dec(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestCalculatePercentageHalfDownRounding(t *testing.T) {
	calc := NewDiscountCalculator()

	// 5% của 10.10 = 0.505 - phần dư đúng nửa xu phải làm tròn XUỐNG
	got := calc.Calculate(percentPromo("5"), dec("10.10"))
	assert.True(t, got.Equal(dec("0.50")), "got %s", got)

	// 5% của 10.30 = 0.515 → 0.51
	got = calc.Calculate(percentPromo("5"), dec("10.30"))
	assert.True(t, got.Equal(dec("0.51")), "got %s", got)

	// 5% của 10.32 = 0.516 → 0.52
	got = calc.Calculate(percentPromo("5"), dec("10.32"))
	assert.True(t, got.Equal(dec("0.52")), "got %s", got)
}

func TestCalculatePercentageWithCap(t *testing.T) {
	calc := NewDiscountCalculator()

	promo := percentPromo("20")
	cap := dec("30")
	promo.MaxDiscountAmount = &cap

	// 20% của 500 = 100, cap về 30
	got := calc.Calculate(promo, dec("500"))
	assert.True(t, got.Equal(dec("30")), "got %s", got)

	// Dưới cap thì giữ nguyên
	got = calc.Calculate(promo, dec("100"))
	assert.True(t, got.Equal(dec("20")), "got %s", got)
}

func TestCalculateFixedAmount(t *testing.T) {
	calc := NewDiscountCalculator()

	got := calc.Calculate(fixedPromo("50"), dec("200"))
	assert.True(t, got.Equal(dec("50")), "got %s", got)

	// Không bao giờ giảm quá base amount
	got = calc.Calculate(fixedPromo("50"), dec("30"))
	assert.True(t, got.Equal(dec("30")), "got %s", got)
}

func TestCalculateEdgeCases(t *testing.T) {
	calc := NewDiscountCalculator()

	// Base 0 hoặc âm → discount 0
	assert.True(t, calc.Calculate(percentPromo("10"), decimal.Zero).IsZero())
	assert.True(t, calc.Calculate(fixedPromo("50"), dec("-10")).IsZero())

	// Type không hợp lệ → 0
	bad := &model.Promotion{Type: "UNKNOWN", Value: dec("10")}
	assert.True(t, calc.Calculate(bad, dec("100")).IsZero())
}

func TestCalculateNeverNegativeNeverExceedsBase(t *testing.T) {
	calc := NewDiscountCalculator()

	bases := []string{"0.01", "1", "99.99", "1000", "123456.78"}
	promos := []*model.Promotion{
		percentPromo("0.5"), percentPromo("33.33"), percentPromo("100"),
		fixedPromo("10"), fixedPromo("999999"),
	}

	for _, b := range bases {
		base := dec(b)
		for _, p := range promos {
			got := calc.Calculate(p, base)
			assert.False(t, got.IsNegative(), "discount âm: %s trên base %s", got, b)
			assert.True(t, got.LessThanOrEqual(base), "discount %s vượt base %s", got, b)
		}
	}
}
