package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartLine là snapshot một dòng trong giỏ hàng tại thời điểm tính giá.
// Engine không sở hữu cart - đây là input từ order/cart flow.
type CartLine struct {
	ProductID  uuid.UUID       `json:"product_id"`
	CategoryID uuid.UUID       `json:"category_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// Total trả về thành tiền của dòng (unit price × quantity)
func (l CartLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartContext là toàn bộ ngữ cảnh giỏ hàng + khách hàng cho một lần tính giá
type CartContext struct {
	CustomerID *uuid.UUID `json:"customer_id,omitempty"` // nil = guest
	Tier       *string    `json:"tier,omitempty"`        // hạng thành viên, nil = guest/không có hạng

	// TierDiscountRate là phần trăm giảm theo hạng (vd 5 = 5%), do loyalty
	// module cung cấp sẵn. Engine chỉ nhân vào subtotal sau promotion.
	TierDiscountRate decimal.Decimal `json:"tier_discount_rate"`

	Lines []CartLine `json:"lines"`

	// Các mã khách hàng nhập tay. Promotion requires_code chỉ được xét
	// khi mã xuất hiện ở đây (so khớp case-sensitive).
	Codes []string `json:"codes,omitempty"`
}

// Subtotal tính tổng tiền hàng trước mọi giảm giá
func (c CartContext) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		total = total.Add(line.Total())
	}
	return total
}

// ScopedSubtotal tính tổng tiền các dòng mà promotion PRODUCT-scope nhắm tới
func (c CartContext) ScopedSubtotal(p *Promotion) decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		if p.MatchesLine(line) {
			total = total.Add(line.Total())
		}
	}
	return total
}

// HasCode kiểm tra khách có nhập mã này không (exact match, case-sensitive)
func (c CartContext) HasCode(code string) bool {
	for _, entered := range c.Codes {
		if entered == code {
			return true
		}
	}
	return false
}

// AppliedPromotion là một promotion đã được chọn, kèm số tiền và các dòng áp dụng
type AppliedPromotion struct {
	PromotionID    uuid.UUID       `json:"promotion_id"`
	Code           *string         `json:"code,omitempty"`
	Name           string          `json:"name"`
	Type           PromotionType   `json:"type"`
	Scope          PromotionScope  `json:"scope"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Message        string          `json:"message"`

	// LineProductIDs liệt kê các dòng được promotion này claim
	// (chỉ có nghĩa với scope PRODUCT)
	LineProductIDs []uuid.UUID `json:"line_product_ids,omitempty"`
}

// CartDiscountResult là breakdown cuối cùng trả về cho order flow
type CartDiscountResult struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	ProductDiscount decimal.Decimal `json:"product_discount"` // tổng giảm của các promotion PRODUCT-scope
	OrderDiscount   decimal.Decimal `json:"order_discount"`   // giảm của promotion ORDER-scope (0 hoặc 1 cái)
	TierDiscount    decimal.Decimal `json:"tier_discount"`    // giảm theo hạng thành viên, tính trên subtotal sau promotion
	TotalDiscount   decimal.Decimal `json:"total_discount"`
	FinalAmount     decimal.Decimal `json:"final_amount"`

	Applied  []AppliedPromotion `json:"applied_promotions"`
	Warnings []string           `json:"warnings,omitempty"` // lý do các promotion bị từ chối
}
