package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PromotionUsage ghi lại một lần áp dụng promotion vào order
//
// Append-mostly: tạo khi order được confirm, xóa (reverse) khi order bị
// cancel. Per-customer usage count được đếm từ bảng này thay vì scan orders.
type PromotionUsage struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	PromotionID    uuid.UUID       `json:"promotion_id" db:"promotion_id"`
	CustomerID     *uuid.UUID      `json:"customer_id,omitempty" db:"customer_id"` // nil = guest order
	OrderID        uuid.UUID       `json:"order_id" db:"order_id"`
	DiscountAmount decimal.Decimal `json:"discount_amount" db:"discount_amount"` // số tiền thực tế đã giảm
	UsedAt         time.Time       `json:"used_at" db:"used_at"`
}

// UsageStats thống kê tổng hợp cho một promotion
type UsageStats struct {
	TotalUses       int             `json:"total_uses"`
	UniqueCustomers int             `json:"unique_customers"`
	TotalDiscount   decimal.Decimal `json:"total_discount"`
}
