package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PromotionType phân loại cách tính giảm giá
type PromotionType string

const (
	PromotionTypePercentage  PromotionType = "PERCENTAGE"
	PromotionTypeFixedAmount PromotionType = "FIXED_AMOUNT"
)

func (t PromotionType) IsValid() bool {
	switch t {
	case PromotionTypePercentage, PromotionTypeFixedAmount:
		return true
	}
	return false
}

func (t PromotionType) String() string {
	return string(t)
}

// PromotionScope xác định promotion giảm giá trên line item hay cả đơn hàng
type PromotionScope string

const (
	PromotionScopeProduct PromotionScope = "PRODUCT"
	PromotionScopeOrder   PromotionScope = "ORDER"
)

func (s PromotionScope) IsValid() bool {
	switch s {
	case PromotionScopeProduct, PromotionScopeOrder:
		return true
	}
	return false
}

// PromotionStatus là trạng thái lifecycle của promotion
//
// State machine (scheduler đảm nhiệm transition tự động):
//
//	SCHEDULED → ACTIVE   (now >= start_date && now < end_date)
//	SCHEDULED → EXPIRED  (now >= end_date, chưa kịp activate)
//	ACTIVE    → EXPIRED  (now >= end_date)
//	INACTIVE  → EXPIRED  (now >= end_date)
//
// INACTIVE là override thủ công của admin: scheduler KHÔNG BAO GIỜ
// tự động đưa INACTIVE về ACTIVE, nhưng vẫn expire khi hết window.
// EXPIRED là terminal.
type PromotionStatus string

const (
	PromotionStatusScheduled PromotionStatus = "SCHEDULED"
	PromotionStatusActive    PromotionStatus = "ACTIVE"
	PromotionStatusInactive  PromotionStatus = "INACTIVE"
	PromotionStatusExpired   PromotionStatus = "EXPIRED"
)

func (s PromotionStatus) IsValid() bool {
	switch s {
	case PromotionStatusScheduled, PromotionStatusActive, PromotionStatusInactive, PromotionStatusExpired:
		return true
	}
	return false
}

// Promotion represents a promotional campaign or discount code
type Promotion struct {
	ID   uuid.UUID `json:"id" db:"id"`
	Code *string   `json:"code,omitempty" db:"code"` // nil = auto-apply, không có mã
	Name string    `json:"name" db:"name"`

	// Discount configuration
	Type              PromotionType    `json:"type" db:"type"`
	Scope             PromotionScope   `json:"scope" db:"scope"`
	Value             decimal.Decimal  `json:"value" db:"value"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount,omitempty" db:"max_discount_amount"` // chỉ áp dụng cho PERCENTAGE

	// Applicability rules
	MinOrderValue         *decimal.Decimal `json:"min_order_value,omitempty" db:"min_order_value"`
	ApplicableTiers       []string         `json:"applicable_tiers,omitempty" db:"applicable_tiers"` // empty = mọi hạng thành viên
	ApplicableCategoryIDs []uuid.UUID      `json:"applicable_category_ids,omitempty" db:"applicable_category_ids"`
	ApplicableProductIDs  []uuid.UUID      `json:"applicable_product_ids,omitempty" db:"applicable_product_ids"`
	RequiresCode          bool             `json:"requires_code" db:"requires_code"`

	// Usage limits
	UsageLimit       *int `json:"usage_limit,omitempty" db:"usage_limit"` // nil = unlimited
	UsageCount       int  `json:"usage_count" db:"usage_count"`
	UsagePerCustomer *int `json:"usage_per_customer,omitempty" db:"usage_per_customer"`

	// Selection ordering
	Priority int `json:"priority" db:"priority"` // cao hơn thắng khi xung đột

	// Validity period
	StartDate time.Time `json:"start_date" db:"start_date"`
	EndDate   time.Time `json:"end_date" db:"end_date"`

	Status PromotionStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName trả về mã nếu có, fallback về tên (dùng cho warning messages)
func (p *Promotion) DisplayName() string {
	if p.Code != nil && *p.Code != "" {
		return *p.Code
	}
	return p.Name
}

// IsWithinWindow checks the date window directly.
//
// Status chỉ là cache do scheduler duy trì với độ trễ tối đa một sweep
// interval. Mọi eligibility check PHẢI verify lại window bằng hàm này
// thay vì tin vào Status.
func (p *Promotion) IsWithinWindow(now time.Time) bool {
	return !now.Before(p.StartDate) && !now.After(p.EndDate)
}

// HasRemainingQuota checks the global usage limit.
func (p *Promotion) HasRemainingQuota() bool {
	if p.UsageLimit == nil {
		return true
	}
	return p.UsageCount < *p.UsageLimit
}

// RemainingUses trả về số lượt còn lại, nil nếu unlimited
func (p *Promotion) RemainingUses() *int {
	if p.UsageLimit == nil {
		return nil
	}
	remaining := *p.UsageLimit - p.UsageCount
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// AppliesToTier checks the tier restriction. Empty set = all tiers.
func (p *Promotion) AppliesToTier(tier string) bool {
	if len(p.ApplicableTiers) == 0 {
		return true
	}
	for _, t := range p.ApplicableTiers {
		if t == tier {
			return true
		}
	}
	return false
}

// MatchesLine checks whether a PRODUCT-scope promotion targets a cart line.
//
// Cả hai target set rỗng = áp dụng cho mọi sản phẩm.
func (p *Promotion) MatchesLine(line CartLine) bool {
	if len(p.ApplicableProductIDs) == 0 && len(p.ApplicableCategoryIDs) == 0 {
		return true
	}
	for _, id := range p.ApplicableProductIDs {
		if id == line.ProductID {
			return true
		}
	}
	for _, id := range p.ApplicableCategoryIDs {
		if id == line.CategoryID {
			return true
		}
	}
	return false
}

// NextStatus computes the scheduler transition at the given instant.
// Returns (newStatus, true) when a transition is due, (current, false) otherwise.
func (p *Promotion) NextStatus(now time.Time) (PromotionStatus, bool) {
	switch p.Status {
	case PromotionStatusScheduled:
		if !now.Before(p.EndDate) {
			return PromotionStatusExpired, true
		}
		if !now.Before(p.StartDate) {
			return PromotionStatusActive, true
		}
	case PromotionStatusActive, PromotionStatusInactive:
		// INACTIVE chỉ là override trong window - qua end_date vẫn expire,
		// vì sau window không còn đường quay lại ACTIVE
		if !now.Before(p.EndDate) {
			return PromotionStatusExpired, true
		}
	case PromotionStatusExpired:
		// terminal
	}
	return p.Status, false
}

// ConflictSet là adjacency map của quan hệ xung đột pairwise.
//
// Quan hệ là vô hướng: Add luôn ghi cả hai chiều nên set đối xứng
// by construction, không phụ thuộc hai collection riêng lẻ phải sync.
type ConflictSet map[uuid.UUID]map[uuid.UUID]struct{}

// NewConflictSet builds a ConflictSet from explicit pairs.
func NewConflictSet(pairs []ConflictPair) ConflictSet {
	s := make(ConflictSet)
	for _, pair := range pairs {
		s.Add(pair.PromotionID, pair.ConflictsWith)
	}
	return s
}

// Add declares an undirected conflict between two promotions.
func (s ConflictSet) Add(a, b uuid.UUID) {
	if a == b {
		return
	}
	if s[a] == nil {
		s[a] = make(map[uuid.UUID]struct{})
	}
	if s[b] == nil {
		s[b] = make(map[uuid.UUID]struct{})
	}
	s[a][b] = struct{}{}
	s[b][a] = struct{}{}
}

// Conflicts reports whether two promotions may not both apply to one order.
func (s ConflictSet) Conflicts(a, b uuid.UUID) bool {
	_, ok := s[a][b]
	return ok
}

// ConflictPair là một cặp xung đột đã persist (canonical: PromotionID < ConflictsWith)
type ConflictPair struct {
	PromotionID   uuid.UUID `json:"promotion_id" db:"promotion_id"`
	ConflictsWith uuid.UUID `json:"conflicts_with" db:"conflicts_with"`
}
