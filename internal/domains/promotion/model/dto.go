package model

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// -------------------------------------------------------------------
// PUBLIC REQUESTS
// -------------------------------------------------------------------

// PreviewCartRequest - Request tính thử giảm giá cho giỏ hàng
type PreviewCartRequest struct {
	CustomerID       *uuid.UUID        `json:"customer_id"`
	Tier             *string           `json:"tier"`
	TierDiscountRate decimal.Decimal   `json:"tier_discount_rate"`
	Lines            []CartLineRequest `json:"lines"`
	Codes            []string          `json:"codes"`
}

// CartLineRequest là một dòng giỏ hàng trong request
type CartLineRequest struct {
	ProductID  uuid.UUID       `json:"product_id"`
	CategoryID uuid.UUID       `json:"category_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// Validate validates PreviewCartRequest
func (r PreviewCartRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Lines,
			validation.Required.Error("Giỏ hàng không được trống"),
			validation.Length(1, 200).Error("Giỏ hàng có từ 1-200 dòng"),
		),
		validation.Field(&r.Codes,
			validation.Length(0, 10).Error("Tối đa 10 mã giảm giá mỗi đơn"),
		),
	)
}

// Validate validates CartLineRequest
func (l CartLineRequest) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.ProductID, validation.Required),
		validation.Field(&l.Quantity,
			validation.Min(1).Error("Số lượng phải >= 1"),
			validation.Max(1000).Error("Số lượng phải <= 1000"),
		),
		validation.Field(&l.UnitPrice,
			validation.Min(decimal.Zero).Error("Đơn giá phải >= 0"),
		),
	)
}

// ToCartContext chuyển request thành CartContext cho engine
func (r PreviewCartRequest) ToCartContext() CartContext {
	lines := make([]CartLine, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = CartLine{
			ProductID:  l.ProductID,
			CategoryID: l.CategoryID,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
		}
	}

	codes := make([]string, 0, len(r.Codes))
	for _, code := range r.Codes {
		code = strings.TrimSpace(code)
		if code != "" {
			codes = append(codes, code)
		}
	}

	return CartContext{
		CustomerID:       r.CustomerID,
		Tier:             r.Tier,
		TierDiscountRate: r.TierDiscountRate,
		Lines:            lines,
		Codes:            codes,
	}
}

// -------------------------------------------------------------------
// ORDER FLOW REQUESTS
// -------------------------------------------------------------------

// ConfirmOrderRequest - Request chốt giảm giá khi order được confirm
type ConfirmOrderRequest struct {
	OrderID uuid.UUID `json:"order_id"`
	PreviewCartRequest
}

// Validate validates ConfirmOrderRequest
func (r ConfirmOrderRequest) Validate() error {
	if err := validation.ValidateStruct(&r,
		validation.Field(&r.OrderID, validation.Required.Error("Thiếu order_id")),
	); err != nil {
		return err
	}
	return r.PreviewCartRequest.Validate()
}

// -------------------------------------------------------------------
// ADMIN REQUESTS
// -------------------------------------------------------------------

// CreatePromotionRequest - Request để tạo promotion mới
type CreatePromotionRequest struct {
	Code                  *string     `json:"code"`
	Name                  string      `json:"name"`
	Type                  string      `json:"type"`
	Scope                 string      `json:"scope"`
	Value                 float64     `json:"value"`
	MaxDiscountAmount     *float64    `json:"max_discount_amount"`
	MinOrderValue         *float64    `json:"min_order_value"`
	ApplicableTiers       []string    `json:"applicable_tiers"`
	ApplicableCategoryIDs []uuid.UUID `json:"applicable_category_ids"`
	ApplicableProductIDs  []uuid.UUID `json:"applicable_product_ids"`
	RequiresCode          bool        `json:"requires_code"`
	UsageLimit            *int        `json:"usage_limit"`
	UsagePerCustomer      *int        `json:"usage_per_customer"`
	Priority              int         `json:"priority"`
	StartDate             string      `json:"start_date"` // RFC3339
	EndDate               string      `json:"end_date"`   // RFC3339
}

// Validate validates CreatePromotionRequest
func (r CreatePromotionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name,
			validation.Required.Error("Tên khuyến mãi không được để trống"),
			validation.Length(3, 200).Error("Tên khuyến mãi phải từ 3-200 ký tự"),
		),
		validation.Field(&r.Code,
			validation.Length(3, 50).Error("Mã khuyến mãi phải từ 3-50 ký tự"),
		),
		validation.Field(&r.Type,
			validation.Required,
			validation.In(string(PromotionTypePercentage), string(PromotionTypeFixedAmount)).
				Error("type phải là PERCENTAGE hoặc FIXED_AMOUNT"),
		),
		validation.Field(&r.Scope,
			validation.Required,
			validation.In(string(PromotionScopeProduct), string(PromotionScopeOrder)).
				Error("scope phải là PRODUCT hoặc ORDER"),
		),
		validation.Field(&r.Value,
			validation.Required.Error("Giá trị giảm không được để trống"),
			validation.Min(0.0).Exclusive().Error("Giá trị giảm phải > 0"),
		),
		validation.Field(&r.StartDate, validation.Required.Error("Thiếu start_date")),
		validation.Field(&r.EndDate, validation.Required.Error("Thiếu end_date")),
	)
}

// NormalizeCode chuyển code về dạng chuẩn (trim + uppercase)
func (r *CreatePromotionRequest) NormalizeCode() {
	if r.Code == nil {
		return
	}
	normalized := strings.ToUpper(strings.TrimSpace(*r.Code))
	if normalized == "" {
		r.Code = nil
		return
	}
	r.Code = &normalized
}

// UpdateStatusRequest - Request để admin bật/tắt promotion
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// Validate validates UpdateStatusRequest
func (r UpdateStatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status,
			validation.Required,
			validation.In(
				string(PromotionStatusActive),
				string(PromotionStatusInactive),
			).Error("status chỉ có thể là ACTIVE hoặc INACTIVE"),
		),
	)
}

// DeclareConflictRequest - Request khai báo cặp xung đột
type DeclareConflictRequest struct {
	ConflictsWith uuid.UUID `json:"conflicts_with"`
}

// Validate validates DeclareConflictRequest
func (r DeclareConflictRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ConflictsWith, validation.Required.Error("Thiếu conflicts_with")),
	)
}

// ListPromotionsFilter - Filter cho admin listing
type ListPromotionsFilter struct {
	Status *PromotionStatus
	Scope  *PromotionScope
	Search string
	Page   int
	Limit  int
}

// -------------------------------------------------------------------
// RESPONSES
// -------------------------------------------------------------------

// PromotionResponse là promotion trả về cho client
type PromotionResponse struct {
	ID                uuid.UUID        `json:"id"`
	Code              *string          `json:"code,omitempty"`
	Name              string           `json:"name"`
	Type              PromotionType    `json:"type"`
	Scope             PromotionScope   `json:"scope"`
	Value             decimal.Decimal  `json:"value"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount,omitempty"`
	MinOrderValue     *decimal.Decimal `json:"min_order_value,omitempty"`
	RequiresCode      bool             `json:"requires_code"`
	Priority          int              `json:"priority"`
	UsageLimit        *int             `json:"usage_limit,omitempty"`
	UsageCount        int              `json:"usage_count"`
	RemainingUses     *int             `json:"remaining_uses,omitempty"`
	StartDate         time.Time        `json:"start_date"`
	EndDate           time.Time        `json:"end_date"`
	Status            PromotionStatus  `json:"status"`
}

// PromotionDetailResponse là response chi tiết kèm conflicts + stats (admin)
type PromotionDetailResponse struct {
	PromotionResponse

	ApplicableTiers       []string    `json:"applicable_tiers,omitempty"`
	ApplicableCategoryIDs []uuid.UUID `json:"applicable_category_ids,omitempty"`
	ApplicableProductIDs  []uuid.UUID `json:"applicable_product_ids,omitempty"`
	UsagePerCustomer      *int        `json:"usage_per_customer,omitempty"`
	ConflictingIDs        []uuid.UUID `json:"conflicting_ids,omitempty"`
	Stats                 *UsageStats `json:"stats,omitempty"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// ToResponse converts Promotion to PromotionResponse
func (p *Promotion) ToResponse() *PromotionResponse {
	return &PromotionResponse{
		ID:                p.ID,
		Code:              p.Code,
		Name:              p.Name,
		Type:              p.Type,
		Scope:             p.Scope,
		Value:             p.Value,
		MaxDiscountAmount: p.MaxDiscountAmount,
		MinOrderValue:     p.MinOrderValue,
		RequiresCode:      p.RequiresCode,
		Priority:          p.Priority,
		UsageLimit:        p.UsageLimit,
		UsageCount:        p.UsageCount,
		RemainingUses:     p.RemainingUses(),
		StartDate:         p.StartDate,
		EndDate:           p.EndDate,
		Status:            p.Status,
	}
}
