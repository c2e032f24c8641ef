package service

import (
	"context"

	"github.com/google/uuid"

	"repairshop-backend/internal/domains/promotion/model"
)

// ServiceInterface định nghĩa contract cho promotion admin service
type ServiceInterface interface {
	// Admin CRUD
	CreatePromotion(ctx context.Context, req *model.CreatePromotionRequest) (*model.PromotionResponse, error)
	ListPromotions(ctx context.Context, filter *model.ListPromotionsFilter) ([]*model.PromotionResponse, int, error)
	GetPromotionDetail(ctx context.Context, id uuid.UUID) (*model.PromotionDetailResponse, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.PromotionStatus) (*model.PromotionResponse, error)

	// Conflict pairs
	DeclareConflict(ctx context.Context, id, other uuid.UUID) error
	RemoveConflict(ctx context.Context, id, other uuid.UUID) error

	// Usage ledger (admin view)
	ListUsage(ctx context.Context, promotionID uuid.UUID, page, limit int) ([]*model.PromotionUsage, int, error)

	// Scheduler sweeps - gọi từ worker jobs
	ActivateScheduled(ctx context.Context) (int64, error)
	ExpireOverdue(ctx context.Context) (int64, error)
}

// EngineInterface định nghĩa contract cho discount engine (order flow)
type EngineInterface interface {
	PreviewCart(ctx context.Context, cart model.CartContext) (*model.CartDiscountResult, error)
	ConfirmOrder(ctx context.Context, orderID uuid.UUID, cart model.CartContext) (*model.CartDiscountResult, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID) error
}
