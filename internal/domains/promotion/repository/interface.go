package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"repairshop-backend/internal/domains/promotion/model"
)

// PromotionRepository định nghĩa data access cho promotion definitions
type PromotionRepository interface {
	// Read operations
	FindByID(ctx context.Context, id uuid.UUID) (*model.Promotion, error)
	FindByCode(ctx context.Context, code string) (*model.Promotion, error)

	// FindActiveCandidates trả về mọi promotion ACTIVE có thể chạm tới cart:
	// toàn bộ ORDER-scope, và PRODUCT-scope có target set giao với cart
	// (hoặc target set rỗng). Pure filter - không quyết định eligibility.
	FindActiveCandidates(ctx context.Context, cart model.CartContext) ([]*model.Promotion, error)

	ListAdmin(ctx context.Context, filter *model.ListPromotionsFilter) ([]*model.Promotion, int, error)
	CheckCodeExists(ctx context.Context, code string, excludeID *uuid.UUID) (bool, error)

	// Write operations
	Create(ctx context.Context, promo *model.Promotion) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.PromotionStatus) error

	// Scheduler sweeps: set-based transitions, trả về số rows đã flip
	ActivateDue(ctx context.Context, now time.Time) (int64, error)
	ExpireDue(ctx context.Context, now time.Time) (int64, error)

	// Conflict pairs (đối xứng by construction, query cả hai chiều)
	AddConflict(ctx context.Context, a, b uuid.UUID) error
	RemoveConflict(ctx context.Context, a, b uuid.UUID) error
	ConflictsAmong(ctx context.Context, ids []uuid.UUID) (model.ConflictSet, error)
	ConflictsOf(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
}

// UsageLedger định nghĩa ghi nhận/hoàn tác lượt sử dụng promotion.
//
// RecordUsage phải serialize per-promotion: increment usage_count bằng
// conditional UPDATE có guard quota, hai confirmation đua lượt cuối thì
// đúng một cái thành công, cái kia nhận model.ErrQuotaExceeded.
type UsageLedger interface {
	CountCustomerUsage(ctx context.Context, promotionID, customerID uuid.UUID) (int, error)
	RecordUsage(ctx context.Context, usage *model.PromotionUsage) error
	// ReverseUsage hoàn tác mọi usage của order (idempotent: gọi lần hai no-op)
	ReverseUsage(ctx context.Context, orderID uuid.UUID) error
	// ReverseUsageRows hoàn tác đúng các usage row chỉ định. Dùng khi một
	// confirmation ghi dở dang phải rollback phần của CHÍNH NÓ - không được
	// đụng tới rows của confirmation trước đó trên cùng order.
	ReverseUsageRows(ctx context.Context, usageIDs []uuid.UUID) error
	GetUsageStats(ctx context.Context, promotionID uuid.UUID) (*model.UsageStats, error)
	ListUsage(ctx context.Context, promotionID uuid.UUID, page, limit int) ([]*model.PromotionUsage, int, error)
}
