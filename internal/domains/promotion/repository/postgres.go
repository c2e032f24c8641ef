package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"repairshop-backend/internal/domains/promotion/model"
	"repairshop-backend/internal/shared/utils"
	"repairshop-backend/pkg/database"
)

// promotionColumns là danh sách cột chuẩn cho mọi SELECT trên promotions
const promotionColumns = `
	id, code, name, type, scope, value, max_discount_amount,
	min_order_value, applicable_tiers, applicable_category_ids, applicable_product_ids,
	requires_code, usage_limit, usage_count, usage_per_customer,
	priority, start_date, end_date, status, created_at, updated_at`

// PostgresRepository triển khai PromotionRepository và UsageLedger với PostgreSQL
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository tạo instance mới
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanPromotion(row pgx.Row) (*model.Promotion, error) {
	var p model.Promotion
	err := row.Scan(
		&p.ID,
		&p.Code, // nullable
		&p.Name,
		&p.Type,
		&p.Scope,
		&p.Value,
		&p.MaxDiscountAmount, // nullable
		&p.MinOrderValue,     // nullable
		&p.ApplicableTiers,
		&p.ApplicableCategoryIDs,
		&p.ApplicableProductIDs,
		&p.RequiresCode,
		&p.UsageLimit, // nullable
		&p.UsageCount,
		&p.UsagePerCustomer, // nullable
		&p.Priority,
		&p.StartDate,
		&p.EndDate,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// -------------------------------------------------------------------
// READ OPERATIONS
// -------------------------------------------------------------------

// FindByID tìm promotion theo ID
func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Promotion, error) {
	query := `SELECT` + promotionColumns + `
		FROM promotions
		WHERE id = $1`

	p, err := scanPromotion(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrPromotionNotFound
		}
		return nil, fmt.Errorf("find promotion by id: %w", err)
	}
	return p, nil
}

// FindByCode tìm promotion theo mã.
//
// So khớp exact + case-sensitive: mã khách nhập phải trùng từng ký tự
// (uniqueness lúc tạo vẫn là case-insensitive, xem CheckCodeExists).
func (r *PostgresRepository) FindByCode(ctx context.Context, code string) (*model.Promotion, error) {
	query := `SELECT` + promotionColumns + `
		FROM promotions
		WHERE code = $1`

	p, err := scanPromotion(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrPromotionNotFound
		}
		return nil, fmt.Errorf("find promotion by code: %w", err)
	}
	return p, nil
}

// FindActiveCandidates lấy các promotion ACTIVE có thể chạm tới cart.
//
// - Mọi ORDER-scope promotion là candidate
// - PRODUCT-scope: target set giao với category/product của cart,
//   hoặc cả hai target set rỗng (= áp dụng mọi sản phẩm)
//
// Đây là pure filter trên persisted state, không xét date window / quota /
// tier - đó là việc của EligibilityFilter.
func (r *PostgresRepository) FindActiveCandidates(ctx context.Context, cart model.CartContext) ([]*model.Promotion, error) {
	categoryIDs := make([]uuid.UUID, 0, len(cart.Lines))
	productIDs := make([]uuid.UUID, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		categoryIDs = append(categoryIDs, line.CategoryID)
		productIDs = append(productIDs, line.ProductID)
	}

	query := `SELECT` + promotionColumns + `
		FROM promotions
		WHERE status = $1
		  AND (
			scope = $2
			OR (
				scope = $3 AND (
					(cardinality(applicable_category_ids) = 0 AND cardinality(applicable_product_ids) = 0)
					OR applicable_category_ids && $4
					OR applicable_product_ids && $5
				)
			)
		  )
		ORDER BY priority DESC, start_date ASC`

	rows, err := r.db.Query(ctx, query,
		model.PromotionStatusActive,
		model.PromotionScopeOrder,
		model.PromotionScopeProduct,
		categoryIDs,
		productIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("find active candidates: %w", err)
	}
	defer rows.Close()

	var promotions []*model.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		promotions = append(promotions, p)
	}
	return promotions, rows.Err()
}

// ListAdmin lấy danh sách promotion với filter (Admin)
func (r *PostgresRepository) ListAdmin(ctx context.Context, filter *model.ListPromotionsFilter) ([]*model.Promotion, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argIdx := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.Scope != nil {
		conditions = append(conditions, fmt.Sprintf("scope = $%d", argIdx))
		args = append(args, *filter.Scope)
		argIdx++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR code ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+filter.Search+"%")
		argIdx++
	}

	where := utils.JoinWithAnd(conditions)

	var total int
	countQuery := `SELECT COUNT(*) FROM promotions WHERE ` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count promotions: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := `SELECT` + promotionColumns + `
		FROM promotions
		WHERE ` + where + fmt.Sprintf(`
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, argIdx, argIdx+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list promotions: %w", err)
	}
	defer rows.Close()

	var promotions []*model.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan promotion: %w", err)
		}
		promotions = append(promotions, p)
	}
	return promotions, total, rows.Err()
}

// CheckCodeExists kiểm tra code đã tồn tại chưa (case-insensitive để tránh
// hai mã chỉ khác hoa thường gây nhầm lẫn cho khách)
func (r *PostgresRepository) CheckCodeExists(ctx context.Context, code string, excludeID *uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(
		SELECT 1 FROM promotions
		WHERE LOWER(code) = LOWER($1) AND ($2::uuid IS NULL OR id <> $2)
	)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, code, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check code exists: %w", err)
	}
	return exists, nil
}

// -------------------------------------------------------------------
// WRITE OPERATIONS
// -------------------------------------------------------------------

// Create tạo promotion mới (status ban đầu do service quyết định)
func (r *PostgresRepository) Create(ctx context.Context, promo *model.Promotion) error {
	if promo.ID == uuid.Nil {
		promo.ID = uuid.New()
	}

	query := `
		INSERT INTO promotions (
			id, code, name, type, scope, value, max_discount_amount,
			min_order_value, applicable_tiers, applicable_category_ids, applicable_product_ids,
			requires_code, usage_limit, usage_count, usage_per_customer,
			priority, start_date, end_date, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, 0, $14,
			$15, $16, $17, $18, NOW(), NOW()
		)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		promo.ID,
		promo.Code,
		promo.Name,
		promo.Type,
		promo.Scope,
		promo.Value,
		promo.MaxDiscountAmount,
		promo.MinOrderValue,
		promo.ApplicableTiers,
		promo.ApplicableCategoryIDs,
		promo.ApplicableProductIDs,
		promo.RequiresCode,
		promo.UsageLimit,
		promo.UsagePerCustomer,
		promo.Priority,
		promo.StartDate,
		promo.EndDate,
		promo.Status,
	).Scan(&promo.CreatedAt, &promo.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrDuplicateCode
		}
		return fmt.Errorf("create promotion: %w", err)
	}
	return nil
}

// UpdateStatus đổi status thủ công (admin).
//
// EXPIRED là terminal: không cho admin đổi status của promotion đã hết hạn.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.PromotionStatus) error {
	query := `
		UPDATE promotions
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status <> $3`

	tag, err := r.db.Exec(ctx, query, id, status, model.PromotionStatusExpired)
	if err != nil {
		return fmt.Errorf("update promotion status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// phân biệt not-found với promotion đã EXPIRED
		var exists bool
		if err := r.db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM promotions WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("update promotion status: %w", err)
		}
		if !exists {
			return model.ErrPromotionNotFound
		}
		return model.ErrInvalidTransition
	}
	return nil
}

// -------------------------------------------------------------------
// SCHEDULER SWEEPS
// -------------------------------------------------------------------

// ActivateDue flips SCHEDULED promotions whose window has opened.
// Set-based: một UPDATE duy nhất, không read-then-write từng row.
func (r *PostgresRepository) ActivateDue(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE promotions
		SET status = $1, updated_at = $2
		WHERE status = $3 AND start_date <= $2 AND end_date > $2`

	tag, err := r.db.Exec(ctx, query,
		model.PromotionStatusActive, now, model.PromotionStatusScheduled)
	if err != nil {
		return 0, fmt.Errorf("activate due promotions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ExpireDue flips SCHEDULED/ACTIVE/INACTIVE promotions past their end date.
// INACTIVE cũng expire: override của admin chỉ có nghĩa trong window,
// qua end_date không còn đường quay lại ACTIVE.
func (r *PostgresRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE promotions
		SET status = $1, updated_at = $2
		WHERE status = ANY($3) AND end_date <= $2`

	tag, err := r.db.Exec(ctx, query,
		model.PromotionStatusExpired, now,
		[]model.PromotionStatus{model.PromotionStatusScheduled, model.PromotionStatusActive, model.PromotionStatusInactive})
	if err != nil {
		return 0, fmt.Errorf("expire due promotions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// -------------------------------------------------------------------
// CONFLICT PAIRS
// -------------------------------------------------------------------

// canonicalPair sắp xếp cặp theo thứ tự cố định để quan hệ vô hướng
// chỉ lưu một row cho mỗi cặp
func canonicalPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}

// AddConflict khai báo cặp xung đột (idempotent)
func (r *PostgresRepository) AddConflict(ctx context.Context, a, b uuid.UUID) error {
	if a == b {
		return model.ErrConflictWithItself
	}
	lo, hi := canonicalPair(a, b)

	query := `
		INSERT INTO promotion_conflicts (promotion_id, conflicts_with)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	if _, err := r.db.Exec(ctx, query, lo, hi); err != nil {
		if isForeignKeyViolation(err) {
			return model.ErrPromotionNotFound
		}
		return fmt.Errorf("add conflict pair: %w", err)
	}
	return nil
}

// RemoveConflict gỡ cặp xung đột (idempotent)
func (r *PostgresRepository) RemoveConflict(ctx context.Context, a, b uuid.UUID) error {
	lo, hi := canonicalPair(a, b)

	query := `DELETE FROM promotion_conflicts WHERE promotion_id = $1 AND conflicts_with = $2`
	if _, err := r.db.Exec(ctx, query, lo, hi); err != nil {
		return fmt.Errorf("remove conflict pair: %w", err)
	}
	return nil
}

// ConflictsAmong trả về ConflictSet của các cặp mà CẢ HAI đầu nằm trong ids
// (đủ cho selector - promotion ngoài candidate set không bao giờ được apply)
func (r *PostgresRepository) ConflictsAmong(ctx context.Context, ids []uuid.UUID) (model.ConflictSet, error) {
	if len(ids) < 2 {
		return make(model.ConflictSet), nil
	}

	query := `
		SELECT promotion_id, conflicts_with
		FROM promotion_conflicts
		WHERE promotion_id = ANY($1) AND conflicts_with = ANY($1)`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("load conflict pairs: %w", err)
	}
	defer rows.Close()

	var pairs []model.ConflictPair
	for rows.Next() {
		var pair model.ConflictPair
		if err := rows.Scan(&pair.PromotionID, &pair.ConflictsWith); err != nil {
			return nil, fmt.Errorf("scan conflict pair: %w", err)
		}
		pairs = append(pairs, pair)
	}
	return model.NewConflictSet(pairs), rows.Err()
}

// ConflictsOf trả về mọi promotion xung đột với id (query cả hai chiều)
func (r *PostgresRepository) ConflictsOf(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT CASE WHEN promotion_id = $1 THEN conflicts_with ELSE promotion_id END
		FROM promotion_conflicts
		WHERE promotion_id = $1 OR conflicts_with = $1`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("load conflicts of promotion: %w", err)
	}
	defer rows.Close()

	var others []uuid.UUID
	for rows.Next() {
		var other uuid.UUID
		if err := rows.Scan(&other); err != nil {
			return nil, fmt.Errorf("scan conflict id: %w", err)
		}
		others = append(others, other)
	}
	return others, rows.Err()
}

// -------------------------------------------------------------------
// USAGE LEDGER
// -------------------------------------------------------------------

// CountCustomerUsage đếm số lượt một khách đã dùng promotion
// (guest orders có customer_id NULL nên không bao giờ được đếm vào đây)
func (r *PostgresRepository) CountCustomerUsage(ctx context.Context, promotionID, customerID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM promotion_usage_history
		WHERE promotion_id = $1 AND customer_id = $2`

	var count int
	if err := r.db.QueryRow(ctx, query, promotionID, customerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count customer usage: %w", err)
	}
	return count, nil
}

// RecordUsage ghi nhận một lượt sử dụng trong một transaction duy nhất.
//
// Guard chống lost update: conditional UPDATE kiểm tra quota ngay trong
// câu lệnh, check affected rows. Hai confirmation cùng đua lượt cuối thì
// row lock của Postgres serialize chúng - cái đến sau thấy usage_count
// đã chạm limit và nhận ErrQuotaExceeded, caller phải abort/retry.
func (r *PostgresRepository) RecordUsage(ctx context.Context, usage *model.PromotionUsage) error {
	if usage.ID == uuid.Nil {
		usage.ID = uuid.New()
	}

	return database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		incrementQuery := `
			UPDATE promotions
			SET usage_count = usage_count + 1, updated_at = NOW()
			WHERE id = $1
			  AND (usage_limit IS NULL OR usage_count < usage_limit)`

		tag, err := tx.Exec(ctx, incrementQuery, usage.PromotionID)
		if err != nil {
			return fmt.Errorf("increment usage count: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS(SELECT 1 FROM promotions WHERE id = $1)`, usage.PromotionID,
			).Scan(&exists); err != nil {
				return fmt.Errorf("increment usage count: %w", err)
			}
			if !exists {
				return model.ErrPromotionNotFound
			}
			return model.ErrQuotaExceeded
		}

		insertQuery := `
			INSERT INTO promotion_usage_history (
				id, promotion_id, customer_id, order_id, discount_amount, used_at
			) VALUES ($1, $2, $3, $4, $5, NOW())
			RETURNING used_at`

		err = tx.QueryRow(ctx, insertQuery,
			usage.ID,
			usage.PromotionID,
			usage.CustomerID,
			usage.OrderID,
			usage.DiscountAmount,
		).Scan(&usage.UsedAt)
		if err != nil {
			// unique (promotion_id, order_id): một order không ghi trùng lượt
			if isUniqueViolation(err) {
				return model.ErrDuplicateUsage
			}
			return fmt.Errorf("insert usage history: %w", err)
		}
		return nil
	})
}

// ReverseUsage hoàn tác mọi usage của một order khi order bị cancel.
//
// Idempotent: DELETE ... RETURNING trả về rỗng ở lần gọi thứ hai nên
// không decrement lần nữa; GREATEST giữ usage_count không âm.
func (r *PostgresRepository) ReverseUsage(ctx context.Context, orderID uuid.UUID) error {
	return database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			DELETE FROM promotion_usage_history
			WHERE order_id = $1
			RETURNING promotion_id`, orderID)
		if err != nil {
			return fmt.Errorf("delete usage history: %w", err)
		}

		var promotionIDs []uuid.UUID
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan reversed promotion id: %w", err)
			}
			promotionIDs = append(promotionIDs, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("delete usage history: %w", err)
		}

		for _, id := range promotionIDs {
			if _, err := tx.Exec(ctx, `
				UPDATE promotions
				SET usage_count = GREATEST(usage_count - 1, 0), updated_at = NOW()
				WHERE id = $1`, id); err != nil {
				return fmt.Errorf("decrement usage count: %w", err)
			}
		}
		return nil
	})
}

// ReverseUsageRows hoàn tác đúng các usage row chỉ định (rollback phần ghi
// dở của một confirmation). Cùng cấu trúc với ReverseUsage nhưng khoanh vùng
// theo usage id thay vì order id, để không xóa nhầm rows của confirmation
// trước đó trên cùng order.
func (r *PostgresRepository) ReverseUsageRows(ctx context.Context, usageIDs []uuid.UUID) error {
	if len(usageIDs) == 0 {
		return nil
	}

	return database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			DELETE FROM promotion_usage_history
			WHERE id = ANY($1)
			RETURNING promotion_id`, usageIDs)
		if err != nil {
			return fmt.Errorf("delete usage rows: %w", err)
		}

		var promotionIDs []uuid.UUID
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan reversed promotion id: %w", err)
			}
			promotionIDs = append(promotionIDs, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("delete usage rows: %w", err)
		}

		for _, id := range promotionIDs {
			if _, err := tx.Exec(ctx, `
				UPDATE promotions
				SET usage_count = GREATEST(usage_count - 1, 0), updated_at = NOW()
				WHERE id = $1`, id); err != nil {
				return fmt.Errorf("decrement usage count: %w", err)
			}
		}
		return nil
	})
}

// GetUsageStats thống kê usage của một promotion
func (r *PostgresRepository) GetUsageStats(ctx context.Context, promotionID uuid.UUID) (*model.UsageStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(DISTINCT customer_id),
			COALESCE(SUM(discount_amount), 0)
		FROM promotion_usage_history
		WHERE promotion_id = $1`

	var stats model.UsageStats
	err := r.db.QueryRow(ctx, query, promotionID).Scan(
		&stats.TotalUses,
		&stats.UniqueCustomers,
		&stats.TotalDiscount,
	)
	if err != nil {
		return nil, fmt.Errorf("get usage stats: %w", err)
	}
	return &stats, nil
}

// ListUsage lấy lịch sử sử dụng promotion (mới nhất trước)
func (r *PostgresRepository) ListUsage(ctx context.Context, promotionID uuid.UUID, page, limit int) ([]*model.PromotionUsage, int, error) {
	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM promotion_usage_history WHERE promotion_id = $1`, promotionID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count usage history: %w", err)
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT id, promotion_id, customer_id, order_id, discount_amount, used_at
		FROM promotion_usage_history
		WHERE promotion_id = $1
		ORDER BY used_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, promotionID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list usage history: %w", err)
	}
	defer rows.Close()

	var usages []*model.PromotionUsage
	for rows.Next() {
		var u model.PromotionUsage
		if err := rows.Scan(
			&u.ID,
			&u.PromotionID,
			&u.CustomerID,
			&u.OrderID,
			&u.DiscountAmount,
			&u.UsedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan usage row: %w", err)
		}
		usages = append(usages, &u)
	}
	return usages, total, rows.Err()
}

// -------------------------------------------------------------------
// HELPERS
// -------------------------------------------------------------------

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
