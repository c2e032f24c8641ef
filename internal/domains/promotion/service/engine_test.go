package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairshop-backend/internal/domains/promotion/model"
)

// fakeRepo là in-memory PromotionRepository cho engine test
type fakeRepo struct {
	candidates []*model.Promotion
	byCode     map[string]*model.Promotion
	conflicts  model.ConflictSet
	findCalls  int
}

func newFakeRepo(candidates ...*model.Promotion) *fakeRepo {
	return &fakeRepo{
		candidates: candidates,
		byCode:     make(map[string]*model.Promotion),
		conflicts:  model.ConflictSet{},
	}
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Promotion, error) {
	for _, p := range f.candidates {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, model.ErrPromotionNotFound
}

func (f *fakeRepo) FindByCode(ctx context.Context, code string) (*model.Promotion, error) {
	if p, ok := f.byCode[code]; ok {
		return p, nil
	}
	return nil, model.ErrPromotionNotFound
}

func (f *fakeRepo) FindActiveCandidates(ctx context.Context, cart model.CartContext) ([]*model.Promotion, error) {
	f.findCalls++
	return f.candidates, nil
}

func (f *fakeRepo) ListAdmin(ctx context.Context, filter *model.ListPromotionsFilter) ([]*model.Promotion, int, error) {
	return f.candidates, len(f.candidates), nil
}

func (f *fakeRepo) CheckCodeExists(ctx context.Context, code string, excludeID *uuid.UUID) (bool, error) {
	_, ok := f.byCode[code]
	return ok, nil
}

func (f *fakeRepo) Create(ctx context.Context, promo *model.Promotion) error { return nil }

func (f *fakeRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.PromotionStatus) error {
	return nil
}

func (f *fakeRepo) ActivateDue(ctx context.Context, now time.Time) (int64, error) { return 0, nil }
func (f *fakeRepo) ExpireDue(ctx context.Context, now time.Time) (int64, error)  { return 0, nil }

func (f *fakeRepo) AddConflict(ctx context.Context, a, b uuid.UUID) error {
	f.conflicts.Add(a, b)
	return nil
}

func (f *fakeRepo) RemoveConflict(ctx context.Context, a, b uuid.UUID) error { return nil }

func (f *fakeRepo) ConflictsAmong(ctx context.Context, ids []uuid.UUID) (model.ConflictSet, error) {
	return f.conflicts, nil
}

func (f *fakeRepo) ConflictsOf(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

// fakeCache lưu JSON in-memory, đủ để kiểm tra read-through behavior
type fakeCache struct {
	data map[string][]byte
	sets int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (f *fakeCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := f.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = raw
	f.sets++
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeCache) DeletePattern(ctx context.Context, pattern string) error {
	f.data = make(map[string][]byte)
	return nil
}

func (f *fakeCache) Increment(ctx context.Context, key string) (int64, error) { return 1, nil }

func (f *fakeCache) Expire(ctx context.Context, key string, ttl time.Duration) error { return nil }

func (f *fakeCache) Ping(ctx context.Context) error { return nil }

// ----------------------------------------------------------------

func newEngine(repo *fakeRepo, ledger *fakeLedger) *DiscountEngine {
	return NewDiscountEngine(repo, ledger, nil)
}

func TestPreviewCartTotals(t *testing.T) {
	cart, p1, _ := twoLineCart() // 100 + 100
	rate := decimal.NewFromInt(5)
	cart.TierDiscountRate = rate

	productDeal := productPromo("Giảm sản phẩm", 5, "10", p1)
	orderDeal := orderPromo("Giảm đơn", 5, "10")

	engine := newEngine(newFakeRepo(productDeal, orderDeal), newFakeLedger())

	result, err := engine.PreviewCart(context.Background(), cart)
	require.NoError(t, err)

	// Product: 10% của 100 = 10. Order: 10% của (200-10) = 19.
	// Tier: 5% của (200-10-19) = 8.55. Final: 200 - 37.55 = 162.45
	assert.True(t, result.Subtotal.Equal(dec("200")), "subtotal = %s", result.Subtotal)
	assert.True(t, result.ProductDiscount.Equal(dec("10")), "product = %s", result.ProductDiscount)
	assert.True(t, result.OrderDiscount.Equal(dec("19")), "order = %s", result.OrderDiscount)
	assert.True(t, result.TierDiscount.Equal(dec("8.55")), "tier = %s", result.TierDiscount)
	assert.True(t, result.TotalDiscount.Equal(dec("37.55")), "total = %s", result.TotalDiscount)
	assert.True(t, result.FinalAmount.Equal(dec("162.45")), "final = %s", result.FinalAmount)
	assert.Len(t, result.Applied, 2)
}

func TestPreviewTierDiscountOnlyWhenRatePositive(t *testing.T) {
	cart := customerCart("100") // không set TierDiscountRate
	engine := newEngine(newFakeRepo(), newFakeLedger())

	result, err := engine.PreviewCart(context.Background(), cart)
	require.NoError(t, err)
	assert.True(t, result.TierDiscount.IsZero())
	assert.True(t, result.FinalAmount.Equal(dec("100")))
	assert.Empty(t, result.Applied)
	assert.Empty(t, result.Warnings)
}

func TestPreviewAutoPromoFailsSilently(t *testing.T) {
	cart := customerCart("100")

	// Promotion tự động (không cần mã) không đủ min order - khách không
	// nhập gì nên không cần biết nó tồn tại
	minOrder := dec("500")
	promo := activePromo()
	promo.MinOrderValue = &minOrder

	engine := newEngine(newFakeRepo(promo), newFakeLedger())

	result, err := engine.PreviewCart(context.Background(), cart)
	require.NoError(t, err)
	assert.Empty(t, result.Applied)
	assert.Empty(t, result.Warnings)
}

func TestPreviewEnteredCodeRejectionSurfaced(t *testing.T) {
	cart := customerCart("100")
	cart.Codes = []string{"TET2026"}

	code := "TET2026"
	minOrder := dec("500")
	promo := activePromo()
	promo.Code = &code
	promo.RequiresCode = true
	promo.MinOrderValue = &minOrder

	engine := newEngine(newFakeRepo(promo), newFakeLedger())

	result, err := engine.PreviewCart(context.Background(), cart)
	require.NoError(t, err)
	assert.Empty(t, result.Applied)
	require.Len(t, result.Warnings, 1, "mã khách nhập bị từ chối phải có warning")
}

func TestPreviewUnknownCodeWarning(t *testing.T) {
	cart := customerCart("100")
	cart.Codes = []string{"KHONGTONTAI"}

	engine := newEngine(newFakeRepo(), newFakeLedger())

	result, err := engine.PreviewCart(context.Background(), cart)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "KHONGTONTAI")
}

func TestPreviewExpiredCodeLoadedFromRepo(t *testing.T) {
	cart := customerCart("100")
	cart.Codes = []string{"HETHAN"}

	// Promotion EXPIRED không nằm trong candidate query - engine phải
	// load riêng theo mã để khách biết lý do
	code := "HETHAN"
	promo := activePromo()
	promo.Code = &code
	promo.RequiresCode = true
	promo.Status = model.PromotionStatusExpired
	promo.EndDate = time.Now().Add(-time.Hour)

	repo := newFakeRepo()
	repo.byCode[code] = promo

	engine := newEngine(repo, newFakeLedger())

	result, err := engine.PreviewCart(context.Background(), cart)
	require.NoError(t, err)
	assert.Empty(t, result.Applied)
	require.Len(t, result.Warnings, 1)
}

func TestPreviewUsesCacheConfirmReadsThrough(t *testing.T) {
	cart := customerCart("100")
	repo := newFakeRepo(activePromo())
	cacheClient := newFakeCache()

	engine := NewDiscountEngine(repo, newFakeLedger(), cacheClient)

	_, err := engine.PreviewCart(context.Background(), cart)
	require.NoError(t, err)
	_, err = engine.PreviewCart(context.Background(), cart)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.findCalls, "preview thứ hai phải hit cache")
	assert.Equal(t, 1, cacheClient.sets)

	_, err = engine.ConfirmOrder(context.Background(), uuid.New(), cart)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.findCalls, "confirm luôn đọc thẳng DB")
}

func TestConfirmOrderRecordsUsage(t *testing.T) {
	cart := customerCart("200")
	promo := activePromo()
	ledger := newFakeLedger()
	orderID := uuid.New()

	engine := newEngine(newFakeRepo(promo), ledger)

	result, err := engine.ConfirmOrder(context.Background(), orderID, cart)
	require.NoError(t, err)
	require.Len(t, result.Applied, 1)

	require.Len(t, ledger.recorded, 1)
	usage := ledger.recorded[0]
	assert.Equal(t, promo.ID, usage.PromotionID)
	assert.Equal(t, orderID, usage.OrderID)
	assert.Equal(t, cart.CustomerID, usage.CustomerID)
	assert.True(t, usage.DiscountAmount.Equal(dec("20")))
}

func TestConfirmOrderQuotaFailureRollsBackOwnRows(t *testing.T) {
	cart, p1, _ := twoLineCart()
	productDeal := productPromo("Giảm sản phẩm", 5, "10", p1)
	orderDeal := orderPromo("Giảm đơn", 5, "10")

	ledger := newFakeLedger()
	ledger.limits[orderDeal.ID] = 0 // hết lượt sẵn, record sẽ fail

	engine := newEngine(newFakeRepo(productDeal, orderDeal), ledger)

	_, err := engine.ConfirmOrder(context.Background(), uuid.New(), cart)
	require.Error(t, err)

	var appErr *model.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, model.ErrCodeQuotaExceeded, appErr.Code)
	assert.Equal(t, 409, appErr.HTTPStatus)

	// Usage của product promo ghi trước đó trong CÙNG lần confirm phải được
	// hoàn tác trước khi trả lỗi
	assert.Empty(t, ledger.rows)
	assert.Equal(t, 0, ledger.counts[productDeal.ID])
}

// Client retry một order đã confirm: lần hai trả 409 nhưng ledger của lần
// confirm đầu phải còn nguyên - rollback chỉ được đụng tới rows của chính
// lần confirm thất bại
func TestConfirmOrderRetryKeepsOriginalUsage(t *testing.T) {
	cart := customerCart("200")
	promo := activePromo()
	ledger := newFakeLedger()
	orderID := uuid.New()

	engine := newEngine(newFakeRepo(promo), ledger)

	_, err := engine.ConfirmOrder(context.Background(), orderID, cart)
	require.NoError(t, err)
	require.Len(t, ledger.rows, 1)

	_, err = engine.ConfirmOrder(context.Background(), orderID, cart)
	require.Error(t, err)

	var appErr *model.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 409, appErr.HTTPStatus)

	// Row của lần confirm đầu còn nguyên, usage_count vẫn đúng 1 lượt
	require.Len(t, ledger.rows, 1)
	assert.Equal(t, 1, ledger.counts[promo.ID])
	original := ledger.recorded[0]
	assert.Equal(t, original, ledger.rows[original.ID])
}

// Promotion còn đúng 1 lượt, hai order lần lượt confirm: đúng một cái thành
// công, usage_count dừng ở limit. Eligibility snapshot không biết quota mới
// nhất - guard ở tầng ledger mới là chốt chặn.
func TestConfirmOrderLastSlotExactlyOneSucceeds(t *testing.T) {
	promo := activePromo()
	ledger := newFakeLedger()
	ledger.limits[promo.ID] = 1

	engine := newEngine(newFakeRepo(promo), ledger)

	_, err := engine.ConfirmOrder(context.Background(), uuid.New(), customerCart("200"))
	require.NoError(t, err)

	_, err = engine.ConfirmOrder(context.Background(), uuid.New(), customerCart("200"))
	require.Error(t, err)

	var appErr *model.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, model.ErrCodeQuotaExceeded, appErr.Code)

	assert.Equal(t, 1, ledger.counts[promo.ID])
	assert.Len(t, ledger.rows, 1)
}

func TestConfirmOrderDuplicateUsageConflict(t *testing.T) {
	cart := customerCart("200")
	ledger := newFakeLedger()
	ledger.recordErr = model.ErrDuplicateUsage

	engine := newEngine(newFakeRepo(activePromo()), ledger)

	_, err := engine.ConfirmOrder(context.Background(), uuid.New(), cart)
	require.Error(t, err)

	var appErr *model.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 409, appErr.HTTPStatus)
}

func TestConfirmOrderNoPromotionsNoUsage(t *testing.T) {
	cart := customerCart("100")
	ledger := newFakeLedger()

	engine := newEngine(newFakeRepo(), ledger)

	result, err := engine.ConfirmOrder(context.Background(), uuid.New(), cart)
	require.NoError(t, err)
	assert.Empty(t, result.Applied)
	assert.Empty(t, ledger.recorded)
}

func TestCancelOrderIdempotent(t *testing.T) {
	ledger := newFakeLedger()
	engine := newEngine(newFakeRepo(), ledger)
	orderID := uuid.New()

	require.NoError(t, engine.CancelOrder(context.Background(), orderID))
	require.NoError(t, engine.CancelOrder(context.Background(), orderID))
	assert.Len(t, ledger.reversed, 2)
}

func TestCancelOrderDoubleReverseKeepsCounts(t *testing.T) {
	cart := customerCart("200")
	promo := activePromo()
	ledger := newFakeLedger()
	orderID := uuid.New()

	engine := newEngine(newFakeRepo(promo), ledger)

	_, err := engine.ConfirmOrder(context.Background(), orderID, cart)
	require.NoError(t, err)
	require.Equal(t, 1, ledger.counts[promo.ID])

	require.NoError(t, engine.CancelOrder(context.Background(), orderID))
	require.NoError(t, engine.CancelOrder(context.Background(), orderID))

	assert.Empty(t, ledger.rows)
	assert.Equal(t, 0, ledger.counts[promo.ID], "reverse lần hai không được kéo count xuống âm")
}

func TestCandidateCacheKeyIgnoresQuantityAndPrice(t *testing.T) {
	cart, _, _ := twoLineCart()

	other := cart
	other.Lines = make([]model.CartLine, len(cart.Lines))
	copy(other.Lines, cart.Lines)
	other.Lines[0].Quantity = 99
	other.Lines[0].UnitPrice = dec("1")

	assert.Equal(t, candidateCacheKey(cart), candidateCacheKey(other),
		"key chỉ phụ thuộc tier + product/category ids")

	other.Lines[0].ProductID = uuid.New()
	assert.NotEqual(t, candidateCacheKey(cart), candidateCacheKey(other))
}
