package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func datePromo(start, end time.Time, status PromotionStatus) *Promotion {
	return &Promotion{
		ID:        uuid.New(),
		Name:      "Test",
		Type:      PromotionTypePercentage,
		Scope:     PromotionScopeOrder,
		Value:     decimal.NewFromInt(10),
		StartDate: start,
		EndDate:   end,
		Status:    status,
	}
}

func TestNextStatus(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	before := now.Add(-24 * time.Hour)
	after := now.Add(24 * time.Hour)

	tests := []struct {
		name       string
		promo      *Promotion
		wantStatus PromotionStatus
		wantChange bool
	}{
		{
			name:       "scheduled trong window thì activate",
			promo:      datePromo(before, after, PromotionStatusScheduled),
			wantStatus: PromotionStatusActive,
			wantChange: true,
		},
		{
			name:       "scheduled đã qua end_date thì expire thẳng",
			promo:      datePromo(before.Add(-48*time.Hour), before, PromotionStatusScheduled),
			wantStatus: PromotionStatusExpired,
			wantChange: true,
		},
		{
			name:       "scheduled chưa đến start_date thì giữ nguyên",
			promo:      datePromo(after, after.Add(24*time.Hour), PromotionStatusScheduled),
			wantStatus: PromotionStatusScheduled,
			wantChange: false,
		},
		{
			name:       "active qua end_date thì expire",
			promo:      datePromo(before.Add(-48*time.Hour), before, PromotionStatusActive),
			wantStatus: PromotionStatusExpired,
			wantChange: true,
		},
		{
			name:       "active trong window giữ nguyên",
			promo:      datePromo(before, after, PromotionStatusActive),
			wantStatus: PromotionStatusActive,
			wantChange: false,
		},
		{
			name:       "inactive trong window không bị scheduler đụng tới",
			promo:      datePromo(before, after, PromotionStatusInactive),
			wantStatus: PromotionStatusInactive,
			wantChange: false,
		},
		{
			name:       "inactive qua end_date vẫn expire",
			promo:      datePromo(before.Add(-48*time.Hour), before, PromotionStatusInactive),
			wantStatus: PromotionStatusExpired,
			wantChange: true,
		},
		{
			name:       "expired là terminal",
			promo:      datePromo(before, after, PromotionStatusExpired),
			wantStatus: PromotionStatusExpired,
			wantChange: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := tt.promo.NextStatus(now)
			assert.Equal(t, tt.wantStatus, got)
			assert.Equal(t, tt.wantChange, changed)
		})
	}
}

func TestIsWithinWindowInclusiveBounds(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)
	p := datePromo(start, end, PromotionStatusActive)

	assert.True(t, p.IsWithinWindow(start), "start_date là inclusive")
	assert.True(t, p.IsWithinWindow(end), "end_date là inclusive")
	assert.False(t, p.IsWithinWindow(start.Add(-time.Second)))
	assert.False(t, p.IsWithinWindow(end.Add(time.Second)))
}

func TestAppliesToTier(t *testing.T) {
	p := datePromo(time.Now(), time.Now().Add(time.Hour), PromotionStatusActive)

	// Empty target set = mọi tier
	assert.True(t, p.AppliesToTier("GOLD"))
	assert.True(t, p.AppliesToTier(""))

	p.ApplicableTiers = []string{"GOLD", "PLATINUM"}
	assert.True(t, p.AppliesToTier("GOLD"))
	assert.False(t, p.AppliesToTier("SILVER"))
	assert.False(t, p.AppliesToTier(""), "guest fail promotion giới hạn tier")
}

func TestMatchesLine(t *testing.T) {
	productID := uuid.New()
	categoryID := uuid.New()
	line := CartLine{
		ProductID:  productID,
		CategoryID: categoryID,
		Quantity:   1,
		UnitPrice:  decimal.NewFromInt(100),
	}

	p := datePromo(time.Now(), time.Now().Add(time.Hour), PromotionStatusActive)
	p.Scope = PromotionScopeProduct

	// Cả hai target set rỗng = match mọi line
	assert.True(t, p.MatchesLine(line))

	p.ApplicableProductIDs = []uuid.UUID{productID}
	assert.True(t, p.MatchesLine(line))

	p.ApplicableProductIDs = []uuid.UUID{uuid.New()}
	assert.False(t, p.MatchesLine(line))

	// Match theo category khi product không khớp
	p.ApplicableCategoryIDs = []uuid.UUID{categoryID}
	assert.True(t, p.MatchesLine(line))
}

func TestHasRemainingQuota(t *testing.T) {
	p := datePromo(time.Now(), time.Now().Add(time.Hour), PromotionStatusActive)

	assert.True(t, p.HasRemainingQuota(), "nil usage_limit = unlimited")

	limit := 10
	p.UsageLimit = &limit
	p.UsageCount = 9
	assert.True(t, p.HasRemainingQuota())

	p.UsageCount = 10
	assert.False(t, p.HasRemainingQuota())
}

func TestConflictSetSymmetry(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	set := ConflictSet{}
	set.Add(a, b)

	assert.True(t, set.Conflicts(a, b))
	assert.True(t, set.Conflicts(b, a), "conflict phải đối xứng")
	assert.False(t, set.Conflicts(a, c))
	assert.False(t, set.Conflicts(a, a), "không tự xung đột")
}

func TestConflictSetRejectsSelfPair(t *testing.T) {
	a := uuid.New()
	set := ConflictSet{}
	set.Add(a, a)

	require.False(t, set.Conflicts(a, a))
}
