package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairshop-backend/internal/domains/promotion/model"
)

func orderPromo(name string, priority int, percent string) *model.Promotion {
	p := activePromo()
	p.Name = name
	p.Priority = priority
	p.Value = dec(percent)
	return p
}

func productPromo(name string, priority int, percent string, products ...uuid.UUID) *model.Promotion {
	p := orderPromo(name, priority, percent)
	p.Scope = model.PromotionScopeProduct
	p.ApplicableProductIDs = products
	return p
}

func twoLineCart() (model.CartContext, uuid.UUID, uuid.UUID) {
	p1, p2 := uuid.New(), uuid.New()
	customerID := uuid.New()
	cart := model.CartContext{
		CustomerID: &customerID,
		Lines: []model.CartLine{
			{ProductID: p1, CategoryID: uuid.New(), Quantity: 1, UnitPrice: dec("100")},
			{ProductID: p2, CategoryID: uuid.New(), Quantity: 2, UnitPrice: dec("50")},
		},
	}
	return cart, p1, p2
}

func TestSelectSingleOrderScopeWinner(t *testing.T) {
	selector := NewSelector(NewDiscountCalculator())
	cart, _, _ := twoLineCart()

	high := orderPromo("Cao", 10, "10")
	low := orderPromo("Thấp", 5, "20")

	selection := selector.Select(cart, []*model.Promotion{low, high}, model.ConflictSet{})

	require.NotNil(t, selection.Order)
	assert.Equal(t, high.ID, selection.Order.Promotion.ID, "priority cao hơn thắng dù discount nhỏ hơn")
	require.Len(t, selection.Rejections, 1)
	assert.Equal(t, model.ErrCodePromoConflict, selection.Rejections[0].Code)
	assert.Equal(t, low.ID.String(), selection.Rejections[0].PromotionID)
}

func TestSelectOrderScopeTieBreakByDiscount(t *testing.T) {
	selector := NewSelector(NewDiscountCalculator())
	cart, _, _ := twoLineCart() // subtotal 200

	small := orderPromo("Nhỏ", 5, "10")
	big := orderPromo("Lớn", 5, "25")

	selection := selector.Select(cart, []*model.Promotion{small, big}, model.ConflictSet{})

	require.NotNil(t, selection.Order)
	assert.Equal(t, big.ID, selection.Order.Promotion.ID, "cùng priority thì discount lớn hơn thắng")
}

func TestSelectOrderScopeTieBreakByStartDate(t *testing.T) {
	selector := NewSelector(NewDiscountCalculator())
	cart, _, _ := twoLineCart()

	older := orderPromo("Cũ", 5, "10")
	older.StartDate = time.Now().Add(-48 * time.Hour)
	newer := orderPromo("Mới", 5, "10")
	newer.StartDate = time.Now().Add(-time.Hour)

	selection := selector.Select(cart, []*model.Promotion{newer, older}, model.ConflictSet{})

	require.NotNil(t, selection.Order)
	assert.Equal(t, older.ID, selection.Order.Promotion.ID, "cùng priority + discount thì start_date sớm hơn thắng")
}

func TestSelectProductScopeDisjointLines(t *testing.T) {
	selector := NewSelector(NewDiscountCalculator())
	cart, p1, p2 := twoLineCart()

	promoA := productPromo("A", 10, "10", p1)
	promoB := productPromo("B", 5, "10", p2)

	selection := selector.Select(cart, []*model.Promotion{promoA, promoB}, model.ConflictSet{})

	// Nhắm vào dòng rời nhau → cả hai cùng áp dụng
	require.Len(t, selection.Product, 2)
	assert.Empty(t, selection.Rejections)
}

func TestSelectProductScopeLineClaimedOnce(t *testing.T) {
	selector := NewSelector(NewDiscountCalculator())
	cart, p1, _ := twoLineCart()

	winner := productPromo("Thắng", 10, "10", p1)
	loser := productPromo("Thua", 5, "20", p1)

	selection := selector.Select(cart, []*model.Promotion{loser, winner}, model.ConflictSet{})

	// Cùng nhắm dòng p1 - chỉ promotion priority cao claim được
	require.Len(t, selection.Product, 1)
	assert.Equal(t, winner.ID, selection.Product[0].Promotion.ID)
	require.Len(t, selection.Rejections, 1)
	assert.Equal(t, loser.ID.String(), selection.Rejections[0].PromotionID)
}

func TestSelectConflictExcludesLoser(t *testing.T) {
	selector := NewSelector(NewDiscountCalculator())
	cart, _, _ := twoLineCart()

	high := orderPromo("Cao", 10, "10")
	low := orderPromo("Thấp", 5, "20")

	conflicts := model.ConflictSet{}
	conflicts.Add(high.ID, low.ID)

	selection := selector.Select(cart, []*model.Promotion{high, low}, conflicts)

	require.NotNil(t, selection.Order)
	assert.Equal(t, high.ID, selection.Order.Promotion.ID)
	require.Len(t, selection.Rejections, 1)
	assert.Contains(t, selection.Rejections[0].Message, "xung đột")
}

// Conflict declarations áp dụng bất kể scope: PRODUCT-scope xung đột với
// ORDER-scope winner bị loại toàn bộ, không áp dụng một phần
func TestSelectConflictIsScopeAgnostic(t *testing.T) {
	selector := NewSelector(NewDiscountCalculator())
	cart, p1, _ := twoLineCart()

	orderWinner := orderPromo("Đơn", 10, "10")
	productLoser := productPromo("Sản phẩm", 5, "10", p1)

	conflicts := model.ConflictSet{}
	conflicts.Add(orderWinner.ID, productLoser.ID)

	selection := selector.Select(cart, []*model.Promotion{orderWinner, productLoser}, conflicts)

	require.NotNil(t, selection.Order)
	assert.Empty(t, selection.Product, "promotion xung đột không được áp dụng dù ở dòng khác")
	require.Len(t, selection.Rejections, 1)
	assert.Equal(t, productLoser.ID.String(), selection.Rejections[0].PromotionID)
}

// Invariant: không bao giờ có hai promotion xung đột cùng được chọn
func TestSelectNeverPicksConflictingPair(t *testing.T) {
	selector := NewSelector(NewDiscountCalculator())
	cart, p1, p2 := twoLineCart()

	promos := []*model.Promotion{
		orderPromo("O1", 10, "10"),
		orderPromo("O2", 8, "15"),
		productPromo("P1", 9, "10", p1),
		productPromo("P2", 7, "10", p2),
	}

	conflicts := model.ConflictSet{}
	conflicts.Add(promos[0].ID, promos[2].ID)
	conflicts.Add(promos[2].ID, promos[3].ID)

	selection := selector.Select(cart, promos, conflicts)

	applied := selection.Applied()
	for i := range applied {
		for j := i + 1; j < len(applied); j++ {
			assert.False(t,
				conflicts.Conflicts(applied[i].Promotion.ID, applied[j].Promotion.ID),
				"%s và %s xung đột nhưng cùng được chọn",
				applied[i].Promotion.Name, applied[j].Promotion.Name)
		}
	}
}

func TestSelectDeterministicAcrossInputOrder(t *testing.T) {
	selector := NewSelector(NewDiscountCalculator())
	cart, p1, p2 := twoLineCart()

	a := orderPromo("A", 5, "10")
	b := orderPromo("B", 5, "10")
	c := productPromo("C", 5, "10", p1, p2)

	first := selector.Select(cart, []*model.Promotion{a, b, c}, model.ConflictSet{})
	second := selector.Select(cart, []*model.Promotion{c, b, a}, model.ConflictSet{})

	require.NotNil(t, first.Order)
	require.NotNil(t, second.Order)
	assert.Equal(t, first.Order.Promotion.ID, second.Order.Promotion.ID,
		"cùng input (khác thứ tự) phải cho cùng kết quả")
	require.Len(t, first.Product, 1)
	require.Len(t, second.Product, 1)
	assert.Equal(t, first.Product[0].Promotion.ID, second.Product[0].Promotion.ID)
}

func TestSelectZeroDiscountProductPromoSkippedSilently(t *testing.T) {
	selector := NewSelector(NewDiscountCalculator())
	cart, p1, _ := twoLineCart()

	zero := productPromo("Zero", 10, "0", p1)
	selection := selector.Select(cart, []*model.Promotion{zero}, model.ConflictSet{})

	assert.Empty(t, selection.Product)
	assert.Empty(t, selection.Rejections)
	assert.Empty(t, selection.Applied())
}

func TestSelectedDiscountMatchesBase(t *testing.T) {
	selector := NewSelector(NewDiscountCalculator())
	cart, p1, _ := twoLineCart()

	promo := productPromo("P", 5, "10", p1)
	selection := selector.Select(cart, []*model.Promotion{promo}, model.ConflictSet{})

	require.Len(t, selection.Product, 1)
	sel := selection.Product[0]
	assert.True(t, sel.BaseAmount.Equal(decimal.NewFromInt(100)))
	assert.True(t, sel.Discount.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, []int{0}, sel.LineIndexes)
}
