package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairshop-backend/internal/domains/promotion/model"
)

func createRequest() *model.CreatePromotionRequest {
	code := "tet2026"
	now := time.Now()
	return &model.CreatePromotionRequest{
		Code:         &code,
		Name:         "Tết 2026",
		Type:         string(model.PromotionTypePercentage),
		Scope:        string(model.PromotionScopeOrder),
		Value:        10,
		RequiresCode: true,
		StartDate:    now.Format(time.RFC3339),
		EndDate:      now.Add(24 * time.Hour).Format(time.RFC3339),
	}
}

func appErrFrom(t *testing.T, err error) *model.AppError {
	t.Helper()
	var appErr *model.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	return appErr
}

func TestCreatePromotionNormalizesCodeAndSchedules(t *testing.T) {
	svc := NewPromotionService(newFakeRepo(), newFakeLedger(), nil)

	resp, err := svc.CreatePromotion(context.Background(), createRequest())
	require.NoError(t, err)

	require.NotNil(t, resp.Code)
	assert.Equal(t, "TET2026", *resp.Code, "code phải được uppercase")
	assert.Equal(t, model.PromotionStatusScheduled, resp.Status,
		"promotion mới luôn SCHEDULED, scheduler sweep sẽ kích hoạt")
}

func TestCreatePromotionRejectsDuplicateCode(t *testing.T) {
	repo := newFakeRepo()
	repo.byCode["TET2026"] = activePromo()
	svc := NewPromotionService(repo, newFakeLedger(), nil)

	_, err := svc.CreatePromotion(context.Background(), createRequest())
	appErr := appErrFrom(t, err)
	assert.Equal(t, model.ErrCodeDuplicateCode, appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.HTTPStatus)
}

func TestCreatePromotionRequiresCodeNeedsCode(t *testing.T) {
	svc := NewPromotionService(newFakeRepo(), newFakeLedger(), nil)

	req := createRequest()
	req.Code = nil

	_, err := svc.CreatePromotion(context.Background(), req)
	appErr := appErrFrom(t, err)
	assert.Equal(t, model.ErrCodeValidationFailed, appErr.Code)
}

func TestCreatePromotionRejectsInvertedDateRange(t *testing.T) {
	svc := NewPromotionService(newFakeRepo(), newFakeLedger(), nil)

	req := createRequest()
	req.StartDate, req.EndDate = req.EndDate, req.StartDate

	_, err := svc.CreatePromotion(context.Background(), req)
	appErr := appErrFrom(t, err)
	assert.Equal(t, model.ErrCodeValidationFailed, appErr.Code)
}

func TestUpdateStatusExpiredIsTerminal(t *testing.T) {
	promo := activePromo()
	promo.Status = model.PromotionStatusExpired
	svc := NewPromotionService(newFakeRepo(promo), newFakeLedger(), nil)

	_, err := svc.UpdateStatus(context.Background(), promo.ID, model.PromotionStatusActive)
	appErr := appErrFrom(t, err)
	assert.Equal(t, model.ErrCodeInvalidTransition, appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.HTTPStatus)
}

func TestUpdateStatusActiveRequiresWindow(t *testing.T) {
	// SCHEDULED, window chưa bắt đầu - bật ACTIVE sớm bị từ chối
	promo := activePromo()
	promo.Status = model.PromotionStatusScheduled
	promo.StartDate = time.Now().Add(time.Hour)
	promo.EndDate = time.Now().Add(48 * time.Hour)

	svc := NewPromotionService(newFakeRepo(promo), newFakeLedger(), nil)

	_, err := svc.UpdateStatus(context.Background(), promo.ID, model.PromotionStatusActive)
	appErr := appErrFrom(t, err)
	assert.Equal(t, model.ErrCodeInvalidTransition, appErr.Code)
}

func TestUpdateStatusInactiveOverride(t *testing.T) {
	promo := activePromo()
	svc := NewPromotionService(newFakeRepo(promo), newFakeLedger(), nil)

	resp, err := svc.UpdateStatus(context.Background(), promo.ID, model.PromotionStatusInactive)
	require.NoError(t, err)
	assert.Equal(t, model.PromotionStatusInactive, resp.Status)
}

func TestDeclareConflictRejectsSelfPair(t *testing.T) {
	promo := activePromo()
	svc := NewPromotionService(newFakeRepo(promo), newFakeLedger(), nil)

	err := svc.DeclareConflict(context.Background(), promo.ID, promo.ID)
	appErr := appErrFrom(t, err)
	assert.Equal(t, model.ErrCodeValidationFailed, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}

func TestDeclareConflictRequiresBothEnds(t *testing.T) {
	promo := activePromo()
	ghost := activePromo() // không nằm trong repo
	svc := NewPromotionService(newFakeRepo(promo), newFakeLedger(), nil)

	err := svc.DeclareConflict(context.Background(), promo.ID, ghost.ID)
	appErr := appErrFrom(t, err)
	assert.Equal(t, model.ErrCodePromoNotFound, appErr.Code)
}
