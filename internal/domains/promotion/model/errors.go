package model

import "errors"

var (
	ErrPromotionNotFound  = errors.New("promotion not found")
	ErrDuplicateCode      = errors.New("promotion code already exists")
	ErrDuplicateUsage     = errors.New("promotion already recorded for this order")
	ErrQuotaExceeded      = errors.New("promotion usage limit reached")
	ErrInvalidTransition  = errors.New("invalid promotion status transition")
	ErrInvalidPromotion   = errors.New("invalid promotion definition")
	ErrConflictWithItself = errors.New("promotion cannot conflict with itself")
)

type ErrorCode string

const (
	// Eligibility rejections (soft tại preview, warning string trong result)
	ErrCodePromoNotFound           ErrorCode = "PROMO_NOT_FOUND"
	ErrCodePromoNotStarted         ErrorCode = "PROMO_NOT_STARTED"
	ErrCodePromoExpired            ErrorCode = "PROMO_EXPIRED"
	ErrCodePromoInactive           ErrorCode = "PROMO_INACTIVE"
	ErrCodePromoCodeRequired       ErrorCode = "PROMO_CODE_REQUIRED"
	ErrCodePromoTierNotEligible    ErrorCode = "PROMO_TIER_NOT_ELIGIBLE"
	ErrCodePromoMinOrderNotMet     ErrorCode = "PROMO_MIN_ORDER_NOT_MET"
	ErrCodePromoUsageLimitExceeded ErrorCode = "PROMO_USAGE_LIMIT_EXCEEDED"
	ErrCodePromoUserLimitExceeded  ErrorCode = "PROMO_USER_LIMIT_EXCEEDED"
	ErrCodePromoNotApplicable      ErrorCode = "PROMO_SCOPE_NOT_APPLICABLE"
	ErrCodePromoConflict           ErrorCode = "PROMO_CONFLICT"

	// Hard failures tại confirmation (money is at stake)
	ErrCodeQuotaExceeded ErrorCode = "BIZ_QUOTA_EXCEEDED"

	// Admin operation errors
	ErrCodeDuplicateCode     ErrorCode = "VAL_DUPLICATE_CODE"
	ErrCodeInvalidTransition ErrorCode = "BIZ_INVALID_TRANSITION"

	// Validation errors (400)
	ErrCodeValidationFailed ErrorCode = "VAL_INVALID_INPUT"

	// System errors (500)
	ErrCodeInternalError ErrorCode = "SYS_INTERNAL_ERROR"
)

// AppError là error có code + message cho phía client
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

// Predefined errors
var (
	ErrPromotionNotFoundApp = &AppError{
		Code:       ErrCodePromoNotFound,
		Message:    "Mã giảm giá không tồn tại hoặc đã bị vô hiệu hóa",
		HTTPStatus: 404,
	}

	ErrQuotaExceededApp = &AppError{
		Code:       ErrCodeQuotaExceeded,
		Message:    "Khuyến mãi đã hết lượt sử dụng",
		HTTPStatus: 409,
	}
)
