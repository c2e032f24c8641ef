package model

// ActivateScheduledPayload là payload cho sweep SCHEDULED → ACTIVE
// (rỗng - job quét toàn bộ promotions đến hạn)
type ActivateScheduledPayload struct{}

// ExpirePromotionsPayload là payload cho sweep {SCHEDULED,ACTIVE,INACTIVE} → EXPIRED
type ExpirePromotionsPayload struct{}
