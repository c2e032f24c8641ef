package shared

// Task types cho asynq - namespace theo domain
const (
	TypeActivateScheduledPromotions = "promotion:activate_scheduled"
	TypeExpirePromotions            = "promotion:expire_overdue"
)

// Queue names - worker ưu tiên theo thứ tự khai báo trong cmd/worker
const (
	QueuePromotion = "promotion"
	QueueDefault   = "default"
)
