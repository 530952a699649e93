package models

import (
	"time"
)

type WebhookLogStatus string

const (
	WebhookLogStatusSuccess         WebhookLogStatus = "success"
	WebhookLogStatusErrorSignature  WebhookLogStatus = "error_signature"
	WebhookLogStatusErrorAPIToken   WebhookLogStatus = "error_api_token"
	WebhookLogStatusErrorValidation WebhookLogStatus = "error_validation"
	WebhookLogStatusErrorEmail      WebhookLogStatus = "error_email"
	WebhookLogStatusErrorProcessing WebhookLogStatus = "error_processing"
	WebhookLogStatusInvalid         WebhookLogStatus = "invalid"
)

// WebhookLog is the append-only audit record of one inbound webhook request.
// Rows are immutable once written; retention pruning deletes old rows whole.
type WebhookLog struct {
	ID            string           `gorm:"column:id;type:uuid;primary_key" json:"id"`
	EventType     string           `gorm:"column:event_type;type:varchar(128)" json:"event_type"`
	CustomerEmail string           `gorm:"column:customer_email;type:varchar(255)" json:"customer_email"`
	UserID        *string          `gorm:"column:user_id;type:uuid" json:"user_id"`
	TraceID       string           `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	Status        WebhookLogStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	RequestBody   string           `gorm:"column:request_body;type:text" json:"request_body"`
	ResponseBody  string           `gorm:"column:response_body;type:text" json:"response_body"`
	CreatedAt     time.Time        `gorm:"index" json:"created_at"`
}

func (WebhookLog) TableName() string { return "webhook_log" }
