package models

import (
	"time"

	"gorm.io/datatypes"
)

// Subscriber is the account plus subscription record for one customer email.
// Account creation and first activation may coincide: the webhook creates the
// row when an activation event arrives for an unknown email. Deactivation is
// a state flip, never a delete; metadata is kept for the admin surface.
type Subscriber struct {
	ID          string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Email       string `gorm:"column:email;type:varchar(255);not null;uniqueIndex" json:"email"`
	Username    string `gorm:"column:username;type:varchar(128);not null;uniqueIndex" json:"username"`
	DisplayName string `gorm:"column:display_name;type:varchar(255)" json:"display_name"`
	Role        string `gorm:"column:role;type:varchar(64);not null" json:"role"`

	Subscribed            bool       `gorm:"column:subscribed;not null;default:false" json:"subscribed"`
	SubscriptionType      *string    `gorm:"column:subscription_type;type:varchar(128)" json:"subscription_type"`
	IsOneTime             bool       `gorm:"column:is_one_time;not null;default:false" json:"is_one_time"`
	SubscriptionStartedAt *time.Time `gorm:"column:subscription_started_at;default:null" json:"subscription_started_at"`
	RenewalAt             *time.Time `gorm:"column:renewal_at;default:null" json:"renewal_at"`
	TrialEndsAt           *time.Time `gorm:"column:trial_ends_at;default:null" json:"trial_ends_at"`
	AccessExpiredAt       *time.Time `gorm:"column:access_expired_at;default:null" json:"access_expired_at"`

	// WelcomeEmailSent is monotonic: false→true once, never reset. It gates
	// at-most-once welcome delivery over the subscriber's whole lifetime.
	WelcomeEmailSent bool `gorm:"column:welcome_email_sent;not null;default:false" json:"welcome_email_sent"`

	ExternalCustomerID     *string `gorm:"column:external_customer_id;type:varchar(128)" json:"external_customer_id"`
	StripeCustomerID       *string `gorm:"column:stripe_customer_id;type:varchar(128)" json:"stripe_customer_id"`
	ExternalSubscriptionID *string `gorm:"column:external_subscription_id;type:varchar(128)" json:"external_subscription_id"`
	StripeSubscriptionID   *string `gorm:"column:stripe_subscription_id;type:varchar(128)" json:"stripe_subscription_id"`
	ExternalProductID      *string `gorm:"column:external_product_id;type:varchar(128)" json:"external_product_id"`
	ExternalProductName    *string `gorm:"column:external_product_name;type:varchar(255)" json:"external_product_name"`
	Price                  *string `gorm:"column:price;type:varchar(64)" json:"price"`
	Currency               *string `gorm:"column:currency;type:varchar(16)" json:"currency"`
	OrderID                *string `gorm:"column:order_id;type:varchar(128)" json:"order_id"`

	// Extra keeps the last raw payload for fields we do not map yet.
	Extra datatypes.JSON `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Subscriber) TableName() string { return "subscriber" }

// HasAccess reports whether the subscriber may view gated content.
func (s *Subscriber) HasAccess() bool {
	return s != nil && s.Subscribed
}
