package access

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"gorm.io/gorm"

	"github.com/fatflowers/subgate/internal/models"
	"github.com/fatflowers/subgate/pkg/config"
)

// Service answers the gate collaborator's two questions: may this user see
// gated content, and where do non-subscribers go to buy access.
type Service struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{db: db, cfg: cfg}
}

// HasActiveSubscription reports whether the user currently has access.
// Unknown users simply do not.
func (s *Service) HasActiveSubscription(ctx context.Context, userID string) (bool, error) {
	var sub models.Subscriber
	err := s.db.WithContext(ctx).Select("id", "subscribed").Where("id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sub.HasAccess(), nil
}

// CheckoutURLWithEmail returns the provider checkout URL with the email
// pre-filled, so the buyer lands on checkout with their identity attached.
// Without an email (or without a configured URL) the bare URL comes back.
func (s *Service) CheckoutURLWithEmail(email string) string {
	checkout := s.cfg.CheckoutURL
	if checkout == "" || email == "" {
		return checkout
	}
	sep := "?"
	if strings.Contains(checkout, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%semail=%s", checkout, sep, url.QueryEscape(email))
}
