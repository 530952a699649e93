package subscriber

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/subgate/internal/app/service/notifier"
	"github.com/fatflowers/subgate/internal/models"
	"github.com/fatflowers/subgate/pkg/config"
	"github.com/fatflowers/subgate/pkg/logctx"
	"github.com/fatflowers/subgate/pkg/types"
)

// TransitionResult is the outcome surfaced in the webhook response.
type TransitionResult struct {
	UserID  string
	Message string
}

type Service struct {
	db    *gorm.DB
	cfg   *config.Config
	log   *zap.SugaredLogger
	notif *notifier.Service
}

func NewService(db *gorm.DB, cfg *config.Config, log *zap.SugaredLogger, notif *notifier.Service) *Service {
	return &Service{db: db, cfg: cfg, log: log, notif: notif}
}

// ApplyTransition mutates the subscription record for one lifecycle event.
// The caller resolved the subscriber already; accountCreated reports whether
// this request provisioned the account, which feeds the welcome-email gate.
func (s *Service) ApplyTransition(ctx context.Context, sub *models.Subscriber, accountCreated bool, class types.EventClass, p *types.Payload) (*TransitionResult, error) {
	switch class {
	case types.EventClassActivate:
		return s.activate(ctx, sub, accountCreated, p)
	case types.EventClassDeactivate:
		return s.deactivate(ctx, sub)
	case types.EventClassRenew:
		return s.renew(ctx, sub, p)
	case types.EventClassPlanChange:
		return s.planChange(ctx, sub, p)
	default:
		return nil, fmt.Errorf("event class %s does not mutate subscriber state", class)
	}
}

func (s *Service) activate(ctx context.Context, sub *models.Subscriber, accountCreated bool, p *types.Payload) (*TransitionResult, error) {
	now := time.Now()
	err := s.mutate(ctx, sub.ID, func(fresh *models.Subscriber) {
		fresh.Subscribed = true
		fresh.SubscriptionStartedAt = &now
		applyMetadata(fresh, p)
	})
	if err != nil {
		return nil, err
	}

	s.maybeSendWelcome(ctx, sub, accountCreated)
	s.notif.NotifyAdmin(ctx, "activated", sub.Email, sub.DisplayName)

	return &TransitionResult{
		UserID:  sub.ID,
		Message: fmt.Sprintf("Subscription activated for user %s", sub.Email),
	}, nil
}

func (s *Service) deactivate(ctx context.Context, sub *models.Subscriber) (*TransitionResult, error) {
	now := time.Now()
	// State flip only: metadata stays for the admin surface.
	err := s.mutate(ctx, sub.ID, func(fresh *models.Subscriber) {
		fresh.Subscribed = false
		fresh.AccessExpiredAt = &now
	})
	if err != nil {
		return nil, err
	}

	s.notif.NotifyAdmin(ctx, "expired", sub.Email, sub.DisplayName)

	return &TransitionResult{
		UserID:  sub.ID,
		Message: fmt.Sprintf("Subscription deactivated for user %s", sub.Email),
	}, nil
}

func (s *Service) renew(ctx context.Context, sub *models.Subscriber, p *types.Payload) (*TransitionResult, error) {
	err := s.mutate(ctx, sub.ID, func(fresh *models.Subscriber) {
		fresh.Subscribed = true
		fresh.AccessExpiredAt = nil
		applyMetadata(fresh, p)
	})
	if err != nil {
		return nil, err
	}

	s.notif.NotifyAdmin(ctx, "renewed", sub.Email, sub.DisplayName)

	return &TransitionResult{
		UserID:  sub.ID,
		Message: fmt.Sprintf("Subscription renewed for user %s", sub.Email),
	}, nil
}

func (s *Service) planChange(ctx context.Context, sub *models.Subscriber, p *types.Payload) (*TransitionResult, error) {
	err := s.mutate(ctx, sub.ID, func(fresh *models.Subscriber) {
		applyMetadata(fresh, p)
	})
	if err != nil {
		return nil, err
	}
	return &TransitionResult{
		UserID:  sub.ID,
		Message: fmt.Sprintf("Subscription plan changed for user %s", sub.Email),
	}, nil
}

// mutate reloads the row under a row lock, applies fn and saves. The lock is
// held only for the duration of the update so concurrent deliveries for the
// same email serialize on the row, never on the request handler.
func (s *Service) mutate(ctx context.Context, id string, fn func(fresh *models.Subscriber)) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var fresh models.Subscriber
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&fresh).Error; err != nil {
			return fmt.Errorf("failed to load subscriber %s: %w", id, err)
		}
		fn(&fresh)
		if err := tx.Save(&fresh).Error; err != nil {
			return fmt.Errorf("failed to save subscriber %s: %w", id, err)
		}
		return nil
	})
}

// maybeSendWelcome delivers the welcome email at most once per subscriber
// lifetime. The flag claim is a single compare-and-set so replayed
// activations and racing deliveries cannot both win; a failed send is logged
// but does not reset the flag and never rolls back the activation.
func (s *Service) maybeSendWelcome(ctx context.Context, sub *models.Subscriber, accountCreated bool) {
	if !s.cfg.Email.SendWelcomeEmail {
		return
	}
	if !accountCreated && sub.WelcomeEmailSent {
		return
	}

	res := s.db.WithContext(ctx).Model(&models.Subscriber{}).
		Where("id = ? AND welcome_email_sent = ?", sub.ID, false).
		Update("welcome_email_sent", true)
	if res.Error != nil {
		logctx.FromCtx(ctx, s.log).Errorf("welcome email claim failed: %v", res.Error)
		return
	}
	if res.RowsAffected == 0 {
		// someone else already sent it
		return
	}

	if err := s.notif.SendWelcomeEmail(ctx, sub.ID, sub.Email, sub.Username); err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("welcome email not delivered, subscription remains active",
			"user_id", sub.ID, "email", sub.Email, "error", err.Error())
	}
}
