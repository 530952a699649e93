package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/subgate/internal/models"
	"github.com/fatflowers/subgate/pkg/config"
	"github.com/fatflowers/subgate/pkg/logctx"
	"github.com/fatflowers/subgate/pkg/tool"
	"github.com/fatflowers/subgate/pkg/types"
)

// Resolution is the outcome of resolving an email to an account.
type Resolution struct {
	Subscriber *models.Subscriber
	// Created is true when this call provisioned the account.
	Created bool
	// Deferred is true in automation_only mode when no account exists yet:
	// provisioning is the automation pipeline's job, and the webhook must
	// acknowledge the event without creating anything.
	Deferred bool
}

type Service struct {
	db  *gorm.DB
	cfg *config.Config
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, cfg *config.Config, log *zap.SugaredLogger) *Service {
	return &Service{db: db, cfg: cfg, log: log}
}

// FindByEmail returns the subscriber for an email, or nil when absent.
func (s *Service) FindByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	var sub models.Subscriber
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find subscriber by email: %w", err)
	}
	return &sub, nil
}

// ResolveOrCreate finds the account for an activation event's email, or
// provisions it according to the configured creation mode. The provider may
// run its own automation pipeline that creates accounts independently of the
// webhook, so creation must coordinate rather than race:
//
//   - webhook_only: create immediately when absent.
//   - automation_with_fallback: give automation a grace window to create the
//     account, re-checking periodically; create ourselves only after the
//     window elapses. No row lock is held while waiting — automation needs
//     to write concurrently.
//   - automation_only: never create; report a deferred outcome.
func (s *Service) ResolveOrCreate(ctx context.Context, email string, p *types.Payload) (*Resolution, error) {
	log := logctx.FromCtx(ctx, s.log)

	sub, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		return &Resolution{Subscriber: sub}, nil
	}

	mode := s.cfg.Account.CreationMode
	switch mode {
	case types.AccountCreationAutomationOnly:
		log.Infow("account creation deferred to automation", "email", email)
		return &Resolution{Deferred: true}, nil

	case types.AccountCreationAutomationWithFallback:
		log.Infow("waiting for automation to create account", "email", email, "grace", s.cfg.Account.GracePeriod().String())
		sub, err = s.awaitAutomation(ctx, email)
		if err != nil {
			return nil, err
		}
		if sub != nil {
			log.Infow("account created by automation", "email", email, "user_id", sub.ID)
			return &Resolution{Subscriber: sub}, nil
		}
		log.Infow("automation grace window elapsed, creating account via webhook fallback", "email", email)
	}

	return s.create(ctx, email, p)
}

// awaitAutomation polls for the account during the grace window. This holds
// the request handler, not a database lock; the bounded wait is the accepted
// trade-off for avoiding duplicate accounts. Returns nil, nil if the window
// elapses with no account.
func (s *Service) awaitAutomation(ctx context.Context, email string) (*models.Subscriber, error) {
	grace := s.cfg.Account.GracePeriod()
	poll := s.cfg.Account.PollInterval()
	if poll <= 0 {
		poll = 15 * time.Second
	}

	deadline := time.NewTimer(grace)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, nil
		case <-ticker.C:
			sub, err := s.FindByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if sub != nil {
				return sub, nil
			}
		}
	}
}

func (s *Service) create(ctx context.Context, email string, p *types.Payload) (*Resolution, error) {
	exists := func(candidate string) (bool, error) {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Subscriber{}).Where("username = ?", candidate).Count(&count).Error; err != nil {
			return false, err
		}
		return count > 0, nil
	}

	customerName, _ := p.CustomerName()

	var sub *models.Subscriber
	var emailConflict bool
	// Idempotent under duplicate delivery and automation races: the unique
	// email index decides the winner, the loser reads the winner's row. A
	// username collision with a different email retries via claimUsername.
	username, err := claimUsername(usernameBase(email), exists, func(candidate string) error {
		displayName := customerName
		if displayName == "" {
			displayName = candidate
		}
		sub = &models.Subscriber{
			ID:          tool.GenerateUUIDV7(),
			Email:       email,
			Username:    candidate,
			DisplayName: displayName,
			Role:        s.cfg.Account.DefaultRole,
		}
		res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoNothing: true,
		}).Create(sub)
		if res.Error != nil {
			return res.Error
		}
		emailConflict = res.RowsAffected == 0
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriber: %w", err)
	}
	if emailConflict {
		existing, err := s.FindByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("subscriber insert conflicted but row not found: %s", email)
		}
		return &Resolution{Subscriber: existing}, nil
	}

	logctx.FromCtx(ctx, s.log).Infow("subscriber account created", "email", email, "user_id", sub.ID, "username", username)
	return &Resolution{Subscriber: sub, Created: true}, nil
}
