package webhooklog

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/subgate/internal/models"
	"github.com/fatflowers/subgate/pkg/config"
	"github.com/fatflowers/subgate/pkg/logctx"
	"github.com/fatflowers/subgate/pkg/tool"
	"github.com/fatflowers/subgate/pkg/types"
)

type Service struct {
	db  *gorm.DB
	cfg *config.Config
	log *zap.SugaredLogger
}

func New(db *gorm.DB, cfg *config.Config, log *zap.SugaredLogger) *Service {
	return &Service{db: db, cfg: cfg, log: log}
}

// Record asynchronously persists a webhook audit entry. It never returns an
// error: a failed log write must not fail the webhook response. Nil input is
// ignored.
func (s *Service) Record(ctx context.Context, entry *models.WebhookLog) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = tool.GenerateUUIDV7()
	}
	go func() {
		if err := s.db.Create(entry).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save webhook log: %v", err)
		}
	}()
}

// Get returns one audit entry by id.
func (s *Service) Get(ctx context.Context, id string) (*models.WebhookLog, error) {
	var entry models.WebhookLog
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// Delete removes one audit entry by id.
func (s *Service) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.WebhookLog{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type ListRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortOrder string                `json:"sort_order"`
}

type ListResult struct {
	Items []*models.WebhookLog `json:"items"`
	Total int64                `json:"total"`
}

// List returns a page of audit entries, newest first unless asked otherwise.
func (s *Service) List(ctx context.Context, req *ListRequest) (*ListResult, error) {
	q := s.db.WithContext(ctx).Model(&models.WebhookLog{})
	for _, f := range req.Filters {
		q = q.Where(f)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count webhook logs: %w", err)
	}

	order := "created_at desc"
	if req.SortOrder == "asc" {
		order = "created_at asc"
	}
	size := req.Size
	if size <= 0 || size > 500 {
		size = 100
	}

	var items []*models.WebhookLog
	if err := q.Order(order).Offset(req.From).Limit(size).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list webhook logs: %w", err)
	}
	return &ListResult{Items: items, Total: total}, nil
}

// PurgeOlderThan deletes audit entries past the retention window.
func (s *Service) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.WebhookLog{})
	return res.RowsAffected, res.Error
}

// Stats summarizes the audit log for the admin dashboard.
type Stats struct {
	Total   int64 `json:"total"`
	Success int64 `json:"success"`
	Failed  int64 `json:"failed"`
	Last24h int64 `json:"last_24h"`
}

func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	var out Stats
	base := func() *gorm.DB { return s.db.WithContext(ctx).Model(&models.WebhookLog{}) }
	if err := base().Count(&out.Total).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", models.WebhookLogStatusSuccess).Count(&out.Success).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status LIKE ?", "error%").Count(&out.Failed).Error; err != nil {
		return nil, err
	}
	if err := base().Where("created_at > ?", time.Now().Add(-24*time.Hour)).Count(&out.Last24h).Error; err != nil {
		return nil, err
	}
	return &out, nil
}
