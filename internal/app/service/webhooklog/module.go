package webhooklog

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(registerRetentionSweep),
)

// registerRetentionSweep prunes expired audit entries once a day for the
// lifetime of the process.
func registerRetentionSweep(lc fx.Lifecycle, s *Service, log *zap.SugaredLogger) {
	stop := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ticker := time.NewTicker(24 * time.Hour)
				defer ticker.Stop()
				for {
					select {
					case <-stop:
						return
					case <-ticker.C:
						days := s.cfg.Webhook.LogRetentionDays
						n, err := s.PurgeOlderThan(context.Background(), days)
						if err != nil {
							log.Errorf("webhook log retention sweep failed: %v", err)
							continue
						}
						log.Infow("webhook log retention sweep", "purged", n, "retention_days", days)
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(stop)
			return nil
		},
	})
}
