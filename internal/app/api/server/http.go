package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fatflowers/subgate/internal/app/api/handlers"
	"github.com/fatflowers/subgate/internal/app/service/access"
	"github.com/fatflowers/subgate/internal/app/service/notifier"
	wh "github.com/fatflowers/subgate/internal/app/service/webhook"
	"github.com/fatflowers/subgate/internal/app/service/webhooklog"
	cfgpkg "github.com/fatflowers/subgate/pkg/config"

	mw "github.com/fatflowers/subgate/internal/app/api/middleware"

	metrics "github.com/fatflowers/subgate/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

func registerRoutes(r *gin.Engine, log *zap.SugaredLogger, cfg *cfgpkg.Config, m *metrics.Metrics, webhook *wh.Service, logs *webhooklog.Service, notif *notifier.Service, acc *access.Service) {
	// Prometheus metrics
	if cfg != nil && cfg.MetricsAddr != "" {
		r.Use(m.HandlerFunc())
		m.Serve(cfg.MetricsAddr, log)
		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)

	// Provider-facing webhook endpoint
	easytools := r.Group("/easytools/v1")
	easytools.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterWebhookRoutes(easytools, webhook)

	// Admin and access APIs
	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterAdminRoutes(apiV1.Group("/admin"), logs, notif)
	handlers.RegisterAccessRoutes(apiV1.Group("/access"), acc)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Provide(metrics.New),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
