package app

import (
	"github.com/fatflowers/subgate/internal/app/api/server"
	"github.com/fatflowers/subgate/internal/app/service/access"
	"github.com/fatflowers/subgate/internal/app/service/account"
	"github.com/fatflowers/subgate/internal/app/service/notifier"
	"github.com/fatflowers/subgate/internal/app/service/subscriber"
	"github.com/fatflowers/subgate/internal/app/service/webhook"
	"github.com/fatflowers/subgate/internal/app/service/webhooklog"
	"github.com/fatflowers/subgate/internal/platform/db"
	"github.com/fatflowers/subgate/pkg/config"
	"github.com/fatflowers/subgate/pkg/logger"
	"time"

	"go.uber.org/fx"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	server.Module,
	webhook.Module,
	webhooklog.Module,
	account.Module,
	subscriber.Module,
	access.Module,
	notifier.Module,
)
