package gormlog

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"

	"github.com/fatflowers/subgate/pkg/logctx"
)

// ZapLogger implements gorm.io/gorm/logger.Interface and enriches logs with
// trace_id from context via logctx.FromCtx.
type ZapLogger struct {
	base   *zap.SugaredLogger
	config gormlogger.Config
}

func New(base *zap.SugaredLogger) *ZapLogger {
	cfg := gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	}
	return &ZapLogger{base: base, config: cfg}
}

func (z *ZapLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cfg := z.config
	cfg.LogLevel = level
	return &ZapLogger{base: z.base, config: cfg}
}

func (z *ZapLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if z.config.LogLevel >= gormlogger.Info {
		logctx.FromCtx(ctx, z.base).Infow(msg, "args", data)
	}
}

func (z *ZapLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if z.config.LogLevel >= gormlogger.Warn {
		logctx.FromCtx(ctx, z.base).Warnw(msg, "args", data)
	}
}

func (z *ZapLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if z.config.LogLevel >= gormlogger.Error {
		logctx.FromCtx(ctx, z.base).Errorw(msg, "args", data)
	}
}

func (z *ZapLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if z.config.LogLevel == gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	lg := logctx.FromCtx(ctx, z.base)
	fields := []interface{}{
		"rows", rows,
		"elapsed_ms", elapsed.Milliseconds(),
		"caller", relCaller(utils.FileWithLineNum()),
	}
	if err != nil {
		lg.Errorw("gorm_trace", append(fields, "err", err, "sql", sql)...)
		return
	}
	if z.config.SlowThreshold > 0 && elapsed > z.config.SlowThreshold {
		lg.Warnw("gorm_slow", append(fields, "sql", sql)...)
		return
	}
	if z.config.LogLevel >= gormlogger.Info {
		lg.Infow("gorm", append(fields, "sql", sql)...)
	}
}

// relCaller trims absolute build paths to repo-relative where possible.
func relCaller(s string) string {
	p := filepath.ToSlash(s)
	for _, marker := range []string{"/internal/", "/pkg/", "/cmd/"} {
		if i := strings.Index(p, marker); i >= 0 {
			return p[i+1:]
		}
	}
	return p
}
