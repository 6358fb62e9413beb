package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes gorm's query log through Logger so SQL lines carry the
// same request and product fields as the surrounding handler.
type GormLogger struct {
	logg          *Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

var _ gormlogger.Interface = (*GormLogger)(nil)

// NewGormLogger logs failed statements at error, slow ones at warn and
// everything else at debug. A zero slowThreshold disables the slow check.
func NewGormLogger(logg *Logger, slowThreshold time.Duration) *GormLogger {
	return &GormLogger{logg: logg, level: gormlogger.Warn, slowThreshold: slowThreshold}
}

func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *g
	clone.level = level
	return &clone
}

func (g *GormLogger) Info(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Info {
		g.logg.Info(ctx, fmt.Sprintf(msg, args...))
	}
}

func (g *GormLogger) Warn(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Warn {
		g.logg.Warn(ctx, fmt.Sprintf(msg, args...))
	}
}

func (g *GormLogger) Error(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Error {
		g.logg.Error(ctx, fmt.Sprintf(msg, args...), nil)
	}
}

// Trace is called once per statement. Record-not-found is expected on
// lookups and never logged as an error.
func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent || g.logg == nil {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := g.slowThreshold > 0 && elapsed > g.slowThreshold

	switch {
	case failed && g.level >= gormlogger.Error:
	case slow && g.level >= gormlogger.Warn:
	case g.level >= gormlogger.Info:
	default:
		return
	}

	sql, rows := fc()
	ctx = g.logg.WithFields(ctx, map[string]any{
		"sql":         sql,
		"rows":        rows,
		"duration_ms": float64(elapsed.Microseconds()) / 1000,
	})
	switch {
	case failed:
		g.logg.Error(ctx, "db.query_failed", err)
	case slow:
		g.logg.Warn(ctx, "db.query_slow")
	default:
		g.logg.Debug(ctx, "db.query")
	}
}
