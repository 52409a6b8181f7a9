package telemetry

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig controls span creation for ledger database queries.
type DBTracingConfig struct {
	Enabled          bool          // turn database spans on
	LogFullSQL       bool          // include full SQL text in spans, dev only
	SlowQueryThresh  time.Duration // queries above this get flagged on the span
	DBSystem         string        // reported db.system, "postgresql" in production
	WithoutVariables bool          // strip bind parameters from recorded SQL
}

// DefaultDBTracingConfig returns the secure defaults: tracing off, SQL
// text and bind parameters withheld.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:          false,
		LogFullSQL:       false,
		SlowQueryThresh:  200 * time.Millisecond,
		DBSystem:         "postgresql",
		WithoutVariables: true,
	}
}

// DBTracingPlugin wires otelgorm into a GORM handle and layers slow
// query detection on top of the spans it produces.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	return &DBTracingPlugin{
		config: cfg,
		logger: logger,
	}
}

// RegisterOtelGorm installs the otelgorm plugin plus the timing and slow
// query callbacks. A no-op when tracing is disabled.
func (p *DBTracingPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{
		otelgorm.WithDBName(p.config.DBSystem),
	}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}

	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	if err := registerTimingCallbacks(db, "otel_timing", recordQueryStart); err != nil {
		return err
	}
	if err := registerAfterCallbacks(db, "otel_slow_query", p.slowQueryCallback); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)

	return nil
}

// slowQueryCallback runs after each statement, annotating the active
// span with row counts, table name, errors and slow query markers.
func (p *DBTracingPlugin) slowQueryCallback(db *gorm.DB) {
	annotateSpan(db, p.config.SlowQueryThresh)
}

// annotateSpan enriches the span already opened by otelgorm. Record
// not found is a normal outcome for lookups and never marks the span
// as failed.
func annotateSpan(db *gorm.DB, slowThresh time.Duration) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	startTime, ok := ctx.Value(queryStartTimeKey).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(startTime)
	if elapsed > slowThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", slowThresh.Milliseconds()),
		))
	}
}

func recordQueryStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
	}
}

// registerTimingCallbacks hooks fn in front of every GORM operation.
func registerTimingCallbacks(db *gorm.DB, prefix string, fn func(*gorm.DB)) error {
	cb := db.Callback()
	return firstError(
		cb.Create().Before("gorm:create").Register(prefix+":before_create", fn),
		cb.Query().Before("gorm:query").Register(prefix+":before_query", fn),
		cb.Update().Before("gorm:update").Register(prefix+":before_update", fn),
		cb.Delete().Before("gorm:delete").Register(prefix+":before_delete", fn),
		cb.Row().Before("gorm:row").Register(prefix+":before_row", fn),
		cb.Raw().Before("gorm:raw").Register(prefix+":before_raw", fn),
	)
}

// registerAfterCallbacks hooks fn behind every GORM operation.
func registerAfterCallbacks(db *gorm.DB, prefix string, fn func(*gorm.DB)) error {
	cb := db.Callback()
	return firstError(
		cb.Create().After("gorm:create").Register(prefix+":create", fn),
		cb.Query().After("gorm:query").Register(prefix+":query", fn),
		cb.Update().After("gorm:update").Register(prefix+":update", fn),
		cb.Delete().After("gorm:delete").Register(prefix+":delete", fn),
		cb.Row().After("gorm:row").Register(prefix+":row", fn),
		cb.Raw().After("gorm:raw").Register(prefix+":raw", fn),
	)
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

type contextKey string

const queryStartTimeKey contextKey = "otel_query_start_time"

// WithQueryStartTime stamps the query start time into ctx so the after
// callbacks can compute elapsed time.
func WithQueryStartTime(ctx context.Context) context.Context {
	return context.WithValue(ctx, queryStartTimeKey, time.Now())
}

// DBTracingCallback is the standalone variant of the timing hooks, for
// handles that do not use the otelgorm plugin.
type DBTracingCallback struct {
	slowQueryThresh time.Duration
}

func NewDBTracingCallback(slowQueryThresh time.Duration) *DBTracingCallback {
	return &DBTracingCallback{
		slowQueryThresh: slowQueryThresh,
	}
}

// BeforeCallback stamps the query start time into the statement context.
func (c *DBTracingCallback) BeforeCallback(db *gorm.DB) {
	recordQueryStart(db)
}

// AfterCallback annotates the active span with the query outcome.
func (c *DBTracingCallback) AfterCallback(db *gorm.DB) {
	annotateSpan(db, c.slowQueryThresh)
}

// RegisterCallbacks installs the before and after hooks on db.
func (c *DBTracingCallback) RegisterCallbacks(db *gorm.DB) error {
	if err := registerTimingCallbacks(db, "otel_timing", c.BeforeCallback); err != nil {
		return err
	}
	return registerAfterCallbacks(db, "otel_timing:after", c.AfterCallback)
}
