// Package migrate converts a denormalized code column into a reference table
// plus foreign key, in place and idempotently.
//
// Every step checks the live catalog before acting, so the engine can be run
// against a database in any partially migrated state and converges to the
// same schema and data. A run is one transaction: it commits once or rolls
// back on the first error. There is no history table; introspection is the
// only source of truth for what is left to do.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fhwedel/firma/internal/storage"
	"github.com/fhwedel/firma/internal/telemetry"
)

// StepReport describes what one step did during a run.
type StepReport struct {
	Step     State         `json:"step"`
	Applied  bool          `json:"applied"`
	Detail   string        `json:"detail"`
	Duration time.Duration `json:"duration"`
}

// Result is the outcome of Engine.Run.
type Result struct {
	State      State         `json:"state"`
	Dialect    string        `json:"dialect"`
	Schema     string        `json:"schema"`
	Steps      []StepReport  `json:"steps"`
	Seed       SeedReport    `json:"seed"`
	Resolved   int64         `json:"resolved"`
	Unresolved int64         `json:"unresolved"`
	NotNull    bool          `json:"not_null"`
	Duration   time.Duration `json:"duration"`
}

// Complete reports whether the run committed and every row has a reference.
func (r *Result) Complete() bool {
	return r.State == StateCommitted && r.Unresolved == 0
}

// StepStatus is the read-only view of a step returned by Engine.Status.
type StepStatus struct {
	Step    State  `json:"step"`
	Pending bool   `json:"pending"`
	Detail  string `json:"detail"`
}

// Engine runs the migration steps in order inside a single transaction.
type Engine struct {
	db       *storage.DB
	plan     Plan
	seeds    SeedSet
	logger   *zap.Logger
	recorder *telemetry.StepRecorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. A nil logger is replaced by a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSeeds replaces the default seed set.
func WithSeeds(s SeedSet) Option {
	return func(e *Engine) { e.seeds = s }
}

// NewEngine validates plan and seeds against db. An empty plan schema falls
// back to the dialect's default (the database name on MySQL, "public" on
// PostgreSQL).
func NewEngine(db *storage.DB, plan Plan, opts ...Option) (*Engine, error) {
	e := &Engine{
		db:     db,
		seeds:  DefaultSeedSet(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if plan.Schema == "" {
		plan = plan.WithSchema(db.Dialect().DefaultSchema(db.Database()))
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if e.seeds.Len() == 0 {
		return nil, fmt.Errorf("%w: empty seed set", ErrInvalidSeed)
	}
	if err := e.seeds.CheckWidths(plan.CodeWidth, plan.NameWidth); err != nil {
		return nil, err
	}
	e.plan = plan
	e.recorder = telemetry.NewStepRecorder()
	e.logger = e.logger.With(
		zap.String("dialect", db.Dialect().Name()),
		zap.String("schema", plan.Schema),
		zap.String("table", plan.EntityTable))
	return e, nil
}

// Plan returns the plan the engine runs, with the schema resolved.
func (e *Engine) Plan() Plan { return e.plan }

// Run applies every pending step in one transaction and commits, or rolls
// back on the first error. Rollback failures are logged and never replace
// the original error. Unresolved rows are not an error: they are reported in
// Result.Unresolved and the foreign key column stays nullable.
func (e *Engine) Run(ctx context.Context) (result *Result, err error) {
	start := time.Now()
	result = &Result{
		State:   StateBegin,
		Dialect: e.db.Dialect().Name(),
		Schema:  e.plan.Schema,
	}

	if !e.db.Dialect().TransactionalDDL() {
		e.logger.Warn("dialect commits DDL implicitly; structural steps are not undone on rollback, re-run to converge")
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		result.State = StateRolledBack
		return result, fmt.Errorf("failed to begin migration transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			e.rollback(tx, fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()

	rs := e.newRun(tx, result)
	for _, st := range steps() {
		result.State = st.name
		report, stepErr := e.runStep(ctx, rs, st)
		if stepErr != nil {
			e.rollback(tx, stepErr)
			result.State = StateRolledBack
			result.Duration = time.Since(start)
			return result, &StepError{Step: st.name, Err: stepErr}
		}
		result.Steps = append(result.Steps, report)
	}

	if err := tx.Commit(); err != nil {
		result.State = StateRolledBack
		result.Duration = time.Since(start)
		return result, fmt.Errorf("failed to commit migration: %w", err)
	}
	result.State = StateCommitted
	result.Duration = time.Since(start)
	e.recorder.Unresolved(ctx, result.Unresolved)

	if result.Unresolved > 0 {
		e.logger.Info("migration committed with unresolved rows",
			zap.Int64("unresolved", result.Unresolved),
			zap.String("column", e.plan.ForeignKeyColumn))
	} else {
		e.logger.Info("migration committed", zap.Duration("duration", result.Duration))
	}
	return result, nil
}

// Status evaluates every step's precondition without applying anything. The
// transaction is always rolled back. Steps after a pending structural step
// are evaluated against the current schema, not the one the run would produce.
func (e *Engine) Status(ctx context.Context) ([]StepStatus, error) {
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin status transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rs := e.newRun(tx, &Result{})
	var out []StepStatus
	for _, st := range steps() {
		pending, detail, err := st.pending(ctx, rs)
		if err != nil {
			return nil, &StepError{Step: st.name, Err: err}
		}
		out = append(out, StepStatus{Step: st.name, Pending: pending, Detail: detail})
	}
	return out, nil
}

func (e *Engine) newRun(q Querier, result *Result) *run {
	d := e.db.Dialect()
	return &run{
		dialect:   d,
		seeds:     e.seeds,
		intro:     NewIntrospector(q, d),
		seeder:    NewSeeder(q, d, e.plan, e.seeds),
		remapper:  NewRemapper(q, d, e.plan),
		finalizer: NewFinalizer(q, d, e.plan),
		plan:      e.plan,
		result:    result,
	}
}

func (e *Engine) runStep(ctx context.Context, rs *run, st step) (report StepReport, err error) {
	report.Step = st.name
	ctx, span, start := e.recorder.Start(ctx, string(st.name))
	defer func() {
		report.Duration = time.Since(start)
		e.recorder.Done(ctx, span, start, string(st.name), report.Applied, err)
	}()

	pending, detail, err := st.pending(ctx, rs)
	if err != nil {
		return report, err
	}
	if !pending {
		report.Detail = detail
		e.logger.Debug("migration step skipped", zap.String("step", string(st.name)), zap.String("reason", detail))
		return report, nil
	}

	detail, err = st.apply(ctx, rs)
	if err != nil {
		return report, err
	}
	report.Applied = true
	report.Detail = detail
	e.logger.Info("migration step applied", zap.String("step", string(st.name)), zap.String("detail", detail))
	return report, nil
}

// rollback undoes the transaction. Its own failure is logged, not returned,
// so the caller still sees the error that caused the rollback.
func (e *Engine) rollback(tx *sql.Tx, cause error) {
	if err := tx.Rollback(); err != nil {
		e.logger.Error("rollback failed", zap.Error(err), zap.NamedError("cause", cause))
		return
	}
	e.logger.Warn("migration rolled back", zap.Error(cause))
}
