// Package postagg runs post-aggregation modules against a run store. A module
// declares output columns at the variant or gene level; the engine migrates
// the store schema, feeds the module one row at a time, writes the module's
// output back and harvests categorical values into the header table.
package postagg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/vibe-annot/internal/config"
	"github.com/inodb/vibe-annot/internal/runlog"
	"github.com/inodb/vibe-annot/internal/schema"
	"github.com/inodb/vibe-annot/internal/status"
	"github.com/inodb/vibe-annot/internal/store"
)

// Row is one input row keyed by store column name. At gene level, requested
// variant columns hold a []any with one entry per variant of the gene.
type Row map[string]any

// Output maps a module's short field names to values. A nil value leaves
// the field untouched.
type Output map[string]any

// Module is a post-aggregation module.
type Module interface {
	// Check reports whether the annotate loop should run at all.
	Check() bool
	Setup(run *Run) error
	Annotate(row Row) (Output, error)
	Postprocess(run *Run) error
	Cleanup() error
}

// OptionDeclarer is implemented by modules that read options from their
// configuration.
type OptionDeclarer interface {
	Options() config.Registry
}

// Base provides default hooks for Module implementations.
type Base struct{}

// Check returns true.
func (Base) Check() bool { return true }

// Setup does nothing.
func (Base) Setup(*Run) error { return nil }

// Postprocess does nothing.
func (Base) Postprocess(*Run) error { return nil }

// Cleanup does nothing.
func (Base) Cleanup() error { return nil }

// Run is what a module sees of the engine during one run.
type Run struct {
	Conf    *config.ModuleConf
	Store   *store.Store
	Conns   *store.Conns
	Logger  *zap.Logger
	Options *config.OptionSet
	// Columns holds the namespaced output column definitions.
	Columns []schema.ColumnDef
}

// ErrInvalidLevel is returned when a module's level is missing or unknown.
var ErrInvalidLevel = errors.New("invalid module level")

// SetupError is a contract violation detected before any row is touched.
type SetupError struct {
	Missing string
}

func (e *SetupError) Error() string {
	return "postaggregator setup: " + e.Missing + " is required"
}

// State is the engine's lifecycle position.
type State int

const (
	StateInit State = iota
	StateConfigResolved
	StateSchemaMigrated
	StateIterating
	StateCategoryHarvest
	StateDone
	StateCleanupOnly
)

var stateNames = [...]string{"init", "config_resolved", "schema_migrated", "iterating", "category_harvest", "done", "cleanup_only"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Summary reports what a run did.
type Summary struct {
	RowsRead    int
	RowsWritten int
	RowsSkipped int
	Errors      int
	// Ran is false when Check returned false.
	Ran     bool
	Added   []string
	Elapsed time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithStatus sets the status sink.
func WithStatus(s status.Sink) Option {
	return func(e *Engine) { e.status = s }
}

// WithErrorLog sets the structured error log for failed rows.
func WithErrorLog(el *runlog.ErrorLog) Option {
	return func(e *Engine) { e.errLog = el }
}

// WithThrottle replaces the progress cadence.
func WithThrottle(t *status.Throttle) Option {
	return func(e *Engine) { e.throttle = t }
}

// Engine runs one module against one store.
type Engine struct {
	module   Module
	conf     *config.ModuleConf
	store    *store.Store
	logger   *zap.Logger
	errLog   *runlog.ErrorLog
	status   status.Sink
	throttle *status.Throttle

	level   schema.Level
	state   State
	columns []schema.ColumnDef
}

// New validates the run contract and returns an engine in the
// ConfigResolved state.
func New(m Module, conf *config.ModuleConf, st *store.Store, logger *zap.Logger, opts ...Option) (*Engine, error) {
	switch {
	case m == nil:
		return nil, &SetupError{Missing: "module"}
	case conf == nil:
		return nil, &SetupError{Missing: "module configuration"}
	case st == nil:
		return nil, &SetupError{Missing: "store"}
	case logger == nil:
		return nil, &SetupError{Missing: "logger"}
	}
	if !conf.Level.Valid() {
		return nil, fmt.Errorf("%w %q for module %s", ErrInvalidLevel, conf.Level, conf.Name)
	}
	for _, c := range conf.OutputColumns {
		if !schema.ValidIdent(c.Name) {
			return nil, fmt.Errorf("module %s: invalid output column name %q", conf.Name, c.Name)
		}
	}

	e := &Engine{
		module:   m,
		conf:     conf,
		store:    st,
		logger:   logger,
		errLog:   runlog.NewErrorLog(logger, zap.NewNop()),
		status:   status.Nop(),
		throttle: status.NewThrottle(),
		level:    conf.Level,
		state:    StateInit,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.state = StateConfigResolved
	return e, nil
}

// State returns the engine's current state.
func (e *Engine) State() State {
	return e.state
}

// Level returns the module's level.
func (e *Engine) Level() schema.Level {
	return e.level
}

func (e *Engine) label() string {
	title := e.conf.Title
	if title == "" {
		title = e.conf.Name
	}
	return fmt.Sprintf("%s (%s)", title, e.conf.Name)
}

// Run executes the module. The store is left partially annotated if Run
// fails midway; every write is statement-atomic.
func (e *Engine) Run(ctx context.Context) (sum *Summary, err error) {
	start := time.Now()
	sum = &Summary{}

	if !e.module.Check() {
		e.state = StateCleanupOnly
		e.logger.Info("check returned false, skipping", zap.String("module", e.conf.Name))
		return sum, e.module.Cleanup()
	}
	defer func() {
		if cerr := e.module.Cleanup(); cerr != nil && err == nil {
			err = fmt.Errorf("module cleanup: %w", cerr)
		}
	}()

	e.status.Status(status.KindStatus, "Started "+e.label())
	e.logger.Info("postaggregator started", zap.String("module", e.conf.Name), zap.String("level", string(e.level)))

	conns, err := e.store.Conns(ctx)
	if err != nil {
		return sum, err
	}
	defer conns.Close()

	mig, err := e.store.Migrate(ctx, conns.Write, e.level, store.Annotator{
		Name:    e.conf.Name,
		Title:   e.conf.Title,
		Version: e.conf.Version,
	}, e.conf.OutputColumns)
	if err != nil {
		return sum, fmt.Errorf("migrate schema: %w", err)
	}
	sum.Added = mig.Added
	e.columns = mig.Columns
	e.state = StateSchemaMigrated

	run := &Run{
		Conf:    e.conf,
		Store:   e.store,
		Conns:   conns,
		Logger:  e.logger,
		Options: e.bindOptions(),
		Columns: e.columns,
	}
	if err := e.module.Setup(run); err != nil {
		return sum, fmt.Errorf("module setup: %w", err)
	}

	in, err := e.resolveInput(ctx, conns.Read)
	if err != nil {
		return sum, err
	}

	e.state = StateIterating
	e.throttle.Start()
	if err := e.iterate(ctx, conns, in, sum); err != nil {
		return sum, err
	}

	e.state = StateCategoryHarvest
	if err := e.harvestCategories(ctx, conns); err != nil {
		return sum, err
	}
	if err := e.module.Postprocess(run); err != nil {
		return sum, fmt.Errorf("module postprocess: %w", err)
	}

	e.state = StateDone
	sum.Ran = true
	sum.Elapsed = time.Since(start)
	e.logger.Info("postaggregator finished",
		zap.String("module", e.conf.Name),
		zap.Int("rows", sum.RowsRead),
		zap.Int("written", sum.RowsWritten),
		zap.Int("skipped", sum.RowsSkipped),
		zap.Int("errors", sum.Errors),
		zap.Duration("elapsed", sum.Elapsed))
	e.status.Status(status.KindStatus, "Finished "+e.label())
	return sum, nil
}

func (e *Engine) bindOptions() *config.OptionSet {
	reg := config.Registry{}
	if d, ok := e.module.(OptionDeclarer); ok {
		reg = d.Options()
	}
	opts := reg.Bind(e.conf.Options)
	for _, k := range opts.Unknown() {
		e.logger.Warn("unknown module option", zap.String("module", e.conf.Name), zap.String("key", k))
	}
	return opts
}
