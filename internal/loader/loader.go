// Package loader builds a catalog from a data directory.
//
// A load runs six phases in order: global styles, default styles,
// workspaces, default workspace, global layer groups and a final consistency
// pass. The phases that read records run producers on a worker pool; the
// producers read and decode files and queue the decoded objects on a bounded
// pipeline, and the goroutine that called Load drains it, resolving each
// object and adding it to the catalog. Only that goroutine mutates the
// catalog.
package loader

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/geocatalog/internal/datadir"
	"github.com/geocatalog/internal/pipeline"
	"github.com/geocatalog/internal/record"
	"github.com/geocatalog/internal/resolver"
	"github.com/geocatalog/internal/storage"
	"github.com/geocatalog/pkg/catalog"
	"github.com/geocatalog/pkg/parallel"
	"github.com/geocatalog/pkg/telemetry"
	"github.com/geocatalog/pkg/utils"
)

var tracer = telemetry.Tracer("github.com/geocatalog/internal/loader")

// ResourceStore receives the bundled default style definitions.
type ResourceStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Upload(ctx context.Context, key string, reader io.Reader) error
}

// Recorder is notified after every load, successful or not.
type Recorder interface {
	Record(report *Report, err error)
}

// Option configures a CatalogLoader.
type Option func(*CatalogLoader)

// WithLogger sets the logger.
func WithLogger(l utils.Logger) Option {
	return func(c *CatalogLoader) { c.logger = utils.OrNull(l) }
}

// WithExecutorFactory sets the factory of the worker pool.
func WithExecutorFactory(f *ExecutorFactory) Option {
	return func(c *CatalogLoader) { c.executors = f }
}

// WithQueueCapacity sets the pipeline capacity.
func WithQueueCapacity(n int) Option {
	return func(c *CatalogLoader) { c.capacity = n }
}

// WithResolverOptions configures the reference resolver.
func WithResolverOptions(opts ...resolver.Option) Option {
	return func(c *CatalogLoader) { c.resolverOpts = append(c.resolverOpts, opts...) }
}

// WithResourceStore sets where bundled default styles are copied to.
// The default is the data directory.
func WithResourceStore(s ResourceStore) Option {
	return func(c *CatalogLoader) { c.store = s }
}

// WithRecorder registers a Recorder.
func WithRecorder(r Recorder) Option {
	return func(c *CatalogLoader) { c.recorder = r }
}

// WithClock sets the clock phase timings are measured with.
func WithClock(clock utils.Clock) Option {
	return func(c *CatalogLoader) { c.clock = clock }
}

// CatalogLoader loads a data directory into a catalog.
type CatalogLoader struct {
	catalog      *catalog.Catalog
	walker       *datadir.Walker
	executors    *ExecutorFactory
	capacity     int
	store        ResourceStore
	resolverOpts []resolver.Option
	recorder     Recorder
	clock        utils.Clock
	logger       utils.Logger
}

// New returns a loader filling c from the directory w walks.
func New(c *catalog.Catalog, w *datadir.Walker, opts ...Option) *CatalogLoader {
	l := &CatalogLoader{
		catalog:  c,
		walker:   w,
		capacity: pipeline.DefaultCapacity,
		logger:   &utils.NullLogger{},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.executors == nil {
		l.executors = NewExecutorFactory("", l.logger)
	}
	if l.store == nil {
		l.store = storage.NewFSStorage(w.FS())
	}
	return l
}

// Load runs every phase. Records that fail to read, decode or resolve are
// logged, reported and skipped. An error is only returned when a phase
// itself fails or ctx is cancelled; the catalog then holds whatever was
// added so far. The worker pool is shut down before Load returns, and the
// catalog's extended validation setting is restored.
func (l *CatalogLoader) Load(ctx context.Context) (report *Report, err error) {
	ctx, span := tracer.Start(ctx, "catalog.load")
	defer span.End()

	timer := utils.NewTimer("catalog load", utils.WithClock(l.clock), utils.WithTimerLogger(l.logger))
	report = newReport()

	prev := l.catalog.ExtendedValidation()
	l.catalog.SetExtendedValidation(false)
	defer l.catalog.SetExtendedValidation(prev)

	pool := l.executors.NewPool()
	report.Parallelism = pool.Parallelism()

	ctx, cancel := context.WithCancel(ctx)
	context.AfterFunc(ctx, func() { pool.ShutdownNow() })
	defer func() {
		cancel()
		if n := pool.ShutdownNow(); n > 0 {
			l.logger.Debug("Dropped %d queued loader tasks", n)
		}
		pool.Wait()
		report.Pool = pool.Metrics()
		report.Elapsed = timer.TotalDuration()
		timer.LogSummary()

		span.SetAttributes(
			attribute.Int("catalog.parallelism", report.Parallelism),
			attribute.Int("catalog.decoded", report.Decoded),
			attribute.Int("catalog.dropped", len(report.Dropped)),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if l.recorder != nil {
			l.recorder.Record(report, err)
		}
	}()

	run := &loadRun{
		CatalogLoader: l,
		pool:          pool,
		bytes:         datadir.NewByteLoader(l.walker.FS(), pool, l.logger),
		parsers:       record.NewParserTable(l.walker.Format(), pool.Slots()),
		resolver:      resolver.New(l.catalog, append([]resolver.Option{resolver.WithLogger(l.logger)}, l.resolverOpts...)...),
		report:        report,
		timer:         timer,
	}
	l.logger.Info("Loading catalog with %d threads", report.Parallelism)

	steps := []struct {
		phase Phase
		run   func(context.Context) error
	}{
		{PhaseGlobalStyles, run.loadGlobalStyles},
		{PhaseDefaultStyles, run.initializeDefaultStyles},
		{PhaseWorkspaces, run.loadWorkspaces},
		{PhaseDefaultWorkspace, run.setDefaultWorkspace},
		{PhaseGlobalLayerGroups, run.loadGlobalLayerGroups},
		{PhaseFinalResolve, run.finalResolve},
	}
	for _, s := range steps {
		if err := run.step(ctx, s.phase, s.run); err != nil {
			l.logger.Error("Catalog load aborted in phase %s: %v", s.phase, err)
			return report, err
		}
	}

	l.logger.Info("Loaded %d catalog objects in %s: %d dropped, %d patched, %d unreadable, %d parsers created",
		l.catalog.Size(), timer.TotalDuration().Round(time.Millisecond), len(report.Dropped), len(report.Patched),
		len(report.Failures()), run.parsers.Created())
	return report, nil
}

// loadRun holds the state of one Load call. Fields below report are only
// touched by the consuming goroutine.
type loadRun struct {
	*CatalogLoader
	pool     *parallel.Pool
	bytes    *datadir.ByteLoader
	parsers  *record.ParserTable
	resolver *resolver.Resolver
	report   *Report
	timer    *utils.Timer

	phase    Phase
	consumed int
}

func (r *loadRun) step(ctx context.Context, phase Phase, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "catalog.load."+phase.String())
	defer span.End()

	r.phase = phase
	r.consumed = 0
	d, err := r.timer.TimeFuncWithError(phase.String(), func() error { return fn(ctx) })
	r.report.Phases = append(r.report.Phases, PhaseTiming{Phase: phase, Duration: d, Records: r.consumed})
	r.logger.Debug("Phase %s read %d records", phase, r.consumed)

	span.SetAttributes(attribute.Int("catalog.records", r.consumed))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// drain runs one pipeline round: spawn submits the producers to g, and the
// calling goroutine consumes until every producer, including the ones
// producers add later, is done.
func (r *loadRun) drain(ctx context.Context, spawn func(g *parallel.Group, out *pipeline.Pipeline[item])) error {
	out := pipeline.New[item](r.capacity)
	g := r.pool.NewGroup()
	g.Then(func(err error) { out.Finish(ctx, err) })
	spawn(g, out)
	g.Close()
	return out.Drain(ctx, r.consume)
}
