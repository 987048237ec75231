// Package analysis runs one complete pass over a set of trace sources: it
// merges them, reconstructs the graph, aggregates activations and assembles
// the export model together with a run summary.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/flowtrace/internal/graph/activation"
	"github.com/GriffinCanCode/flowtrace/internal/graph/export"
	"github.com/GriffinCanCode/flowtrace/internal/graph/palette"
	"github.com/GriffinCanCode/flowtrace/internal/graph/topology"
	"github.com/GriffinCanCode/flowtrace/internal/infrastructure/config"
	"github.com/GriffinCanCode/flowtrace/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/flowtrace/internal/shared/id"
	"github.com/GriffinCanCode/flowtrace/internal/trace/event"
	"github.com/GriffinCanCode/flowtrace/internal/trace/merge"
	"github.com/GriffinCanCode/flowtrace/internal/trace/source"
)

// ErrNoInput is returned when no source could be opened or no event was
// decoded from any of them.
var ErrNoInput = errors.New("no usable trace input")

// Config controls one analysis run.
type Config struct {
	Reader             merge.Config
	EdgeRule           string
	Palette            string
	PaletteSize        int
	IncludeActivations bool
}

// DefaultConfig mirrors config.Default.
func DefaultConfig() Config {
	return Config{
		Reader:      merge.DefaultConfig(),
		EdgeRule:    topology.RuleContainment,
		Palette:     palette.DefaultGradient,
		PaletteSize: palette.DefaultSize,
	}
}

// ConfigFrom translates the application configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Reader: merge.Config{
			BatchSize:     cfg.Reader.BatchSize,
			QueueDepth:    cfg.Reader.QueueDepth,
			MaxRecordSize: cfg.Reader.MaxRecordSize,
			Cutoff:        cfg.Input.Timeout.Std(),
			Grace:         cfg.Reader.Grace.Std(),
		},
		EdgeRule:           cfg.Analysis.EdgeRule,
		Palette:            cfg.Analysis.Palette,
		PaletteSize:        cfg.Analysis.PaletteSize,
		IncludeActivations: cfg.Analysis.IncludeActivations,
	}
}

// Analyzer runs analyses. It holds no per-run state and may be reused.
type Analyzer struct {
	cfg        Config
	classifier topology.Classifier
	palette    *palette.Palette
	logger     *zap.Logger
	metrics    *monitoring.Metrics
	ids        *id.Generator
}

// New validates cfg and creates an analyzer. logger and metrics may be nil.
func New(cfg Config, logger *zap.Logger, metrics *monitoring.Metrics) (*Analyzer, error) {
	classifier, err := topology.ClassifierFor(cfg.EdgeRule)
	if err != nil {
		return nil, err
	}
	size := cfg.PaletteSize
	if size == 0 {
		size = palette.DefaultSize
	}
	p, err := palette.New(cfg.Palette, size)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		cfg:        cfg,
		classifier: classifier,
		palette:    p,
		logger:     logger,
		metrics:    metrics,
		ids:        id.Default(),
	}, nil
}

// Result is the outcome of a run. Model is nil when the run produced no
// usable input.
type Result struct {
	Model   *export.Model
	Summary *Summary
}

// Run reads all sources and builds the graph model. Data problems never
// fail the run: they are counted in the summary. Cancelling ctx stops
// reading and the model is built from what was read so far. The only
// error is ErrNoInput, returned together with a summary explaining why.
func (a *Analyzer) Run(ctx context.Context, sources []source.Source) (*Result, error) {
	started := time.Now()
	runID := a.ids.NewRunID()
	logger := a.logger.With(zap.Stringer("run", runID))
	logger.Info("starting analysis", zap.Int("sources", len(sources)))

	builder := topology.NewBuilder(logger)
	agg := activation.New(activation.Options{
		KeepActivations: a.cfg.IncludeActivations,
		OnActivation: func(_ event.Address, d time.Duration) {
			a.metrics.ObserveActivation(d)
		},
	}, logger)

	var kinds [event.KindShutdown + 1]int
	sink := func(ev event.Event) {
		if int(ev.Kind) < len(kinds) {
			kinds[ev.Kind]++
		}
		builder.Observe(ev)
		agg.Observe(ev)
	}

	timer := monitoring.NewTimer(a.metrics, "read")
	merged := merge.New(a.cfg.Reader, logger).Run(ctx, sources, sink)
	timer.Stop()

	for _, k := range event.Kinds {
		a.metrics.AddEvents(k.String(), kinds[k])
	}

	timer = monitoring.NewTimer(a.metrics, "build")
	graph := builder.Build(a.classifier)
	act := agg.Finalize()
	timer.Stop()

	summary := summarize(runID, started, merged, graph, act)
	a.record(summary)
	res := &Result{Summary: summary}

	if !usable(merged) {
		logger.Error("no usable trace input",
			zap.Int("sources", len(sources)),
			zap.Int("events", merged.Events))
		return res, ErrNoInput
	}

	timer = monitoring.NewTimer(a.metrics, "assemble")
	res.Model = export.Assemble(graph, act, a.palette, export.Options{
		IncludeActivations: a.cfg.IncludeActivations,
	})
	timer.Stop()
	a.metrics.SetGraphEntities(len(res.Model.Nodes), len(res.Model.Subgraphs), len(res.Model.Edges))

	summary.Elapsed = time.Since(started)
	logger.Info("analysis complete",
		zap.Int("events", merged.Events),
		zap.Int("nodes", len(res.Model.Nodes)),
		zap.Int("subgraphs", len(res.Model.Subgraphs)),
		zap.Int("edges", len(res.Model.Edges)),
		zap.Int("anomalies", summary.TotalAnomalies()),
		zap.Bool("truncated", summary.Truncated),
		zap.Duration("elapsed", summary.Elapsed))
	return res, nil
}

func usable(res merge.Result) bool {
	if res.Events == 0 {
		return false
	}
	for _, src := range res.Sources {
		if src.Opened {
			return true
		}
	}
	return false
}

func (a *Analyzer) record(s *Summary) {
	if a.metrics == nil {
		return
	}
	for _, src := range s.Sources {
		a.metrics.RecordSource(src.Status)
		a.metrics.AddBytes(src.Bytes)
	}
	for _, category := range Categories {
		for reason, n := range s.Anomalies[category] {
			a.metrics.AddAnomalies(category, reason, n)
		}
	}
}

// String describes the run in one line.
func (r *Result) String() string {
	s := r.Summary
	return fmt.Sprintf("run %s: %d events from %d sources, %d anomalies, truncated=%t",
		s.RunID, s.Program.Events, len(s.Sources), s.TotalAnomalies(), s.Truncated)
}
