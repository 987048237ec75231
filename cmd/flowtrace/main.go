package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/flowtrace/internal/analysis"
	"github.com/GriffinCanCode/flowtrace/internal/graph/export"
	"github.com/GriffinCanCode/flowtrace/internal/infrastructure/config"
	"github.com/GriffinCanCode/flowtrace/internal/infrastructure/logging"
	"github.com/GriffinCanCode/flowtrace/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/flowtrace/internal/trace/source"
	"github.com/GriffinCanCode/flowtrace/internal/trace/wire"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("flowtrace", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// Parse flags
	configPath := fs.String("config", "", "Config file (YAML, TOML or JSON)")
	format := fs.String("format", "", "Trace format: auto, binary or json")
	output := fs.String("output", "", "Graph JSON output path (.gz/.zst to compress)")
	summary := fs.String("summary", "", "Run summary JSON output path")
	metricsFile := fs.String("metrics", "", "Prometheus textfile output path")
	timeout := fs.Duration("timeout", 0, "Stop reading after this long and export partial data")
	paletteName := fs.String("palette", "", "Color gradient")
	paletteSize := fs.Int("palette-size", 0, "Number of palette colors")
	edgeRule := fs.String("edge-rule", "", "Edge classification: containment or parent")
	activations := fs.Bool("activations", false, "Include per-activation timelines")
	indent := fs.Bool("indent", false, "Indent JSON output")
	logLevel := fs.String("log-level", "", "Log level")
	dev := fs.Bool("dev", false, "Development logging")
	envHelp := fs.Bool("env", false, "List environment variables and exit")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: flowtrace [flags] <trace file | dir | glob | ->...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if *envHelp {
		if err := config.Usage(); err != nil {
			fmt.Fprintf(stderr, "flowtrace: %v\n", err)
			return exitError
		}
		return exitOK
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "flowtrace: %v\n", err)
		return exitUsage
	}

	// Flags override env vars and the config file
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "format":
			cfg.Input.Format = *format
		case "output":
			cfg.Output.Graph = *output
		case "summary":
			cfg.Output.Summary = *summary
		case "metrics":
			cfg.Output.Metrics = *metricsFile
		case "timeout":
			cfg.Input.Timeout = config.Duration(*timeout)
		case "palette":
			cfg.Analysis.Palette = *paletteName
		case "palette-size":
			cfg.Analysis.PaletteSize = *paletteSize
		case "edge-rule":
			cfg.Analysis.EdgeRule = *edgeRule
		case "activations":
			cfg.Analysis.IncludeActivations = *activations
		case "indent":
			cfg.Output.Indent = *indent
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "dev":
			cfg.Logging.Development = *dev
		}
	})
	if fs.NArg() > 0 {
		cfg.Input.Paths = fs.Args()
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "flowtrace: %v\n", err)
		fs.Usage()
		return exitUsage
	}

	logCfg := logging.DefaultConfig()
	if cfg.Logging.Development {
		logCfg = logging.DevelopmentConfig()
	}
	logCfg.Level = cfg.Logging.Level
	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(stderr, "flowtrace: %v\n", err)
		return exitUsage
	}
	defer logger.Sync()

	if err := analyze(ctx, cfg, logger.Logger, stdin, stdout); err != nil {
		logger.Error("flowtrace failed", zap.Error(err))
		return exitError
	}
	return exitOK
}

func analyze(ctx context.Context, cfg *config.Config, logger *zap.Logger, stdin io.Reader, stdout io.Writer) error {
	format, err := wire.ParseFormat(cfg.Input.Format)
	if err != nil {
		return err
	}
	sources, err := sourcesFor(ctx, cfg.Input.Paths, format, stdin)
	if err != nil {
		return err
	}

	metrics := monitoring.NewMetrics()
	analyzer, err := analysis.New(analysis.ConfigFrom(cfg), logger, metrics)
	if err != nil {
		return err
	}

	res, runErr := analyzer.Run(ctx, sources)
	if runErr != nil && !errors.Is(runErr, analysis.ErrNoInput) {
		return runErr
	}

	// Artifacts are written even when interrupted; each write is atomic.
	if res.Model != nil && cfg.Output.Graph != "" {
		timer := monitoring.NewTimer(metrics, "export")
		if err := export.WriteFile(cfg.Output.Graph, res.Model, cfg.Output.Indent); err != nil {
			return err
		}
		logger.Info("wrote graph", zap.String("path", cfg.Output.Graph), zap.Duration("elapsed", timer.Stop()))
	}
	if cfg.Output.Summary != "" {
		if err := export.WriteFile(cfg.Output.Summary, res.Summary, true); err != nil {
			return err
		}
	}
	if cfg.Output.Metrics != "" {
		if err := metrics.WriteTextfile(cfg.Output.Metrics); err != nil {
			return err
		}
	}

	printSummary(stdout, res.Summary)
	return runErr
}

// sourcesFor resolves inputs. "-" reads stdin.
func sourcesFor(ctx context.Context, inputs []string, format wire.Format, stdin io.Reader) ([]source.Source, error) {
	var (
		patterns []string
		sources  []source.Source
	)
	for _, in := range inputs {
		if in == "-" {
			sources = append(sources, source.NewReader("stdin", io.NopCloser(stdin), format))
			continue
		}
		patterns = append(patterns, in)
	}
	if len(patterns) == 0 {
		return sources, nil
	}
	found, err := source.Discover(ctx, patterns, format)
	if err != nil {
		return nil, err
	}
	return append(sources, found...), nil
}

func printSummary(w io.Writer, s *analysis.Summary) {
	fmt.Fprintf(w, "run %s\n", s.RunID)
	fmt.Fprintf(w, "  sources:   %d\n", len(s.Sources))
	fmt.Fprintf(w, "  workers:   %d\n", s.Program.Workers)
	fmt.Fprintf(w, "  events:    %d\n", s.Program.Events)
	fmt.Fprintf(w, "  dataflows: %d  operators: %d  subgraphs: %d  channels: %d\n",
		s.Program.Dataflows, s.Program.Operators, s.Program.Subgraphs, s.Program.Channels)
	fmt.Fprintf(w, "  runtime:   %s\n", s.Program.Runtime)

	var counts []string
	for _, category := range analysis.Categories {
		if n := s.Count(category); n > 0 {
			counts = append(counts, fmt.Sprintf("%s=%d", category, n))
		}
	}
	if len(counts) == 0 {
		counts = append(counts, "none")
	}
	fmt.Fprintf(w, "  anomalies: %s\n", strings.Join(counts, " "))
	if s.Truncated {
		fmt.Fprintf(w, "  truncated: %s\n", s.TruncationCause)
	}
	fmt.Fprintf(w, "  elapsed:   %s\n", s.Elapsed.Round(time.Millisecond))
}
