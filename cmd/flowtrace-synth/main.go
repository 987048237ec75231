package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/flowtrace/internal/graph/export"
	"github.com/GriffinCanCode/flowtrace/internal/infrastructure/logging"
	"github.com/GriffinCanCode/flowtrace/internal/trace/synth"
	"github.com/GriffinCanCode/flowtrace/internal/trace/wire"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	def := synth.DefaultConfig()
	fs := flag.NewFlagSet("flowtrace-synth", flag.ContinueOnError)
	fs.SetOutput(stderr)

	dir := fs.String("dir", ".", "Output directory")
	format := fs.String("format", "binary", "Trace format: binary or json")
	compress := fs.String("compress", "", "Compression: gz, zst or empty")
	workers := fs.Int("workers", def.Workers, "Number of workers")
	dataflows := fs.Int("dataflows", def.Dataflows, "Dataflows per worker")
	operators := fs.Int("operators", def.Operators, "Operators per dataflow")
	activations := fs.Int("activations", def.Activations, "Scheduling rounds per worker")
	mean := fs.Duration("mean", def.MeanDuration, "Mean leaf activation time")
	seed := fs.Int64("seed", def.Seed, "Random seed")
	garbage := fs.Float64("garbage", 0, "Probability of an unreadable record after each event (binary only)")
	truncate := fs.Bool("truncate", false, "Cut the last record of every file in half (binary only)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	f, err := wire.ParseFormat(*format)
	if err != nil || f == wire.FormatAuto {
		fmt.Fprintf(stderr, "flowtrace-synth: invalid format %q\n", *format)
		return 2
	}
	ext, ok := extension(f, *compress)
	if !ok {
		fmt.Fprintf(stderr, "flowtrace-synth: invalid compression %q\n", *compress)
		return 2
	}
	if *workers < 1 || *dataflows < 1 || *operators < 1 || *activations < 0 || *garbage < 0 || *garbage > 1 {
		fmt.Fprintln(stderr, "flowtrace-synth: counts must be positive and -garbage within [0, 1]")
		return 2
	}

	logger := logging.NewDefault()
	defer logger.Sync()

	cfg := synth.Config{
		Workers:      *workers,
		Dataflows:    *dataflows,
		Operators:    *operators,
		Activations:  *activations,
		Seed:         *seed,
		MeanDuration: *mean,
	}
	damage := synth.Damage{Garbage: *garbage, Truncate: *truncate}

	paths, err := generate(*dir, ext, f, cfg, damage)
	if err != nil {
		logger.Error("Failed to write traces", zap.Error(err))
		return 1
	}
	logger.Info("Traces written",
		zap.String("dir", *dir),
		zap.Int("files", len(paths)),
		zap.String("format", f.String()))
	return 0
}

func generate(dir, ext string, format wire.Format, cfg synth.Config, damage synth.Damage) ([]string, error) {
	streams := synth.Generate(cfg)
	workers := make([]uint32, 0, len(streams))
	for w := range streams {
		workers = append(workers, w)
	}
	sort.Slice(workers, func(i, j int) bool { return workers[i] < workers[j] })

	paths := make([]string, 0, len(workers))
	for _, w := range workers {
		path := filepath.Join(dir, fmt.Sprintf("worker-%d%s", w, ext))
		events := streams[w]
		err := export.WriteStream(path, func(out io.Writer) error {
			return synth.Write(out, events, format, damage, cfg.Seed+int64(w))
		})
		if err != nil {
			return paths, fmt.Errorf("worker %d: %w", w, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func extension(format wire.Format, compress string) (string, bool) {
	ext := ".ftrace"
	if format == wire.FormatJSON {
		ext = ".jsonl"
	}
	switch compress {
	case "":
	case "gz", "gzip":
		ext += ".gz"
	case "zst", "zstd":
		ext += ".zst"
	default:
		return "", false
	}
	return ext, true
}
