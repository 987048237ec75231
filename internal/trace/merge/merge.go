package merge

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/flowtrace/internal/trace/event"
	"github.com/GriffinCanCode/flowtrace/internal/trace/source"
	"github.com/GriffinCanCode/flowtrace/internal/trace/wire"
)

// Config tunes the merger.
type Config struct {
	BatchSize     int           // events per batch handed to the consumer
	QueueDepth    int           // batches buffered across all readers
	MaxRecordSize int           // passed to each decoder
	Cutoff        time.Duration // stop reading after this long, 0 disables
	Grace         time.Duration // how long to wait for readers after a stop
}

// DefaultConfig returns the defaults used by the CLI.
func DefaultConfig() Config {
	return Config{
		BatchSize:     256,
		QueueDepth:    64,
		MaxRecordSize: wire.DefaultMaxRecordSize,
		Grace:         2 * time.Second,
	}
}

// SourceReport is the outcome of reading one source.
type SourceReport struct {
	Name    string
	Format  wire.Format
	Opened  bool
	Workers []uint32 // distinct worker ids seen, ascending
	Stats   wire.Stats

	// Err is set when the source could not be opened or read.
	Err error
	// Interrupted is set when reading stopped because of cancellation or
	// the cutoff.
	Interrupted bool
}

// Result summarizes a merge run.
type Result struct {
	Sources   []SourceReport // aligned with the input sources
	Events    int
	Truncated bool  // stopped by cancellation or cutoff
	Cause     error // why it was truncated
}

// Merger multiplexes source streams.
type Merger struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a merger. Zero config fields take their defaults.
func New(cfg Config, logger *zap.Logger) *Merger {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = def.QueueDepth
	}
	if cfg.MaxRecordSize <= 0 {
		cfg.MaxRecordSize = def.MaxRecordSize
	}
	if cfg.Grace <= 0 {
		cfg.Grace = def.Grace
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{cfg: cfg, logger: logger}
}

type message struct {
	index  int
	batch  []event.Event
	done   bool
	report SourceReport
}

// Run reads every source to completion (or until ctx is done or the cutoff
// fires) and calls sink once per event. sink is never called concurrently.
func (m *Merger) Run(ctx context.Context, sources []source.Source, sink func(event.Event)) Result {
	res := Result{Sources: make([]SourceReport, len(sources))}
	if len(sources) == 0 {
		return res
	}

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var cutoff <-chan time.Time
	if m.cfg.Cutoff > 0 {
		timer := time.NewTimer(m.cfg.Cutoff)
		defer timer.Stop()
		cutoff = timer.C
	}

	out := make(chan message, m.cfg.QueueDepth)
	free := make(chan []event.Event, m.cfg.QueueDepth)
	quit := make(chan struct{})
	defer close(quit)

	open := &closerSet{m: make(map[int]io.Closer)}
	for i, src := range sources {
		res.Sources[i] = SourceReport{Name: src.Name(), Format: src.Format()}
		go m.read(readCtx, i, src, open, out, free, quit)
	}

	var (
		active   = len(sources)
		reported = make([]bool, len(sources))
		stopping bool
		grace    <-chan time.Time
		progress = rate.Sometimes{Interval: 2 * time.Second}
	)
	stop := func(cause error) {
		if stopping {
			return
		}
		stopping = true
		res.Truncated = true
		res.Cause = cause
		cancel()
		open.closeAll()
		grace = time.After(m.cfg.Grace)
		m.logger.Warn("stopping trace readers",
			zap.Error(cause),
			zap.Int("active_sources", active),
			zap.Int("events", res.Events))
	}
	done := ctx.Done()

	for active > 0 {
		select {
		case msg := <-out:
			if msg.done {
				active--
				reported[msg.index] = true
				res.Sources[msg.index] = msg.report
				m.logSource(msg.report)
				continue
			}
			for _, ev := range msg.batch {
				sink(ev)
			}
			res.Events += len(msg.batch)
			select {
			case free <- msg.batch[:0]:
			default:
			}
			progress.Do(func() {
				m.logger.Info("reading traces",
					zap.Int("events", res.Events),
					zap.Int("active_sources", active))
			})

		case <-done:
			done = nil
			stop(ctx.Err())

		case <-cutoff:
			cutoff = nil
			stop(context.DeadlineExceeded)

		case <-grace:
			m.logger.Warn("abandoning unresponsive trace readers", zap.Int("sources", active))
			for i := range res.Sources {
				if !reported[i] {
					res.Sources[i].Interrupted = true
				}
			}
			return res
		}
	}
	return res
}

func (m *Merger) read(ctx context.Context, index int, src source.Source, open *closerSet,
	out chan<- message, free <-chan []event.Event, quit <-chan struct{}) {

	report := SourceReport{Name: src.Name(), Format: src.Format()}
	send := func(msg message) bool {
		select {
		case out <- msg:
			return true
		case <-quit:
			return false
		}
	}
	finish := func() {
		send(message{index: index, done: true, report: report})
	}

	rc, err := src.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			report.Interrupted = true
		} else {
			report.Err = err
		}
		finish()
		return
	}
	report.Opened = true
	if !open.add(index, rc) {
		rc.Close()
		report.Interrupted = true
		finish()
		return
	}

	dec := wire.NewDecoder(rc, src.Format(),
		wire.WithMaxRecordSize(m.cfg.MaxRecordSize),
		wire.WithLogger(m.logger.With(zap.String("source", src.Name()))))

	workers := make(map[uint32]struct{})
	batch := m.batch(free)
	for {
		ev, err := dec.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				if ctx.Err() != nil {
					report.Interrupted = true
				} else {
					report.Err = err
				}
			}
			break
		}
		workers[ev.Worker] = struct{}{}
		batch = append(batch, ev)
		if len(batch) == m.cfg.BatchSize {
			if !send(message{index: index, batch: batch}) {
				open.release(index, rc)
				return
			}
			batch = m.batch(free)
		}
	}
	if len(batch) > 0 && !send(message{index: index, batch: batch}) {
		open.release(index, rc)
		return
	}
	open.release(index, rc)

	report.Stats = dec.Stats()
	report.Workers = make([]uint32, 0, len(workers))
	for w := range workers {
		report.Workers = append(report.Workers, w)
	}
	sort.Slice(report.Workers, func(i, j int) bool { return report.Workers[i] < report.Workers[j] })
	finish()
}

func (m *Merger) batch(free <-chan []event.Event) []event.Event {
	select {
	case b := <-free:
		return b
	default:
		return make([]event.Event, 0, m.cfg.BatchSize)
	}
}

func (m *Merger) logSource(r SourceReport) {
	fields := []zap.Field{
		zap.String("source", r.Name),
		zap.Int("records", r.Stats.Records),
		zap.Int("anomalies", r.Stats.Anomalies),
	}
	switch {
	case r.Err != nil:
		m.logger.Warn("trace source failed", append(fields, zap.Error(r.Err))...)
	case r.Stats.Truncated:
		m.logger.Warn("trace source truncated", append(fields, zap.String("reason", r.Stats.TruncatedReason))...)
	case r.Interrupted:
		m.logger.Info("trace source interrupted", fields...)
	default:
		m.logger.Debug("trace source finished", fields...)
	}
}

// closerSet tracks open sources so a stop can close them all at once.
type closerSet struct {
	mu     sync.Mutex
	closed bool
	m      map[int]io.Closer
}

func (c *closerSet) add(i int, cl io.Closer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.m[i] = cl
	return true
}

// release closes cl unless closeAll already did.
func (c *closerSet) release(i int, cl io.Closer) {
	c.mu.Lock()
	_, owned := c.m[i]
	delete(c.m, i)
	c.mu.Unlock()
	if owned {
		cl.Close()
	}
}

func (c *closerSet) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for i, cl := range c.m {
		cl.Close()
		delete(c.m, i)
	}
}
