// Package activation matches schedule start/stop pairs into activation
// durations and aggregates them per operator.
package activation

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/flowtrace/internal/trace/event"
)

// Timing anomaly reasons.
const (
	ReasonReplacedStart    = "replaced_start"
	ReasonOrphanStop       = "orphan_stop"
	ReasonNegativeDuration = "negative_duration"
	ReasonUnfinished       = "unfinished"
)

// Activation is one matched start/stop pair.
type Activation struct {
	Worker    uint32
	Addr      event.Address
	StartedAt time.Duration
	Duration  time.Duration
}

// WorkerSpan tracks the observed lifetime of one worker.
type WorkerSpan struct {
	First    time.Duration
	Last     time.Duration
	Events   int
	Shutdown bool
}

// Runtime is the time between the first and last event of the worker.
func (w WorkerSpan) Runtime() time.Duration {
	return w.Last - w.First
}

type key struct {
	worker uint32
	addr   event.Key
}

// Options configures an Aggregator.
type Options struct {
	// KeepActivations retains every matched activation, needed for
	// timelines and distribution statistics.
	KeepActivations bool
	// OnActivation, if set, is called for every matched activation.
	OnActivation func(addr event.Address, d time.Duration)
	// OnAnomaly, if set, is called for every timing anomaly.
	OnAnomaly func(reason string)
}

// Aggregator consumes schedule events. It is not safe for concurrent use.
type Aggregator struct {
	opts   Options
	logger *zap.Logger

	pending     map[key]time.Duration
	stats       map[key]*Stats
	activations []Activation
	workers     map[uint32]*WorkerSpan
	anomalies   map[string]int
}

// New creates an empty aggregator.
func New(opts Options, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		opts:      opts,
		logger:    logger,
		pending:   make(map[key]time.Duration),
		stats:     make(map[key]*Stats),
		workers:   make(map[uint32]*WorkerSpan),
		anomalies: make(map[string]int),
	}
}

// Observe consumes one event of any kind.
func (a *Aggregator) Observe(ev event.Event) {
	a.track(ev)

	switch ev.Kind {
	case event.KindScheduleStart:
		k := key{worker: ev.Worker, addr: ev.Addr.Key()}
		if prev, ok := a.pending[k]; ok {
			a.anomaly(ReasonReplacedStart, ev, zap.Duration("discarded_start", prev))
		}
		a.pending[k] = ev.Timestamp

	case event.KindScheduleStop:
		k := key{worker: ev.Worker, addr: ev.Addr.Key()}
		start, ok := a.pending[k]
		if !ok {
			a.anomaly(ReasonOrphanStop, ev)
			return
		}
		delete(a.pending, k)

		d := ev.Timestamp - start
		if d < 0 {
			a.anomaly(ReasonNegativeDuration, ev, zap.Duration("duration", d))
			return
		}
		s := a.stats[k]
		if s == nil {
			s = &Stats{}
			a.stats[k] = s
		}
		s.Add(d)
		if a.opts.KeepActivations {
			a.activations = append(a.activations, Activation{
				Worker:    ev.Worker,
				Addr:      ev.Addr,
				StartedAt: start,
				Duration:  d,
			})
		}
		if a.opts.OnActivation != nil {
			a.opts.OnActivation(ev.Addr, d)
		}
	}
}

func (a *Aggregator) track(ev event.Event) {
	w := a.workers[ev.Worker]
	if w == nil {
		w = &WorkerSpan{First: ev.Timestamp, Last: ev.Timestamp}
		a.workers[ev.Worker] = w
	}
	w.Events++
	if ev.Timestamp < w.First {
		w.First = ev.Timestamp
	}
	if ev.Timestamp > w.Last {
		w.Last = ev.Timestamp
	}
	if ev.Kind == event.KindShutdown {
		w.Shutdown = true
	}
}

func (a *Aggregator) anomaly(reason string, ev event.Event, fields ...zap.Field) {
	a.anomalies[reason]++
	if a.opts.OnAnomaly != nil {
		a.opts.OnAnomaly(reason)
	}
	a.logger.Debug("timing anomaly", append(fields,
		zap.String("reason", reason),
		zap.Uint32("worker", ev.Worker),
		zap.Stringer("addr", ev.Addr),
		zap.Duration("ts", ev.Timestamp))...)
}

// Result is the final, cross-worker view of all activations.
type Result struct {
	// ByAddr holds stats merged across workers.
	ByAddr map[event.Key]Stats
	// ByWorker holds the unmerged per-worker stats.
	ByWorker map[uint32]map[event.Key]Stats
	// Spread is only populated when activations were kept.
	Spread map[event.Key]Spread
	// Activations is sorted by start time, worker and address.
	Activations []Activation
	Workers     map[uint32]WorkerSpan
	// Anomalies counts timing anomalies by reason.
	Anomalies map[string]int
}

// Lookup returns the merged stats of addr.
func (r *Result) Lookup(addr event.Address) Stats {
	return r.ByAddr[addr.Key()]
}

// Finalize discards activations that never stopped and reduces per-worker
// stats into per-address stats. The aggregator must not be used afterwards.
func (a *Aggregator) Finalize() *Result {
	if n := len(a.pending); n > 0 {
		a.anomalies[ReasonUnfinished] += n
		if a.opts.OnAnomaly != nil {
			for i := 0; i < n; i++ {
				a.opts.OnAnomaly(ReasonUnfinished)
			}
		}
		a.logger.Debug("discarding unfinished activations", zap.Int("count", n))
		a.pending = nil
	}

	res := &Result{
		ByAddr:    make(map[event.Key]Stats),
		ByWorker:  make(map[uint32]map[event.Key]Stats),
		Workers:   make(map[uint32]WorkerSpan, len(a.workers)),
		Anomalies: a.anomalies,
	}
	for k, s := range a.stats {
		merged := res.ByAddr[k.addr]
		merged.Merge(*s)
		res.ByAddr[k.addr] = merged

		perWorker := res.ByWorker[k.worker]
		if perWorker == nil {
			perWorker = make(map[event.Key]Stats)
			res.ByWorker[k.worker] = perWorker
		}
		perWorker[k.addr] = *s
	}
	for w, span := range a.workers {
		res.Workers[w] = *span
	}

	if a.opts.KeepActivations {
		acts := a.activations
		sort.Slice(acts, func(i, j int) bool {
			x, y := acts[i], acts[j]
			if x.StartedAt != y.StartedAt {
				return x.StartedAt < y.StartedAt
			}
			if x.Worker != y.Worker {
				return x.Worker < y.Worker
			}
			if c := x.Addr.Compare(y.Addr); c != 0 {
				return c < 0
			}
			return x.Duration < y.Duration
		})
		res.Activations = acts

		samples := make(map[event.Key][]float64)
		for _, act := range acts {
			k := act.Addr.Key()
			samples[k] = append(samples[k], float64(act.Duration))
		}
		res.Spread = make(map[event.Key]Spread, len(samples))
		for k, xs := range samples {
			res.Spread[k] = spreadOf(xs)
		}
	}
	a.activations = nil
	return res
}
