package analysis

import (
	"sort"
	"time"

	"github.com/GriffinCanCode/flowtrace/internal/graph/activation"
	"github.com/GriffinCanCode/flowtrace/internal/graph/topology"
	"github.com/GriffinCanCode/flowtrace/internal/shared/id"
	"github.com/GriffinCanCode/flowtrace/internal/trace/event"
	"github.com/GriffinCanCode/flowtrace/internal/trace/merge"
)

// Anomaly categories.
const (
	CategoryDecode     = "decode"
	CategoryTruncation = "truncation"
	CategoryTopology   = "topology_conflict"
	CategoryTiming     = "timing"
	CategoryFatalIO    = "fatal_io"
)

// Categories lists every anomaly category in report order.
var Categories = []string{CategoryDecode, CategoryTruncation, CategoryTopology, CategoryTiming, CategoryFatalIO}

// Source statuses.
const (
	StatusOK          = "ok"
	StatusTruncated   = "truncated"
	StatusInterrupted = "interrupted"
	StatusFatalIO     = "fatal_io"
)

// Truncation reasons added on top of the decoder's.
const (
	ReasonInterrupted     = "interrupted"
	ReasonMissingShutdown = "missing_shutdown"
)

// FatalIO reasons.
const (
	ReasonOpen = "open"
	ReasonRead = "read"
)

// Summary reports everything that happened during a run besides the model
// itself.
type Summary struct {
	RunID     id.RunID      `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed_ns"`

	// Truncated is set when reading stopped early because of cancellation
	// or the timeout.
	Truncated       bool   `json:"truncated"`
	TruncationCause string `json:"truncation_cause,omitempty"`

	Sources []SourceSummary `json:"sources"`
	// Anomalies counts anomalies by category, then reason.
	Anomalies map[string]map[string]int `json:"anomalies"`
	Conflicts []ConflictSummary         `json:"conflicts,omitempty"`

	// Placeholders counts scopes and nodes that were referenced but never
	// defined. They are exported as "unknown" and left out of Program.
	Placeholders   int `json:"placeholders"`
	OrphanMessages int `json:"orphan_messages"`

	Program ProgramStats  `json:"program"`
	Workers []WorkerStats `json:"workers"`
}

// SourceSummary describes one input source.
type SourceSummary struct {
	Name            string   `json:"name"`
	Format          string   `json:"format"`
	Status          string   `json:"status"`
	Workers         []uint32 `json:"workers"`
	Records         int      `json:"records"`
	Anomalies       int      `json:"anomalies"`
	Bytes           int64    `json:"bytes"`
	TruncatedReason string   `json:"truncated_reason,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// ConflictSummary is one disagreement between definitions.
type ConflictSummary struct {
	Kind    string        `json:"kind"`
	Address event.Address `json:"address,omitempty"`
	Channel uint64        `json:"channel,omitempty"`
	Worker  uint32        `json:"worker,omitempty"`
	Values  []string      `json:"values"`
	Kept    string        `json:"kept"`
}

// ProgramStats describes the traced program as a whole.
type ProgramStats struct {
	Workers   int           `json:"workers"`
	Dataflows int           `json:"dataflows"`
	Operators int           `json:"operators"`
	Subgraphs int           `json:"subgraphs"`
	Channels  int           `json:"channels"`
	Events    int           `json:"events"`
	Runtime   time.Duration `json:"runtime_ns"`
}

// WorkerStats describes what one worker reported.
type WorkerStats struct {
	ID            uint32          `json:"id"`
	Dataflows     int             `json:"dataflows"`
	Operators     int             `json:"operators"`
	Subgraphs     int             `json:"subgraphs"`
	Channels      int             `json:"channels"`
	Events        int             `json:"events"`
	Runtime       time.Duration   `json:"runtime_ns"`
	Shutdown      bool            `json:"shutdown"`
	DataflowAddrs []event.Address `json:"dataflow_addrs"`
}

// TotalAnomalies sums every category.
func (s *Summary) TotalAnomalies() int {
	total := 0
	for _, reasons := range s.Anomalies {
		for _, n := range reasons {
			total += n
		}
	}
	return total
}

// Count returns the number of anomalies in one category.
func (s *Summary) Count(category string) int {
	total := 0
	for _, n := range s.Anomalies[category] {
		total += n
	}
	return total
}

func summarize(runID id.RunID, started time.Time, merged merge.Result, g *topology.Graph, act *activation.Result) *Summary {
	s := &Summary{
		RunID:          runID,
		StartedAt:      started.UTC(),
		Elapsed:        time.Since(started),
		Truncated:      merged.Truncated,
		Sources:        make([]SourceSummary, 0, len(merged.Sources)),
		Anomalies:      make(map[string]map[string]int, len(Categories)),
		Placeholders:   g.Placeholders,
		OrphanMessages: g.OrphanMessages,
	}
	if merged.Cause != nil {
		s.TruncationCause = merged.Cause.Error()
	}
	for _, category := range Categories {
		s.Anomalies[category] = make(map[string]int)
	}
	add := func(category, reason string, n int) {
		if n > 0 {
			s.Anomalies[category][reason] += n
		}
	}

	for _, src := range merged.Sources {
		s.Sources = append(s.Sources, sourceSummary(src))
		for reason, n := range src.Stats.Reasons {
			add(CategoryDecode, reason, n)
		}
		if reason, fatal := fatalIO(src); fatal {
			add(CategoryFatalIO, reason, 1)
			continue
		}
		switch {
		case src.Interrupted:
			add(CategoryTruncation, ReasonInterrupted, 1)
		case src.Stats.Truncated:
			add(CategoryTruncation, src.Stats.TruncatedReason, 1)
		}
	}

	for _, c := range g.Conflicts {
		add(CategoryTopology, c.Kind, 1)
		s.Conflicts = append(s.Conflicts, ConflictSummary{
			Kind:    c.Kind,
			Address: c.Addr,
			Channel: c.Channel,
			Worker:  c.Worker,
			Values:  c.Values,
			Kept:    c.Kept,
		})
	}
	for reason, n := range act.Anomalies {
		add(CategoryTiming, reason, n)
	}

	workers := make(map[uint32]struct{})
	for w := range act.Workers {
		workers[w] = struct{}{}
	}
	for w := range g.Workers {
		workers[w] = struct{}{}
	}
	ids := make([]uint32, 0, len(workers))
	for w := range workers {
		ids = append(ids, w)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var (
		first, last time.Duration
		seen        bool
	)
	for _, w := range ids {
		counts := g.Workers[w]
		span := act.Workers[w]
		ws := WorkerStats{
			ID:            w,
			Dataflows:     counts.Dataflows,
			Operators:     counts.Operators,
			Subgraphs:     counts.Subgraphs,
			Channels:      counts.Channels,
			Events:        span.Events,
			Runtime:       span.Runtime(),
			Shutdown:      span.Shutdown,
			DataflowAddrs: counts.DataflowAddrs,
		}
		if !span.Shutdown && span.Events > 0 {
			add(CategoryTruncation, ReasonMissingShutdown, 1)
		}
		s.Workers = append(s.Workers, ws)

		if span.Events == 0 {
			continue
		}
		if !seen || span.First < first {
			first = span.First
		}
		if !seen || span.Last > last {
			last = span.Last
		}
		seen = true
	}

	dataflows := 0
	for _, sg := range g.Subgraphs {
		if sg.Addr.IsTopLevel() {
			dataflows++
		}
	}
	operators := 0
	for _, n := range g.Nodes {
		if n.Defined {
			operators++
		}
	}
	s.Program = ProgramStats{
		Workers:   len(ids),
		Dataflows: dataflows,
		Operators: operators,
		Subgraphs: len(g.Subgraphs),
		Channels:  len(g.Edges),
		Events:    merged.Events,
		Runtime:   last - first,
	}
	return s
}

func sourceSummary(src merge.SourceReport) SourceSummary {
	out := SourceSummary{
		Name:            src.Name,
		Format:          src.Format.String(),
		Status:          StatusOK,
		Workers:         src.Workers,
		Records:         src.Stats.Records,
		Anomalies:       src.Stats.Anomalies,
		Bytes:           src.Stats.Bytes,
		TruncatedReason: src.Stats.TruncatedReason,
	}
	if src.Err != nil {
		out.Error = src.Err.Error()
	}
	if _, fatal := fatalIO(src); fatal {
		out.Status = StatusFatalIO
		return out
	}
	switch {
	case src.Interrupted:
		out.Status = StatusInterrupted
	case src.Stats.Truncated:
		out.Status = StatusTruncated
	}
	return out
}

// fatalIO reports whether src contributed nothing because it could not be
// opened or its very first read failed. Read errors after data arrived are
// truncations.
func fatalIO(src merge.SourceReport) (string, bool) {
	switch {
	case src.Err == nil:
		return "", false
	case !src.Opened:
		return ReasonOpen, true
	case src.Stats.Records == 0 && src.Stats.Anomalies == 0:
		return ReasonRead, true
	}
	return "", false
}
