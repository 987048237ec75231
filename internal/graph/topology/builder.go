// Package topology reconstructs the dataflow graph from definition events.
package topology

import (
	"sort"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/flowtrace/internal/trace/event"
)

// UnknownName labels scopes that were referenced but never defined.
const UnknownName = "unknown"

// Conflict records definitions that disagree.
type Conflict struct {
	Kind    string // "operator" or "channel"
	Addr    event.Address
	Channel uint64
	Worker  uint32   // set for channel conflicts
	Values  []string // distinct names or wirings, sorted
	Kept    string
}

// definitions holds every name reported for one address. The last name from
// the highest worker id wins, which keeps the outcome independent of how
// worker streams interleave.
type definitions struct {
	last map[uint32]string
	seen map[string]struct{}
}

func (d *definitions) resolved() string {
	var (
		best  uint32
		name  string
		found bool
	)
	for w, n := range d.last {
		if !found || w > best {
			best, name, found = w, n, true
		}
	}
	return name
}

type channelKey struct {
	worker uint32
	id     uint64
}

type channelDef struct {
	src, dst event.Endpoint
}

type messageCounts struct {
	sent, received, records uint64
}

// Builder accumulates topology from an event feed. It is not safe for
// concurrent use.
type Builder struct {
	logger *zap.Logger

	names    map[event.Key]*definitions
	known    map[event.Key]struct{}
	channels map[channelKey]channelDef
	messages map[channelKey]*messageCounts
	defined  map[uint32]map[event.Key]struct{}

	conflicts []Conflict
}

// NewBuilder creates an empty builder.
func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		logger:   logger,
		names:    make(map[event.Key]*definitions),
		known:    make(map[event.Key]struct{}),
		channels: make(map[channelKey]channelDef),
		messages: make(map[channelKey]*messageCounts),
		defined:  make(map[uint32]map[event.Key]struct{}),
	}
}

// Observe consumes one event. Kinds that carry no topology are ignored,
// except that scheduled addresses are materialized.
func (b *Builder) Observe(ev event.Event) {
	switch ev.Kind {
	case event.KindOperator:
		b.defineOperator(ev.Worker, ev.Addr, ev.Name)
	case event.KindChannel:
		b.defineChannel(ev.Worker, ev.Channel, ev.Source, ev.Dest)
	case event.KindScheduleStart, event.KindScheduleStop:
		b.touch(ev.Addr)
	case event.KindMessage:
		key := channelKey{worker: ev.Worker, id: ev.Channel}
		mc := b.messages[key]
		if mc == nil {
			mc = &messageCounts{}
			b.messages[key] = mc
		}
		if ev.IsSend {
			mc.sent++
			mc.records += ev.Records
		} else {
			mc.received++
		}
	}
}

// touch materializes addr and all of its ancestors.
func (b *Builder) touch(addr event.Address) {
	key := addr.Key()
	if _, ok := b.known[key]; ok {
		return
	}
	b.known[key] = struct{}{}
	for _, p := range addr.Prefixes() {
		b.known[p.Key()] = struct{}{}
	}
}

func (b *Builder) defineOperator(worker uint32, addr event.Address, name string) {
	b.touch(addr)
	key := addr.Key()

	perWorker := b.defined[worker]
	if perWorker == nil {
		perWorker = make(map[event.Key]struct{})
		b.defined[worker] = perWorker
	}
	perWorker[key] = struct{}{}

	defs := b.names[key]
	if defs == nil {
		defs = &definitions{last: make(map[uint32]string), seen: make(map[string]struct{})}
		b.names[key] = defs
	}
	if _, ok := defs.seen[name]; !ok && len(defs.seen) > 0 {
		b.logger.Warn("conflicting operator names",
			zap.Stringer("addr", addr),
			zap.Uint32("worker", worker),
			zap.String("previous", defs.resolved()),
			zap.String("current", name))
	}
	defs.seen[name] = struct{}{}
	defs.last[worker] = name
}

func (b *Builder) defineChannel(worker uint32, id uint64, src, dst event.Endpoint) {
	b.touch(src.Addr)
	b.touch(dst.Addr)

	key := channelKey{worker: worker, id: id}
	def := channelDef{src: src, dst: dst}
	if prev, ok := b.channels[key]; ok && !sameChannel(prev, def) {
		wiring := src.String() + " -> " + dst.String()
		values := []string{prev.src.String() + " -> " + prev.dst.String(), wiring}
		sort.Strings(values)
		b.conflicts = append(b.conflicts, Conflict{
			Kind:    "channel",
			Channel: id,
			Worker:  worker,
			Values:  values,
			Kept:    wiring,
		})
		b.logger.Warn("conflicting channel definitions",
			zap.Uint64("channel", id),
			zap.Uint32("worker", worker))
	}
	b.channels[key] = def
}

func sameChannel(a, b channelDef) bool {
	return a.src.Port == b.src.Port && a.dst.Port == b.dst.Port &&
		a.src.Addr.Equal(b.src.Addr) && a.dst.Addr.Equal(b.dst.Addr)
}

// Node is an operator that does not contain other nodes.
type Node struct {
	Addr    event.Address
	Name    string
	Defined bool
}

// Subgraph is a scope containing other nodes.
type Subgraph struct {
	Addr    event.Address
	Parent  event.Address // nil for top-level scopes
	Name    string
	Defined bool
}

// Edge is a logical channel merged across workers.
type Edge struct {
	Source  event.Endpoint
	Dest    event.Endpoint
	Channel uint64 // lowest channel id reported for this edge
	Kind    EdgeKind
	Workers int // distinct workers that defined the channel

	MessagesSent     uint64
	MessagesReceived uint64
	RecordsSent      uint64
}

// WorkerCounts is the topology seen by one worker.
type WorkerCounts struct {
	Dataflows     int
	Operators     int
	Subgraphs     int
	Channels      int
	DataflowAddrs []event.Address
}

// Graph is the resolved topology. All slices are sorted by address.
type Graph struct {
	Nodes     []Node
	Subgraphs []Subgraph
	Edges     []Edge
	Conflicts []Conflict
	Workers   map[uint32]WorkerCounts

	Placeholders   int // scopes and nodes referenced but never defined
	OrphanMessages int // message events on undefined channels
}

type edgeKey struct {
	src, dst         event.Key
	srcPort, dstPort uint32
}

// Build resolves everything observed so far. The result depends only on the
// set of definitions, not on the order they arrived in.
func (b *Builder) Build(classifier Classifier) *Graph {
	if classifier == nil {
		classifier = ContainmentRule{}
	}
	g := &Graph{Workers: make(map[uint32]WorkerCounts)}

	scopes := make(map[event.Key]struct{})
	for key := range b.known {
		for _, p := range key.Address().Prefixes() {
			scopes[p.Key()] = struct{}{}
		}
	}

	for key := range b.known {
		addr := key.Address()
		defs, defined := b.names[key]
		name := UnknownName
		if defined {
			name = defs.resolved()
		}
		if _, scope := scopes[key]; scope {
			var parent event.Address
			if len(addr) > 1 {
				parent = addr.Parent()
			}
			g.Subgraphs = append(g.Subgraphs, Subgraph{Addr: addr, Parent: parent, Name: name, Defined: defined})
			if !defined {
				g.Placeholders++
			}
			continue
		}
		g.Nodes = append(g.Nodes, Node{Addr: addr, Name: name, Defined: defined})
		if !defined {
			g.Placeholders++
		}
	}
	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].Addr.Compare(g.Nodes[j].Addr) < 0 })
	sort.Slice(g.Subgraphs, func(i, j int) bool { return g.Subgraphs[i].Addr.Compare(g.Subgraphs[j].Addr) < 0 })

	g.Edges = b.buildEdges(classifier, g)
	g.Conflicts = b.sortedConflicts()
	g.Workers = b.workerCounts(scopes)
	return g
}

func (b *Builder) buildEdges(classifier Classifier, g *Graph) []Edge {
	edges := make(map[edgeKey]*Edge)
	workers := make(map[edgeKey]map[uint32]struct{})
	byChannel := make(map[channelKey]*Edge, len(b.channels))
	for ck, def := range b.channels {
		key := edgeKey{src: def.src.Addr.Key(), dst: def.dst.Addr.Key(), srcPort: def.src.Port, dstPort: def.dst.Port}
		e := edges[key]
		if e == nil {
			e = &Edge{
				Source:  def.src,
				Dest:    def.dst,
				Channel: ck.id,
				Kind:    classifier.Classify(def.src.Addr, def.dst.Addr),
			}
			edges[key] = e
			workers[key] = make(map[uint32]struct{})
		}
		if ck.id < e.Channel {
			e.Channel = ck.id
		}
		workers[key][ck.worker] = struct{}{}
		e.Workers = len(workers[key])
		byChannel[ck] = e
	}

	for ck, mc := range b.messages {
		e, ok := byChannel[ck]
		if !ok {
			g.OrphanMessages += int(mc.sent + mc.received)
			continue
		}
		e.MessagesSent += mc.sent
		e.MessagesReceived += mc.received
		e.RecordsSent += mc.records
	}

	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return edgeLess(out[i], out[j]) })
	return out
}

func edgeLess(a, b Edge) bool {
	if c := a.Source.Addr.Compare(b.Source.Addr); c != 0 {
		return c < 0
	}
	if c := a.Dest.Addr.Compare(b.Dest.Addr); c != 0 {
		return c < 0
	}
	if a.Source.Port != b.Source.Port {
		return a.Source.Port < b.Source.Port
	}
	return a.Dest.Port < b.Dest.Port
}

func (b *Builder) sortedConflicts() []Conflict {
	out := append([]Conflict(nil), b.conflicts...)
	for key, defs := range b.names {
		if len(defs.seen) < 2 {
			continue
		}
		values := make([]string, 0, len(defs.seen))
		for name := range defs.seen {
			values = append(values, name)
		}
		sort.Strings(values)
		out = append(out, Conflict{
			Kind:   "operator",
			Addr:   key.Address(),
			Values: values,
			Kept:   defs.resolved(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, c := out[i], out[j]
		if a.Kind != c.Kind {
			return a.Kind < c.Kind
		}
		if cmp := a.Addr.Compare(c.Addr); cmp != 0 {
			return cmp < 0
		}
		if a.Channel != c.Channel {
			return a.Channel < c.Channel
		}
		if a.Worker != c.Worker {
			return a.Worker < c.Worker
		}
		return a.Kept < c.Kept
	})
	return out
}

func (b *Builder) workerCounts(scopes map[event.Key]struct{}) map[uint32]WorkerCounts {
	out := make(map[uint32]WorkerCounts)
	for worker, keys := range b.defined {
		var wc WorkerCounts
		for key := range keys {
			addr := key.Address()
			if _, scope := scopes[key]; scope {
				wc.Subgraphs++
				if addr.IsTopLevel() {
					wc.Dataflows++
					wc.DataflowAddrs = append(wc.DataflowAddrs, addr)
				}
			} else {
				wc.Operators++
			}
		}
		sort.Slice(wc.DataflowAddrs, func(i, j int) bool { return wc.DataflowAddrs[i].Compare(wc.DataflowAddrs[j]) < 0 })
		out[worker] = wc
	}
	for ck := range b.channels {
		wc := out[ck.worker]
		wc.Channels++
		out[ck.worker] = wc
	}
	return out
}
