package export

import (
	"github.com/GriffinCanCode/flowtrace/internal/graph/activation"
	"github.com/GriffinCanCode/flowtrace/internal/graph/palette"
	"github.com/GriffinCanCode/flowtrace/internal/graph/topology"
	"github.com/GriffinCanCode/flowtrace/internal/trace/event"
)

// Options controls optional parts of the model.
type Options struct {
	// IncludeActivations adds per-node activation durations and the
	// timeline. Requires activations to have been kept by the aggregator.
	IncludeActivations bool
}

// entity is a node or subgraph in global address order.
type entity struct {
	addr  event.Address
	name  string
	scope bool
	sub   topology.Subgraph
}

// Assemble builds the model. Colors are assigned from the average
// activation time of every node and subgraph, where entities that never ran
// count as zero.
func Assemble(g *topology.Graph, act *activation.Result, p *palette.Palette, opts Options) *Model {
	entities := mergeByAddress(g)

	averages := make([]float64, len(entities))
	for i, e := range entities {
		averages[i], _ = act.Lookup(e.addr).Average()
	}
	colors := p.Map(averages)

	var durations map[event.Key][]ActivationDuration
	if opts.IncludeActivations {
		durations = make(map[event.Key][]ActivationDuration)
		for _, a := range act.Activations {
			k := a.Addr.Key()
			durations[k] = append(durations[k], ActivationDuration{
				ActivationTime: int64(a.Duration),
				ActivatedAt:    int64(a.StartedAt),
			})
		}
	}

	m := &Model{
		Nodes:         make([]Node, 0, len(g.Nodes)),
		Subgraphs:     make([]Subgraph, 0, len(g.Subgraphs)),
		Edges:         make([]Edge, 0, len(g.Edges)),
		PaletteColors: p.Colors(),
	}
	for i, e := range entities {
		sp, spread := act.Spread[e.addr.Key()]
		timing := timingOf(act.Lookup(e.addr), sp, spread)
		if e.scope {
			m.Subgraphs = append(m.Subgraphs, Subgraph{
				ID:        i,
				Address:   e.addr,
				Name:      e.name,
				Parent:    e.sub.Parent,
				FillColor: colors[i].Fill,
				TextColor: colors[i].Text,
				Timing:    timing,
			})
			continue
		}
		m.Nodes = append(m.Nodes, Node{
			ID:                  i,
			Address:             e.addr,
			Name:                e.name,
			FillColor:           colors[i].Fill,
			TextColor:           colors[i].Text,
			Timing:              timing,
			ActivationDurations: durations[e.addr.Key()],
		})
	}

	for _, edge := range g.Edges {
		m.Edges = append(m.Edges, Edge{
			Src:              edge.Source.Addr,
			Dest:             edge.Dest.Addr,
			SrcPort:          edge.Source.Port,
			DestPort:         edge.Dest.Port,
			ChannelID:        edge.Channel,
			EdgeKind:         edge.Kind,
			Workers:          edge.Workers,
			MessagesSent:     edge.MessagesSent,
			MessagesReceived: edge.MessagesReceived,
			RecordsSent:      edge.RecordsSent,
		})
	}

	if opts.IncludeActivations {
		names := make(map[event.Key]string, len(entities))
		for _, e := range entities {
			names[e.addr.Key()] = e.name
		}
		for _, a := range act.Activations {
			m.TimelineEvents = append(m.TimelineEvents, TimelineEvent{
				Worker:    a.Worker,
				Address:   a.Addr,
				Name:      names[a.Addr.Key()],
				StartedAt: int64(a.StartedAt),
				Duration:  int64(a.Duration),
			})
		}
	}
	return m
}

// mergeByAddress interleaves the sorted node and subgraph lists.
func mergeByAddress(g *topology.Graph) []entity {
	out := make([]entity, 0, len(g.Nodes)+len(g.Subgraphs))
	i, j := 0, 0
	for i < len(g.Nodes) || j < len(g.Subgraphs) {
		if j == len(g.Subgraphs) || (i < len(g.Nodes) && g.Nodes[i].Addr.Compare(g.Subgraphs[j].Addr) < 0) {
			n := g.Nodes[i]
			out = append(out, entity{addr: n.Addr, name: n.Name})
			i++
			continue
		}
		s := g.Subgraphs[j]
		out = append(out, entity{addr: s.Addr, name: s.Name, scope: true, sub: s})
		j++
	}
	return out
}

// timingOf leaves the deviation undefined unless a spread was computed.
func timingOf(s activation.Stats, sp activation.Spread, spread bool) Timing {
	t := Timing{
		TotalActivationTime: int64(s.Total),
		Invocations:         s.Count,
	}
	avg, ok := s.Average()
	if !ok {
		return t
	}
	lo, hi := int64(s.Min), int64(s.Max)
	t.AverageActivationTime = &avg
	t.MinActivationTime = &lo
	t.MaxActivationTime = &hi
	if spread {
		std := sp.StdDev
		t.StdDevActivationTime = &std
	}
	return t
}
