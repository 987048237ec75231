// Package export assembles the topology, activation statistics and palette
// into the graph model handed to renderers.
package export

import (
	"github.com/GriffinCanCode/flowtrace/internal/graph/topology"
	"github.com/GriffinCanCode/flowtrace/internal/trace/event"
)

// Model is the rendering contract. Every collection is ordered by address
// so that the encoded bytes do not depend on event arrival order.
type Model struct {
	Nodes          []Node          `json:"nodes"`
	Subgraphs      []Subgraph      `json:"subgraphs"`
	Edges          []Edge          `json:"edges"`
	PaletteColors  []string        `json:"palette_colors"`
	TimelineEvents []TimelineEvent `json:"timeline_events,omitempty"`
}

// Timing holds activation statistics in nanoseconds. Pointer fields are nil
// (encoded as null) for entities that were never activated.
type Timing struct {
	TotalActivationTime   int64    `json:"total_activation_time"`
	Invocations           uint64   `json:"invocations"`
	AverageActivationTime *float64 `json:"average_activation_time"`
	MaxActivationTime     *int64   `json:"max_activation_time"`
	MinActivationTime     *int64   `json:"min_activation_time"`
	StdDevActivationTime  *float64 `json:"stddev_activation_time"`
}

// Node is one operator.
type Node struct {
	ID        int           `json:"id"`
	Address   event.Address `json:"address"`
	Name      string        `json:"name"`
	FillColor string        `json:"fill_color"`
	TextColor string        `json:"text_color"`
	Timing
	ActivationDurations []ActivationDuration `json:"activation_durations,omitempty"`
}

// Subgraph is one scope. Parent is null for top-level scopes.
type Subgraph struct {
	ID        int           `json:"id"`
	Address   event.Address `json:"address"`
	Name      string        `json:"name"`
	Parent    event.Address `json:"parent"`
	FillColor string        `json:"fill_color"`
	TextColor string        `json:"text_color"`
	Timing
}

// ActivationDuration is one activation of a node.
type ActivationDuration struct {
	ActivationTime int64 `json:"activation_time"`
	ActivatedAt    int64 `json:"activated_at"`
}

// Edge is one logical channel between two ports.
type Edge struct {
	Src              event.Address     `json:"src"`
	Dest             event.Address     `json:"dest"`
	SrcPort          uint32            `json:"src_port"`
	DestPort         uint32            `json:"dest_port"`
	ChannelID        uint64            `json:"channel_id"`
	EdgeKind         topology.EdgeKind `json:"edge_kind"`
	Workers          int               `json:"workers"`
	MessagesSent     uint64            `json:"messages_sent"`
	MessagesReceived uint64            `json:"messages_received"`
	RecordsSent      uint64            `json:"records_sent"`
}

// TimelineEvent is one activation placed on its worker's timeline.
type TimelineEvent struct {
	Worker    uint32        `json:"worker"`
	Address   event.Address `json:"address"`
	Name      string        `json:"name"`
	StartedAt int64         `json:"started_at"`
	Duration  int64         `json:"duration"`
}
