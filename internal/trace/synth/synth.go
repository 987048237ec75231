// Package synth generates synthetic multi-worker traces, for load testing
// and for exercising the decoder against damaged input.
package synth

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/GriffinCanCode/flowtrace/internal/trace/event"
	"github.com/GriffinCanCode/flowtrace/internal/trace/wire"
)

// Config shapes the generated program.
type Config struct {
	Workers     int
	Dataflows   int
	Operators   int // operators per dataflow; every third one is a region
	Activations int // scheduling rounds per worker
	Seed        int64

	// MeanDuration is the average activation length of a leaf operator.
	MeanDuration time.Duration
}

// DefaultConfig returns a small but complete program.
func DefaultConfig() Config {
	return Config{
		Workers:      4,
		Dataflows:    2,
		Operators:    6,
		Activations:  100,
		Seed:         1,
		MeanDuration: 50 * time.Microsecond,
	}
}

type plan struct {
	names    map[event.Key]string
	order    []event.Address // definition order
	channels []channel
	leaves   [][]event.Address // per dataflow, in scheduling order
	regions  map[event.Key][]event.Address
}

type channel struct {
	id       uint64
	src, dst event.Endpoint
}

func layout(cfg Config) *plan {
	p := &plan{names: make(map[event.Key]string), regions: make(map[event.Key][]event.Address)}
	define := func(addr event.Address, name string) {
		p.names[addr.Key()] = name
		p.order = append(p.order, addr)
	}
	var nextChannel uint64
	connect := func(src, dst event.Address) {
		p.channels = append(p.channels, channel{
			id:  nextChannel,
			src: event.Endpoint{Addr: src},
			dst: event.Endpoint{Addr: dst},
		})
		nextChannel++
	}

	for d := 1; d <= cfg.Dataflows; d++ {
		root := event.Address{uint32(d)}
		define(root, fmt.Sprintf("Dataflow %d", d))

		var leaves []event.Address
		var prev event.Address
		for i := 1; i <= cfg.Operators; i++ {
			addr := event.Address{uint32(d), uint32(i)}
			if i%3 == 0 {
				define(addr, fmt.Sprintf("Region %d", i))
				inner := []event.Address{
					{uint32(d), uint32(i), 1},
					{uint32(d), uint32(i), 2},
				}
				define(inner[0], "Filter")
				define(inner[1], "Map")
				connect(addr, inner[0])
				connect(inner[0], inner[1])
				p.regions[addr.Key()] = inner
			} else {
				define(addr, operatorName(i))
			}
			leaves = append(leaves, addr)
			if prev != nil {
				connect(prev, addr)
			}
			prev = addr
		}
		p.leaves = append(p.leaves, leaves)
	}
	return p
}

func operatorName(i int) string {
	names := []string{"Input", "Map", "Filter", "Exchange", "Reduce", "Join", "Concat", "Probe"}
	return names[i%len(names)]
}

// Generate returns each worker's events in timestamp order. Workers share
// the same topology and differ in timing only.
func Generate(cfg Config) map[uint32][]event.Event {
	p := layout(cfg)
	out := make(map[uint32][]event.Event, cfg.Workers)
	for w := 0; w < cfg.Workers; w++ {
		out[uint32(w)] = generateWorker(cfg, p, uint32(w))
	}
	return out
}

func generateWorker(cfg Config, p *plan, worker uint32) []event.Event {
	rng := rand.New(rand.NewSource(cfg.Seed + int64(worker)*7919))
	mean := cfg.MeanDuration
	if mean <= 0 {
		mean = DefaultConfig().MeanDuration
	}
	var (
		events []event.Event
		ts     time.Duration
	)
	tick := func(d time.Duration) time.Duration {
		ts += d
		return ts
	}

	for _, addr := range p.order {
		events = append(events, event.Operator(worker, tick(time.Microsecond), addr, p.names[addr.Key()]))
	}
	for _, ch := range p.channels {
		events = append(events, event.Channel(worker, tick(time.Microsecond), ch.id, ch.src, ch.dst))
	}

	duration := func() time.Duration {
		return time.Duration(rng.ExpFloat64()*float64(mean)) + time.Nanosecond
	}
	for round := 0; round < cfg.Activations; round++ {
		for d, leaves := range p.leaves {
			root := event.Address{uint32(d + 1)}
			events = append(events, event.Start(worker, tick(time.Microsecond), root))
			for _, addr := range leaves {
				events = append(events, event.Start(worker, tick(time.Microsecond), addr))
				for _, inner := range p.regions[addr.Key()] {
					events = append(events,
						event.Start(worker, tick(time.Microsecond), inner),
						event.Stop(worker, tick(duration()), inner))
				}
				events = append(events, event.Stop(worker, tick(duration()), addr))
			}
			events = append(events, event.Stop(worker, tick(time.Microsecond), root))
		}
		for _, ch := range p.channels {
			if rng.Intn(2) == 0 {
				continue
			}
			records := uint64(rng.Intn(1000) + 1)
			events = append(events,
				event.Message(worker, tick(time.Nanosecond), ch.id, true, records),
				event.Message(worker, tick(time.Nanosecond), ch.id, false, records))
		}
	}
	return append(events, event.Shutdown(worker, tick(time.Microsecond)))
}

// Damage describes how a written stream is corrupted.
type Damage struct {
	// Garbage is the probability of inserting an unreadable record after
	// each event.
	Garbage float64
	// Truncate cuts the last record in half.
	Truncate bool
}

// Write encodes events. Damage is only applied to binary streams.
func Write(w io.Writer, events []event.Event, format wire.Format, damage Damage, seed int64) error {
	if format == wire.FormatJSON || (damage.Garbage == 0 && !damage.Truncate) {
		enc := wire.NewEncoder(w, format)
		if err := enc.EncodeAll(events); err != nil {
			return err
		}
		return enc.Flush()
	}

	rng := rand.New(rand.NewSource(seed))
	enc := wire.NewEncoder(w, wire.FormatBinary)
	last := len(events) - 1
	if damage.Truncate {
		last--
	}
	for i := 0; i <= last; i++ {
		if err := enc.Encode(events[i]); err != nil {
			return err
		}
		if damage.Garbage > 0 && rng.Float64() < damage.Garbage {
			if err := enc.WriteRaw(garbage(rng)); err != nil {
				return err
			}
		}
	}
	if damage.Truncate && len(events) > 0 {
		if err := enc.WriteRaw(halfRecord(events[len(events)-1])); err != nil {
			return err
		}
	}
	return enc.Flush()
}

// garbage returns a framed record the decoder must skip.
func garbage(rng *rand.Rand) []byte {
	switch rng.Intn(3) {
	case 0:
		// unknown kind
		return wire.AppendRecord(nil, []byte{0x08, 0x7f})
	case 1:
		// truncated varint inside the payload
		return wire.AppendRecord(nil, []byte{0x10, 0xff})
	default:
		// operator without an address
		return wire.AppendRecord(nil, []byte{0x08, 0x01, 0x2a, 0x01, 'x'})
	}
}

func halfRecord(ev event.Event) []byte {
	var buf bytes.Buffer
	enc := wire.NewEncoder(&buf, wire.FormatBinary)
	_ = enc.Encode(ev)
	_ = enc.Flush()
	return buf.Bytes()[:buf.Len()/2+1]
}
