package event

import (
	"errors"
	"fmt"
	"time"
)

// Kind discriminates the event variants.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindOperator
	KindChannel
	KindScheduleStart
	KindScheduleStop
	KindMessage
	KindShutdown
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindOperator:
		return "operator"
	case KindChannel:
		return "channel"
	case KindScheduleStart:
		return "start"
	case KindScheduleStop:
		return "stop"
	case KindMessage:
		return "message"
	case KindShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// ParseKind maps the textual kind used by the JSON encoding back to a Kind.
func ParseKind(s string) Kind {
	switch s {
	case "operator":
		return KindOperator
	case "channel":
		return KindChannel
	case "start":
		return KindScheduleStart
	case "stop":
		return KindScheduleStop
	case "message":
		return KindMessage
	case "shutdown":
		return KindShutdown
	default:
		return KindUnknown
	}
}

// Kinds lists every known kind in tag order.
var Kinds = []Kind{KindOperator, KindChannel, KindScheduleStart, KindScheduleStop, KindMessage, KindShutdown}

// Endpoint is one side of a channel.
type Endpoint struct {
	Addr Address
	Port uint32
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Addr, e.Port)
}

// Event is a single decoded trace record.
type Event struct {
	Kind      Kind
	Worker    uint32
	Timestamp time.Duration // offset from the trace epoch

	Addr Address
	Name string

	Channel uint64
	Source  Endpoint
	Dest    Endpoint

	IsSend  bool
	Records uint64
}

// Operator builds an operator definition event.
func Operator(worker uint32, ts time.Duration, addr Address, name string) Event {
	return Event{Kind: KindOperator, Worker: worker, Timestamp: ts, Addr: addr, Name: name}
}

// Channel builds a channel definition event.
func Channel(worker uint32, ts time.Duration, id uint64, src, dst Endpoint) Event {
	return Event{Kind: KindChannel, Worker: worker, Timestamp: ts, Channel: id, Source: src, Dest: dst}
}

// Start builds a schedule start event.
func Start(worker uint32, ts time.Duration, addr Address) Event {
	return Event{Kind: KindScheduleStart, Worker: worker, Timestamp: ts, Addr: addr}
}

// Stop builds a schedule stop event.
func Stop(worker uint32, ts time.Duration, addr Address) Event {
	return Event{Kind: KindScheduleStop, Worker: worker, Timestamp: ts, Addr: addr}
}

// Message builds a message send or receive event.
func Message(worker uint32, ts time.Duration, channel uint64, send bool, records uint64) Event {
	return Event{Kind: KindMessage, Worker: worker, Timestamp: ts, Channel: channel, IsSend: send, Records: records}
}

// Shutdown builds a worker shutdown event.
func Shutdown(worker uint32, ts time.Duration) Event {
	return Event{Kind: KindShutdown, Worker: worker, Timestamp: ts}
}

var (
	ErrUnknownKind  = errors.New("unknown event kind")
	ErrEmptyAddress = errors.New("empty address")
	ErrNegativeTime = errors.New("negative timestamp")
)

// Validate performs the structural checks every decoded event must pass.
func (e Event) Validate() error {
	if e.Timestamp < 0 {
		return ErrNegativeTime
	}
	switch e.Kind {
	case KindOperator, KindScheduleStart, KindScheduleStop:
		if len(e.Addr) == 0 {
			return fmt.Errorf("%s event: %w", e.Kind, ErrEmptyAddress)
		}
	case KindChannel:
		if len(e.Source.Addr) == 0 || len(e.Dest.Addr) == 0 {
			return fmt.Errorf("channel %d: %w", e.Channel, ErrEmptyAddress)
		}
	case KindMessage, KindShutdown:
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, e.Kind)
	}
	return nil
}
