package wire

import (
	"time"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/flowtrace/internal/trace/event"
)

type jsonEndpoint struct {
	Addr []uint32 `json:"addr"`
	Port uint32   `json:"port"`
}

type jsonRecord struct {
	Kind      string        `json:"kind"`
	Worker    uint32        `json:"worker"`
	Timestamp int64         `json:"ts,omitempty"`
	Addr      []uint32      `json:"addr,omitempty"`
	Name      string        `json:"name,omitempty"`
	Channel   uint64        `json:"channel,omitempty"`
	Src       *jsonEndpoint `json:"src,omitempty"`
	Dst       *jsonEndpoint `json:"dst,omitempty"`
	Send      bool          `json:"send,omitempty"`
	Records   uint64        `json:"records,omitempty"`
}

// jsonAPI copies strings out of the input; decoder line buffers are reused.
var jsonAPI = sonic.ConfigStd

func decodeJSON(line []byte) (event.Event, error) {
	var rec jsonRecord
	if err := jsonAPI.Unmarshal(line, &rec); err != nil {
		return event.Event{}, err
	}
	ev := event.Event{
		Kind:      event.ParseKind(rec.Kind),
		Worker:    rec.Worker,
		Timestamp: time.Duration(rec.Timestamp),
		Name:      rec.Name,
		Channel:   rec.Channel,
		IsSend:    rec.Send,
		Records:   rec.Records,
	}
	if len(rec.Addr) > 0 {
		ev.Addr = event.Address(rec.Addr)
	}
	if rec.Src != nil {
		ev.Source = event.Endpoint{Addr: event.Address(rec.Src.Addr), Port: rec.Src.Port}
	}
	if rec.Dst != nil {
		ev.Dest = event.Endpoint{Addr: event.Address(rec.Dst.Addr), Port: rec.Dst.Port}
	}
	return ev, nil
}

func encodeJSON(ev event.Event) ([]byte, error) {
	rec := jsonRecord{
		Kind:      ev.Kind.String(),
		Worker:    ev.Worker,
		Timestamp: int64(ev.Timestamp),
		Addr:      ev.Addr,
		Name:      ev.Name,
		Channel:   ev.Channel,
		Send:      ev.IsSend,
		Records:   ev.Records,
	}
	if ev.Kind == event.KindChannel {
		rec.Src = &jsonEndpoint{Addr: ev.Source.Addr, Port: ev.Source.Port}
		rec.Dst = &jsonEndpoint{Addr: ev.Dest.Addr, Port: ev.Dest.Port}
	}
	return jsonAPI.Marshal(&rec)
}
