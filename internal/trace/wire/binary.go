package wire

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/GriffinCanCode/flowtrace/internal/trace/event"
)

var (
	errWireType = errors.New("unexpected wire type")
	errRange    = errors.New("value out of range")
)

// decodePayload parses one binary record payload. The returned event does
// not alias b.
func decodePayload(b []byte) (event.Event, error) {
	var ev event.Event
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return ev, protowire.ParseError(n)
		}
		b = b[n:]

		switch num {
		case fieldKind, fieldWorker, fieldTimestamp, fieldChannel, fieldIsSend, fieldRecords:
			if typ != protowire.VarintType {
				return ev, fmt.Errorf("field %d: %w", num, errWireType)
			}
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return ev, protowire.ParseError(n)
			}
			b = b[n:]
			if err := setScalar(&ev, num, v); err != nil {
				return ev, err
			}

		case fieldAddr, fieldName, fieldSource, fieldDest:
			if typ != protowire.BytesType {
				return ev, fmt.Errorf("field %d: %w", num, errWireType)
			}
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return ev, protowire.ParseError(n)
			}
			b = b[n:]
			if err := setBytes(&ev, num, v); err != nil {
				return ev, err
			}

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return ev, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return ev, nil
}

func setScalar(ev *event.Event, num protowire.Number, v uint64) error {
	switch num {
	case fieldKind:
		if v > math.MaxUint8 {
			ev.Kind = event.KindUnknown
			return nil
		}
		ev.Kind = event.Kind(v)
	case fieldWorker:
		if v > math.MaxUint32 {
			return fmt.Errorf("worker %d: %w", v, errRange)
		}
		ev.Worker = uint32(v)
	case fieldTimestamp:
		if v > math.MaxInt64 {
			return fmt.Errorf("timestamp %d: %w", v, errRange)
		}
		ev.Timestamp = time.Duration(v)
	case fieldChannel:
		ev.Channel = v
	case fieldIsSend:
		ev.IsSend = v != 0
	case fieldRecords:
		ev.Records = v
	}
	return nil
}

func setBytes(ev *event.Event, num protowire.Number, v []byte) error {
	var err error
	switch num {
	case fieldAddr:
		ev.Addr, err = decodeAddress(v)
	case fieldName:
		ev.Name = string(v)
	case fieldSource:
		ev.Source, err = decodeEndpoint(v)
	case fieldDest:
		ev.Dest, err = decodeEndpoint(v)
	}
	return err
}

func decodeAddress(b []byte) (event.Address, error) {
	addr := make(event.Address, 0, len(b))
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		if v > math.MaxUint32 {
			return nil, fmt.Errorf("address element %d: %w", v, errRange)
		}
		addr = append(addr, uint32(v))
		b = b[n:]
	}
	return addr, nil
}

func decodeEndpoint(b []byte) (event.Endpoint, error) {
	var ep event.Endpoint
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return ep, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == endpointAddr && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return ep, protowire.ParseError(n)
			}
			addr, err := decodeAddress(v)
			if err != nil {
				return ep, err
			}
			ep.Addr = addr
			b = b[n:]
		case num == endpointPort && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return ep, protowire.ParseError(n)
			}
			if v > math.MaxUint32 {
				return ep, fmt.Errorf("port %d: %w", v, errRange)
			}
			ep.Port = uint32(v)
			b = b[n:]
		case num == endpointAddr || num == endpointPort:
			return ep, fmt.Errorf("endpoint field %d: %w", num, errWireType)
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return ep, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return ep, nil
}

// appendPayload encodes ev in binary form. Zero-valued scalars are omitted.
func appendPayload(b []byte, ev event.Event) []byte {
	b = appendVarintField(b, fieldKind, uint64(ev.Kind))
	b = appendVarintField(b, fieldWorker, uint64(ev.Worker))
	b = appendVarintField(b, fieldTimestamp, uint64(ev.Timestamp))
	if len(ev.Addr) > 0 {
		b = protowire.AppendTag(b, fieldAddr, protowire.BytesType)
		b = appendPackedAddress(b, ev.Addr)
	}
	if ev.Name != "" {
		b = protowire.AppendTag(b, fieldName, protowire.BytesType)
		b = protowire.AppendString(b, ev.Name)
	}
	b = appendVarintField(b, fieldChannel, ev.Channel)
	if ev.Kind == event.KindChannel {
		b = appendEndpoint(b, fieldSource, ev.Source)
		b = appendEndpoint(b, fieldDest, ev.Dest)
	}
	if ev.IsSend {
		b = appendVarintField(b, fieldIsSend, 1)
	}
	b = appendVarintField(b, fieldRecords, ev.Records)
	return b
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendPackedAddress(b []byte, addr event.Address) []byte {
	size := 0
	for _, v := range addr {
		size += protowire.SizeVarint(uint64(v))
	}
	b = protowire.AppendVarint(b, uint64(size))
	for _, v := range addr {
		b = protowire.AppendVarint(b, uint64(v))
	}
	return b
}

func appendEndpoint(b []byte, num protowire.Number, ep event.Endpoint) []byte {
	var inner []byte
	if len(ep.Addr) > 0 {
		inner = protowire.AppendTag(inner, endpointAddr, protowire.BytesType)
		inner = appendPackedAddress(inner, ep.Addr)
	}
	inner = appendVarintField(inner, endpointPort, uint64(ep.Port))
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner)
}
