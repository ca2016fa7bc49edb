package natsadapter

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/samirrijal/geowire/internal/core/domain"
)

// Field numbers of the FeatureEvent wire envelope. The layout is protobuf
// compatible so consumers in other languages can decode it with a
// one-message schema.
const (
	fieldKind       protowire.Number = 1
	fieldFeatureID  protowire.Number = 2
	fieldLayer      protowire.Number = 3
	fieldGeometry   protowire.Number = 4
	fieldOccurredAt protowire.Number = 5 // unix nanoseconds
)

// EncodeEvent serializes ev into the wire envelope.
func EncodeEvent(ev *domain.FeatureEvent) []byte {
	b := make([]byte, 0, 32+len(ev.FeatureID)+len(ev.Layer)+len(ev.Geometry))
	b = appendString(b, fieldKind, string(ev.Kind))
	b = appendString(b, fieldFeatureID, ev.FeatureID)
	b = appendString(b, fieldLayer, ev.Layer)
	if len(ev.Geometry) > 0 {
		b = protowire.AppendTag(b, fieldGeometry, protowire.BytesType)
		b = protowire.AppendBytes(b, ev.Geometry)
	}
	if !ev.OccurredAt.IsZero() {
		b = protowire.AppendTag(b, fieldOccurredAt, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(ev.OccurredAt.UnixNano()))
	}
	return b
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// DecodeEvent parses a wire envelope. Unknown fields are skipped.
func DecodeEvent(b []byte) (*domain.FeatureEvent, error) {
	ev := &domain.FeatureEvent{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("decode event tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case typ == protowire.BytesType && num >= fieldKind && num <= fieldGeometry:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("decode event field %d: %w", num, protowire.ParseError(n))
			}
			switch num {
			case fieldKind:
				ev.Kind = domain.EventKind(v)
			case fieldFeatureID:
				ev.FeatureID = string(v)
			case fieldLayer:
				ev.Layer = string(v)
			case fieldGeometry:
				ev.Geometry = append([]byte(nil), v...)
			}
			b = b[n:]
		case typ == protowire.VarintType && num == fieldOccurredAt:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("decode event field %d: %w", num, protowire.ParseError(n))
			}
			ev.OccurredAt = time.Unix(0, int64(v)).UTC()
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("skip event field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if ev.FeatureID == "" {
		return nil, fmt.Errorf("decode event: %w: missing feature id", domain.ErrInvalidInput)
	}
	return ev, nil
}

// LayerSubject returns the wildcard subject matching every event of layer,
// or of all layers when layer is empty.
func LayerSubject(layer string) string {
	if layer == "" {
		return subjectPrefix + ">"
	}
	return subjectPrefix + layer + ".*"
}

// Subject returns the subject an event for layer and kind is published on.
func Subject(layer string, kind domain.EventKind) string {
	return subjectPrefix + layer + "." + string(kind)
}
