package topology

import (
	"errors"
	"fmt"
	"strings"

	"github.com/GriffinCanCode/flowtrace/internal/trace/event"
)

// EdgeKind classifies a channel relative to the scope hierarchy.
type EdgeKind int

const (
	Normal EdgeKind = iota
	Crossing
)

// String returns the string representation of the edge kind
func (k EdgeKind) String() string {
	if k == Crossing {
		return "Crossing"
	}
	return "Normal"
}

// MarshalText implements encoding.TextMarshaler.
func (k EdgeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EdgeKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Normal":
		*k = Normal
	case "Crossing":
		*k = Crossing
	default:
		return fmt.Errorf("unknown edge kind %q", text)
	}
	return nil
}

// Classifier decides whether an edge crosses a scope boundary.
type Classifier interface {
	Classify(src, dst event.Address) EdgeKind
}

// ParentRule marks an edge Crossing iff its endpoints have different parent
// scopes.
type ParentRule struct{}

func (ParentRule) Classify(src, dst event.Address) EdgeKind {
	if src.Parent().Equal(dst.Parent()) {
		return Normal
	}
	return Crossing
}

// ContainmentRule is ParentRule, except that an edge between a scope and a
// node nested anywhere inside it is Normal. Those edges are how data enters
// and leaves a scope.
type ContainmentRule struct{}

func (ContainmentRule) Classify(src, dst event.Address) EdgeKind {
	if src.IsStrictPrefixOf(dst) || dst.IsStrictPrefixOf(src) {
		return Normal
	}
	return ParentRule{}.Classify(src, dst)
}

// Rule names accepted by ClassifierFor.
const (
	RuleParent      = "parent"
	RuleContainment = "containment"
)

var ErrUnknownRule = errors.New("unknown edge rule")

// ClassifierFor returns the classifier registered under name.
func ClassifierFor(name string) (Classifier, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", RuleContainment:
		return ContainmentRule{}, nil
	case RuleParent:
		return ParentRule{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRule, name)
	}
}
