// Package palette maps average activation times onto an ordered color scale.
package palette

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	// DefaultGradient is used when no gradient is configured.
	DefaultGradient = "inferno"
	// DefaultSize is the number of colors sampled from a gradient.
	DefaultSize = 10

	darkText  = "#000000"
	lightText = "#ffffff"

	// fills lighter than this get dark text
	lightnessThreshold = 0.6
)

var (
	ErrUnknownGradient = errors.New("unknown gradient")
	ErrInvalidSize     = errors.New("palette size must be positive")
)

// Gradients lists the accepted gradient names in sorted order.
func Gradients() []string {
	names := make([]string, 0, len(gradients))
	for name := range gradients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Palette is a fixed, ordered sequence of fill colors together with a
// readable text color for each.
type Palette struct {
	name  string
	fills []string
	texts []string
}

// New samples size colors from the named gradient. An empty name selects
// DefaultGradient.
func New(gradient string, size int) (*Palette, error) {
	if gradient == "" {
		gradient = DefaultGradient
	}
	stops, ok := gradients[gradient]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGradient, gradient)
	}
	if size < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	colors := make([]colorful.Color, len(stops))
	for i, hex := range stops {
		c, err := colorful.Hex(hex)
		if err != nil {
			return nil, fmt.Errorf("gradient %s: stop %d: %w", gradient, i, err)
		}
		colors[i] = c
	}

	p := &Palette{
		name:  gradient,
		fills: make([]string, size),
		texts: make([]string, size),
	}
	for i := 0; i < size; i++ {
		t := 0.0
		if size > 1 {
			t = float64(i) / float64(size-1)
		}
		c := sample(colors, t)
		p.fills[i] = c.Hex()
		p.texts[i] = textFor(c)
	}
	return p, nil
}

// sample interpolates in Lab space between the two stops surrounding t.
func sample(stops []colorful.Color, t float64) colorful.Color {
	if len(stops) == 1 {
		return stops[0]
	}
	pos := t * float64(len(stops)-1)
	i := int(math.Floor(pos))
	if i >= len(stops)-1 {
		return stops[len(stops)-1]
	}
	frac := pos - float64(i)
	if frac == 0 {
		return stops[i]
	}
	return stops[i].BlendLab(stops[i+1], frac).Clamped()
}

func textFor(c colorful.Color) string {
	l, _, _ := c.Lab()
	if l > lightnessThreshold {
		return darkText
	}
	return lightText
}

// Name returns the gradient the palette was sampled from.
func (p *Palette) Name() string { return p.name }

// Size returns the number of colors.
func (p *Palette) Size() int { return len(p.fills) }

// Colors returns a copy of the fill colors as CSS hex strings.
func (p *Palette) Colors() []string {
	return append([]string(nil), p.fills...)
}

// Index maps v onto the palette given the range [lo, hi]. Values outside
// the range are clamped, and a degenerate range maps to the midpoint.
func (p *Palette) Index(v, lo, hi float64) int {
	return int(math.Floor(Normalize(v, lo, hi) * float64(len(p.fills)-1)))
}

// Color returns the fill and text color for v within [lo, hi].
func (p *Palette) Color(v, lo, hi float64) (fill, text string) {
	i := p.Index(v, lo, hi)
	return p.fills[i], p.texts[i]
}

// Normalize returns (v-lo)/(hi-lo) clamped to [0, 1], or 0.5 when hi == lo.
// NaN inputs also normalize to 0.5.
func Normalize(v, lo, hi float64) float64 {
	if hi == lo || math.IsNaN(v) || math.IsNaN(lo) || math.IsNaN(hi) {
		return 0.5
	}
	n := (v - lo) / (hi - lo)
	switch {
	case n < 0:
		return 0
	case n > 1:
		return 1
	}
	return n
}

// Mapping holds the fill and text color assigned to one value.
type Mapping struct {
	Index int
	Fill  string
	Text  string
}

// Map assigns colors to every value relative to the global min and max of
// values.
func (p *Palette) Map(values []float64) []Mapping {
	if len(values) == 0 {
		return nil
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	out := make([]Mapping, len(values))
	for i, v := range values {
		idx := p.Index(v, lo, hi)
		out[i] = Mapping{Index: idx, Fill: p.fills[idx], Text: p.texts[idx]}
	}
	return out
}
