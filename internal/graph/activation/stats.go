package activation

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Stats aggregates matched activations of one operator. The average is
// always derived from Total and Count.
type Stats struct {
	Count uint64
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
}

// Add records a single activation.
func (s *Stats) Add(d time.Duration) {
	if s.Count == 0 || d < s.Min {
		s.Min = d
	}
	if s.Count == 0 || d > s.Max {
		s.Max = d
	}
	s.Count++
	s.Total += d
}

// Merge folds o into s: counts and totals add, extremes combine.
func (s *Stats) Merge(o Stats) {
	if o.Count == 0 {
		return
	}
	if s.Count == 0 {
		*s = o
		return
	}
	if o.Min < s.Min {
		s.Min = o.Min
	}
	if o.Max > s.Max {
		s.Max = o.Max
	}
	s.Count += o.Count
	s.Total += o.Total
}

// Average returns Total/Count in nanoseconds. ok is false when there were no
// activations.
func (s Stats) Average() (avg float64, ok bool) {
	if s.Count == 0 {
		return 0, false
	}
	return float64(s.Total) / float64(s.Count), true
}

// Spread describes the distribution of activation durations, in nanoseconds.
type Spread struct {
	StdDev float64
	Median float64
	P95    float64
}

// spreadOf sorts durations in place.
func spreadOf(durations []float64) Spread {
	if len(durations) == 0 {
		return Spread{}
	}
	sort.Float64s(durations)
	sp := Spread{
		Median: stat.Quantile(0.5, stat.Empirical, durations, nil),
		P95:    stat.Quantile(0.95, stat.Empirical, durations, nil),
	}
	if len(durations) > 1 {
		sp.StdDev = stat.StdDev(durations, nil)
	}
	return sp
}
