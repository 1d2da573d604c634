package biometric

import (
	"sort"
	"time"
)

// Kind names a biometric signal exposed by the local health-data provider.
type Kind string

const (
	HeartRate Kind = "heart_rate"
	HRV       Kind = "hrv"
	Steps     Kind = "steps"
)

// Kinds lists every kind the forwarder reads, primary first.
func Kinds() []Kind {
	return []Kind{HeartRate, HRV, Steps}
}

// Primary reports whether a failed read of k aborts the whole fetch.
func (k Kind) Primary() bool {
	return k == HeartRate
}

// Sample is one timestamped reading.
type Sample struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Window holds the samples of one kind read over [Start, End).
type Window struct {
	Kind    Kind      `json:"kind"`
	Start   time.Time `json:"windowStart"`
	End     time.Time `json:"windowEnd"`
	Samples []Sample  `json:"samples"`
}

// NewWindow copies samples into a window and orders them chronologically.
func NewWindow(kind Kind, start, end time.Time, samples []Sample) Window {
	sorted := append([]Sample(nil), samples...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})
	return Window{Kind: kind, Start: start, End: end, Samples: sorted}
}

// Aggregate summarizes the window. Min, Max and Mean are nil when the window is empty.
type Aggregate struct {
	Count int      `json:"count"`
	Sum   float64  `json:"sum"`
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
	Mean  *float64 `json:"mean,omitempty"`
}

// Aggregate computes count, sum, min, max and mean over the window samples.
func (w Window) Aggregate() Aggregate {
	agg := Aggregate{Count: len(w.Samples)}
	if agg.Count == 0 {
		return agg
	}

	minV, maxV := w.Samples[0].Value, w.Samples[0].Value
	for _, s := range w.Samples {
		agg.Sum += s.Value
		if s.Value < minV {
			minV = s.Value
		}
		if s.Value > maxV {
			maxV = s.Value
		}
	}
	mean := agg.Sum / float64(agg.Count)

	agg.Min = &minV
	agg.Max = &maxV
	agg.Mean = &mean
	return agg
}

// Latest returns up to n samples, newest first.
func (w Window) Latest(n int) []Sample {
	if n <= 0 || len(w.Samples) == 0 {
		return nil
	}
	if n > len(w.Samples) {
		n = len(w.Samples)
	}
	out := make([]Sample, 0, n)
	for i := len(w.Samples) - 1; i >= len(w.Samples)-n; i-- {
		out = append(out, w.Samples[i])
	}
	return out
}
