package biometric

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestAggregateEmptyWindowHasNoMean(t *testing.T) {
	w := NewWindow(HeartRate, time.Now().Add(-time.Hour), time.Now(), nil)
	agg := w.Aggregate()

	if agg.Count != 0 {
		t.Fatalf("expected count 0, got %d", agg.Count)
	}
	if agg.Mean != nil || agg.Min != nil || agg.Max != nil {
		t.Fatalf("expected absent statistics, got %+v", agg)
	}
}

func TestAggregateStatistics(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	w := NewWindow(HeartRate, base, base.Add(time.Hour), []Sample{
		{Time: base.Add(20 * time.Minute), Value: 80},
		{Time: base.Add(5 * time.Minute), Value: 60},
		{Time: base.Add(40 * time.Minute), Value: 70},
	})

	if !w.Samples[0].Time.Equal(base.Add(5 * time.Minute)) {
		t.Fatalf("expected samples ordered chronologically, got %v", w.Samples)
	}

	agg := w.Aggregate()
	if agg.Count != 3 || agg.Sum != 210 {
		t.Fatalf("unexpected count/sum: %+v", agg)
	}
	if *agg.Min != 60 || *agg.Max != 80 || *agg.Mean != 70 {
		t.Fatalf("unexpected min/max/mean: %v %v %v", *agg.Min, *agg.Max, *agg.Mean)
	}
}

func TestLatestNewestFirst(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var samples []Sample
	for i := 0; i < 7; i++ {
		samples = append(samples, Sample{Time: base.Add(time.Duration(i) * time.Minute), Value: float64(60 + i)})
	}
	w := NewWindow(HeartRate, base, base.Add(time.Hour), samples)

	latest := w.Latest(5)
	if len(latest) != 5 {
		t.Fatalf("expected 5 samples, got %d", len(latest))
	}
	if latest[0].Value != 66 || latest[4].Value != 62 {
		t.Fatalf("unexpected order: %v", latest)
	}
}

func TestBuildPayloadOmitsMissingMetrics(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	windows := map[Kind]Window{
		HeartRate: NewWindow(HeartRate, base, base.Add(time.Hour), []Sample{{Time: base, Value: 72}}),
		Steps:     NewWindow(Steps, base, base.Add(time.Hour), nil),
	}

	body, err := json.Marshal(BuildPayload(windows))
	if err != nil {
		t.Fatalf("Marshal err: %v", err)
	}
	if string(body) != `{"heart_rate":72}` {
		t.Fatalf("unexpected payload: %s", body)
	}
}

func TestBuildPayloadSumsSteps(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	windows := map[Kind]Window{
		Steps: NewWindow(Steps, base, base.Add(time.Hour), []Sample{
			{Time: base, Value: 300},
			{Time: base.Add(time.Minute), Value: 200},
		}),
	}

	p := BuildPayload(windows)
	if p.Activity == nil || *p.Activity != 500 {
		t.Fatalf("expected activity 500, got %v", p.Activity)
	}
	if p.HeartRate != nil {
		t.Fatalf("expected heart rate absent")
	}
}

func TestSummaryListsRecentHeartRate(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	windows := map[Kind]Window{
		HeartRate: NewWindow(HeartRate, base, base.Add(time.Hour), []Sample{
			{Time: base.Add(time.Minute), Value: 70},
			{Time: base.Add(2 * time.Minute), Value: 75},
		}),
	}

	text := Summary(windows, time.Hour, time.UTC)
	for _, want := range []string{"Window: last 60 min", "HR:    72.5 bpm (2 samples)", "HRV:   - (0 samples)", "Steps: -", "10:02:00 → 75 bpm"} {
		if !strings.Contains(text, want) {
			t.Fatalf("summary missing %q:\n%s", want, text)
		}
	}
}
