package biometric

import (
	"fmt"
	"strings"
	"time"
)

// Payload is the body the receiving backend expects from the forwarder.
// Absent metrics are omitted rather than sent as zero.
type Payload struct {
	HeartRate *float64 `json:"heart_rate,omitempty"`
	HRV       *float64 `json:"hrv,omitempty"`
	Activity  *float64 `json:"activity,omitempty"`
}

// Empty reports whether no metric made it into the payload.
func (p Payload) Empty() bool {
	return p.HeartRate == nil && p.HRV == nil && p.Activity == nil
}

// BuildPayload derives a fresh payload from the windows that were read.
// Heart rate and HRV are averaged, steps are summed and dropped when zero.
func BuildPayload(windows map[Kind]Window) Payload {
	var p Payload
	if w, ok := windows[HeartRate]; ok {
		p.HeartRate = w.Aggregate().Mean
	}
	if w, ok := windows[HRV]; ok {
		p.HRV = w.Aggregate().Mean
	}
	if w, ok := windows[Steps]; ok {
		if agg := w.Aggregate(); agg.Sum > 0 {
			total := agg.Sum
			p.Activity = &total
		}
	}
	return p
}

// Summary renders the short text shown to the user before sending.
func Summary(windows map[Kind]Window, length time.Duration, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Window: last %d min\n", int(length.Minutes()))

	hr := windows[HeartRate]
	hrAgg := hr.Aggregate()
	fmt.Fprintf(&b, "HR:    %s (%d samples)\n", formatMean(hrAgg.Mean, "bpm"), hrAgg.Count)

	hrvAgg := windows[HRV].Aggregate()
	fmt.Fprintf(&b, "HRV:   %s (%d samples)\n", formatMean(hrvAgg.Mean, "ms"), hrvAgg.Count)

	if stepsAgg := windows[Steps].Aggregate(); stepsAgg.Sum > 0 {
		fmt.Fprintf(&b, "Steps: %d\n", int(stepsAgg.Sum))
	} else {
		b.WriteString("Steps: -\n")
	}
	b.WriteString("\n")

	latest := hr.Latest(5)
	if len(latest) == 0 {
		b.WriteString("Last HR: (none)")
		return b.String()
	}
	b.WriteString("Last HR:")
	for _, s := range latest {
		fmt.Fprintf(&b, "\n%s → %s bpm", s.Time.In(loc).Format("15:04:05"), trimFloat(s.Value))
	}
	return b.String()
}

func formatMean(v *float64, unit string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f %s", *v, unit)
}

func trimFloat(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}
