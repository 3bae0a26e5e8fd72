package analytics

import (
	"time"

	"github.com/radiusdt/roas-board/internal/models"
)

// DefaultTrailingDays is the window used when no date range is selected.
const DefaultTrailingDays = 7

// Trend is mean(second half) - mean(first half) of a sorted series.
type Trend struct {
	Installs float64 `json:"installs"`
	RoasD0   float64 `json:"roas_d0"`
	RoasD7   float64 `json:"roas_d7"`
	RoasD14  float64 `json:"roas_d14"`
}

// Window holds sums and averages over a subset of a Group's days.
type Window struct {
	Start    string          `json:"start,omitempty"`
	End      string          `json:"end,omitempty"`
	Days     int             `json:"days"`
	Installs int64           `json:"installs"`
	Cost     float64         `json:"cost"`
	Revenue  float64         `json:"revenue"`
	Roas     map[int]float64 `json:"roas"`
}

// RoasAt returns the windowed ROAS average for a cohort day.
func (w Window) RoasAt(day int) float64 {
	return w.Roas[day]
}

// Metrics are a Group's derived aggregates.
type Metrics struct {
	TotalInstalls int64           `json:"total_installs"`
	TotalCost     float64         `json:"total_cost"`
	TotalRevenue  float64         `json:"total_revenue"`
	AvgInstalls   float64         `json:"avg_installs"`
	AvgRoas       map[int]float64 `json:"avg_roas"`
	Trend         Trend           `json:"trend"`
	Window        Window          `json:"window"`
}

// AvgRoasAt returns the all-time ROAS average for a cohort day.
func (m Metrics) AvgRoasAt(day int) float64 {
	return m.AvgRoas[day]
}

// WindowSpec selects the days used for windowed metrics: an explicit inclusive
// range when either bound is set, otherwise the trailing TrailingDays calendar
// days ending at the group's latest dated day.
type WindowSpec struct {
	Start        time.Time
	End          time.Time
	TrailingDays int
}

// HasRange reports whether an explicit range is set.
func (w WindowSpec) HasRange() bool {
	return !w.Start.IsZero() || !w.End.IsZero()
}

// NewWindowSpec builds a spec from settings. Unparseable bounds are treated as open.
func NewWindowSpec(r *models.DateRange, trailingDays int) WindowSpec {
	if trailingDays <= 0 {
		trailingDays = DefaultTrailingDays
	}
	spec := WindowSpec{TrailingDays: trailingDays}
	if r.IsZero() {
		return spec
	}
	if t, ok := ParseDate(r.Start); ok {
		spec.Start = t
	}
	if t, ok := ParseDate(r.End); ok {
		spec.End = t
	}
	return spec
}

// Aggregate computes and stores the Group's metrics. Days must already be sorted.
func Aggregate(g *Group, spec WindowSpec) {
	g.Metrics = ComputeMetrics(g.Days, spec)
}

// AggregateAll aggregates every group with the same window.
func AggregateAll(groups []*Group, spec WindowSpec) {
	for _, g := range groups {
		Aggregate(g, spec)
	}
}

// ComputeMetrics derives all aggregates from a sorted series.
func ComputeMetrics(days []DailyRecord, spec WindowSpec) Metrics {
	m := Metrics{AvgRoas: make(map[int]float64, len(CohortDays))}

	var installDays int
	for _, d := range days {
		m.TotalInstalls += d.Installs
		m.TotalCost += d.Cost
		m.TotalRevenue += d.Revenue
		if d.Installs > 0 {
			installDays++
		}
	}
	m.AvgInstalls = ratio(float64(m.TotalInstalls), installDays)

	for _, day := range CohortDays {
		m.AvgRoas[day] = avgPositiveRoas(days, day)
	}

	m.Trend = ComputeTrend(days)
	m.Window = ComputeWindow(days, spec)
	return m
}

// ComputeTrend compares the two halves of the series, split at len/2.
// Fewer than two days yields a zero Trend.
func ComputeTrend(days []DailyRecord) Trend {
	if len(days) < 2 {
		return Trend{}
	}
	mid := len(days) / 2
	first, second := days[:mid], days[mid:]

	installs := func(d DailyRecord) float64 { return float64(d.Installs) }
	roas := func(day int) func(DailyRecord) float64 {
		return func(d DailyRecord) float64 { return d.RoasAt(day) }
	}

	return Trend{
		Installs: mean(second, installs) - mean(first, installs),
		RoasD0:   mean(second, roas(0)) - mean(first, roas(0)),
		RoasD7:   mean(second, roas(7)) - mean(first, roas(7)),
		RoasD14:  mean(second, roas(14)) - mean(first, roas(14)),
	}
}

// ComputeWindow sums and averages the days selected by spec.
func ComputeWindow(days []DailyRecord, spec WindowSpec) Window {
	start, end, ok := windowBounds(days, spec)
	w := Window{Roas: make(map[int]float64, len(CohortDays))}
	if !ok {
		return w
	}
	if !start.IsZero() {
		w.Start = start.Format(DateLayout)
	}
	if !end.IsZero() {
		w.End = end.Format(DateLayout)
	}

	selected := make([]DailyRecord, 0, len(days))
	for _, d := range days {
		if !d.ValidDate {
			continue
		}
		if !start.IsZero() && d.Date.Before(start) {
			continue
		}
		if !end.IsZero() && d.Date.After(end) {
			continue
		}
		selected = append(selected, d)
	}

	w.Days = len(selected)
	for _, d := range selected {
		w.Installs += d.Installs
		w.Cost += d.Cost
		w.Revenue += d.Revenue
	}
	for _, day := range CohortDays {
		w.Roas[day] = avgPositiveRoas(selected, day)
	}
	return w
}

// windowBounds resolves the inclusive bounds. Zero bounds are open. ok is
// false when a trailing window is requested but no dated day exists.
func windowBounds(days []DailyRecord, spec WindowSpec) (time.Time, time.Time, bool) {
	if spec.HasRange() {
		return spec.Start, spec.End, true
	}
	trailing := spec.TrailingDays
	if trailing <= 0 {
		trailing = DefaultTrailingDays
	}

	var latest time.Time
	for _, d := range days {
		if d.ValidDate && d.Date.After(latest) {
			latest = d.Date
		}
	}
	if latest.IsZero() {
		return time.Time{}, time.Time{}, false
	}
	return latest.AddDate(0, 0, -(trailing - 1)), latest, true
}

// Summary is the card-level rollup across many groups.
type Summary struct {
	Groups   int             `json:"groups"`
	Installs int64           `json:"installs"`
	Cost     float64         `json:"cost"`
	Revenue  float64         `json:"revenue"`
	Roas     map[int]float64 `json:"roas"`
}

// Summarize rolls windowed metrics of the given groups into summary cards.
// ROAS is the mean of the groups' windowed averages, skipping groups without data.
func Summarize(groups []*Group) Summary {
	s := Summary{Groups: len(groups), Roas: make(map[int]float64, len(CohortDays))}
	for _, g := range groups {
		s.Installs += g.Metrics.Window.Installs
		s.Cost += g.Metrics.Window.Cost
		s.Revenue += g.Metrics.Window.Revenue
	}
	for _, day := range CohortDays {
		var sum float64
		var n int
		for _, g := range groups {
			if v := g.Metrics.Window.RoasAt(day); v > 0 {
				sum += v
				n++
			}
		}
		s.Roas[day] = ratio(sum, n)
	}
	return s
}

func avgPositiveRoas(days []DailyRecord, day int) float64 {
	var sum float64
	var n int
	for _, d := range days {
		if v := d.RoasAt(day); v > 0 {
			sum += v
			n++
		}
	}
	return ratio(sum, n)
}

func mean(days []DailyRecord, f func(DailyRecord) float64) float64 {
	var sum float64
	for _, d := range days {
		sum += f(d)
	}
	return ratio(sum, len(days))
}

// ratio divides and returns 0 on an empty denominator.
func ratio(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
