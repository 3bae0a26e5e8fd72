package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/radiusdt/roas-board/internal/models"
)

const keySep = "|"

// keyEscaper escapes the separator inside key parts so distinct keys never
// share an ID.
var keyEscaper = strings.NewReplacer(`\`, `\\`, keySep, `\`+keySep)

func joinKey(parts ...string) string {
	for i, p := range parts {
		parts[i] = keyEscaper.Replace(p)
	}
	return strings.Join(parts, keySep)
}

// GroupKey identifies a Group. Source is the ad network or the publisher,
// depending on the view.
type GroupKey struct {
	Game     string `json:"game"`
	Country  string `json:"country"`
	Platform string `json:"platform"`
	Source   string `json:"source"`
}

func (k GroupKey) String() string {
	return joinKey(k.Game, k.Country, k.Platform, k.Source)
}

// Less orders keys field by field.
func (k GroupKey) Less(o GroupKey) bool {
	if k.Super() != o.Super() {
		return k.Super().Less(o.Super())
	}
	return k.Source < o.Source
}

// Super returns the key of the SuperGroup this Group belongs to.
func (k GroupKey) Super() SuperGroupKey {
	return SuperGroupKey{Game: k.Game, Country: k.Country, Platform: k.Platform}
}

// SuperGroupKey identifies a SuperGroup.
type SuperGroupKey struct {
	Game     string `json:"game"`
	Country  string `json:"country"`
	Platform string `json:"platform"`
}

func (k SuperGroupKey) String() string {
	return joinKey(k.Game, k.Country, k.Platform)
}

// Less orders keys by game, then country, then platform.
func (k SuperGroupKey) Less(o SuperGroupKey) bool {
	if k.Game != o.Game {
		return k.Game < o.Game
	}
	if k.Country != o.Country {
		return k.Country < o.Country
	}
	return k.Platform < o.Platform
}

// DailyRecord is one day of a Group's series.
type DailyRecord struct {
	Date      time.Time       `json:"date"`
	RawDate   string          `json:"raw_date"`
	ValidDate bool            `json:"valid_date"`
	Installs  int64           `json:"installs"`
	Cost      float64         `json:"cost"`
	Revenue   float64         `json:"revenue"`
	Roas      map[int]float64 `json:"roas,omitempty"`
}

// RoasAt returns ROAS for a cohort day, 0 when absent.
func (d DailyRecord) RoasAt(day int) float64 {
	if d.Roas == nil {
		return 0
	}
	return d.Roas[day]
}

// Group owns one key's daily series and its derived metrics.
type Group struct {
	Key     GroupKey      `json:"key"`
	Days    []DailyRecord `json:"days"`
	Metrics Metrics       `json:"metrics"`
}

// KeyFunc maps a normalized row to a Group key.
type KeyFunc func(NormalizedRow) GroupKey

// KeyFuncFor returns the key function of a view.
func KeyFuncFor(v View) KeyFunc {
	if v == ViewPublisher {
		return func(n NormalizedRow) GroupKey {
			return GroupKey{Game: n.Game, Country: n.Country, Platform: n.Platform, Source: n.Publisher}
		}
	}
	return func(n NormalizedRow) GroupKey {
		return GroupKey{Game: n.Game, Country: n.Country, Platform: n.Platform, Source: n.AdNetwork}
	}
}

// NewDailyRecord converts a raw row's measures into a DailyRecord.
func NewDailyRecord(row models.RawRow) DailyRecord {
	d := DailyRecord{
		RawDate:  row.Date,
		Installs: nonNegInt(row.Installs),
		Cost:     nonNeg(row.Cost),
		Revenue:  nonNeg(row.Revenue),
	}
	d.Date, d.ValidDate = ParseDate(row.Date)
	for _, day := range CohortDays {
		if v := nonNeg(row.RoasAt(day)); v > 0 {
			if d.Roas == nil {
				d.Roas = make(map[int]float64, len(CohortDays))
			}
			d.Roas[day] = v
		}
	}
	return d
}

// BuildGroups buckets rows into Groups for the given view and sorts each
// Group's days chronologically. Groups come back in key order.
// Metrics are not computed here; see Aggregate.
func BuildGroups(rows []models.RawRow, view View) []*Group {
	keyOf := KeyFuncFor(view)
	byKey := make(map[GroupKey]*Group)

	for _, row := range rows {
		key := keyOf(Normalize(row))
		g, ok := byKey[key]
		if !ok {
			g = &Group{Key: key}
			byKey[key] = g
		}
		g.Days = append(g.Days, NewDailyRecord(row))
	}

	groups := make([]*Group, 0, len(byKey))
	for _, g := range byKey {
		SortDays(g.Days)
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key.Less(groups[j].Key) })
	return groups
}

// SortDays orders days chronologically in place. Days with unparseable dates
// keep their relative input order and go after every dated day.
func SortDays(days []DailyRecord) {
	sort.SliceStable(days, func(i, j int) bool {
		a, b := days[i], days[j]
		if a.ValidDate != b.ValidDate {
			return a.ValidDate
		}
		if !a.ValidDate {
			return false
		}
		return a.Date.Before(b.Date)
	})
}

func nonNeg(v float64) float64 {
	if v > 0 {
		return v
	}
	return 0
}

func nonNegInt(v int64) int64 {
	if v > 0 {
		return v
	}
	return 0
}
