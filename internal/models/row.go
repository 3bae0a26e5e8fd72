package models

// ===========================================
// RAW PERFORMANCE ROW
// ===========================================

// RawRow is one campaign-day record as delivered by the upstream row source.
// Fields that the source did not report are left at their zero value.
type RawRow struct {
	App       string `json:"app"`                 // App label, e.g. "Merge Dragons Android"
	Network   string `json:"network"`             // Combined label, e.g. "Android_AppLovin_US"
	Publisher string `json:"publisher,omitempty"` // Publisher / sub-site name
	Date      string `json:"date"`                // Calendar day as received (YYYY-MM-DD preferred)

	Installs int64   `json:"installs"`
	Cost     float64 `json:"cost"`
	Revenue  float64 `json:"revenue"`

	// Roas maps cohort day to ROAS at that day as a fraction (0.35 = 35%).
	// Zero means no data for that cohort day.
	Roas map[int]float64 `json:"roas,omitempty"`
}

// RoasAt returns ROAS for a cohort day, 0 when absent.
func (r RawRow) RoasAt(day int) float64 {
	if r.Roas == nil {
		return 0
	}
	return r.Roas[day]
}

// RowFilter narrows what a row source returns.
type RowFilter struct {
	Apps      []string `json:"apps,omitempty"`
	StartDate string   `json:"start_date,omitempty"` // inclusive, YYYY-MM-DD
	EndDate   string   `json:"end_date,omitempty"`   // inclusive, YYYY-MM-DD
}
