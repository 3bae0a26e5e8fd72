package analytics

import (
	"fmt"
	"strconv"
	"strings"
)

// CohortDays is the fixed set of tracked cohort days, ascending.
var CohortDays = []int{0, 1, 3, 7, 14, 30, 60, 90}

// IsCohortDay reports whether day is tracked.
func IsCohortDay(day int) bool {
	for _, d := range CohortDays {
		if d == day {
			return true
		}
	}
	return false
}

// SortCriterion selects the scalar used to rank Groups and SuperGroups.
type SortCriterion string

const (
	SortVolume       SortCriterion = "volume"
	SortCost         SortCriterion = "cost"
	SortRevenue      SortCriterion = "revenue"
	SortAlphabetical SortCriterion = "alphabetical"
)

// SortRoas returns the criterion for ROAS at the given cohort day.
func SortRoas(day int) SortCriterion {
	return SortCriterion("roas_d" + strconv.Itoa(day))
}

// RoasDay returns the cohort day of a ROAS criterion.
func (c SortCriterion) RoasDay() (int, bool) {
	s := string(c)
	if !strings.HasPrefix(s, "roas_d") {
		return 0, false
	}
	day, err := strconv.Atoi(strings.TrimPrefix(s, "roas_d"))
	if err != nil || !IsCohortDay(day) {
		return 0, false
	}
	return day, true
}

// IsRoas reports whether the criterion ranks by a cohort-day ROAS.
func (c SortCriterion) IsRoas() bool {
	_, ok := c.RoasDay()
	return ok
}

// ParseSortCriterion accepts the criterion names used in settings and URLs.
func ParseSortCriterion(s string) (SortCriterion, error) {
	c := SortCriterion(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case SortVolume, SortCost, SortRevenue, SortAlphabetical:
		return c, nil
	case "installs":
		return SortVolume, nil
	}
	if c.IsRoas() {
		return c, nil
	}
	return "", fmt.Errorf("unknown sort criterion %q", s)
}

// View selects which field completes the Group key.
type View string

const (
	// ViewNetwork keys groups by game, country, platform and ad network.
	ViewNetwork View = "network"
	// ViewPublisher keys groups by game, country, platform and publisher.
	ViewPublisher View = "publisher"
)

// ParseView parses a view name.
func ParseView(s string) (View, error) {
	switch v := View(strings.ToLower(strings.TrimSpace(s))); v {
	case ViewNetwork, ViewPublisher:
		return v, nil
	case "":
		return ViewNetwork, nil
	default:
		return "", fmt.Errorf("unknown view %q", s)
	}
}
