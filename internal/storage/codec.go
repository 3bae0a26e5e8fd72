package storage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/radiusdt/roas-board/internal/analytics"
	"github.com/radiusdt/roas-board/internal/models"
)

func encodeState(st *models.BoardState) ([]byte, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to encode board state: %w", err)
	}
	return data, nil
}

func decodeState(data []byte) (*models.BoardState, error) {
	var st models.BoardState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode board state: %w", err)
	}
	return &st, nil
}

func encodeRoas(roas map[int]float64) ([]byte, error) {
	if roas == nil {
		roas = map[int]float64{}
	}
	return json.Marshal(roas)
}

func decodeRoas(data []byte) (map[int]float64, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var roas map[int]float64
	if err := json.Unmarshal(data, &roas); err != nil {
		return nil, fmt.Errorf("failed to decode roas: %w", err)
	}
	if len(roas) == 0 {
		return nil, nil
	}
	return roas, nil
}

// rowKey is the dedup key of a row.
type rowKey struct {
	app, network, publisher, date string
}

func keyOf(r models.RawRow) rowKey {
	return rowKey{r.App, r.Network, r.Publisher, r.Date}
}

// matchesFilter applies a RowFilter in memory. Rows with unparseable dates
// only pass when the filter has no date bounds.
func matchesFilter(r models.RawRow, f models.RowFilter) bool {
	if len(f.Apps) > 0 {
		found := false
		for _, app := range f.Apps {
			if strings.EqualFold(app, r.App) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.StartDate == "" && f.EndDate == "" {
		return true
	}
	day, ok := analytics.ParseDate(r.Date)
	if !ok {
		return false
	}
	if start, ok := analytics.ParseDate(f.StartDate); ok && day.Before(start) {
		return false
	}
	if end, ok := analytics.ParseDate(f.EndDate); ok && day.After(end) {
		return false
	}
	return true
}

// sortRows gives listings a stable order: date, app, network, publisher.
func sortRows(rows []models.RawRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.App != b.App {
			return a.App < b.App
		}
		if a.Network != b.Network {
			return a.Network < b.Network
		}
		return a.Publisher < b.Publisher
	})
}
