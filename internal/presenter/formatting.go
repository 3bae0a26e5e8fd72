package presenter

import (
	"fmt"

	"github.com/radiusdt/roas-board/internal/models"
)

// CellStyle is the conditional formatting applied to a cell.
type CellStyle struct {
	Background string `json:"background,omitempty"`
	Text       string `json:"text,omitempty"`
}

// MatchRule returns the style of the first active rule for column whose
// comparison holds for value. value must already be in display units.
func MatchRule(rules []models.FormattingRule, column string, value float64) (*CellStyle, bool) {
	for _, r := range rules {
		if !r.Active || r.Column != column {
			continue
		}
		if r.Operator.Compare(value, r.Threshold) {
			return &CellStyle{Background: r.Background, Text: r.Text}, true
		}
	}
	return nil, false
}

// ValidateRuleColumns reports the first rule that names an unknown column.
func ValidateRuleColumns(rules []models.FormattingRule) error {
	for _, r := range rules {
		if _, ok := ColumnByID(r.Column); !ok {
			return &UnknownColumnError{Column: r.Column}
		}
	}
	return nil
}

// UnknownColumnError is returned for settings that reference a missing column.
type UnknownColumnError struct {
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %q", e.Column)
}
