package models

// ===========================================
// DASHBOARD SETTINGS
// ===========================================

// Operator is a conditional formatting comparison.
type Operator string

const (
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "="
)

// Compare applies the operator to value against threshold.
func (o Operator) Compare(value, threshold float64) bool {
	switch o {
	case OpGreater:
		return value > threshold
	case OpGreaterEqual:
		return value >= threshold
	case OpLess:
		return value < threshold
	case OpLessEqual:
		return value <= threshold
	case OpEqual:
		return value == threshold
	default:
		return false
	}
}

// DateRange is an inclusive calendar range. Either bound may be empty (open).
type DateRange struct {
	Start string `json:"start,omitempty" validate:"omitempty,datetime=2006-01-02"`
	End   string `json:"end,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// IsZero reports whether neither bound is set.
func (d *DateRange) IsZero() bool {
	return d == nil || (d.Start == "" && d.End == "")
}

// FormattingRule colors a cell when its column value satisfies the comparison.
type FormattingRule struct {
	Column     string   `json:"column" validate:"required"`
	Operator   Operator `json:"operator" validate:"required,oneof=> >= < <= ="`
	Threshold  float64  `json:"threshold"`
	Background string   `json:"background,omitempty" validate:"omitempty,hexcolor"`
	Text       string   `json:"text,omitempty" validate:"omitempty,hexcolor"`
	Active     bool     `json:"active"`
}

// Settings is the user-facing dashboard configuration.
type Settings struct {
	DateRange       *DateRange       `json:"date_range,omitempty" validate:"omitempty"`
	VisibleColumns  []string         `json:"visible_columns" validate:"dive,required"`
	FormattingRules []FormattingRule `json:"formatting_rules,omitempty" validate:"dive"`
}
