package presenter

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// NoData is rendered for ROAS cells without any cohort data.
const NoData = "-"

var hundred = decimal.NewFromInt(100)

func toDecimal(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// groupThousands inserts commas into the integer part of an unsigned number.
func groupThousands(s string) string {
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if len(intPart) <= 3 {
		return intPart + frac
	}
	var sb strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		sb.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(intPart[i : i+3])
	}
	return sb.String() + frac
}

func signed(d decimal.Decimal, places int32) string {
	s := groupThousands(d.Abs().StringFixed(places))
	switch d.Round(places).Sign() {
	case 1:
		return "+" + s
	case -1:
		return "-" + s
	}
	return s
}

// FormatCount renders a count rounded to a whole number, e.g. "12,345".
func FormatCount(v float64) string {
	d := toDecimal(v).Round(0)
	s := groupThousands(d.Abs().StringFixed(0))
	if d.Sign() < 0 {
		return "-" + s
	}
	return s
}

// FormatCurrency renders dollars with two decimals, e.g. "$1,234.50".
func FormatCurrency(v float64) string {
	d := toDecimal(v).Round(2)
	s := "$" + groupThousands(d.Abs().StringFixed(2))
	if d.Sign() < 0 {
		return "-" + s
	}
	return s
}

// FormatPercent renders a ROAS fraction as a percentage, e.g. 0.354 -> "35.4%".
// Zero means no data.
func FormatPercent(v float64) string {
	if v == 0 {
		return NoData
	}
	return groupThousands(toDecimal(v).Mul(hundred).StringFixed(1)) + "%"
}

// FormatTrendCount renders a signed installs delta, e.g. "+12.5".
func FormatTrendCount(v float64) string {
	return signed(toDecimal(v), 1)
}

// FormatTrendPercent renders a signed ROAS delta in percentage points, e.g. "-2.5pp".
func FormatTrendPercent(v float64) string {
	return signed(toDecimal(v).Mul(hundred), 1) + "pp"
}

// Format renders v according to kind.
func Format(kind Kind, v float64) string {
	switch kind {
	case KindCurrency:
		return FormatCurrency(v)
	case KindPercent:
		return FormatPercent(v)
	case KindTrendCount:
		return FormatTrendCount(v)
	case KindTrendPercent:
		return FormatTrendPercent(v)
	default:
		return FormatCount(v)
	}
}

// DisplayValue converts v to the unit users see, which is also the unit
// formatting rule thresholds are written in: percentages for ROAS columns.
func DisplayValue(kind Kind, v float64) float64 {
	switch kind {
	case KindPercent, KindTrendPercent:
		f, _ := toDecimal(v).Mul(hundred).Float64()
		return f
	}
	return v
}
