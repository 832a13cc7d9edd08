package format

import (
	"fmt"
	"math"

	"finportal/domain/pivot"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Directive is the formatting category of a measure column.
type Directive string

const (
	Currency Directive = "currency"
	Integer  Directive = "integer"
	Percent  Directive = "percent" // signed, e.g. +20.0%
	Share    Directive = "share"   // unsigned, e.g. 70.6%
	Price    Directive = "price"   // currency with cents, e.g. $45.90
	Decimal  Directive = "decimal"
)

var printer = message.NewPrinter(language.English)

// Value formats a number according to a directive.
func Value(v float64, d Directive) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	switch d {
	case Currency:
		r := roundZero(v, 0)
		if r < 0 {
			return printer.Sprintf("-$%.0f", -r)
		}
		return printer.Sprintf("$%.0f", r)
	case Price:
		return Money(v)
	case Integer:
		return printer.Sprintf("%.0f", roundZero(v, 0))
	case Percent:
		p := roundZero(v*100, 1)
		if p > 0 {
			return "+" + printer.Sprintf("%.1f%%", p)
		}
		return printer.Sprintf("%.1f%%", p)
	case Share:
		return printer.Sprintf("%.1f%%", roundZero(v*100, 1))
	default:
		return printer.Sprintf("%.2f", roundZero(v, 2))
	}
}

// Money formats a currency amount with cents.
func Money(v float64) string {
	r := roundZero(v, 2)
	if r < 0 {
		return printer.Sprintf("-$%.2f", -r)
	}
	return printer.Sprintf("$%.2f", r)
}

// Compact abbreviates large currency amounts: $1.23M, $4.56K, $999.
// The unit is chosen after rounding, so 999.6 is $1.00K and not $1,000.
func Compact(v float64) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	switch {
	case math.Round(v/10)*10 >= 1_000_000:
		return fmt.Sprintf("%s$%.2fM", sign, v/1_000_000)
	case math.Round(v) >= 1_000:
		return fmt.Sprintf("%s$%.2fK", sign, v/1_000)
	default:
		r := roundZero(v, 0)
		if r == 0 {
			sign = ""
		}
		return sign + printer.Sprintf("$%.0f", r)
	}
}

// Cell formats one table cell. Variance columns are always signed
// percentages and mix columns plain percentages; value columns use the
// directive registered for their measure, falling back to Decimal.
func Cell(c pivot.Cell, col pivot.ColumnKey, directives map[string]Directive) string {
	if c.Null {
		return ""
	}
	return Value(c.Value, DirectiveFor(col, directives))
}

// DirectiveFor resolves the directive that applies to a column.
func DirectiveFor(col pivot.ColumnKey, directives map[string]Directive) Directive {
	switch col.Kind {
	case pivot.KindVariance:
		return Percent
	case pivot.KindMix:
		return Share
	}
	if d, ok := directives[col.Measure]; ok {
		return d
	}
	return Decimal
}

// roundZero rounds to the given places and folds -0 into 0.
func roundZero(v float64, places int) float64 {
	scale := math.Pow10(places)
	r := math.Round(v*scale) / scale
	if r == 0 {
		return 0
	}
	return r
}
