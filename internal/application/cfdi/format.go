package cfdi

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	weightPlaces = 3
	moneyPlaces  = 2

	// DateTimeLayout is the SAT local date-time layout without zone.
	DateTimeLayout = "2006-01-02T15:04:05"
)

func formatWeight(d decimal.Decimal) string {
	return d.StringFixed(weightPlaces)
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(moneyPlaces)
}

// formatQuantity keeps the caller's precision; quantities carry no fixed scale.
func formatQuantity(d decimal.Decimal) string {
	return d.String()
}

func roundWeight(d decimal.Decimal) decimal.Decimal {
	return d.Round(weightPlaces)
}

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// formatOptionalMoney omits zero amounts so the attribute builder drops them.
func formatOptionalMoney(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return formatMoney(d)
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateTimeLayout)
}

func siNo(b bool) string {
	if b {
		return "Sí"
	}
	return "No"
}
