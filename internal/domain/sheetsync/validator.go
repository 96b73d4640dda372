package sheetsync

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Validation thresholds, in kg. Hand-typed sheet data routinely runs large
// without being wrong, so out-of-range values warn rather than block; only
// structurally bad values (unparseable, negative consumption, far-future
// dates) are errors.
var (
	maxConsumptionPerMonth = decimal.NewFromInt(10000)
	maxPurchaseAmount      = decimal.NewFromInt(50000)
	maxCorrectionAmount    = decimal.NewFromInt(5000)
	minPurchaseDate        = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
)

// Validation is the outcome of checking one external row. Errors block the
// row from becoming a transaction; warnings are recorded for the audit trail
// and never block.
type Validation struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func (v *Validation) errorf(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
	v.Valid = false
}

func (v *Validation) warnf(format string, args ...interface{}) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

// NormalizeCode strips the thousands-separator commas spreadsheets introduce
// when they auto-format numeric-looking product codes.
func NormalizeCode(code string) string {
	return strings.TrimSpace(strings.ReplaceAll(code, ",", ""))
}

var monthLabelRe = regexp.MustCompile(`([A-Za-z]+)\s+(\d{4})`)

// English month names only. The sheets are filled in by a fixed set of staff
// in one locale; a lookup table is deliberate (no locale-aware parsing).
var monthsByName = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// ParseMonthLabel parses a "<MonthName> <Year>" label such as "January 2024"
// and returns the last calendar day of that month, which is the business
// date monthly consumption is booked on.
func ParseMonthLabel(label string) (time.Time, bool) {
	m := monthLabelRe.FindStringSubmatch(label)
	if m == nil {
		return time.Time{}, false
	}
	month, ok := monthsByName[strings.ToLower(m[1])]
	if !ok {
		return time.Time{}, false
	}
	var year int
	fmt.Sscanf(m[2], "%d", &year)
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC), true
}

var correctionAmountRe = regexp.MustCompile(`^\s*([+-]?\d+(?:\.\d+)?)`)

// ExtractCorrectionAmount pulls the leading signed number out of a
// correction cell that may carry trailing free text, e.g.
// "16 Stock Adjustment" -> 16. The second return is false when no numeric
// prefix exists.
func ExtractCorrectionAmount(raw string) (decimal.Decimal, bool) {
	m := correctionAmountRe.FindStringSubmatch(raw)
	if m == nil {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(m[1])
	if err != nil {
		return decimal.Zero, false
	}
	return amount, true
}

// Accepted purchase/correction date forms: the dotted day.month.year the
// operators favour, plus the common unambiguous layouts sheet cells end up
// holding.
var dateLayouts = []string{
	"2.1.2006",
	"2006-01-02",
	"2006/01/02",
	"1/2/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseDate tries each accepted layout in order.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// maxFutureDate is the acceptance horizon for business dates: anything more
// than a year out is treated as a typo, not a plan.
func maxFutureDate(now time.Time) time.Time {
	return now.AddDate(1, 0, 0)
}

// ValidateConsumptionRow checks one consumption row's amount and month
// label. The month label only warns: ingestion proceeds with "now" as the
// fallback date.
func ValidateConsumptionRow(amount, monthLabel string, now time.Time) Validation {
	v := Validation{Valid: true}

	qty, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		v.errorf("Invalid consumption amount: %s", amount)
	} else {
		if qty.IsNegative() {
			v.errorf("Negative consumption not allowed: %s kg", qty)
		}
		if qty.GreaterThan(maxConsumptionPerMonth) {
			v.warnf("Unusually high consumption: %s kg (max expected: %s kg)", qty, maxConsumptionPerMonth)
		}
		if qty.IsZero() {
			v.warnf("Zero consumption recorded")
		}
	}

	if _, ok := ParseMonthLabel(monthLabel); !ok {
		v.warnf("Invalid month format: %s", monthLabel)
	}

	return v
}

// ValidatePurchaseRow checks one purchase row. Unlike consumption, a bad
// date is a hard error here: purchases without a usable business date would
// distort the ledger silently.
func ValidatePurchaseRow(date, amount string, now time.Time) Validation {
	v := Validation{Valid: true}

	qty, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		v.errorf("Invalid purchase amount: %s", amount)
	} else {
		if !qty.IsPositive() {
			v.errorf("Purchase amount must be positive: %s kg", qty)
		}
		if qty.GreaterThan(maxPurchaseAmount) {
			v.warnf("Unusually large purchase: %s kg (max expected: %s kg)", qty, maxPurchaseAmount)
		}
	}

	parsed, ok := ParseDate(date)
	if !ok {
		v.errorf("Invalid date format: %s", date)
	} else {
		if parsed.Before(minPurchaseDate) {
			v.warnf("Date is very old: %s", date)
		}
		if parsed.After(maxFutureDate(now)) {
			v.errorf("Date is in the future: %s", date)
		}
	}

	return v
}

// ValidateCorrectionRow checks one correction row. The amount cell is the
// loose "signed number plus trailing text" form; missing or unparseable
// dates are tolerated (ingestion falls back to "now").
func ValidateCorrectionRow(amount, date string, now time.Time) Validation {
	v := Validation{Valid: true}

	qty, ok := ExtractCorrectionAmount(amount)
	if !ok {
		v.errorf("Invalid correction format: %s", amount)
	} else {
		if qty.Abs().GreaterThan(maxCorrectionAmount) {
			v.warnf("Large correction amount: %s kg (max expected: ±%s kg)", qty, maxCorrectionAmount)
		}
		if qty.IsZero() {
			v.warnf("Zero correction amount")
		}
	}

	if parsed, ok := ParseDate(date); ok && parsed.After(maxFutureDate(now)) {
		v.errorf("Date is in the future: %s", date)
	}

	return v
}

// ValidateInitialStockRow checks one initial-stock row's requested level.
func ValidateInitialStockRow(amount string) Validation {
	v := Validation{Valid: true}

	qty, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		v.errorf("Invalid initial stock amount: %s", amount)
	} else if qty.IsNegative() {
		v.errorf("Negative initial stock not allowed: %s kg", qty)
	}

	return v
}
