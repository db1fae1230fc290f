// Package entity defines the validated domain records the repositories
// store: funders, contributions, state targets, prospects, states and
// schools. Every entity is a value snapshot with a unique string
// identifier and UTC timestamps; mutating a copy never writes through to
// storage.
package entity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Entity is implemented by every domain record handled by the repository
// layer. EntityID returns the unique identifier used for row addressing;
// Validate enforces the record's construction invariants and is the single
// gate used both at construction time and before any write.
type Entity interface {
	EntityID() string
	Validate() error
}

var fiscalYearPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// ValidateFiscalYear checks the YYYY-YY format and that the short end year
// is exactly the start year plus one, with the start year in [2000, 2100].
func ValidateFiscalYear(fy string) error {
	if !fiscalYearPattern.MatchString(fy) {
		return fmt.Errorf("fiscal year %q must match YYYY-YY", fy)
	}
	parts := strings.SplitN(fy, "-", 2)
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("fiscal year %q: invalid start year", fy)
	}
	end, err := strconv.Atoi("20" + parts[1])
	if err != nil {
		return fmt.Errorf("fiscal year %q: invalid end year", fy)
	}
	if end != start+1 {
		return fmt.Errorf("fiscal year %q: end must be start year + 1", fy)
	}
	if start < 2000 || start > 2100 {
		return fmt.Errorf("fiscal year %q: start must be between 2000 and 2100", fy)
	}
	return nil
}

// PreviousFiscalYear returns the fiscal year immediately before fy,
// e.g. "2024-25" -> "2023-24".
func PreviousFiscalYear(fy string) (string, error) {
	if err := ValidateFiscalYear(fy); err != nil {
		return "", err
	}
	start, _ := strconv.Atoi(fy[:4])
	return fmt.Sprintf("%04d-%02d", start-1, start%100), nil
}

// fiscalYearRule adapts ValidateFiscalYear for ozzo field rules.
func fiscalYearRule(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil // Required is enforced separately where the field is mandatory.
	}
	return ValidateFiscalYear(s)
}

// positiveAmountRule rejects non-positive decimal amounts.
func positiveAmountRule(value any) error {
	d, ok := value.(decimal.Decimal)
	if !ok {
		return fmt.Errorf("amount must be a decimal value")
	}
	if !d.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	return nil
}

var (
	stateCodeRules = []validation.Rule{
		validation.Length(2, 3),
		validation.Match(regexp.MustCompile(`^[A-Z]{2,3}$`)).Error("must be an upper-case state code"),
	}
	requiredName = []validation.Rule{
		validation.Required,
		validation.Length(1, 200),
	}
)

// NormalizeStateCode upper-cases and trims a state code for comparison and
// storage. Validation still rejects codes of the wrong shape.
func NormalizeStateCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NewID returns a fresh unique entity identifier.
func NewID() string {
	return uuid.NewString()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// roundMoney normalizes a currency amount to two decimal places.
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
