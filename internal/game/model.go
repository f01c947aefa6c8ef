package game

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"lifesim/internal/apperr"
)

const (
	MaxAdvanceDays   = 366
	MaxAdvanceMonths = 24

	DefaultLedgerLimit = 20
	MaxLedgerLimit     = 500

	UnitDay   = "day"
	UnitMonth = "month"

	SideBuy  = "buy"
	SideSell = "sell"
)

var symbolRE = regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,15}$`)

func ValidateSymbol(symbol string) error {
	if !symbolRE.MatchString(strings.TrimSpace(symbol)) {
		return fmt.Errorf("%w: symbol %q must be 1-16 uppercase letters, digits or underscores", apperr.ErrValidation, symbol)
	}
	return nil
}

func normalizeSide(side string) (string, error) {
	side = strings.ToLower(strings.TrimSpace(side))
	if side != SideBuy && side != SideSell {
		return "", fmt.Errorf("%w: side must be buy or sell", apperr.ErrValidation)
	}
	return side, nil
}

func normalizeUnit(unit string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "", "d", "day", "days":
		return UnitDay, nil
	case "m", "month", "months":
		return UnitMonth, nil
	}
	return "", fmt.Errorf("%w: unit must be day or month", apperr.ErrValidation)
}

func validateCount(unit string, count int) error {
	limit := MaxAdvanceDays
	if unit == UnitMonth {
		limit = MaxAdvanceMonths
	}
	if count < 1 || count > limit {
		return fmt.Errorf("%w: %s count must be between 1 and %d", apperr.ErrValidation, unit, limit)
	}
	return nil
}

func validatePositive(name string, v decimal.Decimal) error {
	if !v.IsPositive() {
		return fmt.Errorf("%w: %s must be > 0", apperr.ErrValidation, name)
	}
	return nil
}

// ClampLedgerLimit maps n onto [1, MaxLedgerLimit], defaulting to
// DefaultLedgerLimit when n is not positive.
func ClampLedgerLimit(n int) int {
	if n <= 0 {
		return DefaultLedgerLimit
	}
	return min(n, MaxLedgerLimit)
}
