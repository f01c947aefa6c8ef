package game

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"lifesim/internal/apperr"
)

func TestValidateSymbol(t *testing.T) {
	valid := []string{"TECH", "ACME", "CRYPTO_ETF", "S3"}
	for _, s := range valid {
		if err := ValidateSymbol(s); err != nil {
			t.Fatalf("expected symbol %q to be valid: %v", s, err)
		}
	}

	invalid := []string{"", "tech", "3M", "WAY_TOO_LONG_SYMBOL", "AB-C"}
	for _, s := range invalid {
		if err := ValidateSymbol(s); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("expected symbol %q to fail validation, got %v", s, err)
		}
	}
}

func TestNormalizeUnit(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", UnitDay},
		{"Day", UnitDay},
		{"days", UnitDay},
		{"m", UnitMonth},
		{" MONTH ", UnitMonth},
	}
	for _, tc := range tests {
		got, err := normalizeUnit(tc.in)
		if err != nil || got != tc.want {
			t.Fatalf("unit %q: got %q err %v, want %q", tc.in, got, err, tc.want)
		}
	}
	if _, err := normalizeUnit("year"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected year to fail, got %v", err)
	}
}

func TestValidateCount(t *testing.T) {
	tests := []struct {
		unit  string
		count int
		ok    bool
	}{
		{UnitDay, 1, true},
		{UnitDay, MaxAdvanceDays, true},
		{UnitDay, MaxAdvanceDays + 1, false},
		{UnitMonth, 0, false},
		{UnitMonth, MaxAdvanceMonths, true},
		{UnitMonth, MaxAdvanceMonths + 1, false},
	}
	for _, tc := range tests {
		err := validateCount(tc.unit, tc.count)
		if (err == nil) != tc.ok {
			t.Fatalf("%s x%d: got err %v, want ok=%v", tc.unit, tc.count, err, tc.ok)
		}
	}
}

func TestNormalizeSide(t *testing.T) {
	if side, err := normalizeSide(" SELL "); err != nil || side != SideSell {
		t.Fatalf("got %q %v", side, err)
	}
	if _, err := normalizeSide("short"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidatePositive(t *testing.T) {
	if err := validatePositive("shares", decimal.RequireFromString("0.5")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, v := range []string{"0", "-1"} {
		if err := validatePositive("shares", decimal.RequireFromString(v)); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("expected %s to fail, got %v", v, err)
		}
	}
}

func TestClampLedgerLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultLedgerLimit},
		{-5, DefaultLedgerLimit},
		{7, 7},
		{MaxLedgerLimit + 1, MaxLedgerLimit},
	}
	for _, tc := range tests {
		if got := ClampLedgerLimit(tc.in); got != tc.want {
			t.Fatalf("limit %d: got %d want %d", tc.in, got, tc.want)
		}
	}
}
