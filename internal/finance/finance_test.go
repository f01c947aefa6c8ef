package finance

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"lifesim/internal/apperr"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestTransferConservesTotal(t *testing.T) {
	a := NewAccounts()
	a[Checking] = d("1000")
	a[Savings] = d("50")
	before := a[Checking].Add(a[Savings])

	if err := a.Transfer(Checking, Savings, d("400")); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !a[Checking].Equal(d("600")) || !a[Savings].Equal(d("450")) {
		t.Fatalf("unexpected balances %s %s", a[Checking], a[Savings])
	}
	if !a[Checking].Add(a[Savings]).Equal(before) {
		t.Fatalf("transfer changed the pair total")
	}
}

func TestTransferRejections(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		amount   string
		want     error
	}{
		{"same account", Checking, Checking, "10", apperr.ErrValidation},
		{"zero amount", Checking, Savings, "0", apperr.ErrValidation},
		{"negative amount", Checking, Savings, "-5", apperr.ErrValidation},
		{"unknown source", "brokerage", Savings, "5", apperr.ErrValidation},
		{"unknown destination", Checking, "brokerage", "5", apperr.ErrValidation},
		{"insufficient", Savings, Checking, "51", apperr.ErrInsufficientFunds},
		{"checking cannot overdraw by transfer", Checking, Savings, "100.01", apperr.ErrInsufficientFunds},
	}
	for _, tc := range tests {
		a := NewAccounts()
		a[Checking] = d("100")
		a[Savings] = d("50")
		err := a.Transfer(tc.from, tc.to, d(tc.amount))
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, err, tc.want)
		}
		if !a[Checking].Equal(d("100")) || !a[Savings].Equal(d("50")) {
			t.Fatalf("%s: rejected transfer mutated balances", tc.name)
		}
	}
}

func TestDebitAllowsCheckingOverdraft(t *testing.T) {
	a := NewAccounts()
	if err := a.Debit(Checking, d("35")); err != nil {
		t.Fatalf("checking debit: %v", err)
	}
	if !a[Checking].Equal(d("-35")) {
		t.Fatalf("got %s", a[Checking])
	}
	if err := a.Debit(EmergencyFund, d("1")); !errors.Is(err, apperr.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestTransferRejectsManagedAccount(t *testing.T) {
	a := NewAccounts()
	a[Checking] = d("500")
	a[Retirement401k] = d("2500")
	if err := a.Transfer(Retirement401k, Savings, d("100")); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("withdrawal: expected validation error, got %v", err)
	}
	if err := a.Transfer(Checking, " retirement401k", d("100")); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("deposit: expected validation error, got %v", err)
	}
	if !a[Checking].Equal(d("500")) || !a[Retirement401k].Equal(d("2500")) {
		t.Fatalf("balances moved: %v", a)
	}
}

func TestHistoryBounded(t *testing.T) {
	var h History
	for i := 0; i < 30; i++ {
		h = h.Append("p", decimal.NewFromInt(int64(i)))
		if len(h) > HistoryCap {
			t.Fatalf("history grew to %d", len(h))
		}
	}
	if !h[0].Value.Equal(decimal.NewFromInt(18)) || !h[len(h)-1].Value.Equal(decimal.NewFromInt(29)) {
		t.Fatalf("eviction order broken: first=%s last=%s", h[0].Value, h[len(h)-1].Value)
	}
	h = h.UpdateLast("p", decimal.NewFromInt(100))
	if len(h) != HistoryCap || !h[len(h)-1].Value.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("update last failed")
	}
}

func TestRetirementContribution(t *testing.T) {
	r := Plan401k{ContributionPercent: 10, Strategy: "TECH"}
	c := r.MonthlyContribution(d("9000"))
	if !c.Equal(d("900")) {
		t.Fatalf("contribution %s", c)
	}
	r.Buy(c.Div(decimal.NewFromInt(2)), d("250"))
	if !r.Shares.Equal(d("1.8")) {
		t.Fatalf("shares %s", r.Shares)
	}
	if !r.Mark(d("300")).Equal(d("540")) {
		t.Fatalf("balance %s", r.Balance)
	}
	if err := ValidateContribution(21); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error")
	}
}

func TestFormat(t *testing.T) {
	if got := Format(d("1234.5")); got != "$1,234.50" {
		t.Fatalf("got %q", got)
	}
}
