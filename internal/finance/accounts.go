// Package finance models the player's cash-like accounts, the retirement plan
// and the bounded net-worth history.
package finance

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"lifesim/internal/apperr"
)

const (
	Checking       = "checking"
	Investments    = "investments"
	EmergencyFund  = "emergencyFund"
	Savings        = "savings"
	RealEstate     = "realEstate"
	Retirement401k = "retirement401k"
)

// KnownAccounts lists the accounts every new game starts with.
var KnownAccounts = []string{Checking, Investments, EmergencyFund, Savings, RealEstate, Retirement401k}

// Accounts maps account name to balance. Only checking may go negative.
type Accounts map[string]decimal.Decimal

func NewAccounts() Accounts {
	a := make(Accounts, len(KnownAccounts))
	for _, name := range KnownAccounts {
		a[name] = decimal.Zero
	}
	return a
}

func (a Accounts) Clone() Accounts {
	return maps.Clone(a)
}

func (a Accounts) Balance(name string) decimal.Decimal {
	return a[name]
}

func (a Accounts) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// Names returns account names sorted, known accounts first.
func (a Accounts) Names() []string {
	out := make([]string, 0, len(a))
	for _, name := range KnownAccounts {
		if a.Has(name) {
			out = append(out, name)
		}
	}
	var extra []string
	for name := range a {
		if !slices.Contains(KnownAccounts, name) {
			extra = append(extra, name)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

func (a Accounts) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range a {
		total = total.Add(v)
	}
	return total
}

// Managed reports whether name is revalued from holdings rather than moved as
// cash. The 401k balance is always plan shares times the strategy price.
func Managed(name string) bool {
	return name == Retirement401k
}

// Credit adds amount to name, creating the account when needed.
func (a Accounts) Credit(name string, amount decimal.Decimal) {
	a[name] = a[name].Add(amount)
}

// Debit removes amount from name. Non-checking accounts cannot go negative.
func (a Accounts) Debit(name string, amount decimal.Decimal) error {
	if !a.Has(name) {
		return fmt.Errorf("%w: unknown account %q", apperr.ErrValidation, name)
	}
	next := a[name].Sub(amount)
	if name != Checking && next.IsNegative() {
		return fmt.Errorf("%w: %s holds %s, need %s", apperr.ErrInsufficientFunds, name, Format(a[name]), Format(amount))
	}
	a[name] = next
	return nil
}

// Transfer moves amount from one account to another. It either applies both
// legs or neither.
func (a Accounts) Transfer(from, to string, amount decimal.Decimal) error {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == to {
		return fmt.Errorf("%w: source and destination must be different", apperr.ErrValidation)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", apperr.ErrValidation)
	}
	if !a.Has(from) {
		return fmt.Errorf("%w: unknown account %q", apperr.ErrValidation, from)
	}
	if !a.Has(to) {
		return fmt.Errorf("%w: unknown account %q", apperr.ErrValidation, to)
	}
	if Managed(from) || Managed(to) {
		return fmt.Errorf("%w: %s changes only through contributions", apperr.ErrValidation, Retirement401k)
	}
	if a[from].LessThan(amount) {
		return fmt.Errorf("%w: %s holds %s, need %s", apperr.ErrInsufficientFunds, from, Format(a[from]), Format(amount))
	}
	a[from] = a[from].Sub(amount)
	a[to] = a[to].Add(amount)
	return nil
}

// NetWorth is the sum of every balance plus the market value of all positions.
func NetWorth(a Accounts, marketValue decimal.Decimal) decimal.Decimal {
	return a.Total().Add(marketValue)
}
