// Package market holds the tradable positions, their current prices and the
// monthly price history.
package market

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"lifesim/internal/apperr"
	"lifesim/internal/calendar"
	"lifesim/internal/finance"
)

// FundingAccount pays for buys and receives sale proceeds.
const FundingAccount = finance.Investments

type Position struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name,omitempty"`
	Shares decimal.Decimal `json:"shares"`
	Price  decimal.Decimal `json:"price"`
}

func (p Position) Value() decimal.Decimal {
	return p.Shares.Mul(p.Price)
}

// Book is the set of positions plus one bounded history series per symbol.
type Book struct {
	Positions []Position                 `json:"positions"`
	History   map[string]finance.History `json:"price_history"`
}

func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (b Book) Clone() Book {
	out := Book{
		Positions: slices.Clone(b.Positions),
		History:   make(map[string]finance.History, len(b.History)),
	}
	for k, h := range b.History {
		out.History[k] = h.Clone()
	}
	return out
}

func (b *Book) index(symbol string) int {
	symbol = NormalizeSymbol(symbol)
	return slices.IndexFunc(b.Positions, func(p Position) bool { return p.Symbol == symbol })
}

func (b *Book) Position(symbol string) (Position, bool) {
	i := b.index(symbol)
	if i < 0 {
		return Position{}, false
	}
	return b.Positions[i], true
}

func (b *Book) Price(symbol string) (decimal.Decimal, error) {
	p, ok := b.Position(symbol)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: unknown symbol %q", apperr.ErrValidation, symbol)
	}
	return p.Price, nil
}

// Value is the market value of every position at current prices.
func (b *Book) Value() decimal.Decimal {
	total := decimal.Zero
	for _, p := range b.Positions {
		total = total.Add(p.Value())
	}
	return total
}

// Tick reprices every position for date. The source wins when it has a quote;
// otherwise the walker moves the price. History is only appended on the first
// of the month.
func (b *Book) Tick(date time.Time, source PriceSource, walk Walker, firstOfMonth bool) {
	if b.History == nil {
		b.History = make(map[string]finance.History)
	}
	for i, p := range b.Positions {
		next, ok := decimal.Zero, false
		if source != nil {
			next, ok = source.PriceAsOf(p.Symbol, date)
		}
		if !ok || !next.IsPositive() {
			next = walk.Step(p.Price)
		}
		b.Positions[i].Price = next
		if firstOfMonth {
			b.History[p.Symbol] = b.History[p.Symbol].Append(calendar.PeriodLabel(date), next)
		}
	}
}

// Buy purchases shares of symbol, paying from the funding account.
func (b *Book) Buy(symbol string, shares decimal.Decimal, accounts finance.Accounts) (decimal.Decimal, error) {
	if !shares.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: number of shares must be greater than zero", apperr.ErrValidation)
	}
	i := b.index(symbol)
	if i < 0 {
		return decimal.Zero, fmt.Errorf("%w: unknown symbol %q", apperr.ErrValidation, symbol)
	}
	cost := shares.Mul(b.Positions[i].Price)
	available := accounts.Balance(FundingAccount)
	if available.LessThan(cost) {
		return decimal.Zero, fmt.Errorf("%w: %s costs %s, %s holds %s",
			apperr.ErrInsufficientFunds, b.Positions[i].Symbol, finance.Format(cost), FundingAccount, finance.Format(available))
	}
	accounts[FundingAccount] = available.Sub(cost)
	b.Positions[i].Shares = b.Positions[i].Shares.Add(shares)
	return cost, nil
}

// Sell sells shares of symbol, crediting the funding account.
func (b *Book) Sell(symbol string, shares decimal.Decimal, accounts finance.Accounts) (decimal.Decimal, error) {
	if !shares.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: number of shares must be greater than zero", apperr.ErrValidation)
	}
	i := b.index(symbol)
	if i < 0 {
		return decimal.Zero, fmt.Errorf("%w: unknown symbol %q", apperr.ErrValidation, symbol)
	}
	held := b.Positions[i].Shares
	if held.LessThan(shares) {
		return decimal.Zero, fmt.Errorf("%w: hold %s %s, tried to sell %s",
			apperr.ErrInsufficientShares, held, b.Positions[i].Symbol, shares)
	}
	proceeds := shares.Mul(b.Positions[i].Price)
	b.Positions[i].Shares = held.Sub(shares)
	accounts.Credit(FundingAccount, proceeds)
	return proceeds, nil
}
