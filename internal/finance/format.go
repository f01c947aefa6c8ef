package finance

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const Currency = money.USD

// Format renders v as a currency string, e.g. "$1,234.56".
func Format(v decimal.Decimal) string {
	cur := money.New(0, Currency).Currency()
	cents := v.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(cents, Currency).Display()
}
