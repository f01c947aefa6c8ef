package market

import (
	"math/rand/v2"
	"strings"

	"github.com/shopspring/decimal"
)

var minPrice = decimal.NewFromInt(1)

// VolatilityStep maps a volatility mode to the maximum daily move.
func VolatilityStep(mode string) float64 {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "calm":
		return 0.02
	case "wild":
		return 0.10
	default:
		return 0.05
	}
}

// Walker moves a price by a uniform factor in [-MaxStep, MaxStep).
type Walker struct {
	Rand    *rand.Rand
	MaxStep float64
}

func (w Walker) Step(price decimal.Decimal) decimal.Decimal {
	if w.Rand == nil {
		return floorPrice(price)
	}
	ret := (w.Rand.Float64()*2 - 1) * w.MaxStep
	next := price.Mul(decimal.NewFromFloat(1 + ret)).Round(2)
	return floorPrice(next)
}

func floorPrice(p decimal.Decimal) decimal.Decimal {
	if p.LessThan(minPrice) {
		return minPrice
	}
	return p
}
