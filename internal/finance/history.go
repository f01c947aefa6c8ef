package finance

import (
	"slices"

	"github.com/shopspring/decimal"
)

// HistoryCap bounds every period series.
const HistoryCap = 12

type Point struct {
	Label string          `json:"label"`
	Value decimal.Decimal `json:"value"`
}

// History is a sliding window of at most HistoryCap points, oldest first.
type History []Point

func (h History) Append(label string, v decimal.Decimal) History {
	h = append(h, Point{Label: label, Value: v})
	if over := len(h) - HistoryCap; over > 0 {
		h = slices.Delete(h, 0, over)
	}
	return h
}

// UpdateLast overwrites the newest point's value, appending one when empty.
func (h History) UpdateLast(label string, v decimal.Decimal) History {
	if len(h) == 0 {
		return h.Append(label, v)
	}
	h[len(h)-1].Value = v
	return h
}

func (h History) Clone() History {
	return slices.Clone(h)
}
