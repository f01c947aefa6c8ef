package market

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"lifesim/internal/calendar"
)

// PriceSource supplies historical prices. PriceAsOf returns the most recent
// price on or before date.
type PriceSource interface {
	PriceAsOf(symbol string, date time.Time) (decimal.Decimal, bool)
}

type Quote struct {
	Date  time.Time
	Close decimal.Decimal
}

// SeriesSource is an in-memory PriceSource of sorted daily quotes.
type SeriesSource struct {
	series map[string][]Quote
}

func NewSeriesSource() *SeriesSource {
	return &SeriesSource{series: make(map[string][]Quote)}
}

// Add inserts a quote, replacing any quote already stored for that day.
func (s *SeriesSource) Add(symbol string, on time.Time, close decimal.Decimal) {
	symbol = NormalizeSymbol(symbol)
	on = calendar.Day(on)
	q := s.series[symbol]
	i, found := slices.BinarySearchFunc(q, on, compareQuote)
	if found {
		q[i].Close = close
		return
	}
	s.series[symbol] = slices.Insert(q, i, Quote{Date: on, Close: close})
}

func (s *SeriesSource) Symbols() []string {
	out := make([]string, 0, len(s.series))
	for k := range s.series {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func (s *SeriesSource) PriceAsOf(symbol string, date time.Time) (decimal.Decimal, bool) {
	q := s.series[NormalizeSymbol(symbol)]
	i, found := slices.BinarySearchFunc(q, calendar.Day(date), compareQuote)
	if found {
		return q[i].Close, true
	}
	if i == 0 {
		return decimal.Zero, false
	}
	return q[i-1].Close, true
}

func compareQuote(q Quote, t time.Time) int {
	return q.Date.Compare(t)
}

type seriesRow struct {
	Date  string          `json:"date"`
	Close decimal.Decimal `json:"close"`
}

// ReadSeries decodes {"SYM": [{"date":"2009-01-02","close":"12.5"}, ...]}.
func ReadSeries(r io.Reader) (*SeriesSource, error) {
	var raw map[string][]seriesRow
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode price series: %w", err)
	}
	src := NewSeriesSource()
	for symbol, rows := range raw {
		for _, row := range rows {
			on, err := calendar.Parse(row.Date)
			if err != nil {
				return nil, fmt.Errorf("price series %s: %w", symbol, err)
			}
			if !row.Close.IsPositive() {
				return nil, fmt.Errorf("price series %s %s: close must be positive", symbol, row.Date)
			}
			src.Add(symbol, on, row.Close)
		}
	}
	return src, nil
}

func LoadSeriesFile(path string) (*SeriesSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSeries(f)
}
