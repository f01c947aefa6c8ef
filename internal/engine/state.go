// Package engine advances a GameState one simulated day at a time and applies
// every player-facing mutation as a single copy-on-write step.
package engine

import (
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"lifesim/internal/finance"
	"lifesim/internal/ledger"
	"lifesim/internal/market"
	"lifesim/internal/story"
)

type HousingStatus string

const (
	Renting HousingStatus = "renting"
	Owner   HousingStatus = "owner"
)

const (
	StatMin = 0
	StatMax = 100
)

type Player struct {
	Name          string        `json:"name"`
	Age           int           `json:"age"`
	Occupation    string        `json:"occupation"`
	Location      string        `json:"location"`
	HousingStatus HousingStatus `json:"housing_status"`
}

type Stats struct {
	Health    int `json:"health"`
	Stress    int `json:"stress"`
	Happiness int `json:"happiness"`
}

// Add applies deltas and clamps every stat to [0,100].
func (s Stats) Add(health, stress, happiness int) Stats {
	return Stats{
		Health:    clampStat(s.Health + health),
		Stress:    clampStat(s.Stress + stress),
		Happiness: clampStat(s.Happiness + happiness),
	}
}

func clampStat(v int) int {
	return min(max(v, StatMin), StatMax)
}

// Income rates are monthly.
type Income struct {
	Salary      decimal.Decimal `json:"salary"`
	Investments decimal.Decimal `json:"investments"`
	Other       decimal.Decimal `json:"other"`
}

// Expenses rates are monthly. Only one of Rent and Mortgage is billed.
type Expenses struct {
	Rent           decimal.Decimal `json:"rent"`
	Mortgage       decimal.Decimal `json:"mortgage"`
	Utilities      decimal.Decimal `json:"utilities"`
	Food           decimal.Decimal `json:"food"`
	Transportation decimal.Decimal `json:"transportation"`
	Insurance      decimal.Decimal `json:"insurance"`
	Entertainment  decimal.Decimal `json:"entertainment"`
	Other          decimal.Decimal `json:"other"`
}

// Housing returns the active housing cost for status.
func (e Expenses) Housing(status HousingStatus) decimal.Decimal {
	if status == Owner {
		return e.Mortgage
	}
	return e.Rent
}

func (e *Expenses) field(name string) *decimal.Decimal {
	switch name {
	case "rent":
		return &e.Rent
	case "mortgage":
		return &e.Mortgage
	case "utilities":
		return &e.Utilities
	case "food":
		return &e.Food
	case "transportation":
		return &e.Transportation
	case "insurance":
		return &e.Insurance
	case "entertainment":
		return &e.Entertainment
	case "other":
		return &e.Other
	}
	return nil
}

type Finance struct {
	Accounts        finance.Accounts `json:"asset_allocation"`
	Retirement      finance.Plan401k `json:"retirement401k"`
	NetWorth        decimal.Decimal  `json:"net_worth"`
	NetWorthHistory finance.History  `json:"net_worth_history"`
}

type StoryProgress struct {
	Delivered map[string]bool `json:"delivered"`
	Pending   []story.Event   `json:"pending,omitempty"`
}

// GameState is the whole simulation aggregate. The engine never mutates a
// state that has been handed out; it clones, mutates the clone and swaps.
type GameState struct {
	Version     int64         `json:"version"`
	Seed        uint64        `json:"seed"`
	Template    string        `json:"template"`
	CurrentDate time.Time     `json:"current_date"`
	Player      Player        `json:"player"`
	Stats       Stats         `json:"stats"`
	Income      Income        `json:"income"`
	Expenses    Expenses      `json:"expenses"`
	Finance     Finance       `json:"finance"`
	Markets     market.Book   `json:"markets"`
	Ledger      ledger.Ledger `json:"ledger"`
	Story       StoryProgress `json:"story"`
}

func (s *GameState) Clone() *GameState {
	out := *s
	out.Finance.Accounts = s.Finance.Accounts.Clone()
	out.Finance.NetWorthHistory = s.Finance.NetWorthHistory.Clone()
	out.Markets = s.Markets.Clone()
	out.Ledger = s.Ledger.Clone()
	out.Story.Delivered = maps.Clone(s.Story.Delivered)
	out.Story.Pending = slices.Clone(s.Story.Pending)
	for i, e := range out.Story.Pending {
		out.Story.Pending[i] = e.Clone()
	}
	return &out
}

// RecomputeNetWorth derives net worth from balances and positions.
func (s *GameState) RecomputeNetWorth() decimal.Decimal {
	s.Finance.NetWorth = finance.NetWorth(s.Finance.Accounts, s.Markets.Value())
	return s.Finance.NetWorth
}

func (s *GameState) TotalIncome() decimal.Decimal {
	return s.Income.Salary.Add(s.Income.Investments).Add(s.Income.Other)
}

// TotalExpenses counts only the active housing line.
func (s *GameState) TotalExpenses() decimal.Decimal {
	e := s.Expenses
	return e.Housing(s.Player.HousingStatus).
		Add(e.Utilities).
		Add(e.Food).
		Add(e.Transportation).
		Add(e.Insurance).
		Add(e.Entertainment).
		Add(e.Other)
}

func (s *GameState) PendingEvent() (story.Event, bool) {
	if len(s.Story.Pending) == 0 {
		return story.Event{}, false
	}
	return s.Story.Pending[0], true
}
