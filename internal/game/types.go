package game

import (
	"time"

	"github.com/shopspring/decimal"

	"lifesim/internal/calendar"
	"lifesim/internal/engine"
	"lifesim/internal/finance"
	"lifesim/internal/ledger"
	"lifesim/internal/story"
)

type Dashboard struct {
	GameID          string                     `json:"game_id"`
	Version         int64                      `json:"version"`
	Template        string                     `json:"template"`
	Date            string                     `json:"date"`
	DateLabel       string                     `json:"date_label"`
	Player          engine.Player              `json:"player"`
	Stats           engine.Stats               `json:"stats"`
	Income          engine.Income              `json:"income"`
	Expenses        engine.Expenses            `json:"expenses"`
	TotalIncome     decimal.Decimal            `json:"total_income"`
	TotalExpenses   decimal.Decimal            `json:"total_expenses"`
	Accounts        []AccountView              `json:"accounts"`
	Retirement      finance.Plan401k           `json:"retirement401k"`
	NetWorth        decimal.Decimal            `json:"net_worth"`
	NetWorthHistory finance.History            `json:"net_worth_history"`
	Positions       []PositionView             `json:"positions"`
	PriceHistory    map[string]finance.History `json:"price_history"`
	PendingEvent    *story.Event               `json:"pending_event,omitempty"`
}

type AccountView struct {
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

type PositionView struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Shares decimal.Decimal `json:"shares"`
	Price  decimal.Decimal `json:"price"`
	Value  decimal.Decimal `json:"value"`
}

type StockDetail struct {
	PositionView
	History finance.History `json:"history"`
}

type GameSummary struct {
	ID           string          `json:"id"`
	PlayerName   string          `json:"player_name"`
	Template     string          `json:"template"`
	Date         string          `json:"date"`
	NetWorth     decimal.Decimal `json:"net_worth"`
	EventPending bool            `json:"event_pending"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type NewGameInput struct {
	Template   string `json:"template"`
	PlayerName string `json:"player_name"`
	Seed       uint64 `json:"seed"`
}

type AdvanceInput struct {
	Unit  string `json:"unit"`
	Count int    `json:"count"`
}

type AdvanceResult struct {
	Days      int       `json:"days"`
	Stopped   bool      `json:"stopped_on_event"`
	Dashboard Dashboard `json:"dashboard"`
}

type OrderInput struct {
	Symbol string          `json:"symbol"`
	Side   string          `json:"side"`
	Shares decimal.Decimal `json:"shares"`
}

type TransferInput struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

type StatsInput struct {
	Health    int `json:"health"`
	Stress    int `json:"stress"`
	Happiness int `json:"happiness"`
}

type RetirementInput struct {
	ContributionPercent int    `json:"contribution_percent"`
	Strategy            string `json:"strategy"`
}

type LedgerInput struct {
	Type        ledger.EntryType `json:"type"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Choice      string           `json:"choice"`
}

// ActionResult pairs the engine's message with the dashboard after the change.
type ActionResult struct {
	Message   string    `json:"message"`
	Dashboard Dashboard `json:"dashboard"`
}

// NewDashboard flattens s into the view served to clients.
func NewDashboard(id string, s *engine.GameState) Dashboard {
	d := Dashboard{
		GameID:          id,
		Version:         s.Version,
		Template:        s.Template,
		Date:            calendar.Key(s.CurrentDate),
		DateLabel:       calendar.FormatDate(s.CurrentDate),
		Player:          s.Player,
		Stats:           s.Stats,
		Income:          s.Income,
		Expenses:        s.Expenses,
		TotalIncome:     s.TotalIncome(),
		TotalExpenses:   s.TotalExpenses(),
		Retirement:      s.Finance.Retirement,
		NetWorth:        s.Finance.NetWorth,
		NetWorthHistory: s.Finance.NetWorthHistory.Clone(),
		PriceHistory:    make(map[string]finance.History, len(s.Markets.History)),
	}
	for _, name := range s.Finance.Accounts.Names() {
		d.Accounts = append(d.Accounts, AccountView{Name: name, Balance: s.Finance.Accounts.Balance(name)})
	}
	for _, p := range s.Markets.Positions {
		d.Positions = append(d.Positions, positionView(p.Symbol, p.Name, p.Shares, p.Price))
		d.PriceHistory[p.Symbol] = s.Markets.History[p.Symbol].Clone()
	}
	if ev, ok := s.PendingEvent(); ok {
		ev = ev.Clone()
		d.PendingEvent = &ev
	}
	return d
}

func positionView(symbol, name string, shares, price decimal.Decimal) PositionView {
	return PositionView{Symbol: symbol, Name: name, Shares: shares, Price: price, Value: shares.Mul(price)}
}
