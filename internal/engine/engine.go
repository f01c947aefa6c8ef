package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"lifesim/internal/apperr"
	"lifesim/internal/calendar"
	"lifesim/internal/finance"
	"lifesim/internal/ledger"
	"lifesim/internal/market"
	"lifesim/internal/story"
)

type Config struct {
	Volatility           string
	EmergencyFundAPR     decimal.Decimal
	OverdraftFee         decimal.Decimal
	RandomEventChance    float64
	FollowUpRandomEvents bool
	Prices               market.PriceSource
	Catalog              *story.Catalog
	Logger               *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Volatility:           "mor",
		EmergencyFundAPR:     decimal.RequireFromString("0.02"),
		OverdraftFee:         decimal.NewFromInt(35),
		FollowUpRandomEvents: true,
	}
}

// Result is the user-facing outcome of a successful mutation.
type Result struct {
	Message string `json:"message"`
}

// Engine owns one game. All mutations are serialized and atomic: a failed
// operation leaves the previous state in place.
type Engine struct {
	mu       sync.Mutex
	cfg      Config
	log      *slog.Logger
	state    *GameState
	scripted story.Source
	random   story.Source
}

func New(state *GameState, cfg Config) (*Engine, error) {
	if state == nil {
		return nil, fmt.Errorf("%w: nil state", apperr.ErrInvalidState)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Catalog == nil {
		c, err := story.DefaultCatalog()
		if err != nil {
			return nil, err
		}
		cfg.Catalog = c
	}
	if state.Story.Delivered == nil {
		state.Story.Delivered = make(map[string]bool)
	}
	if state.Finance.Accounts == nil {
		state.Finance.Accounts = finance.NewAccounts()
	}
	state.RecomputeNetWorth()
	return &Engine{
		cfg:      cfg,
		log:      cfg.Logger,
		state:    state,
		scripted: story.NewScripted(cfg.Catalog),
		random:   story.NewRandomPool(cfg.Catalog),
	}, nil
}

// NewGame starts a game from a named template.
func NewGame(template, playerName string, seed uint64, cfg Config) (*Engine, error) {
	s, err := NewState(template, playerName, seed)
	if err != nil {
		return nil, err
	}
	return New(s, cfg)
}

// Restore rebuilds an engine from a Snapshot.
func Restore(snapshot []byte, cfg Config) (*Engine, error) {
	var s GameState
	if err := json.Unmarshal(snapshot, &s); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", apperr.ErrInvalidState, err)
	}
	if s.CurrentDate.IsZero() {
		return nil, fmt.Errorf("%w: snapshot has no current date", apperr.ErrInvalidState)
	}
	return New(&s, cfg)
}

func (e *Engine) Snapshot() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return json.Marshal(e.state)
}

// State returns a copy of the current state.
func (e *Engine) State() *GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// mutate runs fn against a clone and swaps it in only when fn succeeds.
func (e *Engine) mutate(fn func(s *GameState) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.state.Clone()
	if err := fn(next); err != nil {
		return err
	}
	next.RecomputeNetWorth()
	next.Version++
	e.state = next
	return nil
}

// Streams used by a tick. Each gets its own generator so prices and event
// draws stay independent and reproducible from the seed and the date.
const (
	streamMarket uint64 = iota + 1
	streamEvents
	streamChance
)

func (e *Engine) rng(s *GameState, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(s.Seed^stream<<56, uint64(s.CurrentDate.Unix())^uint64(s.Version)<<32))
}

// AdvanceDay runs one daily tick.
func (e *Engine) AdvanceDay() (*GameState, error) {
	var out *GameState
	err := e.mutate(func(s *GameState) error {
		if err := e.tick(s); err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

// AdvanceMonth runs daily ticks until the same day next month. It stops
// early, without error, when a tick delivers an event.
func (e *Engine) AdvanceMonth() (*GameState, int, error) {
	start := e.State()
	if start.CurrentDate.IsZero() {
		return nil, 0, fmt.Errorf("%w: current date is unset", apperr.ErrInvalidState)
	}
	target := calendar.AddMonth(start.CurrentDate)
	return e.AdvanceUntil(target)
}

// AdvanceDays runs up to n daily ticks, stopping early when an event is
// delivered.
func (e *Engine) AdvanceDays(n int) (*GameState, int, error) {
	if n <= 0 {
		return nil, 0, fmt.Errorf("%w: day count must be greater than zero", apperr.ErrValidation)
	}
	start := e.State()
	return e.AdvanceUntil(start.CurrentDate.AddDate(0, 0, n))
}

// AdvanceUntil ticks until target is reached or an event is pending.
func (e *Engine) AdvanceUntil(target time.Time) (*GameState, int, error) {
	days := 0
	for {
		s, err := e.AdvanceDay()
		if err != nil {
			if days > 0 && errors.Is(err, apperr.ErrEventPending) {
				return e.State(), days, nil
			}
			return nil, days, err
		}
		days++
		if len(s.Story.Pending) > 0 || !s.CurrentDate.Before(target) {
			return s, days, nil
		}
	}
}

func (e *Engine) BuyStock(symbol string, shares decimal.Decimal) (Result, error) {
	var res Result
	err := e.mutate(func(s *GameState) error {
		sym := market.NormalizeSymbol(symbol)
		cost, err := s.Markets.Buy(sym, shares, s.Finance.Accounts)
		if err != nil {
			return err
		}
		res.Message = fmt.Sprintf("Bought %s shares of %s successfully.", shares, sym)
		return e.logAction(s, "Bought "+sym, res.Message, map[string]decimal.Decimal{market.FundingAccount: cost.Neg()})
	})
	return res, err
}

func (e *Engine) SellStock(symbol string, shares decimal.Decimal) (Result, error) {
	var res Result
	err := e.mutate(func(s *GameState) error {
		sym := market.NormalizeSymbol(symbol)
		proceeds, err := s.Markets.Sell(sym, shares, s.Finance.Accounts)
		if err != nil {
			return err
		}
		res.Message = fmt.Sprintf("Sold %s shares of %s successfully.", shares, sym)
		return e.logAction(s, "Sold "+sym, res.Message, map[string]decimal.Decimal{market.FundingAccount: proceeds})
	})
	return res, err
}

func (e *Engine) TransferFunds(from, to string, amount decimal.Decimal) (Result, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	var res Result
	err := e.mutate(func(s *GameState) error {
		if err := s.Finance.Accounts.Transfer(from, to, amount); err != nil {
			return err
		}
		res.Message = fmt.Sprintf("Transferred %s successfully.", finance.Format(amount))
		return e.logAction(s, "Transfer", fmt.Sprintf("%s from %s to %s", finance.Format(amount), from, to),
			map[string]decimal.Decimal{from: amount.Neg(), to: amount})
	})
	return res, err
}

func (e *Engine) UpdateStats(health, stress, happiness int) (Stats, error) {
	var out Stats
	err := e.mutate(func(s *GameState) error {
		s.Stats = s.Stats.Add(health, stress, happiness)
		out = s.Stats
		return nil
	})
	return out, err
}

func (e *Engine) ApplyEventStateChanges(changes story.StateChanges) error {
	return e.mutate(func(s *GameState) error {
		_, _, err := applyChanges(s, changes)
		return err
	})
}

func (e *Engine) Update401kSettings(contributionPercent int, strategy string) error {
	return e.mutate(func(s *GameState) error {
		if err := finance.ValidateContribution(contributionPercent); err != nil {
			return err
		}
		sym := market.NormalizeSymbol(strategy)
		if _, ok := s.Markets.Position(sym); !ok {
			return fmt.Errorf("%w: unknown strategy symbol %q", apperr.ErrValidation, strategy)
		}
		s.Finance.Retirement.ContributionPercent = contributionPercent
		s.Finance.Retirement.Strategy = sym
		return nil
	})
}

// AddLedgerEntry appends entry, stamping it with the current date when unset.
func (e *Engine) AddLedgerEntry(entry ledger.Entry) (ledger.Entry, error) {
	var out ledger.Entry
	err := e.mutate(func(s *GameState) error {
		if entry.Date.IsZero() {
			entry.Date = s.CurrentDate
		}
		if entry.DateLabel == "" {
			entry.DateLabel = calendar.FormatDate(entry.Date)
		}
		var err error
		out, err = s.Ledger.Append(entry)
		return err
	})
	return out, err
}

func (e *Engine) PendingEvent() (story.Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ev, ok := e.state.PendingEvent()
	if !ok {
		return story.Event{}, false
	}
	return ev.Clone(), true
}

// ResolveEvent applies the chosen payload of the pending event, records it in
// the ledger and, after a scripted event, may queue a follow-up random event.
func (e *Engine) ResolveEvent(choiceID string) (Result, error) {
	var res Result
	err := e.mutate(func(s *GameState) error {
		ev, ok := s.PendingEvent()
		if !ok {
			return apperr.ErrNoPendingEvent
		}
		choice, err := ev.Choice(strings.ToLower(strings.TrimSpace(choiceID)))
		if err != nil {
			return err
		}
		effects, financial, err := applyChanges(s, choice.Changes)
		if err != nil {
			return err
		}
		entryType := ledger.TypeDecision
		if ev.Kind == story.KindRandom {
			entryType = ledger.TypeRandomEvent
		}
		entry := ledger.Entry{
			Type:        entryType,
			Title:       ev.Title,
			Description: ev.Description,
			Choice:      choice.Label,
			Date:        s.CurrentDate,
			DateLabel:   calendar.FormatDate(s.CurrentDate),
			Effects:     &effects,
		}
		if len(financial) > 0 {
			entry.FinancialChanges = financial
		}
		if _, err := s.Ledger.Append(entry); err != nil {
			return err
		}
		s.Story.Pending = s.Story.Pending[1:]
		res.Message = fmt.Sprintf("%s: %s", ev.Title, choice.Label)
		e.log.Info("event resolved", "key", ev.Key, "choice", choice.ID, "date", calendar.Key(s.CurrentDate))

		if e.cfg.FollowUpRandomEvents && ev.Scripted() {
			e.drawRandom(s)
		}
		return nil
	})
	return res, err
}

func (e *Engine) GetStockPrice(symbol string) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Markets.Price(symbol)
}

func (e *Engine) GetTotalIncome() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.TotalIncome()
}

func (e *Engine) GetTotalExpenses() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.TotalExpenses()
}

func (e *Engine) logAction(s *GameState, title, description string, changes map[string]decimal.Decimal) error {
	_, err := s.Ledger.Append(ledger.Entry{
		Type:             ledger.TypeAction,
		Title:            title,
		Description:      description,
		Date:             s.CurrentDate,
		DateLabel:        calendar.FormatDate(s.CurrentDate),
		FinancialChanges: changes,
	})
	return err
}
