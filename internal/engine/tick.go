package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"lifesim/internal/apperr"
	"lifesim/internal/calendar"
	"lifesim/internal/finance"
	"lifesim/internal/ledger"
	"lifesim/internal/market"
	"lifesim/internal/story"
)

var (
	two    = decimal.NewFromInt(2)
	twelve = decimal.NewFromInt(12)
)

// tick runs the daily pipeline on s: calendar, payroll, billing, market,
// net worth, then event evaluation against the new date.
func (e *Engine) tick(s *GameState) error {
	if len(s.Story.Pending) > 0 {
		return fmt.Errorf("%w: resolve %q first", apperr.ErrEventPending, s.Story.Pending[0].Title)
	}
	t, err := calendar.Advance(s.CurrentDate)
	if err != nil {
		return err
	}
	s.CurrentDate = t.Date
	if t.YearChanged {
		s.Player.Age++
	}
	if t.IsPayday {
		e.payroll(s)
	}
	if t.IsFirstOfMonth {
		e.billing(s)
	}
	rng := e.rng(s, streamMarket)
	s.Markets.Tick(t.Date, e.cfg.Prices, market.Walker{Rand: rng, MaxStep: market.VolatilityStep(e.cfg.Volatility)}, t.IsFirstOfMonth)

	nw := s.RecomputeNetWorth()
	if t.IsFirstOfMonth {
		s.Finance.NetWorthHistory = s.Finance.NetWorthHistory.Append(calendar.PeriodLabel(t.Date), nw)
	} else {
		s.Finance.NetWorthHistory = s.Finance.NetWorthHistory.UpdateLast(calendar.PeriodLabel(t.Date), nw)
	}

	e.evaluateEvents(s)
	e.log.Debug("tick", "date", calendar.Key(t.Date), "checking", s.Finance.Accounts.Balance(finance.Checking).String(), "net_worth", nw.String())
	return nil
}

// payroll pays half the monthly salary net of half the monthly 401k
// contribution, which buys strategy shares at the current price.
func (e *Engine) payroll(s *GameState) {
	half := s.Income.Salary.Div(two)
	contribution := s.Finance.Retirement.MonthlyContribution(s.Income.Salary).Div(two)
	if contribution.IsPositive() {
		price, err := s.Markets.Price(s.Finance.Retirement.Strategy)
		if err != nil || !price.IsPositive() {
			e.log.Warn("401k strategy unpriced, contribution skipped", "strategy", s.Finance.Retirement.Strategy)
			contribution = decimal.Zero
		} else {
			s.Finance.Retirement.Buy(contribution, price)
		}
	}
	s.Finance.Accounts.Credit(finance.Checking, half.Sub(contribution))
}

// billing runs on the first of the month.
func (e *Engine) billing(s *GameState) {
	debits := s.Expenses.Housing(s.Player.HousingStatus).Add(s.Expenses.Utilities)
	s.Finance.Accounts.Credit(finance.Checking, debits.Neg())
	if s.Finance.Accounts.Balance(finance.Checking).IsNegative() && e.cfg.OverdraftFee.IsPositive() {
		s.Finance.Accounts.Credit(finance.Checking, e.cfg.OverdraftFee.Neg())
		e.log.Info("overdraft fee charged", "date", calendar.Key(s.CurrentDate), "checking", s.Finance.Accounts.Balance(finance.Checking).String())
		_, _ = s.Ledger.Append(ledger.Entry{
			Type:             ledger.TypeAction,
			Title:            "Overdraft Fee",
			Description:      fmt.Sprintf("Checking overdrawn after bills; %s fee charged.", finance.Format(e.cfg.OverdraftFee)),
			Date:             s.CurrentDate,
			DateLabel:        calendar.FormatDate(s.CurrentDate),
			FinancialChanges: map[string]decimal.Decimal{finance.Checking: e.cfg.OverdraftFee.Neg()},
		})
	}

	fund := s.Finance.Accounts.Balance(finance.EmergencyFund)
	if fund.IsPositive() && e.cfg.EmergencyFundAPR.IsPositive() {
		rate := decimal.NewFromInt(1).Add(e.cfg.EmergencyFundAPR.Div(twelve))
		s.Finance.Accounts[finance.EmergencyFund] = fund.Mul(rate).Round(2)
	}

	if price, err := s.Markets.Price(s.Finance.Retirement.Strategy); err == nil {
		s.Finance.Accounts[finance.Retirement401k] = s.Finance.Retirement.Mark(price)
	}
}

func (e *Engine) evaluateEvents(s *GameState) {
	ctx := e.storyContext(s)
	if ev, ok := e.scripted.Next(ctx); ok {
		e.deliver(s, ev)
		return
	}
	if e.cfg.RandomEventChance > 0 && e.rng(s, streamChance).Float64() < e.cfg.RandomEventChance {
		e.drawRandom(s)
	}
}

func (e *Engine) drawRandom(s *GameState) {
	if ev, ok := e.random.Next(e.storyContext(s)); ok {
		e.deliver(s, ev)
	}
}

func (e *Engine) deliver(s *GameState, ev story.Event) {
	if ev.Scripted() {
		if s.Story.Delivered[ev.Key] {
			return
		}
		s.Story.Delivered[ev.Key] = true
	}
	s.Story.Pending = append(s.Story.Pending, ev)
	e.log.Info("event delivered", "key", ev.Key, "title", ev.Title, "date", calendar.Key(s.CurrentDate))
}

func (e *Engine) storyContext(s *GameState) story.Context {
	rng := e.rng(s, streamEvents)
	return story.Context{
		Date:      s.CurrentDate,
		Age:       s.Player.Age,
		Health:    s.Stats.Health,
		Stress:    s.Stats.Stress,
		Happiness: s.Stats.Happiness,
		Delivered: s.Story.Delivered,
		Draw:      rng.IntN,
	}
}
