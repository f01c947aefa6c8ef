// Package game runs player operations against stored games. Each mutation
// restores the engine from its snapshot, applies the change and writes the
// new snapshot back inside one store update.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"

	"lifesim/internal/apperr"
	"lifesim/internal/calendar"
	"lifesim/internal/engine"
	"lifesim/internal/ledger"
	"lifesim/internal/market"
	"lifesim/internal/story"
	"lifesim/internal/store"
)

type Service struct {
	store  store.Store
	log    *slog.Logger
	cfg    engine.Config
	broker *Broker
}

func NewService(st store.Store, cfg engine.Config, logger *slog.Logger) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Catalog == nil {
		c, err := story.DefaultCatalog()
		if err != nil {
			return nil, fmt.Errorf("load event catalog: %w", err)
		}
		cfg.Catalog = c
	}
	cfg.Logger = logger
	return &Service{
		store:  st,
		log:    logger,
		cfg:    cfg,
		broker: NewBroker(),
	}, nil
}

func (s *Service) Broker() *Broker { return s.broker }

func (s *Service) NewGame(ctx context.Context, in NewGameInput) (Dashboard, error) {
	seed := in.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	e, err := engine.NewGame(in.Template, in.PlayerName, seed, s.cfg)
	if err != nil {
		return Dashboard{}, err
	}
	return s.create(ctx, e)
}

// Import stores a snapshot from Snapshot as a new game.
func (s *Service) Import(ctx context.Context, snapshot []byte) (Dashboard, error) {
	e, err := engine.Restore(snapshot, s.cfg)
	if err != nil {
		return Dashboard{}, err
	}
	return s.create(ctx, e)
}

func (s *Service) create(ctx context.Context, e *engine.Engine) (Dashboard, error) {
	snap, err := e.Snapshot()
	if err != nil {
		return Dashboard{}, err
	}
	id := uuid.NewString()
	if err := s.store.Create(ctx, id, snap); err != nil {
		return Dashboard{}, err
	}
	st := e.State()
	s.log.Info("game created", "game_id", id, "template", st.Template, "player", st.Player.Name, "date", calendar.Key(st.CurrentDate))
	return NewDashboard(id, st), nil
}

func (s *Service) Snapshot(ctx context.Context, id string) ([]byte, error) {
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.Snapshot()
}

func (s *Service) State(ctx context.Context, id string) (*engine.GameState, error) {
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.State(), nil
}

func (s *Service) Dashboard(ctx context.Context, id string) (Dashboard, error) {
	st, err := s.State(ctx, id)
	if err != nil {
		return Dashboard{}, err
	}
	return NewDashboard(id, st), nil
}

// Advance runs in.Count days or months. It stops early, without error, when
// an event is delivered.
func (s *Service) Advance(ctx context.Context, id string, in AdvanceInput) (AdvanceResult, error) {
	unit, err := normalizeUnit(in.Unit)
	if err != nil {
		return AdvanceResult{}, err
	}
	if err := validateCount(unit, in.Count); err != nil {
		return AdvanceResult{}, err
	}
	var out AdvanceResult
	st, err := s.mutate(ctx, id, func(e *engine.Engine) error {
		out.Days = 0
		if unit == UnitDay {
			_, days, err := e.AdvanceDays(in.Count)
			out.Days = days
			return err
		}
		for range in.Count {
			st, days, err := e.AdvanceMonth()
			out.Days += days
			if err != nil {
				return err
			}
			if len(st.Story.Pending) > 0 {
				break
			}
		}
		return nil
	})
	if err != nil {
		return AdvanceResult{}, err
	}
	out.Dashboard = NewDashboard(id, st)
	out.Stopped = out.Dashboard.PendingEvent != nil
	return out, nil
}

func (s *Service) AdvanceDay(ctx context.Context, id string) (AdvanceResult, error) {
	return s.Advance(ctx, id, AdvanceInput{Unit: UnitDay, Count: 1})
}

func (s *Service) AdvanceMonth(ctx context.Context, id string) (AdvanceResult, error) {
	return s.Advance(ctx, id, AdvanceInput{Unit: UnitMonth, Count: 1})
}

func (s *Service) PlaceOrder(ctx context.Context, id string, in OrderInput) (ActionResult, error) {
	side, err := normalizeSide(in.Side)
	if err != nil {
		return ActionResult{}, err
	}
	symbol := market.NormalizeSymbol(in.Symbol)
	if err := ValidateSymbol(symbol); err != nil {
		return ActionResult{}, err
	}
	if err := validatePositive("shares", in.Shares); err != nil {
		return ActionResult{}, err
	}
	return s.act(ctx, id, func(e *engine.Engine) (engine.Result, error) {
		if side == SideBuy {
			return e.BuyStock(symbol, in.Shares)
		}
		return e.SellStock(symbol, in.Shares)
	})
}

func (s *Service) Buy(ctx context.Context, id string, in OrderInput) (ActionResult, error) {
	in.Side = SideBuy
	return s.PlaceOrder(ctx, id, in)
}

func (s *Service) Sell(ctx context.Context, id string, in OrderInput) (ActionResult, error) {
	in.Side = SideSell
	return s.PlaceOrder(ctx, id, in)
}

func (s *Service) Transfer(ctx context.Context, id string, in TransferInput) (ActionResult, error) {
	from := strings.TrimSpace(in.From)
	to := strings.TrimSpace(in.To)
	return s.act(ctx, id, func(e *engine.Engine) (engine.Result, error) {
		return e.TransferFunds(from, to, in.Amount)
	})
}

func (s *Service) UpdateStats(ctx context.Context, id string, in StatsInput) (Dashboard, error) {
	st, err := s.mutate(ctx, id, func(e *engine.Engine) error {
		_, err := e.UpdateStats(in.Health, in.Stress, in.Happiness)
		return err
	})
	if err != nil {
		return Dashboard{}, err
	}
	return NewDashboard(id, st), nil
}

func (s *Service) ApplyChanges(ctx context.Context, id string, changes story.StateChanges) (Dashboard, error) {
	if len(changes) == 0 {
		return Dashboard{}, fmt.Errorf("%w: changes are empty", apperr.ErrValidation)
	}
	st, err := s.mutate(ctx, id, func(e *engine.Engine) error {
		return e.ApplyEventStateChanges(changes)
	})
	if err != nil {
		return Dashboard{}, err
	}
	return NewDashboard(id, st), nil
}

func (s *Service) Update401k(ctx context.Context, id string, in RetirementInput) (Dashboard, error) {
	st, err := s.mutate(ctx, id, func(e *engine.Engine) error {
		return e.Update401kSettings(in.ContributionPercent, in.Strategy)
	})
	if err != nil {
		return Dashboard{}, err
	}
	return NewDashboard(id, st), nil
}

func (s *Service) AddLedgerEntry(ctx context.Context, id string, in LedgerInput) (ledger.Entry, error) {
	if in.Type == "" {
		in.Type = ledger.TypeAction
	}
	var out ledger.Entry
	_, err := s.mutate(ctx, id, func(e *engine.Engine) error {
		var err error
		out, err = e.AddLedgerEntry(ledger.Entry{
			Type:        in.Type,
			Title:       strings.TrimSpace(in.Title),
			Description: strings.TrimSpace(in.Description),
			Choice:      strings.TrimSpace(in.Choice),
		})
		return err
	})
	return out, err
}

func (s *Service) PendingEvent(ctx context.Context, id string) (story.Event, bool, error) {
	e, err := s.load(ctx, id)
	if err != nil {
		return story.Event{}, false, err
	}
	ev, ok := e.PendingEvent()
	return ev, ok, nil
}

func (s *Service) ResolveEvent(ctx context.Context, id, choice string) (ActionResult, error) {
	return s.act(ctx, id, func(e *engine.Engine) (engine.Result, error) {
		return e.ResolveEvent(choice)
	})
}

// Ledger returns up to limit entries, newest first.
func (s *Service) Ledger(ctx context.Context, id string, limit int) ([]ledger.Entry, error) {
	st, err := s.State(ctx, id)
	if err != nil {
		return nil, err
	}
	return st.Ledger.Recent(ClampLedgerLimit(limit)), nil
}

func (s *Service) StockQuote(ctx context.Context, id, symbol string) (StockDetail, error) {
	st, err := s.State(ctx, id)
	if err != nil {
		return StockDetail{}, err
	}
	sym := market.NormalizeSymbol(symbol)
	p, ok := st.Markets.Position(sym)
	if !ok {
		return StockDetail{}, fmt.Errorf("%w: unknown symbol %q", apperr.ErrValidation, symbol)
	}
	return StockDetail{
		PositionView: positionView(p.Symbol, p.Name, p.Shares, p.Price),
		History:      st.Markets.History[p.Symbol].Clone(),
	}, nil
}

func (s *Service) Summary(ctx context.Context, id string) (GameSummary, error) {
	st, err := s.State(ctx, id)
	if err != nil {
		return GameSummary{}, err
	}
	return summarize(id, st), nil
}

func (s *Service) List(ctx context.Context) ([]GameSummary, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]GameSummary, 0, len(records))
	for _, r := range records {
		st, err := s.State(ctx, r.ID)
		if err != nil {
			s.log.Warn("skipping unreadable game", "game_id", r.ID, "error", err)
			continue
		}
		sum := summarize(r.ID, st)
		sum.UpdatedAt = r.UpdatedAt
		out = append(out, sum)
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("game deleted", "game_id", id)
	return nil
}

func (s *Service) load(ctx context.Context, id string) (*engine.Engine, error) {
	snap, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return engine.Restore(snap, s.cfg)
}

// mutate runs fn inside one store update and publishes the resulting
// dashboard. Nothing is written when fn fails.
func (s *Service) mutate(ctx context.Context, id string, fn func(e *engine.Engine) error) (*engine.GameState, error) {
	var out *engine.GameState
	err := s.store.Update(ctx, id, func(snap []byte) ([]byte, error) {
		e, err := engine.Restore(snap, s.cfg)
		if err != nil {
			return nil, err
		}
		if err := fn(e); err != nil {
			return nil, err
		}
		out = e.State()
		return e.Snapshot()
	})
	if err != nil {
		if !apperr.IsRejection(err) && !errors.Is(err, apperr.ErrEventPending) && !errors.Is(err, apperr.ErrNoPendingEvent) && !errors.Is(err, apperr.ErrGameNotFound) {
			s.log.Error("game update failed", "game_id", id, "error", err)
		}
		return nil, err
	}
	s.broker.Publish(NewDashboard(id, out))
	return out, nil
}

func (s *Service) act(ctx context.Context, id string, fn func(e *engine.Engine) (engine.Result, error)) (ActionResult, error) {
	var res engine.Result
	st, err := s.mutate(ctx, id, func(e *engine.Engine) error {
		var err error
		res, err = fn(e)
		return err
	})
	if err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Message: res.Message, Dashboard: NewDashboard(id, st)}, nil
}

func summarize(id string, st *engine.GameState) GameSummary {
	return GameSummary{
		ID:           id,
		PlayerName:   st.Player.Name,
		Template:     st.Template,
		Date:         calendar.Key(st.CurrentDate),
		NetWorth:     st.Finance.NetWorth,
		EventPending: len(st.Story.Pending) > 0,
	}
}
