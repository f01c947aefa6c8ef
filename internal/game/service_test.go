package game

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"lifesim/internal/apperr"
	"lifesim/internal/engine"
	"lifesim/internal/finance"
	"lifesim/internal/ledger"
	"lifesim/internal/story"
	"lifesim/internal/store"
)

const testCatalog = `
storyline:
  - date: "2009-01-03"
    title: "Start Investing"
    accept:
      changes: {checking: -300, investments: 300}
    decline:
      changes: {}
good:
  - id: g1
    title: "A Good Day"
    changes: {happiness: 3}
`

func newTestService(t *testing.T) *Service {
	t.Helper()
	c, err := story.ParseCatalog([]byte(testCatalog))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	cfg := engine.DefaultConfig()
	cfg.Catalog = c
	svc, err := NewService(store.NewMemory(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc
}

func TestNewGameAndDashboard(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	d, err := svc.NewGame(ctx, NewGameInput{PlayerName: "Sam", Seed: 9})
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	if d.GameID == "" || d.Template != engine.DefaultTemplate || d.Player.Name != "Sam" {
		t.Fatalf("dashboard %+v", d)
	}
	if d.Date != "2009-01-01" || d.DateLabel != "January 1, 2009" {
		t.Fatalf("date %s / %s", d.Date, d.DateLabel)
	}
	if !d.NetWorth.Equal(decimal.NewFromInt(25000)) {
		t.Fatalf("net worth %s", d.NetWorth)
	}
	if len(d.Positions) != 3 || len(d.NetWorthHistory) != 1 {
		t.Fatalf("positions %d history %d", len(d.Positions), len(d.NetWorthHistory))
	}

	if _, err := svc.NewGame(ctx, NewGameInput{Template: "castle"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected unknown template to fail, got %v", err)
	}
	if _, err := svc.Dashboard(ctx, "8a4c5a57-8a3b-4f7e-9c4b-2f1f0f0d9e11"); !errors.Is(err, apperr.ErrGameNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAdvanceStopsOnEventAndResolves(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	d, err := svc.NewGame(ctx, NewGameInput{Template: "starter", Seed: 1})
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	id := d.GameID

	res, err := svc.Advance(ctx, id, AdvanceInput{Unit: "month", Count: 2})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if !res.Stopped || res.Days != 2 || res.Dashboard.Date != "2009-01-03" {
		t.Fatalf("advance result %+v", res)
	}
	if _, err := svc.AdvanceDay(ctx, id); !errors.Is(err, apperr.ErrEventPending) {
		t.Fatalf("expected ErrEventPending, got %v", err)
	}

	ev, ok, err := svc.PendingEvent(ctx, id)
	if err != nil || !ok || ev.Title != "Start Investing" {
		t.Fatalf("pending %+v %v %v", ev, ok, err)
	}
	act, err := svc.ResolveEvent(ctx, id, "accept")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if act.Message != "Start Investing: Accept" {
		t.Fatalf("message %q", act.Message)
	}
	if _, err := svc.ResolveEvent(ctx, id, ""); err != nil {
		t.Fatalf("resolve follow-up: %v", err)
	}

	entries, err := svc.Ledger(ctx, id, 0)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if len(entries) != 2 || entries[0].Type != ledger.TypeRandomEvent || entries[1].Type != ledger.TypeDecision {
		t.Fatalf("ledger %+v", entries)
	}
	st, _ := svc.State(ctx, id)
	if !st.Finance.Accounts.Balance(finance.Checking).Equal(decimal.NewFromInt(-300)) {
		t.Fatalf("checking %s", st.Finance.Accounts.Balance(finance.Checking))
	}
}

func TestRejectedOrderLeavesStoredGame(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	d, _ := svc.NewGame(ctx, NewGameInput{Seed: 3})
	before, _ := svc.Snapshot(ctx, d.GameID)

	_, err := svc.Sell(ctx, d.GameID, OrderInput{Symbol: "tech", Shares: decimal.NewFromInt(999)})
	if !errors.Is(err, apperr.ErrInsufficientShares) {
		t.Fatalf("expected insufficient shares, got %v", err)
	}
	_, err = svc.Buy(ctx, d.GameID, OrderInput{Symbol: "TECH", Shares: decimal.NewFromInt(1)})
	if !errors.Is(err, apperr.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds with empty investments, got %v", err)
	}
	if _, err := svc.PlaceOrder(ctx, d.GameID, OrderInput{Symbol: "TECH", Side: "hold", Shares: decimal.NewFromInt(1)}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	after, _ := svc.Snapshot(ctx, d.GameID)
	if string(before) != string(after) {
		t.Fatalf("rejected orders changed the stored game")
	}
}

func TestTransferSellAndQuote(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	d, _ := svc.NewGame(ctx, NewGameInput{Seed: 3})

	res, err := svc.Sell(ctx, d.GameID, OrderInput{Symbol: "TECH", Shares: decimal.NewFromInt(4)})
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if res.Message != "Sold 4 shares of TECH successfully." {
		t.Fatalf("message %q", res.Message)
	}
	res, err = svc.Transfer(ctx, d.GameID, TransferInput{From: "investments", To: "savings", Amount: decimal.NewFromInt(600)})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.Message != "Transferred $600.00 successfully." {
		t.Fatalf("message %q", res.Message)
	}
	q, err := svc.StockQuote(ctx, d.GameID, "tech")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !q.Shares.Equal(decimal.NewFromInt(96)) || !q.Value.Equal(decimal.NewFromInt(24000)) || len(q.History) != 1 {
		t.Fatalf("quote %+v", q)
	}
	if !res.Dashboard.NetWorth.Equal(decimal.NewFromInt(25000)) {
		t.Fatalf("net worth %s", res.Dashboard.NetWorth)
	}
}

func TestApplyChangesStatsAndRetirement(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	d, _ := svc.NewGame(ctx, NewGameInput{Seed: 5})

	got, err := svc.ApplyChanges(ctx, d.GameID, story.StateChanges{"salaryFlat": decimal.NewFromInt(500), "stress": decimal.NewFromInt(5)})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !got.Income.Salary.Equal(decimal.NewFromInt(9500)) || got.Stats.Stress != 30 {
		t.Fatalf("income %s stress %d", got.Income.Salary, got.Stats.Stress)
	}
	if _, err := svc.ApplyChanges(ctx, d.GameID, nil); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected empty changes to fail, got %v", err)
	}
	got, err = svc.UpdateStats(ctx, d.GameID, StatsInput{Health: 50, Happiness: -200})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if got.Stats.Health != 100 || got.Stats.Happiness != 0 {
		t.Fatalf("stats %+v", got.Stats)
	}
	got, err = svc.Update401k(ctx, d.GameID, RetirementInput{ContributionPercent: 8, Strategy: "acme"})
	if err != nil {
		t.Fatalf("401k: %v", err)
	}
	if got.Retirement.ContributionPercent != 8 || got.Retirement.Strategy != "ACME" {
		t.Fatalf("retirement %+v", got.Retirement)
	}
	entry, err := svc.AddLedgerEntry(ctx, d.GameID, LedgerInput{Title: "Budget review"})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if entry.Type != ledger.TypeAction || entry.DateLabel != "January 1, 2009" {
		t.Fatalf("entry %+v", entry)
	}
}

func TestImportListDelete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	d, _ := svc.NewGame(ctx, NewGameInput{PlayerName: "Ada", Seed: 11})
	snap, err := svc.Snapshot(ctx, d.GameID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	copyOf, err := svc.Import(ctx, snap)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if copyOf.GameID == d.GameID || copyOf.Player.Name != "Ada" {
		t.Fatalf("import %+v", copyOf)
	}
	if _, err := svc.Import(ctx, []byte(`{"seed":1}`)); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected invalid snapshot to fail, got %v", err)
	}

	games, err := svc.List(ctx)
	if err != nil || len(games) != 2 {
		t.Fatalf("list %v %v", games, err)
	}
	if err := svc.Delete(ctx, d.GameID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	games, _ = svc.List(ctx)
	if len(games) != 1 || games[0].ID != copyOf.GameID {
		t.Fatalf("list after delete %+v", games)
	}
}

func TestRunTickSkipsPendingGames(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	a, _ := svc.NewGame(ctx, NewGameInput{Template: "starter", Seed: 1})
	b, _ := svc.NewGame(ctx, NewGameInput{Template: "starter", Seed: 2})

	report, err := svc.RunTick(ctx)
	if err != nil || report.Advanced != 2 || len(report.Pending) != 0 {
		t.Fatalf("first pass %+v %v", report, err)
	}
	report, _ = svc.RunTick(ctx)
	if report.Advanced != 2 || len(report.Pending) != 2 {
		t.Fatalf("second pass should deliver on Jan 3: %+v", report)
	}
	if _, err := svc.ResolveEvent(ctx, a.GameID, "decline"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := svc.ResolveEvent(ctx, a.GameID, ""); err != nil {
		t.Fatalf("resolve follow-up: %v", err)
	}
	report, _ = svc.RunTick(ctx)
	if report.Advanced != 1 || report.Skipped != 1 || len(report.Pending) != 1 || report.Pending[0].GameID != b.GameID {
		t.Fatalf("third pass %+v", report)
	}
}

func TestBrokerReceivesMutations(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	d, _ := svc.NewGame(ctx, NewGameInput{Seed: 4})
	ch, cancel := svc.Broker().Subscribe(d.GameID)
	defer cancel()

	if _, err := svc.AdvanceDay(ctx, d.GameID); err != nil {
		t.Fatalf("advance: %v", err)
	}
	select {
	case got := <-ch:
		if got.Date != "2009-01-02" {
			t.Fatalf("published date %s", got.Date)
		}
	case <-time.After(time.Second):
		t.Fatalf("no dashboard published")
	}
	cancel()
	if n := svc.Broker().Subscribers(d.GameID); n != 0 {
		t.Fatalf("subscribers after cancel %d", n)
	}
}
