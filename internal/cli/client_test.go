package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"lifesim/internal/api"
	"lifesim/internal/engine"
	"lifesim/internal/game"
	"lifesim/internal/story"
	"lifesim/internal/store"
)

const testCatalog = `
storyline:
  - date: "2009-01-03"
    title: "Start Investing"
    accept:
      changes: {checking: -300, investments: 300}
`

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := story.ParseCatalog([]byte(testCatalog))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	cfg := engine.DefaultConfig()
	cfg.Catalog = c
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := game.NewService(store.NewMemory(), cfg, logger)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	srv := httptest.NewServer(api.New(logger, svc).Handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func TestClientGameFlow(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	templates, def, err := c.Templates(ctx)
	if err != nil || len(templates) == 0 || def != engine.DefaultTemplate {
		t.Fatalf("templates %v %q %v", templates, def, err)
	}

	d, err := c.CreateGame(ctx, game.NewGameInput{PlayerName: "Ada", Seed: 5}, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if d.Player.Name != "Ada" || !d.NetWorth.Equal(decimal.NewFromInt(25000)) {
		t.Fatalf("dashboard %+v", d)
	}

	res, err := c.Advance(ctx, d.GameID, game.AdvanceInput{Unit: "day", Count: 5}, "adv-1")
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if !res.Stopped || res.Dashboard.Date != "2009-01-03" {
		t.Fatalf("advance %+v", res)
	}
	ev, err := c.PendingEvent(ctx, d.GameID)
	if err != nil || ev == nil || ev.Title != "Start Investing" {
		t.Fatalf("pending %+v %v", ev, err)
	}
	act, err := c.ResolveEvent(ctx, d.GameID, "accept", "")
	if err != nil || act.Message != "Start Investing: Accept" {
		t.Fatalf("resolve %+v %v", act, err)
	}
	if ev, err := c.PendingEvent(ctx, d.GameID); err != nil || ev != nil {
		t.Fatalf("expected no pending event, got %+v %v", ev, err)
	}

	entries, err := c.Ledger(ctx, d.GameID, 5)
	if err != nil || len(entries) != 1 {
		t.Fatalf("ledger %+v %v", entries, err)
	}

	q, err := c.StockQuote(ctx, d.GameID, "TECH")
	if err != nil || q.Symbol != "TECH" {
		t.Fatalf("quote %+v %v", q, err)
	}

	snap, err := c.Snapshot(ctx, d.GameID)
	if err != nil || len(snap) == 0 {
		t.Fatalf("snapshot %v", err)
	}
	if err := c.DeleteGame(ctx, d.GameID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	restored, err := c.Import(ctx, snap)
	if err != nil || restored.GameID == d.GameID || restored.Date != "2009-01-03" {
		t.Fatalf("import %+v %v", restored, err)
	}
	games, err := c.ListGames(ctx)
	if err != nil || len(games) != 1 {
		t.Fatalf("list %+v %v", games, err)
	}
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	_, err := c.Dashboard(ctx, "8a4c5a57-8a3b-4f7e-9c4b-2f1f0f0d9e11")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound || !strings.Contains(apiErr.Message, "game not found") {
		t.Fatalf("expected 404 api error, got %v", err)
	}

	d, err := c.CreateGame(ctx, game.NewGameInput{Seed: 1}, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = c.PlaceOrder(ctx, d.GameID, game.OrderInput{Symbol: "TECH", Side: "sell", Shares: decimal.NewFromInt(999)}, "")
	if !IsAPIError(err) {
		t.Fatalf("expected api error, got %v", err)
	}

	offline := NewClient("http://127.0.0.1:1")
	if _, err := offline.Dashboard(ctx, d.GameID); err == nil || IsAPIError(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestGamePath(t *testing.T) {
	if got := GamePath("abc", ""); got != "/v1/games/abc" {
		t.Fatalf("got %q", got)
	}
	if got := GamePath("abc", "event/resolve"); got != "/v1/games/abc/event/resolve" {
		t.Fatalf("got %q", got)
	}
}
