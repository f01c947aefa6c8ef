// Package cli is the HTTP client and local session used by the lifesim command.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lifesim/internal/game"
	"lifesim/internal/ledger"
	"lifesim/internal/story"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

// IsAPIError reports whether err came back from the server, as opposed to a
// transport failure that is worth queueing for a later sync.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type Template struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (c *Client) Templates(ctx context.Context) ([]Template, string, error) {
	var out struct {
		Templates []Template `json:"templates"`
		Default   string     `json:"default"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/templates", nil, &out, "")
	return out.Templates, out.Default, err
}

func (c *Client) CreateGame(ctx context.Context, in game.NewGameInput, idem string) (game.Dashboard, error) {
	var out game.Dashboard
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games", in, &out, idem)
	return out, err
}

func (c *Client) ListGames(ctx context.Context) ([]game.GameSummary, error) {
	var out struct {
		Games []game.GameSummary `json:"games"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/games", nil, &out, "")
	return out.Games, err
}

func (c *Client) Dashboard(ctx context.Context, id string) (game.Dashboard, error) {
	var out game.Dashboard
	err := c.jsonRequest(ctx, http.MethodGet, GamePath(id, ""), nil, &out, "")
	return out, err
}

func (c *Client) DeleteGame(ctx context.Context, id string) error {
	return c.jsonRequest(ctx, http.MethodDelete, GamePath(id, ""), nil, nil, "")
}

func (c *Client) Advance(ctx context.Context, id string, in game.AdvanceInput, idem string) (game.AdvanceResult, error) {
	var out game.AdvanceResult
	err := c.jsonRequest(ctx, http.MethodPost, GamePath(id, "advance"), in, &out, idem)
	return out, err
}

func (c *Client) PlaceOrder(ctx context.Context, id string, in game.OrderInput, idem string) (game.ActionResult, error) {
	var out game.ActionResult
	err := c.jsonRequest(ctx, http.MethodPost, GamePath(id, "orders"), in, &out, idem)
	return out, err
}

func (c *Client) Transfer(ctx context.Context, id string, in game.TransferInput, idem string) (game.ActionResult, error) {
	var out game.ActionResult
	err := c.jsonRequest(ctx, http.MethodPost, GamePath(id, "transfers"), in, &out, idem)
	return out, err
}

func (c *Client) UpdateStats(ctx context.Context, id string, in game.StatsInput, idem string) (game.Dashboard, error) {
	var out game.Dashboard
	err := c.jsonRequest(ctx, http.MethodPost, GamePath(id, "stats"), in, &out, idem)
	return out, err
}

func (c *Client) ApplyChanges(ctx context.Context, id string, in story.StateChanges, idem string) (game.Dashboard, error) {
	var out game.Dashboard
	err := c.jsonRequest(ctx, http.MethodPost, GamePath(id, "changes"), in, &out, idem)
	return out, err
}

func (c *Client) UpdateRetirement(ctx context.Context, id string, in game.RetirementInput, idem string) (game.Dashboard, error) {
	var out game.Dashboard
	err := c.jsonRequest(ctx, http.MethodPut, GamePath(id, "retirement"), in, &out, idem)
	return out, err
}

// PendingEvent returns the event awaiting a decision, or nil.
func (c *Client) PendingEvent(ctx context.Context, id string) (*story.Event, error) {
	var out struct {
		Pending bool         `json:"pending"`
		Event   *story.Event `json:"event"`
	}
	if err := c.jsonRequest(ctx, http.MethodGet, GamePath(id, "event"), nil, &out, ""); err != nil {
		return nil, err
	}
	if !out.Pending {
		return nil, nil
	}
	return out.Event, nil
}

func (c *Client) ResolveEvent(ctx context.Context, id, choice, idem string) (game.ActionResult, error) {
	var out game.ActionResult
	err := c.jsonRequest(ctx, http.MethodPost, GamePath(id, "event/resolve"), map[string]string{"choice": choice}, &out, idem)
	return out, err
}

func (c *Client) Ledger(ctx context.Context, id string, limit int) ([]ledger.Entry, error) {
	path := GamePath(id, "ledger")
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Entries []ledger.Entry `json:"entries"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out, "")
	return out.Entries, err
}

func (c *Client) AddLedgerEntry(ctx context.Context, id string, in game.LedgerInput, idem string) (ledger.Entry, error) {
	var out ledger.Entry
	err := c.jsonRequest(ctx, http.MethodPost, GamePath(id, "ledger"), in, &out, idem)
	return out, err
}

func (c *Client) StockQuote(ctx context.Context, id, symbol string) (game.StockDetail, error) {
	var out game.StockDetail
	err := c.jsonRequest(ctx, http.MethodGet, GamePath(id, "stocks/"+url.PathEscape(symbol)), nil, &out, "")
	return out, err
}

// Snapshot returns the raw exported game document.
func (c *Client) Snapshot(ctx context.Context, id string) ([]byte, error) {
	var out json.RawMessage
	if err := c.jsonRequest(ctx, http.MethodGet, GamePath(id, "snapshot"), nil, &out, ""); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Import(ctx context.Context, snapshot []byte) (game.Dashboard, error) {
	var out game.Dashboard
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games/import", json.RawMessage(snapshot), &out, "")
	return out, err
}

// Do sends an arbitrary request and returns the undecoded response body.
// The sync command uses it to replay queued writes.
func (c *Client) Do(ctx context.Context, method, path string, body json.RawMessage, idem string) (json.RawMessage, error) {
	var in any
	if len(body) > 0 {
		in = body
	}
	var out json.RawMessage
	err := c.jsonRequest(ctx, method, path, in, &out, idem)
	return out, err
}

// GamePath builds /v1/games/{id}[/suffix].
func GamePath(id, suffix string) string {
	p := "/v1/games/" + url.PathEscape(id)
	if suffix != "" {
		p += "/" + suffix
	}
	return p
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func errorMessage(raw []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}
