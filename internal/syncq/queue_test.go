package syncq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"lifesim/internal/cli"
)

type fakeReplayer struct {
	calls []string
	fail  map[string]error
}

func (f *fakeReplayer) Do(_ context.Context, method, path string, _ json.RawMessage, idem string) (json.RawMessage, error) {
	f.calls = append(f.calls, idem)
	if err := f.fail[idem]; err != nil {
		return nil, err
	}
	return json.RawMessage(`{}`), nil
}

func TestPushLoad(t *testing.T) {
	t.Setenv(cli.HomeEnv, t.TempDir())

	got, err := Load()
	if err != nil || len(got) != 0 {
		t.Fatalf("empty load %v %v", got, err)
	}
	if err := Push(Command{Method: "POST", Path: "/v1/games/x/advance", Body: json.RawMessage(`{"count":1}`), IdempotencyKey: "k1"}); err != nil {
		t.Fatalf("push: %v", err)
	}
	got, err = Load()
	if err != nil || len(got) != 1 {
		t.Fatalf("load %v %v", got, err)
	}
	if got[0].IdempotencyKey != "k1" || got[0].QueuedAt.IsZero() {
		t.Fatalf("command %+v", got[0])
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(got[0].Body, &body); err != nil || body.Count != 1 {
		t.Fatalf("body %s: %v", got[0].Body, err)
	}

	if err := Push(Command{Method: "POST", Path: "/v1/games/x/orders", Body: json.RawMessage(`{"symbol":"TECH","shares":"2"}`), IdempotencyKey: "k2"}); err != nil {
		t.Fatalf("push: %v", err)
	}
	got, err = Load()
	if err != nil || len(got) != 2 {
		t.Fatalf("load %v %v", got, err)
	}
	var order map[string]string
	if err := json.Unmarshal(got[1].Body, &order); err != nil {
		t.Fatalf("order body: %v", err)
	}
	if order["symbol"] != "TECH" || order["shares"] != "2" || got[0].IdempotencyKey != "k1" {
		t.Fatalf("queue %+v", got)
	}
}

func TestReplay(t *testing.T) {
	t.Setenv(cli.HomeEnv, t.TempDir())
	for _, k := range []string{"ok", "offline", "rejected"} {
		if err := Push(Command{Method: "POST", Path: "/v1/games/x/orders", IdempotencyKey: k}); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	f := &fakeReplayer{fail: map[string]error{
		"offline":  errors.New("dial tcp: connection refused"),
		"rejected": &cli.APIError{Status: 400, Message: "insufficient funds"},
	}}

	res, err := Replay(context.Background(), f)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Replayed != 1 || res.Remaining != 1 || len(res.Failed) != 2 {
		t.Fatalf("result %+v", res)
	}
	if len(f.calls) != 3 || f.calls[0] != "ok" {
		t.Fatalf("calls %v", f.calls)
	}
	left, _ := Load()
	if len(left) != 1 || left[0].IdempotencyKey != "offline" {
		t.Fatalf("remaining %+v", left)
	}
}
