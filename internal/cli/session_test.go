package cli

import (
	"errors"
	"testing"
)

func TestSessionRoundTrip(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	if _, err := LoadSession(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if err := SaveSession(Session{GameID: "g1", PlayerName: "Ada"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	s, err := LoadSession()
	if err != nil || s.GameID != "g1" || s.PlayerName != "Ada" {
		t.Fatalf("load %+v %v", s, err)
	}
	if err := ClearSession(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := LoadSession(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after clear, got %v", err)
	}
	if err := ClearSession(); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}
