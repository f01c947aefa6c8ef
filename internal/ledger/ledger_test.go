package ledger

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"lifesim/internal/apperr"
)

func TestAppendValidates(t *testing.T) {
	var l Ledger
	if _, err := l.Append(Entry{Type: TypeAction}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for empty title, got %v", err)
	}
	if _, err := l.Append(Entry{Type: "bonus", Title: "x"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for bad type, got %v", err)
	}
	if l.Len() != 0 {
		t.Fatalf("rejected entries must not be stored")
	}
	e, err := l.Append(Entry{Type: TypeDecision, Title: "  Laptop Dies "})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if e.ID == uuid.Nil || e.Title != "Laptop Dies" {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	var l Ledger
	for _, title := range []string{"a", "b", "c"} {
		if _, err := l.Append(Entry{Type: TypeAction, Title: title}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got := l.Recent(2)
	if len(got) != 2 || got[0].Title != "c" || got[1].Title != "b" {
		t.Fatalf("unexpected order %+v", got)
	}
	if len(l.Recent(0)) != 3 {
		t.Fatalf("expected all entries")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	var l Ledger
	if _, err := l.Append(Entry{Type: TypeRandomEvent, Title: "A Good Day", Effects: &StatEffects{Health: 1}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	c := l.Clone()
	c.Entries[0].Effects.Health = 99
	if l.Entries[0].Effects.Health != 1 {
		t.Fatalf("clone shares effects pointer")
	}
}
