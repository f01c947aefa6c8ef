// Package ledger keeps the player's audit trail of decisions, random events
// and financial actions. It is a projection only; balances live elsewhere.
package ledger

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lifesim/internal/apperr"
)

type EntryType string

const (
	TypeDecision    EntryType = "decision"
	TypeRandomEvent EntryType = "randomEvent"
	TypeAction      EntryType = "action"
)

func (t EntryType) Valid() bool {
	switch t {
	case TypeDecision, TypeRandomEvent, TypeAction:
		return true
	}
	return false
}

type StatEffects struct {
	Health    int `json:"health"`
	Stress    int `json:"stress"`
	Happiness int `json:"happiness"`
}

type Entry struct {
	ID               uuid.UUID                  `json:"id"`
	Type             EntryType                  `json:"type"`
	Title            string                     `json:"title"`
	Description      string                     `json:"description,omitempty"`
	Choice           string                     `json:"choice,omitempty"`
	Date             time.Time                  `json:"date"`
	DateLabel        string                     `json:"date_label,omitempty"`
	Effects          *StatEffects               `json:"effects,omitempty"`
	FinancialChanges map[string]decimal.Decimal `json:"financial_changes,omitempty"`
}

type Ledger struct {
	Entries []Entry `json:"entries"`
}

// Append validates title and type, assigns an id when missing and appends.
func (l *Ledger) Append(e Entry) (Entry, error) {
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" {
		return Entry{}, fmt.Errorf("%w: ledger entry title is required", apperr.ErrValidation)
	}
	if !e.Type.Valid() {
		return Entry{}, fmt.Errorf("%w: ledger entry type %q", apperr.ErrValidation, e.Type)
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	l.Entries = append(l.Entries, e)
	return e, nil
}

func (l *Ledger) Len() int { return len(l.Entries) }

// Recent returns up to n entries, newest first. n <= 0 returns all of them.
func (l *Ledger) Recent(n int) []Entry {
	if n <= 0 || n > len(l.Entries) {
		n = len(l.Entries)
	}
	out := make([]Entry, 0, n)
	for i := len(l.Entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.Entries[i])
	}
	return out
}

func (l Ledger) Clone() Ledger {
	out := Ledger{Entries: slices.Clone(l.Entries)}
	for i, e := range out.Entries {
		if e.Effects != nil {
			eff := *e.Effects
			out.Entries[i].Effects = &eff
		}
		if e.FinancialChanges != nil {
			m := make(map[string]decimal.Decimal, len(e.FinancialChanges))
			for k, v := range e.FinancialChanges {
				m[k] = v
			}
			out.Entries[i].FinancialChanges = m
		}
	}
	return out
}
