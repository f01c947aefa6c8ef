// Package story delivers scripted storyline events, age milestones and
// mood-conditioned random events.
package story

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"lifesim/internal/apperr"
)

type Kind string

const (
	KindStoryline Kind = "storyline"
	KindMilestone Kind = "milestone"
	KindRandom    Kind = "random"
)

const (
	ChoiceAccept   = "accept"
	ChoiceDecline  = "decline"
	ChoiceContinue = "continue"
)

type Mood string

const (
	MoodGood Mood = "good"
	MoodBad  Mood = "bad"
)

// StateChanges is a sparse delta keyed by account, expense, income or stat
// name. Keys ending in "Percent" scale the named balance.
type StateChanges map[string]decimal.Decimal

func (c StateChanges) Clone() StateChanges {
	return maps.Clone(c)
}

// Keys returns the change keys in sorted order.
func (c StateChanges) Keys() []string {
	return slices.Sorted(maps.Keys(c))
}

type Choice struct {
	ID      string       `json:"id"`
	Label   string       `json:"label"`
	Changes StateChanges `json:"changes,omitempty"`
}

type Event struct {
	Key         string    `json:"key"`
	Kind        Kind      `json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date,omitzero"`
	Age         int       `json:"age,omitempty"`
	Month       int       `json:"month,omitempty"`
	Mood        Mood      `json:"mood,omitempty"`
	Choices     []Choice  `json:"choices"`
}

// HasChoice reports whether the player picks between accept and decline.
func (e Event) HasChoice() bool {
	return len(e.Choices) > 1
}

// Scripted events are delivered at most once per playthrough.
func (e Event) Scripted() bool {
	return e.Kind == KindStoryline || e.Kind == KindMilestone
}

// Choice looks up a choice by id. An empty id selects the only choice of a
// no-choice event.
func (e Event) Choice(id string) (Choice, error) {
	if id == "" && len(e.Choices) == 1 {
		return e.Choices[0], nil
	}
	for _, c := range e.Choices {
		if c.ID == id {
			return c, nil
		}
	}
	ids := make([]string, 0, len(e.Choices))
	for _, c := range e.Choices {
		ids = append(ids, c.ID)
	}
	return Choice{}, fmt.Errorf("%w: choice %q not offered (want one of %v)", apperr.ErrValidation, id, ids)
}

func (e Event) Clone() Event {
	out := e
	out.Choices = make([]Choice, len(e.Choices))
	for i, c := range e.Choices {
		c.Changes = c.Changes.Clone()
		out.Choices[i] = c
	}
	return out
}

// Context is what a Source sees when deciding whether an event fires.
type Context struct {
	Date      time.Time
	Age       int
	Health    int
	Stress    int
	Happiness int
	Delivered map[string]bool
	Draw      func(n int) int
}

// Source produces at most one event for the given context.
type Source interface {
	Next(ctx Context) (Event, bool)
}
