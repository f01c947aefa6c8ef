package story

import (
	"time"

	"lifesim/internal/calendar"
)

// Scripted matches storyline events by exact date and milestones by
// (age, month). Storyline events win when both are due.
type Scripted struct {
	byDate     map[string]Event
	milestones []Event
}

func NewScripted(c *Catalog) *Scripted {
	s := &Scripted{byDate: make(map[string]Event, len(c.Storyline))}
	for _, e := range c.Storyline {
		s.byDate[calendar.Key(e.Date)] = e
	}
	s.milestones = append(s.milestones, c.Milestones...)
	return s
}

func (s *Scripted) Next(ctx Context) (Event, bool) {
	if e, ok := s.byDate[calendar.Key(ctx.Date)]; ok && !ctx.Delivered[e.Key] {
		return e.Clone(), true
	}
	for _, e := range s.milestones {
		if e.Age == ctx.Age && time.Month(e.Month) == ctx.Date.Month() && !ctx.Delivered[e.Key] {
			return e.Clone(), true
		}
	}
	return Event{}, false
}

// RandomPool draws from the good or bad pool depending on mood.
type RandomPool struct {
	good []Event
	bad  []Event
}

func NewRandomPool(c *Catalog) *RandomPool {
	return &RandomPool{good: c.Good, bad: c.Bad}
}

// MoodFor picks the pool for the given stats: calm and happy draws good,
// stressed and unhappy draws bad, otherwise the higher of the two decides.
func MoodFor(stress, happiness int) Mood {
	switch {
	case stress < 40 && happiness > 60:
		return MoodGood
	case stress > 60 && happiness < 40:
		return MoodBad
	case happiness > stress:
		return MoodGood
	default:
		return MoodBad
	}
}

func (p *RandomPool) Next(ctx Context) (Event, bool) {
	pool := p.bad
	if MoodFor(ctx.Stress, ctx.Happiness) == MoodGood {
		pool = p.good
	}
	if len(pool) == 0 || ctx.Draw == nil {
		return Event{}, false
	}
	return pool[ctx.Draw(len(pool))].Clone(), true
}
