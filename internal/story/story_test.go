package story

import (
	"strings"
	"testing"
	"time"

	"lifesim/internal/calendar"
)

func TestDefaultCatalogLoads(t *testing.T) {
	c, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Storyline) != 56 || len(c.Milestones) != 30 || len(c.Good) != 10 || len(c.Bad) != 10 {
		t.Fatalf("unexpected sizes storyline=%d milestones=%d good=%d bad=%d",
			len(c.Storyline), len(c.Milestones), len(c.Good), len(c.Bad))
	}
	for _, e := range append(c.Storyline, c.Milestones...) {
		if !e.HasChoice() {
			continue
		}
		accept, _ := e.Choice(ChoiceAccept)
		decline, _ := e.Choice(ChoiceDecline)
		if len(accept.Changes) > 0 && sameChanges(accept.Changes, decline.Changes) {
			t.Fatalf("%s: accept and decline carry identical changes", e.Key)
		}
	}
}

func sameChanges(a, b StateChanges) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || !w.Equal(v) {
			return false
		}
	}
	return true
}

func TestCatalogRejectsSalaryPercentWithFlat(t *testing.T) {
	_, err := ParseCatalog([]byte(`
storyline:
  - date: "2010-01-01"
    title: "Mixed raise"
    changes: {salaryPercent: 3, salaryFlat: 100}
`))
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("expected mutual exclusion error, got %v", err)
	}
}

func TestCatalogRejectsDuplicatesAndMissingTitles(t *testing.T) {
	_, err := ParseCatalog([]byte(`
storyline:
  - date: "2010-01-01"
    title: "One"
  - date: "2010-01-01"
    title: "Two"
good:
  - id: g1
    title: ""
`))
	if err == nil {
		t.Fatalf("expected errors")
	}
	if !strings.Contains(err.Error(), "duplicate") || !strings.Contains(err.Error(), "title is required") {
		t.Fatalf("missing expected errors: %v", err)
	}
}

func TestCatalogAcceptOnlyGetsNoopDecline(t *testing.T) {
	c, err := ParseCatalog([]byte(`
storyline:
  - date: "2009-01-03"
    title: "Start Investing"
    accept:
      changes: {checking: -300, investments: 300}
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	e := c.Storyline[0]
	if len(e.Choices) != 2 {
		t.Fatalf("choices %+v", e.Choices)
	}
	decline, err := e.Choice(ChoiceDecline)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if decline.Label != "Decline" || len(decline.Changes) != 0 {
		t.Fatalf("decline %+v", decline)
	}

	_, err = ParseCatalog([]byte(`
storyline:
  - date: "2009-01-03"
    title: "Only No"
    decline:
      changes: {stress: 1}
`))
	if err == nil || !strings.Contains(err.Error(), "requires an accept") {
		t.Fatalf("expected decline-only rejection, got %v", err)
	}
}

func TestScriptedDeliversOnceByKey(t *testing.T) {
	c, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	s := NewScripted(c)
	ctx := Context{Date: calendar.Date(2009, time.March, 3), Age: 25, Delivered: map[string]bool{}}
	e, ok := s.Next(ctx)
	if !ok || e.Title != "Laptop Dies" || e.HasChoice() {
		t.Fatalf("unexpected event %+v ok=%v", e, ok)
	}
	ctx.Delivered[e.Key] = true
	e, ok = s.Next(ctx)
	if !ok || e.Kind != KindMilestone || e.Title != "Early Career Struggles" {
		t.Fatalf("expected milestone after storyline delivered, got %+v ok=%v", e, ok)
	}
	ctx.Delivered[e.Key] = true
	if e, ok := s.Next(ctx); ok {
		t.Fatalf("expected nothing left, got %s", e.Key)
	}
}

func TestMoodFor(t *testing.T) {
	tests := []struct {
		stress, happiness int
		want              Mood
	}{
		{20, 80, MoodGood},
		{80, 20, MoodBad},
		{50, 55, MoodGood},
		{55, 50, MoodBad},
		{50, 50, MoodBad},
	}
	for _, tc := range tests {
		if got := MoodFor(tc.stress, tc.happiness); got != tc.want {
			t.Fatalf("stress=%d happiness=%d got %s want %s", tc.stress, tc.happiness, got, tc.want)
		}
	}
}

func TestRandomPoolDrawsFromMoodPool(t *testing.T) {
	c, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	p := NewRandomPool(c)
	e, ok := p.Next(Context{Stress: 10, Happiness: 90, Draw: func(n int) int { return n - 1 }})
	if !ok || e.Mood != MoodGood || e.Key != "random:good_10" {
		t.Fatalf("unexpected draw %+v", e)
	}
	if _, ok := p.Next(Context{Stress: 90, Happiness: 10}); ok {
		t.Fatalf("expected no draw without a random source")
	}
	ch, err := e.Choice("")
	if err != nil || ch.ID != ChoiceContinue {
		t.Fatalf("random events expose a single continue choice: %v", err)
	}
}
