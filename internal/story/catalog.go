package story

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"lifesim/internal/calendar"
)

//go:embed catalog/*.yaml
var catalogFS embed.FS

type rawChoice struct {
	Label   string             `yaml:"label"`
	Changes map[string]float64 `yaml:"changes"`
}

type rawEvent struct {
	ID          string             `yaml:"id"`
	Date        string             `yaml:"date"`
	Age         int                `yaml:"age"`
	Month       int                `yaml:"month"`
	Title       string             `yaml:"title"`
	Description string             `yaml:"description"`
	Accept      *rawChoice         `yaml:"accept"`
	Decline     *rawChoice         `yaml:"decline"`
	Changes     map[string]float64 `yaml:"changes"`
}

type rawCatalog struct {
	Storyline  []rawEvent `yaml:"storyline"`
	Milestones []rawEvent `yaml:"milestones"`
	Good       []rawEvent `yaml:"good"`
	Bad        []rawEvent `yaml:"bad"`
}

// Catalog holds every event definition.
type Catalog struct {
	Storyline  []Event
	Milestones []Event
	Good       []Event
	Bad        []Event
}

// DefaultCatalog parses the embedded catalog files.
func DefaultCatalog() (*Catalog, error) {
	return LoadCatalog(catalogFS, "catalog")
}

// LoadCatalog merges every .yaml file under root.
func LoadCatalog(fsys fs.FS, root string) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}
	var raw rawCatalog
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		body, err := fs.ReadFile(fsys, root+"/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", entry.Name(), err)
		}
		var part rawCatalog
		if err := yaml.Unmarshal(body, &part); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", entry.Name(), err)
		}
		raw.Storyline = append(raw.Storyline, part.Storyline...)
		raw.Milestones = append(raw.Milestones, part.Milestones...)
		raw.Good = append(raw.Good, part.Good...)
		raw.Bad = append(raw.Bad, part.Bad...)
	}
	return buildCatalog(raw)
}

// ParseCatalog builds a catalog from a single YAML document.
func ParseCatalog(body []byte) (*Catalog, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return buildCatalog(raw)
}

func buildCatalog(raw rawCatalog) (*Catalog, error) {
	c := &Catalog{}
	seen := make(map[string]bool)
	var errs []error
	add := func(e Event, err error) (Event, bool) {
		if err != nil {
			errs = append(errs, err)
			return Event{}, false
		}
		if seen[e.Key] {
			errs = append(errs, fmt.Errorf("duplicate event key %s", e.Key))
			return Event{}, false
		}
		seen[e.Key] = true
		return e, true
	}
	for _, r := range raw.Storyline {
		if e, ok := add(storylineEvent(r)); ok {
			c.Storyline = append(c.Storyline, e)
		}
	}
	for _, r := range raw.Milestones {
		if e, ok := add(milestoneEvent(r)); ok {
			c.Milestones = append(c.Milestones, e)
		}
	}
	for _, r := range raw.Good {
		if e, ok := add(randomEvent(r, MoodGood)); ok {
			c.Good = append(c.Good, e)
		}
	}
	for _, r := range raw.Bad {
		if e, ok := add(randomEvent(r, MoodBad)); ok {
			c.Bad = append(c.Bad, e)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

func storylineEvent(r rawEvent) (Event, error) {
	on, err := calendar.Parse(r.Date)
	if err != nil {
		return Event{}, fmt.Errorf("storyline %q: %w", r.Title, err)
	}
	e := Event{
		Key:         "storyline:" + calendar.Key(on),
		Kind:        KindStoryline,
		Title:       strings.TrimSpace(r.Title),
		Description: strings.TrimSpace(r.Description),
		Date:        on,
	}
	return withChoices(e, r)
}

func milestoneEvent(r rawEvent) (Event, error) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		return Event{}, fmt.Errorf("milestone %q: id is required", r.Title)
	}
	if r.Month < 1 || r.Month > 12 || r.Age <= 0 {
		return Event{}, fmt.Errorf("milestone %s: age %d month %d out of range", id, r.Age, r.Month)
	}
	e := Event{
		Key:         "milestone:" + id,
		Kind:        KindMilestone,
		Title:       strings.TrimSpace(r.Title),
		Description: strings.TrimSpace(r.Description),
		Age:         r.Age,
		Month:       r.Month,
	}
	return withChoices(e, r)
}

func randomEvent(r rawEvent, mood Mood) (Event, error) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		return Event{}, fmt.Errorf("random %q: id is required", r.Title)
	}
	e := Event{
		Key:         "random:" + id,
		Kind:        KindRandom,
		Title:       strings.TrimSpace(r.Title),
		Description: strings.TrimSpace(r.Description),
		Mood:        mood,
	}
	return withChoices(e, r)
}

func withChoices(e Event, r rawEvent) (Event, error) {
	if e.Title == "" {
		return Event{}, fmt.Errorf("event %s: title is required", e.Key)
	}
	switch {
	case r.Accept != nil || r.Decline != nil:
		if r.Accept == nil {
			return Event{}, fmt.Errorf("event %s: decline requires an accept choice", e.Key)
		}
		decline := r.Decline
		if decline == nil {
			decline = &rawChoice{}
		}
		if len(r.Changes) > 0 {
			return Event{}, fmt.Errorf("event %s: top-level changes not allowed with choices", e.Key)
		}
		for _, c := range []struct {
			id  string
			raw *rawChoice
		}{{ChoiceAccept, r.Accept}, {ChoiceDecline, decline}} {
			changes, err := toChanges(e.Key, c.raw.Changes)
			if err != nil {
				return Event{}, err
			}
			label := strings.TrimSpace(c.raw.Label)
			if label == "" {
				label = strings.ToUpper(c.id[:1]) + c.id[1:]
			}
			e.Choices = append(e.Choices, Choice{ID: c.id, Label: label, Changes: changes})
		}
	default:
		changes, err := toChanges(e.Key, r.Changes)
		if err != nil {
			return Event{}, err
		}
		e.Choices = []Choice{{ID: ChoiceContinue, Label: "Continue", Changes: changes}}
	}
	return e, nil
}

func toChanges(key string, raw map[string]float64) (StateChanges, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if _, pct := raw["salaryPercent"]; pct {
		if _, flat := raw["salaryFlat"]; flat {
			return nil, fmt.Errorf("event %s: salaryPercent and salaryFlat are mutually exclusive", key)
		}
	}
	out := make(StateChanges, len(raw))
	for k, v := range raw {
		out[k] = decimal.NewFromFloat(v)
	}
	return out, nil
}
