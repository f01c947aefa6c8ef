package engine

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"lifesim/internal/apperr"
	"lifesim/internal/calendar"
	"lifesim/internal/finance"
	"lifesim/internal/market"
)

const DefaultTemplate = "bigtech"

type Template struct {
	Name        string
	Description string
	build       func() *GameState
}

var templates = map[string]Template{
	"bigtech": {
		Name:        "bigtech",
		Description: "Data scientist renting in Mountain View, January 2009",
		build:       bigTechState,
	},
	"starter": {
		Name:        "starter",
		Description: "Empty accounts, salary only, no bills",
		build:       starterState,
	},
}

func TemplateNames() []string {
	out := make([]string, 0, len(templates))
	for k := range templates {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func LookupTemplate(name string) (Template, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultTemplate
	}
	t, ok := templates[name]
	if !ok {
		return Template{}, fmt.Errorf("%w: unknown template %q", apperr.ErrValidation, name)
	}
	return t, nil
}

// NewState builds a fresh state from a template. playerName overrides the
// template's default when non-empty.
func NewState(template, playerName string, seed uint64) (*GameState, error) {
	t, err := LookupTemplate(template)
	if err != nil {
		return nil, err
	}
	s := t.build()
	s.Template = t.Name
	s.Seed = seed
	if name := strings.TrimSpace(playerName); name != "" {
		s.Player.Name = name
	}
	s.Story.Delivered = make(map[string]bool)
	label := calendar.PeriodLabel(s.CurrentDate)
	for _, p := range s.Markets.Positions {
		s.Markets.History[p.Symbol] = s.Markets.History[p.Symbol].Append(label, p.Price)
	}
	s.Finance.NetWorthHistory = s.Finance.NetWorthHistory.Append(label, s.RecomputeNetWorth())
	return s, nil
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func bigTechState() *GameState {
	return &GameState{
		CurrentDate: calendar.Date(2009, time.January, 1),
		Player: Player{
			Name:          "John Doe",
			Age:           25,
			Occupation:    "Data Scientist",
			Location:      "Mountain View, CA",
			HousingStatus: Renting,
		},
		Stats:  Stats{Health: 80, Stress: 25, Happiness: 70},
		Income: Income{Salary: dec(9000), Investments: decimal.Zero, Other: decimal.Zero},
		Expenses: Expenses{
			Rent:           dec(1700),
			Mortgage:       decimal.Zero,
			Utilities:      dec(220),
			Food:           dec(550),
			Transportation: dec(450),
			Insurance:      dec(120),
			Entertainment:  dec(250),
			Other:          dec(300),
		},
		Finance: Finance{
			Accounts:   finance.NewAccounts(),
			Retirement: finance.Plan401k{ContributionPercent: 0, Strategy: "TECH", Balance: decimal.Zero, Shares: decimal.Zero},
		},
		Markets: market.Book{
			Positions: []market.Position{
				{Symbol: "ACME", Name: "Acme Corp", Shares: decimal.Zero, Price: dec(100)},
				{Symbol: "TECH", Name: "Tech Giant", Shares: dec(100), Price: dec(250)},
				{Symbol: "CRYPTO_ETF", Name: "Crypto ETF", Shares: decimal.Zero, Price: dec(50)},
			},
			History: make(map[string]finance.History),
		},
	}
}

func starterState() *GameState {
	s := bigTechState()
	s.Expenses = Expenses{}
	s.Markets.Positions[1].Shares = decimal.Zero
	return s
}
