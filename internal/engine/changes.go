package engine

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"lifesim/internal/apperr"
	"lifesim/internal/finance"
	"lifesim/internal/ledger"
	"lifesim/internal/story"
)

var (
	hundred    = decimal.NewFromInt(100)
	minPercent = decimal.NewFromInt(-100)
)

// applyChanges patches s with a sparse delta and returns what was applied,
// split into stat effects and financial changes for the ledger. Unknown keys
// are skipped.
func applyChanges(s *GameState, changes story.StateChanges) (ledger.StatEffects, map[string]decimal.Decimal, error) {
	var effects ledger.StatEffects
	financial := make(map[string]decimal.Decimal)
	if _, pct := changes["salaryPercent"]; pct {
		if _, flat := changes["salaryFlat"]; flat {
			return effects, nil, fmt.Errorf("%w: salaryPercent and salaryFlat are mutually exclusive", apperr.ErrValidation)
		}
	}

	for _, key := range changes.Keys() {
		if finance.Managed(strings.TrimSuffix(key, "Percent")) {
			return effects, nil, fmt.Errorf("%w: %s changes only through contributions", apperr.ErrValidation, key)
		}
	}

	for _, key := range changes.Keys() {
		v := changes[key]
		switch key {
		case "health":
			effects.Health = int(v.IntPart())
		case "stress":
			effects.Stress = int(v.IntPart())
		case "happiness":
			effects.Happiness = int(v.IntPart())
		case "salaryPercent":
			s.Income.Salary = scale(s.Income.Salary, v)
			financial[key] = v
		case "salaryFlat":
			s.Income.Salary = decimal.Max(s.Income.Salary.Add(v), decimal.Zero)
			financial[key] = v
		default:
			if field := s.Expenses.field(key); field != nil {
				*field = decimal.Max(field.Add(v), decimal.Zero)
				financial[key] = v
				continue
			}
			if name, ok := strings.CutSuffix(key, "Percent"); ok && s.Finance.Accounts.Has(name) {
				s.Finance.Accounts[name] = scale(s.Finance.Accounts[name], v)
				financial[key] = v
				continue
			}
			if isAccount(s, key) {
				applyAccountDelta(s.Finance.Accounts, key, v)
				financial[key] = v
			}
		}
	}
	s.Stats = s.Stats.Add(effects.Health, effects.Stress, effects.Happiness)
	return effects, financial, nil
}

func isAccount(s *GameState, key string) bool {
	if s.Finance.Accounts.Has(key) {
		return true
	}
	for _, name := range finance.KnownAccounts {
		if name == key {
			return true
		}
	}
	return false
}

// applyAccountDelta credits or debits an account. A debit larger than a
// non-checking balance empties it and charges the rest to checking.
func applyAccountDelta(a finance.Accounts, name string, v decimal.Decimal) {
	if !v.IsNegative() || name == finance.Checking {
		a.Credit(name, v)
		return
	}
	need := v.Neg()
	if err := a.Debit(name, need); err == nil {
		return
	}
	have := a.Balance(name)
	a[name] = decimal.Zero
	a.Credit(finance.Checking, have.Sub(need))
}

// scale multiplies v by (1 + pct/100). Percentages below -100 clamp to -100.
func scale(v, pct decimal.Decimal) decimal.Decimal {
	pct = decimal.Max(pct, minPercent)
	return v.Mul(hundred.Add(pct)).Div(hundred).Round(2)
}
