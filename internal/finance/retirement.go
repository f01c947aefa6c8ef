package finance

import (
	"fmt"

	"github.com/shopspring/decimal"

	"lifesim/internal/apperr"
)

const MaxContributionPercent = 20

type Plan401k struct {
	ContributionPercent int             `json:"contribution_percent"`
	Strategy            string          `json:"strategy"`
	Balance             decimal.Decimal `json:"balance"`
	Shares              decimal.Decimal `json:"shares"`
}

func ValidateContribution(percent int) error {
	if percent < 0 || percent > MaxContributionPercent {
		return fmt.Errorf("%w: contribution percent must be between 0 and %d", apperr.ErrValidation, MaxContributionPercent)
	}
	return nil
}

// MonthlyContribution is the pre-tax amount withheld from one month of salary.
func (r Plan401k) MonthlyContribution(salary decimal.Decimal) decimal.Decimal {
	return salary.Mul(decimal.NewFromInt(int64(r.ContributionPercent))).Div(decimal.NewFromInt(100))
}

// Buy converts amount into strategy shares at price.
func (r *Plan401k) Buy(amount, price decimal.Decimal) {
	if !amount.IsPositive() || !price.IsPositive() {
		return
	}
	r.Shares = r.Shares.Add(amount.Div(price))
}

// Mark revalues the plan at price and returns the new balance.
func (r *Plan401k) Mark(price decimal.Decimal) decimal.Decimal {
	r.Balance = r.Shares.Mul(price).Round(2)
	return r.Balance
}
