package analytics

import (
	"github.com/shopspring/decimal"
)

// TrendFlag qualifies a period comparison whose percent is missing or unreliable
type TrendFlag string

const (
	TrendFlagNone     TrendFlag = ""
	TrendFlagNew      TrendFlag = "NEW"
	TrendFlagEmerging TrendFlag = "EMERGING"
)

// Change compares a current period against the prior one.
// PercentChange is null when the prior period had no spend and the current one did.
type Change struct {
	Current       decimal.Decimal     `json:"current"`
	Prior         decimal.Decimal     `json:"prior"`
	PercentChange decimal.NullDecimal `json:"percent_change"`
	Flag          TrendFlag           `json:"flag,omitempty"`
}

// Compare applies the trend edge-case policy:
// prior zero and current non-zero is NEW without a percent, both zero is 0%,
// and a prior below MinBaseline is EMERGING with a percent.
func Compare(current, prior decimal.Decimal) Change {
	c := Change{Current: current, Prior: prior}

	if prior.IsZero() {
		if current.IsZero() {
			c.PercentChange = decimal.NewNullDecimal(decimal.Zero)
			return c
		}
		c.Flag = TrendFlagNew
		return c
	}

	c.PercentChange = decimal.NewNullDecimal(PercentChange(current, prior))
	if prior.LessThan(MinBaseline) {
		c.Flag = TrendFlagEmerging
	}
	return c
}

// PercentChange is (current - prior) / prior * 100 rounded to PercentPlaces. prior must be non-zero.
// A negative prior flips the sign.
func PercentChange(current, prior decimal.Decimal) decimal.Decimal {
	return current.Sub(prior).Div(prior).Mul(hundred).Round(PercentPlaces)
}
