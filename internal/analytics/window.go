// Package analytics is the spend and pricing aggregation engine.
//
// Everything here is pure: callers load lines for each origin, and the engine
// applies exclusions, windows and rounding. Monetary values are decimals end to end.
package analytics

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SpendWindowMonths         = 12
	TrendPeriodMonths         = 6
	PriceBucketsPerSide       = 3
	MinBucketsPerSide         = 2
	PriceChangeLookbackMonths = 3

	PercentPlaces = 2
	PricePlaces   = 4

	DefaultPriceChangeLimit = 10
	MaxPriceChangeLimit     = 100
)

var (
	// MinBaseline is the prior-period spend below which a trend is flagged EMERGING
	MinBaseline = decimal.NewFromInt(100)

	// PriceChangeThreshold is the absolute percent difference a price change must exceed
	PriceChangeThreshold = decimal.RequireFromString("0.5")

	// StableThreshold is the absolute percent movement still reported as STABLE
	StableThreshold = decimal.RequireFromString("0.5")

	hundred = decimal.NewFromInt(100)
)

// Window is a half-open [From, To) range of whole UTC calendar months
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// MonthStart truncates t to the first instant of its UTC month
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// TrailingMonths returns the n months ending with the month containing asOf
func TrailingMonths(asOf time.Time, n int) Window {
	to := MonthStart(asOf).AddDate(0, 1, 0)
	return Window{From: to.AddDate(0, -n, 0), To: to}
}

// Preceding returns the window of equal length ending where w starts
func (w Window) Preceding() Window {
	return Window{From: w.From.AddDate(0, -w.MonthCount(), 0), To: w.From}
}

func (w Window) MonthCount() int {
	return (w.To.Year()-w.From.Year())*12 + int(w.To.Month()) - int(w.From.Month())
}

func (w Window) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(w.From) && t.Before(w.To)
}

// Months lists the first instant of every month in w, oldest first
func (w Window) Months() []time.Time {
	months := make([]time.Time, 0, w.MonthCount())
	for m := w.From; m.Before(w.To); m = m.AddDate(0, 1, 0) {
		months = append(months, m)
	}
	return months
}

// Span returns the smallest window covering both
func (w Window) Span(other Window) Window {
	out := w
	if other.From.Before(out.From) {
		out.From = other.From
	}
	if other.To.After(out.To) {
		out.To = other.To
	}
	return out
}

// LoadWindow is the widest range any engine calculation reads for asOf
func LoadWindow(asOf time.Time) Window {
	spend := TrailingMonths(asOf, SpendWindowMonths)
	prices := TrailingMonths(asOf, 2*PriceBucketsPerSide)
	return spend.Span(prices).Span(TrailingMonths(asOf, PriceChangeLookbackMonths))
}
