package analytics

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hospitality-spend-ledger/internal/domain/invoice"
	"github.com/hospitality-spend-ledger/internal/domain/product"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

// Observation is one usable unit price. Unit prices always come from the line's
// per-unit field, never from an invoice total.
type Observation struct {
	Date      time.Time       `json:"date"`
	LineID    uuid.UUID       `json:"line_id"`
	Origin    shared.Origin   `json:"origin"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func observationOf(l invoice.Line) Observation {
	return Observation{
		Date:      l.InvoiceDate,
		LineID:    l.LineID,
		Origin:    l.Origin,
		Quantity:  l.Quantity.Decimal,
		UnitPrice: l.UnitPrice.Decimal,
	}
}

// After orders observations by invoice date, then line id
func (o Observation) After(other Observation) bool {
	if !o.Date.Equal(other.Date) {
		return o.Date.After(other.Date)
	}
	return o.LineID.String() > other.LineID.String()
}

// Observations extracts price observations from both origins, oldest first.
// Lines with null or non-positive quantity, or no unit price, are skipped.
func Observations(o Origins) []Observation {
	obs := make([]Observation, 0)
	o.Each(func(l invoice.Line) {
		if l.PriceObservation() {
			obs = append(obs, observationOf(l))
		}
	})
	sort.Slice(obs, func(i, j int) bool { return obs[j].After(obs[i]) })
	return obs
}

// WeightedAverage is Σ(quantity × unitPrice) / Σ(quantity) rounded to PricePlaces.
// ok is false when no observation carries quantity.
func WeightedAverage(obs []Observation) (avg decimal.Decimal, ok bool) {
	weighted := decimal.Zero
	quantity := decimal.Zero
	for _, o := range obs {
		if !o.Quantity.IsPositive() {
			continue
		}
		weighted = weighted.Add(o.Quantity.Mul(o.UnitPrice))
		quantity = quantity.Add(o.Quantity)
	}
	if quantity.IsZero() {
		return decimal.Zero, false
	}
	return weighted.Div(quantity).Round(PricePlaces), true
}

// Bucket is the weighted price picture of one calendar month
type Bucket struct {
	Month            time.Time       `json:"month"`
	Quantity         decimal.Decimal `json:"quantity"`
	AverageUnitPrice decimal.Decimal `json:"average_unit_price"`
	Observations     int             `json:"observations"`
}

// MonthlyBuckets groups observations within w by month. Months without data are omitted.
func MonthlyBuckets(obs []Observation, w Window) []Bucket {
	byMonth := make(map[int][]Observation)
	for _, o := range obs {
		if w.Contains(o.Date) {
			byMonth[monthIndex(o.Date)] = append(byMonth[monthIndex(o.Date)], o)
		}
	}

	buckets := make([]Bucket, 0, len(byMonth))
	for _, month := range w.Months() {
		monthObs, ok := byMonth[monthIndex(month)]
		if !ok {
			continue
		}
		avg, ok := WeightedAverage(monthObs)
		if !ok {
			continue
		}
		qty := decimal.Zero
		for _, o := range monthObs {
			qty = qty.Add(o.Quantity)
		}
		buckets = append(buckets, Bucket{Month: month, Quantity: qty, AverageUnitPrice: avg, Observations: len(monthObs)})
	}
	return buckets
}

func monthIndex(t time.Time) int {
	t = t.UTC()
	return t.Year()*12 + int(t.Month()) - 1
}

// TrendDirection summarises a price trend
type TrendDirection string

const (
	TrendUp               TrendDirection = "UP"
	TrendDown             TrendDirection = "DOWN"
	TrendStable           TrendDirection = "STABLE"
	TrendInsufficientData TrendDirection = "INSUFFICIENT_DATA"
)

// PriceTrend compares the most recent PriceBucketsPerSide months with the ones before
type PriceTrend struct {
	Direction     TrendDirection      `json:"direction"`
	RecentAverage decimal.NullDecimal `json:"recent_average"`
	PriorAverage  decimal.NullDecimal `json:"prior_average"`
	PercentChange decimal.NullDecimal `json:"percent_change"`
	RecentBuckets int                 `json:"recent_buckets"`
	PriorBuckets  int                 `json:"prior_buckets"`
}

// ProductPriceTrend needs MinBucketsPerSide months with data on each side,
// otherwise it reports INSUFFICIENT_DATA without averages or percent.
func ProductPriceTrend(obs []Observation, asOf time.Time) PriceTrend {
	recentWindow := TrailingMonths(asOf, PriceBucketsPerSide)
	priorWindow := recentWindow.Preceding()

	recentObs := within(obs, recentWindow)
	priorObs := within(obs, priorWindow)

	t := PriceTrend{
		Direction:     TrendInsufficientData,
		RecentBuckets: len(MonthlyBuckets(recentObs, recentWindow)),
		PriorBuckets:  len(MonthlyBuckets(priorObs, priorWindow)),
	}
	if t.RecentBuckets < MinBucketsPerSide || t.PriorBuckets < MinBucketsPerSide {
		return t
	}

	recent, okRecent := WeightedAverage(recentObs)
	prior, okPrior := WeightedAverage(priorObs)
	if !okRecent || !okPrior || prior.IsZero() {
		return t
	}

	pct := PercentChange(recent, prior)
	t.RecentAverage = decimal.NewNullDecimal(recent)
	t.PriorAverage = decimal.NewNullDecimal(prior)
	t.PercentChange = decimal.NewNullDecimal(pct)

	switch {
	case pct.Abs().LessThanOrEqual(StableThreshold):
		t.Direction = TrendStable
	case pct.IsPositive():
		t.Direction = TrendUp
	default:
		t.Direction = TrendDown
	}
	return t
}

func within(obs []Observation, w Window) []Observation {
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if w.Contains(o.Date) {
			out = append(out, o)
		}
	}
	return out
}

// PriceChange is a product whose two most recent distinct prices differ beyond the noise threshold
type PriceChange struct {
	Identity      product.Identity `json:"-"`
	SupplierID    *uuid.UUID       `json:"supplier_id,omitempty"`
	ProductKey    string           `json:"product_key"`
	DisplayName   string           `json:"display_name"`
	PreviousPrice decimal.Decimal  `json:"previous_price"`
	LatestPrice   decimal.Decimal  `json:"latest_price"`
	PercentChange decimal.Decimal  `json:"percent_change"`
	PreviousDate  time.Time        `json:"previous_date"`
	LatestDate    time.Time        `json:"latest_date"`
}

// DetectChange walks back from the latest observation in the lookback window to
// the most recent one with a different price. ok is false when there is no such
// pair, the previous price is zero, or the move is within PriceChangeThreshold.
func DetectChange(obs []Observation, asOf time.Time) (previous, latest Observation, pct decimal.Decimal, ok bool) {
	recent := within(obs, TrailingMonths(asOf, PriceChangeLookbackMonths))
	sort.Slice(recent, func(i, j int) bool { return recent[j].After(recent[i]) })
	if len(recent) < 2 {
		return Observation{}, Observation{}, decimal.Zero, false
	}

	latest = recent[len(recent)-1]
	for i := len(recent) - 2; i >= 0; i-- {
		if recent[i].UnitPrice.Equal(latest.UnitPrice) {
			continue
		}
		previous = recent[i]
		if previous.UnitPrice.IsZero() {
			return Observation{}, Observation{}, decimal.Zero, false
		}
		pct = PercentChange(latest.UnitPrice, previous.UnitPrice)
		if pct.Abs().LessThanOrEqual(PriceChangeThreshold) {
			return Observation{}, Observation{}, decimal.Zero, false
		}
		return previous, latest, pct, true
	}
	return Observation{}, Observation{}, decimal.Zero, false
}

// NormalizeLimit applies the default and maximum price change limits
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultPriceChangeLimit
	}
	if limit > MaxPriceChangeLimit {
		return MaxPriceChangeLimit
	}
	return limit
}

// RecentPriceChanges reports per-product changes ordered by |Δ%| desc, then product key
func RecentPriceChanges(o Origins, asOf time.Time, limit int) []PriceChange {
	limit = NormalizeLimit(limit)

	type productLines struct {
		identity product.Identity
		origins  Origins
	}
	byProduct := make(map[string]*productLines)
	add := func(l invoice.Line, manual bool) {
		key := l.Identity().String()
		p, ok := byProduct[key]
		if !ok {
			p = &productLines{identity: l.Identity()}
			byProduct[key] = p
		}
		if manual {
			p.origins.Manual = append(p.origins.Manual, l)
		} else {
			p.origins.External = append(p.origins.External, l)
		}
	}
	for _, l := range o.External {
		add(l, false)
	}
	for _, l := range o.Manual {
		add(l, true)
	}

	changes := make([]PriceChange, 0)
	for _, p := range byProduct {
		previous, latest, pct, ok := DetectChange(Observations(p.origins), asOf)
		if !ok {
			continue
		}
		changes = append(changes, PriceChange{
			Identity:      p.identity,
			SupplierID:    p.identity.SupplierID,
			ProductKey:    p.identity.Key,
			DisplayName:   latestDisplayName(p.origins),
			PreviousPrice: previous.UnitPrice,
			LatestPrice:   latest.UnitPrice,
			PercentChange: pct,
			PreviousDate:  previous.Date,
			LatestDate:    latest.Date,
		})
	}

	sort.Slice(changes, func(i, j int) bool {
		ai, aj := changes[i].PercentChange.Abs(), changes[j].PercentChange.Abs()
		if !ai.Equal(aj) {
			return ai.GreaterThan(aj)
		}
		if changes[i].ProductKey != changes[j].ProductKey {
			return changes[i].ProductKey < changes[j].ProductKey
		}
		return changes[i].Identity.String() < changes[j].Identity.String()
	})

	if len(changes) > limit {
		changes = changes[:limit]
	}
	return changes
}

func latestDisplayName(o Origins) string {
	var named *Observation
	name := ""
	o.Each(func(l invoice.Line) {
		n := displayNameOf(l)
		obs := observationOf(l)
		if n != "" && (named == nil || obs.After(*named)) {
			named = &obs
			name = n
		}
	})
	if name == "" {
		return unknownDisplayName
	}
	return name
}
