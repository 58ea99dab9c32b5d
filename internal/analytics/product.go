package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hospitality-spend-ledger/internal/domain/product"
)

// ProductDetail is the full 12-month picture of one canonical product
type ProductDetail struct {
	Window          Window              `json:"window"`
	Spend           decimal.Decimal     `json:"spend"`
	Quantity        decimal.Decimal     `json:"quantity"`
	LineCount       int                 `json:"line_count"`
	SpendTrend      Change              `json:"spend_trend"`
	LatestUnitPrice decimal.NullDecimal `json:"latest_unit_price"`
	LastPurchasedAt *time.Time          `json:"last_purchased_at,omitempty"`
	WeightedAverage decimal.NullDecimal `json:"weighted_average_unit_price"`
	MonthlyPrices   []Bucket            `json:"monthly_prices"`
	PriceTrend      PriceTrend          `json:"price_trend"`
	RecentChange    *PriceChange        `json:"recent_change,omitempty"`
}

// DescribeProduct narrows o to one product identity and computes its detail
func DescribeProduct(o Origins, id product.Identity, asOf time.Time) ProductDetail {
	w := TrailingMonths(asOf, SpendWindowMonths)
	lines := o.ForProduct(id)

	d := ProductDetail{
		Window:     w,
		Spend:      decimal.Zero,
		Quantity:   decimal.Zero,
		SpendTrend: Compare(decimal.Zero, decimal.Zero),
	}
	if totals := SpendByProduct(lines, asOf); len(totals) == 1 {
		t := totals[0]
		d.Spend = t.Spend
		d.Quantity = t.Quantity
		d.LineCount = t.LineCount
		d.SpendTrend = t.Trend
		d.LatestUnitPrice = t.LatestUnitPrice
		d.LastPurchasedAt = t.LastPurchasedAt
	}

	obs := Observations(lines)
	if avg, ok := WeightedAverage(within(obs, w)); ok {
		d.WeightedAverage = decimal.NewNullDecimal(avg)
	}
	d.MonthlyPrices = MonthlyBuckets(obs, w)
	d.PriceTrend = ProductPriceTrend(obs, asOf)

	if changes := RecentPriceChanges(lines, asOf, 1); len(changes) == 1 {
		d.RecentChange = &changes[0]
	}
	return d
}
