package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hospitality-spend-ledger/internal/domain/invoice"
	"github.com/hospitality-spend-ledger/internal/domain/product"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

const unknownDisplayName = "Unknown item"

// OriginTotals is the aggregate of a single origin
type OriginTotals struct {
	Spend            decimal.Decimal `json:"spend"`
	LineCount        int             `json:"line_count"`
	DistinctProducts int             `json:"distinct_products"`
}

func (t OriginTotals) add(o OriginTotals) OriginTotals {
	return OriginTotals{
		Spend:            t.Spend.Add(o.Spend),
		LineCount:        t.LineCount + o.LineCount,
		DistinctProducts: t.DistinctProducts + o.DistinctProducts,
	}
}

// Summary is the scope-wide spend picture
type Summary struct {
	Window           Window                         `json:"window"`
	Spend            decimal.Decimal                `json:"spend"`
	LineCount        int                            `json:"line_count"`
	DistinctProducts int                            `json:"distinct_products"`
	ByOrigin         map[shared.Origin]OriginTotals `json:"by_origin"`
	Trend            Change                         `json:"trend"`
}

// SupplierTotal is one supplier's 12-month spend. A nil SupplierID groups unresolved lines.
type SupplierTotal struct {
	SupplierID       *uuid.UUID      `json:"supplier_id"`
	Spend            decimal.Decimal `json:"spend"`
	LineCount        int             `json:"line_count"`
	DistinctProducts int             `json:"distinct_products"`
	LastPurchasedAt  *time.Time      `json:"last_purchased_at,omitempty"`
	Trend            Change          `json:"trend"`
}

// ProductTotal is one canonical product's 12-month spend, quantity and latest price
type ProductTotal struct {
	Identity        product.Identity    `json:"-"`
	SupplierID      *uuid.UUID          `json:"supplier_id,omitempty"`
	ProductKey      string              `json:"product_key"`
	DisplayName     string              `json:"display_name"`
	Spend           decimal.Decimal     `json:"spend"`
	Quantity        decimal.Decimal     `json:"quantity"`
	LineCount       int                 `json:"line_count"`
	LatestUnitPrice decimal.NullDecimal `json:"latest_unit_price"`
	LastPurchasedAt *time.Time          `json:"last_purchased_at,omitempty"`
	Trend           Change              `json:"trend"`
}

// Breakdown groups the same spend by supplier and by product
type Breakdown struct {
	Window     Window          `json:"window"`
	BySupplier []SupplierTotal `json:"by_supplier"`
	ByProduct  []ProductTotal  `json:"by_product"`
}

type periods struct {
	spend   Window
	current Window
	prior   Window
}

func newPeriods(asOf time.Time) periods {
	current := TrailingMonths(asOf, TrendPeriodMonths)
	return periods{
		spend:   TrailingMonths(asOf, SpendWindowMonths),
		current: current,
		prior:   current.Preceding(),
	}
}

// Summarize totals each origin on its own and then adds the two
func Summarize(o Origins, asOf time.Time) Summary {
	p := newPeriods(asOf)

	external := originTotals(o.External, p.spend)
	manual := originTotals(o.Manual, p.spend)
	total := external.add(manual)

	current := sumSpend(o.External, p.current).Add(sumSpend(o.Manual, p.current))
	prior := sumSpend(o.External, p.prior).Add(sumSpend(o.Manual, p.prior))

	return Summary{
		Window:           p.spend,
		Spend:            total.Spend,
		LineCount:        total.LineCount,
		DistinctProducts: total.DistinctProducts,
		ByOrigin: map[shared.Origin]OriginTotals{
			shared.OriginExternal: external,
			shared.OriginManual:   manual,
		},
		Trend: Compare(current, prior),
	}
}

func originTotals(lines []invoice.Line, w Window) OriginTotals {
	t := OriginTotals{Spend: decimal.Zero}
	products := make(map[string]struct{})
	for _, l := range lines {
		if !w.Contains(l.InvoiceDate) {
			continue
		}
		t.Spend = t.Spend.Add(l.LineTotal)
		t.LineCount++
		products[l.Identity().String()] = struct{}{}
	}
	t.DistinctProducts = len(products)
	return t
}

func sumSpend(lines []invoice.Line, w Window) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		if w.Contains(l.InvoiceDate) {
			total = total.Add(l.LineTotal)
		}
	}
	return total
}

// group accumulates one supplier or product within one origin, then across origins
type group struct {
	supplierID       *uuid.UUID
	identity         product.Identity
	spend            decimal.Decimal
	current          decimal.Decimal
	prior            decimal.Decimal
	quantity         decimal.Decimal
	lines            int
	distinctProducts int
	lastPurchased    time.Time
	latest           *Observation
	named            *Observation
	name             string
}

func newGroup() *group {
	return &group{spend: decimal.Zero, current: decimal.Zero, prior: decimal.Zero, quantity: decimal.Zero}
}

func (g *group) merge(o *group) {
	g.spend = g.spend.Add(o.spend)
	g.current = g.current.Add(o.current)
	g.prior = g.prior.Add(o.prior)
	g.quantity = g.quantity.Add(o.quantity)
	g.lines += o.lines
	g.distinctProducts += o.distinctProducts
	if o.lastPurchased.After(g.lastPurchased) {
		g.lastPurchased = o.lastPurchased
	}
	if o.latest != nil && (g.latest == nil || o.latest.After(*g.latest)) {
		g.latest = o.latest
	}
	if o.named != nil && (g.named == nil || o.named.After(*g.named)) {
		g.named = o.named
		g.name = o.name
	}
}

func groupOrigin(lines []invoice.Line, p periods, keyOf func(l invoice.Line) string) map[string]*group {
	groups := make(map[string]*group)
	products := make(map[string]map[string]struct{})

	for _, l := range lines {
		inSpend := p.spend.Contains(l.InvoiceDate)
		inCurrent := p.current.Contains(l.InvoiceDate)
		inPrior := p.prior.Contains(l.InvoiceDate)
		if !inSpend && !inCurrent && !inPrior {
			continue
		}

		key := keyOf(l)
		g, ok := groups[key]
		if !ok {
			g = newGroup()
			g.supplierID = l.SupplierID
			g.identity = l.Identity()
			groups[key] = g
			products[key] = make(map[string]struct{})
		}

		if inCurrent {
			g.current = g.current.Add(l.LineTotal)
		}
		if inPrior {
			g.prior = g.prior.Add(l.LineTotal)
		}
		if !inSpend {
			continue
		}

		g.spend = g.spend.Add(l.LineTotal)
		g.lines++
		if l.Quantity.Valid {
			g.quantity = g.quantity.Add(l.Quantity.Decimal)
		}
		if l.InvoiceDate.After(g.lastPurchased) {
			g.lastPurchased = l.InvoiceDate
		}
		products[key][l.Identity().String()] = struct{}{}

		obs := observationOf(l)
		if l.PriceObservation() && (g.latest == nil || obs.After(*g.latest)) {
			latest := obs
			g.latest = &latest
		}
		if name := displayNameOf(l); name != "" && (g.named == nil || obs.After(*g.named)) {
			named := obs
			g.named = &named
			g.name = name
		}
	}

	for key, g := range groups {
		g.distinctProducts = len(products[key])
	}
	return groups
}

func mergeOrigins(o Origins, p periods, keyOf func(l invoice.Line) string) map[string]*group {
	merged := groupOrigin(o.External, p, keyOf)
	for key, g := range groupOrigin(o.Manual, p, keyOf) {
		if existing, ok := merged[key]; ok {
			existing.merge(g)
			continue
		}
		merged[key] = g
	}
	return merged
}

func supplierKey(l invoice.Line) string {
	if l.SupplierID == nil {
		return ""
	}
	return l.SupplierID.String()
}

func productKey(l invoice.Line) string {
	return l.Identity().String()
}

func displayNameOf(l invoice.Line) string {
	if d := strings.Join(strings.Fields(l.Description), " "); d != "" {
		return d
	}
	return strings.TrimSpace(l.ItemCode)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// SpendBySupplier returns every supplier with spend in the 12-month window, largest first
func SpendBySupplier(o Origins, asOf time.Time) []SupplierTotal {
	groups := mergeOrigins(o, newPeriods(asOf), supplierKey)

	out := make([]SupplierTotal, 0, len(groups))
	for _, g := range groups {
		if g.lines == 0 {
			continue
		}
		out = append(out, SupplierTotal{
			SupplierID:       g.supplierID,
			Spend:            g.spend,
			LineCount:        g.lines,
			DistinctProducts: g.distinctProducts,
			LastPurchasedAt:  timePtr(g.lastPurchased),
			Trend:            Compare(g.current, g.prior),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Spend.Equal(out[j].Spend) {
			return out[i].Spend.GreaterThan(out[j].Spend)
		}
		return supplierSortKey(out[i].SupplierID) < supplierSortKey(out[j].SupplierID)
	})
	return out
}

// unresolved suppliers sort last among equal spend
func supplierSortKey(id *uuid.UUID) string {
	if id == nil {
		return "~"
	}
	return id.String()
}

// SpendByProduct returns every product with spend in the 12-month window, largest first
func SpendByProduct(o Origins, asOf time.Time) []ProductTotal {
	groups := mergeOrigins(o, newPeriods(asOf), productKey)

	out := make([]ProductTotal, 0, len(groups))
	for _, g := range groups {
		if g.lines == 0 {
			continue
		}
		pt := ProductTotal{
			Identity:        g.identity,
			SupplierID:      g.identity.SupplierID,
			ProductKey:      g.identity.Key,
			DisplayName:     g.name,
			Spend:           g.spend,
			Quantity:        g.quantity,
			LineCount:       g.lines,
			LastPurchasedAt: timePtr(g.lastPurchased),
			Trend:           Compare(g.current, g.prior),
		}
		if pt.DisplayName == "" {
			pt.DisplayName = unknownDisplayName
		}
		if g.latest != nil {
			pt.LatestUnitPrice = decimal.NewNullDecimal(g.latest.UnitPrice)
		}
		out = append(out, pt)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Spend.Equal(out[j].Spend) {
			return out[i].Spend.GreaterThan(out[j].Spend)
		}
		return out[i].Identity.String() < out[j].Identity.String()
	})
	return out
}

// Break computes both groupings over the same lines
func Break(o Origins, asOf time.Time) Breakdown {
	return Breakdown{
		Window:     TrailingMonths(asOf, SpendWindowMonths),
		BySupplier: SpendBySupplier(o, asOf),
		ByProduct:  SpendByProduct(o, asOf),
	}
}
