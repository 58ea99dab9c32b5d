package analytics

import (
	"github.com/hospitality-spend-ledger/internal/domain/invoice"
	"github.com/hospitality-spend-ledger/internal/domain/product"
)

// Excluder decides which synced invoices must not count
type Excluder interface {
	Excludes(externalID string) bool
}

// Origins holds the lines of each origin after that origin's own exclusion rule
// has been applied. Aggregates are computed per origin and then summed.
type Origins struct {
	External []invoice.Line
	Manual   []invoice.Line
}

// NewOrigins drops superseded or attached external lines and manual lines
// deselected from analytics. A nil excluder keeps every external line.
func NewOrigins(external, manual []invoice.Line, ex Excluder) Origins {
	o := Origins{
		External: make([]invoice.Line, 0, len(external)),
		Manual:   make([]invoice.Line, 0, len(manual)),
	}
	for _, l := range external {
		if ex != nil && ex.Excludes(l.ExternalID) {
			continue
		}
		o.External = append(o.External, l)
	}
	for _, l := range manual {
		if !l.IncludedInAnalytics {
			continue
		}
		o.Manual = append(o.Manual, l)
	}
	return o
}

// Each visits external lines, then manual lines
func (o Origins) Each(fn func(l invoice.Line)) {
	for _, l := range o.External {
		fn(l)
	}
	for _, l := range o.Manual {
		fn(l)
	}
}

// ForProduct keeps only lines resolving to the given product identity
func (o Origins) ForProduct(id product.Identity) Origins {
	want := id.String()
	filter := func(lines []invoice.Line) []invoice.Line {
		out := make([]invoice.Line, 0)
		for _, l := range lines {
			if l.Identity().String() == want {
				out = append(out, l)
			}
		}
		return out
	}
	return Origins{External: filter(o.External), Manual: filter(o.Manual)}
}
