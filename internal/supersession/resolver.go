// Package supersession decides which externally synced invoices must drop out of analytics.
package supersession

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hospitality-spend-ledger/internal/analytics"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

// Source reads the two exclusion signals
type Source interface {
	SupersededExternalIDs(ctx context.Context, scope shared.Scope, from, to time.Time) ([]string, error)
	AttachedExternalIDs(ctx context.Context, scope shared.Scope, from, to time.Time) ([]string, error)
}

// ExclusionSet is the set of external invoice ids excluded from spend, quantity and pricing alike.
type ExclusionSet struct {
	superseded map[string]struct{}
	attached   map[string]struct{}
}

var _ analytics.Excluder = (*ExclusionSet)(nil)

func NewExclusionSet(superseded, attached []string) *ExclusionSet {
	return &ExclusionSet{
		superseded: toSet(superseded),
		attached:   toSet(attached),
	}
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

// Excludes reports whether a synced invoice is superseded by a verified manual
// invoice or has any document attached to it
func (s *ExclusionSet) Excludes(externalID string) bool {
	if s == nil {
		return false
	}
	return s.IsSuperseded(externalID) || s.IsAttached(externalID)
}

func (s *ExclusionSet) IsSuperseded(externalID string) bool {
	_, ok := s.superseded[strings.TrimSpace(externalID)]
	return ok
}

func (s *ExclusionSet) IsAttached(externalID string) bool {
	_, ok := s.attached[strings.TrimSpace(externalID)]
	return ok
}

// IDs returns every excluded id, sorted
func (s *ExclusionSet) IDs() []string {
	seen := make(map[string]struct{}, len(s.superseded)+len(s.attached))
	for id := range s.superseded {
		seen[id] = struct{}{}
	}
	for id := range s.attached {
		seen[id] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *ExclusionSet) Len() int {
	return len(s.IDs())
}

// Resolver builds exclusion sets for a scope and window
type Resolver struct {
	source Source
	logger *slog.Logger
}

func NewResolver(source Source, logger *slog.Logger) *Resolver {
	return &Resolver{source: source, logger: logger}
}

// Resolve loads both signals for invoices dated inside w
func (r *Resolver) Resolve(ctx context.Context, scope shared.Scope, w analytics.Window) (*ExclusionSet, error) {
	superseded, err := r.source.SupersededExternalIDs(ctx, scope, w.From, w.To)
	if err != nil {
		r.logger.Error("Failed to load superseded external invoices", "scope", scope.Key(), "error", err)
		return nil, fmt.Errorf("failed to load superseded external invoices: %w", err)
	}

	attached, err := r.source.AttachedExternalIDs(ctx, scope, w.From, w.To)
	if err != nil {
		r.logger.Error("Failed to load attached external invoices", "scope", scope.Key(), "error", err)
		return nil, fmt.Errorf("failed to load attached external invoices: %w", err)
	}

	set := NewExclusionSet(superseded, attached)
	r.logger.Debug("Resolved external invoice exclusions",
		"scope", scope.Key(),
		"superseded", len(set.superseded),
		"attached", len(set.attached))
	return set, nil
}
