package retro

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hospitality-spend-ledger/internal/domain/batch"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

// Preview counts up to MaxScanned candidates and evaluates the first
// PreviewSampleSize of them. When the count exceeds the sample the eligible
// count is extrapolated and flagged as estimated.
func (p *Processor) Preview(ctx context.Context, scope shared.Scope) (*batch.Preview, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	scanned, err := p.documents.CountCandidates(ctx, scope, p.cfg.MaxScanned)
	if err != nil {
		return nil, fmt.Errorf("failed to count candidates: %w", err)
	}

	sample, err := p.documents.SelectCandidates(ctx, scope, p.cfg.PreviewSampleSize)
	if err != nil {
		return nil, fmt.Errorf("failed to select candidates: %w", err)
	}

	res, approvals := p.evaluate("preview", true, sample)
	eligible := len(approvals)

	preview := &batch.Preview{
		Scope:           scope,
		Scanned:         scanned,
		Sampled:         len(sample),
		Eligible:        eligible,
		ScanCapped:      scanned >= p.cfg.MaxScanned,
		ReasonHistogram: res.ReasonHistogram,
	}
	if scanned < len(sample) {
		preview.Scanned = len(sample)
	}
	if preview.Scanned > len(sample) && len(sample) > 0 {
		preview.Eligible = EstimateEligible(eligible, len(sample), preview.Scanned)
		preview.Estimated = true
	}
	return preview, nil
}

// EstimateEligible extrapolates round(eligible × scanned / sampled)
func EstimateEligible(eligible, sampled, scanned int) int {
	if sampled == 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(eligible)).
		Mul(decimal.NewFromInt(int64(scanned))).
		Div(decimal.NewFromInt(int64(sampled))).
		Round(0).
		IntPart())
}
