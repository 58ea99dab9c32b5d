package retro

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hospitality-spend-ledger/internal/domain/batch"
	"github.com/hospitality-spend-ledger/internal/domain/document"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
	"github.com/hospitality-spend-ledger/internal/domain/verification"
)

// Processor is the retro batch approval processor
type Processor struct {
	tx        TxRunner
	documents document.Repository
	batches   batch.Repository
	approver  Approver
	features  FeatureGate
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

var _ Service = (*Processor)(nil)

func NewProcessor(
	tx TxRunner,
	documents document.Repository,
	batches batch.Repository,
	approver Approver,
	features FeatureGate,
	cfg Config,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		tx:        tx,
		documents: documents,
		batches:   batches,
		approver:  approver,
		features:  features,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes or replays the batch identified by the idempotency key.
//
// A completed batch with the same fingerprint is returned unchanged. A different
// fingerprint is ErrFingerprintMismatch. A live in-progress batch is ErrBatchInProgress.
// Dry runs evaluate the same candidates but write nothing. Up to MaxScanned
// candidates are evaluated in queue order; the scan stops once MaxApprovalsPerRun
// approvals are collected.
func (p *Processor) Run(ctx context.Context, req RunRequest) (*batch.Result, error) {
	if err := req.Scope.Validate(); err != nil {
		return nil, err
	}
	key, err := batch.ValidateIdempotencyKey(req.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	logger := p.logger.With("idempotency_key", key, "scope", req.Scope.Key(), "dry_run", req.DryRun)
	if req.CorrelationID != "" {
		logger = logger.With("correlation_id", req.CorrelationID)
	}

	breq := batch.Request{
		Scope:          req.Scope,
		IdempotencyKey: key,
		DryRun:         req.DryRun,
		MaxApprovals:   p.cfg.MaxApprovalsPerRun,
	}
	fingerprint := batch.Fingerprint(breq)

	existing, err := p.batches.GetByIdempotencyKey(ctx, req.Scope, key)
	if err != nil {
		return nil, fmt.Errorf("failed to look up batch: %w", err)
	}

	var reclaim *batch.Batch
	if existing != nil {
		res, err := p.resolveExisting(existing, fingerprint)
		if err != nil || res != nil {
			if res != nil {
				logger.Info("Replaying completed batch", "batch_id", existing.ID.String())
			}
			return res, err
		}
		reclaim = existing
	}

	if req.DryRun {
		candidates, err := p.documents.SelectCandidates(ctx, req.Scope, p.cfg.MaxScanned)
		if err != nil {
			return nil, fmt.Errorf("failed to select candidates: %w", err)
		}
		res, approvals := p.evaluate(key, true, candidates)
		for _, c := range approvals {
			res.Approve(c.Invoice.ID)
		}
		logger.Info("Dry run evaluated", "scanned", res.Scanned, "eligible", res.ApprovedCount)
		return res, nil
	}

	b, res, err := p.claim(ctx, breq, fingerprint, req.Actor, reclaim)
	if err != nil || res != nil {
		return res, err
	}
	logger = logger.With("batch_id", b.ID.String())

	candidates, err := p.documents.SelectCandidates(ctx, req.Scope, p.cfg.MaxScanned)
	if err != nil {
		p.fail(ctx, logger, b, err)
		return nil, fmt.Errorf("failed to select candidates: %w", err)
	}

	res, approvals := p.evaluate(key, false, candidates)
	res.BatchID = &b.ID

	err = p.tx.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return p.approver.ApplyBatch(ctx, tx, b, approvals, res)
	})
	if err != nil {
		p.fail(ctx, logger, b, err)
		return nil, fmt.Errorf("failed to apply batch: %w", err)
	}

	res.Status = batch.StatusCompleted
	res.CompletedAt = b.CompletedAt
	logger.Info("Retro batch completed",
		"scanned", res.Scanned,
		"approved", res.ApprovedCount,
		"skipped", res.SkippedCount)
	return res, nil
}

// resolveExisting returns a replayed result, a conflict, or nil, nil when the record may be reclaimed
func (p *Processor) resolveExisting(existing *batch.Batch, fingerprint string) (*batch.Result, error) {
	if existing.Fingerprint != fingerprint {
		return nil, batch.ErrFingerprintMismatch{IdempotencyKey: existing.IdempotencyKey}
	}
	switch {
	case existing.Status == batch.StatusCompleted:
		res := existing.Result()
		res.Replayed = true
		return res, nil
	case existing.Reclaimable(p.now(), p.cfg.StaleBatchAfter):
		return nil, nil
	default:
		return nil, batch.ErrBatchInProgress{IdempotencyKey: existing.IdempotencyKey}
	}
}

// claim creates the idempotency record or takes over a reclaimable one. When a
// concurrent submission wins the unique key, the winner's record decides the outcome.
func (p *Processor) claim(ctx context.Context, breq batch.Request, fingerprint string, actor shared.Principal, reclaim *batch.Batch) (*batch.Batch, *batch.Result, error) {
	now := p.now().UTC()

	if reclaim != nil {
		reclaim.Status = batch.StatusInProgress
		reclaim.Actor = actor
		reclaim.FailureReason = ""
		reclaim.StartedAt = now
		reclaim.UpdatedAt = now
		if err := p.batches.Restart(ctx, reclaim); err != nil {
			return nil, nil, err
		}
		p.logger.Info("Reclaimed batch", "batch_id", reclaim.ID.String(), "idempotency_key", reclaim.IdempotencyKey)
		return reclaim, nil, nil
	}

	b := batch.NewBatch(breq, fingerprint, actor, now)
	err := p.batches.Create(ctx, b)
	if err == nil {
		return b, nil, nil
	}
	if !errors.Is(err, batch.ErrBatchExists{}) {
		return nil, nil, fmt.Errorf("failed to create batch: %w", err)
	}

	winner, getErr := p.batches.GetByIdempotencyKey(ctx, breq.Scope, breq.IdempotencyKey)
	if getErr != nil {
		return nil, nil, fmt.Errorf("failed to re-read batch: %w", getErr)
	}
	if winner == nil {
		return nil, nil, batch.ErrBatchInProgress{IdempotencyKey: breq.IdempotencyKey}
	}
	if winner.Fingerprint != fingerprint {
		return nil, nil, batch.ErrFingerprintMismatch{IdempotencyKey: breq.IdempotencyKey}
	}
	if winner.Status == batch.StatusCompleted {
		res := winner.Result()
		res.Replayed = true
		return nil, res, nil
	}
	return nil, nil, batch.ErrBatchInProgress{IdempotencyKey: breq.IdempotencyKey}
}

func (p *Processor) fail(ctx context.Context, logger *slog.Logger, b *batch.Batch, cause error) {
	logger.Error("Retro batch failed", "error", cause)
	if err := p.batches.MarkFailed(ctx, b.ID, cause.Error()); err != nil {
		logger.Error("Failed to mark batch failed", "error", err)
	}
}

// evaluate runs the gate over candidates until MaxApprovalsPerRun approvals are
// collected. Skips are recorded on the result; candidates past the cap are not scanned.
func (p *Processor) evaluate(key string, dryRun bool, candidates []*document.Candidate) (*batch.Result, []*document.Candidate) {
	res := batch.NewResult(key, dryRun)

	approvals := make([]*document.Candidate, 0, min(len(candidates), p.cfg.MaxApprovalsPerRun))
	for _, c := range candidates {
		if len(approvals) >= p.cfg.MaxApprovalsPerRun {
			break
		}
		res.Scanned++
		decision := p.decide(c)
		if !decision.Approved {
			res.Skip(string(decision.Reason))
			continue
		}
		approvals = append(approvals, c)
	}
	return res, approvals
}

func (p *Processor) decide(c *document.Candidate) verification.Decision {
	enabled := false
	if c.Document != nil {
		enabled = p.features.AutoVerifyEnabled(c.Document.OrganisationID, c.Document.LocationID)
	}
	return verification.Evaluate(verification.InputFromCandidate(c, enabled))
}
