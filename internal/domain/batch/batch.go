// Package batch models retro approval batches, their idempotency records and audit events.
package batch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

const MaxIdempotencyKeyLength = 128

var ErrInvalidIdempotencyKey = errors.New("idempotency key must be 1-128 characters")

// Status defines batch lifecycle states
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Batch is the idempotency record of one retro approval run.
type Batch struct {
	ID                 uuid.UUID        `json:"id"`
	OrganisationID     uuid.UUID        `json:"organisation_id"`
	LocationID         *uuid.UUID       `json:"location_id,omitempty"`
	IdempotencyKey     string           `json:"idempotency_key"`
	Fingerprint        string           `json:"fingerprint"`
	Status             Status           `json:"status"`
	MaxApprovals       int              `json:"max_approvals"`
	ScannedCount       int              `json:"scanned_count"`
	ApprovedCount      int              `json:"approved_count"`
	SkippedCount       int              `json:"skipped_count"`
	ApprovedInvoiceIDs []uuid.UUID      `json:"approved_invoice_ids"`
	ReasonHistogram    map[string]int   `json:"reason_histogram"`
	Actor              shared.Principal `json:"actor"`
	FailureReason      string           `json:"failure_reason,omitempty"`
	Version            int              `json:"version"`
	StartedAt          time.Time        `json:"started_at"`
	CompletedAt        *time.Time       `json:"completed_at,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// NewBatch starts an in-progress batch for the request
func NewBatch(req Request, fingerprint string, actor shared.Principal, now time.Time) *Batch {
	return &Batch{
		ID:                 uuid.New(),
		OrganisationID:     req.Scope.OrganisationID,
		LocationID:         req.Scope.LocationID,
		IdempotencyKey:     req.IdempotencyKey,
		Fingerprint:        fingerprint,
		Status:             StatusInProgress,
		MaxApprovals:       req.MaxApprovals,
		ApprovedInvoiceIDs: []uuid.UUID{},
		ReasonHistogram:    map[string]int{},
		Actor:              actor,
		Version:            1,
		StartedAt:          now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func (b *Batch) Scope() shared.Scope {
	return shared.Scope{OrganisationID: b.OrganisationID, LocationID: b.LocationID}
}

// IsStale reports whether an in-progress batch has been abandoned
func (b *Batch) IsStale(now time.Time, after time.Duration) bool {
	return b.Status == StatusInProgress && now.Sub(b.UpdatedAt) > after
}

// Reclaimable reports whether a new run may take over this record
func (b *Batch) Reclaimable(now time.Time, staleAfter time.Duration) bool {
	return b.Status == StatusFailed || b.IsStale(now, staleAfter)
}

// Complete copies the run outcome onto the record
func (b *Batch) Complete(res *Result, now time.Time) {
	b.Status = StatusCompleted
	b.ScannedCount = res.Scanned
	b.ApprovedCount = res.ApprovedCount
	b.SkippedCount = res.SkippedCount
	b.ApprovedInvoiceIDs = res.ApprovedInvoiceIDs
	b.ReasonHistogram = res.ReasonHistogram
	b.CompletedAt = &now
	b.UpdatedAt = now
}

// Result rebuilds the run outcome from a stored batch
func (b *Batch) Result() *Result {
	id := b.ID
	ids := b.ApprovedInvoiceIDs
	if ids == nil {
		ids = []uuid.UUID{}
	}
	hist := b.ReasonHistogram
	if hist == nil {
		hist = map[string]int{}
	}
	return &Result{
		BatchID:            &id,
		IdempotencyKey:     b.IdempotencyKey,
		Status:             b.Status,
		Scanned:            b.ScannedCount,
		ApprovedCount:      b.ApprovedCount,
		SkippedCount:       b.SkippedCount,
		ApprovedInvoiceIDs: ids,
		ReasonHistogram:    hist,
		CompletedAt:        b.CompletedAt,
	}
}

// Request carries the semantically relevant parameters of a run
type Request struct {
	Scope          shared.Scope
	IdempotencyKey string
	DryRun         bool
	MaxApprovals   int
}

// ValidateIdempotencyKey trims and bounds the key
func ValidateIdempotencyKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || len(key) > MaxIdempotencyKeyLength {
		return "", ErrInvalidIdempotencyKey
	}
	return key, nil
}

type fingerprintPayload struct {
	OrganisationID string `json:"organisation_id"`
	LocationID     string `json:"location_id"`
	DryRun         bool   `json:"dry_run"`
	MaxApprovals   int    `json:"max_approvals"`
}

// Fingerprint hashes the request parameters that change a run's meaning.
// The idempotency key itself is not part of it.
func Fingerprint(req Request) string {
	p := fingerprintPayload{
		OrganisationID: req.Scope.OrganisationID.String(),
		DryRun:         req.DryRun,
		MaxApprovals:   req.MaxApprovals,
	}
	if req.Scope.LocationID != nil {
		p.LocationID = req.Scope.LocationID.String()
	}
	// struct field order keeps the encoding canonical
	raw, _ := json.Marshal(p)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Result is returned by every run, dry or not, fresh or replayed
type Result struct {
	BatchID            *uuid.UUID     `json:"batch_id,omitempty"`
	IdempotencyKey     string         `json:"idempotency_key"`
	Status             Status         `json:"status,omitempty"`
	DryRun             bool           `json:"dry_run"`
	Replayed           bool           `json:"replayed"`
	Scanned            int            `json:"scanned"`
	ApprovedCount      int            `json:"approved_count"`
	SkippedCount       int            `json:"skipped_count"`
	ApprovedInvoiceIDs []uuid.UUID    `json:"approved_invoice_ids"`
	ReasonHistogram    map[string]int `json:"reason_histogram"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
}

// NewResult returns an empty result ready for accumulation
func NewResult(key string, dryRun bool) *Result {
	return &Result{
		IdempotencyKey:     key,
		DryRun:             dryRun,
		ApprovedInvoiceIDs: []uuid.UUID{},
		ReasonHistogram:    map[string]int{},
	}
}

func (r *Result) Approve(invoiceID uuid.UUID) {
	r.ApprovedCount++
	r.ApprovedInvoiceIDs = append(r.ApprovedInvoiceIDs, invoiceID)
}

func (r *Result) Skip(reason string) {
	r.SkippedCount++
	r.ReasonHistogram[reason]++
}

// Preview summarises how many candidates are eligible right now
type Preview struct {
	Scope           shared.Scope   `json:"scope"`
	Scanned         int            `json:"scanned"`
	Sampled         int            `json:"sampled"`
	Eligible        int            `json:"eligible"`
	Estimated       bool           `json:"estimated"`
	ScanCapped      bool           `json:"scan_capped"`
	ReasonHistogram map[string]int `json:"reason_histogram"`
}
