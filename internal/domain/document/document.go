// Package document models ingested invoice documents and their review lifecycle.
package document

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProcessingStatus tracks text extraction
type ProcessingStatus string

const (
	ProcessingPendingExtraction  ProcessingStatus = "PENDING_EXTRACTION"
	ProcessingExtractionComplete ProcessingStatus = "EXTRACTION_COMPLETE"
	ProcessingExtractionFailed   ProcessingStatus = "EXTRACTION_FAILED"
)

// ReviewStatus tracks human/automatic review. VERIFIED is terminal.
type ReviewStatus string

const (
	ReviewNone           ReviewStatus = "NONE"
	ReviewAwaitingReview ReviewStatus = "AWAITING_REVIEW"
	ReviewVerified       ReviewStatus = "VERIFIED"
)

// VerificationSource records who verified a document
type VerificationSource string

const (
	SourceNone      VerificationSource = "NONE"
	SourceHuman     VerificationSource = "HUMAN"
	SourceAutomatic VerificationSource = "AUTOMATIC"
)

// Document is an uploaded or ingested invoice record
type Document struct {
	ID                 uuid.UUID          `json:"id"`
	OrganisationID     uuid.UUID          `json:"organisation_id"`
	LocationID         *uuid.UUID         `json:"location_id,omitempty"`
	ProcessingStatus   ProcessingStatus   `json:"processing_status"`
	ReviewStatus       ReviewStatus       `json:"review_status"`
	VerificationSource VerificationSource `json:"verification_source"`
	ConfidenceScore    *float64           `json:"confidence_score,omitempty"` // 0-100
	ValidationErrors   []string           `json:"validation_errors,omitempty"`
	ExtractedAt        *time.Time         `json:"extracted_at,omitempty"`
	LastEditedAt       *time.Time         `json:"last_edited_at,omitempty"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`
	VerifiedBy         string             `json:"verified_by,omitempty"`
	Version            int                `json:"version"` // guards state transitions
	DeletedAt          *time.Time         `json:"deleted_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// HasManualEdits reports whether someone edited the document after extraction
func (d *Document) HasManualEdits() bool {
	if d.LastEditedAt == nil {
		return false
	}
	if d.ExtractedAt == nil {
		return true
	}
	return d.LastEditedAt.After(*d.ExtractedAt)
}

// HasValidationErrors ignores blank entries
func (d *Document) HasValidationErrors() bool {
	for _, e := range d.ValidationErrors {
		if strings.TrimSpace(e) != "" {
			return true
		}
	}
	return false
}

func (d *Document) IsDeleted() bool {
	return d.DeletedAt != nil
}

// CanTransition reports whether the review state machine allows from -> to.
func CanTransition(from, to ReviewStatus) bool {
	switch from {
	case ReviewNone:
		return to == ReviewAwaitingReview
	case ReviewAwaitingReview:
		// NONE routes the document back to re-extraction
		return to == ReviewVerified || to == ReviewNone
	default:
		return false
	}
}

// MarkAwaitingReview moves a freshly extracted document into the review queue
func (d *Document) MarkAwaitingReview(at time.Time) error {
	if !CanTransition(d.ReviewStatus, ReviewAwaitingReview) {
		return ErrInvalidTransition{DocumentID: d.ID, From: d.ReviewStatus, To: ReviewAwaitingReview}
	}
	d.ReviewStatus = ReviewAwaitingReview
	d.ProcessingStatus = ProcessingExtractionComplete
	d.ExtractedAt = &at
	d.touch(at)
	return nil
}

// Verify moves the document to VERIFIED. Source must be HUMAN or AUTOMATIC.
func (d *Document) Verify(source VerificationSource, by string, at time.Time) error {
	if source != SourceHuman && source != SourceAutomatic {
		return ErrInvalidVerificationSource{Source: source}
	}
	if d.IsDeleted() || !CanTransition(d.ReviewStatus, ReviewVerified) {
		return ErrInvalidTransition{DocumentID: d.ID, From: d.ReviewStatus, To: ReviewVerified}
	}
	d.ReviewStatus = ReviewVerified
	d.VerificationSource = source
	d.VerifiedBy = by
	d.VerifiedAt = &at
	d.touch(at)
	return nil
}

// FailExtraction routes an awaiting document back to extraction
func (d *Document) FailExtraction(at time.Time) error {
	if !CanTransition(d.ReviewStatus, ReviewNone) {
		return ErrInvalidTransition{DocumentID: d.ID, From: d.ReviewStatus, To: ReviewNone}
	}
	d.ReviewStatus = ReviewNone
	d.ProcessingStatus = ProcessingPendingExtraction
	d.touch(at)
	return nil
}

func (d *Document) touch(at time.Time) {
	d.UpdatedAt = at
	d.Version++
}
