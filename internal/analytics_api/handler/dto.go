package handler

import (
	"time"

	"github.com/hospitality-spend-ledger/internal/domain/document"
)

// EvaluateRequest asks for a gate decision on one document
type EvaluateRequest struct {
	DocumentID string `json:"document_id" binding:"required,uuid"`
}

// RunBatchRequest starts a retro auto-verify batch. The Idempotency-Key header wins over the body.
type RunBatchRequest struct {
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	DryRun         bool   `json:"dry_run"`
}

// RefreshSnapshotRequest queues an out-of-band refresh for one account view
type RefreshSnapshotRequest struct {
	AccountCodes []string `json:"account_codes,omitempty"`
}

// DocumentResponse represents a document in API responses
type DocumentResponse struct {
	ID                 string `json:"id"`
	OrganisationID     string `json:"organisation_id"`
	LocationID         string `json:"location_id,omitempty"`
	ProcessingStatus   string `json:"processing_status"`
	ReviewStatus       string `json:"review_status"`
	VerificationSource string `json:"verification_source"`
	VerifiedBy         string `json:"verified_by,omitempty"`
	VerifiedAt         string `json:"verified_at,omitempty"`
	Version            int    `json:"version"`
}

// RefreshAcceptedResponse acknowledges a queued refresh
type RefreshAcceptedResponse struct {
	RequestID   string `json:"request_id"`
	Signature   string `json:"signature"`
	RequestedAt string `json:"requested_at"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

// PriceChangeParams bounds the price change feed. Zero means the default.
type PriceChangeParams struct {
	Limit int `form:"limit" binding:"min=0"`
}

func mapDocumentToResponse(doc *document.Document) DocumentResponse {
	response := DocumentResponse{
		ID:                 doc.ID.String(),
		OrganisationID:     doc.OrganisationID.String(),
		ProcessingStatus:   string(doc.ProcessingStatus),
		ReviewStatus:       string(doc.ReviewStatus),
		VerificationSource: string(doc.VerificationSource),
		VerifiedBy:         doc.VerifiedBy,
		Version:            doc.Version,
	}

	if doc.LocationID != nil {
		response.LocationID = doc.LocationID.String()
	}
	if doc.VerifiedAt != nil {
		response.VerifiedAt = doc.VerifiedAt.Format(time.RFC3339)
	}

	return response
}
