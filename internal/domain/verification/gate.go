// Package verification implements the automatic verification gate.
//
// Evaluate is pure: the feature flag and every record it inspects are passed in.
// Rules run in a fixed order and the first failing rule names the rejection.
package verification

import (
	"github.com/hospitality-spend-ledger/internal/domain/document"
	"github.com/hospitality-spend-ledger/internal/domain/invoice"
	"github.com/hospitality-spend-ledger/internal/domain/supplier"
)

// ConfidenceThreshold is the minimum extraction confidence on a 0-100 scale
const ConfidenceThreshold = 90.0

// Reason is a stable rejection code
type Reason string

const (
	ReasonFeatureDisabled     Reason = "FEATURE_DISABLED"
	ReasonAlreadyVerified     Reason = "ALREADY_VERIFIED"
	ReasonNotReviewable       Reason = "NOT_REVIEWABLE"
	ReasonHasManualEdits      Reason = "HAS_MANUAL_EDITS"
	ReasonNotOCRComplete      Reason = "NOT_OCR_COMPLETE"
	ReasonHasValidationErrors Reason = "HAS_VALIDATION_ERRORS"
	ReasonNoInvoice           Reason = "NO_INVOICE"
	ReasonNoSupplier          Reason = "NO_SUPPLIER"
	ReasonSupplierNotFound    Reason = "SUPPLIER_NOT_FOUND"
	ReasonSupplierNotActive   Reason = "SUPPLIER_NOT_ACTIVE"
	ReasonNoQualityData       Reason = "NO_QUALITY_DATA"
	ReasonHasWarningLines     Reason = "HAS_WARNING_LINES"
	ReasonLowConfidence       Reason = "LOW_CONFIDENCE"
	ReasonMissingInvoiceDate  Reason = "MISSING_INVOICE_DATE"
	ReasonMissingTotal        Reason = "MISSING_TOTAL"
	ReasonNegativeTotal       Reason = "NEGATIVE_TOTAL"

	// ReasonStateChanged is recorded by the batch processor when a guarded update loses its race.
	// The gate itself never returns it.
	ReasonStateChanged Reason = "STATE_CHANGED"
)

// Input is everything the gate looks at
type Input struct {
	FeatureEnabled bool
	Document       *document.Document
	Invoice        *invoice.ManualInvoice
	Supplier       *supplier.Supplier
	Quality        *invoice.QualitySummary
}

// InputFromCandidate pairs a review candidate with the feature flag for its location
func InputFromCandidate(c *document.Candidate, featureEnabled bool) Input {
	return Input{
		FeatureEnabled: featureEnabled,
		Document:       c.Document,
		Invoice:        c.Invoice,
		Supplier:       c.Supplier,
		Quality:        c.Quality,
	}
}

// Decision is the gate outcome. Reason is empty when Approved.
type Decision struct {
	Approved bool   `json:"approved"`
	Reason   Reason `json:"reason,omitempty"`
}

func Approved() Decision {
	return Decision{Approved: true}
}

func Rejected(reason Reason) Decision {
	return Decision{Reason: reason}
}

type rule struct {
	reason  Reason
	rejects func(in Input) bool
}

var rules = []rule{
	{ReasonFeatureDisabled, func(in Input) bool { return !in.FeatureEnabled }},
	{ReasonAlreadyVerified, func(in Input) bool {
		return in.Document != nil && in.Document.ReviewStatus == document.ReviewVerified
	}},
	{ReasonNotReviewable, func(in Input) bool {
		return in.Document == nil || in.Document.IsDeleted() || in.Document.ReviewStatus != document.ReviewAwaitingReview
	}},
	{ReasonHasManualEdits, func(in Input) bool { return in.Document.HasManualEdits() }},
	{ReasonNotOCRComplete, func(in Input) bool {
		return in.Document.ProcessingStatus != document.ProcessingExtractionComplete
	}},
	{ReasonHasValidationErrors, func(in Input) bool { return in.Document.HasValidationErrors() }},
	{ReasonNoInvoice, func(in Input) bool { return in.Invoice == nil || in.Invoice.DeletedAt != nil }},
	{ReasonNoSupplier, func(in Input) bool { return in.Invoice.SupplierID == nil }},
	{ReasonSupplierNotFound, func(in Input) bool {
		return in.Supplier == nil || in.Supplier.ID != *in.Invoice.SupplierID
	}},
	{ReasonSupplierNotActive, func(in Input) bool { return !in.Supplier.IsActive() }},
	{ReasonNoQualityData, func(in Input) bool { return in.Quality == nil || in.Quality.Lines == 0 }},
	{ReasonHasWarningLines, func(in Input) bool { return in.Quality.WarningLines > 0 }},
	{ReasonLowConfidence, func(in Input) bool {
		return in.Document.ConfidenceScore == nil || *in.Document.ConfidenceScore < ConfidenceThreshold
	}},
	{ReasonMissingInvoiceDate, func(in Input) bool { return in.Invoice.InvoiceDate == nil }},
	{ReasonMissingTotal, func(in Input) bool { return !in.Invoice.HasUsableTotal() }},
	{ReasonNegativeTotal, func(in Input) bool { return in.Invoice.Total.Decimal.IsNegative() }},
}

// Evaluate runs every rule in order and stops at the first rejection.
// Later rules may assume the records earlier rules checked are present.
func Evaluate(in Input) Decision {
	for _, r := range rules {
		if r.rejects(in) {
			return Rejected(r.reason)
		}
	}
	return Approved()
}

// Reasons lists gate rejection codes in evaluation order
func Reasons() []Reason {
	out := make([]Reason, len(rules))
	for i, r := range rules {
		out[i] = r.reason
	}
	return out
}
