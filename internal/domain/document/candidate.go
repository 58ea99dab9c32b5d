package document

import (
	"github.com/hospitality-spend-ledger/internal/domain/invoice"
	"github.com/hospitality-spend-ledger/internal/domain/supplier"
)

// Candidate is a document awaiting review together with everything the verification gate reads.
type Candidate struct {
	Document *Document
	Invoice  *invoice.ManualInvoice // nil when ingestion never produced one
	Supplier *supplier.Supplier     // nil when unresolved or no longer present
	Quality  *invoice.QualitySummary
}
