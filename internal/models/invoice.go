package models

import "time"

const (
	InvoiceTypeReceivable = "ACCREC"
	InvoiceTypeCreditNote = "ACCRECCREDIT"

	// Drafts are never auto-approved; a human reviews them in Xero before
	// any money moves.
	InvoiceStatusDraft = "DRAFT"

	DefaultAccountCode      = "200"
	TaxTypeNone             = "NONE"
	LineAmountTypeExclusive = "Exclusive"
)

// LineItem is one charge line on an invoice draft. UnitAmount and LineAmount
// are always equal: negative for credit notes, positive otherwise.
type LineItem struct {
	Description string  `json:"Description"`
	Quantity    float64 `json:"Quantity"`
	UnitAmount  float64 `json:"UnitAmount"`
	AccountCode string  `json:"AccountCode"`
	TaxType     string  `json:"TaxType"`
	LineAmount  float64 `json:"LineAmount"`
}

// InvoiceDraft is a validated invoice ready for submission. Date and DueDate
// are UTC midnight instants; DueDate is exactly 30 calendar days after Date.
// A draft with no line items is never built.
type InvoiceDraft struct {
	Type            string
	ContactID       string
	LineItems       []LineItem
	Date            time.Time
	DueDate         time.Time
	Reference       string
	Status          string
	LineAmountTypes string
}
