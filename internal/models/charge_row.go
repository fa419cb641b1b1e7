package models

import "strings"

// TypeCreditNote marks a spreadsheet row as a credit note rather than a
// regular debit invoice.
const TypeCreditNote = "CRD"

// ChargeRow is one shipment-charge record from the spreadsheet. Charges maps
// a charge code (e.g. "FRT") to its numeric amount; unknown columns are never
// copied in, and missing or non-numeric amounts are stored as 0.
type ChargeRow struct {
	Shipment         string
	JobInvoiceNumber string
	Type             string
	InvoiceDate      string // raw MM/DD/YYYY text, parsed by the transformer
	TotalInvoice     float64
	Charges          map[string]float64
}

func (r ChargeRow) IsCreditNote() bool {
	return strings.ToUpper(strings.TrimSpace(r.Type)) == TypeCreditNote
}
