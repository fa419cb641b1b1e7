package sync

import (
	"fmt"
	"strings"
	"time"

	"invoice-sync-backend/internal/models"

	"github.com/shopspring/decimal"
)

const (
	invoiceDateLayout = "01/02/2006" // MM/DD/YYYY as it appears on the sheet
	paymentTermDays   = 30
)

// chargeCode pairs a spreadsheet column code with the charge description
// used on the invoice line.
type chargeCode struct {
	Code        string
	Description string
}

// chargeCodes is the fixed set of known charge columns, in sheet order.
// Amounts under any other column are ignored.
var chargeCodes = []chargeCode{
	{"BRK", "Brokerage"},
	{"CDS", "Customs Duties"},
	{"DST", "Destination Charges"},
	{"FRT", "Freight Charges"},
	{"INS", "Insurance"},
	{"LOD", "Loading Charges"},
	{"ORG", "Origin Charges"},
	{"OBR", "Other Brokerage"},
	{"OBO", "Other Charges"},
	{"TRN", "Transportation"},
}

// ValidationError is a local data defect in one row. The batch records it
// and continues.
type ValidationError struct {
	Shipment string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("shipment %s: %s", e.Shipment, e.Reason)
}

// Transformer converts charge rows into invoice drafts. It is pure: the same
// row and contact id always yield the same draft.
type Transformer struct{}

func NewTransformer() *Transformer {
	return &Transformer{}
}

// Transform builds a validated draft from one row. It fails with
// *ValidationError when no charge code yields a nonzero amount or when the
// invoice date is not MM/DD/YYYY.
func (t *Transformer) Transform(row models.ChargeRow, contactID string) (models.InvoiceDraft, error) {
	items := lineItems(row)
	if len(items) == 0 {
		return models.InvoiceDraft{}, &ValidationError{
			Shipment: row.Shipment,
			Reason:   "no valid charges found",
		}
	}

	issued, err := time.ParseInLocation(invoiceDateLayout, strings.TrimSpace(row.InvoiceDate), time.UTC)
	if err != nil {
		return models.InvoiceDraft{}, &ValidationError{
			Shipment: row.Shipment,
			Reason:   fmt.Sprintf("invalid invoice date %q, expected MM/DD/YYYY", row.InvoiceDate),
		}
	}

	draftType := models.InvoiceTypeReceivable
	if row.IsCreditNote() {
		draftType = models.InvoiceTypeCreditNote
	}

	return models.InvoiceDraft{
		Type:            draftType,
		ContactID:       contactID,
		LineItems:       items,
		Date:            issued,
		DueDate:         issued.AddDate(0, 0, paymentTermDays),
		Reference:       row.JobInvoiceNumber,
		Status:          models.InvoiceStatusDraft,
		LineAmountTypes: models.LineAmountTypeExclusive,
	}, nil
}

// lineItems builds one line per known charge code with a nonzero amount.
// Credit notes carry negative amounts, everything else positive, always from
// the absolute value of the source figure.
func lineItems(row models.ChargeRow) []models.LineItem {
	credit := row.IsCreditNote()

	var items []models.LineItem
	for _, cc := range chargeCodes {
		amount := decimal.NewFromFloat(row.Charges[cc.Code]).Abs()
		if amount.IsZero() {
			continue
		}
		if credit {
			amount = amount.Neg()
		}

		value, _ := amount.Float64()
		items = append(items, models.LineItem{
			Description: cc.Description + " - " + row.JobInvoiceNumber,
			Quantity:    1.0,
			UnitAmount:  value,
			AccountCode: models.DefaultAccountCode,
			TaxType:     models.TaxTypeNone,
			LineAmount:  value,
		})
	}
	return items
}
