package sync

import (
	"errors"
	"fmt"
	"strings"

	"invoice-sync-backend/internal/models"

	"github.com/shopspring/decimal"
)

// Spreadsheet column headers the pipeline depends on.
const (
	ColumnShipment     = "Shipment"
	ColumnType         = "Type"
	ColumnInvoiceDate  = "Inv. Date"
	ColumnJobInvoice   = "Job Invoice #"
	ColumnTotalInvoice = "Total Invoice"
)

var requiredColumns = []string{ColumnInvoiceDate, ColumnType, ColumnJobInvoice, ColumnShipment}

var ErrNoRows = errors.New("no data found in spreadsheet")

// ParseRows maps raw sheet values (header row first) onto charge rows,
// preserving source order. Blank rows are skipped; missing or non-numeric
// amounts become 0.
func ParseRows(values [][]string) ([]models.ChargeRow, error) {
	if len(values) == 0 {
		return nil, ErrNoRows
	}

	index := make(map[string]int, len(values[0]))
	for i, name := range values[0] {
		index[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, column := range requiredColumns {
		if _, ok := index[column]; !ok {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	rows := make([]models.ChargeRow, 0, len(values)-1)
	for _, record := range values[1:] {
		if strings.TrimSpace(strings.Join(record, "")) == "" {
			continue
		}

		cell := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		row := models.ChargeRow{
			Shipment:         cell(ColumnShipment),
			JobInvoiceNumber: cell(ColumnJobInvoice),
			Type:             cell(ColumnType),
			InvoiceDate:      cell(ColumnInvoiceDate),
			TotalInvoice:     parseAmount(cell(ColumnTotalInvoice)),
			Charges:          make(map[string]float64, len(chargeCodes)),
		}
		for _, cc := range chargeCodes {
			row.Charges[cc.Code] = parseAmount(cell(cc.Code))
		}

		rows = append(rows, row)
	}
	return rows, nil
}

// parseAmount coerces a sheet cell to a number; anything unparseable is 0.
func parseAmount(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}
