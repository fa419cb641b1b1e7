package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	BatchStatusProcessing = "processing"
	BatchStatusCompleted  = "completed"
	BatchStatusFailed     = "failed"

	OutcomeStatusSuccess = "success"
	OutcomeStatusError   = "error"
)

// SyncBatch is one run of the sheet-to-invoice pipeline.
type SyncBatch struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Source      string    // "sheet" | "csv"
	SourceRef   string    // spreadsheet id or uploaded filename
	Status      string    `gorm:"index"`
	TotalRows   int
	Successful  int
	Failed      int
	TotalAmount float64
	StartedAt   time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
}

// RowOutcome is the stored per-row result of a batch, in source order
// (Position is the zero-based row index).
type RowOutcome struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	BatchID      uuid.UUID `gorm:"index"`
	Position     int       `gorm:"index"`
	Shipment     string
	JobInvoice   string
	RowType      string
	Status       string `gorm:"index"`
	InvoiceID    string
	Amount       float64
	InvoiceDate  string
	ErrorMessage string
	Details      datatypes.JSON
	CreatedAt    time.Time
}
