// Package sync implements the sheet-to-invoice pipeline: row parsing,
// transformation into drafts, and sequential batch submission with per-row
// failure isolation.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"invoice-sync-backend/internal/models"
	"invoice-sync-backend/internal/repository"
	"invoice-sync-backend/internal/xero"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RowSource fetches raw sheet values, header row first.
type RowSource interface {
	FetchRows(ctx context.Context, spreadsheetID string) ([][]string, error)
}

type ConnectionsLister interface {
	Connections(ctx context.Context, token models.Token) ([]xero.Connection, error)
}

type ContactResolver interface {
	Resolve(ctx context.Context, tenantID, name string) (xero.Contact, error)
}

type ServiceParams struct {
	Processor *Processor
	Source    RowSource // nil when Google credentials are not configured
	Contacts  ContactResolver
	Batches   *repository.SyncBatchRepository
	Gateway   ConnectionsLister
	Tokens    TokenRunner
	Log       *zap.Logger

	TenantID      string // optional override; otherwise resolved per run
	SpreadsheetID string
	ContactName   string
}

type Service struct {
	processor *Processor
	source    RowSource
	contacts  ContactResolver
	batches   *repository.SyncBatchRepository
	gateway   ConnectionsLister
	tokens    TokenRunner
	log       *zap.Logger

	tenantID      string
	spreadsheetID string
	contactName   string
}

func NewService(p ServiceParams) *Service {
	return &Service{
		processor:     p.Processor,
		source:        p.Source,
		contacts:      p.Contacts,
		batches:       p.Batches,
		gateway:       p.Gateway,
		tokens:        p.Tokens,
		log:           p.Log,
		tenantID:      p.TenantID,
		spreadsheetID: p.SpreadsheetID,
		contactName:   p.ContactName,
	}
}

// RunFromSheet pulls rows from the spreadsheet and runs the pipeline.
// Arguments override the configured defaults when non-empty.
func (s *Service) RunFromSheet(ctx context.Context, spreadsheetID, contactName string) (*models.SyncBatch, RunResult, error) {
	if spreadsheetID == "" {
		spreadsheetID = s.spreadsheetID
	}
	if spreadsheetID == "" {
		return nil, RunResult{}, errors.New("spreadsheet id not configured")
	}
	if s.source == nil {
		return nil, RunResult{}, errors.New("google sheets source not configured")
	}

	values, err := s.source.FetchRows(ctx, spreadsheetID)
	if err != nil {
		return nil, RunResult{}, err
	}
	return s.run(ctx, "sheet", spreadsheetID, values, contactName)
}

// RunFromValues runs the pipeline over already-fetched values, e.g. an
// uploaded CSV.
func (s *Service) RunFromValues(ctx context.Context, source, sourceRef string, values [][]string, contactName string) (*models.SyncBatch, RunResult, error) {
	return s.run(ctx, source, sourceRef, values, contactName)
}

func (s *Service) run(ctx context.Context, source, sourceRef string, values [][]string, contactName string) (*models.SyncBatch, RunResult, error) {
	rows, err := ParseRows(values)
	if err != nil {
		return nil, RunResult{}, err
	}

	tenantID, err := s.tenant(ctx)
	if err != nil {
		return nil, RunResult{}, err
	}

	if contactName == "" {
		contactName = s.contactName
	}
	contact, err := s.contacts.Resolve(ctx, tenantID, contactName)
	if err != nil {
		return nil, RunResult{}, err
	}

	batch := &models.SyncBatch{
		ID:        uuid.New(),
		Source:    source,
		SourceRef: sourceRef,
		Status:    models.BatchStatusProcessing,
		TotalRows: len(rows),
		StartedAt: time.Now(),
		CreatedAt: time.Now(),
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, RunResult{}, err
	}

	s.log.Info("sync batch started",
		zap.String("batch_id", batch.ID.String()),
		zap.String("source", source),
		zap.Int("rows", len(rows)))

	result, runErr := s.processor.Process(ctx, tenantID, rows, contact.ContactID)

	// Record whatever was processed, even when the run was cut short.
	if err := s.batches.SaveOutcomes(ctx, toRecords(batch.ID, result.Outcomes)); err != nil {
		s.log.Warn("failed to persist row outcomes", zap.Error(err))
	}

	batch.TotalRows = result.Summary.Total
	batch.Successful = result.Summary.Successful
	batch.Failed = result.Summary.Failed
	batch.TotalAmount = result.Summary.TotalAmount
	batch.Status = models.BatchStatusCompleted
	if runErr != nil {
		batch.Status = models.BatchStatusFailed
	}
	if err := s.batches.Complete(ctx, batch); err != nil {
		s.log.Warn("failed to finalize batch", zap.Error(err))
	}

	s.log.Info("sync batch finished",
		zap.String("batch_id", batch.ID.String()),
		zap.String("status", batch.Status),
		zap.Int("successful", batch.Successful),
		zap.Int("failed", batch.Failed),
		zap.Float64("total_amount", batch.TotalAmount))

	return batch, result, runErr
}

// tenant returns the configured tenant id, or resolves the first
// organisation connected to the current token.
func (s *Service) tenant(ctx context.Context) (string, error) {
	if s.tenantID != "" {
		return s.tenantID, nil
	}

	var connections []xero.Connection
	err := s.tokens.WithAuthRetry(ctx, func(ctx context.Context, token models.Token) error {
		var err error
		connections, err = s.gateway.Connections(ctx, token)
		return err
	})
	if err != nil {
		return "", err
	}

	for _, conn := range connections {
		if conn.TenantType == "ORGANISATION" {
			return conn.TenantID, nil
		}
	}
	return "", errors.New("no Xero organisation tenant found")
}

func toRecords(batchID uuid.UUID, outcomes []Outcome) []models.RowOutcome {
	records := make([]models.RowOutcome, 0, len(outcomes))
	for i, o := range outcomes {
		details, _ := json.Marshal(o)
		records = append(records, models.RowOutcome{
			ID:           uuid.New(),
			BatchID:      batchID,
			Position:     i,
			Shipment:     o.Shipment,
			JobInvoice:   o.JobInvoice,
			RowType:      o.Type,
			Status:       o.Status,
			InvoiceID:    o.InvoiceID,
			Amount:       o.Amount,
			InvoiceDate:  o.Date,
			ErrorMessage: o.Error,
			Details:      details,
			CreatedAt:    time.Now(),
		})
	}
	return records
}
