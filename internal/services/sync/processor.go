package sync

import (
	"context"
	"errors"

	"invoice-sync-backend/internal/models"
	"invoice-sync-backend/internal/services/auth"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceSubmitter submits one draft and returns the remote invoice id.
type InvoiceSubmitter interface {
	CreateInvoice(ctx context.Context, token models.Token, tenantID string, draft models.InvoiceDraft) (string, error)
}

// TokenRunner wraps a remote call with token validity and the bounded
// auth retry.
type TokenRunner interface {
	WithAuthRetry(ctx context.Context, op func(ctx context.Context, token models.Token) error) error
}

// Outcome is the result for a single row.
type Outcome struct {
	Shipment   string  `json:"shipment"`
	JobInvoice string  `json:"job_invoice"`
	Type       string  `json:"type"`
	Status     string  `json:"status"`
	InvoiceID  string  `json:"invoice_id,omitempty"`
	Amount     float64 `json:"amount,omitempty"`
	Date       string  `json:"date,omitempty"`
	Error      string  `json:"error,omitempty"`
}

type Summary struct {
	Total       int     `json:"total_processed"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	TotalAmount float64 `json:"total_amount"`
}

// RunResult is the ordered per-row outcome list plus its aggregation. The
// processor owns it while building; callers get it by value.
type RunResult struct {
	Outcomes []Outcome `json:"results"`
	Summary  Summary   `json:"summary"`
}

// Processor drives one batch: transform each row, submit, record the
// outcome. Rows are processed strictly one at a time in source order - Xero
// gives us no idempotency key, so concurrent submission risks duplicate
// invoices.
type Processor struct {
	transformer *Transformer
	gateway     InvoiceSubmitter
	tokens      TokenRunner
	log         *zap.Logger
}

func NewProcessor(transformer *Transformer, gateway InvoiceSubmitter, tokens TokenRunner, log *zap.Logger) *Processor {
	return &Processor{
		transformer: transformer,
		gateway:     gateway,
		tokens:      tokens,
		log:         log,
	}
}

// Process runs every row and always returns a result with a computed
// summary. A failure in one row never prevents the rows after it from being
// attempted; only a credential failure (session dead, re-login required)
// aborts the run, returning the partial result alongside the error.
// Cancellation is checked between rows, never within one.
func (p *Processor) Process(ctx context.Context, tenantID string, rows []models.ChargeRow, contactID string) (RunResult, error) {
	result := RunResult{Outcomes: make([]Outcome, 0, len(rows))}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			result.Summary = summarize(result.Outcomes)
			return result, err
		}

		outcome, err := p.processRow(ctx, tenantID, row, contactID)
		if err != nil {
			result.Summary = summarize(result.Outcomes)
			return result, err
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	result.Summary = summarize(result.Outcomes)
	return result, nil
}

func (p *Processor) processRow(ctx context.Context, tenantID string, row models.ChargeRow, contactID string) (Outcome, error) {
	outcome := Outcome{
		Shipment:   row.Shipment,
		JobInvoice: row.JobInvoiceNumber,
		Type:       row.Type,
	}

	draft, err := p.transformer.Transform(row, contactID)
	if err != nil {
		p.log.Warn("row failed validation",
			zap.String("shipment", row.Shipment),
			zap.Error(err))
		outcome.Status = models.OutcomeStatusError
		outcome.Error = err.Error()
		return outcome, nil
	}

	var invoiceID string
	err = p.tokens.WithAuthRetry(ctx, func(ctx context.Context, token models.Token) error {
		id, err := p.gateway.CreateInvoice(ctx, token, tenantID, draft)
		invoiceID = id
		return err
	})
	if err != nil {
		var credErr *auth.CredentialError
		if errors.As(err, &credErr) {
			// Session is dead; nothing after this row can succeed either.
			return outcome, err
		}

		p.log.Warn("invoice submission failed",
			zap.String("shipment", row.Shipment),
			zap.String("reference", row.JobInvoiceNumber),
			zap.Error(err))
		outcome.Status = models.OutcomeStatusError
		outcome.Error = err.Error()
		return outcome, nil
	}

	p.log.Info("invoice created",
		zap.String("shipment", row.Shipment),
		zap.String("reference", row.JobInvoiceNumber),
		zap.String("invoice_id", invoiceID))

	outcome.Status = models.OutcomeStatusSuccess
	outcome.InvoiceID = invoiceID
	outcome.Amount = row.TotalInvoice
	outcome.Date = row.InvoiceDate
	return outcome, nil
}

// summarize aggregates outcomes in one pass. The amount total covers
// successes only, rounded to 2 decimal places.
func summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	total := decimal.Zero
	for _, o := range outcomes {
		if o.Status == models.OutcomeStatusSuccess {
			s.Successful++
			total = total.Add(decimal.NewFromFloat(o.Amount))
		} else {
			s.Failed++
		}
	}
	s.TotalAmount, _ = total.Round(2).Float64()
	return s
}
