package handler

import (
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"invoice-sync-backend/internal/models"
	"invoice-sync-backend/internal/repository"
	"invoice-sync-backend/internal/services/auth"
	syncsvc "invoice-sync-backend/internal/services/sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SyncHandler exposes the sheet-to-invoice pipeline and its run history.
type SyncHandler struct {
	service *syncsvc.Service
	batches *repository.SyncBatchRepository
	log     *zap.Logger
}

func NewSyncHandler(service *syncsvc.Service, batches *repository.SyncBatchRepository, log *zap.Logger) *SyncHandler {
	return &SyncHandler{service: service, batches: batches, log: log}
}

// Run pulls rows from the configured (or given) spreadsheet, processes the
// whole batch, and returns the full per-row result plus summary. The run
// always completes: per-row failures are entries in the result, not HTTP
// errors.
func (h *SyncHandler) Run(c *gin.Context) {
	var payload struct {
		SpreadsheetID string `json:"spreadsheet_id"`
		ContactName   string `json:"contact_name"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.BindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
	}

	batch, result, err := h.service.RunFromSheet(c.Request.Context(), payload.SpreadsheetID, payload.ContactName)
	h.respond(c, batch, result, err)
}

// Upload accepts a multipart CSV with the same columns as the spreadsheet
// and runs it through the same pipeline.
func (h *SyncHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()

	values, err := readCSV(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read CSV: " + err.Error()})
		return
	}

	contactName := c.PostForm("contact_name")
	batch, result, err := h.service.RunFromValues(c.Request.Context(), "csv", header.Filename, values, contactName)
	h.respond(c, batch, result, err)
}

func (h *SyncHandler) respond(c *gin.Context, batch *models.SyncBatch, result syncsvc.RunResult, err error) {
	if err != nil {
		var credErr *auth.CredentialError
		if errors.As(err, &credErr) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
				"login": "/api/auth/login",
			})
			return
		}
		h.log.Error("sync run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"message":  "Processed " + strconv.Itoa(result.Summary.Total) + " invoices",
		"batch_id": batch.ID.String(),
		"summary":  result.Summary,
		"results":  result.Outcomes,
	})
}

// GetBatch returns a stored batch summary.
func (h *SyncHandler) GetBatch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return
	}

	batch, err := h.batches.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
		return
	}
	c.JSON(http.StatusOK, batch)
}

// ListRows pages through a batch's stored per-row outcomes.
func (h *SyncHandler) ListRows(c *gin.Context) {
	id, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	rows, nextCursor, hasMore, err := h.batches.ListOutcomes(
		c.Request.Context(), id, c.Query("status"), c.Query("cursor"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":       rows,
		"next_cursor": nextCursor,
		"has_more":    hasMore,
	})
}

// ListBatches returns the most recent runs.
func (h *SyncHandler) ListBatches(c *gin.Context) {
	batches, err := h.batches.Recent(c.Request.Context(), 20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": batches})
}

// readCSV reads the whole file into rows, sniffing comma vs tab from the
// first KB.
func readCSV(file io.ReadSeeker) ([][]string, error) {
	sample := make([]byte, 1024)
	n, _ := file.Read(sample)
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	if !strings.Contains(string(sample[:n]), ",") && strings.Contains(string(sample[:n]), "\t") {
		reader.Comma = '\t'
	}

	var values [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		values = append(values, record)
	}
	return values, nil
}
