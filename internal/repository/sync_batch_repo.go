package repository

import (
	"context"
	"strconv"
	"time"

	"invoice-sync-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SyncBatchRepository struct {
	db *gorm.DB
}

func NewSyncBatchRepository(db *gorm.DB) *SyncBatchRepository {
	return &SyncBatchRepository{db: db}
}

func (r *SyncBatchRepository) Create(ctx context.Context, batch *models.SyncBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *SyncBatchRepository) Get(ctx context.Context, id uuid.UUID) (*models.SyncBatch, error) {
	var batch models.SyncBatch
	if err := r.db.WithContext(ctx).First(&batch, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *SyncBatchRepository) Recent(ctx context.Context, limit int) ([]models.SyncBatch, error) {
	var batches []models.SyncBatch
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&batches).Error
	return batches, err
}

// Complete writes the final counts and marks the batch done in one update.
func (r *SyncBatchRepository) Complete(ctx context.Context, batch *models.SyncBatch) error {
	now := time.Now()
	batch.CompletedAt = &now
	return r.db.WithContext(ctx).Model(&models.SyncBatch{}).
		Where("id = ?", batch.ID).
		Updates(map[string]interface{}{
			"status":       batch.Status,
			"total_rows":   batch.TotalRows,
			"successful":   batch.Successful,
			"failed":       batch.Failed,
			"total_amount": batch.TotalAmount,
			"completed_at": batch.CompletedAt,
		}).Error
}

func (r *SyncBatchRepository) SaveOutcomes(ctx context.Context, outcomes []models.RowOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&outcomes).Error
}

// ListOutcomes pages through a batch's stored outcomes in source order.
// cursor is the position of the last row of the previous page.
func (r *SyncBatchRepository) ListOutcomes(
	ctx context.Context,
	batchID uuid.UUID,
	status string,
	cursor string,
	limit int,
) ([]models.RowOutcome, string, bool, error) {
	query := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("position ASC").
		Limit(limit + 1)

	if status != "" && status != "all" {
		query = query.Where("status = ?", status)
	}
	if cursor != "" {
		after, err := strconv.Atoi(cursor)
		if err == nil {
			query = query.Where("position > ?", after)
		}
	}

	var outcomes []models.RowOutcome
	if err := query.Find(&outcomes).Error; err != nil {
		return nil, "", false, err
	}

	hasMore := false
	nextCursor := ""
	if len(outcomes) > limit {
		hasMore = true
		outcomes = outcomes[:limit]
		nextCursor = strconv.Itoa(outcomes[limit-1].Position)
	}

	return outcomes, nextCursor, hasMore, nil
}
