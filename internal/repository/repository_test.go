package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"invoice-sync-backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.TokenRecord{}, &models.SyncBatch{}, &models.RowOutcome{}))
	return db
}

func TestTokenRepositoryEmptyLoad(t *testing.T) {
	repo := NewTokenRepository(testDB(t), "xero")

	_, ok, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokenRepositorySaveAndLoad(t *testing.T) {
	repo := NewTokenRepository(testDB(t), "xero")
	ctx := context.Background()

	expires := time.Now().Add(30 * time.Minute).UTC().Truncate(time.Second)
	token := models.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Scope:        "accounting.transactions",
		ExpiresAt:    expires,
	}

	require.NoError(t, repo.Save(ctx, token))

	loaded, ok, err := repo.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "access-1", loaded.AccessToken)
	assert.Equal(t, "refresh-1", loaded.RefreshToken)
	assert.Equal(t, "Bearer", loaded.TokenType)
	assert.True(t, loaded.ExpiresAt.Equal(expires))
}

func TestTokenRepositoryReplacesWholesale(t *testing.T) {
	db := testDB(t)
	repo := NewTokenRepository(db, "xero")
	ctx := context.Background()

	first := models.Token{AccessToken: "a1", RefreshToken: "r1", ExpiresAt: time.Now().Add(time.Minute)}
	second := models.Token{AccessToken: "a2", RefreshToken: "r2", ExpiresAt: time.Now().Add(time.Hour)}

	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	loaded, ok, err := repo.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a2", loaded.AccessToken)
	assert.Equal(t, "r2", loaded.RefreshToken)

	// Saving again never grows a second row for the same provider.
	var count int64
	require.NoError(t, db.Model(&models.TokenRecord{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestTokenRepositoryProvidersIsolated(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	xeroRepo := NewTokenRepository(db, "xero")
	otherRepo := NewTokenRepository(db, "other")

	require.NoError(t, xeroRepo.Save(ctx, models.Token{AccessToken: "xero-token"}))

	_, ok, err := otherRepo.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokenRepositoryClear(t *testing.T) {
	repo := NewTokenRepository(testDB(t), "xero")
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, models.Token{AccessToken: "a1"}))
	require.NoError(t, repo.Clear(ctx))

	_, ok, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSyncBatchLifecycle(t *testing.T) {
	repo := NewSyncBatchRepository(testDB(t))
	ctx := context.Background()

	batch := &models.SyncBatch{
		ID:        uuid.New(),
		Source:    "sheet",
		SourceRef: "spreadsheet-1",
		Status:    models.BatchStatusProcessing,
		StartedAt: time.Now(),
	}
	require.NoError(t, repo.Create(ctx, batch))

	batch.Status = models.BatchStatusCompleted
	batch.TotalRows = 3
	batch.Successful = 2
	batch.Failed = 1
	batch.TotalAmount = 150.25
	require.NoError(t, repo.Complete(ctx, batch))

	got, err := repo.Get(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusCompleted, got.Status)
	assert.Equal(t, 3, got.TotalRows)
	assert.Equal(t, 2, got.Successful)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, 150.25, got.TotalAmount)
	require.NotNil(t, got.CompletedAt)
}

func TestSyncBatchRecent(t *testing.T) {
	repo := NewSyncBatchRepository(testDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.SyncBatch{
			ID:        uuid.New(),
			Source:    "csv",
			Status:    models.BatchStatusCompleted,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Minute),
		}))
	}

	batches, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.True(t, batches[0].CreatedAt.After(batches[1].CreatedAt))
}

func TestListOutcomesPagination(t *testing.T) {
	repo := NewSyncBatchRepository(testDB(t))
	ctx := context.Background()

	batchID := uuid.New()
	require.NoError(t, repo.Create(ctx, &models.SyncBatch{ID: batchID, Status: models.BatchStatusCompleted}))

	outcomes := make([]models.RowOutcome, 0, 5)
	for i := 0; i < 5; i++ {
		status := models.OutcomeStatusSuccess
		if i == 2 {
			status = models.OutcomeStatusError
		}
		outcomes = append(outcomes, models.RowOutcome{
			ID:       uuid.New(),
			BatchID:  batchID,
			Position: i,
			Shipment: fmt.Sprintf("S%d", i),
			Status:   status,
		})
	}
	require.NoError(t, repo.SaveOutcomes(ctx, outcomes))

	page, cursor, hasMore, err := repo.ListOutcomes(ctx, batchID, "", "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 0, page[0].Position)
	assert.Equal(t, 1, page[1].Position)
	assert.True(t, hasMore)
	assert.Equal(t, "1", cursor)

	page, cursor, hasMore, err = repo.ListOutcomes(ctx, batchID, "", cursor, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 2, page[0].Position)
	assert.True(t, hasMore)

	page, _, hasMore, err = repo.ListOutcomes(ctx, batchID, "", cursor, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, 4, page[0].Position)
	assert.False(t, hasMore)
}

func TestListOutcomesStatusFilter(t *testing.T) {
	repo := NewSyncBatchRepository(testDB(t))
	ctx := context.Background()

	batchID := uuid.New()
	require.NoError(t, repo.Create(ctx, &models.SyncBatch{ID: batchID, Status: models.BatchStatusCompleted}))
	require.NoError(t, repo.SaveOutcomes(ctx, []models.RowOutcome{
		{ID: uuid.New(), BatchID: batchID, Position: 0, Status: models.OutcomeStatusSuccess},
		{ID: uuid.New(), BatchID: batchID, Position: 1, Status: models.OutcomeStatusError},
		{ID: uuid.New(), BatchID: batchID, Position: 2, Status: models.OutcomeStatusSuccess},
	}))

	errored, _, _, err := repo.ListOutcomes(ctx, batchID, models.OutcomeStatusError, "", 10)
	require.NoError(t, err)
	require.Len(t, errored, 1)
	assert.Equal(t, 1, errored[0].Position)

	all, _, _, err := repo.ListOutcomes(ctx, batchID, "all", "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSaveOutcomesEmpty(t *testing.T) {
	repo := NewSyncBatchRepository(testDB(t))
	assert.NoError(t, repo.SaveOutcomes(context.Background(), nil))
}
