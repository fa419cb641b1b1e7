package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"invoice-sync-backend/internal/config"
	handler "invoice-sync-backend/internal/handlers"
	"invoice-sync-backend/internal/repository"
	"invoice-sync-backend/internal/services/auth"
	"invoice-sync-backend/internal/services/contacts"
	syncsvc "invoice-sync-backend/internal/services/sync"
	"invoice-sync-backend/internal/sheets"
	"invoice-sync-backend/internal/xero"
)

// RegisterRoutes wires the repositories, gateway, services, and handlers
// onto the router.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config, log *zap.Logger) error {
	tokenRepo := repository.NewTokenRepository(db, "xero")
	batchRepo := repository.NewSyncBatchRepository(db)

	gateway := xero.NewClient(xero.Config{
		ClientID:     cfg.XeroClientID,
		ClientSecret: cfg.XeroClientSecret,
		RedirectURL:  cfg.XeroRedirectURL,
		Scopes:       cfg.XeroScopes,
	})

	// The grant strategy decides how a first token appears when nothing is
	// stored; the authorization-code flow seeds the store via the login
	// handlers instead.
	var bootstrap auth.Acquirer
	switch cfg.XeroGrantType {
	case config.GrantClientCredentials:
		bootstrap = auth.NewClientCredentialsAcquirer(gateway)
	case config.GrantRefreshToken:
		if cfg.XeroSeedRefreshToken != "" {
			bootstrap = auth.NewRefreshSeedAcquirer(gateway, cfg.XeroSeedRefreshToken)
		}
	}

	manager := auth.NewManager(tokenRepo, gateway, bootstrap, log)

	var source syncsvc.RowSource
	if cfg.GoogleCredentialsJSON != "" {
		s, err := sheets.New(context.Background(), []byte(cfg.GoogleCredentialsJSON))
		if err != nil {
			return err
		}
		source = s
	} else {
		log.Warn("GOOGLE_CREDENTIALS not set, spreadsheet sync disabled")
	}

	resolver := contacts.NewResolver(gateway, manager, log)
	processor := syncsvc.NewProcessor(syncsvc.NewTransformer(), gateway, manager, log)
	service := syncsvc.NewService(syncsvc.ServiceParams{
		Processor:     processor,
		Source:        source,
		Contacts:      resolver,
		Batches:       batchRepo,
		Gateway:       gateway,
		Tokens:        manager,
		Log:           log,
		TenantID:      cfg.XeroTenantID,
		SpreadsheetID: cfg.SpreadsheetID,
		ContactName:   cfg.XeroContactName,
	})

	authHandler := handler.NewAuthHandler(gateway, manager, tokenRepo, log)
	syncHandler := handler.NewSyncHandler(service, batchRepo, log)

	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := api.Group("/auth")
	authGroup.GET("/login", authHandler.Login)
	authGroup.GET("/callback", authHandler.Callback)
	authGroup.POST("/logout", authHandler.Logout)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.GET("/status", authHandler.Status)

	api.GET("/tenants", authHandler.Tenants)

	syncGroup := api.Group("/sync")
	syncGroup.POST("/run", syncHandler.Run)
	syncGroup.POST("/upload", syncHandler.Upload)
	syncGroup.GET("/batches", syncHandler.ListBatches)
	syncGroup.GET("/:batchId", syncHandler.GetBatch)
	syncGroup.GET("/:batchId/rows", syncHandler.ListRows)

	return nil
}
