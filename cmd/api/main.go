package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"dayledger/internal/config"
	"dayledger/internal/export"
	"dayledger/internal/handlers"
	"dayledger/internal/ledger"
	"dayledger/internal/logger"
	"dayledger/internal/middleware"
	"dayledger/internal/storage"
	"dayledger/internal/storage/filestore"
	"dayledger/internal/storage/recordstore"
	"dayledger/internal/storage/sqlstore"
	"dayledger/internal/validator"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	backend, err := openBackend(cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage backend: %w", err)
	}
	defer backend.Close()
	log.Infow("storage backend ready", "driver", cfg.StorageDriver)

	exporter := export.NewEngine(backend)
	ledgerService := ledger.NewService(backend, exporter, cfg.ExportPath, log)
	ledgerHandler := handlers.NewLedgerHandler(ledgerService, exporter)

	validator.Register()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Registration only exists on generations that store users.
	if dir, ok := backend.(storage.UserDirectory); ok {
		userHandler := handlers.NewUserHandler(ledger.NewUsers(dir))
		v1.POST("/auth/register", userHandler.Register)
	}

	protected := v1.Group("/")
	protected.Use(middleware.OwnerIdentity())
	protected.POST("/ledger", ledgerHandler.Submit)
	protected.GET("/history", ledgerHandler.History)
	protected.GET("/transactions", ledgerHandler.Transactions)
	protected.PATCH("/transactions/:id", ledgerHandler.UpdateTransaction)
	protected.DELETE("/transactions/:id", ledgerHandler.DeleteTransaction)
	protected.GET("/export", ledgerHandler.ExportCSV)
	protected.DELETE("/account", ledgerHandler.DeleteAccount)

	log.Infof("Starting server on port %s", cfg.Port)
	return router.Run(":" + cfg.Port)
}

// openBackend constructs the storage generation the config names. The
// medium is an explicit value injected here; nothing else reads it.
func openBackend(cfg *config.Config) (storage.Backend, error) {
	switch cfg.StorageDriver {
	case config.DriverFile:
		return filestore.Open(cfg.FilePath, cfg.LegacyOwnerID)
	case config.DriverSQLiteLegacy:
		return recordstore.Open(cfg.SQLitePath, cfg.LegacyOwnerID, cfg.StorageTimeout)
	case config.DriverSQLite:
		store, err := sqlstore.OpenSQLite(cfg.SQLitePath, cfg.StorageTimeout)
		if err != nil {
			return nil, err
		}
		if err := store.AutoMigrate(); err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverPostgres:
		if err := sqlstore.RunMigrations(cfg.MigrateURL()); err != nil {
			return nil, err
		}
		return sqlstore.OpenPostgres(cfg.DSN(), cfg.StorageTimeout)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
