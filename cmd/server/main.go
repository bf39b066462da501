package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/ecoregula/permitflow/internal/application/port"
	"github.com/ecoregula/permitflow/internal/application/service"
	"github.com/ecoregula/permitflow/internal/config"
	"github.com/ecoregula/permitflow/internal/infrastructure/persistence/repository"
	"github.com/ecoregula/permitflow/internal/infrastructure/persistence/sqlite"
	"github.com/ecoregula/permitflow/internal/infrastructure/storage"
	httpadapter "github.com/ecoregula/permitflow/internal/interfaces/http"
	"github.com/ecoregula/permitflow/pkg/database"
	"github.com/ecoregula/permitflow/pkg/utils"
)

func main() {
	_ = gotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting permit workflow service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	sqlDB, err := database.Open(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer sqlDB.Close()

	migrator := database.NewMigrator(sqlDB, logger)
	if err := migrator.Run(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Storage.BaseDir, 0755); err != nil {
		logger.Fatal("Failed to create document directory", zap.Error(err))
	}

	db := sqlite.NewDB(sqlDB, logger)
	docs := storage.NewLocalDocumentStore(cfg.Storage.BaseDir, logger)
	clock := port.SystemClock{}
	svcLogger := &utils.SugarAdapter{S: logger.Sugar()}

	requestRepo := repository.NewPermitRequestRepository(sqlDB, logger)
	permitRepo := repository.NewPermitRepository(sqlDB, logger)
	configRepo := repository.NewComplianceConfigurationRepository(sqlDB, logger)
	periodRepo := repository.NewCompliancePeriodRepository(sqlDB, logger)
	submissionRepo := repository.NewComplianceSubmissionRepository(sqlDB, logger)
	assignmentRepo := repository.NewAssignmentRepository(sqlDB, logger)
	auditRepo := repository.NewAuditRepository(sqlDB, logger)

	gate := service.NewOrderingGate(requestRepo)
	issuanceService := service.NewIssuanceService(permitRepo, docs, db, clock, svcLogger)
	permitService := service.NewPermitService(requestRepo, auditRepo, gate, issuanceService, docs, db, clock, svcLogger)
	complianceService := service.NewComplianceService(
		configRepo, periodRepo, submissionRepo, assignmentRepo, auditRepo,
		docs, db, clock, svcLogger,
		time.Duration(cfg.Workflow.ReopeningWindowDays)*24*time.Hour,
	)
	auditService := service.NewAuditService(auditRepo, svcLogger)
	registerService := service.NewRegisterExportService(permitRepo, svcLogger)

	server := httpadapter.NewServer(
		httpadapter.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		permitService,
		issuanceService,
		complianceService,
		auditService,
		registerService,
		svcLogger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited")
}
