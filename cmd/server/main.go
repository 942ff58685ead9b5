package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/prodledger/internal/config"
	"github.com/mamadbah2/prodledger/internal/repository/csvstore"
	"github.com/mamadbah2/prodledger/internal/repository/mongodb"
	"github.com/mamadbah2/prodledger/internal/repository/sheets"
	"github.com/mamadbah2/prodledger/internal/scheduler"
	"github.com/mamadbah2/prodledger/internal/server/handlers"
	"github.com/mamadbah2/prodledger/internal/server/router"
	commandsvc "github.com/mamadbah2/prodledger/internal/service/commands"
	ledgersvc "github.com/mamadbah2/prodledger/internal/service/ledger"
	reportingsvc "github.com/mamadbah2/prodledger/internal/service/reporting"
	whatsappsvc "github.com/mamadbah2/prodledger/internal/service/whatsapp"
	whatsappclient "github.com/mamadbah2/prodledger/pkg/clients/whatsapp"
	"github.com/mamadbah2/prodledger/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ledgerOpts []ledgersvc.Option
	ledgerOpts = append(ledgerOpts, ledgersvc.WithRecentLimit(cfg.Ledger.RecentLimit))
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		ledgerOpts = append(ledgerOpts, ledgersvc.WithSheetMirror(sheetsRepo))
		baseLogger.Info("google sheets mirror enabled", zap.String("spreadsheet_id", cfg.Sheets.SpreadsheetID))
	}

	store := csvstore.NewFileStore(cfg.Ledger.CSVPath, baseLogger.Named("repo.csv"))
	ledgerSvc := ledgersvc.NewService(store, baseLogger.Named("svc.ledger"), ledgerOpts...)
	aside, err := ledgerSvc.LoadOrSetAside(ctx)
	if err != nil {
		baseLogger.Fatal("failed to load ledger", zap.String("path", store.Path()), zap.Error(err))
	}
	if aside != "" {
		baseLogger.Error("ledger file was malformed and has been set aside; upload a CSV to restore it",
			zap.String("path", store.Path()), zap.String("aside", aside))
	}

	var snapshots reportingsvc.SnapshotStore
	if cfg.MongoDB.Enabled() {
		mongoRepo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		snapshots = mongoRepo
	} else {
		baseLogger.Warn("mongodb uri missing, metrics snapshots disabled")
	}

	reportingSvc := reportingsvc.NewService(ledgerSvc, snapshots, baseLogger.Named("svc.reporting"))
	commandDispatcher := commandsvc.NewService(ledgerSvc, reportingSvc, baseLogger.Named("svc.commands"))

	var whatsClient whatsappclient.Client
	if cfg.WhatsApp.Enabled() {
		whatsClient = whatsappclient.NewClient(cfg.WhatsApp)
	} else {
		baseLogger.Warn("whatsapp token missing, outbound messaging disabled")
	}
	messagingSvc := whatsappsvc.NewMetaWhatsAppService(cfg.WhatsApp, whatsClient, commandDispatcher, baseLogger.Named("svc.whatsapp"))

	ledgerHandler := handlers.NewLedgerHandler(ledgerSvc, reportingSvc, baseLogger.Named("handlers.ledger"))
	webhookHandler := handlers.NewWebhookHandler(messagingSvc, baseLogger.Named("handlers.whatsapp"))
	engine := router.New(ledgerHandler, webhookHandler, baseLogger.Named("router"))

	var notifier scheduler.Notifier
	if cfg.WhatsApp.Enabled() && cfg.WhatsApp.ReportRecipient != "" {
		notifier = messagingSvc
	}
	sched, err := scheduler.NewScheduler(cfg.Reporting, cfg.WhatsApp.ReportRecipient, reportingSvc, notifier, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("ledger", store.Path()),
			zap.Int("records", ledgerSvc.Len()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
