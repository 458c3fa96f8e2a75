package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/megcare/platform/pkg/aiprovider"
	"github.com/megcare/platform/pkg/cases"
	"github.com/megcare/platform/pkg/common/config"
	"github.com/megcare/platform/pkg/common/database"
	"github.com/megcare/platform/pkg/common/kafka"
	"github.com/megcare/platform/pkg/common/logger"
	"github.com/megcare/platform/pkg/common/models"
	"github.com/megcare/platform/pkg/docanalysis"
	"github.com/megcare/platform/pkg/report"
	"github.com/megcare/platform/pkg/report/export"
	"github.com/megcare/platform/pkg/usagelog"
	"github.com/megcare/platform/pkg/workflow"
)

type ReportApp struct {
	reports  *report.Service
	exporter *export.Exporter
	cases    *cases.Service
	workflow *workflow.Service
	analyzer *docanalysis.Analyzer
	files    FileStore
	producer *kafka.Producer
	consumer *kafka.Consumer
}

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	reportRepo := report.NewRepository(db)
	caseRepo := cases.NewRepository(db)
	workflowRepo := workflow.NewRepository(db)
	usageRepo := usagelog.NewRepository(db)
	for name, migrate := range map[string]func() error{
		"reports":  reportRepo.AutoMigrate,
		"cases":    caseRepo.AutoMigrate,
		"workflow": workflowRepo.AutoMigrate,
		"usage":    usageRepo.AutoMigrate,
	} {
		if err := migrate(); err != nil {
			logger.Log.WithError(err).Fatalf("failed to migrate %s tables", name)
		}
	}

	producer := kafka.NewProducer("case-events")
	defer producer.Close()

	ledger := usagelog.NewService(usageRepo)
	router := aiprovider.NewRouter(aiprovider.NewConfigSettings(cfg), ledger, database.GetRedis(), cfg.BudgetCacheTTL)
	aiClient := aiprovider.NewClient(cfg, ledger)

	classifierRules, err := docanalysis.LoadRules(cfg.ClassifierRulesPath)
	if err != nil {
		logger.Log.WithError(err).Warn("classifier rules unavailable, using defaults")
	}

	app := &ReportApp{
		reports:  report.NewService(reportRepo, router, aiClient, producer),
		exporter: export.NewExporter(nil),
		cases:    cases.NewService(caseRepo, workflowRepo, producer),
		workflow: workflow.NewService(workflowRepo, producer),
		analyzer: docanalysis.NewAnalyzer(nil, nil, classifierRules),
		files:    NewLocalFileStore(cfg.StorageBasePath),
		producer: producer,
	}

	app.consumer = kafka.NewConsumer("case-events", "report-service")
	defer app.consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := app.consumer.Consume(ctx, app.processEvent); err != nil && err != context.Canceled {
			logger.Log.WithError(err).Error("consumer stopped")
		}
	}()

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	r.HandleFunc("/ready", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	r.HandleFunc("/api/v1/cases/{id}/reports", app.handleGenerate).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/cases/{id}/reports/export", app.handleExport).Methods(http.MethodGet)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ReportServicePort),
		Handler: r,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ReportServicePort,
		}).Info("Report Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Report Service...")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Report Service stopped")
}

// processEvent pre-generates a report when a case completes, so the
// document is ready by the time someone opens it.
func (a *ReportApp) processEvent(ctx context.Context, event models.CaseEvent) error {
	if event.Type != "case_completed" {
		return nil
	}

	c, err := a.workflow.Case(ctx, event.CaseID)
	if err != nil {
		return err
	}
	in, err := a.buildInput(ctx, c)
	if err != nil {
		return err
	}
	if _, _, err := a.reports.Generate(ctx, in, c.CurrentUserID); err != nil {
		return err
	}
	return nil
}
