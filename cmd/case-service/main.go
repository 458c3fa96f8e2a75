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
	"github.com/megcare/platform/pkg/docanalysis"
	"github.com/megcare/platform/pkg/masking"
	"github.com/megcare/platform/pkg/recommend"
	"github.com/megcare/platform/pkg/usagelog"
	"github.com/megcare/platform/pkg/workflow"
)

type CaseApp struct {
	cases     *cases.Service
	workflow  *workflow.Service
	recommend *recommend.Service
	analyzer  *docanalysis.Analyzer
	masking   *masking.Service
	producer  *kafka.Producer
}

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	caseRepo := cases.NewRepository(db)
	workflowRepo := workflow.NewRepository(db)
	usageRepo := usagelog.NewRepository(db)
	for name, migrate := range map[string]func() error{
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

	maskingPolicy, err := masking.LoadPolicy(cfg.MaskingRulesPath)
	if err != nil {
		logger.Log.WithError(err).Warn("masking policy unavailable, using defaults")
	}

	app := &CaseApp{
		cases:     cases.NewService(caseRepo, workflowRepo, producer),
		workflow:  workflow.NewService(workflowRepo, producer),
		recommend: recommend.NewService(router, aiClient),
		analyzer:  docanalysis.NewAnalyzer(nil, nil, classifierRules),
		masking:   masking.NewService(maskingPolicy, cfg.MaskingEnabled),
		producer:  producer,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	r.HandleFunc("/ready", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	r.HandleFunc("/api/v1/cases", app.handleCreateCase).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/cases/{id}", app.handleGetCase).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/cases/{id}/assign", app.handleAssign).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/cases/{id}/complete", app.handleComplete).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/cases/{id}/procedures", app.handleReconcileProcedures).Methods(http.MethodPut)
	r.HandleFunc("/api/v1/cases/{id}/documents", app.handleUploadDocument).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/patients", app.handleCreatePatient).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/patients/{id}/view", app.handlePatientView).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/recommendations", app.handleRecommend).Methods(http.MethodPost)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler: r,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Case Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Case Service...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Case Service stopped")
}
