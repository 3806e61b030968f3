package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/referral-intake/platform/pkg/analysis"
	"github.com/referral-intake/platform/pkg/audit"
	"github.com/referral-intake/platform/pkg/blob"
	"github.com/referral-intake/platform/pkg/common/config"
	"github.com/referral-intake/platform/pkg/common/database"
	"github.com/referral-intake/platform/pkg/common/kafka"
	"github.com/referral-intake/platform/pkg/common/logger"
	"github.com/referral-intake/platform/pkg/extractor"
	"github.com/referral-intake/platform/pkg/fieldmap"
	"github.com/referral-intake/platform/pkg/filename"
	"github.com/referral-intake/platform/pkg/httpclient"
	"github.com/referral-intake/platform/pkg/intake"
	"github.com/referral-intake/platform/pkg/ledger"
	"github.com/referral-intake/platform/pkg/middleware"
	"github.com/referral-intake/platform/pkg/observability/metrics"
	"github.com/referral-intake/platform/pkg/referral"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer database.ClosePostgres()

	repo := audit.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate audit table")
	}

	rdb := database.GetRedis(cfg)
	defer database.CloseRedis()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s3Client, err := blob.NewClient(ctx, cfg.StorageRegion, cfg.StorageEndpoint)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to configure blob storage")
	}
	blobs := blob.NewS3Store(s3Client, blob.BucketsFromConfig(cfg))

	loc, err := time.LoadLocation(cfg.FaxTimezone)
	if err != nil {
		logger.Log.WithError(err).WithField("timezone", cfg.FaxTimezone).Warn("unknown fax timezone, using UTC")
		loc = time.UTC
	}

	table, err := fieldmap.Load(cfg.FieldMappingPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load field mapping")
	}
	rules, err := fieldmap.LoadRules(cfg.RulesPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load classification rules")
	}

	validator, err := intake.LoadValidator(cfg.PayloadSchemaPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load payload schema")
	}

	producer := kafka.NewProducer(cfg, cfg.KafkaRoutedTopic)
	defer producer.Close()

	svc := referral.NewService(referral.Deps{
		Analyzer:  analysis.NewClient(analysis.OptionsFromConfig(cfg), httpclient.New(time.Minute)),
		Blobs:     blobs,
		Submitter: intake.NewClient(intake.OptionsFromConfig(cfg), httpclient.New(cfg.ReferralRequestTimeout)),
		Validator: validator,
		Recorder:  repo,
		Ledger:    ledger.New(rdb, cfg.LedgerTTL),
		Publisher: producer,
	}, referral.Settings{
		Organization:   cfg.ReferralOrganization,
		MinConfidence:  cfg.MinConfidenceScore,
		ReconcileAfter: cfg.ReconcileAfter,
	}, filename.NewParser(loc), extractor.New(table, rules))
	handler := referral.NewHTTPHandler(svc, cfg.MaxRequestBody)

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := rdb.Ping(r.Context()).Err(); err != nil {
			http.Error(w, `{"status":"redis unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	handler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Referral Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	consumer := kafka.NewConsumer(cfg, cfg.KafkaIncomingTopic, cfg.KafkaGroupID)
	defer consumer.Close()
	go func() {
		if err := consumer.Consume(ctx, svc.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.WithError(err).Error("incoming consumer stopped")
		}
	}()

	go svc.RunReconciler(ctx, cfg.ReconcileInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Referral Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Referral Service stopped")
}
