package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"examai/internal/config"
	"examai/internal/handler"
	"examai/internal/job"
	"examai/internal/logger"
	"examai/internal/mongodb"
	"examai/internal/ocr"
	"examai/internal/paper"
	"examai/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingestion API and worker pool",
	Long: `Start the HTTP API together with the background worker pool that
drives submitted documents through storage, OCR, generation, and
persistence.

Required environment variables:
  GCS_BUCKET_NAME - Cloud Storage bucket for uploads and OCR output
  OPENAI_API_KEY  - key for the generation model
  MONGO_URI       - MongoDB connection string
  GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS - Google Cloud auth`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.WithComponent("serve")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	blobs, err := storage.NewGCSGateway(ctx, cfg.GCSBucketName)
	if err != nil {
		return fmt.Errorf("failed to create storage gateway: %w", err)
	}
	defer func() {
		if closeErr := blobs.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close storage client")
		}
	}()

	extractor, err := ocr.NewGoogleVisionService(ctx, blobs, cfg.OCRWaitTimeout)
	if err != nil {
		return fmt.Errorf("failed to create OCR service: %w", err)
	}
	defer func() {
		if closeErr := extractor.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close Vision client")
		}
	}()

	generationCfg := paper.DefaultGenerationConfig(cfg.OpenAIModel, cfg.OpenAITemperature)
	generationCfg.Timeout = cfg.GenerationTimeout
	generator := paper.NewOpenAIService(cfg.OpenAIAPIKey, generationCfg)

	db, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if closeErr := db.Close(closeCtx); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close MongoDB connection")
		}
	}()

	jobs := job.NewService(blobs, extractor, generator, db, job.Config{
		Workers:       cfg.Workers,
		QueueSize:     cfg.QueueSize,
		RetryAttempts: cfg.RetryAttempts,
		RetryBackoff:  cfg.RetryBackoff,
		Collection:    cfg.ExamPaperCollection,
	})
	jobs.Start()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
	}))

	handler.New(jobs, blobs, db, cfg.ExamPaperCollection).Register(router)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", cfg.ServerAddr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	jobs.Shutdown()
	log.Info().Msg("Server exited")
	return nil
}
