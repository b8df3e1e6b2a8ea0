package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"medialib/internal/auth"
	"medialib/internal/blobstore"
	"medialib/internal/config"
	"medialib/internal/domain/repositories"
	libraryRepo "medialib/internal/domain/repositories/library"
	librarySvc "medialib/internal/domain/services/library"
	"medialib/internal/handler"
	"medialib/internal/media"
	"medialib/internal/middleware"
	"medialib/internal/observability"
	"medialib/internal/repository/memory"
	"medialib/internal/repository/postgres"
	postgresLibrary "medialib/internal/repository/postgres/library"
	"medialib/internal/resizer"
	authService "medialib/internal/service/auth"
	libraryService "medialib/internal/service/library"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logger, logCloser, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to setup logging: %v", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger) // Set as default logger

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create JWT verifier (JWKS when configured, shared secret otherwise)
	jwtVerifier, err := auth.NewJWTVerifier(cfg.JWKSURL, cfg.JWTSecret, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	// Metrics
	var observer observability.Observer = observability.NopObserver{}
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		promObserver, err := observability.NewPrometheusObserver("medialib", reg)
		if err != nil {
			log.Fatalf("Failed to register metrics: %v", err)
		}
		observer = promObserver
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}

	// Metadata store
	var (
		folderRepo libraryRepo.FolderRepository
		assetRepo  libraryRepo.AssetRepository
		txManager  repositories.TransactionManager
		dbPinger   handler.Pinger
	)
	if cfg.UseMemoryStore() {
		store := memory.NewStore()
		folderRepo = memory.NewFolderRepository(store)
		assetRepo = memory.NewAssetRepository(store)
		txManager = memory.NewTransactionManager(store)
		logger.Warn("DATABASE_URL not set: using the in-memory metadata store (data is lost on restart)")
	} else {
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to create connection pool: %v", err)
		}
		defer pool.Close()

		logger.Info("database connected",
			"max_conns", pool.Config().MaxConns,
			"min_conns", pool.Config().MinConns,
		)

		// Create table names
		tables := postgres.NewTableNames(cfg.TablePrefix)
		if err := postgres.EnsureSchema(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to ensure schema: %v", err)
		}

		// Create repositories
		repoConfig := &postgres.RepositoryConfig{
			Pool:   pool,
			Tables: tables,
			Logger: logger,
		}
		folderRepo = postgresLibrary.NewFolderRepository(repoConfig)
		assetRepo = postgresLibrary.NewAssetRepository(repoConfig)
		txManager = postgres.NewTransactionManager(pool, logger)
		dbPinger = pool
	}

	// Blob store
	disk, err := blobstore.NewDiskStore(cfg.BlobDir, cfg.BlobBaseURL, logger)
	if err != nil {
		log.Fatalf("Failed to open blob store: %v", err)
	}
	blobs := blobstore.WithObserver(disk, observer)

	// Resize worker (remote when configured, in-process otherwise)
	var resizeWorker librarySvc.ResizeWorker
	if cfg.ResizerURL != "" {
		client, err := resizer.NewClient(cfg.ResizerURL, cfg.ResizeTimeout, logger)
		if err != nil {
			log.Fatalf("Failed to create resizer client: %v", err)
		}
		resizeWorker = resizer.WithObserver(client, "remote", observer)
		logger.Info("using remote resize worker", "url", cfg.ResizerURL)
	} else {
		resizeWorker = resizer.WithObserver(resizer.NewLocal(blobs, logger), "local", observer)
		logger.Info("using in-process resizer")
	}

	// Content classification
	registry, err := media.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to load media registry: %v", err)
	}

	// Create services
	authorizer := authService.NewOwnerBasedAuthorizer(folderRepo, assetRepo)
	pathResolver := libraryService.NewPathResolver(folderRepo, logger)
	assetService := libraryService.NewAssetService(assetRepo, folderRepo, blobs, resizeWorker, authorizer, cfg.ResizeTimeout, logger)
	folderService := libraryService.NewFolderService(folderRepo, assetRepo, assetService, pathResolver, txManager, authorizer, logger)
	thumbnailer := libraryService.NewThumbnailer(assetService, resizeWorker, libraryService.ThumbnailerConfig{
		Mode:    cfg.ThumbnailMode,
		Timeout: cfg.ResizeTimeout,
		Workers: cfg.ThumbnailWorkers,
	}, logger)
	ingestService := libraryService.NewIngestService(registry, blobs, assetService, folderRepo, thumbnailer, observer,
		libraryService.IngestLimits{MaxFileBytes: cfg.MaxUploadBytes, MaxFiles: cfg.MaxUploadFiles}, logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Handlers{
		Folders: handler.NewFolderHandler(folderService, pathResolver, logger),
		Assets:  handler.NewAssetHandler(assetService, logger),
		Uploads: handler.NewUploadHandler(ingestService, cfg.MaxUploadBytes, cfg.MaxUploadFiles, logger),
		Health:  handler.NewHealthHandler(dbPinger, logger),
		Blobs:   handler.BlobFileServer("/blobs/", disk.Root()),
		Metrics: metricsHandler,
	})

	// Build middleware chain
	var h http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → RequestID → Recovery → Auth → RequestLogger → Routes
	h = middleware.RequestLogger(logger)(h)
	h = middleware.AuthMiddleware(jwtVerifier)(h)
	h = middleware.Recovery(logger)(h)
	h = middleware.RequestID()(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  5 * time.Minute, // Large multipart uploads
		WriteTimeout: cfg.ResizeTimeout + time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	// Drain queued thumbnail jobs before the stores go away
	if err := thumbnailer.Close(); err != nil {
		logger.Error("thumbnailer shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}
