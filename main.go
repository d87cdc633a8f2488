package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/khabaroff/apikey-rotator/src/config"
	"github.com/khabaroff/apikey-rotator/src/handlers"
	"github.com/khabaroff/apikey-rotator/src/logging"
	"github.com/khabaroff/apikey-rotator/src/middleware"
	"github.com/khabaroff/apikey-rotator/src/repositories"
	"github.com/khabaroff/apikey-rotator/src/services"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize structured logging
	logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	log.Info().
		Int("port", cfg.Port).
		Str("log_level", cfg.LogLevel).
		Str("store_backend", string(cfg.StoreBackend)).
		Msg("starting server")

	// Initialize JWT secret in middleware
	if err := middleware.SetJWTSecret(cfg.JWTSecret); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize JWT secret")
	}

	// Initialize encryption (optional, empty key disables)
	encryptor, err := services.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize encryption")
	}
	var sealer repositories.Sealer
	if encryptor != nil {
		sealer = encryptor
		log.Info().Msg("key pool encryption enabled (AES-256-GCM)")
		if cfg.AllowPlaintextMigrate {
			encryptor.AllowPlaintext()
			log.Warn().Msg("accepting a plaintext key pool for migration. Unset ENCRYPTION_MIGRATE_PLAINTEXT once it is sealed.")
		}
	} else {
		log.Info().Msg("key pool encryption disabled (ENCRYPTION_KEY not set)")
	}

	// Open the state store
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, closeStore, err := repositories.Open(ctx, repositories.Options{
		Backend:     cfg.StoreBackend,
		Path:        cfg.StorePath,
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
		RedisKey:    cfg.RedisKey,
		Sealer:      sealer,
	})
	if err != nil {
		cancel()
		log.Fatal().Err(err).Msg("failed to open state store")
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error().Err(err).Msg("failed to close state store")
		}
	}()

	log.Info().Str("backend", string(cfg.StoreBackend)).Msg("state store ready")

	// Seal a plaintext pool right away instead of on the first write
	if encryptor != nil && cfg.AllowPlaintextMigrate {
		if err := resealPool(ctx, store); err != nil {
			cancel()
			log.Fatal().Err(err).Msg("failed to seal key pool")
		}
	}

	// Seed keys from KEYS_FILE
	seedKeys(ctx, store, cfg.KeysFile)
	cancel()

	// Initialize services
	poolManager := services.NewPoolManager(store, services.WithStoreTimeout(cfg.StoreTimeout))

	adminService, err := services.NewAdminService(cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize admin service")
	}
	if adminService.Enabled() {
		log.Info().Str("username", cfg.AdminUsername).Msg("admin API enabled")
	} else {
		log.Warn().Msg("ADMIN_USERNAME/ADMIN_PASSWORD not set - admin API disabled")
	}

	if !cfg.EnableRequestSignature {
		log.Warn().Msg("request signature verification is disabled. Enable it in production.")
	}

	// Create Gin router
	router := gin.New()
	router.HandleMethodNotAllowed = true

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	keyLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		Burst:             cfg.RateLimitBurst,
	})
	defer keyLimiter.Stop()
	loginLimiter := middleware.AuthRateLimiter()
	defer loginLimiter.Stop()

	setupRoutes(router, poolManager, adminService, keyLimiter, loginLimiter, cfg)

	// Create HTTP server with timeouts (G112: protect from Slowloris attack)
	srv := &http.Server{
		Addr:              ":" + formatPort(cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server shut down successfully")
}

// seedKeys appends keys from the seed file that are not stored yet
func seedKeys(ctx context.Context, store repositories.StateStore, path string) {
	if path == "" {
		return
	}

	records, err := config.LoadSeed(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn().Str("file", path).Msg("seed file not found, using stored keys only")
			return
		}
		log.Fatal().Err(err).Str("file", path).Msg("failed to load seed file")
	}

	added, err := repositories.Bootstrap(ctx, store, records, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed keys")
	}
	log.Info().
		Int("seeded", len(records)).
		Int("added", added).
		Msg("key pool seeded")
}

// resealPool rewrites the stored pool through the configured sealer
func resealPool(ctx context.Context, store repositories.StateStore) error {
	pool, err := store.Load(ctx)
	if err != nil {
		return err
	}
	if err := store.Save(ctx, pool); err != nil {
		return err
	}
	log.Info().Int("keys", len(pool.Keys)).Msg("key pool sealed")
	return nil
}

// corsConfig allows GET/POST from the configured origins, or any origin when none is set
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.SignatureHeader},
		ExposeHeaders: []string{"Content-Length", "Retry-After", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

func setupRoutes(router *gin.Engine, poolManager *services.PoolManager, adminService *services.AdminService, keyLimiter, loginLimiter *middleware.RateLimiter, cfg *config.Config) {
	healthHandler := handlers.NewHealthHandler(poolManager, cfg.StoreBackend)
	keyHandler := handlers.NewKeyHandler(poolManager)
	adminHandler := handlers.NewAdminHandler(poolManager, adminService)

	// Health check endpoints
	router.GET("/health", healthHandler.HandleHealth)
	router.GET("/ready", healthHandler.HandleReady)
	router.GET("/info", healthHandler.HandleInfo)

	// Key endpoints
	signed := middleware.RequestSignatureMiddleware(cfg.RequestSigningSecret, cfg.EnableRequestSignature)
	api := router.Group("/api", keyLimiter.Middleware())
	{
		api.GET("/keys/next", keyHandler.HandleNext)
		api.POST("/keys/confirm", signed, keyHandler.HandleConfirm)
		api.POST("/keys/failure", signed, keyHandler.HandleFailure)
		api.GET("/get-key", keyHandler.HandleLegacyGetKey)
	}

	// Admin endpoints
	router.POST("/admin/login", loginLimiter.Middleware(), adminHandler.HandleAdminLogin)
	admin := router.Group("/admin", middleware.AdminAuthMiddleware())
	{
		admin.POST("/logout", adminHandler.HandleAdminLogout)
		admin.GET("/keys", adminHandler.HandleListKeys)
		admin.POST("/keys/activate", adminHandler.HandleActivateKey)
		admin.POST("/keys/deactivate", adminHandler.HandleDeactivateKey)
	}
}

func formatPort(port int) string {
	return fmt.Sprintf("%d", port)
}
