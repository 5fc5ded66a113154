package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/product_catalog/internal/config"
	"github.com/Skotchmaster/product_catalog/internal/db"
	"github.com/Skotchmaster/product_catalog/internal/events"
	"github.com/Skotchmaster/product_catalog/internal/handlers"
	"github.com/Skotchmaster/product_catalog/internal/logging"
	authmw "github.com/Skotchmaster/product_catalog/internal/middleware/auth"
	"github.com/Skotchmaster/product_catalog/internal/middleware/csrf"
	"github.com/Skotchmaster/product_catalog/internal/middleware/ratelimit"
	"github.com/Skotchmaster/product_catalog/internal/repo"
	"github.com/Skotchmaster/product_catalog/internal/search"
	"github.com/Skotchmaster/product_catalog/internal/service"
	"github.com/Skotchmaster/product_catalog/internal/storage"
	httpserver "github.com/Skotchmaster/product_catalog/internal/transport/http"
	"github.com/Skotchmaster/product_catalog/internal/upload"
)

const (
	loginWindow         = time.Minute
	sessionPurgeEvery   = time.Hour
	shutdownGracePeriod = 10 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)
	logger.Info("config_loaded", "config", cfg.String())

	ctx := logging.IntoContext(context.Background(), logger)

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	gdb, err := db.Open(openCtx, cfg.DatabaseURL, cfg.DBDriver)
	if err == nil {
		err = db.Migrate(openCtx, gdb)
	}
	cancel()
	if err != nil {
		log.Fatalf("db: %v", err)
	}

	r := repo.New(gdb)

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	publisher := openPublisher(cfg, logger)

	var index search.Index
	if cfg.ESURL != "" {
		es, err := search.NewClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			logger.Warn("search_index_unavailable", "reason", "falling back to database search", "error", err)
		} else {
			index = search.NewElastic(es, cfg.ESIndex)
		}
	}

	loginLimiter, closeLimiter := openLoginLimiter(ctx, cfg, logger)

	authSvc := &service.AuthService{
		Repo:              r,
		Secret:            cfg.SecretKey,
		SessionTTL:        cfg.SessionTTL,
		MinPasswordLength: cfg.MinPasswordLength,
	}
	catalog := &service.CatalogService{
		Repo:      r,
		Store:     store,
		Validator: upload.NewValidator(cfg.AllowedExtensions, cfg.MaxUploadBytes),
		Index:     index,
		Events:    publisher,
	}
	favorites := &service.FavoritesService{Repo: r, Events: publisher}

	if cfg.AdminPassword == "" {
		logger.Warn("seed_admin_skipped", "reason", "ADMIN_PASSWORD is not set")
	} else if _, err := authSvc.SeedAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	var csrfCfg *csrf.Config
	if cfg.CSRFEnabled {
		c := csrf.DefaultConfig()
		c.Secure = cfg.CookieSecure
		c.SkipPaths = []string{"/health/live", "/health/ready", "/login", "/register"}
		csrfCfg = &c
	}

	hsts := 0
	if cfg.CookieSecure {
		hsts = 31536000
	}

	e := httpserver.New(&httpserver.Deps{
		AuthHandler:      &handlers.AuthHandler{Auth: authSvc, Events: publisher, CookieSecure: cfg.CookieSecure},
		ProductHandler:   &handlers.ProductHandler{Catalog: catalog, Favorites: favorites},
		SearchHandler:    handlers.NewSearchHandler(catalog),
		FavoritesHandler: &handlers.FavoritesHandler{Favorites: favorites},
		FilesHandler:     &handlers.FilesHandler{Store: store},
		Session:          &authmw.Session{Resolver: authSvc},
		LoginLimiter:     loginLimiter,
		Ready:            func(ctx context.Context) error { return db.Ping(ctx, gdb) },
	}, httpserver.Options{
		Logger:     logger,
		BodyLimit:  bodyLimit(cfg.MaxUploadBytes),
		CSRF:       csrfCfg,
		HSTSMaxAge: hsts,
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	bgCtx, stopBackground := context.WithCancel(ctx)
	go purgeSessions(bgCtx, authSvc)

	go func() {
		logger.Info("server_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting_down")
	stopBackground()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_failed", "error", err)
	}
	closeAll(logger, gdb, publisher, closeStore, closeLimiter)
	logger.Info("shutdown_complete")
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, func() error, error) {
	if cfg.MinIO.Enabled() {
		m, err := storage.NewMinIO(ctx, cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, cfg.MinIO.Bucket, cfg.MinIO.UseSSL)
		if err != nil {
			return nil, nil, err
		}
		return m, func() error { return nil }, nil
	}
	local, err := storage.NewLocal(cfg.UploadDir)
	if err != nil {
		return nil, nil, err
	}
	return local, local.Close, nil
}

func openPublisher(cfg config.Config, logger *slog.Logger) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("events_disabled", "reason", "KAFKA_BROKERS is not set")
		return events.Nop{}
	}
	p, err := events.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		logger.Warn("events_disabled", "error", err)
		return events.Nop{}
	}
	return p
}

// openLoginLimiter prefers the shared Redis limiter and falls back to a
// per-process one when Redis is absent or unreachable.
func openLoginLimiter(ctx context.Context, cfg config.Config, logger *slog.Logger) (echo.MiddlewareFunc, func() error) {
	rl := ratelimit.Config{Name: "login", Limit: cfg.LoginRateLimit, Window: loginWindow}
	if cfg.RedisAddr != "" {
		client, err := ratelimit.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err == nil {
			return ratelimit.Middleware(ratelimit.NewRedisLimiter(client, "ratelimit:"), rl), client.Close
		}
		logger.Warn("redis_unavailable", "reason", "using in-memory login limiter", "error", err)
	}
	return ratelimit.MemoryMiddleware(rl), func() error { return nil }
}

// bodyLimit leaves room for three attachments plus the form fields.
func bodyLimit(maxUpload int64) string {
	return fmt.Sprintf("%dM", 3*maxUpload/(1<<20)+1)
}

func purgeSessions(ctx context.Context, auth *service.AuthService) {
	t := time.NewTicker(sessionPurgeEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := auth.PurgeSessions(ctx); err != nil {
				logging.FromContext(ctx).Error("purge_sessions_failed", "error", err)
			} else if n > 0 {
				logging.FromContext(ctx).Info("purge_sessions", "removed", n)
			}
		}
	}
}

func closeAll(logger *slog.Logger, gdb *gorm.DB, publisher events.Publisher, closers ...func() error) {
	if err := publisher.Close(); err != nil {
		logger.Error("kafka_close_failed", "error", err)
	}
	for _, c := range closers {
		if err := c(); err != nil {
			logger.Error("close_failed", "error", err)
		}
	}
	if err := db.Close(gdb); err != nil {
		logger.Error("db_close_failed", "error", err)
	}
}
