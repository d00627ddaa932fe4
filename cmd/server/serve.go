package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/doyensec/safeurl"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/AnshRaj112/agentdesk-backend/internal/config"
	"github.com/AnshRaj112/agentdesk-backend/internal/database"
	"github.com/AnshRaj112/agentdesk-backend/internal/handlers"
	"github.com/AnshRaj112/agentdesk-backend/internal/metrics"
	"github.com/AnshRaj112/agentdesk-backend/internal/middleware"
	"github.com/AnshRaj112/agentdesk-backend/internal/routes"
	"github.com/AnshRaj112/agentdesk-backend/internal/services"
	"github.com/AnshRaj112/agentdesk-backend/pkg/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sealer, err := newSealer(cfg)
	if err != nil {
		return err
	}

	users, activities, closeStore, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	slog.Info("Connecting to Redis...")
	rdb, err := database.ConnectRedis(ctx, cfg.RedisURI)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector(reg)

	upstream := &http.Client{Timeout: cfg.UpstreamTimeout}
	// Caption track URLs come out of third-party HTML, so they are fetched
	// through a client that refuses private and loopback addresses.
	trackClient := safeurl.Client(safeurl.GetConfigBuilder().
		SetTimeout(cfg.UpstreamTimeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()).Client

	sessions := services.NewSessionManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.SessionTTL, sealer, services.NewRedisRevocationStore(rdb))
	vault := services.NewTokenVault(users, sealer)
	hub := services.NewActivityHub(rdb)
	activitySvc := services.NewActivityService(activities, hub, m)
	cache := services.NewCacheService(rdb)

	youtube := services.NewYouTubeClient(cfg.YouTubeAPIKey, upstream, trackClient, m)
	generator := services.NewHuggingFaceClient(cfg.HFAPIBaseURL, cfg.HFModel, cfg.HFAPIToken, upstream, m)
	twitterAPI := services.NewTwitterClient(cfg.TwitterAPIBaseURL, upstream, m)

	deps := handlers.Deps{
		Credentials: services.NewCredentialService(users, sessions, vault),
		Sessions:    sessions,
		Vault:       vault,
		YouTube:     services.NewYouTubeAgent(youtube, youtube, cache, activitySvc),
		Research:    services.NewResearchAgent(services.NewArxivClient(cfg.ArxivAPIURL, upstream, m), activitySvc),
		Twitter:     services.NewTwitterAgent(generator, twitterAPI, vault, activitySvc),
		Activities:  activitySvc,
		Hub:         hub,
		FrontendURL: cfg.FrontendURL,

		AllowedOrigins: cfg.AllowedOrigins,
	}

	if cfg.TwitterEnabled() {
		oauthConfig := services.NewTwitterOAuthConfig(cfg.TwitterClientID, cfg.TwitterClientSecret, cfg.TwitterRedirectURL)
		deps.TwitterAuth = services.NewTwitterAuth(oauthConfig, services.NewRedisStateStore(rdb), vault, upstream, m)
		slog.Info("✅ Twitter OAuth configured")
	} else {
		slog.Warn("⚠️  TWITTER_CLIENT_ID not set. Twitter account linking will not be available")
	}

	if cfg.CloudinaryEnabled() {
		cld, err := services.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			slog.Warn("Failed to initialize Cloudinary; avatar uploads will not be available", slog.String("error", err.Error()))
		} else {
			deps.Avatars = cld
			slog.Info("✅ Cloudinary service initialized")
		}
	} else {
		slog.Warn("Cloudinary credentials not found. Avatar uploads will not be available")
	}

	if cfg.HFAPIToken == "" {
		slog.Warn("⚠️  HF_API_TOKEN not set. Tweet generation will be rate limited by the inference API")
	}

	go hub.Run(ctx)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(m))
	r.Use(middleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(hostname(cfg.Host)) {
			r.Use(mw)
		}
		slog.Info("✅ Production security enabled (security headers, per-IP + login rate limiting)")
	}
	r.Use(middleware.NewRedisRateLimiter(rdb).Middleware)

	routes.Setup(r, handlers.New(deps), sessions)

	if metricsSrv := newMetricsServer(cfg.MetricsAddr, reg); metricsSrv != nil {
		go func() {
			slog.Info("📈 Metrics listening", slog.String("addr", cfg.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics listener stopped", slog.String("error", err.Error()))
			}
		}()
		defer metricsSrv.Close()
	} else {
		slog.Warn("⚠️  METRICS_ADDR=off. /metrics will not be served")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info(fmt.Sprintf("🚀 AgentDesk backend running on :%s", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newSealer builds the cipher for delegated tokens. ENCRYPTION_KEY is
// preferred; without it a key is derived from JWT_SECRET.
func newSealer(cfg *config.Config) (*utils.Sealer, error) {
	if cfg.EncryptionKey == "" {
		slog.Warn("⚠️  WARNING: ENCRYPTION_KEY not set. Deriving the token encryption key from JWT_SECRET.")
		slog.Warn("   To generate a key, run: openssl rand -base64 32")
		return utils.NewSealer(utils.DeriveKey(cfg.JWTSecret))
	}
	key, err := utils.ParseEncryptionKey(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY is invalid (must be base64-encoded 32 bytes): %w", err)
	}
	slog.Info("✅ Encryption key configured")
	return utils.NewSealer(key)
}

// openStores connects the configured store driver and prepares its schema.
func openStores(ctx context.Context, cfg *config.Config) (services.UserStore, services.ActivityStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		slog.Info("Connecting to PostgreSQL...")
		db, err := database.ConnectPostgres(ctx, cfg.PostgresURI)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		if err := database.RunMigrations(cfg.PostgresURI); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		return services.NewPostgresUserStore(db), services.NewPostgresActivityStore(db), func() { _ = db.Close() }, nil

	default:
		slog.Info("Connecting to MongoDB...", slog.String("uri", database.MaskURI(cfg.MongoURI)))
		client, db, err := database.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		users := services.NewMongoUserStore(db)
		activities := services.NewMongoActivityStore(db)

		release := func() { _ = database.Disconnect(client) }
		if err := prepareIndexes(ctx, release, users, activities); err != nil {
			return nil, nil, nil, err
		}
		return users, activities, release, nil
	}
}

// newMetricsServer serves /metrics on its own listener, kept off the public
// router. An empty addr disables it.
func newMetricsServer(addr string, reg *prometheus.Registry) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// prepareIndexes ensures the store indexes and calls release when that fails.
// The unique email index is what rejects racing registrations, so serving
// without it is not an option.
func prepareIndexes(ctx context.Context, release func(), stores ...services.IndexEnsurer) error {
	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := ensureIndexes(indexCtx, stores...); err != nil {
		release()
		return fmt.Errorf("failed to ensure MongoDB indexes: %w", err)
	}
	return nil
}

func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
