package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"hostel/internal/analytics"
	"hostel/internal/attachment"
	"hostel/internal/auth"
	"hostel/internal/complaint"
	"hostel/internal/config"
	"hostel/internal/feed"
	"hostel/internal/feedback"
	"hostel/internal/handler"
	"hostel/internal/history"
	"hostel/internal/httpmiddleware"
	"hostel/internal/metrics"
	"hostel/internal/queue"
	"hostel/internal/seed"
	"hostel/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

type stores struct {
	complaints complaint.Store
	feedback   feedback.Store
	history    history.Store
}

func openStores(ctx context.Context, cfg config.App) (stores, *store.DB, error) {
	if cfg.StoreBackend != "postgres" {
		log.Println("store: in-memory (STORE_BACKEND=memory); data is lost on restart")
		return stores{
			complaints: complaint.NewMemoryStore(),
			feedback:   feedback.NewMemoryStore(),
			history:    history.NewMemoryStore(),
		}, nil, nil
	}
	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return stores{}, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return stores{}, nil, err
	}
	return postgresStores(db.Client), db, nil
}

func postgresStores(db *sql.DB) stores {
	return stores{
		complaints: complaint.NewRepository(db),
		feedback:   feedback.NewRepository(db),
		history:    history.NewRepository(db),
	}
}

func runHTTP(cfg config.App) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, db, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var (
		redisClient *store.Redis
		q           queue.Queue
		revoker     auth.Revoker
		cache       analytics.Cache
	)
	if cfg.QueueBackend == "redis" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
		revoker = auth.NewRedisRevoker(redisClient.Client, "")
		cache = analytics.NewRedisCache(redisClient.Client, "", cfg.AnalyticsCacheTTL)
		if cfg.StoreBackend != "postgres" {
			log.Println("warning: redis queue with in-memory store; history is recorded by the worker into Postgres only")
		}
	} else {
		q = queue.NewInMemory(256)
		go func() {
			if err := history.NewRecorder(q, st.history).Run(ctx); err != nil {
				log.Printf("history recorder stopped: %v", err)
			}
		}()
	}

	complaints := complaint.NewService(st.complaints)
	stats := analytics.NewService(complaints, cache)
	hub := feed.NewHub()
	go hub.Run(ctx)

	complaints.Subscribe(queue.NewEventPublisher(q))
	complaints.Subscribe(hub)
	complaints.Subscribe(stats)
	complaints.Subscribe(metrics.Recorder{})

	gateway, err := identityGateway(cfg)
	if err != nil {
		return err
	}
	tokens := auth.NewTokens(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.AccessTTL, revoker)
	login := auth.NewAuthenticator(gateway, tokens)
	login.OnFailure = func(string, error) { metrics.LoginFailures.Inc() }

	if demoEnabled(cfg) {
		if _, err := seed.Load(ctx, st.complaints, time.Now()); err != nil {
			log.Printf("warning: demo seed failed: %v", err)
		}
	}

	var uploader attachment.Uploader
	if cdn := attachment.NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder); cdn != nil {
		uploader = cdn
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("Cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set)")
	}

	h := handler.New(handler.Deps{
		Complaints:  complaints,
		Analytics:   stats,
		Login:       login,
		Tokens:      tokens,
		Feedback:    feedback.NewService(st.feedback),
		History:     st.history,
		Uploader:    uploader,
		Feed:        feed.NewHandler(ctx, hub, originChecker(cfg.CORSOrigins)),
		Limiter:     httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin),
		TrendMonths: cfg.TrendMonths,
		Health: map[string]handler.HealthCheck{
			"db":    db.Healthy,
			"redis": redisClient.Healthy,
		},
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.Metrics())
	h.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Closing the hub first ends websocket writers so Shutdown does not wait on them.
	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// demoEnabled reports whether demo accounts and complaints may be loaded.
// Production never serves the published demo credentials.
func demoEnabled(cfg config.App) bool {
	return cfg.SeedDemo && !cfg.Production()
}

func identityGateway(cfg config.App) (auth.Gateway, error) {
	if cfg.AuthProvider == "supabase" {
		if cfg.SupabaseURL == "" || cfg.SupabaseAnonKey == "" {
			return nil, errors.New("auth: SUPABASE_URL and SUPABASE_ANON_KEY are required")
		}
		log.Printf("auth: Supabase at %s", cfg.SupabaseURL)
		return auth.NewSupabase(cfg.SupabaseURL, cfg.SupabaseAnonKey), nil
	}
	dir := auth.NewDirectory()
	if cfg.DirectoryFile != "" {
		accounts, err := auth.LoadAccounts(cfg.DirectoryFile)
		if err != nil {
			return nil, fmt.Errorf("auth: load %s: %w", cfg.DirectoryFile, err)
		}
		for _, a := range accounts {
			dir.Add(a)
		}
		log.Printf("auth: local directory with %d accounts from %s", len(accounts), cfg.DirectoryFile)
	}
	if demoEnabled(cfg) {
		accounts, err := seed.Accounts()
		if err != nil {
			return nil, err
		}
		for _, a := range accounts {
			dir.Add(a)
		}
		log.Println("auth: demo accounts enabled")
	}
	if dir.Len() == 0 {
		return nil, errors.New("auth: directory is empty; set DIRECTORY_FILE or AUTH_PROVIDER=supabase")
	}
	return dir, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// originChecker limits websocket upgrades to the CORS origins; nil allows any.
func originChecker(origins []string) func(*http.Request) bool {
	if len(origins) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range origins {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}
