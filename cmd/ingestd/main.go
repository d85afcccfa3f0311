package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/stockpulse/social-ingest/internal/archive"
	"github.com/stockpulse/social-ingest/internal/config"
	"github.com/stockpulse/social-ingest/internal/ingest"
	"github.com/stockpulse/social-ingest/internal/jobs"
	"github.com/stockpulse/social-ingest/internal/notifications"
	"github.com/stockpulse/social-ingest/internal/ratelimit"
	"github.com/stockpulse/social-ingest/internal/reddit"
	"github.com/stockpulse/social-ingest/internal/scheduler"
	"github.com/stockpulse/social-ingest/internal/store"
	"github.com/stockpulse/social-ingest/internal/tickers"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting stock social-ingestion service")

	// Rate limiter: shared Redis counter when available, process-local
	// pacing otherwise.
	var limiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		redisLimiter, err := ratelimit.NewRedis(ratelimit.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.RequestsPerMinute, time.Minute, cfg.RateLimitRetries)
		if err != nil {
			logrus.Fatalf("Failed to initialize Redis rate limiter: %v", err)
		}
		defer redisLimiter.Close()
		limiter = redisLimiter
	} else {
		logrus.Warn("REDIS_ADDR not set, using process-local rate limiting")
		limiter = ratelimit.NewLocal(cfg.RequestsPerMinute, 30*time.Second)
	}

	db, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		logrus.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Ticker universe: Finnhub mirrored into the local symbols table, or
	// the local table alone when no API key is configured.
	var tickerStore store.TickerStore = db
	if cfg.FinnhubAPIKey != "" {
		tickerStore = tickers.NewMirroredSource(
			tickers.NewFinnhubSource(cfg.FinnhubAPIKey, cfg.FinnhubExchange), db)
	} else {
		logrus.Warn("FINNHUB_API_KEY not set, symbol validation uses the local symbols table only")
	}

	client := reddit.NewClient(cfg.RedditClientID, cfg.RedditClientSecret, cfg.RedditUserAgent, limiter)

	// Fail fast on bad platform credentials instead of at the first
	// scheduled run.
	authCtx, authCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := client.Authenticate(authCtx); err != nil {
		authCancel()
		logrus.Fatalf("Reddit authentication failed: %v", err)
	}
	authCancel()

	service := ingest.NewService(client, tickerStore, db, cfg.Communities,
		time.Duration(cfg.SymbolCacheTTLHours)*time.Hour)

	var snaps archive.Archive
	if cfg.StorageAccount != "" {
		snaps, err = archive.NewBlobArchive(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize snapshot archive: %v", err)
		}
	}

	manager := jobs.NewManager(service, db, snaps, jobs.Options{
		PostsPerSync:   cfg.PostsPerSync,
		MinScore:       cfg.MinPostScore,
		MinQuality:     cfg.MinQualityScore,
		RunTimeout:     time.Duration(cfg.SyncTimeoutMinutes) * time.Minute,
		Freshness:      time.Duration(cfg.SyncFreshnessHours) * time.Hour,
		ErrorRateLimit: cfg.SyncErrorRateLimit,
	})

	var notifier notifications.Notifier
	if svc := notifications.NewService(cfg); svc.Enabled() {
		notifier = svc
	}

	schedulerService := scheduler.NewService(cfg, manager, notifier)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	router := mux.NewRouter()
	router.HandleFunc("/health", healthHandler(manager)).Methods("GET")
	router.HandleFunc("/stats", statsHandler(manager)).Methods("GET")
	router.HandleFunc("/trending", trendingHandler(manager)).Methods("GET")
	router.HandleFunc("/sentiment/{community}", sentimentHandler(service, cfg.PostsPerSync)).Methods("GET")
	router.HandleFunc("/community/{name}", communityHandler(client)).Methods("GET")
	router.HandleFunc("/user/{name}", userHandler(client)).Methods("GET")
	router.HandleFunc("/snapshots", snapshotListHandler(snaps)).Methods("GET")
	router.HandleFunc("/snapshots/{name:.+}", snapshotHandler(snaps)).Methods("GET")
	router.HandleFunc("/sync/finance", triggerHandler(func(r *http.Request) error {
		return manager.RunFinanceSync(r.Context())
	})).Methods("POST")
	router.HandleFunc("/sync/trending", triggerHandler(func(r *http.Request) error {
		return manager.RunTrendingSync(r.Context())
	})).Methods("POST")
	router.HandleFunc("/sync/symbol/{symbol}", triggerHandler(func(r *http.Request) error {
		return manager.RunSymbolSync(r.Context(), mux.Vars(r)["symbol"])
	})).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute, // synchronous trigger endpoints run full syncs
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func healthHandler(manager *jobs.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := manager.HealthCheck()
		status := http.StatusOK
		if health.Status == "unhealthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, health)
	}
}

func statsHandler(manager *jobs.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, manager.Stats(r.Context()))
	}
}

func trendingHandler(manager *jobs.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, manager.Trending())
	}
}

// triggerHandler runs a sync synchronously so the caller sees the
// underlying error instead of a fire-and-forget acknowledgment.
func triggerHandler(run func(r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := run(r); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "sync completed"})
	}
}

func sentimentHandler(service *ingest.Service, limit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sentiment, err := service.GetCommunitySentiment(r.Context(), mux.Vars(r)["community"], limit, "day")
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, sentiment)
	}
}

func communityHandler(client *reddit.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := client.GetCommunityInfo(r.Context(), mux.Vars(r)["name"])
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func userHandler(client *reddit.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := client.GetUserInfo(r.Context(), mux.Vars(r)["name"])
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func snapshotListHandler(snaps archive.Archive) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if snaps == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "snapshot archive not configured"})
			return
		}
		names, err := snaps.List("collections/")
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"snapshots": names})
	}
}

func snapshotHandler(snaps archive.Archive) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if snaps == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "snapshot archive not configured"})
			return
		}
		data, err := snaps.Retrieve(mux.Vars(r)["name"])
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(data); err != nil {
			logrus.Errorf("Failed to write snapshot response: %v", err)
		}
	}
}
