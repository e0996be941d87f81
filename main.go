package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rateright/backend/features/booking"
	"rateright/backend/features/discovery"
	"rateright/backend/features/inquiry"
	"rateright/backend/features/observation"
	"rateright/backend/features/provider"
	"rateright/backend/features/search"
	"rateright/backend/features/servicetype"
	"rateright/backend/internal/adapter/gemini"
	"rateright/backend/internal/adapter/mail"
	"rateright/backend/internal/adapter/serpapi"
	wstore "rateright/backend/internal/adapter/weaviate"
	"rateright/backend/internal/config"
	"rateright/backend/internal/logger"
	"rateright/backend/internal/middleware"
	"rateright/backend/internal/scraper"
	"rateright/backend/internal/worker"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/redis/go-redis/v9"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
)

func main() {
	// Structured logger; the context handler tags every record with the
	// correlation id of the request (or task) that produced it.
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Database
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("failed to open db connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second
	for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1, "max_attempts", cfg.BootstrapRetryAttempts)
		time.Sleep(retryDelay)
	}
	if err := db.Ping(); err != nil {
		slog.Error("failed to ping db after retries", "error", err)
		os.Exit(1)
	}

	// Migrations
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		slog.Error("failed to create migration driver", "error", err)
		os.Exit(1)
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
	if err != nil {
		slog.Error("failed to create migration instance", "error", err)
		os.Exit(1)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("migrations applied successfully")

	// Weaviate
	wClient, err := weaviate.NewClient(weaviate.Config{
		Host:   cfg.WeaviateHost,
		Scheme: cfg.WeaviateScheme,
	})
	if err != nil {
		slog.Error("failed to create weaviate client", "error", err)
		os.Exit(1)
	}
	vecStore := wstore.NewStore(wClient)
	for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
		if err := vecStore.EnsureSchema(ctx); err == nil {
			break
		}
		slog.Warn("failed to ensure weaviate schema, retrying...", "attempt", i+1)
		time.Sleep(retryDelay)
	}
	if err := vecStore.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure weaviate schema after retries", "error", err)
		os.Exit(1)
	}

	// Gemini
	embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey)
	if err != nil {
		slog.Error("failed to create gemini embedder", "error", err)
		os.Exit(1)
	}
	defer embedder.Close()

	extractor, err := gemini.NewExtractor(ctx, cfg.GeminiAPIKey)
	if err != nil {
		slog.Error("failed to create gemini extractor", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	// NSQ Producer
	nsqProducer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
	if err != nil {
		slog.Error("failed to create NSQ producer", "error", err)
		os.Exit(1)
	}
	defer nsqProducer.Stop()

	// NSQ creates topics lazily on publish; consumers asking lookupd 404
	// until then. Pre-create the discovery topic via the nsqd http api.
	go func() {
		time.Sleep(2 * time.Second)
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", cfg.NSQDHTTP, config.TopicDiscoveryTask)
		resp, err := http.Post(url, "application/json", nil)
		if err != nil {
			slog.Warn("failed to pre-create discovery topic", "error", err, "url", url)
			return
		}
		resp.Body.Close()
	}()

	// Claim store: redis when configured, in-process otherwise.
	var claims discovery.ClaimStore
	if cfg.RedisAddr != "" {
		claims = discovery.NewRedisClaims(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
		slog.Info("using redis claim store", "addr", cfg.RedisAddr)
	} else {
		claims = discovery.NewMemoryClaims()
		slog.Info("using in-memory claim store")
	}

	// Repositories
	typeRepo := servicetype.NewPostgresRepo(db)
	providerRepo := provider.NewPostgresRepo(db)
	obsRepo := observation.NewPostgresRepo(db)
	inquiryRepo := inquiry.NewPostgresRepo(db)

	// Feature: Service Types
	matcher := servicetype.NewMatcher(typeRepo, embedder, vecStore, log,
		cfg.SemanticCertainty, cfg.LexicalThreshold, cfg.MatchLimit)
	typeService := servicetype.NewService(typeRepo, embedder, vecStore, log)

	// Re-embed anything a previous run registered while Gemini was down.
	go func() {
		if err := typeService.BackfillEmbeddings(ctx, 50); err != nil {
			slog.Warn("embedding backfill failed", "error", err)
		}
	}()

	// Feature: Observations
	obsService := observation.NewService(obsRepo, providerRepo, typeRepo)
	obsHandler := observation.NewHandler(obsService)

	// Feature: Discovery
	var places discovery.PlaceSearcher
	if cfg.PlacesEnabled() {
		places = serpapi.NewClient(cfg.SerpAPIKey)
	} else {
		slog.Warn("SERPAPI_KEY not set, discovery runs on known providers only")
	}
	strategies := []discovery.Strategy{
		discovery.NewCrawlTier(scraper.NewCrawler(), obsRepo),
		discovery.NewSemanticTier(extractor, obsRepo, cfg.SemanticOverlapGate),
	}
	orchestrator, err := discovery.NewOrchestrator(places, providerRepo, obsRepo, strategies, claims, cfg.FetchConcurrency, log)
	if err != nil {
		slog.Error("failed to create discovery orchestrator", "error", err)
		os.Exit(1)
	}
	defer orchestrator.Close()

	// Feature: Inquiries
	var sender mail.Sender
	if cfg.MailEnabled() {
		ses, err := mail.NewSESSender(ctx, cfg.AWSRegion, cfg.FromEmail)
		if err != nil {
			slog.Error("failed to create SES sender", "error", err)
			os.Exit(1)
		}
		sender = ses
	} else {
		slog.Warn("FROM_EMAIL not set, inquiry sending disabled")
	}
	var mailbox mail.Mailbox
	if cfg.InboxEnabled() {
		mailbox = mail.NewIMAPMailbox(cfg.IMAPHost, cfg.IMAPPort, cfg.IMAPUser, cfg.IMAPPassword)
	} else {
		slog.Warn("IMAP not configured, reply checking disabled")
	}
	inquiryService := inquiry.NewService(inquiryRepo, providerRepo, typeRepo, obsRepo,
		sender, mailbox, extractor, extractor, cfg.FromEmail, log)
	inquiryHandler := inquiry.NewHandler(inquiryService)

	// Feature: Search
	var replies search.ReplyChecker
	if mailbox != nil {
		replies = inquiryService
	}
	searchService := search.NewService(matcher, obsRepo, providerRepo, typeRepo, inquiryRepo, claims, nsqProducer, replies, log, search.Config{
		CoverageThreshold: cfg.CoverageThreshold,
		ClaimTTL:          time.Duration(cfg.ClaimTTLSec) * time.Second,
		CooldownTTL:       time.Duration(cfg.CooldownTTLSec) * time.Second,
		Topic:             config.TopicDiscoveryTask,
	})
	searchHandler := search.NewHandler(searchService)

	// Feature: Booking
	bookingHandler := booking.NewHandler(booking.NewService(providerRepo))

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()
	mux.Handle("GET /search", middleware.CorrelationID(enableCORS(searchHandler.Search)))
	mux.Handle("POST /observations", middleware.CorrelationID(enableCORS(obsHandler.Create)))
	mux.Handle("GET /observations", middleware.CorrelationID(enableCORS(obsHandler.List)))
	mux.Handle("POST /inquiries", middleware.CorrelationID(enableCORS(inquiryHandler.Create)))
	mux.Handle("POST /inquiries/check-replies", middleware.CorrelationID(enableCORS(inquiryHandler.CheckReplies)))
	mux.Handle("GET /inquiries/{provider_id}", middleware.CorrelationID(enableCORS(inquiryHandler.ListByProvider)))
	mux.Handle("POST /book", middleware.CorrelationID(enableCORS(bookingHandler.Book)))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Worker: discovery consumer
	discoveryConsumer := worker.NewDiscoveryConsumer(orchestrator, extractor, typeService,
		time.Duration(cfg.CascadeTimeoutSec)*time.Second)
	consumer, err := nsq.NewConsumer(config.TopicDiscoveryTask, "backend", nsq.NewConfig())
	if err != nil {
		slog.Error("failed to create NSQ consumer", "error", err)
		os.Exit(1)
	}
	consumer.AddHandler(discoveryConsumer)
	if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
		slog.Error("failed to connect to NSQLookupd", "error", err)
	} else {
		slog.Info("NSQ discovery consumer connected")
	}

	// Worker: inbox poller
	var poller *worker.ReplyPoller
	if mailbox != nil {
		poller = worker.NewReplyPoller(inquiryService, time.Duration(cfg.ReplyPollSeconds)*time.Second)
		poller.Start()
	}

	// Serve until interrupted, then drain workers before exiting.
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: mux,
	}

	stopCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("server starting", "port", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-stopCtx.Done()
	slog.Info("shutting down")

	consumer.Stop()
	<-consumer.StopChan
	if poller != nil {
		poller.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
}
