package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Skotchmaster/bookstore/internal/config"
	"github.com/Skotchmaster/bookstore/internal/httpserver"
	"github.com/Skotchmaster/bookstore/internal/logging"
	"github.com/Skotchmaster/bookstore/internal/middleware/csrf"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/mykafka"
	"github.com/Skotchmaster/bookstore/internal/query"
	"github.com/Skotchmaster/bookstore/internal/session"
	"github.com/Skotchmaster/bookstore/internal/telemetry"
	"github.com/Skotchmaster/bookstore/pkg/apiclient"
	envcfg "github.com/Skotchmaster/bookstore/pkg/config"
)

func main() {
	cfg := config.LoadConfig()
	envcfg.MustNonEmpty(cfg.BackendURL, "BACKEND_URL")

	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	shutdownTracing := telemetry.Setup(ctx, "bookstore-storefront", logger)

	storage, closeStorage, err := openTokenStorage(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("token storage: %v", err)
	}

	var producer *mykafka.Producer
	var events session.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Fatal(err)
		}
		events = producer
	}

	client := apiclient.NewClient(cfg.BackendURL, apiclient.WithTimeout(cfg.BackendTimeout))

	bookCache := query.NewCache[models.Book](cfg.QueryCacheTTL)
	userCache := query.NewCache[models.UserIdentity](cfg.QueryCacheTTL)
	catalog := query.NewView(bookCache, httpserver.BookFetcher(client))
	adminBooks := query.NewView(bookCache, httpserver.BookFetcher(client))
	users := query.NewView(userCache, httpserver.UserFetcher(client))

	opts := []session.Option{
		session.WithLogger(logger.With("component", "session")),
		session.WithSignOutHook(func() {
			bookCache.Clear()
			userCache.Clear()
			catalog.Reset()
			adminBooks.Reset()
			users.Reset()
		}),
	}
	if events != nil {
		opts = append(opts, session.WithPublisher(events, cfg.SessionEventsTopic))
	}
	if cfg.PersistAfterExchange {
		opts = append(opts, session.WithPersistAfterExchange())
	}
	store := session.New(storage, client, client, opts...)
	client.SetTokenSource(store.Token)

	deps := &httpserver.Deps{
		Auth:  &httpserver.AuthHTTP{API: client, Sessions: store},
		Books: &httpserver.BooksHTTP{API: client, View: catalog, PageSize: cfg.CatalogPageSize},
		Cart:  &httpserver.CartHTTP{API: client, Sessions: store, Events: events, Topic: cfg.CartEventsTopic},
		Admin: &httpserver.AdminHTTP{
			API:       client,
			Sessions:  store,
			Users:     users,
			Books:     adminBooks,
			UserCache: userCache,
			BookCache: bookCache,
			PageSize:  cfg.AdminPageSize,
			Events:    events,
			Topic:     cfg.AdminEventsTopic,
		},
		Session: store,
		Stream:  store,
		Logger:  logger,
	}
	if cfg.CSRFEnabled {
		c := csrf.DefaultConfig()
		c.Secure = cfg.CSRFSecure
		deps.CSRF = &c
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	httpserver.Register(e, deps)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      otelhttp.NewHandler(e, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Guards and /health/ready answer 503 until this finishes.
	go func() {
		if err := store.Hydrate(ctx); err != nil && !errors.Is(err, session.ErrClosed) {
			logger.Error("session_hydrate_error", "error", err)
		}
	}()
	go func() {
		logger.Info("storefront_listening", "addr", cfg.ListenAddr, "token_store", cfg.TokenStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}

	store.Close()

	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka_close_error", "error", err)
		}
	}
	if err := closeStorage(); err != nil {
		logger.Error("storage_close_error", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing_shutdown_error", "error", err)
	}

	logger.Info("shutdown_complete")
}
