package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Vovarama1992/featured-media/internal/config"
	"github.com/Vovarama1992/featured-media/internal/delivery"
	ws "github.com/Vovarama1992/featured-media/internal/delivery/ws"
	"github.com/Vovarama1992/featured-media/internal/domain"
	"github.com/Vovarama1992/featured-media/internal/domain/jsonld"
	"github.com/Vovarama1992/featured-media/internal/infra"
	"github.com/Vovarama1992/featured-media/internal/metrics"
	"github.com/Vovarama1992/go-utils/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {

	// CONFIG
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		panic(err.Error())
	}
	if err := cfg.Validate(); err != nil {
		panic(err.Error())
	}

	// LOGGER
	zcore, err := infra.NewLogger(cfg.Log)
	if err != nil {
		panic("cannot build logger: " + err.Error())
	}
	defer zcore.Sync()
	sugar := zcore.Sugar()
	zl := logger.NewZapLogger(sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// POSTGRES
	pool, err := infra.NewPgxPool(ctx, cfg.Database.URL)
	if err != nil {
		panic(err.Error())
	}
	defer pool.Close()

	tables := infra.NewTables(cfg.Database.TablePrefix)
	if cfg.Database.Migrate {
		if err := infra.EnsureSchema(ctx, pool, tables); err != nil {
			panic(err.Error())
		}
	}

	// STORAGE
	posts := infra.NewPostgresPostRepo(pool, tables)
	files := infra.NewFileStore(cfg.Uploads.Dir, cfg.Uploads.BaseURL, cfg.Uploads.MaxBytes)
	store := infra.NewAttachmentStore(files, posts, sugar.Named("store"))
	fetcher := infra.NewHTTPFetcher(infra.HTTPFetcherOptions{
		Timeout:   cfg.Fetch.Timeout,
		Attempts:  cfg.Fetch.Attempts,
		MaxBytes:  cfg.Fetch.MaxBytes,
		UserAgent: cfg.Fetch.UserAgent,
	}, sugar.Named("fetch"))

	// SERVICES
	m := metrics.New(prometheus.DefaultRegisterer)
	uploader := domain.NewUploader(store, posts, fetcher, m, sugar.Named("resolver"))
	authService := domain.NewAuthService(cfg.Auth.PasswordHash, cfg.Auth.Secret)
	supportService := domain.NewSupportService(cfg, posts, uploader, infra.PoolStats(pool))

	registry, err := jsonld.NewRegistry(
		jsonld.NewThingGenerator("Thing", posts),
		jsonld.NewThingGenerator("Event", posts),
		jsonld.NewThingGenerator("Place", posts),
		jsonld.NewThingGenerator("Organization", posts),
	)
	if err != nil {
		panic(err.Error())
	}

	// WS HUB
	hub := ws.NewHub(sugar.Named("hub"))
	go hub.Pump(ctx.Done(), uploader.Events())

	// ROUTER
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Auth"},
		AllowCredentials: true,
	}))
	r.Use(delivery.AuthMiddleware(authService))

	delivery.RegisterRoutes(r, delivery.Handlers{
		Auth:    delivery.NewAuthHandler(authService, zl),
		Media:   delivery.NewMediaHandler(uploader, store, zl),
		Support: delivery.NewSupportHandler(supportService, zl),
		JSONLD:  delivery.NewJSONLDHandler(registry, zl),
	})

	r.Get("/ws", ws.WSHandler(hub))
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.Uploads.Dir))))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zl.Log(logger.LogEntry{
		Level:   "info",
		Message: "server started",
		Fields:  map[string]any{"port": cfg.Port, "uploads": cfg.Uploads.Dir},
	})

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zl.Log(logger.LogEntry{
			Level:   "error",
			Message: "server crashed",
			Error:   err,
		})
	}
}
