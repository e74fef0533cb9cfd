package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/glkeru/projxchange/internal/api"
	config "github.com/glkeru/projxchange/internal/config"
	db "github.com/glkeru/projxchange/internal/db"
	gateway "github.com/glkeru/projxchange/internal/external/gateway"
	rabbit "github.com/glkeru/projxchange/internal/external/rabbitmq"
	interf "github.com/glkeru/projxchange/internal/interfaces"
	services "github.com/glkeru/projxchange/internal/services"
	session "github.com/glkeru/projxchange/internal/session"
	tracing "github.com/glkeru/projxchange/observability/otel"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	// log
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// config
	if err := godotenv.Load(); err != nil {
		logger.Debug(".env not loaded", zap.Error(err))
	}
	cfg := config.Load()
	err = cfg.ValidateServer()
	if err != nil {
		panic(err)
	}

	// tracing
	shutdownTracer, err := tracing.InitTracer(context.Background(), cfg.OtelEndpoint, "entitlement", logger)
	if err != nil {
		panic(err)
	}
	defer shutdownTracer()

	// cache
	var cache interf.BalanceCache
	if cfg.CacheURL != "" {
		c, err := db.NewCacheService(cfg.CacheURL, cfg.CacheUser, cfg.CachePwd)
		if err != nil {
			panic(err)
		}
		defer c.Close()
		cache = c
	}

	// catalog
	var catalog interf.ProjectCatalog
	if cfg.Mongo != "" {
		p, err := db.NewProjectsDB(cfg.Mongo)
		if err != nil {
			panic(err)
		}
		defer p.Close(context.Background())
		catalog = p
	}

	// events
	var events interf.EventPublisher
	if cfg.RabbitURL != "" {
		r, err := rabbit.NewRabbitPublisher(cfg.RabbitURL, cfg.RabbitPort, cfg.RabbitUser, cfg.RabbitPassword)
		if err != nil {
			panic(err)
		}
		defer r.Close()
		events = r
	}

	// клиент на каждого пользователя, файлы отдаются в ответе
	registry := api.NewRegistry([]byte(cfg.JWTSecret), func(sess *session.Session) *services.Client {
		gw := gateway.NewGateway(cfg.APIURL, sess, logger)
		return services.NewClient(sess, gw, nil, services.ClientOptions{
			Files:         gw,
			Cache:         cache,
			Events:        events,
			ViewThreshold: cfg.ViewQualify,
		}, logger.With(zap.String("user", sess.UserID())))
	})
	defer registry.Close()

	// api handlers
	r := api.NewHandler(registry, catalog, logger)
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	srv := &http.Server{
		Handler:      otelhttp.NewHandler(c.Handler(r), "entitlement"),
		Addr:         ":" + cfg.Port,
		WriteTimeout: 5 * time.Minute,
		ReadTimeout:  10 * time.Second,
	}
	go func() {
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()
	logger.Info("entitlement server started", zap.String("port", cfg.Port))

	// shutdown
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt
	timeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = srv.Shutdown(timeout)
	if err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
