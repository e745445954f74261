package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mentor-api/internal/goodfire"
	"mentor-api/internal/handlers/mentor"
	"mentor-api/internal/middleware"
	"mentor-api/internal/routers"
	"mentor-api/internal/shared"
	"mentor-api/internal/variants"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	emw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/manifold-inc/manifold-sdk/lib/eflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Flags / ENV Variables
	listenAddr := flag.String("listen-addr", shared.DefaultListenAddr, "Address to listen on")
	debug := flag.Bool("debug", false, "Debug enabled")
	goodfireAPIKey := flag.String("goodfire-api-key", "", "Goodfire API key")
	goodfireBaseURL := flag.String("goodfire-base-url", shared.DefaultGoodfireBaseURL, "Goodfire inference base URL")
	variantsDir := flag.String("variants-dir", shared.DefaultVariantsDir, "Directory of variant json files")
	corsOrigin := flag.String("cors-origin", shared.DefaultCORSOrigin, "Allowed CORS origin")
	metricsAPIKey := flag.String("metrics-api-key", "", "Metrics api key")
	requestTimeout := flag.Duration("request-timeout", shared.DefaultRequestTimeout, "Timeout for variant loads and goodfire calls")
	tagModel := flag.String("tag-model", shared.DefaultTagModel, "Model used for tags and titles")

	if err := loadDotEnv(shared.GetEnv("ENV_FILE", ".env")); err != nil {
		panic(err)
	}
	err := eflag.SetFlagsFromEnvironment()
	if err != nil {
		panic(err)
	}
	flag.Parse()

	var logger *zap.Logger
	if !*debug {
		logger, err = zap.NewProduction()
		if err != nil {
			panic("Failed init logger")
		}
	}
	if *debug {
		logger, err = zap.NewDevelopment()
		if err != nil {
			panic("Failed init logger")
		}
	}
	log := logger.Sugar()
	defer func() {
		_ = log.Sync()
	}()

	if *goodfireAPIKey == "" {
		log.Warnw("Goodfire API key not configured, text endpoints will answer with errors", "env", shared.GoodfireAPIKeyEnv)
	}

	client := goodfire.NewClient(goodfire.Config{
		APIKey:  *goodfireAPIKey,
		BaseURL: *goodfireBaseURL,
		Log:     log,
	})
	mentorHandler := mentor.NewMentorHandler(client, variants.NewStore(*variantsDir), log, mentor.Config{
		TagModel:       *tagModel,
		RequestTimeout: *requestTimeout,
	})

	e := echo.New()
	e.HideBanner = true
	e.GET("/ping", func(c echo.Context) error {
		return c.String(200, "")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.NewMetricsAuthMiddleware(*metricsAPIKey))

	e.Use(emw.CORSWithConfig(emw.CORSConfig{
		AllowOrigins:     []string{*corsOrigin},
		AllowMethods:     []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowCredentials: true,
	}))
	base := e.Group("/api")
	base.Use(middleware.NewTrackMiddleware(log))
	base.Use(middleware.NewRecoverMiddleware(log))

	routers.RegisterBasicRoutes(base)
	routers.RegisterMentorRoutes(base, mentorHandler)

	go func() {
		log.Infow("Starting server", "addr", *listenAddr, "variants_dir", *variantsDir)
		if err := e.Start(*listenAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalw("shutting down the server", "error", err)
		}
	}()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), shared.DefaultShutdownTimeout)
	defer cancel()
	start := time.Now()
	if err := e.Shutdown(ctx); err != nil {
		log.Errorw("Failed graceful shutdown", "error", err)
		return
	}
	log.Infow("Server stopped", "took", time.Since(start).String())
}

// loadDotEnv loads a .env file when present. Variables already set in the
// environment win.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
