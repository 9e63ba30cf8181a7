package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/agente-films/moviepitch/config"
	"github.com/agente-films/moviepitch/internal/agents"
	"github.com/agente-films/moviepitch/internal/service"
	"github.com/agente-films/moviepitch/internal/session"
	"github.com/agente-films/moviepitch/internal/store"
	"github.com/agente-films/moviepitch/internal/tools"
	"github.com/agente-films/moviepitch/provider"
)

func Run(cfg *config.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Initialize shared dependencies (top-level DI)
	ctx := context.Background()
	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	_ = Migrate("file://migrations", dsn, "up", 0)

	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.Storage.Redis.Host != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Storage.Redis.Addr(), Password: cfg.Storage.Redis.Password, DB: cfg.Storage.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
		}
	}

	// Pipeline service (single instance shares the session cache)
	registry := agents.NewRegistry(cfg.LLM.Routing)
	svc := service.New(st, session.NewCache(), registry, llm)
	svc.Logger = log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags)
	svc.Writer = &tools.PitchFileWriter{Dir: cfg.Agents.PitchDir}
	if cfg.Agents.WikipediaOn {
		wikiLogger := log.New(log.Writer(), "[WIKI] ", log.LstdFlags)
		svc.Lookup = tools.NewWikipedia(rdb, cfg.Agents.WikiCacheTTL, wikiLogger)
	}

	secret := cfg.Server.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}

	api := e.Group("/api")
	auth := &AuthHandler{Store: st, Secret: []byte(secret)}
	auth.Register(api.Group("/auth"))

	sh := &SessionsHandler{Service: svc, Store: st, MaxMessageLen: cfg.Agents.MessageMaxLen}
	sh.Register(api.Group("/sessions"), auth.Secret)

	wsLogger := log.New(log.Writer(), "[WS] ", log.LstdFlags)
	wsh := &StreamHandler{Service: svc, MaxMessageLen: cfg.Agents.MessageMaxLen, Logger: wsLogger}
	e.GET("/ws/sessions/:id", func(c echo.Context) error { return withAuth(wsh.handle, auth.Secret)(c) })

	// stale-session sweep (redis lock keeps multi-instance deploys from
	// double sweeping)
	sched := &Scheduler{
		Store:      st,
		Stop:       make(chan struct{}),
		Rdb:        rdb,
		Spec:       cfg.Agents.SweepCron,
		StaleAfter: cfg.Agents.StaleAfter,
		Logger:     log.New(log.Writer(), "[SWEEP] ", log.LstdFlags),
	}
	sched.Start()

	if addr == "" {
		addr = cfg.Server.Address
		if addr != "" && addr[0] != ':' {
			addr = ":" + addr
		}
		if addr == "" {
			addr = ":8080"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
