package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/monti/agentdesk/internal/alerts"
	"github.com/dennisdiepolder/monti/agentdesk/internal/api"
	"github.com/dennisdiepolder/monti/agentdesk/internal/auth"
	"github.com/dennisdiepolder/monti/agentdesk/internal/config"
	"github.com/dennisdiepolder/monti/agentdesk/internal/crm"
	"github.com/dennisdiepolder/monti/agentdesk/internal/notify"
	"github.com/dennisdiepolder/monti/agentdesk/internal/order"
	"github.com/dennisdiepolder/monti/agentdesk/internal/outcome"
	"github.com/dennisdiepolder/monti/agentdesk/internal/queue"
	"github.com/dennisdiepolder/monti/agentdesk/internal/session"
	"github.com/dennisdiepolder/monti/agentdesk/internal/storage"
	"github.com/dennisdiepolder/monti/agentdesk/internal/types"
	"github.com/dennisdiepolder/monti/agentdesk/internal/uifeed"
	"github.com/dennisdiepolder/monti/agentdesk/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	tokens := auth.NewSource(cfg.AuthToken, cfg.AuthTokenFile)
	agentID := cfg.AgentID
	if agentID == 0 {
		agentID, err = auth.AgentID(tokens.Token())
		if err != nil {
			log.Fatal().Err(err).Msg("AGENT_ID not set and no agent id in token")
		}
	}

	log.Info().
		Str("port", cfg.Port).
		Int("agent_id", agentID).
		Str("api_base_url", cfg.APIBaseURL).
		Str("ws_base_url", cfg.WSBaseURL).
		Str("log_level", cfg.LogLevel).
		Msg("starting agent desk")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewStore(ctx, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize followup store")
	}

	// UI feed
	hub := uifeed.NewHub(log.Logger)
	go hub.Run(ctx)
	feed := uifeed.NewFeed(hub)

	client := crm.NewClient(cfg.APIBaseURL, tokens, cfg.HTTPTimeout, log.Logger)
	rates := order.Rates{Cities: cfg.ShippingRates, Default: cfg.DefaultShippingCost}

	leadQueue := queue.NewCache(client, feed, queue.Options{
		Lookahead:   cfg.CallbackLookahead,
		StatsPeriod: cfg.StatsPeriod,
		Interval:    cfg.QueueRefreshInterval,
	}, log.Logger)
	go leadQueue.Run(ctx)

	resolver := outcome.NewResolver(client, store, leadQueue, rates, agentID, log.Logger)
	controller := session.NewController(resolver, client, feed, session.Options{
		TickInterval: time.Second,
		Rates:        rates,
	}, log.Logger)

	dispatcher := alerts.NewDispatcher(feed, feed, controller, alerts.Options{
		PhoneRegion:      cfg.PhoneRegion,
		SoundMinInterval: cfg.SoundMinInterval,
	}, log.Logger)

	onStatus := func(s types.ChannelStatus) {
		feed.ChannelStatus(s)
		dispatcher.ChannelStatus(s)
	}
	registry := notify.NewRegistry(notify.Options{
		BaseURL: cfg.WSBaseURL,
		Tokens:  tokens,
		Backoff: notify.Backoff{
			Base:        cfg.ReconnectBase,
			Cap:         cfg.ReconnectCap,
			MaxAttempts: cfg.ReconnectMaxAttempts,
		},
		StaleAfter: cfg.HeartbeatTimeout,
		OnStatus:   onStatus,
	}, log.Logger)
	channel := registry.Connect(ctx, agentID)
	go dispatcher.Run(ctx, channel.Events())

	desk := api.NewAPI(api.Deps{
		Session:   controller,
		Scheduler: resolver,
		Alerts:    dispatcher,
		Queue:     leadQueue,
		Leads:     client,
		Channel:   channel,
		Followups: store,
		AgentID:   fmt.Sprint(agentID),
	}, log.Logger)

	wsHandler := uifeed.NewHandler(hub, cfg, log.Logger)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", healthHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/ui", wsHandler.ServeHTTP)
	desk.SetupRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down agent desk...")

	registry.CloseAll()
	controller.Close()
	cancel()
	dispatcher.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("agent desk stopped")
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"agentdesk"}`)
}
