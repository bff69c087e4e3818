package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/live-poll/internal/config"
	"github.com/weiawesome/live-poll/internal/events"
	"github.com/weiawesome/live-poll/internal/handler"
	"github.com/weiawesome/live-poll/internal/hub"
	"github.com/weiawesome/live-poll/internal/idgen"
	"github.com/weiawesome/live-poll/internal/session"
	"github.com/weiawesome/live-poll/pkg/jwt"
	pkglog "github.com/weiawesome/live-poll/pkg/log"
	"github.com/weiawesome/live-poll/pkg/middleware"
	"github.com/weiawesome/live-poll/pkg/pubsub"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	ids, err := idgen.New(cfg.Session.IDStrategy)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create id generator")
	}

	// Hub, optionally mirrored to the event bus
	wsHub := hub.NewHub()
	var notifier session.Notifier = wsHub

	publisher, err := pubsub.NewPublisher(cfg.Events.Config)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Events.Driver).Msg("failed to create event publisher")
	}
	var mirror *events.Mirror
	if publisher != nil {
		mirror = events.NewMirror(wsHub, publisher, events.Config{
			Channel: cfg.Events.Channel,
			Session: cfg.Events.Session,
			Buffer:  cfg.Events.Buffer,
		})
		notifier = mirror
		logger.Info().Str("driver", cfg.Events.Driver).Str("channel", cfg.Events.Channel).Msg("event mirror enabled")
	}

	poll := session.New(session.Config{
		MaxChatLength:      cfg.Session.MaxChatLength,
		MaxNameLength:      cfg.Session.MaxNameLength,
		MaxOptions:         cfg.Session.MaxOptions,
		MaxTimeLimit:       cfg.Session.MaxTimeLimit,
		ValidateVoteOption: cfg.Session.ValidateVoteOption,
		RejectActiveCreate: cfg.Session.RejectActiveCreate,
		EnforceRoles:       cfg.Auth.TokenMode(),
	}, notifier, session.WithIDGenerator(ids))

	origins := middleware.NewOriginPolicy(cfg.CORS.AllowedOrigins, cfg.CORS.FrontendURL)

	// Setup Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))
	r.Use(origins.CORS())

	handler.NewHandler(poll).RegisterRoutes(r)

	var wsMiddleware []gin.HandlerFunc
	if cfg.Auth.TokenMode() {
		manager, err := jwt.NewManager(cfg.Auth.PresenterSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create presenter token manager")
		}
		wsMiddleware = append(wsMiddleware, middleware.PresenterAuth(manager))
	}
	handler.NewWSHandler(wsHub, poll, cfg.WebSocket, origins).RegisterRoutes(r, wsMiddleware...)

	server := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("addr", server.Addr).
			Str("auth_mode", cfg.Auth.Mode).
			Strs("origins", origins.Origins()).
			Msg("live-poll listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if mirror != nil {
		g.Go(func() error {
			return mirror.Run(gCtx)
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		poll.Close()
		wsHub.Close()
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
	}

	if mirror != nil {
		if err := mirror.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event publisher")
		}
	}

	logger.Info().Msg("live-poll stopped")
}
