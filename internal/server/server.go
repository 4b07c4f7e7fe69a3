package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cardfund/cardfund/internal/config"
	"github.com/cardfund/cardfund/internal/rates"
	"github.com/cardfund/cardfund/internal/routes"
)

// Server wraps the Fiber application, shared dependencies and the rate
// aggregator's refresh loop.
type Server struct {
	app        *fiber.App
	cfg        config.Config
	aggregator *rates.Aggregator
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	aggregator, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, aggregator: aggregator}, nil
}

// Listen starts the rate refresh loop and the HTTP server.
func (s *Server) Listen() error {
	if err := s.aggregator.Start(); err != nil {
		return err
	}
	return s.app.Listen(s.cfg.Address())
}

// Shutdown stops the refresh loop and gracefully drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.aggregator.Stop()
	return s.app.ShutdownWithContext(ctx)
}
