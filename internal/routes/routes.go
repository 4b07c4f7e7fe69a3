package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cardfund/cardfund/internal/card"
	"github.com/cardfund/cardfund/internal/config"
	"github.com/cardfund/cardfund/internal/fraud"
	"github.com/cardfund/cardfund/internal/middleware"
	"github.com/cardfund/cardfund/internal/notification"
	"github.com/cardfund/cardfund/internal/processing"
	"github.com/cardfund/cardfund/internal/quote"
	"github.com/cardfund/cardfund/internal/rates"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. It returns the
// rate aggregator so the server can run its refresh loop.
func Setup(app *fiber.App, d Deps) (*rates.Aggregator, error) {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	notifier := notification.NewLoggerNotifier(d.Logger)

	var rateCache rates.Cache
	var history rates.HistoryStore
	if d.DB != nil {
		history = rates.NewPostgresHistory(d.DB)
	} else {
		history = rates.NewMemoryHistory()
	}
	if d.Cache != nil {
		rateCache = rates.NewRedisCache(d.Cache)
	} else {
		rateCache = rates.NewMemoryCache()
	}
	aggregator := rates.NewAggregator(buildSources(d.Cfg), rateCache, history, notifier, d.Logger, rates.Options{
		CacheTTL:         d.Cfg.RateCacheTTL,
		RefreshEvery:     d.Cfg.RateRefreshEvery,
		SourceTimeout:    d.Cfg.SourceTimeout,
		HistoryRetention: d.Cfg.HistoryRetention,
		Symbols:          d.Cfg.RateSymbols,
	})

	var quoteRepo quote.Repository
	var quoteCache quote.Cache
	if d.DB != nil {
		quoteRepo = quote.NewPostgresRepository(d.DB)
	} else {
		quoteRepo = quote.NewMemoryRepository()
	}
	if d.Cache != nil {
		quoteCache = quote.NewRedisCache(d.Cache)
	} else {
		quoteCache = quote.NewMemoryCache()
	}
	quoteSvc := quote.NewService(quoteRepo, quoteCache, aggregator, d.Logger, d.Cfg.QuoteValidity)

	var cardRepo card.Repository
	if d.DB != nil {
		cardRepo = card.NewPostgresRepository(d.DB)
	} else {
		cardRepo = card.NewMemoryRepository()
	}
	cardSvc := card.NewService(cardRepo, d.Logger)

	var fraudRepo fraud.Repository
	if d.DB != nil {
		fraudRepo = fraud.NewPostgresRepository(d.DB)
	} else {
		fraudRepo = fraud.NewMemoryRepository()
	}
	engine := fraud.NewEngine(fraudRepo, cardSvc, cardSvc, fraud.Policy{
		BlockThreshold:  d.Cfg.RiskBlockThreshold,
		FreezeThreshold: d.Cfg.RiskFreezeThreshold,
	}, d.Logger)

	var processingRepo processing.Repository
	if d.DB != nil {
		processingRepo = processing.NewPostgresRepository(d.DB)
	} else {
		processingRepo = processing.NewMemoryRepository()
	}
	processingSvc := processing.NewService(processingRepo, engine, quoteSvc, aggregator,
		processing.StaticFunder{}, processing.NewCongestionTracker(), notifier, d.Logger)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterRateRoutes(api, rates.NewHandler(aggregator))
	RegisterQuoteRoutes(api, quote.NewHandler(quoteSvc))
	RegisterCardRoutes(api, card.NewHandler(cardSvc))
	RegisterRiskRoutes(api, fraud.NewHandler(engine))

	// Deposit submissions and confirmation callbacks retry from upstream
	// monitors, so they sit behind the idempotency store when Redis is up.
	deposits := api.Group("")
	if d.Cache != nil {
		deposits = api.Group("", middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterDepositRoutes(deposits, processing.NewHandler(processingSvc))

	return aggregator, nil
}

func buildSources(cfg config.Config) []rates.Source {
	sources := []rates.Source{rates.NewStablecoinSource(0, "USDC", "USDT")}
	for i, src := range cfg.RateSources {
		sources = append(sources, rates.NewHTTPSource(src.Name, i+1, src.URL, cfg.SourceTimeout))
	}
	return sources
}
