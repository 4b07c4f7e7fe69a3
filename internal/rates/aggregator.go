package rates

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cardfund/cardfund/internal/notification"
)

// Options tune aggregator behavior; zero values fall back to defaults.
type Options struct {
	CacheTTL         time.Duration
	RefreshEvery     time.Duration
	SourceTimeout    time.Duration
	HistoryRetention time.Duration
	Symbols          []string
}

// Aggregator serves spot USD rates from ranked sources with failover,
// short-TTL caching and durable price history. Lookups never fail outright:
// when every source is down the caller gets the last cached value, or a zero
// placeholder marked stale.
type Aggregator struct {
	sources  []Source
	cache    Cache
	history  HistoryStore
	notifier notification.Notifier
	logger   *slog.Logger
	opts     Options

	mu       sync.RWMutex
	status   map[string]*SourceStatus
	lastGood map[string]Rate

	stopCh  chan struct{}
	stopped sync.Once
	running bool
}

// NewAggregator wires sources (sorted by ascending priority), cache and
// history into a ready aggregator. Call Start to enable background refresh.
func NewAggregator(sources []Source, cache Cache, history HistoryStore, notifier notification.Notifier, logger *slog.Logger, opts Options) *Aggregator {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}
	if opts.RefreshEvery <= 0 {
		opts.RefreshEvery = 30 * time.Second
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = 5 * time.Second
	}
	if opts.HistoryRetention <= 0 {
		opts.HistoryRetention = 7 * 24 * time.Hour
	}

	ordered := make([]Source, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})

	status := make(map[string]*SourceStatus, len(ordered))
	for _, src := range ordered {
		status[src.Name()] = &SourceStatus{Name: src.Name(), Priority: src.Priority()}
	}

	return &Aggregator{
		sources:  ordered,
		cache:    cache,
		history:  history,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
		status:   status,
		lastGood: make(map[string]Rate),
		stopCh:   make(chan struct{}),
	}
}

// GetRates resolves current USD rates for the requested symbols. With
// forceRefresh the cache is bypassed. Missing prices come back as stale
// cached values or zero placeholders; the method never errors on feed
// failure.
func (a *Aggregator) GetRates(ctx context.Context, symbols []string, forceRefresh bool) map[string]Rate {
	out := make(map[string]Rate, len(symbols))
	remaining := make([]string, 0, len(symbols))

	for _, raw := range symbols {
		symbol := strings.ToUpper(strings.TrimSpace(raw))
		if symbol == "" {
			continue
		}
		if !forceRefresh {
			if rate, ok, err := a.cache.GetRate(ctx, symbol); err == nil && ok {
				out[symbol] = rate
				continue
			} else if err != nil {
				a.logger.Warn("rate cache read failed", slog.String("symbol", symbol), slog.Any("error", err))
			}
		}
		remaining = append(remaining, symbol)
	}

	if len(remaining) > 0 {
		fetched := a.fetchWithFailover(ctx, remaining)
		for symbol, rate := range fetched {
			out[symbol] = rate
		}
		for _, symbol := range remaining {
			if _, ok := out[symbol]; !ok {
				out[symbol] = a.fallbackRate(ctx, symbol)
			}
		}
	}

	return out
}

// fetchWithFailover walks sources in priority order until every symbol is
// priced or sources are exhausted. A failing or partial source never aborts
// the batch.
func (a *Aggregator) fetchWithFailover(ctx context.Context, symbols []string) map[string]Rate {
	pending := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		pending[s] = struct{}{}
	}
	resolved := make(map[string]Rate)

	for _, src := range a.sources {
		if len(pending) == 0 {
			break
		}

		batch := make([]string, 0, len(pending))
		for s := range pending {
			batch = append(batch, s)
		}
		sort.Strings(batch)

		fetchCtx, cancel := context.WithTimeout(ctx, a.opts.SourceTimeout)
		prices, err := src.Fetch(fetchCtx, batch)
		cancel()

		now := time.Now().UTC()
		if err != nil {
			a.recordFailure(src.Name(), now, err)
			a.logger.Warn("price source failed",
				slog.String("source", src.Name()), slog.Any("error", err))
			continue
		}
		a.recordSuccess(src.Name(), now)

		for symbol, price := range prices {
			if _, wanted := pending[symbol]; !wanted {
				continue
			}
			rate := Rate{USD: price, LastUpdated: now}
			resolved[symbol] = rate
			delete(pending, symbol)
			a.store(ctx, symbol, rate, src.Name())
		}
	}

	return resolved
}

// store writes a fresh rate to cache, process-local fallback, and history.
func (a *Aggregator) store(ctx context.Context, symbol string, rate Rate, source string) {
	a.mu.Lock()
	a.lastGood[symbol] = rate
	a.mu.Unlock()

	if err := a.cache.SetRate(ctx, symbol, rate, a.opts.CacheTTL); err != nil {
		a.logger.Warn("rate cache write failed", slog.String("symbol", symbol), slog.Any("error", err))
	}
	if err := a.history.Record(ctx, PriceQuote{
		Symbol:     symbol,
		USDPrice:   rate.USD,
		RecordedAt: rate.LastUpdated,
		Source:     source,
	}); err != nil {
		a.logger.Warn("price history write failed", slog.String("symbol", symbol), slog.Any("error", err))
	}
}

// fallbackRate serves the degraded path: expired cache entry, durable
// history, then a zero placeholder.
func (a *Aggregator) fallbackRate(ctx context.Context, symbol string) Rate {
	a.mu.RLock()
	last, ok := a.lastGood[symbol]
	a.mu.RUnlock()
	if ok {
		last.Stale = true
		return last
	}

	if quote, err := a.history.Latest(ctx, symbol); err == nil {
		return Rate{USD: quote.USDPrice, LastUpdated: quote.RecordedAt, Stale: true}
	}

	return Rate{USD: decimal.Zero, LastUpdated: time.Now().UTC(), Stale: true}
}

// SourceStatuses returns a snapshot of per-source bookkeeping ordered by
// priority.
func (a *Aggregator) SourceStatuses() []SourceStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]SourceStatus, 0, len(a.sources))
	for _, src := range a.sources {
		out = append(out, *a.status[src.Name()])
	}
	return out
}

// Degraded reports whether the most recent attempt failed for every source.
func (a *Aggregator) Degraded() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, st := range a.status {
		if !st.Degraded() {
			return false
		}
	}
	return len(a.status) > 0
}

func (a *Aggregator) recordSuccess(name string, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if st, ok := a.status[name]; ok {
		st.LastSuccess = at
	}
}

func (a *Aggregator) recordFailure(name string, at time.Time, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if st, ok := a.status[name]; ok {
		st.LastError = at
		st.LastErrMsg = err.Error()
	}
}

// Start launches the background refresh loop for the configured symbols.
func (a *Aggregator) Start() error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("rate aggregator already running")
	}
	a.running = true
	a.mu.Unlock()

	go a.refreshLoop()
	a.logger.Info("rate aggregator started",
		slog.Duration("interval", a.opts.RefreshEvery),
		slog.Int("sources", len(a.sources)))
	return nil
}

// Stop terminates the refresh loop. Safe to call more than once.
func (a *Aggregator) Stop() {
	a.stopped.Do(func() { close(a.stopCh) })
}

func (a *Aggregator) refreshLoop() {
	ticker := time.NewTicker(a.opts.RefreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.refreshAll()
		}
	}
}

// refreshAll reprices every supported symbol, prunes expired history and
// pushes the refreshed view to live subscribers. It runs off the request
// path; source timeouts bound each iteration.
func (a *Aggregator) refreshAll() {
	if len(a.opts.Symbols) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.opts.SourceTimeout*time.Duration(len(a.sources)+1))
	defer cancel()

	refreshed := a.GetRates(ctx, a.opts.Symbols, true)

	if pruned, err := a.history.Prune(ctx, time.Now().UTC().Add(-a.opts.HistoryRetention)); err != nil {
		a.logger.Warn("price history prune failed", slog.Any("error", err))
	} else if pruned > 0 {
		a.logger.Debug("price history pruned", slog.Int64("rows", pruned))
	}

	if a.notifier == nil {
		return
	}
	parts := make([]string, 0, len(refreshed))
	for _, symbol := range a.opts.Symbols {
		if rate, ok := refreshed[symbol]; ok && !rate.Stale {
			parts = append(parts, fmt.Sprintf("%s=%s", symbol, rate.USD.String()))
		}
	}
	if len(parts) == 0 {
		return
	}
	_ = a.notifier.Send(ctx, notification.Message{
		Kind: notification.KindRateUpdate,
		Body: strings.Join(parts, " "),
	})
}
