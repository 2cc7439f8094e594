package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"fintools/internal/batch"
	"fintools/internal/cache"
	"fintools/internal/config"
	"fintools/internal/exporter"
	"fintools/internal/infrastructure"
	"fintools/internal/provider"
	"fintools/internal/scrape"
)

// CatalogDeps carries everything the operation handlers need. All fields are
// injected; the catalog holds no globals.
type CatalogDeps struct {
	Config   *config.Config
	Provider *provider.Client
	Cache    cache.Cache
	Exporter *exporter.XLSX
	Fetcher  scrape.Fetcher
	Logger   *slog.Logger
	Metrics  *infrastructure.Metrics
}

// catalog binds the dependencies to handler closures.
type catalog struct {
	deps     CatalogDeps
	validate *validator.Validate
}

// NewsArticle is one news listing entry, optionally enriched with the
// article's extracted text.
type NewsArticle struct {
	provider.NewsItem
	Content string `json:"content,omitempty"`
}

// ExportResult reports a written workbook.
type ExportResult struct {
	File   string `json:"file"`
	Rows   int    `json:"rows"`
	Symbol string `json:"symbol"`
}

// NewCatalog builds the operation registry. Registration order is the order
// listings are served in.
func NewCatalog(deps CatalogDeps) (*Registry, error) {
	c := &catalog{
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	registry := NewRegistry()
	for _, op := range []Operation{
		c.quoteOperation(),
		c.profileOperation(),
		c.historyOperation(),
		c.moversOperation(),
		c.newsOperation(),
		c.exportOperation(),
	} {
		if err := registry.Register(op); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (c *catalog) quoteOperation() Operation {
	return Operation{
		Name:        "get_quote",
		Description: "Get near-real-time price quotes for one or more stock symbols.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"symbols": {Type: "string", Description: "Comma-separated ticker symbols, e.g. 'AAPL,MSFT'"},
			},
			Required: []string{"symbols"},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			a, err := decodeArgs[QuoteArgs](args, c.validate)
			if err != nil {
				return nil, err
			}
			return c.batchFetch(ctx, "get_quote", a.Symbols, c.deps.Config.Cache.VolatileTTL,
				func(key string) string { return "quote:" + key },
				func(ctx context.Context, symbol string) (any, error) {
					return c.deps.Provider.Quote(ctx, symbol)
				})
		},
	}
}

func (c *catalog) profileOperation() Operation {
	return Operation{
		Name:        "get_company_profile",
		Description: "Get company profiles (name, exchange, sector, summary) for one or more stock symbols.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"symbols": {Type: "string", Description: "Comma-separated ticker symbols, e.g. 'AAPL,MSFT'"},
			},
			Required: []string{"symbols"},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			a, err := decodeArgs[ProfileArgs](args, c.validate)
			if err != nil {
				return nil, err
			}
			return c.batchFetch(ctx, "get_company_profile", a.Symbols, c.deps.Config.Cache.DefaultTTL,
				func(key string) string { return "profile:" + key },
				func(ctx context.Context, symbol string) (any, error) {
					return c.deps.Provider.Profile(ctx, symbol)
				})
		},
	}
}

func (c *catalog) historyOperation() Operation {
	return Operation{
		Name:        "get_price_history",
		Description: "Get sampled OHLCV price history for a stock symbol over a range.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"symbol":   {Type: "string", Description: "Ticker symbol, e.g. 'AAPL'"},
				"range":    {Type: "string", Description: "Sampling window", Enum: []string{"1d", "5d", "1mo", "3mo", "6mo", "1y", "2y", "5y", "max"}, Default: "1mo"},
				"interval": {Type: "string", Description: "Bar width", Enum: []string{"1m", "5m", "15m", "1h", "1d", "1wk", "1mo"}, Default: "1d"},
			},
			Required: []string{"symbol"},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			a, err := decodeArgs[HistoryArgs](args, c.validate)
			if err != nil {
				return nil, err
			}
			a.applyDefaults()
			return c.fetchHistory(ctx, "get_price_history", a)
		},
	}
}

func (c *catalog) moversOperation() Operation {
	return Operation{
		Name:        "get_market_movers",
		Description: "Get the current top gainers or losers board.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"direction": {Type: "string", Description: "Which board to return", Enum: []string{"gainers", "losers"}, Default: "gainers"},
				"count":     {Type: "number", Description: "Number of entries, 1 to 50", Default: 10},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			a, err := decodeArgs[MoversArgs](args, c.validate)
			if err != nil {
				return nil, err
			}
			a.applyDefaults()
			key := fmt.Sprintf("movers:%s:%d", a.Direction, a.Count)
			return c.cachedFetch(ctx, "get_market_movers", key, c.deps.Config.Cache.VolatileTTL,
				func(ctx context.Context) (any, error) {
					return c.deps.Provider.Movers(ctx, a.Direction, a.Count)
				})
		},
	}
}

func (c *catalog) newsOperation() Operation {
	return Operation{
		Name:        "get_stock_news",
		Description: "Get recent news articles for a stock symbol, optionally with extracted article text.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"symbol":          {Type: "string", Description: "Ticker symbol, e.g. 'AAPL'"},
				"limit":           {Type: "number", Description: "Number of articles, 1 to 25", Default: 5},
				"extract_content": {Type: "boolean", Description: "Fetch each article page and extract its readable text", Default: false},
			},
			Required: []string{"symbol"},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			a, err := decodeArgs[NewsArgs](args, c.validate)
			if err != nil {
				return nil, err
			}
			a.applyDefaults()
			key := fmt.Sprintf("news:%s:%d:%t", a.Symbol, a.Limit, a.ExtractContent)
			return c.cachedFetch(ctx, "get_stock_news", key, c.deps.Config.Cache.DefaultTTL,
				func(ctx context.Context) (any, error) {
					return c.fetchNews(ctx, a)
				})
		},
	}
}

func (c *catalog) exportOperation() Operation {
	return Operation{
		Name:        "export_price_history",
		Description: "Fetch price history for a stock symbol and write it to an .xlsx workbook on the server.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"symbol":   {Type: "string", Description: "Ticker symbol, e.g. 'AAPL'"},
				"range":    {Type: "string", Description: "Sampling window", Enum: []string{"1d", "5d", "1mo", "3mo", "6mo", "1y", "2y", "5y", "max"}, Default: "1mo"},
				"interval": {Type: "string", Description: "Bar width", Enum: []string{"1m", "5m", "15m", "1h", "1d", "1wk", "1mo"}, Default: "1d"},
			},
			Required: []string{"symbol"},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			a, err := decodeArgs[HistoryArgs](args, c.validate)
			if err != nil {
				return nil, err
			}
			a.applyDefaults()

			history, err := c.deps.Provider.History(ctx, a.Symbol, a.Range, a.Interval)
			if err != nil {
				return nil, err
			}
			path, rows, err := c.deps.Exporter.WriteHistory(history)
			if err != nil {
				return nil, err
			}
			return &ExportResult{File: path, Rows: rows, Symbol: history.Symbol}, nil
		},
	}
}

// fetchHistory is the read-through path for price histories, keyed by
// symbol, range and interval.
func (c *catalog) fetchHistory(ctx context.Context, operation string, a HistoryArgs) (any, error) {
	key := fmt.Sprintf("history:%s:%s:%s", a.Symbol, a.Range, a.Interval)
	return c.cachedFetch(ctx, operation, key, c.deps.Config.Cache.DefaultTTL,
		func(ctx context.Context) (any, error) {
			return c.deps.Provider.History(ctx, a.Symbol, a.Range, a.Interval)
		})
}

// batchFetch runs the cache-first fan-out over a comma-separated symbol
// list.
func (c *catalog) batchFetch(ctx context.Context, operation, symbols string, ttl time.Duration, cacheKey func(string) string, fetch batch.FetchFunc) (any, error) {
	keys := batch.SplitKeys(symbols)
	if len(keys) == 0 {
		return nil, fmt.Errorf("symbols must name at least one symbol")
	}
	return batch.Fetch(ctx, keys, batch.Options{
		Operation:   operation,
		Cache:       c.deps.Cache,
		CacheKey:    cacheKey,
		TTL:         ttl,
		Fetch:       fetch,
		Concurrency: c.deps.Config.Provider.BatchConcurrency,
		Logger:      c.deps.Logger,
		Metrics:     c.deps.Metrics,
	})
}

// cachedFetch is the single-key read-through path. A cache backend failure
// on lookup fails the invocation; a stale or absent entry falls through to
// the provider and the fresh value is written back under the caller's TTL
// tier. A write-back failure is subordinate, the fetched value still wins.
func (c *catalog) cachedFetch(ctx context.Context, operation, key string, ttl time.Duration, fetch func(context.Context) (any, error)) (any, error) {
	if value, ok, err := c.deps.Cache.Get(ctx, key); err != nil {
		return nil, fmt.Errorf("cache lookup for %q: %w", key, err)
	} else if ok {
		c.deps.Metrics.RecordCacheHit(ctx, operation)
		return value, nil
	}
	c.deps.Metrics.RecordCacheMiss(ctx, operation)

	value, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.deps.Cache.Set(ctx, key, value, ttl); err != nil {
		c.deps.Logger.WarnContext(ctx, "cache write-back failed",
			slog.String("operation", operation),
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
	return value, nil
}

// fetchNews lists recent articles and, when asked, pulls each page and
// extracts its readable text. Extraction trouble degrades that article to
// its listing entry instead of failing the call.
func (c *catalog) fetchNews(ctx context.Context, a NewsArgs) (any, error) {
	items, err := c.deps.Provider.News(ctx, a.Symbol, a.Limit)
	if err != nil {
		return nil, err
	}

	articles := make([]NewsArticle, len(items))
	for i, item := range items {
		articles[i] = NewsArticle{NewsItem: item}
		if !a.ExtractContent || item.URL == "" {
			continue
		}

		page, err := c.deps.Fetcher.Fetch(ctx, item.URL)
		if err != nil {
			c.deps.Logger.WarnContext(ctx, "article fetch failed",
				slog.String("url", item.URL),
				slog.String("error", err.Error()))
			continue
		}
		if extracted := scrape.Extract(page); !extracted.Empty() {
			articles[i].Content = extracted.Text()
		}
	}
	return articles, nil
}
