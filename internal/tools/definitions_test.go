package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintools/internal/batch"
	"fintools/internal/cache"
	"fintools/internal/config"
	"fintools/internal/exporter"
	"fintools/internal/provider"
)

// stubFetcher serves canned article pages.
type stubFetcher struct {
	pages map[string]string
}

func (f *stubFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	return f.pages[pageURL], nil
}

// upstream is a fake market-data service counting requests per path.
func upstream(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var calls atomic.Int64
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/quote", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		symbol := r.URL.Query().Get("symbol")
		if symbol == "INVALID" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "symbol not found: INVALID"})
			return
		}
		json.NewEncoder(w).Encode(provider.Quote{Symbol: symbol, Price: 187.5, Currency: "USD"})
	})
	mux.HandleFunc("/v1/history", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(provider.History{
			Symbol:   r.URL.Query().Get("symbol"),
			Range:    r.URL.Query().Get("range"),
			Interval: r.URL.Query().Get("interval"),
			Bars:     []provider.Bar{{Date: "2025-06-02", Open: 187, High: 190, Low: 186, Close: 189.1, Volume: 48_500_000}},
		})
	})
	mux.HandleFunc("/v1/movers", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(provider.Movers{
			Direction: r.URL.Query().Get("direction"),
			Entries:   []provider.Mover{{Symbol: "NVDA", ChangePercent: 4.2}},
		})
	})
	mux.HandleFunc("/v1/news", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode([]provider.NewsItem{
			{Title: "Apple rises", URL: "https://news.example.com/apple", Source: "Example Wire"},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &calls
}

func newTestCatalog(t *testing.T, baseURL string, fetcher *stubFetcher) *Registry {
	t.Helper()

	cfg := config.Default()
	cfg.Provider.BaseURL = baseURL

	if fetcher == nil {
		fetcher = &stubFetcher{}
	}

	mem := cache.NewMemory(time.Minute, 0)
	t.Cleanup(func() { mem.Close() })

	registry, err := NewCatalog(CatalogDeps{
		Config:   cfg,
		Provider: provider.NewClient(cfg.Provider, testLogger()),
		Cache:    mem,
		Exporter: exporter.NewXLSX(t.TempDir()),
		Fetcher:  fetcher,
		Logger:   testLogger(),
	})
	require.NoError(t, err)
	return registry
}

func invoke(t *testing.T, r *Registry, name string, args map[string]any) (any, error) {
	t.Helper()
	op, ok := r.Lookup(name)
	require.True(t, ok, "operation %s not registered", name)
	return op.Handler(context.Background(), args)
}

func TestNewCatalogRegistersAllOperations(t *testing.T) {
	r := newTestCatalog(t, "http://unused.invalid", nil)

	names := make([]string, 0, r.Count())
	for _, d := range r.List() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{
		"get_quote",
		"get_company_profile",
		"get_price_history",
		"get_market_movers",
		"get_stock_news",
		"export_price_history",
	}, names)
}

func TestGetQuoteBatchIsolatesFailures(t *testing.T) {
	server, _ := upstream(t)
	r := newTestCatalog(t, server.URL, nil)

	payload, err := invoke(t, r, "get_quote", map[string]any{"symbols": "AAPL,INVALID"})
	require.NoError(t, err, "one bad symbol must not fail the invocation")

	outcome, ok := payload.(*batch.Outcome)
	require.True(t, ok)
	assert.Equal(t, 2, outcome.Len())
	assert.Equal(t, 1, outcome.Failed())

	raw, err := json.Marshal(outcome)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"symbol not found: INVALID"`)
}

func TestGetQuoteServedFromCacheOnRepeat(t *testing.T) {
	server, calls := upstream(t)
	r := newTestCatalog(t, server.URL, nil)

	_, err := invoke(t, r, "get_quote", map[string]any{"symbols": "AAPL"})
	require.NoError(t, err)
	_, err = invoke(t, r, "get_quote", map[string]any{"symbols": "AAPL"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), calls.Load())
}

func TestGetQuoteRejectsEmptySymbols(t *testing.T) {
	server, calls := upstream(t)
	r := newTestCatalog(t, server.URL, nil)

	_, err := invoke(t, r, "get_quote", map[string]any{"symbols": " , "})
	require.Error(t, err)
	assert.Equal(t, int64(0), calls.Load(), "validation failures must not reach the provider")

	_, err = invoke(t, r, "get_quote", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Symbols")
}

func TestGetPriceHistoryAppliesDefaults(t *testing.T) {
	server, _ := upstream(t)
	r := newTestCatalog(t, server.URL, nil)

	payload, err := invoke(t, r, "get_price_history", map[string]any{"symbol": "AAPL"})
	require.NoError(t, err)

	history, ok := payload.(*provider.History)
	require.True(t, ok)
	assert.Equal(t, "1mo", history.Range)
	assert.Equal(t, "1d", history.Interval)
}

func TestGetPriceHistoryServedFromCacheOnRepeat(t *testing.T) {
	server, calls := upstream(t)
	r := newTestCatalog(t, server.URL, nil)

	_, err := invoke(t, r, "get_price_history", map[string]any{"symbol": "AAPL"})
	require.NoError(t, err)
	_, err = invoke(t, r, "get_price_history", map[string]any{"symbol": "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())

	// A different sampling window is a different cache key.
	_, err = invoke(t, r, "get_price_history", map[string]any{"symbol": "AAPL", "range": "1y"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestGetPriceHistoryRejectsBadRange(t *testing.T) {
	r := newTestCatalog(t, "http://unused.invalid", nil)

	_, err := invoke(t, r, "get_price_history", map[string]any{"symbol": "AAPL", "range": "7y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oneof")
}

func TestGetMarketMoversCachesBoard(t *testing.T) {
	server, calls := upstream(t)
	r := newTestCatalog(t, server.URL, nil)

	payload, err := invoke(t, r, "get_market_movers", map[string]any{})
	require.NoError(t, err)
	movers := payload.(*provider.Movers)
	assert.Equal(t, "gainers", movers.Direction)

	_, err = invoke(t, r, "get_market_movers", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())

	// A different board is a different cache key.
	_, err = invoke(t, r, "get_market_movers", map[string]any{"direction": "losers"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestGetStockNewsExtractsContent(t *testing.T) {
	server, _ := upstream(t)
	fetcher := &stubFetcher{pages: map[string]string{
		"https://news.example.com/apple": `<html><head><title>Wire</title></head><body>
			<h1>Apple rises</h1>
			<p>Shares of Apple rose in early trading after the company reported stronger than expected results.</p>
		</body></html>`,
	}}
	r := newTestCatalog(t, server.URL, fetcher)

	payload, err := invoke(t, r, "get_stock_news", map[string]any{
		"symbol": "AAPL", "extract_content": true,
	})
	require.NoError(t, err)

	articles, ok := payload.([]NewsArticle)
	require.True(t, ok)
	require.Len(t, articles, 1)
	assert.Equal(t, "Apple rises", articles[0].Title)
	assert.Contains(t, articles[0].Content, "stronger than expected results")
}

func TestGetStockNewsWithoutExtraction(t *testing.T) {
	server, _ := upstream(t)
	r := newTestCatalog(t, server.URL, nil)

	payload, err := invoke(t, r, "get_stock_news", map[string]any{"symbol": "AAPL"})
	require.NoError(t, err)

	articles := payload.([]NewsArticle)
	require.Len(t, articles, 1)
	assert.Empty(t, articles[0].Content)
}

func TestExportPriceHistoryWritesWorkbook(t *testing.T) {
	server, _ := upstream(t)
	r := newTestCatalog(t, server.URL, nil)

	payload, err := invoke(t, r, "export_price_history", map[string]any{"symbol": "AAPL"})
	require.NoError(t, err)

	result, ok := payload.(*ExportResult)
	require.True(t, ok)
	assert.Equal(t, 1, result.Rows)
	assert.Equal(t, "AAPL", result.Symbol)
	assert.FileExists(t, result.File)
}
