package provider

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// Quote is a near-real-time price snapshot for one symbol.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Currency      string  `json:"currency"`
	MarketState   string  `json:"market_state"`
	AsOf          string  `json:"as_of"`
}

// Profile describes a listed company.
type Profile struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Exchange  string `json:"exchange"`
	Sector    string `json:"sector"`
	Industry  string `json:"industry"`
	Website   string `json:"website"`
	Summary   string `json:"summary"`
	Employees int    `json:"employees"`
}

// Bar is one OHLCV sample of a price history.
type Bar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// History is a symbol's sampled price series.
type History struct {
	Symbol   string `json:"symbol"`
	Range    string `json:"range"`
	Interval string `json:"interval"`
	Bars     []Bar  `json:"bars"`
}

// Mover is one entry of a gainers/losers board.
type Mover struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"change_percent"`
}

// Movers is a gainers/losers board snapshot.
type Movers struct {
	Direction string  `json:"direction"`
	AsOf      string  `json:"as_of"`
	Entries   []Mover `json:"entries"`
}

// NewsItem is one article reference returned by the news listing.
type NewsItem struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
}

// Quote fetches the current quote for one symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*Quote, error) {
	var out Quote
	query := url.Values{"symbol": {symbol}}
	if err := c.getJSON(ctx, "/v1/quote", query, &out); err != nil {
		return nil, err
	}
	if out.AsOf == "" {
		out.AsOf = time.Now().UTC().Format(time.RFC3339)
	}
	return &out, nil
}

// Profile fetches the company profile for one symbol.
func (c *Client) Profile(ctx context.Context, symbol string) (*Profile, error) {
	var out Profile
	query := url.Values{"symbol": {symbol}}
	if err := c.getJSON(ctx, "/v1/profile", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History fetches a sampled price series for one symbol.
func (c *Client) History(ctx context.Context, symbol, rng, interval string) (*History, error) {
	var out History
	query := url.Values{
		"symbol":   {symbol},
		"range":    {rng},
		"interval": {interval},
	}
	if err := c.getJSON(ctx, "/v1/history", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Movers fetches the current gainers or losers board.
func (c *Client) Movers(ctx context.Context, direction string, count int) (*Movers, error) {
	var out Movers
	query := url.Values{
		"direction": {direction},
		"count":     {strconv.Itoa(count)},
	}
	if err := c.getJSON(ctx, "/v1/movers", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// News fetches recent article references for one symbol.
func (c *Client) News(ctx context.Context, symbol string, limit int) ([]NewsItem, error) {
	var out []NewsItem
	query := url.Values{
		"symbol": {symbol},
		"limit":  {strconv.Itoa(limit)},
	}
	if err := c.getJSON(ctx, "/v1/news", query, &out); err != nil {
		return nil, err
	}
	return out, nil
}
