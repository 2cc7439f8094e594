package tools

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Argument records, one per operation. Arriving arguments are decoded into
// these before the handler body runs, so handlers never probe raw maps.
type (
	// QuoteArgs drives get_quote.
	QuoteArgs struct {
		Symbols string `json:"symbols" validate:"required"`
	}

	// ProfileArgs drives get_company_profile.
	ProfileArgs struct {
		Symbols string `json:"symbols" validate:"required"`
	}

	// HistoryArgs drives get_price_history and export_price_history.
	HistoryArgs struct {
		Symbol   string `json:"symbol" validate:"required"`
		Range    string `json:"range" validate:"omitempty,oneof=1d 5d 1mo 3mo 6mo 1y 2y 5y max"`
		Interval string `json:"interval" validate:"omitempty,oneof=1m 5m 15m 1h 1d 1wk 1mo"`
	}

	// MoversArgs drives get_market_movers.
	MoversArgs struct {
		Direction string `json:"direction" validate:"omitempty,oneof=gainers losers"`
		Count     int    `json:"count" validate:"omitempty,min=1,max=50"`
	}

	// NewsArgs drives get_stock_news.
	NewsArgs struct {
		Symbol         string `json:"symbol" validate:"required"`
		Limit          int    `json:"limit" validate:"omitempty,min=1,max=25"`
		ExtractContent bool   `json:"extract_content"`
	}
)

func (a *HistoryArgs) applyDefaults() {
	if a.Range == "" {
		a.Range = "1mo"
	}
	if a.Interval == "" {
		a.Interval = "1d"
	}
}

func (a *MoversArgs) applyDefaults() {
	if a.Direction == "" {
		a.Direction = "gainers"
	}
	if a.Count == 0 {
		a.Count = 10
	}
}

func (a *NewsArgs) applyDefaults() {
	if a.Limit == 0 {
		a.Limit = 5
	}
}

// decodeArgs maps loosely typed arguments onto a typed record and validates
// it. The JSON round trip applies the same coercion rules the wire does, so
// a handler sees exactly what a typed client would have sent.
func decodeArgs[T any](args map[string]any, validate *validator.Validate) (T, error) {
	var out T

	raw, err := json.Marshal(args)
	if err != nil {
		return out, fmt.Errorf("invalid arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("invalid arguments: %w", err)
	}

	if err := validate.Struct(out); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			e := errs[0]
			return out, fmt.Errorf("invalid argument %q: failed %q constraint", e.Field(), e.Tag())
		}
		return out, fmt.Errorf("invalid arguments: %w", err)
	}
	return out, nil
}
