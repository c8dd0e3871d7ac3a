// Package productcatalog implements the REST product-catalog fetch the
// trade adapter needs before it can validate orders: Binance's
// /api/v3/exchangeInfo, reduced to the price/lot/notional rules order
// placement actually needs.
package productcatalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/venue-gateway/internal/apperror"
	"github.com/fd1az/venue-gateway/internal/httpclient"
	"github.com/fd1az/venue-gateway/internal/logger"
)

const (
	tracerName = "github.com/fd1az/venue-gateway/internal/productcatalog"

	defaultBaseURL       = "https://api.binance.com"
	exchangeInfoEndpoint = "/api/v3/exchangeInfo"
	defaultTimeout       = 10 * time.Second
)

// ProductMetadata is the trading-precision subset of Binance's symbol
// descriptor a trade adapter needs to validate an order before sending it:
// tick/step sizes and the min-notional floor.
type ProductMetadata struct {
	Symbol      string
	Status      string
	BaseAsset   string
	QuoteAsset  string
	OrderTypes  []string
	TickSize    string
	MinPrice    string
	MaxPrice    string
	StepSize    string
	MinQty      string
	MaxQty      string
	MinNotional string
}

// Config configures the catalog client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{BaseURL: defaultBaseURL, Timeout: defaultTimeout}
}

// Client fetches the product catalog. It keeps no cache; every Fetch is a
// fresh REST call.
type Client struct {
	client httpclient.Client
	log    logger.LoggerInterface
	tracer trace.Tracer
}

func NewClient(cfg Config, log logger.LoggerInterface) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	tracer := otel.Tracer(tracerName)
	httpClient, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("binance-exchangeinfo"),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest, httpclient.TraceResponse),
		httpclient.WithHeaders(map[string]string{"Accept": "application/json"}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create product catalog client: %w", err)
	}

	return &Client{client: httpClient, log: log, tracer: tracer}, nil
}

// exchangeInfoResponse mirrors only the fields Fetch needs out of Binance's
// exchangeInfo payload.
type exchangeInfoResponse struct {
	Symbols []rawSymbol `json:"symbols"`
}

type rawSymbol struct {
	Symbol     string          `json:"symbol"`
	Status     string          `json:"status"`
	BaseAsset  string          `json:"baseAsset"`
	QuoteAsset string          `json:"quoteAsset"`
	OrderTypes []string        `json:"orderTypes"`
	Filters    []rawFilterField `json:"filters"`
}

type rawFilterField struct {
	FilterType  string `json:"filterType"`
	TickSize    string `json:"tickSize"`
	MinPrice    string `json:"minPrice"`
	MaxPrice    string `json:"maxPrice"`
	StepSize    string `json:"stepSize"`
	MinQty      string `json:"minQty"`
	MaxQty      string `json:"maxQty"`
	MinNotional string `json:"minNotional"`
}

// Fetch retrieves the full product catalog, keyed by lowercased symbol
// (matching the venue's own stream-name casing).
func (c *Client) Fetch(ctx context.Context) (map[string]ProductMetadata, error) {
	ctx, span := c.tracer.Start(ctx, "productcatalog.fetch")
	defer span.End()

	var result exchangeInfoResponse
	resp, err := c.client.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "exchangeInfo")),
		httpclient.WithResponseErrorHandler(errorHandler),
	).
		SetResult(&result).
		Get(ctx, exchangeInfoEndpoint)

	if err != nil {
		span.RecordError(err)
		return nil, apperror.New(apperror.CodeExternalServiceError,
			apperror.WithCause(err),
			apperror.WithContext("failed to fetch exchangeInfo"))
	}
	if resp.IsError() {
		return nil, apperror.New(apperror.CodeExternalServiceError,
			apperror.WithContext(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.String())))
	}

	products := make(map[string]ProductMetadata, len(result.Symbols))
	for _, s := range result.Symbols {
		products[strings.ToLower(s.Symbol)] = toProductMetadata(s)
	}

	span.SetAttributes(attribute.Int("products", len(products)))
	if c.log != nil {
		c.log.Info(ctx, "fetched product catalog", "products", len(products))
	}
	return products, nil
}

func toProductMetadata(s rawSymbol) ProductMetadata {
	p := ProductMetadata{
		Symbol:     strings.ToLower(s.Symbol),
		Status:     s.Status,
		BaseAsset:  s.BaseAsset,
		QuoteAsset: s.QuoteAsset,
		OrderTypes: s.OrderTypes,
	}
	for _, f := range s.Filters {
		switch f.FilterType {
		case "PRICE_FILTER":
			p.TickSize, p.MinPrice, p.MaxPrice = f.TickSize, f.MinPrice, f.MaxPrice
		case "LOT_SIZE":
			p.StepSize, p.MinQty, p.MaxQty = f.StepSize, f.MinQty, f.MaxQty
		case "MIN_NOTIONAL", "NOTIONAL":
			p.MinNotional = f.MinNotional
		}
	}
	return p
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("binance API error %d: %s", e.Code, e.Message)
}

func errorHandler(statusCode int, body []byte) error {
	if statusCode < 400 {
		return nil
	}
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
		return &apiErr
	}
	return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
}
