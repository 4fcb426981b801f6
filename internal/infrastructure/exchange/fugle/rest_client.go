package fugle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"quotewatch/internal/application/port"
	"quotewatch/internal/domain/model"
	"quotewatch/internal/infrastructure/exchange"
)

const (
	DefaultRestURL     = "https://api.fugle.tw/marketdata/v1.0/stock/"
	DefaultTradesLimit = 100
)

type RestConfig struct {
	BaseURL        string
	APIKey         string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// RestClient Fugle 行情 REST 客户端
type RestClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRestClient 创建 REST 客户端，超时：连线 / 读 / 写
func NewRestClient(cfg RestConfig) *RestClient {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultRestURL
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		IdleConnTimeout:       90 * time.Second,
	}
	return &RestClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.ConnectTimeout + cfg.ReadTimeout + cfg.WriteTimeout,
		},
	}
}

// GetQuote GET intraday/quote/{symbol}
func (c *RestClient) GetQuote(ctx context.Context, symbol string) port.Result[model.QuoteResponse] {
	return getJSON[model.QuoteResponse](ctx, c, "intraday/quote/"+url.PathEscape(symbol), nil)
}

// GetTrades GET intraday/trades/{symbol}?date=&limit=
func (c *RestClient) GetTrades(ctx context.Context, symbol, date string, limit int) port.Result[model.TradesResponse] {
	if limit <= 0 {
		limit = DefaultTradesLimit
	}
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	q.Set("limit", strconv.Itoa(limit))
	return getJSON[model.TradesResponse](ctx, c, "intraday/trades/"+url.PathEscape(symbol), q)
}

func getJSON[T any](ctx context.Context, c *RestClient, path string, query url.Values) port.Result[T] {
	endpoint, err := exchange.JoinURL(c.baseURL, path, query)
	if err != nil {
		return port.Exception[T](fmt.Errorf("%w: %v", port.ErrUpstreamQuote, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return port.Exception[T](fmt.Errorf("%w: %v", port.ErrUpstreamQuote, err))
	}
	reqID := uuid.NewString()
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		log.Warn().Str("request_id", reqID).Str("path", path).Err(err).Msg("rest request failed")
		return port.Exception[T](fmt.Errorf("%w: %v", port.ErrUpstreamQuote, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return port.Exception[T](fmt.Errorf("%w: read body: %v", port.ErrUpstreamQuote, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		log.Warn().Str("request_id", reqID).Str("path", path).Int("status", resp.StatusCode).Msg("rest non-2xx")
		return port.Failure[T](resp.StatusCode, msg)
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return port.Empty[T]()
	}

	var out T
	if err := exchange.ParseJSON(body, &out); err != nil {
		return port.Exception[T](fmt.Errorf("%w: %v", port.ErrUpstreamQuote, err))
	}
	return port.Success(out)
}

var _ port.QuoteClient = (*RestClient)(nil)
