package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"snapbot/internal/metrics"
	"snapbot/internal/models"
	"snapbot/pkg/ratelimit"
)

// DefaultHost - публичный REST API dYdX v3
const DefaultHost = "https://api.dydx.exchange"

// Заголовки подписи приватных запросов
const (
	headerSignature  = "DYDX-SIGNATURE"
	headerAPIKey     = "DYDX-API-KEY"
	headerTimestamp  = "DYDX-TIMESTAMP"
	headerPassphrase = "DYDX-PASSPHRASE"
)

// maxErrorBody - сколько байт тела ответа попадает в текст ошибки
const maxErrorBody = 256

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// queryNames - параметры диалогов, которые понимает биржа, и их имена в query string
var queryNames = map[string]string{
	models.ParamMarket:              "market",
	models.ParamStatus:              "status",
	models.ParamLimit:               "limit",
	models.ParamCreatedBeforeOrAt:   "createdBeforeOrAt",
	models.ParamEffectiveBeforeOrAt: "effectiveBeforeOrAt",
	models.ParamTransferType:        "type",
	models.ParamSide:                "side",
	models.ParamType:                "type",
}

// Dydx реализует Client поверх REST API dYdX v3
type Dydx struct {
	host       string
	httpClient *http.Client
	limiter    *ratelimit.RateLimiter
	logger     *zap.Logger
	now        func() time.Time
}

var _ Client = (*Dydx)(nil)

// Option настраивает клиент
type Option func(*Dydx)

// WithHTTPClient подменяет HTTP клиент
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dydx) { d.httpClient = c }
}

// WithRateLimiter ограничивает частоту запросов
func WithRateLimiter(l *ratelimit.RateLimiter) Option {
	return func(d *Dydx) { d.limiter = l }
}

// WithLogger задает логгер
func WithLogger(l *zap.Logger) Option {
	return func(d *Dydx) { d.logger = l }
}

// NewDydx создает клиент для host (без завершающего "/")
func NewDydx(host string, opts ...Option) *Dydx {
	if host == "" {
		host = DefaultHost
	}
	d := &Dydx{
		host:   strings.TrimRight(host, "/"),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.httpClient == nil {
		d.httpClient = NewHTTPClient(DefaultHTTPClientConfig())
	}
	return d
}

// HTTPClient возвращает используемый HTTP клиент
func (d *Dydx) HTTPClient() *http.Client {
	return d.httpClient
}

// ============ Приватные запросы ============

// GetPositions - GET /v3/positions
func (d *Dydx) GetPositions(ctx context.Context, creds *models.APIKeyPair, params models.Params) ([]Position, error) {
	var resp struct {
		Positions []Position `json:"positions"`
	}
	if err := d.doRequest(ctx, "/v3/positions", params, creds, &resp); err != nil {
		return nil, err
	}
	return resp.Positions, nil
}

// GetTransfers - GET /v3/transfers
func (d *Dydx) GetTransfers(ctx context.Context, creds *models.APIKeyPair, params models.Params) ([]Transfer, error) {
	var resp struct {
		Transfers []Transfer `json:"transfers"`
	}
	if err := d.doRequest(ctx, "/v3/transfers", params, creds, &resp); err != nil {
		return nil, err
	}
	return resp.Transfers, nil
}

// GetOrders - GET /v3/orders
func (d *Dydx) GetOrders(ctx context.Context, creds *models.APIKeyPair, params models.Params) ([]Order, error) {
	var resp struct {
		Orders []Order `json:"orders"`
	}
	if err := d.doRequest(ctx, "/v3/orders", params, creds, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

// GetFundingPayments - GET /v3/funding
func (d *Dydx) GetFundingPayments(ctx context.Context, creds *models.APIKeyPair, params models.Params) ([]FundingPayment, error) {
	var resp struct {
		FundingPayments []FundingPayment `json:"fundingPayments"`
	}
	if err := d.doRequest(ctx, "/v3/funding", params, creds, &resp); err != nil {
		return nil, err
	}
	return resp.FundingPayments, nil
}

// GetAccounts - GET /v3/accounts
func (d *Dydx) GetAccounts(ctx context.Context, creds *models.APIKeyPair) ([]Account, error) {
	var resp struct {
		Accounts []Account `json:"accounts"`
	}
	if err := d.doRequest(ctx, "/v3/accounts", nil, creds, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

// GetUser - GET /v3/users
func (d *Dydx) GetUser(ctx context.Context, creds *models.APIKeyPair) (*User, error) {
	var resp struct {
		User *User `json:"user"`
	}
	if err := d.doRequest(ctx, "/v3/users", nil, creds, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, &APIError{Endpoint: "/v3/users", Status: http.StatusOK, Message: "empty user response"}
	}
	return resp.User, nil
}

// ============ Публичные запросы ============

// GetMarkets - GET /v3/markets, рынки отсортированы по имени
func (d *Dydx) GetMarkets(ctx context.Context) ([]Market, error) {
	var resp struct {
		Markets map[string]Market `json:"markets"`
	}
	if err := d.doRequest(ctx, "/v3/markets", nil, nil, &resp); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(resp.Markets))
	for name := range resp.Markets {
		names = append(names, name)
	}
	sort.Strings(names)

	markets := make([]Market, 0, len(names))
	for _, name := range names {
		m := resp.Markets[name]
		if m.Market == "" {
			m.Market = Text(name)
		}
		markets = append(markets, m)
	}
	return markets, nil
}

// GetHistoricalFunding - GET /v3/historical-funding/{market}
func (d *Dydx) GetHistoricalFunding(ctx context.Context, market string, params models.Params) ([]HistoricalFunding, error) {
	market = strings.TrimSpace(market)
	if market == "" {
		return nil, &APIError{Endpoint: "/v3/historical-funding", Status: http.StatusBadRequest, Message: "market is required"}
	}

	rest := params.Clone()
	delete(rest, models.ParamMarket)

	var resp struct {
		HistoricalFunding []HistoricalFunding `json:"historicalFunding"`
	}
	endpoint := "/v3/historical-funding/" + url.PathEscape(market)
	if err := d.doRequest(ctx, endpoint, rest, nil, &resp); err != nil {
		return nil, err
	}
	return resp.HistoricalFunding, nil
}

// ============ Транспорт ============

// encodeQuery переводит параметры диалога в query string.
// Пустые значения пропускаются, порядок ключей стабильный: он входит в подпись.
func encodeQuery(params models.Params) string {
	if len(params) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(params))
	for name, value := range params {
		queryName, ok := queryNames[name]
		if !ok || value == "" {
			continue
		}
		pairs = append(pairs, queryName+"="+escapeQueryValue(value))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "&")
}

// escapeQueryValue экранирует значение, оставляя ':' как есть (даты ISO-8601)
func escapeQueryValue(value string) string {
	return strings.ReplaceAll(url.QueryEscape(strings.TrimSpace(value)), "%3A", ":")
}

// sign вычисляет подпись запроса: base64url(HMAC-SHA256(secret, timestamp+method+path+body))
func sign(secret, timestamp, method, requestPath, body string) (string, error) {
	key, err := base64.URLEncoding.DecodeString(secret)
	if err != nil {
		key, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(secret, "="))
		if err != nil {
			return "", fmt.Errorf("decode api secret: %w", err)
		}
	}
	h := hmac.New(sha256.New, key)
	h.Write([]byte(timestamp + method + requestPath + body))
	return base64.URLEncoding.EncodeToString(h.Sum(nil)), nil
}

// doRequest выполняет GET к endpoint; при creds != nil запрос подписывается
func (d *Dydx) doRequest(ctx context.Context, endpoint string, params models.Params, creds *models.APIKeyPair, out interface{}) error {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	requestPath := endpoint
	if query := encodeQuery(params); query != "" {
		requestPath += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.host+requestPath, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	if creds != nil {
		if creds.Key == "" || creds.Secret == "" {
			return ErrNoAPICredentials
		}
		timestamp := d.now().UTC().Format("2006-01-02T15:04:05.000Z")
		signature, err := sign(creds.Secret, timestamp, http.MethodGet, requestPath, "")
		if err != nil {
			return err
		}
		req.Header.Set(headerSignature, signature)
		req.Header.Set(headerAPIKey, creds.Key)
		req.Header.Set(headerTimestamp, timestamp)
		req.Header.Set(headerPassphrase, creds.Passphrase)
	}

	label := endpointLabel(endpoint)
	start := time.Now()
	resp, err := d.httpClient.Do(req)
	if err != nil {
		metrics.RecordExchangeRequest(label, "transport_error")
		return fmt.Errorf("dydx %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordExchangeRequest(label, "read_error")
		return fmt.Errorf("dydx %s: read body: %w", endpoint, err)
	}
	metrics.RecordExchangeRequest(label, strconv.Itoa(resp.StatusCode))

	d.logger.Debug("dydx request",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Endpoint: endpoint, Status: resp.StatusCode, Message: errorMessage(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("dydx %s: decode response: %w", endpoint, err)
	}
	return nil
}

// errorMessage достает текст ошибки из ответа {"errors":[{"msg":"..."}]}
func errorMessage(body []byte) string {
	var payload struct {
		Errors []struct {
			Msg string `json:"msg"`
		} `json:"errors"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		msgs := make([]string, 0, len(payload.Errors))
		for _, e := range payload.Errors {
			if e.Msg != "" {
				msgs = append(msgs, e.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
		if payload.Message != "" {
			return payload.Message
		}
	}

	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	return text
}

// endpointLabel убирает из пути переменную часть, чтобы метка метрики была конечной
func endpointLabel(endpoint string) string {
	if strings.HasPrefix(endpoint, "/v3/historical-funding/") {
		return "/v3/historical-funding"
	}
	return endpoint
}
