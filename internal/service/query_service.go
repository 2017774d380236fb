package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"snapbot/internal/exchange"
	"snapbot/internal/export"
	"snapbot/internal/metrics"
	"snapbot/internal/models"
	"snapbot/pkg/utils"
)

var (
	// ErrNoData - запрос вернул пустой результат, файл не создается
	ErrNoData           = errors.New("no data")
	ErrUnsupportedQuery = errors.New("unsupported query")
	ErrAccountRequired  = errors.New("query requires an account")
	ErrMarketRequired   = errors.New("market is required")
)

// QueryRequest - запрос на выгрузку
type QueryRequest struct {
	UserID  int64
	Account *models.Account // nil для публичных запросов
	Type    models.QueryType
	Params  models.Params
	Mode    string // metrics.ModeInteractive или metrics.ModePush
}

// QueryExecutedEvent - событие выполненного запроса
type QueryExecutedEvent struct {
	UserID     int64   `json:"userId"`
	AccountKey string  `json:"accountKey,omitempty"`
	Query      string  `json:"query"`
	Mode       string  `json:"mode"`
	Result     string  `json:"result"`
	Rows       int     `json:"rows"`
	Seconds    float64 `json:"seconds"`
}

// QueryService выполняет запросы к бирже и выгружает результат в xlsx
type QueryService struct {
	client   exchange.Client
	writer   SheetWriter
	notifier Notifier
	events   EventPublisher
	logger   *zap.Logger
}

// NewQueryService создает сервис запросов
func NewQueryService(client exchange.Client, writer SheetWriter, notifier Notifier, logger *zap.Logger) *QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{
		client:   client,
		writer:   writer,
		notifier: notifier,
		events:   nopPublisher{},
		logger:   logger,
	}
}

// SetEventPublisher подключает публикацию событий
func (s *QueryService) SetEventPublisher(p EventPublisher) {
	if p != nil {
		s.events = p
	}
}

// Execute выполняет запрос и пишет файл. Пустой результат дает ErrNoData.
func (s *QueryService) Execute(ctx context.Context, req QueryRequest) (*export.Artifact, error) {
	start := time.Now()
	artifact, err := s.execute(ctx, req)
	elapsed := time.Since(start)

	result := metrics.ResultSuccess
	switch {
	case errors.Is(err, ErrNoData):
		result = metrics.ResultNoData
	case err != nil:
		result = metrics.ResultError
	}
	metrics.RecordQuery(string(req.Type), req.Mode, result, elapsed)

	event := QueryExecutedEvent{
		UserID:  req.UserID,
		Query:   string(req.Type),
		Mode:    req.Mode,
		Result:  result,
		Seconds: elapsed.Seconds(),
	}
	if req.Account != nil {
		event.AccountKey = req.Account.Key
	}
	if artifact != nil {
		event.Rows = artifact.Rows
	}
	s.events.Publish(EventQueryExecuted, event)

	log := s.logger.With(utils.UserID(req.UserID), utils.Query(string(req.Type)), zap.String("mode", req.Mode))
	if err != nil && result == metrics.ResultError {
		log.Warn("query failed", zap.Error(err))
	} else {
		log.Info("query executed", zap.String("result", result), zap.Duration("elapsed", elapsed))
	}
	return artifact, err
}

func (s *QueryService) execute(ctx context.Context, req QueryRequest) (*export.Artifact, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedQuery, req.Type)
	}

	var creds *models.APIKeyPair
	if req.Type.Private() {
		if req.Account == nil {
			return nil, ErrAccountRequired
		}
		if !req.Account.Credentials.HasAPIKey() {
			return nil, exchange.ErrNoAPICredentials
		}
		creds = req.Account.Credentials.APIKey
	}

	sheets, err := s.fetch(ctx, req, creds)
	if err != nil {
		return nil, err
	}
	if len(sheets) == 0 || len(sheets[0].Rows) == 0 {
		return nil, ErrNoData
	}
	return s.writer.Write(req.UserID, req.Type.FilePrefix(), sheets)
}

// fetch вызывает нужный метод биржи и строит листы выгрузки
func (s *QueryService) fetch(ctx context.Context, req QueryRequest, creds *models.APIKeyPair) ([]export.Sheet, error) {
	params := req.Params

	switch req.Type {
	case models.QueryPosition:
		rows, err := s.client.GetPositions(ctx, creds, params)
		if err != nil {
			return nil, err
		}
		return singleSheet(rows)

	case models.QueryTransfer:
		rows, err := s.client.GetTransfers(ctx, creds, params)
		if err != nil {
			return nil, err
		}
		return singleSheet(rows)

	case models.QueryOrder:
		rows, err := s.client.GetOrders(ctx, creds, params)
		if err != nil {
			return nil, err
		}
		return singleSheet(rows)

	case models.QueryFundingPayment:
		rows, err := s.client.GetFundingPayments(ctx, creds, params)
		if err != nil {
			return nil, err
		}
		return singleSheet(rows)

	case models.QueryAccountSnapshot:
		accounts, err := s.client.GetAccounts(ctx, creds)
		if err != nil {
			return nil, err
		}
		return accountSheets(accounts)

	case models.QueryHistoricalFunding:
		market := strings.TrimSpace(params[models.ParamMarket])
		if market == "" {
			return nil, ErrMarketRequired
		}
		rows, err := s.client.GetHistoricalFunding(ctx, market, params)
		if err != nil {
			return nil, err
		}
		return singleSheet(rows)

	case models.QueryMarkets:
		rows, err := s.client.GetMarkets(ctx)
		if err != nil {
			return nil, err
		}
		return singleSheet(rows)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedQuery, req.Type)
}

func singleSheet(records interface{}) ([]export.Sheet, error) {
	sheet, err := export.SheetOf(export.DefaultSheetName, records)
	if err != nil {
		return nil, err
	}
	return []export.Sheet{sheet}, nil
}

// accountSheets: лист Accounts и по листу "Open Positions - <market>" на каждую открытую позицию
func accountSheets(accounts []exchange.Account) ([]export.Sheet, error) {
	summary, err := export.SheetOf("Accounts", accounts)
	if err != nil {
		return nil, err
	}
	summary.Columns = append(summary.Columns, "openPositions")

	var positions []export.Sheet
	for i, account := range accounts {
		markets := make([]string, 0, len(account.OpenPositions))
		for market := range account.OpenPositions {
			markets = append(markets, market)
		}
		sort.Strings(markets)
		summary.Rows[i] = append(summary.Rows[i], strings.Join(markets, ", "))

		for _, market := range markets {
			position := account.OpenPositions[market]
			if position.Market == "" {
				position.Market = exchange.Text(market)
			}
			sheet, err := export.SheetOf("Open Positions - "+market, []exchange.Position{position})
			if err != nil {
				return nil, err
			}
			positions = append(positions, sheet)
		}
	}
	return append([]export.Sheet{summary}, positions...), nil
}

// Deliver выполняет запрос и отправляет файл в чат; при ошибке отправляет текст ошибки.
// Возвращает ошибку запроса для логирования вызывающей стороной.
func (s *QueryService) Deliver(ctx context.Context, chatID int64, req QueryRequest) error {
	artifact, err := s.Execute(ctx, req)
	if err != nil {
		if sendErr := s.notifier.SendText(ctx, chatID, ErrorText(req, err)); sendErr != nil {
			s.logger.Warn("failed to send error message", utils.UserID(req.UserID), zap.Error(sendErr))
		}
		return err
	}

	if err := s.notifier.SendDocument(ctx, chatID, artifact.Path, Caption(req, artifact)); err != nil {
		s.logger.Warn("failed to send document",
			utils.UserID(req.UserID),
			zap.String("path", artifact.Path),
			zap.Error(err),
		)
		return fmt.Errorf("send document: %w", err)
	}
	return nil
}

// Caption - подпись к файлу: "<Заголовок> <аккаунт> - <время>" или "<Заголовок> - <время>"
func Caption(req QueryRequest, artifact *export.Artifact) string {
	if req.Type.Private() && req.Account != nil {
		return fmt.Sprintf("%s %s - %s", req.Type.Caption(), req.Account.Name, artifact.Timestamp)
	}
	return fmt.Sprintf("%s - %s", req.Type.Caption(), artifact.Timestamp)
}

// ErrorText - текст ошибки запроса для пользователя
func ErrorText(req QueryRequest, err error) string {
	name := ""
	if req.Account != nil {
		name = req.Account.Name
	}

	switch {
	case errors.Is(err, ErrNoData):
		if req.Type.Private() {
			return fmt.Sprintf("%s %s.", req.Type.NoDataMessage(), name)
		}
		return req.Type.NoDataMessage()
	case errors.Is(err, exchange.ErrNoAPICredentials):
		return fmt.Sprintf("Account %s was linked with a private key only. Link an API key with /setaccount to use %s.", name, req.Type.Label())
	case req.Type.Private() && req.Account != nil:
		return fmt.Sprintf("%s %s.", err.Error(), name)
	default:
		return "Error: " + err.Error()
	}
}
