package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"snapbot/internal/api"
	"snapbot/internal/config"
	"snapbot/internal/exchange"
	"snapbot/internal/export"
	"snapbot/internal/repository"
	"snapbot/internal/scheduler"
	"snapbot/internal/service"
	"snapbot/internal/telegram"
	"snapbot/internal/websocket"
	"snapbot/pkg/crypto"
	"snapbot/pkg/ratelimit"
	"snapbot/pkg/utils"
)

func main() {
	startedAt := time.Now()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		// логгер еще не настроен
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		Development: cfg.Logging.Development,
	})
	defer logger.Sync()
	log := logger.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Хранилище документов
	storage, closeStorage, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open storage", zap.Error(err))
	}
	defer closeStorage()

	var sealer repository.CredentialSealer
	if cfg.Security.EncryptionKey != "" {
		s, err := crypto.NewSealerFromPassphrase(cfg.Security.EncryptionKey)
		if err != nil {
			log.Fatal("invalid ENCRYPTION_KEY", zap.Error(err))
		}
		sealer = s
	} else {
		log.Warn("ENCRYPTION_KEY is not set, credentials are stored in plain text")
	}

	// Репозитории; поврежденный документ останавливает запуск
	accountRepo := repository.NewAccountRepository(storage, sealer)
	scheduleRepo := repository.NewScheduleRepository(storage)
	if err := accountRepo.Load(ctx); err != nil {
		log.Fatal("failed to load accounts", zap.Error(err))
	}
	if err := scheduleRepo.Load(ctx); err != nil {
		log.Fatal("failed to load schedules", zap.Error(err))
	}
	log.Info("storage loaded",
		zap.String("driver", cfg.Storage.Driver),
		zap.Int("accounts", accountRepo.Count()),
		zap.Int("schedules", len(scheduleRepo.All())),
	)

	// Клиент биржи
	httpCfg := exchange.DefaultHTTPClientConfig()
	httpCfg.TotalTimeout = cfg.Exchange.Timeout
	httpClient := exchange.NewHTTPClient(httpCfg)
	defer exchange.CloseIdle(httpClient)

	client := exchange.NewDydx(cfg.Exchange.Host,
		exchange.WithHTTPClient(httpClient),
		exchange.WithRateLimiter(ratelimit.NewRateLimiter(cfg.Exchange.RateLimit, cfg.Exchange.RateBurst)),
		exchange.WithLogger(log.Named("exchange")),
	)

	// Telegram
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		log.Fatal("failed to connect to telegram", zap.Error(err))
	}
	bot.Debug = cfg.Telegram.Debug
	log.Info("authorized on telegram", zap.String("bot", bot.Self.UserName))

	messenger := telegram.NewMessenger(bot, cfg.Telegram.SendRetries, log.Named("telegram"))

	// Хаб событий
	hub := websocket.NewHub(log.Named("events"))
	go hub.Run()

	// Сервисы
	sched := scheduler.New(log.Named("scheduler"))
	writer := export.NewWriter(cfg.Storage.ExportDir)

	accountService := service.NewAccountService(accountRepo, client, log.Named("accounts"))
	queryService := service.NewQueryService(client, writer, messenger, log.Named("queries"))
	scheduleService := service.NewScheduleService(scheduleRepo, accountRepo, queryService, sched, messenger, log.Named("schedules"))
	accountService.SetEventPublisher(hub)
	queryService.SetEventPublisher(hub)
	scheduleService.SetEventPublisher(hub)

	scheduleService.Rehydrate(ctx)
	sched.Start()

	router := telegram.NewRouter(messenger, accountService, queryService, scheduleService, log.Named("router"))

	// Служебный HTTP сервер
	server := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: api.SetupRoutes(&api.Dependencies{
			Status:         &runtimeStatus{schedules: scheduleService, accounts: accountRepo, hub: hub},
			Hub:            hub,
			AdminToken:     cfg.Security.AdminToken,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			StartedAt:      startedAt,
			Logger:         log.Named("http"),
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting http server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	// Блокируется до сигнала; начатые ответы дописываются
	router.Run(ctx, bot, cfg.Telegram.PollTimeout)

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		log.Warn("scheduler stop", zap.Error(err))
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server forced to shutdown", zap.Error(err))
	}
	hub.Stop()

	log.Info("bot exited")
}

// openStorage выбирает хранилище документов по STORAGE_DRIVER
func openStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Storage, func(), error) {
	if cfg.Storage.Driver != config.StoragePostgres {
		log.Info("using file storage", zap.String("dir", cfg.Storage.DataDir))
		return repository.NewFileStorage(cfg.Storage.DataDir), func() {}, nil
	}

	db, err := repository.OpenPostgres(ctx, cfg.Storage.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	storage := repository.NewPostgresStorage(db, repository.DefaultDocumentsTable)
	if err := storage.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info("using postgres storage", zap.String("dsn", cfg.Storage.DSNWithoutPassword()))
	return storage, func() { db.Close() }, nil
}

// runtimeStatus собирает счетчики для /api/v1/status
type runtimeStatus struct {
	schedules *service.ScheduleService
	accounts  *repository.AccountRepository
	hub       *websocket.Hub
}

func (s *runtimeStatus) ArmedJobs() int    { return s.schedules.Armed() }
func (s *runtimeStatus) Accounts() int     { return s.accounts.Count() }
func (s *runtimeStatus) EventClients() int { return s.hub.ClientCount() }
