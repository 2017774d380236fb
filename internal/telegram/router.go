package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"snapbot/internal/flow"
	"snapbot/internal/metrics"
	"snapbot/internal/models"
	"snapbot/internal/service"
	"snapbot/pkg/utils"
)

// Данные inline кнопок
const (
	cbSelectAccountPrefix    = "getaccount_"
	cbAddNewAccount          = "addnewaccount"
	cbGetPosition            = "getposition"
	cbGetTransfer            = "gettransfer"
	cbGetOrders              = "getorders"
	cbGetFundingPayment      = "getfundingpayment"
	cbGetAccounts            = "getaccounts"
	cbGetHistoricalFunding   = "gethistoricalfunding"
	cbGetMarkets             = "getmarkets"
	cbSchedulePosition       = "setScheduleGetPosition"
	cbScheduleTransfer       = "setScheduleGetTransfer"
	cbScheduleOrders         = "setScheduleGetOrders"
	cbScheduleFundingPayment = "setScheduleGetFundingPayment"
	cbScheduleAccounts       = "setScheduleGetAccounts"
	cbGetSchedules           = "getSchedules"
	cbRemoveSchedule         = "removeSchedule"
)

// privateCallbacks: кнопка -> запрос, требующий выбранного аккаунта
var privateCallbacks = map[string]models.QueryType{
	cbGetPosition:       models.QueryPosition,
	cbGetTransfer:       models.QueryTransfer,
	cbGetOrders:         models.QueryOrder,
	cbGetFundingPayment: models.QueryFundingPayment,
	cbGetAccounts:       models.QueryAccountSnapshot,
}

var scheduleCallbacks = map[string]models.QueryType{
	cbSchedulePosition:       models.QueryPosition,
	cbScheduleTransfer:       models.QueryTransfer,
	cbScheduleOrders:         models.QueryOrder,
	cbScheduleFundingPayment: models.QueryFundingPayment,
	cbScheduleAccounts:       models.QueryAccountSnapshot,
}

// Router разбирает обновления Telegram: команды, нажатия кнопок и ответы в диалогах.
// Обновления одного пользователя обрабатываются строго по очереди.
type Router struct {
	sender    Sender
	accounts  *service.AccountService
	queries   *service.QueryService
	schedules *service.ScheduleService
	engine    *flow.Engine
	locks     *userLocks
	logger    *zap.Logger

	startedAt time.Time
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewRouter создает роутер и регистрирует диалоги
func NewRouter(
	sender Sender,
	accounts *service.AccountService,
	queries *service.QueryService,
	schedules *service.ScheduleService,
	logger *zap.Logger,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		sender:    sender,
		accounts:  accounts,
		queries:   queries,
		schedules: schedules,
		locks:     newUserLocks(),
		logger:    logger,
		startedAt: time.Now(),
		now:       time.Now,
	}

	registry := flow.NewRegistry()
	r.registerFlows(registry)
	r.engine = flow.NewEngine(registry, nil, logger.Named("flow"))
	return r
}

// Engine возвращает движок диалогов
func (r *Router) Engine() *flow.Engine {
	return r.engine
}

// Run читает обновления до отмены ctx и ждет завершения начатых обработчиков
func (r *Router) Run(ctx context.Context, source UpdateSource, pollTimeout time.Duration) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(pollTimeout.Seconds())
	updates := source.GetUpdatesChan(u)

	// начатые ответы дописываются и после сигнала остановки
	handlerCtx := context.WithoutCancel(ctx)

	r.logger.Info("telegram polling started", zap.Duration("poll_timeout", pollTimeout))
	defer func() {
		source.StopReceivingUpdates()
		r.wg.Wait()
		r.logger.Info("telegram polling stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				r.HandleUpdate(handlerCtx, update)
			}()
		}
	}
}

// Wait ждет завершения обработчиков, запущенных Run
func (r *Router) Wait() {
	r.wg.Wait()
}

// HandleUpdate обрабатывает одно обновление
func (r *Router) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	userID, chatID, ok := participants(update)
	if !ok {
		return
	}

	unlock := r.locks.Lock(userID)
	defer unlock()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic in update handler",
				utils.UserID(userID),
				zap.Int("update_id", update.UpdateID),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		metrics.RecordUpdate("callback")
		r.handleCallback(ctx, userID, chatID, update.CallbackQuery)
	case update.Message != nil:
		metrics.RecordUpdate("message")
		r.handleMessage(ctx, userID, chatID, update.Message)
	}
}

func participants(update tgbotapi.Update) (userID, chatID int64, ok bool) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
			return 0, 0, false
		}
		return cb.From.ID, cb.Message.Chat.ID, true
	case update.Message != nil:
		msg := update.Message
		if msg.Chat == nil {
			return 0, 0, false
		}
		userID = msg.Chat.ID
		if msg.From != nil {
			userID = msg.From.ID
		}
		return userID, msg.Chat.ID, true
	}
	return 0, 0, false
}

// ============ Сообщения ============

func (r *Router) handleMessage(ctx context.Context, userID, chatID int64, msg *tgbotapi.Message) {
	if msg.Text == "" {
		return
	}

	if msg.IsCommand() && r.handleCommand(ctx, userID, chatID, msg.Command()) {
		return
	}

	res, active := r.engine.Handle(ctx, userID, msg.Text)
	if !active {
		if msg.IsCommand() {
			r.reply(ctx, chatID, textUnknownCommand)
		}
		return
	}
	r.handleFlowResult(ctx, chatID, res)
}

// handleCommand возвращает false для неизвестной команды (включая /skip),
// такой текст уходит в активный диалог
func (r *Router) handleCommand(ctx context.Context, userID, chatID int64, command string) bool {
	log := r.logger.With(utils.UserID(userID), zap.String("command", command))

	switch command {
	case "ping":
		r.replyHTML(ctx, chatID, pingText(r.startedAt, r.now()), nil)
	case "start":
		r.replyHTML(ctx, chatID, startText(), nil)
	case "help":
		r.replyHTML(ctx, chatID, helpText(), nil)
	case "setaccount":
		r.startFlow(ctx, userID, chatID, flowSetAccount, nil)
	case "accounts":
		r.showAccounts(ctx, userID, chatID)
	case "dydxprivatemenus":
		markup := privateMenuKeyboard()
		r.replyHTML(ctx, chatID, textPrivateMenus, &markup)
	case "dydxpublicmenus":
		markup := publicMenuKeyboard()
		r.replyHTML(ctx, chatID, textPublicMenus, &markup)
	case "schedule":
		account, ok := r.requireSelected(ctx, userID, chatID)
		if !ok {
			return true
		}
		markup := scheduleMenuKeyboard()
		r.replyHTML(ctx, chatID, scheduleMenuText(account.Name), &markup)
	case "schedules":
		r.showSchedules(ctx, userID, chatID)
	case "cancel":
		if kind, ok := r.engine.Cancel(userID); ok {
			log.Debug("flow cancelled", utils.Flow(string(kind)))
			r.reply(ctx, chatID, textCancelled)
		} else {
			r.reply(ctx, chatID, textNothingToCancel)
		}
	default:
		return false
	}
	return true
}

func (r *Router) handleFlowResult(ctx context.Context, chatID int64, res flow.Result) {
	switch res.Outcome {
	case flow.OutcomePrompt:
		r.replyHTML(ctx, chatID, res.Prompt, nil)
	case flow.OutcomeRetry:
		if res.Kind == flowRemoveSchedule {
			r.reply(ctx, chatID, textInvalidSchedule)
			return
		}
		r.replyHTML(ctx, chatID, "Error: "+html.EscapeString(res.Err.Error())+"\n\n"+res.Prompt, nil)
	case flow.OutcomeAborted:
		r.reply(ctx, chatID, "Error: "+res.Err.Error())
	case flow.OutcomeCompleted:
		if res.Err == nil {
			return
		}
		var reported reportedError
		if errors.As(res.Err, &reported) {
			return
		}
		r.reply(ctx, chatID, userErrorText(res.Err))
	}
}

// userErrorText - текст ошибки действия для пользователя
func userErrorText(err error) string {
	switch {
	case errors.Is(err, service.ErrNoAccounts):
		return textNoAccounts
	case errors.Is(err, service.ErrNoSelectedAccount):
		return textNoSelected
	case errors.Is(err, service.ErrAccountNotFound):
		return textAccountNotFound
	case errors.Is(err, service.ErrScheduleIndexOutOfRange):
		return textInvalidSchedule
	default:
		return "Error: " + err.Error()
	}
}

// ============ Кнопки ============

func (r *Router) handleCallback(ctx context.Context, userID, chatID int64, cb *tgbotapi.CallbackQuery) {
	if err := r.sender.AnswerCallback(ctx, cb.ID); err != nil {
		r.logger.Debug("failed to answer callback", utils.UserID(userID), zap.String("error", describe(err)))
	}

	if err := r.dispatchCallback(ctx, userID, chatID, cb); err != nil {
		r.logger.Warn("callback failed",
			utils.UserID(userID),
			zap.String("data", cb.Data),
			zap.Error(err),
		)
		r.reply(ctx, chatID, fmt.Sprintf(textCallbackErrorFmt, err.Error()))
	}
}

func (r *Router) dispatchCallback(ctx context.Context, userID, chatID int64, cb *tgbotapi.CallbackQuery) error {
	data := cb.Data

	if key, ok := strings.CutPrefix(data, cbSelectAccountPrefix); ok {
		return r.selectAccount(ctx, userID, chatID, cb.Message.MessageID, key)
	}

	if q, ok := privateCallbacks[data]; ok {
		account, ok := r.requireSelected(ctx, userID, chatID)
		if !ok {
			return nil
		}
		if q == models.QueryAccountSnapshot {
			r.deliverNow(ctx, userID, chatID, account, q)
			return nil
		}
		return r.startFlow(ctx, userID, chatID, queryFlow(q), map[string]string{metaAccountKey: account.Key})
	}

	if q, ok := scheduleCallbacks[data]; ok {
		account, ok := r.requireSelected(ctx, userID, chatID)
		if !ok {
			return nil
		}
		return r.startFlow(ctx, userID, chatID, scheduleFlow(q), map[string]string{metaAccountKey: account.Key})
	}

	switch data {
	case cbAddNewAccount:
		return r.startFlow(ctx, userID, chatID, flowSetAccount, nil)
	case cbGetHistoricalFunding:
		return r.startFlow(ctx, userID, chatID, flowHistoricalFunding, nil)
	case cbGetMarkets:
		r.deliverNow(ctx, userID, chatID, nil, models.QueryMarkets)
		return nil
	case cbGetSchedules:
		r.showSchedules(ctx, userID, chatID)
		return nil
	case cbRemoveSchedule:
		return r.startRemoveSchedule(ctx, userID, chatID)
	}
	return fmt.Errorf("unknown action %q", data)
}

// selectAccount выбирает аккаунт и перерисовывает список в том же сообщении
func (r *Router) selectAccount(ctx context.Context, userID, chatID int64, messageID int, key string) error {
	_, changed, err := r.accounts.Select(ctx, userID, key)
	if errors.Is(err, service.ErrAccountNotFound) {
		r.reply(ctx, chatID, textAccountNotFound)
		return nil
	}
	if err != nil {
		return err
	}
	if !changed {
		r.reply(ctx, chatID, textSameAccount)
		return nil
	}

	list := r.accounts.List(userID)
	markup := accountsKeyboard(list)
	err = r.sender.EditHTML(ctx, chatID, messageID, accountsText(list), &markup)
	if isNotModified(err) {
		r.reply(ctx, chatID, textSameAccount)
		return nil
	}
	return err
}

// ============ Общие шаги ============

func (r *Router) startFlow(ctx context.Context, userID, chatID int64, kind flow.Kind, meta map[string]string) error {
	if meta == nil {
		meta = make(map[string]string, 1)
	}
	meta[metaChatID] = strconv.FormatInt(chatID, 10)

	prompt, err := r.engine.Start(userID, kind, meta)
	if err != nil {
		return err
	}
	r.logger.Debug("flow started", utils.UserID(userID), utils.Flow(string(kind)))
	r.replyHTML(ctx, chatID, prompt, nil)
	return nil
}

// requireSelected возвращает выбранный аккаунт или сообщает пользователю, что его нет
func (r *Router) requireSelected(ctx context.Context, userID, chatID int64) (*models.Account, bool) {
	account, err := r.accounts.Selected(userID)
	if err != nil {
		r.reply(ctx, chatID, userErrorText(err))
		return nil, false
	}
	return account, true
}

func (r *Router) deliverNow(ctx context.Context, userID, chatID int64, account *models.Account, q models.QueryType) {
	err := r.queries.Deliver(ctx, chatID, service.QueryRequest{
		UserID:  userID,
		Account: account,
		Type:    q,
		Params:  models.Params{},
		Mode:    metrics.ModeInteractive,
	})
	if err != nil {
		r.logger.Debug("query not delivered", utils.UserID(userID), utils.Query(string(q)), zap.Error(err))
	}
}

func (r *Router) showAccounts(ctx context.Context, userID, chatID int64) {
	list := r.accounts.List(userID)
	if len(list) == 0 {
		r.reply(ctx, chatID, textNoAccounts)
		return
	}
	markup := accountsKeyboard(list)
	r.replyHTML(ctx, chatID, accountsText(list), &markup)
}

func (r *Router) showSchedules(ctx context.Context, userID, chatID int64) {
	account, ok := r.requireSelected(ctx, userID, chatID)
	if !ok {
		return
	}
	jobs := r.schedules.List(userID, account.Key)
	if len(jobs) == 0 {
		r.reply(ctx, chatID, textNoSchedules)
		return
	}
	markup := scheduleListKeyboard()
	r.replyHTML(ctx, chatID, scheduleListText(account.Name, jobs), &markup)
}

func (r *Router) startRemoveSchedule(ctx context.Context, userID, chatID int64) error {
	account, ok := r.requireSelected(ctx, userID, chatID)
	if !ok {
		return nil
	}
	jobs := r.schedules.List(userID, account.Key)
	if len(jobs) == 0 {
		r.reply(ctx, chatID, textNoSchedules)
		return nil
	}

	meta := map[string]string{
		metaChatID:     strconv.FormatInt(chatID, 10),
		metaAccountKey: account.Key,
	}
	prompt, err := r.engine.Start(userID, flowRemoveSchedule, meta)
	if err != nil {
		return err
	}
	r.replyHTML(ctx, chatID, scheduleListText(account.Name, jobs)+"\n"+prompt, nil)
	return nil
}

func (r *Router) reply(ctx context.Context, chatID int64, text string) {
	if err := r.sender.SendText(ctx, chatID, text); err != nil {
		r.logger.Warn("failed to send message", zap.Int64("chat_id", chatID), zap.String("error", describe(err)))
	}
}

func (r *Router) replyHTML(ctx context.Context, chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	if err := r.sender.SendHTML(ctx, chatID, text, markup); err != nil {
		r.logger.Warn("failed to send message", zap.Int64("chat_id", chatID), zap.String("error", describe(err)))
	}
}
