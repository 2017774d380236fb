package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"snapbot/internal/flow"
	"snapbot/internal/metrics"
	"snapbot/internal/models"
	"snapbot/internal/service"
	"snapbot/pkg/utils"
)

// Типы диалогов
const (
	flowSetAccount        flow.Kind = "setAccount"
	flowRemoveSchedule    flow.Kind = "removeSchedule"
	flowHistoricalFunding flow.Kind = "getHistoricalFunding"
)

// Ключи Meta сессии
const (
	metaChatID     = "chatID"
	metaAccountKey = "accountKey"
)

const (
	fieldName        = "name"
	fieldCredentials = "credentials"
	fieldTimeOfDay   = "timeOfDay"
	fieldIndex       = "index"
)

const optionalSuffix = "\n\nThis field is optional. Send /skip to skip"

const (
	promptAccountName = "Please enter the account name:"
	promptCredentials = "Please enter the <b>API Key</b> for the account:\n\n" +
		"You can find it on the devtools on your browser in field <b><i>API_KEY_PAIRS</i></b>\n\n" +
		"Format Code:\n<pre>{\n" +
		"  \"walletAddress\": \"0x9321...a79E\",\n" +
		"  \"secret\": \"vJEfdXTI_opuNFXc...ygW\",\n" +
		"  \"key\": \"52d44109-...-...-...-99193b0b5263\",\n" +
		"  \"passphrase\": \"xMnx...1au-fvnT\",\n" +
		"  \"walletType\": \"METAMASK\"\n" +
		"}</pre>\n\n" +
		"A wallet private key (0x + 64 hex) is also accepted; such an account can only be used for public data."
	promptMarketRequired = "Enter the market symbol (e.g., BTC-USD)\n\nThis field is required and cannot be skipped:"
)

// paramPrompts - вопросы для параметров запросов
var paramPrompts = map[string]string{
	models.ParamMarket:              "Enter the market symbol (e.g., BTC-USD)" + optionalSuffix,
	models.ParamStatus:              "Enter the status. Can be <code>OPEN</code>, <code>CLOSED</code> or <code>LIQUIDATED</code>" + optionalSuffix,
	models.ParamLimit:               "Enter the limit" + optionalSuffix,
	models.ParamCreatedBeforeOrAt:   "Enter the date in YYYY-MM-DD HH:MM (24 hours time format) for createdBeforeOrAt" + optionalSuffix,
	models.ParamEffectiveBeforeOrAt: "Enter the date in YYYY-MM-DD HH:MM (24 hours time format) for effectiveBeforeOrAt" + optionalSuffix,
	models.ParamTransferType:        "Enter the transfer type. Can be <code>DEPOSIT</code>, <code>WITHDRAWAL</code> or <code>FAST_WITHDRAWAL</code>" + optionalSuffix,
	models.ParamSide:                "Enter the side. Either <code>BUY</code> or <code>SELL</code>" + optionalSuffix,
	models.ParamType:                "Enter the type. Can be <code>LIMIT</code>, <code>STOP</code>, <code>TRAILING_STOP</code> or <code>TAKE_PROFIT</code>" + optionalSuffix,
}

// reportedError - ошибка, о которой пользователь уже получил сообщение
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

func queryFlow(q models.QueryType) flow.Kind {
	if q == models.QueryHistoricalFunding {
		return flowHistoricalFunding
	}
	return flow.Kind("get:" + string(q))
}

func scheduleFlow(q models.QueryType) flow.Kind {
	return flow.Kind("schedule:" + string(q))
}

func paramField(name string) flow.Field {
	f := flow.Field{Name: name, Prompt: paramPrompts[name]}
	if name == models.ParamCreatedBeforeOrAt || name == models.ParamEffectiveBeforeOrAt {
		f.Kind = flow.FieldDate
	}
	return f
}

func paramFields(q models.QueryType) []flow.Field {
	fields := make([]flow.Field, 0, len(q.ParamOrder())+1)
	for _, name := range q.ParamOrder() {
		fields = append(fields, paramField(name))
	}
	return fields
}

func timeOfDayField(q models.QueryType) flow.Field {
	return flow.Field{
		Name:     fieldTimeOfDay,
		Prompt:   fmt.Sprintf("Enter time you want to %s everyday HH:MM (24 hours time format).", strings.ToLower(q.Label())),
		Kind:     flow.FieldTimeOfDay,
		Required: true,
	}
}

// registerFlows регистрирует все диалоги бота
func (r *Router) registerFlows(reg *flow.Registry) {
	reg.MustRegister(flow.Definition{
		Kind: flowSetAccount,
		Fields: []flow.Field{
			{Name: fieldName, Prompt: promptAccountName, Required: true, Retry: true, Validate: validateAccountName},
			{Name: fieldCredentials, Prompt: promptCredentials, Kind: flow.FieldCredentials, Required: true},
		},
		Action: r.setAccountAction,
	})

	for _, q := range []models.QueryType{models.QueryPosition, models.QueryTransfer, models.QueryOrder, models.QueryFundingPayment} {
		reg.MustRegister(flow.Definition{
			Kind:   queryFlow(q),
			Fields: paramFields(q),
			Action: r.queryAction(q),
		})
	}

	reg.MustRegister(flow.Definition{
		Kind: flowHistoricalFunding,
		Fields: []flow.Field{
			{Name: models.ParamMarket, Prompt: promptMarketRequired, Required: true},
			paramField(models.ParamEffectiveBeforeOrAt),
		},
		Action: r.queryAction(models.QueryHistoricalFunding),
	})

	for _, q := range models.SchedulableQueries {
		reg.MustRegister(flow.Definition{
			Kind:   scheduleFlow(q),
			Fields: append(paramFields(q), timeOfDayField(q)),
			Action: r.scheduleAction(q),
		})
	}

	reg.MustRegister(flow.Definition{
		Kind: flowRemoveSchedule,
		Fields: []flow.Field{
			{Name: fieldIndex, Prompt: textRemovePrompt, Kind: flow.FieldIndex, Required: true, Retry: true, Validate: r.validateScheduleIndex},
		},
		Action: r.removeScheduleAction,
	})
}

func validateAccountName(_ context.Context, _ *flow.Session, value string) error {
	_, err := utils.ValidateAccountName(value)
	return err
}

// validateScheduleIndex проверяет индекс по текущему списку заданий аккаунта
func (r *Router) validateScheduleIndex(_ context.Context, s *flow.Session, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return flow.ErrInvalidIndex
	}
	if n >= len(r.schedules.List(s.UserID, s.Meta[metaAccountKey])) {
		return service.ErrScheduleIndexOutOfRange
	}
	return nil
}

func chatOf(sub flow.Submission) int64 {
	id, err := strconv.ParseInt(sub.Meta[metaChatID], 10, 64)
	if err != nil {
		return sub.UserID
	}
	return id
}

func (r *Router) setAccountAction(ctx context.Context, sub flow.Submission) error {
	account, err := r.accounts.Register(ctx, sub.UserID, sub.Params[fieldName], sub.Params[fieldCredentials])
	if err != nil {
		return err
	}
	return r.sender.SendText(ctx, chatOf(sub), accountSetText(account.Key))
}

func (r *Router) queryAction(q models.QueryType) flow.Action {
	return func(ctx context.Context, sub flow.Submission) error {
		req := service.QueryRequest{
			UserID: sub.UserID,
			Type:   q,
			Params: sub.Params,
			Mode:   metrics.ModeInteractive,
		}
		if q.Private() {
			account, err := r.accounts.Get(sub.UserID, sub.Meta[metaAccountKey])
			if err != nil {
				return err
			}
			req.Account = account
		}
		if err := r.queries.Deliver(ctx, chatOf(sub), req); err != nil {
			return reportedError{err}
		}
		return nil
	}
}

func (r *Router) scheduleAction(q models.QueryType) flow.Action {
	return func(ctx context.Context, sub flow.Submission) error {
		params := sub.Params.Clone()
		timeOfDay := params[fieldTimeOfDay]
		delete(params, fieldTimeOfDay)

		job, err := r.schedules.Create(ctx, sub.UserID, sub.Meta[metaAccountKey], q, params, timeOfDay)
		if err != nil {
			return err
		}
		return r.sender.SendText(ctx, chatOf(sub), scheduleSetText(q, job.TimeOfDay))
	}
}

func (r *Router) removeScheduleAction(ctx context.Context, sub flow.Submission) error {
	index, err := strconv.Atoi(sub.Params[fieldIndex])
	if err != nil {
		return flow.ErrInvalidIndex
	}
	if _, err := r.schedules.Remove(ctx, sub.UserID, sub.Meta[metaAccountKey], index); err != nil {
		return err
	}
	return r.sender.SendText(ctx, chatOf(sub), textScheduleRemoved)
}
