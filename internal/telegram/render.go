package telegram

import (
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"snapbot/internal/models"
	"snapbot/pkg/utils"
)

// Ответы, которые пользователь видит дословно
const (
	textNoAccounts       = "No accounts saved. Use /setaccount to set your private key."
	textNoSelected       = "No selected account. Use /accounts to select your account"
	textSameAccount      = "You selected the same account."
	textAccountNotFound  = "Account not found."
	textNoSchedules      = "No schedule found."
	textScheduleRemoved  = "Schedule is removed."
	textInvalidSchedule  = "Schedule ID is not vaild."
	textPrivateMenus     = "dYdX Private Menus:"
	textPublicMenus      = "dYdX Public Menus:"
	textSavedAccounts    = "Your saved accounts:"
	textCancelled        = "Cancelled."
	textNothingToCancel  = "Nothing to cancel."
	textUnknownCommand   = "Unknown command. Use /help to see available commands."
	textRemovePrompt     = "Enter the id of schedule you want to remove."
	textCallbackErrorFmt = "Error handling callback query: %s"
)

const commandList = `<b>Available Commands:</b>
/ping - Check the bot's health and uptime.
/setaccount - Set up a new account.
/accounts - View and manage your saved accounts.
/dydxprivatemenus - View private information from dYdX.
/dydxpublicmenus - View public information from dYdX.
/schedule - View and set schedule for dydxprivatemenus.
/schedules - List schedules of the selected account.
/cancel - Abort the current input.
/help - Display this help message.`

func helpText() string {
	return commandList
}

func startText() string {
	return "Welcome to the DYDX Snap Bot!\n\n" +
		"To begin using the bot, you need to set up an account. This will allow you to access private information from dYdX.\n\n" +
		commandList + "\n\n" +
		"Please note that access to private menus requires setting up an account first. Public menus can be accessed without setting up an account."
}

// pingText - ответ /ping: uptime, часовой пояс и время сервера
func pingText(startedAt, now time.Time) string {
	zone, _ := now.Zone()
	return fmt.Sprintf("<b>pong!</b>\n\nuptime: %s\nmessage: OK\nserver timezone: %s\nserver timestamp:  %s",
		utils.FormatDuration(now.Sub(startedAt)),
		zone,
		now.Format(utils.PingLayout),
	)
}

// accountsText - заголовок списка аккаунтов с данными выбранного аккаунта
func accountsText(accounts []*models.Account) string {
	var selected *models.Account
	for _, a := range accounts {
		if a.IsSelected {
			selected = a
			break
		}
	}
	if selected == nil {
		return textSavedAccounts
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Selected Account: <b>%s</b>\n", html.EscapeString(selected.Address))
	if p := selected.Profile; p != nil {
		if p.PublicID != "" {
			fmt.Fprintf(&b, "Public ID: %s\n", html.EscapeString(p.PublicID))
		}
		for _, kv := range [][2]string{
			{"email", p.Email},
			{"username", p.Username},
			{"makerFeeRate", p.MakerFeeRate},
			{"takerFeeRate", p.TakerFeeRate},
			{"fees30D", p.Fees30D},
			{"dydxTokenBalance", p.DydxTokenBalance},
			{"stakedDydxTokenBalance", p.StakedDydxTokenBalance},
			{"activeStakedDydxTokenBalance", p.ActiveStakedDydxTokenBalance},
		} {
			if kv[1] != "" {
				fmt.Fprintf(&b, "%s: %s\n", kv[0], html.EscapeString(kv[1]))
			}
		}
	}
	b.WriteString("\n")
	b.WriteString(textSavedAccounts)
	return b.String()
}

// accountButtonText: "✅ Account main (0x12...abcd)" для выбранного
func accountButtonText(a *models.Account) string {
	text := fmt.Sprintf("Account %s", a.Name)
	if short := a.ShortAddress(); short != "" {
		text += " (" + short + ")"
	}
	if a.IsSelected {
		text = "✅ " + text
	}
	return text
}

// scheduleListText - список заданий аккаунта: "[i] <Label> - <params> HH:MM"
func scheduleListText(accountName string, jobs []*models.ScheduledJob) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Schedule List %s:</b>\n", html.EscapeString(accountName))
	for i, job := range jobs {
		fmt.Fprintf(&b, "[%d] %s\n", i, html.EscapeString(job.Describe()))
	}
	return b.String()
}

func scheduleMenuText(accountName string) string {
	return fmt.Sprintf("Schedule Menus for %s: ", html.EscapeString(accountName))
}

func scheduleSetText(q models.QueryType, timeOfDay string) string {
	return fmt.Sprintf("Schedule is set for %s on %s.", q.Label(), timeOfDay)
}

func accountSetText(key string) string {
	return fmt.Sprintf("Account %d set successfully.", models.AccountNumber(key))
}

// Inline клавиатуры

func accountsKeyboard(accounts []*models.Account) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(accounts)+1)
	for _, a := range accounts {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(accountButtonText(a), cbSelectAccountPrefix+a.Key),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Add New Account", cbAddNewAccount),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func privateMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Get Positions", cbGetPosition),
			tgbotapi.NewInlineKeyboardButtonData("Get Transfers", cbGetTransfer),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Get Orders", cbGetOrders),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Get Funding Payment", cbGetFundingPayment),
			tgbotapi.NewInlineKeyboardButtonData("Get Accounts", cbGetAccounts),
		),
	)
}

func publicMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Get Historical Funding", cbGetHistoricalFunding),
			tgbotapi.NewInlineKeyboardButtonData("Get Markets", cbGetMarkets),
		),
	)
}

func scheduleMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Set Schedule Get Positions", cbSchedulePosition),
			tgbotapi.NewInlineKeyboardButtonData("Set Schedule Get Transfers", cbScheduleTransfer),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Set Schedule Get Orders", cbScheduleOrders),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Set Schedule Get Funding Payment", cbScheduleFundingPayment),
			tgbotapi.NewInlineKeyboardButtonData("Set Schedule Get Accounts", cbScheduleAccounts),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Get Schedules", cbGetSchedules),
		),
	)
}

func scheduleListKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Remove Schedule", cbRemoveSchedule),
		),
	)
}
