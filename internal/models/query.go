package models

// QueryType - тип запроса к бирже
type QueryType string

// Типы запросов
const (
	QueryPosition          QueryType = "position"
	QueryTransfer          QueryType = "transfer"
	QueryOrder             QueryType = "order"
	QueryFundingPayment    QueryType = "fundingPayment"
	QueryAccountSnapshot   QueryType = "accountSnapshot"
	QueryHistoricalFunding QueryType = "historicalFunding"
	QueryMarkets           QueryType = "markets"
)

// Имена параметров запросов
const (
	ParamMarket              = "market"
	ParamStatus              = "status"
	ParamLimit               = "limit"
	ParamCreatedBeforeOrAt   = "createdBeforeOrAt"
	ParamEffectiveBeforeOrAt = "effectiveBeforeOrAt"
	ParamTransferType        = "transferType"
	ParamSide                = "side"
	ParamType                = "type"
)

// Params - собранные параметры запроса, имя поля -> значение
type Params map[string]string

// Clone возвращает копию параметров
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

type queryInfo struct {
	label       string
	caption     string
	filePrefix  string
	noData      string
	private     bool
	schedulable bool
	paramOrder  []string
}

var queryCatalog = map[QueryType]queryInfo{
	QueryPosition: {
		label: "Get Position", caption: "Position Data", filePrefix: "positions",
		noData: "No positions data available for", private: true, schedulable: true,
		paramOrder: []string{ParamMarket, ParamStatus, ParamLimit, ParamCreatedBeforeOrAt},
	},
	QueryTransfer: {
		label: "Get Transfers", caption: "Transfers Data", filePrefix: "transfers",
		noData: "No transfers data available for", private: true, schedulable: true,
		paramOrder: []string{ParamTransferType, ParamLimit, ParamCreatedBeforeOrAt},
	},
	QueryOrder: {
		label: "Get Orders", caption: "Orders Data", filePrefix: "orders",
		noData: "No orders data available for", private: true, schedulable: true,
		paramOrder: []string{ParamMarket, ParamSide, ParamType, ParamLimit, ParamCreatedBeforeOrAt},
	},
	QueryFundingPayment: {
		label: "Get Funding Payment", caption: "Funding Payments Data", filePrefix: "fundingPayments",
		noData: "No funding payments data available for", private: true, schedulable: true,
		paramOrder: []string{ParamMarket, ParamLimit, ParamEffectiveBeforeOrAt},
	},
	QueryAccountSnapshot: {
		label: "Get Accounts", caption: "Accounts and Open Positions Data", filePrefix: "accounts",
		noData: "No accounts data available for", private: true, schedulable: true,
	},
	QueryHistoricalFunding: {
		label: "Get Historical Funding", caption: "Historical Funding Data", filePrefix: "historicalfunding",
		noData: "No historical funding data available.",
		paramOrder: []string{ParamMarket, ParamEffectiveBeforeOrAt},
	},
	QueryMarkets: {
		label: "Get Markets", caption: "Markets Data", filePrefix: "marketsdata",
		noData: "No markets data available.",
	},
}

// Valid проверяет что тип запроса известен
func (q QueryType) Valid() bool {
	_, ok := queryCatalog[q]
	return ok
}

// Label возвращает название запроса для пользователя
func (q QueryType) Label() string { return queryCatalog[q].label }

// Caption возвращает заголовок подписи к файлу
func (q QueryType) Caption() string { return queryCatalog[q].caption }

// FilePrefix возвращает префикс имени файла выгрузки
func (q QueryType) FilePrefix() string { return queryCatalog[q].filePrefix }

// NoDataMessage возвращает текст для пустого результата
func (q QueryType) NoDataMessage() string { return queryCatalog[q].noData }

// Private возвращает true если запрос требует учетных данных аккаунта
func (q QueryType) Private() bool { return queryCatalog[q].private }

// Schedulable возвращает true если запрос можно запускать по расписанию
func (q QueryType) Schedulable() bool { return queryCatalog[q].schedulable }

// ParamOrder возвращает порядок параметров для отображения
func (q QueryType) ParamOrder() []string { return queryCatalog[q].paramOrder }

// SchedulableQueries - запросы, доступные для расписания, в порядке меню
var SchedulableQueries = []QueryType{
	QueryPosition,
	QueryTransfer,
	QueryOrder,
	QueryFundingPayment,
	QueryAccountSnapshot,
}
