package exchange

import (
	"context"
	"errors"
	"fmt"

	"snapbot/internal/models"
)

var (
	// ErrNoAPICredentials - у аккаунта только приватный ключ, подписать запрос нечем
	ErrNoAPICredentials = errors.New("account has no API key credentials")
	// ErrInvalidCredentials - текст не похож ни на набор ключей, ни на приватный ключ
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Client - REST клиент биржи dYdX v3.
// Приватные методы подписываются набором API ключей аккаунта.
type Client interface {
	GetPositions(ctx context.Context, creds *models.APIKeyPair, params models.Params) ([]Position, error)
	GetTransfers(ctx context.Context, creds *models.APIKeyPair, params models.Params) ([]Transfer, error)
	GetOrders(ctx context.Context, creds *models.APIKeyPair, params models.Params) ([]Order, error)
	GetFundingPayments(ctx context.Context, creds *models.APIKeyPair, params models.Params) ([]FundingPayment, error)
	GetAccounts(ctx context.Context, creds *models.APIKeyPair) ([]Account, error)
	GetUser(ctx context.Context, creds *models.APIKeyPair) (*User, error)

	GetMarkets(ctx context.Context) ([]Market, error)
	GetHistoricalFunding(ctx context.Context, market string, params models.Params) ([]HistoricalFunding, error)
}

// Position - позиция аккаунта (/v3/positions)
type Position struct {
	Market        Text `json:"market"`
	Status        Text `json:"status"`
	Side          Text `json:"side"`
	Size          Text `json:"size"`
	MaxSize       Text `json:"maxSize"`
	EntryPrice    Text `json:"entryPrice"`
	ExitPrice     Text `json:"exitPrice"`
	UnrealizedPnl Text `json:"unrealizedPnl"`
	RealizedPnl   Text `json:"realizedPnl"`
	CreatedAt     Text `json:"createdAt"`
	ClosedAt      Text `json:"closedAt"`
	SumOpen       Text `json:"sumOpen"`
	SumClose      Text `json:"sumClose"`
	NetFunding    Text `json:"netFunding"`
}

// Transfer - депозит или вывод (/v3/transfers)
type Transfer struct {
	ID              Text `json:"id"`
	Type            Text `json:"type"`
	DebitAsset      Text `json:"debitAsset"`
	CreditAsset     Text `json:"creditAsset"`
	DebitAmount     Text `json:"debitAmount"`
	CreditAmount    Text `json:"creditAmount"`
	TransactionHash Text `json:"transactionHash"`
	Status          Text `json:"status"`
	CreatedAt       Text `json:"createdAt"`
	ConfirmedAt     Text `json:"confirmedAt"`
	ClientID        Text `json:"clientId"`
	FromAddress     Text `json:"fromAddress"`
	ToAddress       Text `json:"toAddress"`
}

// Order - ордер аккаунта (/v3/orders)
type Order struct {
	ID              Text `json:"id"`
	ClientID        Text `json:"clientId"`
	AccountID       Text `json:"accountId"`
	Market          Text `json:"market"`
	Side            Text `json:"side"`
	Price           Text `json:"price"`
	TriggerPrice    Text `json:"triggerPrice"`
	TrailingPercent Text `json:"trailingPercent"`
	Size            Text `json:"size"`
	RemainingSize   Text `json:"remainingSize"`
	Type            Text `json:"type"`
	CreatedAt       Text `json:"createdAt"`
	UnfillableAt    Text `json:"unfillableAt"`
	ExpiresAt       Text `json:"expiresAt"`
	Status          Text `json:"status"`
	TimeInForce     Text `json:"timeInForce"`
	PostOnly        Text `json:"postOnly"`
	ReduceOnly      Text `json:"reduceOnly"`
	CancelReason    Text `json:"cancelReason"`
}

// FundingPayment - начисление фандинга (/v3/funding)
type FundingPayment struct {
	Market       Text `json:"market"`
	Payment      Text `json:"payment"`
	Rate         Text `json:"rate"`
	PositionSize Text `json:"positionSize"`
	Price        Text `json:"price"`
	EffectiveAt  Text `json:"effectiveAt"`
}

// Account - субаккаунт пользователя с открытыми позициями (/v3/accounts)
type Account struct {
	StarkKey           Text                `json:"starkKey"`
	PositionID         Text                `json:"positionId"`
	Equity             Text                `json:"equity"`
	FreeCollateral     Text                `json:"freeCollateral"`
	PendingDeposits    Text                `json:"pendingDeposits"`
	PendingWithdrawals Text                `json:"pendingWithdrawals"`
	QuoteBalance       Text                `json:"quoteBalance"`
	OpenPositions      map[string]Position `json:"openPositions" xlsx:"-"`
	AccountNumber      Text                `json:"accountNumber"`
	ID                 Text                `json:"id"`
	CreatedAt          Text                `json:"createdAt"`
}

// User - профиль пользователя (/v3/users)
type User struct {
	PublicID                     Text `json:"publicId"`
	EthereumAddress              Text `json:"ethereumAddress"`
	IsRegistered                 Text `json:"isRegistered"`
	Email                        Text `json:"email"`
	Username                     Text `json:"username"`
	MakerFeeRate                 Text `json:"makerFeeRate"`
	TakerFeeRate                 Text `json:"takerFeeRate"`
	MakerVolume30D               Text `json:"makerVolume30D"`
	TakerVolume30D               Text `json:"takerVolume30D"`
	Fees30D                      Text `json:"fees30D"`
	DydxTokenBalance             Text `json:"dydxTokenBalance"`
	StakedDydxTokenBalance       Text `json:"stakedDydxTokenBalance"`
	ActiveStakedDydxTokenBalance Text `json:"activeStakedDydxTokenBalance"`
	IsEmailVerified              Text `json:"isEmailVerified"`
	Country                      Text `json:"country"`
}

// Profile переводит ответ /v3/users в кэшируемый профиль аккаунта
func (u *User) Profile() *models.Profile {
	return &models.Profile{
		PublicID:                     u.PublicID.String(),
		EthereumAddress:              u.EthereumAddress.String(),
		Email:                        u.Email.String(),
		Username:                     u.Username.String(),
		MakerFeeRate:                 u.MakerFeeRate.String(),
		TakerFeeRate:                 u.TakerFeeRate.String(),
		Fees30D:                      u.Fees30D.String(),
		DydxTokenBalance:             u.DydxTokenBalance.String(),
		StakedDydxTokenBalance:       u.StakedDydxTokenBalance.String(),
		ActiveStakedDydxTokenBalance: u.ActiveStakedDydxTokenBalance.String(),
	}
}

// Market - параметры рынка (/v3/markets)
type Market struct {
	Market                           Text `json:"market"`
	Status                           Text `json:"status"`
	BaseAsset                        Text `json:"baseAsset"`
	QuoteAsset                       Text `json:"quoteAsset"`
	StepSize                         Text `json:"stepSize"`
	TickSize                         Text `json:"tickSize"`
	IndexPrice                       Text `json:"indexPrice"`
	OraclePrice                      Text `json:"oraclePrice"`
	PriceChange24H                   Text `json:"priceChange24H"`
	NextFundingRate                  Text `json:"nextFundingRate"`
	NextFundingAt                    Text `json:"nextFundingAt"`
	MinOrderSize                     Text `json:"minOrderSize"`
	Type                             Text `json:"type"`
	InitialMarginFraction            Text `json:"initialMarginFraction"`
	MaintenanceMarginFraction        Text `json:"maintenanceMarginFraction"`
	TransferMarginFraction           Text `json:"transferMarginFraction"`
	Volume24H                        Text `json:"volume24H"`
	Trades24H                        Text `json:"trades24H"`
	OpenInterest                     Text `json:"openInterest"`
	IncrementalInitialMarginFraction Text `json:"incrementalInitialMarginFraction"`
	IncrementalPositionSize          Text `json:"incrementalPositionSize"`
	MaxPositionSize                  Text `json:"maxPositionSize"`
	BaselinePositionSize             Text `json:"baselinePositionSize"`
	AssetResolution                  Text `json:"assetResolution"`
	SyntheticAssetID                 Text `json:"syntheticAssetId"`
}

// HistoricalFunding - историческая ставка фандинга рынка
type HistoricalFunding struct {
	Market      Text `json:"market"`
	Rate        Text `json:"rate"`
	Price       Text `json:"price"`
	EffectiveAt Text `json:"effectiveAt"`
}

// APIError - ошибка ответа биржи; Message передается пользователю как есть
type APIError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("dydx %s: HTTP %d", e.Endpoint, e.Status)
	}
	return e.Message
}
