package domain

const (
	TradeStatusCodeUndefined = iota
	TradeStatusCodePendingDeposit
	TradeStatusCodeDepositConfirmed
	TradeStatusCodePaymentSent
	TradeStatusCodePaymentReceived
	TradeStatusCodePayoutPublished
	TradeStatusCodeCompleted
	TradeStatusCodeCanceled
)

const (
	DisputeStateNone DisputeState = iota
	DisputeStateOpened
	DisputeStateArbitrated
	DisputeStateResolved
)

const (
	BuyerAsMaker TradeRole = iota
	BuyerAsTaker
	SellerAsMaker
	SellerAsTaker
)

const (
	OfferDirectionBuy OfferDirection = iota
	OfferDirectionSell
)
