package domain

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeRole is the role of the local party: buyer or seller, crossed with
// maker or taker. It selects the payout-amount formula and the permission
// rules that apply to the trade.
type TradeRole int

// IsBuyer returns whether the local party buys the base asset.
func (r TradeRole) IsBuyer() bool {
	return r == BuyerAsMaker || r == BuyerAsTaker
}

// IsMaker returns whether the local party posted the offer.
func (r TradeRole) IsMaker() bool {
	return r == BuyerAsMaker || r == SellerAsMaker
}

func (r TradeRole) String() string {
	switch r {
	case BuyerAsMaker:
		return "BuyerAsMaker"
	case BuyerAsTaker:
		return "BuyerAsTaker"
	case SellerAsMaker:
		return "SellerAsMaker"
	case SellerAsTaker:
		return "SellerAsTaker"
	default:
		return "Unknown"
	}
}

// TradeStatus represents the different statuses that a trade can assume.
type TradeStatus struct {
	Code   int
	Failed bool
}

// DisputeState tracks the arbitration branch of a trade, which runs in
// parallel with the cooperative statuses.
type DisputeState int

// IsOpen returns whether a dispute was opened and not yet resolved.
func (s DisputeState) IsOpen() bool {
	return s == DisputeStateOpened || s == DisputeStateArbitrated
}

// IsArbitrated returns whether the dispute was escalated to the arbitrator.
func (s DisputeState) IsArbitrated() bool {
	return s == DisputeStateArbitrated
}

// IsResolved returns whether the dispute reached an arbitrated resolution.
func (s DisputeState) IsResolved() bool {
	return s == DisputeStateResolved
}

// Trade is the aggregate owning the full lifecycle of one trade, from the
// acceptance of an offer to its terminal resolution. All mutations must go
// through a single writer per trade id.
type Trade struct {
	Id                string
	Role              TradeRole
	Offer             *Offer
	Amount            btcutil.Amount
	TakerFee          btcutil.Amount
	Price             decimal.Decimal
	TakerAddress      *NodeAddress
	MakerAddress      *NodeAddress
	ArbitratorAddress *NodeAddress
	Status            TradeStatus
	DisputeState      DisputeState
	ProcessModel      *ProcessModel
	CreationTime      int64
	SettlementTime    int64
}

// NewTrade returns a trade in PendingDeposit status built from an accepted
// offer. At most two of the counterpart addresses are set, depending on the
// role the local party plays.
func NewTrade(
	offer *Offer, role TradeRole,
	amount, takerFee btcutil.Amount, price decimal.Decimal,
	takerAddress, makerAddress, arbitratorAddress *NodeAddress,
) (*Trade, error) {
	if offer == nil {
		return nil, ErrTradeOfferNotSet
	}
	if amount <= 0 {
		return nil, ErrTradeAmountNotSet
	}
	return &Trade{
		Id:                uuid.New().String(),
		Role:              role,
		Offer:             offer,
		Amount:            amount,
		TakerFee:          takerFee,
		Price:             price,
		TakerAddress:      takerAddress,
		MakerAddress:      makerAddress,
		ArbitratorAddress: arbitratorAddress,
		Status:            TradeStatus{Code: TradeStatusCodePendingDeposit},
		DisputeState:      DisputeStateNone,
		ProcessModel:      NewProcessModel(),
		CreationTime:      time.Now().Unix(),
	}, nil
}

// ConfirmDeposit brings a trade from PendingDeposit to DepositConfirmed once
// the deposit transaction has reached the required number of confirmations.
// It returns false without error while the threshold is not met yet.
func (t *Trade) ConfirmDeposit(confirmations, required int64) (bool, error) {
	if t.Status.Code >= TradeStatusCodeDepositConfirmed &&
		t.Status.Code != TradeStatusCodeCanceled {
		return true, nil
	}
	if t.IsTerminal() {
		return false, ErrTradeTerminal
	}
	if t.Status.Code != TradeStatusCodePendingDeposit {
		return false, ErrTradeMustBePendingDeposit
	}
	if confirmations < required {
		return false, nil
	}

	t.Status.Code = TradeStatusCodeDepositConfirmed
	return true, nil
}

// MarkPaymentSent brings a trade from DepositConfirmed to PaymentSent. The
// transition is rejected while the trade is under arbitration.
func (t *Trade) MarkPaymentSent() (bool, error) {
	if t.Status.Code >= TradeStatusCodePaymentSent &&
		t.Status.Code != TradeStatusCodeCanceled {
		return true, nil
	}
	if t.IsTerminal() {
		return false, ErrTradeTerminal
	}
	if t.Status.Code != TradeStatusCodeDepositConfirmed {
		return false, ErrTradeMustBeDepositConfirmed
	}
	if !t.ConfirmPermitted() {
		return false, ErrTradeConfirmNotPermitted
	}

	t.Status.Code = TradeStatusCodePaymentSent
	return true, nil
}

// MarkPaymentReceived brings a trade from PaymentSent to PaymentReceived.
func (t *Trade) MarkPaymentReceived() (bool, error) {
	if t.Status.Code >= TradeStatusCodePaymentReceived &&
		t.Status.Code != TradeStatusCodeCanceled {
		return true, nil
	}
	if t.IsTerminal() {
		return false, ErrTradeTerminal
	}
	if t.Status.Code != TradeStatusCodePaymentSent {
		return false, ErrTradeMustBePaymentSent
	}
	if !t.ConfirmPermitted() {
		return false, ErrTradeConfirmNotPermitted
	}

	t.Status.Code = TradeStatusCodePaymentReceived
	return true, nil
}

// MarkPayoutPublished brings a trade from PaymentReceived to PayoutPublished.
func (t *Trade) MarkPayoutPublished() (bool, error) {
	if t.Status.Code >= TradeStatusCodePayoutPublished &&
		t.Status.Code != TradeStatusCodeCanceled {
		return true, nil
	}
	if t.IsTerminal() {
		return false, ErrTradeTerminal
	}
	if t.Status.Code != TradeStatusCodePaymentReceived {
		return false, ErrTradeMustBePaymentReceived
	}

	t.Status.Code = TradeStatusCodePayoutPublished
	return true, nil
}

// Complete brings a trade from PayoutPublished to Completed and records the
// settlement time, which must be a blocktime.
func (t *Trade) Complete(settlementTime int64) (bool, error) {
	if t.Status.Code == TradeStatusCodeCompleted {
		return true, nil
	}
	if t.IsTerminal() {
		return false, ErrTradeTerminal
	}
	if t.Status.Code != TradeStatusCodePayoutPublished {
		return false, ErrTradeMustBePayoutPublished
	}

	t.SettlementTime = settlementTime
	t.Status.Code = TradeStatusCodeCompleted
	return true, nil
}

// Cancel aborts a trade by mutual agreement. Once the deposit is confirmed
// the escrow is funded and cancellation must go through the dispute branch.
func (t *Trade) Cancel() (bool, error) {
	if t.Status.Code == TradeStatusCodeCanceled {
		return true, nil
	}
	if t.IsTerminal() {
		return false, ErrTradeTerminal
	}
	if t.Status.Code >= TradeStatusCodeDepositConfirmed || t.DisputeState.IsOpen() {
		return false, ErrTradeNotCancelable
	}

	t.Status.Code = TradeStatusCodeCanceled
	t.Status.Failed = true
	return true, nil
}

// OpenDispute opens the arbitration branch. It is reachable from any
// non-terminal status.
func (t *Trade) OpenDispute() (bool, error) {
	if t.DisputeState.IsOpen() {
		return true, nil
	}
	if t.IsTerminal() {
		return false, ErrTradeTerminal
	}

	t.DisputeState = DisputeStateOpened
	return true, nil
}

// Arbitrate escalates an open dispute to the arbitrator.
func (t *Trade) Arbitrate() (bool, error) {
	if t.DisputeState.IsArbitrated() {
		return true, nil
	}
	if t.DisputeState != DisputeStateOpened {
		return false, ErrTradeNotDisputed
	}

	t.DisputeState = DisputeStateArbitrated
	return true, nil
}

// ResolveDispute terminates an arbitrated trade with the arbitrator's
// decision.
func (t *Trade) ResolveDispute() (bool, error) {
	if t.DisputeState.IsResolved() {
		return true, nil
	}
	if !t.DisputeState.IsArbitrated() {
		return false, ErrTradeNotDisputed
	}

	t.DisputeState = DisputeStateResolved
	t.Status.Failed = true
	return true, nil
}

// PayoutAmount returns the amount the local party receives from the escrow,
// according to its role. Calling it before the trade amount or the offer are
// known is a contract violation and fails loudly.
func (t *Trade) PayoutAmount() (btcutil.Amount, error) {
	return t.strategy().payoutAmount(t)
}

// ConfirmPermitted returns whether the local party may advance the trade by
// confirming payment. A party whose trade is under arbitration may not
// unilaterally confirm.
func (t *Trade) ConfirmPermitted() bool {
	return t.strategy().confirmPermitted(t)
}

// IsPendingDeposit returns whether the trade is waiting for its deposit
// transaction to confirm.
func (t *Trade) IsPendingDeposit() bool {
	return t.Status.Code == TradeStatusCodePendingDeposit
}

// IsDepositConfirmed returns whether the deposit transaction has confirmed.
func (t *Trade) IsDepositConfirmed() bool {
	return t.Status.Code >= TradeStatusCodeDepositConfirmed &&
		t.Status.Code != TradeStatusCodeCanceled
}

// IsPaymentSent returns whether the buyer has marked the payment as sent.
func (t *Trade) IsPaymentSent() bool {
	return t.Status.Code >= TradeStatusCodePaymentSent &&
		t.Status.Code != TradeStatusCodeCanceled
}

// IsCompleted returns whether the trade is in Completed status.
func (t *Trade) IsCompleted() bool {
	return t.Status.Code == TradeStatusCodeCompleted
}

// IsCanceled returns whether the trade is in Canceled status.
func (t *Trade) IsCanceled() bool {
	return t.Status.Code == TradeStatusCodeCanceled
}

// IsTerminal returns whether no further transition may be applied.
func (t *Trade) IsTerminal() bool {
	return t.Status.Code == TradeStatusCodeCompleted ||
		t.Status.Code == TradeStatusCodeCanceled ||
		t.DisputeState.IsResolved()
}

// CounterpartAddress returns the address of the other trader.
func (t *Trade) CounterpartAddress() *NodeAddress {
	if t.Role.IsMaker() {
		return t.TakerAddress
	}
	return t.MakerAddress
}

type tradeStrategy struct {
	payoutAmount     func(t *Trade) (btcutil.Amount, error)
	confirmPermitted func(t *Trade) bool
}

var buyerStrategy = tradeStrategy{
	// The buyer receives the base asset back plus their own security
	// deposit. The seller is paid the remainder by the deposit construction.
	payoutAmount: func(t *Trade) (btcutil.Amount, error) {
		if t.Amount <= 0 {
			return 0, ErrTradeAmountNotSet
		}
		if t.Offer == nil {
			return 0, ErrTradeOfferNotSet
		}
		return t.Offer.BuyerSecurityDeposit + t.Amount, nil
	},
	confirmPermitted: func(t *Trade) bool {
		return !t.DisputeState.IsArbitrated()
	},
}

var sellerStrategy = tradeStrategy{
	payoutAmount: func(t *Trade) (btcutil.Amount, error) {
		if t.Amount <= 0 {
			return 0, ErrTradeAmountNotSet
		}
		if t.Offer == nil {
			return 0, ErrTradeOfferNotSet
		}
		return t.Offer.SellerSecurityDeposit, nil
	},
	confirmPermitted: func(t *Trade) bool {
		return !t.DisputeState.IsArbitrated()
	},
}

func (t *Trade) strategy() tradeStrategy {
	if t.Role.IsBuyer() {
		return buyerStrategy
	}
	return sellerStrategy
}
