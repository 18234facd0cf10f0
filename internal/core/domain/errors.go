package domain

import "errors"

var (
	// ErrTradeAmountNotSet is thrown when computing a payout before the trade amount is known
	ErrTradeAmountNotSet = errors.New("trade amount must not be null")
	// ErrTradeOfferNotSet is thrown when a trade is missing its accepted offer
	ErrTradeOfferNotSet = errors.New("trade offer must not be null")
	// ErrTradeMustBePendingDeposit ...
	ErrTradeMustBePendingDeposit = errors.New("trade must be in pending deposit status")
	// ErrTradeMustBeDepositConfirmed ...
	ErrTradeMustBeDepositConfirmed = errors.New("trade must be in deposit confirmed status")
	// ErrTradeMustBePaymentSent ...
	ErrTradeMustBePaymentSent = errors.New("trade must be in payment sent status")
	// ErrTradeMustBePaymentReceived ...
	ErrTradeMustBePaymentReceived = errors.New("trade must be in payment received status")
	// ErrTradeMustBePayoutPublished ...
	ErrTradeMustBePayoutPublished = errors.New("trade must be in payout published status")
	// ErrTradeConfirmNotPermitted is thrown when the local party may not advance the trade
	ErrTradeConfirmNotPermitted = errors.New("confirming is not permitted for this trade")
	// ErrTradeNotCancelable is thrown when cancelling after the deposit confirmed
	ErrTradeNotCancelable = errors.New("trade can only be canceled before the deposit is confirmed")
	// ErrTradeTerminal is thrown when trying to mutate a completed, canceled or resolved trade
	ErrTradeTerminal = errors.New("trade is in a terminal status")
	// ErrTradeNotDisputed is thrown on arbitration calls for a trade without an open dispute
	ErrTradeNotDisputed = errors.New("trade has no open dispute")
	// ErrTxIdAlreadySet is thrown when overwriting a write-once transaction id
	ErrTxIdAlreadySet = errors.New("transaction id is already set")
	// ErrTxIdEmpty ...
	ErrTxIdEmpty = errors.New("transaction id must not be empty")
	// ErrTradeNotFound ...
	ErrTradeNotFound = errors.New("trade not found")
	// ErrParamNotFound ...
	ErrParamNotFound = errors.New("param not found")
	// ErrParamNotAmount is thrown when reading an address-kind param as a monetary amount
	ErrParamNotAmount = errors.New("param is not of amount kind")
	// ErrParamNotAddress is thrown when reading an amount-kind param as an address
	ErrParamNotAddress = errors.New("param is not of address kind")
)
