package domain

import "context"

// TradeRepository is the persistence boundary for trades.
type TradeRepository interface {
	// AddTrade inserts a new trade.
	AddTrade(ctx context.Context, trade *Trade) error
	// GetTrade returns the trade identified by its id.
	GetTrade(ctx context.Context, tradeId string) (*Trade, error)
	// GetAllTrades returns all the stored trades.
	GetAllTrades(ctx context.Context) ([]*Trade, error)
	// GetTradeByTxId returns the trade owning the given fee, deposit or
	// payout transaction id.
	GetTradeByTxId(ctx context.Context, txId string) (*Trade, error)
	// UpdateTrade reads, updates through the given closure and stores back a
	// trade atomically.
	UpdateTrade(
		ctx context.Context, tradeId string,
		updateFn func(t *Trade) (*Trade, error),
	) error
}
