package ports

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/veilswap/veilswap-daemon/internal/core/domain"
)

// TxOutput is a destination of a transaction built by the wallet.
type TxOutput struct {
	Address string
	Value   btcutil.Amount
}

// WalletService is the capability to construct, sign and broadcast a
// transaction. Key custody stays behind this boundary.
type WalletService interface {
	// SelectInputs picks spendable outputs covering the given amount and
	// returns them along with the change value.
	SelectInputs(
		ctx context.Context, amount btcutil.Amount,
	) ([]domain.RawTransactionInput, btcutil.Amount, error)
	// CreateTransaction builds and signs a transaction spending the given
	// inputs towards the given outputs, returning it in hex format.
	CreateTransaction(
		ctx context.Context,
		ins []domain.RawTransactionInput, outs []TxOutput,
	) (string, error)
	// BroadcastTransaction publishes the given signed transaction and
	// returns its txid.
	BroadcastTransaction(ctx context.Context, txHex string) (string, error)
}
