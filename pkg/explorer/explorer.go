package explorer

// TransactionStatus gives access to the confirmation status of a transaction
// as reported by the block-data provider.
type TransactionStatus interface {
	Confirmed() bool
	BlockHash() string
	BlockHeight() int
	BlockTime() int
}

// Service is the representation of a block-data provider that allows to
// fetch transaction and block data from the blockchain and to broadcast
// transactions. Implementations talk to untrusted third-party services,
// consumers must validate whatever they return.
type Service interface {
	// GetBlockHeight returns the height of the chain tip.
	GetBlockHeight() (int, error)
	// GetTransactionHex fetches the transaction in hex format given its hash.
	GetTransactionHex(txid string) (string, error)
	// GetTransactionStatus returns the parsed status of the tx identified by
	// its hash.
	GetTransactionStatus(txid string) (TransactionStatus, error)
	// GetTransactionStatusJSON returns the raw JSON text describing the tx,
	// its inputs, outputs and confirmation status, for callers that need to
	// validate it field by field.
	GetTransactionStatusJSON(txid string) (string, error)
	// IsTransactionConfirmed returns whether the tx identified by its hash
	// has been included in the blockchain.
	IsTransactionConfirmed(txid string) (bool, error)
	// BroadcastTransaction attempts to add the given tx in hex format to the
	// mempool and returns its tx hash.
	BroadcastTransaction(txhex string) (string, error)
}
