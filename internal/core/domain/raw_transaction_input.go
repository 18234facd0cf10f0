package domain

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

// RawTransactionInput holds the relevant data of the connected output spent
// by an input of a fee or deposit transaction. It is immutable once created.
type RawTransactionInput struct {
	// Index is the index of the spent output in ParentTransaction.
	Index uint32
	// ParentTransaction is the serialized transaction holding the spent
	// output, not the parent tx of the input.
	ParentTransaction []byte
	// Value is the number of satoshis being spent.
	Value btcutil.Amount
}

// NewRawTransactionInput returns a new immutable RawTransactionInput.
func NewRawTransactionInput(
	index uint32, parentTransaction []byte, value btcutil.Amount,
) RawTransactionInput {
	parentTx := make([]byte, len(parentTransaction))
	copy(parentTx, parentTransaction)
	return RawTransactionInput{
		Index:             index,
		ParentTransaction: parentTx,
		Value:             value,
	}
}

// Equal returns whether the given input matches field by field. Two inputs
// with identical fields are interchangeable.
func (i RawTransactionInput) Equal(o RawTransactionInput) bool {
	return i.Index == o.Index &&
		i.Value == o.Value &&
		bytes.Equal(i.ParentTransaction, o.ParentTransaction)
}

func (i RawTransactionInput) String() string {
	return fmt.Sprintf(
		"RawTransactionInput{index=%d, parentTransaction=%s, value=%d}",
		i.Index, hex.EncodeToString(i.ParentTransaction), i.Value,
	)
}
