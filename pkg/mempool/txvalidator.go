package mempool

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	log "github.com/sirupsen/logrus"
)

const (
	// FailedValidation is the sentinel returned when the status JSON did not
	// pass validation. It is distinguishable from 0, which means the tx is
	// known to the provider but still unconfirmed.
	FailedValidation int64 = -1

	errorSummaryMaxChars = 85
)

// TxValidator checks the JSON status of a transaction as returned by a
// block-data provider. The JSON comes from a third party and is treated as
// attacker-influenced text: every field is checked for presence and type
// before being interpreted, and the txid must match the one under test so
// that a provider cannot answer for the wrong transaction.
//
// A validator is built per validation attempt and discarded after producing
// a confirmation count or a failure. It never retries: re-polling the
// provider is the caller's responsibility and a failure means "try again
// later or abandon", not "transaction invalid", except for the txid
// mismatch case which is permanent for the fetched payload.
type TxValidator struct {
	txId        string
	amount      btcutil.Amount
	chainHeight int64
	jsonTxt     string
	errorList   []string
}

// NewTxValidator returns a validator for the given txid and expected trade
// amount, using chainHeight as the caller's best known chain tip.
func NewTxValidator(
	txId string, amount btcutil.Amount, chainHeight int64,
) *TxValidator {
	return &TxValidator{
		txId:        txId,
		amount:      amount,
		chainHeight: chainHeight,
		errorList:   make([]string, 0),
	}
}

// ParseJSONValidateTx validates the given status JSON and returns the number
// of confirmations of the transaction, 0 if the provider knows the tx but it
// is still in the mempool, or FailedValidation.
func (v *TxValidator) ParseJSONValidateTx(jsonTxt string) int64 {
	v.jsonTxt = jsonTxt
	if !v.initialSanityChecks() {
		return FailedValidation
	}
	return v.txConfirms()
}

// Result returns whether validation passed.
func (v *TxValidator) Result() bool {
	return len(v.errorList) == 0
}

// IsFail returns whether validation failed. It is always the negation of
// Result.
func (v *TxValidator) IsFail() bool {
	return len(v.errorList) > 0
}

// Errors returns the full diagnostic list.
func (v *TxValidator) Errors() []string {
	return v.errorList
}

// ErrorSummary returns the first 85 characters of the concatenated
// diagnostics, for compact logging.
func (v *TxValidator) ErrorSummary() string {
	summary := strings.Join(v.errorList, ", ")
	if len(summary) > errorSummaryMaxChars {
		summary = summary[:errorSummaryMaxChars]
	}
	return summary
}

func (v *TxValidator) String() string {
	return strings.Join(v.errorList, ", ")
}

// initialSanityChecks proves the provider recognizes the transaction under
// test: the JSON must be an object with a "status" object, a "txid" string
// matching the requested one, and a boolean "confirmed" field inside the
// status. The value of "confirmed" is not interpreted here, its presence
// alone means the tx is known to the provider.
func (v *TxValidator) initialSanityChecks() bool {
	if len(v.jsonTxt) == 0 {
		v.fail("empty tx status")
		return false
	}
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(v.jsonTxt), &payload); err != nil {
		v.fail(fmt.Sprintf("malformed tx status: %v", err))
		return false
	}
	status, ok := payload["status"].(map[string]interface{})
	if !ok {
		v.fail("missing status field")
		return false
	}
	txId, ok := payload["txid"].(string)
	if !ok {
		v.fail("missing txid field")
		return false
	}
	if txId != v.txId {
		v.fail(fmt.Sprintf("txid mismatch: got %s, want %s", txId, v.txId))
		return false
	}
	if _, ok := status["confirmed"].(bool); !ok {
		v.fail("missing confirmed field")
		return false
	}
	return true
}

// txConfirms derives the confirmation count from the tx block height and the
// chain tip. A tx mined in the current tip block has 1 confirmation.
func (v *TxValidator) txConfirms() int64 {
	blockHeight := v.txBlockHeight()
	if blockHeight < 0 {
		return FailedValidation
	}
	if blockHeight > 0 {
		return (v.chainHeight - blockHeight) + 1
	}
	return 0
}

// txBlockHeight returns the block height of the tx, 0 if it is known but
// still in the mempool, or -1 on error. Callers must have run the sanity
// checks first.
func (v *TxValidator) txBlockHeight() int64 {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(v.jsonTxt), &payload); err != nil {
		v.fail(fmt.Sprintf("malformed tx status: %v", err))
		return -1
	}
	status, ok := payload["status"].(map[string]interface{})
	if !ok {
		v.fail("missing status field")
		return -1
	}
	confirmed, ok := status["confirmed"].(bool)
	if !ok {
		v.fail("missing confirmed field")
		return -1
	}
	if !confirmed {
		return 0
	}
	blockHeight, ok := status["block_height"].(float64)
	if !ok {
		v.fail("confirmed tx is missing block_height field")
		return -1
	}
	return int64(blockHeight)
}

// FeeAddress returns the address of the first output, where the protocol
// pays the trade fee. It is exposed for diagnostics only: fee address
// enforcement is not part of the validation result.
func (v *TxValidator) FeeAddress() (string, error) {
	_, vout, err := v.vinAndVout()
	if err != nil {
		return "", err
	}
	feeOut, ok := vout[0].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("malformed vout entry")
	}
	address, ok := feeOut["scriptpubkey_address"].(string)
	if !ok {
		return "", fmt.Errorf("missing scriptpubkey_address field")
	}
	return address, nil
}

// FeeAmount returns the value of the first output, where the protocol pays
// the trade fee. Like FeeAddress it is exposed for diagnostics only.
func (v *TxValidator) FeeAmount() (btcutil.Amount, error) {
	_, vout, err := v.vinAndVout()
	if err != nil {
		return 0, err
	}
	feeOut, ok := vout[0].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("malformed vout entry")
	}
	value, ok := feeOut["value"].(float64)
	if !ok {
		return 0, fmt.Errorf("missing vout value field")
	}
	return btcutil.Amount(value), nil
}

// vinAndVout extracts the input and output arrays. A fee or deposit tx
// always spends at least one input and pays the fee output plus the escrow
// output, so fewer than 1 vin or 2 vouts is malformed data.
func (v *TxValidator) vinAndVout() ([]interface{}, []interface{}, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(v.jsonTxt), &payload); err != nil {
		return nil, nil, fmt.Errorf("malformed tx status: %v", err)
	}
	vin, ok := payload["vin"].([]interface{})
	if !ok {
		return nil, nil, fmt.Errorf("missing vin field")
	}
	vout, ok := payload["vout"].([]interface{})
	if !ok {
		return nil, nil, fmt.Errorf("missing vout field")
	}
	if len(vin) < 1 || len(vout) < 2 {
		return nil, nil, fmt.Errorf("not enough vins/vouts")
	}
	return vin, vout, nil
}

func (v *TxValidator) fail(reason string) {
	log.Infof("tx %s validation: %s", v.txId, reason)
	v.errorList = append(v.errorList, reason)
}
