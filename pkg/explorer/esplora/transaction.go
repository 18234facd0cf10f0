package esplora

import (
	"encoding/json"
	"fmt"

	"github.com/veilswap/veilswap-daemon/pkg/explorer"
)

// GetTransactionStatusJSON returns the provider's full JSON description of
// the tx (txid, vin, vout and status) as raw text.
func (e *esplora) GetTransactionStatusJSON(txid string) (string, error) {
	url := fmt.Sprintf("%s/tx/%s", e.apiURL, txid)
	return e.request("GET", url, "", nil)
}

func (e *esplora) GetTransactionStatus(
	txid string,
) (explorer.TransactionStatus, error) {
	url := fmt.Sprintf("%s/tx/%s/status", e.apiURL, txid)
	resp, err := e.request("GET", url, "", nil)
	if err != nil {
		return nil, err
	}

	var status txStatus
	if err := json.Unmarshal([]byte(resp), &status); err != nil {
		return nil, fmt.Errorf("invalid tx status JSON")
	}

	return status, nil
}

func (e *esplora) IsTransactionConfirmed(txid string) (bool, error) {
	status, err := e.GetTransactionStatus(txid)
	if err != nil {
		return false, err
	}
	return status.Confirmed(), nil
}

func (e *esplora) GetTransactionHex(txid string) (string, error) {
	url := fmt.Sprintf("%s/tx/%s/hex", e.apiURL, txid)
	return e.request("GET", url, "", nil)
}

func (e *esplora) BroadcastTransaction(txHex string) (string, error) {
	url := fmt.Sprintf("%s/tx", e.apiURL)
	headers := map[string]string{
		"Content-Type": "text/plain",
	}

	return e.request("POST", url, txHex, headers)
}
