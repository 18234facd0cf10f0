package walletrest

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/veilswap/veilswap-daemon/internal/core/domain"
	"github.com/veilswap/veilswap-daemon/internal/core/ports"
	"github.com/veilswap/veilswap-daemon/pkg/httputil"
)

// service consumes an external wallet daemon over its REST interface. Keys
// never leave the wallet daemon, this side only asks for signed
// transactions.
type service struct {
	walletAddr string
}

// NewService returns a wallet service talking to the daemon at the given
// host:port address.
func NewService(walletAddr string) ports.WalletService {
	return &service{walletAddr}
}

type selectInputsRequest struct {
	Amount int64 `json:"amount"`
}

type selectInputsResponse struct {
	Inputs []struct {
		Index             uint32 `json:"index"`
		ParentTransaction string `json:"parent_transaction"`
		Value             int64  `json:"value"`
	} `json:"inputs"`
	Change int64 `json:"change"`
}

func (s *service) SelectInputs(
	ctx context.Context, amount btcutil.Amount,
) ([]domain.RawTransactionInput, btcutil.Amount, error) {
	body, _ := json.Marshal(selectInputsRequest{Amount: int64(amount)})
	resp, err := s.post("utxos/select", string(body))
	if err != nil {
		return nil, 0, err
	}

	var parsed selectInputsResponse
	if err := json.Unmarshal([]byte(resp), &parsed); err != nil {
		return nil, 0, fmt.Errorf("invalid wallet response: %w", err)
	}

	ins := make([]domain.RawTransactionInput, 0, len(parsed.Inputs))
	for _, in := range parsed.Inputs {
		parentTx, err := hex.DecodeString(in.ParentTransaction)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid wallet response: %w", err)
		}
		ins = append(ins, domain.NewRawTransactionInput(
			in.Index, parentTx, btcutil.Amount(in.Value),
		))
	}
	return ins, btcutil.Amount(parsed.Change), nil
}

type createTxRequest struct {
	Inputs  []createTxInput  `json:"inputs"`
	Outputs []createTxOutput `json:"outputs"`
}

type createTxInput struct {
	Index             uint32 `json:"index"`
	ParentTransaction string `json:"parent_transaction"`
	Value             int64  `json:"value"`
}

type createTxOutput struct {
	Address string `json:"address"`
	Value   int64  `json:"value"`
}

func (s *service) CreateTransaction(
	ctx context.Context,
	ins []domain.RawTransactionInput, outs []ports.TxOutput,
) (string, error) {
	req := createTxRequest{
		Inputs:  make([]createTxInput, 0, len(ins)),
		Outputs: make([]createTxOutput, 0, len(outs)),
	}
	for _, in := range ins {
		req.Inputs = append(req.Inputs, createTxInput{
			Index:             in.Index,
			ParentTransaction: hex.EncodeToString(in.ParentTransaction),
			Value:             int64(in.Value),
		})
	}
	for _, out := range outs {
		req.Outputs = append(req.Outputs, createTxOutput{
			Address: out.Address,
			Value:   int64(out.Value),
		})
	}

	body, _ := json.Marshal(req)
	return s.post("transactions", string(body))
}

func (s *service) BroadcastTransaction(
	ctx context.Context, txHex string,
) (string, error) {
	return s.post("transactions/broadcast", txHex)
}

func (s *service) post(path, body string) (string, error) {
	url := fmt.Sprintf("http://%s/v1/%s", s.walletAddr, path)
	headers := map[string]string{
		"Content-Type": "application/json",
	}
	status, resp, err := httputil.NewHTTPRequest("POST", url, body, headers)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf(resp)
	}
	return resp, nil
}
