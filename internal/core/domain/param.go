package domain

import (
	"strconv"

	"github.com/btcsuite/btcd/btcutil"
)

const (
	ParamTypeUndefined ParamType = iota
	ParamTypeBtc
	ParamTypePercent
	ParamTypeAddress
)

// ParamType determines how the default value of a Param is parsed.
type ParamType int

// Param is one of a closed set of protocol constants. MaxDecrease and
// MaxIncrease bound how far a future governance change may move the value
// from the previous one, 0 meaning the bound is not checked.
type Param struct {
	Name         string
	DefaultValue string
	Type         ParamType
	MaxDecrease  float64
	MaxIncrease  float64
}

// Fee in BTC for a 1 BTC trade. 0.001 is 0.1%.
var (
	ParamDefaultMakerFeeBtc = Param{"DEFAULT_MAKER_FEE_BTC", "0.001", ParamTypeBtc, 5, 5}
	ParamDefaultTakerFeeBtc = Param{"DEFAULT_TAKER_FEE_BTC", "0.003", ParamTypeBtc, 5, 5}
	ParamMinMakerFeeBtc     = Param{"MIN_MAKER_FEE_BTC", "0.00005", ParamTypeBtc, 5, 5}
	ParamMinTakerFeeBtc     = Param{"MIN_TAKER_FEE_BTC", "0.00005", ParamTypeBtc, 5, 5}

	// ParamRecipientBtcAddress is the recipient of BTC trade fees and the
	// destination of the time-locked payout tx if the traders do not
	// cooperate.
	ParamRecipientBtcAddress = Param{
		"RECIPIENT_BTC_ADDRESS", "1BVxNn3T12veSK6DgqwU4Hdn7QHcDDRag7",
		ParamTypeAddress, 0, 0,
	}
)

var paramsByName = func() map[string]Param {
	all := []Param{
		ParamDefaultMakerFeeBtc,
		ParamDefaultTakerFeeBtc,
		ParamMinMakerFeeBtc,
		ParamMinTakerFeeBtc,
		ParamRecipientBtcAddress,
	}
	m := make(map[string]Param, len(all))
	for _, p := range all {
		m[p.Name] = p
	}
	return m
}()

// ParamByName looks up a Param in the table.
func ParamByName(name string) (Param, error) {
	p, ok := paramsByName[name]
	if !ok {
		return Param{}, ErrParamNotFound
	}
	return p, nil
}

// AmountValue parses the default value of a BTC-kind param as an amount in
// satoshis.
func (p Param) AmountValue() (btcutil.Amount, error) {
	if p.Type != ParamTypeBtc {
		return 0, ErrParamNotAmount
	}
	btc, err := strconv.ParseFloat(p.DefaultValue, 64)
	if err != nil {
		return 0, err
	}
	return btcutil.NewAmount(btc)
}

// AddressValue returns the default value of an address-kind param.
func (p Param) AddressValue() (string, error) {
	if p.Type != ParamTypeAddress {
		return "", ErrParamNotAddress
	}
	return p.DefaultValue, nil
}
