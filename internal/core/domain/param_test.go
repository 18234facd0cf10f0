package domain_test

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"
	"github.com/veilswap/veilswap-daemon/internal/core/domain"
)

func TestParamByName(t *testing.T) {
	tests := []struct {
		name     string
		expected domain.Param
	}{
		{"DEFAULT_MAKER_FEE_BTC", domain.ParamDefaultMakerFeeBtc},
		{"DEFAULT_TAKER_FEE_BTC", domain.ParamDefaultTakerFeeBtc},
		{"MIN_MAKER_FEE_BTC", domain.ParamMinMakerFeeBtc},
		{"MIN_TAKER_FEE_BTC", domain.ParamMinTakerFeeBtc},
		{"RECIPIENT_BTC_ADDRESS", domain.ParamRecipientBtcAddress},
	}

	for i := range tests {
		tt := tests[i]

		t.Run(tt.name, func(t *testing.T) {
			p, err := domain.ParamByName(tt.name)
			require.NoError(t, err)
			require.Equal(t, tt.expected, p)
		})
	}
}

func TestFailingParamByName(t *testing.T) {
	_, err := domain.ParamByName("NOT_A_PARAM")
	require.EqualError(t, err, domain.ErrParamNotFound.Error())
}

func TestParamAmountValue(t *testing.T) {
	tests := []struct {
		param    domain.Param
		expected btcutil.Amount
	}{
		{domain.ParamDefaultMakerFeeBtc, 100000},
		{domain.ParamDefaultTakerFeeBtc, 300000},
		{domain.ParamMinMakerFeeBtc, 5000},
		{domain.ParamMinTakerFeeBtc, 5000},
	}

	for i := range tests {
		tt := tests[i]

		t.Run(tt.param.Name, func(t *testing.T) {
			amount, err := tt.param.AmountValue()
			require.NoError(t, err)
			require.Equal(t, tt.expected, amount)
		})
	}
}

func TestParamAddressValue(t *testing.T) {
	addr, err := domain.ParamRecipientBtcAddress.AddressValue()
	require.NoError(t, err)
	require.Equal(t, "1BVxNn3T12veSK6DgqwU4Hdn7QHcDDRag7", addr)
}

func TestFailingParamTypeMismatch(t *testing.T) {
	_, err := domain.ParamRecipientBtcAddress.AmountValue()
	require.EqualError(t, err, domain.ErrParamNotAmount.Error())

	_, err = domain.ParamDefaultMakerFeeBtc.AddressValue()
	require.EqualError(t, err, domain.ErrParamNotAddress.Error())
}

func TestParamChangeBounds(t *testing.T) {
	for _, p := range []domain.Param{
		domain.ParamDefaultMakerFeeBtc,
		domain.ParamDefaultTakerFeeBtc,
		domain.ParamMinMakerFeeBtc,
		domain.ParamMinTakerFeeBtc,
	} {
		require.Equal(t, float64(5), p.MaxDecrease)
		require.Equal(t, float64(5), p.MaxIncrease)
	}

	// an address has no meaningful numeric bound
	require.Zero(t, domain.ParamRecipientBtcAddress.MaxDecrease)
	require.Zero(t, domain.ParamRecipientBtcAddress.MaxIncrease)
}
