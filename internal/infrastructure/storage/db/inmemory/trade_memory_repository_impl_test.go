package inmemory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/veilswap/veilswap-daemon/internal/core/domain"
	"github.com/veilswap/veilswap-daemon/internal/infrastructure/storage/db/inmemory"
)

var ctx = context.Background()

func TestTradeRepository(t *testing.T) {
	repo := inmemory.NewTradeRepositoryImpl(inmemory.NewTradeStore())
	trade := newTestTrade(t)

	require.NoError(t, repo.AddTrade(ctx, trade))

	found, err := repo.GetTrade(ctx, trade.Id)
	require.NoError(t, err)
	require.Equal(t, trade.Id, found.Id)

	all, err := repo.GetAllTrades(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	err = repo.UpdateTrade(ctx, trade.Id, func(
		tt *domain.Trade,
	) (*domain.Trade, error) {
		if err := tt.ProcessModel.SetDepositTxId("dddd"); err != nil {
			return nil, err
		}
		return tt, nil
	})
	require.NoError(t, err)

	byTxId, err := repo.GetTradeByTxId(ctx, "dddd")
	require.NoError(t, err)
	require.Equal(t, trade.Id, byTxId.Id)
}

func TestUpdateTradeRollsBackOnError(t *testing.T) {
	repo := inmemory.NewTradeRepositoryImpl(inmemory.NewTradeStore())
	trade := newTestTrade(t)
	require.NoError(t, repo.AddTrade(ctx, trade))

	// emulates an out-of-order payout message: the txid write succeeds, the
	// status transition after it fails
	expectedErr := errors.New("trade must advance first")
	err := repo.UpdateTrade(ctx, trade.Id, func(
		tt *domain.Trade,
	) (*domain.Trade, error) {
		if err := tt.ProcessModel.SetPayoutTxId("pppp"); err != nil {
			return nil, err
		}
		return nil, expectedErr
	})
	require.EqualError(t, err, expectedErr.Error())

	stored, err := repo.GetTrade(ctx, trade.Id)
	require.NoError(t, err)
	require.Empty(t, stored.ProcessModel.PayoutTxId)

	// the id is still settable once the trade catches up
	err = repo.UpdateTrade(ctx, trade.Id, func(
		tt *domain.Trade,
	) (*domain.Trade, error) {
		if err := tt.ProcessModel.SetPayoutTxId("pppp"); err != nil {
			return nil, err
		}
		return tt, nil
	})
	require.NoError(t, err)
}

func TestReturnedTradesAreDetachedFromStore(t *testing.T) {
	repo := inmemory.NewTradeRepositoryImpl(inmemory.NewTradeStore())
	trade := newTestTrade(t)
	require.NoError(t, repo.AddTrade(ctx, trade))

	got, err := repo.GetTrade(ctx, trade.Id)
	require.NoError(t, err)
	require.NoError(t, got.ProcessModel.SetDepositTxId("dddd"))
	got.Amount = 1

	stored, err := repo.GetTrade(ctx, trade.Id)
	require.NoError(t, err)
	require.Empty(t, stored.ProcessModel.DepositTxId)
	require.Equal(t, trade.Amount, stored.Amount)
}

func TestFailingTradeRepository(t *testing.T) {
	repo := inmemory.NewTradeRepositoryImpl(inmemory.NewTradeStore())

	_, err := repo.GetTrade(ctx, "not-a-trade")
	require.EqualError(t, err, domain.ErrTradeNotFound.Error())

	_, err = repo.GetTradeByTxId(ctx, "not-a-tx")
	require.EqualError(t, err, domain.ErrTradeNotFound.Error())

	err = repo.UpdateTrade(ctx, "not-a-trade", func(
		tt *domain.Trade,
	) (*domain.Trade, error) {
		return tt, nil
	})
	require.EqualError(t, err, domain.ErrTradeNotFound.Error())
}

func newTestTrade(t *testing.T) *domain.Trade {
	t.Helper()

	trade, err := domain.NewTrade(
		&domain.Offer{
			Id:                    "offer-1",
			Amount:                100000,
			Price:                 decimal.NewFromInt(40000),
			BuyerSecurityDeposit:  10000,
			SellerSecurityDeposit: 20000,
		},
		domain.BuyerAsTaker, 100000, 300, decimal.NewFromInt(40000),
		nil, nil, nil,
	)
	require.NoError(t, err)
	return trade
}
