package dbbadger

import (
	"context"

	"github.com/timshannon/badgerhold/v4"
	"github.com/veilswap/veilswap-daemon/internal/core/domain"
)

type tradeRepositoryImpl struct {
	db *DbManager
}

// NewTradeRepositoryImpl returns a badger backed TradeRepository.
func NewTradeRepositoryImpl(db *DbManager) domain.TradeRepository {
	return tradeRepositoryImpl{
		db: db,
	}
}

func (t tradeRepositoryImpl) AddTrade(
	_ context.Context, trade *domain.Trade,
) error {
	if err := t.db.Store.Insert(trade.Id, trade); err != nil {
		if err == badgerhold.ErrKeyExists {
			return nil
		}
		return err
	}
	return nil
}

func (t tradeRepositoryImpl) GetTrade(
	_ context.Context, tradeId string,
) (*domain.Trade, error) {
	return t.getTrade(tradeId)
}

func (t tradeRepositoryImpl) GetAllTrades(
	_ context.Context,
) ([]*domain.Trade, error) {
	var trades []domain.Trade
	if err := t.db.Store.Find(&trades, nil); err != nil {
		return nil, err
	}

	result := make([]*domain.Trade, 0, len(trades))
	for i := range trades {
		result = append(result, &trades[i])
	}
	return result, nil
}

func (t tradeRepositoryImpl) GetTradeByTxId(
	ctx context.Context, txId string,
) (*domain.Trade, error) {
	trades, err := t.GetAllTrades(ctx)
	if err != nil {
		return nil, err
	}

	for _, trade := range trades {
		pm := trade.ProcessModel
		if pm == nil {
			continue
		}
		if pm.MakerFeeTxId == txId || pm.TakerFeeTxId == txId ||
			pm.DepositTxId == txId || pm.PayoutTxId == txId {
			return trade, nil
		}
	}
	return nil, domain.ErrTradeNotFound
}

func (t tradeRepositoryImpl) UpdateTrade(
	_ context.Context, tradeId string,
	updateFn func(t *domain.Trade) (*domain.Trade, error),
) error {
	currentTrade, err := t.getTrade(tradeId)
	if err != nil {
		return err
	}

	updatedTrade, err := updateFn(currentTrade)
	if err != nil {
		return err
	}

	return t.db.Store.Update(tradeId, updatedTrade)
}

func (t tradeRepositoryImpl) getTrade(tradeId string) (*domain.Trade, error) {
	var trade domain.Trade
	if err := t.db.Store.Get(tradeId, &trade); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrTradeNotFound
		}
		return nil, err
	}
	return &trade, nil
}
