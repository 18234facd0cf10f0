package inmemory

import (
	"context"
	"sync"

	"github.com/veilswap/veilswap-daemon/internal/core/domain"
)

type tradeInmemoryStore struct {
	trades map[string]*domain.Trade
	locker *sync.Mutex
}

// NewTradeStore returns the in-memory storage backing a TradeRepository.
func NewTradeStore() *tradeInmemoryStore {
	return &tradeInmemoryStore{
		trades: map[string]*domain.Trade{},
		locker: &sync.Mutex{},
	}
}

type tradeRepositoryImpl struct {
	store *tradeInmemoryStore
}

// NewTradeRepositoryImpl returns a new inmemory TradeRepository implementation.
func NewTradeRepositoryImpl(store *tradeInmemoryStore) domain.TradeRepository {
	return &tradeRepositoryImpl{store}
}

func (r tradeRepositoryImpl) AddTrade(
	_ context.Context, trade *domain.Trade,
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	r.store.trades[trade.Id] = copyTrade(trade)
	return nil
}

func (r tradeRepositoryImpl) GetTrade(
	_ context.Context, tradeId string,
) (*domain.Trade, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	trade, err := r.getTrade(tradeId)
	if err != nil {
		return nil, err
	}
	return copyTrade(trade), nil
}

func (r tradeRepositoryImpl) GetAllTrades(
	_ context.Context,
) ([]*domain.Trade, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	trades := make([]*domain.Trade, 0, len(r.store.trades))
	for _, trade := range r.store.trades {
		trades = append(trades, copyTrade(trade))
	}
	return trades, nil
}

func (r tradeRepositoryImpl) GetTradeByTxId(
	_ context.Context, txId string,
) (*domain.Trade, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	for _, trade := range r.store.trades {
		pm := trade.ProcessModel
		if pm == nil {
			continue
		}
		if pm.MakerFeeTxId == txId || pm.TakerFeeTxId == txId ||
			pm.DepositTxId == txId || pm.PayoutTxId == txId {
			return copyTrade(trade), nil
		}
	}
	return nil, domain.ErrTradeNotFound
}

// UpdateTrade applies the closure to a copy of the stored trade, so a failing
// update leaves the store untouched.
func (r tradeRepositoryImpl) UpdateTrade(
	_ context.Context, tradeId string,
	updateFn func(t *domain.Trade) (*domain.Trade, error),
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	currentTrade, err := r.getTrade(tradeId)
	if err != nil {
		return err
	}

	updatedTrade, err := updateFn(copyTrade(currentTrade))
	if err != nil {
		return err
	}

	r.store.trades[tradeId] = updatedTrade
	return nil
}

func (r tradeRepositoryImpl) getTrade(tradeId string) (*domain.Trade, error) {
	trade, ok := r.store.trades[tradeId]
	if !ok {
		return nil, domain.ErrTradeNotFound
	}
	return trade, nil
}

func copyTrade(t *domain.Trade) *domain.Trade {
	if t == nil {
		return nil
	}
	trade := *t
	if t.Offer != nil {
		offer := *t.Offer
		trade.Offer = &offer
	}
	trade.TakerAddress = copyAddress(t.TakerAddress)
	trade.MakerAddress = copyAddress(t.MakerAddress)
	trade.ArbitratorAddress = copyAddress(t.ArbitratorAddress)
	if t.ProcessModel != nil {
		pm := *t.ProcessModel
		pm.MakerPubKey = append([]byte(nil), t.ProcessModel.MakerPubKey...)
		pm.TakerPubKey = append([]byte(nil), t.ProcessModel.TakerPubKey...)
		pm.Messages = append(
			[]domain.TradeMessage(nil), t.ProcessModel.Messages...,
		)
		trade.ProcessModel = &pm
	}
	return &trade
}

func copyAddress(addr *domain.NodeAddress) *domain.NodeAddress {
	if addr == nil {
		return nil
	}
	addrCopy := *addr
	return &addrCopy
}
