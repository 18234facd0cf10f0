package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/veilswap/veilswap-daemon/internal/core/application"
	"github.com/veilswap/veilswap-daemon/internal/core/domain"
	"github.com/veilswap/veilswap-daemon/internal/core/ports"
	"github.com/veilswap/veilswap-daemon/internal/infrastructure/storage/db/inmemory"
	"github.com/veilswap/veilswap-daemon/pkg/crawler"
)

var (
	ctx          = context.Background()
	depositTxId  = "8f78d8a2192597e01c837eb2af10bba2a81c11291a516fe51b66e6c0c5304bf4"
	payoutTxId   = "560d912df33521da808dc1f7d43a894ba7221af352328cda3f3b2ec894510477"
	waitInterval = 10 * time.Millisecond
	waitTimeout  = 3 * time.Second
)

func TestSellerHappyPath(t *testing.T) {
	manager, mocks := newTestManager(t, time.Minute)
	defer manager.Stop()

	trade, err := manager.OpenTrade(ctx, newOpenTradeParams(domain.SellerAsMaker))
	require.NoError(t, err)
	require.True(t, trade.IsPendingDeposit())

	// the deposit tx gets published and announced to the counterpart
	err = manager.RegisterDepositTransaction(ctx, trade.Id, depositTxId)
	require.NoError(t, err)
	require.True(t, mocks.crawlerSvc.isObserved(depositTxId))
	require.Len(t, mocks.networkSvc.sentMessages(), 1)

	// the crawler reports the deposit as confirmed
	mocks.crawlerSvc.pushEvent(crawler.TransactionEvent{
		TxId:          depositTxId,
		EventType:     crawler.TransactionConfirmed,
		Confirmations: 1,
		ChainHeight:   105,
	})
	waitForTrade(t, manager, trade.Id, func(tt *domain.Trade) bool {
		return tt.IsDepositConfirmed()
	})

	// the buyer announces the payment
	mocks.networkSvc.pushInbound(
		domain.NewTradeMessage(trade.Id, domain.MessageTypePaymentSent, ""),
	)
	waitForTrade(t, manager, trade.Id, func(tt *domain.Trade) bool {
		return tt.IsPaymentSent()
	})

	// the seller acknowledges and the payout gets published
	err = manager.ConfirmPaymentReceived(ctx, trade.Id)
	require.NoError(t, err)

	trade, err = manager.GetTrade(ctx, trade.Id)
	require.NoError(t, err)
	require.Equal(t, payoutTxId, trade.ProcessModel.PayoutTxId)
	require.True(t, mocks.crawlerSvc.isObserved(payoutTxId))

	// the crawler reports the payout as confirmed
	mocks.crawlerSvc.pushEvent(crawler.TransactionEvent{
		TxId:          payoutTxId,
		EventType:     crawler.TransactionConfirmed,
		Confirmations: 1,
		ChainHeight:   106,
	})
	waitForTrade(t, manager, trade.Id, func(tt *domain.Trade) bool {
		return tt.IsCompleted()
	})
}

func TestDuplicateInboundMessagesAreDropped(t *testing.T) {
	manager, mocks := newTestManager(t, time.Minute)
	defer manager.Stop()

	trade := openConfirmedTrade(t, manager, mocks, domain.SellerAsMaker)

	for i := 0; i < 3; i++ {
		mocks.networkSvc.pushInbound(
			domain.NewTradeMessage(trade.Id, domain.MessageTypePaymentSent, ""),
		)
	}
	waitForTrade(t, manager, trade.Id, func(tt *domain.Trade) bool {
		return tt.IsPaymentSent()
	})
	// give the duplicates the chance to be (wrongly) applied
	time.Sleep(100 * time.Millisecond)

	trade, err := manager.GetTrade(ctx, trade.Id)
	require.NoError(t, err)

	count := 0
	for _, msg := range trade.ProcessModel.Messages {
		if msg.Type == domain.MessageTypePaymentSent {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestOutOfOrderPayoutMessageIsRetriable(t *testing.T) {
	manager, mocks := newTestManager(t, time.Minute)
	defer manager.Stop()

	trade := openConfirmedTrade(t, manager, mocks, domain.BuyerAsTaker)
	require.NoError(t, manager.ConfirmPaymentSent(ctx, trade.Id))

	// the payout announcement overtakes the payment-received one; it must
	// not leave a half-applied txid behind
	mocks.networkSvc.pushInbound(domain.NewTradeMessage(
		trade.Id, domain.MessageTypePayoutPublished, payoutTxId,
	))
	time.Sleep(100 * time.Millisecond)

	stored, err := manager.GetTrade(ctx, trade.Id)
	require.NoError(t, err)
	require.Empty(t, stored.ProcessModel.PayoutTxId)

	// once the missing message shows up, the redelivered payout one applies
	mocks.networkSvc.pushInbound(domain.NewTradeMessage(
		trade.Id, domain.MessageTypePaymentReceived, "",
	))
	mocks.networkSvc.pushInbound(domain.NewTradeMessage(
		trade.Id, domain.MessageTypePayoutPublished, payoutTxId,
	))
	waitForTrade(t, manager, trade.Id, func(tt *domain.Trade) bool {
		return tt.ProcessModel.PayoutTxId == payoutTxId
	})
}

func TestRoleGuards(t *testing.T) {
	manager, mocks := newTestManager(t, time.Minute)
	defer manager.Stop()

	sellerTrade := openConfirmedTrade(t, manager, mocks, domain.SellerAsMaker)
	err := manager.ConfirmPaymentSent(ctx, sellerTrade.Id)
	require.EqualError(t, err, application.ErrNotBuyer.Error())

	buyerTrade := openConfirmedTrade(t, manager, mocks, domain.BuyerAsTaker)
	err = manager.ConfirmPaymentReceived(ctx, buyerTrade.Id)
	require.EqualError(t, err, application.ErrNotSeller.Error())

	err = manager.ConfirmPaymentSent(ctx, buyerTrade.Id)
	require.NoError(t, err)
}

func TestCancelTrade(t *testing.T) {
	manager, _ := newTestManager(t, time.Minute)
	defer manager.Stop()

	trade, err := manager.OpenTrade(ctx, newOpenTradeParams(domain.BuyerAsMaker))
	require.NoError(t, err)

	err = manager.CancelTrade(ctx, trade.Id)
	require.NoError(t, err)

	trade, err = manager.GetTrade(ctx, trade.Id)
	require.NoError(t, err)
	require.True(t, trade.IsCanceled())

	err = manager.CancelTrade(ctx, "not-a-trade")
	require.EqualError(t, err, domain.ErrTradeNotFound.Error())
}

func TestPendingTradeIsCanceledOnTimeout(t *testing.T) {
	manager, _ := newTestManager(t, 100*time.Millisecond)
	defer manager.Stop()

	trade, err := manager.OpenTrade(ctx, newOpenTradeParams(domain.SellerAsTaker))
	require.NoError(t, err)

	waitForTrade(t, manager, trade.Id, func(tt *domain.Trade) bool {
		return tt.IsCanceled()
	})
}

func TestFundedTradeIsDisputedOnTimeout(t *testing.T) {
	manager, mocks := newTestManager(t, 300*time.Millisecond)
	defer manager.Stop()

	trade := openConfirmedTrade(t, manager, mocks, domain.BuyerAsMaker)

	waitForTrade(t, manager, trade.Id, func(tt *domain.Trade) bool {
		return tt.DisputeState.IsOpen()
	})
}

func TestDisputeBranchOperations(t *testing.T) {
	manager, mocks := newTestManager(t, time.Minute)
	defer manager.Stop()

	trade := openConfirmedTrade(t, manager, mocks, domain.BuyerAsMaker)

	require.NoError(t, manager.OpenDispute(ctx, trade.Id))
	require.NoError(t, manager.ArbitrateTrade(ctx, trade.Id))
	require.NoError(t, manager.ResolveDispute(ctx, trade.Id))

	trade, err := manager.GetTrade(ctx, trade.Id)
	require.NoError(t, err)
	require.True(t, trade.DisputeState.IsResolved())
	require.True(t, trade.IsTerminal())
	// both the counterpart and the arbitrator got the dispute notice
	require.GreaterOrEqual(t, len(mocks.networkSvc.sentMessages()), 2)
}

/**** helpers ****/

type testMocks struct {
	walletSvc  *mockWallet
	networkSvc *mockNetwork
	crawlerSvc *mockCrawler
}

func newTestManager(
	t *testing.T, timeout time.Duration,
) (*application.TradeManager, testMocks) {
	t.Helper()

	mocks := testMocks{
		walletSvc:  &mockWallet{payoutTxId: payoutTxId},
		networkSvc: newMockNetwork(),
		crawlerSvc: newMockCrawler(),
	}
	manager := application.NewTradeManager(application.TradeManagerOpts{
		TradeRepository:       inmemory.NewTradeRepositoryImpl(inmemory.NewTradeStore()),
		WalletSvc:             mocks.walletSvc,
		NetworkSvc:            mocks.networkSvc,
		CrawlerSvc:            mocks.crawlerSvc,
		RequiredConfirmations: 1,
		TradeTimeout:          timeout,
	})
	require.NoError(t, manager.Start(ctx))
	return manager, mocks
}

func newOpenTradeParams(role domain.TradeRole) application.OpenTradeParams {
	return application.OpenTradeParams{
		Offer: &domain.Offer{
			Id:                    "offer-1",
			Direction:             domain.OfferDirectionSell,
			Amount:                100000,
			Price:                 decimal.NewFromInt(40000),
			BuyerSecurityDeposit:  10000,
			SellerSecurityDeposit: 20000,
			BaseCurrency:          "BTC",
			QuoteCurrency:         "EUR",
		},
		Role:          role,
		Amount:        100000,
		TakerFee:      300,
		Price:         decimal.NewFromInt(40000),
		TakerAddress:  &domain.NodeAddress{HostName: "taker.onion", Port: 9735},
		MakerAddress:  &domain.NodeAddress{HostName: "maker.onion", Port: 9735},
		Arbitrator:    &domain.NodeAddress{HostName: "arbitrator.onion", Port: 9735},
		PayoutAddress: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
	}
}

func openConfirmedTrade(
	t *testing.T, manager *application.TradeManager, mocks testMocks,
	role domain.TradeRole,
) *domain.Trade {
	t.Helper()

	trade, err := manager.OpenTrade(ctx, newOpenTradeParams(role))
	require.NoError(t, err)

	require.NoError(
		t, manager.RegisterDepositTransaction(ctx, trade.Id, depositTxId),
	)
	mocks.crawlerSvc.pushEvent(crawler.TransactionEvent{
		TxId:          depositTxId,
		EventType:     crawler.TransactionConfirmed,
		Confirmations: 1,
		ChainHeight:   105,
	})
	waitForTrade(t, manager, trade.Id, func(tt *domain.Trade) bool {
		return tt.IsDepositConfirmed()
	})
	return trade
}

func waitForTrade(
	t *testing.T, manager *application.TradeManager, tradeId string,
	predicate func(t *domain.Trade) bool,
) {
	t.Helper()

	require.Eventually(t, func() bool {
		trade, err := manager.GetTrade(ctx, tradeId)
		if err != nil {
			return false
		}
		return predicate(trade)
	}, waitTimeout, waitInterval)
}

/**** mocks ****/

type mockWallet struct {
	payoutTxId string
}

func (m *mockWallet) SelectInputs(
	_ context.Context, amount btcutil.Amount,
) ([]domain.RawTransactionInput, btcutil.Amount, error) {
	in := domain.NewRawTransactionInput(0, []byte{0x01, 0x02}, amount+1000)
	return []domain.RawTransactionInput{in}, 1000, nil
}

func (m *mockWallet) CreateTransaction(
	_ context.Context, _ []domain.RawTransactionInput, _ []ports.TxOutput,
) (string, error) {
	return "020000000001", nil
}

func (m *mockWallet) BroadcastTransaction(
	_ context.Context, _ string,
) (string, error) {
	return m.payoutTxId, nil
}

type mockNetwork struct {
	lock    sync.Mutex
	sent    []domain.TradeMessage
	inbound chan domain.TradeMessage
}

func newMockNetwork() *mockNetwork {
	return &mockNetwork{inbound: make(chan domain.TradeMessage, 10)}
}

func (m *mockNetwork) SendMessage(
	_ context.Context, _ domain.NodeAddress, msg domain.TradeMessage,
) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockNetwork) InboundMessages() <-chan domain.TradeMessage {
	return m.inbound
}

func (m *mockNetwork) sentMessages() []domain.TradeMessage {
	m.lock.Lock()
	defer m.lock.Unlock()
	msgs := make([]domain.TradeMessage, len(m.sent))
	copy(msgs, m.sent)
	return msgs
}

func (m *mockNetwork) pushInbound(msg domain.TradeMessage) {
	m.inbound <- msg
}

type mockCrawler struct {
	lock      sync.Mutex
	observed  map[string]bool
	eventChan chan crawler.Event
}

func newMockCrawler() *mockCrawler {
	return &mockCrawler{
		observed:  map[string]bool{},
		eventChan: make(chan crawler.Event, 10),
	}
}

func (m *mockCrawler) Start() {}

func (m *mockCrawler) Stop() {
	m.eventChan <- crawler.QuitEvent{}
}

func (m *mockCrawler) AddObservable(observable crawler.Observable) {
	txObservable, ok := observable.(*crawler.TransactionObservable)
	if !ok {
		return
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.observed[txObservable.TxId] = true
}

func (m *mockCrawler) RemoveObservable(observable crawler.Observable) {
	txObservable, ok := observable.(*crawler.TransactionObservable)
	if !ok {
		return
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.observed, txObservable.TxId)
}

func (m *mockCrawler) GetEventChannel() chan crawler.Event {
	return m.eventChan
}

func (m *mockCrawler) isObserved(txId string) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.observed[txId]
}

func (m *mockCrawler) pushEvent(event crawler.Event) {
	m.eventChan <- event
}
