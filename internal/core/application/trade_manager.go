package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/veilswap/veilswap-daemon/internal/core/domain"
	"github.com/veilswap/veilswap-daemon/internal/core/ports"
	"github.com/veilswap/veilswap-daemon/pkg/crawler"
)

var (
	// ErrTradeManagerStopped is returned for operations on a stopped manager.
	ErrTradeManagerStopped = errors.New("trade manager is stopped")
	// ErrNotBuyer is returned when a seller attempts a buyer-only operation.
	ErrNotBuyer = errors.New("operation is reserved to the buyer")
	// ErrNotSeller is returned when a buyer attempts a seller-only operation.
	ErrNotSeller = errors.New("operation is reserved to the seller")
)

const tradeQueueMaxSize = 32

// TradeManagerOpts defines the collaborators and policies of a TradeManager.
type TradeManagerOpts struct {
	TradeRepository       domain.TradeRepository
	WalletSvc             ports.WalletService
	NetworkSvc            ports.NetworkService
	CrawlerSvc            crawler.Service
	RequiredConfirmations int64
	// TradeTimeout is the giving-up policy for confirmations or messages
	// that never arrive. On expiry a pending trade is canceled and a funded
	// one goes to dispute, never a silent stall.
	TradeTimeout time.Duration
}

// TradeManager owns the lifecycle of all the local trades. Each trade is
// mutated by a single goroutine consuming a per-trade event queue, so
// transitions of one trade are strictly sequential while distinct trades
// proceed fully in parallel.
type TradeManager struct {
	repo          domain.TradeRepository
	walletSvc     ports.WalletService
	networkSvc    ports.NetworkService
	crawlerSvc    crawler.Service
	requiredConfs int64
	tradeTimeout  time.Duration

	queues  map[string]chan tradeEvent
	lock    sync.Mutex
	quit    chan struct{}
	wg      sync.WaitGroup
	started bool
}

type tradeEvent interface{}

type txConfirmationEvent struct {
	txId          string
	confirmations int64
}

type inboundMessageEvent struct {
	msg domain.TradeMessage
}

type timeoutEvent struct{}

type actorRequest struct {
	apply func(ctx context.Context, t *domain.Trade) (*domain.Trade, error)
	reply chan error
}

// NewTradeManager returns an unstarted TradeManager.
func NewTradeManager(opts TradeManagerOpts) *TradeManager {
	return &TradeManager{
		repo:          opts.TradeRepository,
		walletSvc:     opts.WalletSvc,
		networkSvc:    opts.NetworkSvc,
		crawlerSvc:    opts.CrawlerSvc,
		requiredConfs: opts.RequiredConfirmations,
		tradeTimeout:  opts.TradeTimeout,
		queues:        map[string]chan tradeEvent{},
		quit:          make(chan struct{}),
	}
}

// Start resumes the persisted non-terminal trades and begins consuming
// crawler events and inbound peer messages.
func (m *TradeManager) Start(ctx context.Context) error {
	m.lock.Lock()
	m.started = true
	m.lock.Unlock()

	trades, err := m.repo.GetAllTrades(ctx)
	if err != nil {
		return fmt.Errorf("resuming trades: %w", err)
	}
	for _, trade := range trades {
		if trade.IsTerminal() {
			continue
		}
		m.startTradeActor(trade.Id)
		m.observePendingTxs(trade)
	}

	go m.crawlerSvc.Start()
	go m.listenCrawlerEvents()
	go m.listenNetworkMessages()

	log.Infof("trade manager started with %d active trades", len(m.queues))
	return nil
}

// Stop shuts down the crawler and all the trade actors.
func (m *TradeManager) Stop() {
	m.lock.Lock()
	if !m.started {
		m.lock.Unlock()
		return
	}
	m.started = false
	m.lock.Unlock()

	close(m.quit)
	m.crawlerSvc.Stop()
	m.wg.Wait()
	log.Info("trade manager stopped")
}

// OpenTradeParams are the negotiated terms a new trade is built from.
type OpenTradeParams struct {
	Offer         *domain.Offer
	Role          domain.TradeRole
	Amount        btcutil.Amount
	TakerFee      btcutil.Amount
	Price         decimal.Decimal
	TakerAddress  *domain.NodeAddress
	MakerAddress  *domain.NodeAddress
	Arbitrator    *domain.NodeAddress
	PayoutAddress string
}

// OpenTrade creates a new trade from an accepted offer and starts its actor.
func (m *TradeManager) OpenTrade(
	ctx context.Context, params OpenTradeParams,
) (*domain.Trade, error) {
	trade, err := domain.NewTrade(
		params.Offer, params.Role,
		params.Amount, params.TakerFee, params.Price,
		params.TakerAddress, params.MakerAddress, params.Arbitrator,
	)
	if err != nil {
		return nil, err
	}
	trade.ProcessModel.PayoutAddress = params.PayoutAddress

	if err := m.repo.AddTrade(ctx, trade); err != nil {
		return nil, err
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	if !m.started {
		return nil, ErrTradeManagerStopped
	}
	m.startTradeActorLocked(trade.Id)

	log.WithFields(log.Fields{
		"trade":  trade.Id,
		"role":   trade.Role.String(),
		"amount": trade.Amount,
	}).Info("trade opened")

	tradesOpened.Inc()
	return trade, nil
}

// RegisterDepositTransaction records the published deposit tx, starts
// watching its confirmation and announces it to the counterpart.
func (m *TradeManager) RegisterDepositTransaction(
	ctx context.Context, tradeId, txId string,
) error {
	return m.do(ctx, tradeId, func(
		ctx context.Context, t *domain.Trade,
	) (*domain.Trade, error) {
		if err := t.ProcessModel.SetDepositTxId(txId); err != nil {
			return nil, err
		}
		m.crawlerSvc.AddObservable(&crawler.TransactionObservable{
			TxId: txId, Amount: t.Amount,
		})
		m.sendMessage(ctx, t, domain.MessageTypeDepositTxPublished, txId)
		return t, nil
	})
}

// ConfirmPaymentSent marks the fiat/altcoin payment as started. Only the
// buyer may do it, and not while the trade is under arbitration.
func (m *TradeManager) ConfirmPaymentSent(
	ctx context.Context, tradeId string,
) error {
	return m.do(ctx, tradeId, func(
		ctx context.Context, t *domain.Trade,
	) (*domain.Trade, error) {
		if !t.Role.IsBuyer() {
			return nil, ErrNotBuyer
		}
		if _, err := t.MarkPaymentSent(); err != nil {
			return nil, err
		}
		m.sendMessage(ctx, t, domain.MessageTypePaymentSent, "")
		return t, nil
	})
}

// ConfirmPaymentReceived marks the payment as received and publishes the
// payout transaction through the wallet. Only the seller may do it.
func (m *TradeManager) ConfirmPaymentReceived(
	ctx context.Context, tradeId string,
) error {
	return m.do(ctx, tradeId, func(
		ctx context.Context, t *domain.Trade,
	) (*domain.Trade, error) {
		if t.Role.IsBuyer() {
			return nil, ErrNotSeller
		}
		if _, err := t.MarkPaymentReceived(); err != nil {
			return nil, err
		}
		m.sendMessage(ctx, t, domain.MessageTypePaymentReceived, "")
		return m.publishPayout(ctx, t)
	})
}

// CancelTrade aborts a trade by mutual agreement, allowed only before the
// deposit confirms.
func (m *TradeManager) CancelTrade(ctx context.Context, tradeId string) error {
	return m.do(ctx, tradeId, func(
		ctx context.Context, t *domain.Trade,
	) (*domain.Trade, error) {
		if _, err := t.Cancel(); err != nil {
			return nil, err
		}
		tradesCanceled.Inc()
		return t, nil
	})
}

// OpenDispute opens the arbitration branch and notifies both the counterpart
// and the arbitrator.
func (m *TradeManager) OpenDispute(ctx context.Context, tradeId string) error {
	return m.do(ctx, tradeId, func(
		ctx context.Context, t *domain.Trade,
	) (*domain.Trade, error) {
		if _, err := t.OpenDispute(); err != nil {
			return nil, err
		}
		m.sendMessage(ctx, t, domain.MessageTypeDisputeOpened, "")
		if t.ArbitratorAddress != nil {
			msg := domain.NewTradeMessage(
				t.Id, domain.MessageTypeDisputeOpened, "",
			)
			if err := m.networkSvc.SendMessage(
				ctx, *t.ArbitratorAddress, msg,
			); err != nil {
				log.WithError(err).Warnf(
					"trade %s: failed to notify arbitrator", t.Id,
				)
			}
		}
		tradesDisputed.Inc()
		return t, nil
	})
}

// ArbitrateTrade escalates an open dispute to the arbitrator.
func (m *TradeManager) ArbitrateTrade(
	ctx context.Context, tradeId string,
) error {
	return m.do(ctx, tradeId, func(
		ctx context.Context, t *domain.Trade,
	) (*domain.Trade, error) {
		if _, err := t.Arbitrate(); err != nil {
			return nil, err
		}
		return t, nil
	})
}

// ResolveDispute terminates an arbitrated trade with the decision delivered
// by the arbitrator.
func (m *TradeManager) ResolveDispute(
	ctx context.Context, tradeId string,
) error {
	return m.do(ctx, tradeId, func(
		ctx context.Context, t *domain.Trade,
	) (*domain.Trade, error) {
		if _, err := t.ResolveDispute(); err != nil {
			return nil, err
		}
		m.sendMessage(ctx, t, domain.MessageTypeDisputeResolved, "")
		return t, nil
	})
}

// GetTrade returns the trade identified by its id.
func (m *TradeManager) GetTrade(
	ctx context.Context, tradeId string,
) (*domain.Trade, error) {
	return m.repo.GetTrade(ctx, tradeId)
}

/**** actor plumbing ****/

// do routes a mutation through the trade's actor queue so that it is applied
// sequentially with every other transition of the same trade.
func (m *TradeManager) do(
	ctx context.Context, tradeId string,
	apply func(ctx context.Context, t *domain.Trade) (*domain.Trade, error),
) error {
	m.lock.Lock()
	queue, ok := m.queues[tradeId]
	m.lock.Unlock()
	if !ok {
		return domain.ErrTradeNotFound
	}

	req := actorRequest{apply: apply, reply: make(chan error, 1)}
	select {
	case queue <- req:
	case <-m.quit:
		return ErrTradeManagerStopped
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-m.quit:
		return ErrTradeManagerStopped
	}
}

func (m *TradeManager) startTradeActor(tradeId string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.startTradeActorLocked(tradeId)
}

func (m *TradeManager) startTradeActorLocked(tradeId string) {
	if _, ok := m.queues[tradeId]; ok {
		return
	}
	queue := make(chan tradeEvent, tradeQueueMaxSize)
	m.queues[tradeId] = queue

	m.wg.Add(1)
	go m.tradeActorLoop(tradeId, queue)
}

func (m *TradeManager) tradeActorLoop(tradeId string, queue chan tradeEvent) {
	defer m.wg.Done()

	timer := time.NewTimer(m.tradeTimeout)
	defer timer.Stop()

	ctx := context.Background()
	for {
		select {
		case <-m.quit:
			return
		case <-timer.C:
			m.handleEvent(ctx, tradeId, timeoutEvent{})
		case event := <-queue:
			// any progress pushes the giving-up deadline forward
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(m.tradeTimeout)
			m.handleEvent(ctx, tradeId, event)
		}
	}
}

func (m *TradeManager) handleEvent(
	ctx context.Context, tradeId string, event tradeEvent,
) {
	var err error
	switch event := event.(type) {
	case actorRequest:
		err = m.repo.UpdateTrade(ctx, tradeId, func(
			t *domain.Trade,
		) (*domain.Trade, error) {
			return event.apply(ctx, t)
		})
		event.reply <- err
		return
	case txConfirmationEvent:
		err = m.handleTxConfirmation(ctx, tradeId, event)
	case inboundMessageEvent:
		err = m.handleInboundMessage(ctx, tradeId, event.msg)
	case timeoutEvent:
		err = m.handleTimeout(ctx, tradeId)
	}
	if err != nil {
		log.WithError(err).Warnf("trade %s: event not applied", tradeId)
	}
}

func (m *TradeManager) handleTxConfirmation(
	ctx context.Context, tradeId string, event txConfirmationEvent,
) error {
	return m.repo.UpdateTrade(ctx, tradeId, func(
		t *domain.Trade,
	) (*domain.Trade, error) {
		confirmationEvents.Inc()

		switch event.txId {
		case t.ProcessModel.DepositTxId:
			ok, err := t.ConfirmDeposit(event.confirmations, m.requiredConfs)
			if err != nil {
				return nil, err
			}
			if ok {
				log.WithFields(log.Fields{
					"trade":         t.Id,
					"tx":            event.txId,
					"confirmations": event.confirmations,
				}).Info("deposit confirmed")
				m.crawlerSvc.RemoveObservable(&crawler.TransactionObservable{
					TxId: event.txId,
				})
			}
		case t.ProcessModel.PayoutTxId:
			if event.confirmations < 1 {
				return t, nil
			}
			if _, err := t.Complete(time.Now().Unix()); err != nil {
				return nil, err
			}
			m.crawlerSvc.RemoveObservable(&crawler.TransactionObservable{
				TxId: event.txId,
			})
			tradesCompleted.Inc()
			log.Infof("trade %s completed", t.Id)
		}
		return t, nil
	})
}

// handleInboundMessage applies a validated protocol message from the
// counterpart. Messages are idempotent by type and trade id: an already
// logged type is acknowledged and dropped.
func (m *TradeManager) handleInboundMessage(
	ctx context.Context, tradeId string, msg domain.TradeMessage,
) error {
	return m.repo.UpdateTrade(ctx, tradeId, func(
		t *domain.Trade,
	) (*domain.Trade, error) {
		if t.ProcessModel.HasMessageOfType(msg.Type) {
			log.Debugf(
				"trade %s: duplicate %s message dropped", t.Id, msg.Type,
			)
			return t, nil
		}

		switch msg.Type {
		case domain.MessageTypeDepositTxPublished:
			if err := t.ProcessModel.SetDepositTxId(msg.TxId); err != nil {
				return nil, err
			}
			m.crawlerSvc.AddObservable(&crawler.TransactionObservable{
				TxId: msg.TxId, Amount: t.Amount,
			})
		case domain.MessageTypePaymentSent:
			if _, err := t.MarkPaymentSent(); err != nil {
				return nil, err
			}
		case domain.MessageTypePaymentReceived:
			if _, err := t.MarkPaymentReceived(); err != nil {
				return nil, err
			}
		case domain.MessageTypePayoutPublished:
			if err := t.ProcessModel.SetPayoutTxId(msg.TxId); err != nil {
				return nil, err
			}
			if _, err := t.MarkPayoutPublished(); err != nil {
				return nil, err
			}
			m.crawlerSvc.AddObservable(&crawler.TransactionObservable{
				TxId: msg.TxId, Amount: t.Amount,
			})
		case domain.MessageTypeDisputeOpened:
			if _, err := t.OpenDispute(); err != nil {
				return nil, err
			}
			tradesDisputed.Inc()
		case domain.MessageTypeDisputeResolved:
			if _, err := t.ResolveDispute(); err != nil {
				return nil, err
			}
		}

		t.ProcessModel.AddMessage(msg)
		return t, nil
	})
}

// handleTimeout gives up on a trade whose expected confirmation or message
// never arrived: a still unfunded trade is canceled, a funded one goes to
// the dispute branch.
func (m *TradeManager) handleTimeout(
	ctx context.Context, tradeId string,
) error {
	return m.repo.UpdateTrade(ctx, tradeId, func(
		t *domain.Trade,
	) (*domain.Trade, error) {
		if t.IsTerminal() {
			return t, nil
		}
		log.Warnf("trade %s timed out in status %d", t.Id, t.Status.Code)

		if t.IsPendingDeposit() {
			if _, err := t.Cancel(); err != nil {
				return nil, err
			}
			tradesCanceled.Inc()
			return t, nil
		}
		if _, err := t.OpenDispute(); err != nil {
			return nil, err
		}
		m.sendMessage(ctx, t, domain.MessageTypeDisputeOpened, "")
		tradesDisputed.Inc()
		return t, nil
	})
}

func (m *TradeManager) publishPayout(
	ctx context.Context, t *domain.Trade,
) (*domain.Trade, error) {
	payoutAmount, err := t.PayoutAmount()
	if err != nil {
		return nil, err
	}

	ins, _, err := m.walletSvc.SelectInputs(ctx, payoutAmount)
	if err != nil {
		return nil, fmt.Errorf("selecting payout inputs: %w", err)
	}

	outs := []ports.TxOutput{{
		Address: t.ProcessModel.PayoutAddress,
		Value:   payoutAmount,
	}}
	txHex, err := m.walletSvc.CreateTransaction(ctx, ins, outs)
	if err != nil {
		return nil, fmt.Errorf("creating payout tx: %w", err)
	}

	txId, err := m.walletSvc.BroadcastTransaction(ctx, txHex)
	if err != nil {
		return nil, fmt.Errorf("broadcasting payout tx: %w", err)
	}

	if err := t.ProcessModel.SetPayoutTxId(txId); err != nil {
		return nil, err
	}
	if _, err := t.MarkPayoutPublished(); err != nil {
		return nil, err
	}

	m.crawlerSvc.AddObservable(&crawler.TransactionObservable{
		TxId: txId, Amount: payoutAmount,
	})
	m.sendMessage(ctx, t, domain.MessageTypePayoutPublished, txId)

	log.WithFields(log.Fields{
		"trade":  t.Id,
		"tx":     txId,
		"amount": payoutAmount,
	}).Info("payout published")
	return t, nil
}

// sendMessage fires a protocol message towards the counterpart and logs it
// in the process model. Delivery confirmation comes back asynchronously.
func (m *TradeManager) sendMessage(
	ctx context.Context, t *domain.Trade, msgType domain.MessageType,
	txId string,
) {
	counterpart := t.CounterpartAddress()
	if counterpart == nil {
		return
	}
	msg := domain.NewTradeMessage(t.Id, msgType, txId)
	if err := m.networkSvc.SendMessage(ctx, *counterpart, msg); err != nil {
		log.WithError(err).Warnf(
			"trade %s: failed to send %s message", t.Id, msgType,
		)
		return
	}
	t.ProcessModel.AddMessage(msg)
}

func (m *TradeManager) listenCrawlerEvents() {
	eventChan := m.crawlerSvc.GetEventChannel()
	for {
		select {
		case <-m.quit:
			return
		case event := <-eventChan:
			switch event := event.(type) {
			case crawler.QuitEvent:
				return
			case crawler.TransactionEvent:
				m.routeTxEvent(event)
			}
		}
	}
}

func (m *TradeManager) routeTxEvent(event crawler.TransactionEvent) {
	trade, err := m.repo.GetTradeByTxId(context.Background(), event.TxId)
	if err != nil {
		log.WithError(err).Warnf("no trade found for tx %s", event.TxId)
		return
	}
	m.dispatch(trade.Id, txConfirmationEvent{
		txId:          event.TxId,
		confirmations: event.Confirmations,
	})
}

func (m *TradeManager) listenNetworkMessages() {
	inbound := m.networkSvc.InboundMessages()
	for {
		select {
		case <-m.quit:
			return
		case msg, ok := <-inbound:
			if !ok {
				return
			}
			m.dispatch(msg.TradeId, inboundMessageEvent{msg: msg})
		}
	}
}

func (m *TradeManager) dispatch(tradeId string, event tradeEvent) {
	m.lock.Lock()
	queue, ok := m.queues[tradeId]
	m.lock.Unlock()
	if !ok {
		log.Warnf("dropping event for unknown trade %s", tradeId)
		return
	}
	select {
	case queue <- event:
	case <-m.quit:
	}
}

func (m *TradeManager) observePendingTxs(trade *domain.Trade) {
	pm := trade.ProcessModel
	if pm == nil {
		return
	}
	if len(pm.DepositTxId) > 0 && !trade.IsDepositConfirmed() {
		m.crawlerSvc.AddObservable(&crawler.TransactionObservable{
			TxId: pm.DepositTxId, Amount: trade.Amount,
		})
	}
	if len(pm.PayoutTxId) > 0 && !trade.IsCompleted() {
		m.crawlerSvc.AddObservable(&crawler.TransactionObservable{
			TxId: pm.PayoutTxId, Amount: trade.Amount,
		})
	}
}
