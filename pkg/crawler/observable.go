package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/btcsuite/btcd/btcutil"
	log "github.com/sirupsen/logrus"
	"github.com/veilswap/veilswap-daemon/pkg/explorer"
	"github.com/veilswap/veilswap-daemon/pkg/mempool"
)

const (
	New       Status = "NEW"
	Waiting   Status = "WAITING"
	Processed Status = "PROCESSED"
)

type Status string

type observableStatus struct {
	sync.RWMutex
	status Status
}

func newObservableStatus() *observableStatus {
	return &observableStatus{
		status: New,
	}
}

func (o *observableStatus) Get() Status {
	o.RLock()
	defer o.RUnlock()
	return o.status
}

func (o *observableStatus) Set(status Status) {
	o.Lock()
	defer o.Unlock()
	o.status = status
}

// TransactionObservable watches a fee, deposit or payout transaction until
// the caller stops observing it. Every poll fetches the chain tip and the
// provider's status JSON and runs them through the validator, so a
// malformed or mismatching payload produces an error instead of an event.
type TransactionObservable struct {
	TxId   string
	Amount btcutil.Amount
}

func (t *TransactionObservable) observe(
	explorerSvc explorer.Service,
	errChan chan error,
	eventChan chan Event,
	observableStatus *observableStatus,
	rateLimiter *rate.Limiter,
) {
	if t == nil {
		return
	}

	observableStatus.Set(Waiting)
	if err := rateLimiter.Wait(context.Background()); err != nil {
		errChan <- err
		return
	}

	chainHeight, err := explorerSvc.GetBlockHeight()
	if err != nil {
		errChan <- err
		return
	}

	jsonTxt, err := explorerSvc.GetTransactionStatusJSON(t.TxId)
	if err != nil {
		errChan <- err
		return
	}

	observableStatus.Set(Processed)

	validator := mempool.NewTxValidator(t.TxId, t.Amount, int64(chainHeight))
	confirmations := validator.ParseJSONValidateTx(jsonTxt)
	if validator.IsFail() {
		errChan <- fmt.Errorf(
			"tx %s status rejected: %s", t.TxId, validator.ErrorSummary(),
		)
		return
	}

	eventType := TransactionUnConfirmed
	if confirmations > 0 {
		eventType = TransactionConfirmed
	}

	event := TransactionEvent{
		TxId:          t.TxId,
		EventType:     eventType,
		Confirmations: confirmations,
		ChainHeight:   int64(chainHeight),
	}

	eventChan <- event
}

func (t *TransactionObservable) key() string {
	return t.TxId
}

type observableHandler struct {
	observable       Observable
	explorerSvc      explorer.Service
	wg               *sync.WaitGroup
	ticker           *time.Ticker
	eventChan        chan Event
	errChan          chan error
	stopChan         chan int
	observableStatus *observableStatus
	rateLimiter      *rate.Limiter
}

func newObservableHandler(
	observable Observable,
	explorerSvc explorer.Service,
	wg *sync.WaitGroup,
	interval int,
	eventChan chan Event,
	errChan chan error,
	rateLimiter *rate.Limiter,
) *observableHandler {
	ticker := time.NewTicker(time.Duration(interval) * time.Millisecond)
	stopChan := make(chan int, 1)

	return &observableHandler{
		observable,
		explorerSvc,
		wg,
		ticker,
		eventChan,
		errChan,
		stopChan,
		newObservableStatus(),
		rateLimiter,
	}
}

// start consumes the ticker until stop is called. The caller must have
// incremented the wait group before spawning it.
func (oh *observableHandler) start() {
	log.Debugf("start observing tx: %v", oh.observable.key())
	for {
		select {
		case <-oh.ticker.C:
			if oh.observableStatus.Get() != Waiting {
				oh.observable.observe(
					oh.explorerSvc,
					oh.errChan,
					oh.eventChan,
					oh.observableStatus,
					oh.rateLimiter,
				)
			}
		case <-oh.stopChan:
			oh.ticker.Stop()
			close(oh.stopChan)
			return
		}
	}
}

func (oh *observableHandler) stop() {
	log.Debugf("stop observing tx: %v", oh.observable.key())
	oh.stopChan <- 1
	oh.wg.Done()
}
