package crawler

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/veilswap/veilswap-daemon/pkg/explorer"
	"golang.org/x/time/rate"
)

var observationInterval = 100

func TestObserveConfirmedTx(t *testing.T) {
	txId := "69fe1192a74e9c9a874ac1a1f80c244ce801b359e86f3c8d08084f93844e3845"
	observable := &TransactionObservable{TxId: txId, Amount: 100000}
	require.Equal(t, txId, observable.key())

	eventChan := make(chan Event)
	errChan := make(chan error)
	handler := newTestHandler(
		observable,
		mockExplorer{confirmed: true, blockHeight: 100, tipHeight: 105},
		eventChan, errChan,
	)
	defer handler.stop()

	event, err := listenToChannels(eventChan, errChan)
	require.NoError(t, err)
	require.Equal(t, TransactionConfirmed, event.Type())

	txEvent, ok := event.(TransactionEvent)
	require.True(t, ok)
	require.Equal(t, txId, txEvent.TxId)
	require.Equal(t, int64(6), txEvent.Confirmations)
	require.Equal(t, int64(105), txEvent.ChainHeight)
}

func TestObserveUnconfirmedTx(t *testing.T) {
	txId := "560d912df33521da808dc1f7d43a894ba7221af352328cda3f3b2ec894510477"
	observable := &TransactionObservable{TxId: txId, Amount: 100000}

	eventChan := make(chan Event)
	errChan := make(chan error)
	handler := newTestHandler(
		observable, mockExplorer{tipHeight: 105}, eventChan, errChan,
	)
	defer handler.stop()

	event, err := listenToChannels(eventChan, errChan)
	require.NoError(t, err)
	require.Equal(t, TransactionUnConfirmed, event.Type())
	require.Zero(t, event.(TransactionEvent).Confirmations)
}

func TestObserveRejectsInvalidProviderPayload(t *testing.T) {
	txId := "69fe1192a74e9c9a874ac1a1f80c244ce801b359e86f3c8d08084f93844e3845"
	observable := &TransactionObservable{TxId: txId, Amount: 100000}

	eventChan := make(chan Event)
	errChan := make(chan error)
	handler := newTestHandler(
		observable, mockExplorer{tipHeight: 105, statusJSON: `{"txid": 12}`},
		eventChan, errChan,
	)
	defer handler.stop()

	_, err := listenToChannels(eventChan, errChan)
	require.Error(t, err)
	require.Contains(t, err.Error(), txId)
}

func TestCrawlerRoutesErrorsToHandler(t *testing.T) {
	handledErrs := make(chan error, 1)

	crawlSvc := NewService(Opts{
		ExplorerSvc:            mockExplorer{failing: true},
		IntervalInMilliseconds: observationInterval,
		RequestsPerSecond:      10,
		ErrorHandler: func(err error) {
			select {
			case handledErrs <- err:
			default:
			}
		},
	})

	go crawlSvc.Start()

	observable := &TransactionObservable{TxId: "aaaa", Amount: 1000}
	crawlSvc.AddObservable(observable)
	// adding the same key twice must not spawn a second handler
	crawlSvc.AddObservable(&TransactionObservable{TxId: "aaaa", Amount: 1000})

	select {
	case err := <-handledErrs:
		require.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("no error routed to the handler")
	}

	crawlSvc.RemoveObservable(observable)
	crawlSvc.Stop()

	event := <-crawlSvc.GetEventChannel()
	require.Equal(t, QuitSignal, event.Type())
}

func TestStopWaitsForFreshObservables(t *testing.T) {
	crawlSvc := NewService(Opts{
		ExplorerSvc:            mockExplorer{tipHeight: 105},
		IntervalInMilliseconds: observationInterval,
		RequestsPerSecond:      10,
		ErrorHandler:           func(err error) {},
	})
	go crawlSvc.Start()

	// stopping right after adding must not race the handler startup
	for i := 0; i < 5; i++ {
		crawlSvc.AddObservable(&TransactionObservable{
			TxId: fmt.Sprintf("%d", i), Amount: 1000,
		})
	}
	crawlSvc.Stop()

	for {
		event := <-crawlSvc.GetEventChannel()
		if event.Type() == QuitSignal {
			break
		}
	}
}

// newTestHandler spawns a started handler the way the crawler service does,
// wait-group increment included.
func newTestHandler(
	observable Observable, explorerSvc explorer.Service,
	eventChan chan Event, errChan chan error,
) *observableHandler {
	wg := &sync.WaitGroup{}
	handler := newObservableHandler(
		observable, explorerSvc, wg, observationInterval, eventChan, errChan,
		newTestRateLimiter(),
	)
	wg.Add(1)
	go handler.start()
	return handler
}

func listenToChannels(eventChan chan Event, errChan chan error) (Event, error) {
	select {
	case err := <-errChan:
		return nil, err
	case event := <-eventChan:
		return event, nil
	}
}

func newTestRateLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(10*time.Millisecond), 1)
}

type mockExplorer struct {
	confirmed   bool
	blockHeight int
	tipHeight   int
	statusJSON  string
	failing     bool
}

func (m mockExplorer) GetBlockHeight() (int, error) {
	if m.failing {
		return 0, errors.New("provider unreachable")
	}
	return m.tipHeight, nil
}

func (m mockExplorer) GetTransactionStatusJSON(txid string) (string, error) {
	if m.failing {
		return "", errors.New("provider unreachable")
	}
	if len(m.statusJSON) > 0 {
		return m.statusJSON, nil
	}
	if m.confirmed {
		return fmt.Sprintf(
			`{"txid": "%s", "status": {"confirmed": true, "block_height": %d}}`,
			txid, m.blockHeight,
		), nil
	}
	return fmt.Sprintf(
		`{"txid": "%s", "status": {"confirmed": false}}`, txid,
	), nil
}

func (m mockExplorer) GetTransactionHex(txid string) (string, error) {
	return "", errors.New("implement me")
}

func (m mockExplorer) GetTransactionStatus(txid string) (explorer.TransactionStatus, error) {
	return nil, errors.New("implement me")
}

func (m mockExplorer) IsTransactionConfirmed(txid string) (bool, error) {
	return false, errors.New("implement me")
}

func (m mockExplorer) BroadcastTransaction(txhex string) (string, error) {
	return "", errors.New("implement me")
}
