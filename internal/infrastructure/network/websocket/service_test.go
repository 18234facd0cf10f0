package wsnetwork_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/veilswap/veilswap-daemon/internal/core/domain"
	wsnetwork "github.com/veilswap/veilswap-daemon/internal/infrastructure/network/websocket"
)

var ctx = context.Background()

func TestSendAndReceiveMessage(t *testing.T) {
	port := freePort(t)
	svc, err := wsnetwork.NewService(port)
	require.NoError(t, err)
	defer svc.Close()

	addr := domain.NodeAddress{HostName: "localhost", Port: port}
	msg := domain.NewTradeMessage("trade-1", domain.MessageTypePaymentSent, "")

	// the endpoint needs a moment to start listening
	require.Eventually(t, func() bool {
		return svc.SendMessage(ctx, addr, msg) == nil
	}, 3*time.Second, 50*time.Millisecond)

	select {
	case got := <-svc.InboundMessages():
		require.Equal(t, msg.Id, got.Id)
		require.Equal(t, "trade-1", got.TradeId)
		require.Equal(t, domain.MessageTypePaymentSent, got.Type)
	case <-time.After(3 * time.Second):
		t.Fatal("no inbound message delivered")
	}
}

func TestCloseWithOpenPeerConnection(t *testing.T) {
	port := freePort(t)
	svc, err := wsnetwork.NewService(port)
	require.NoError(t, err)

	url := fmt.Sprintf("ws://localhost:%d/messages", port)
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		c, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 3*time.Second, 50*time.Millisecond)
	defer conn.Close()

	require.NoError(t, svc.Close())
	// closing twice is a no-op
	require.NoError(t, svc.Close())

	// a late write from a peer must not bring the endpoint down
	payload, _ := json.Marshal(
		domain.NewTradeMessage("trade-1", domain.MessageTypePaymentSent, ""),
	)
	conn.WriteMessage(websocket.TextMessage, payload)
	time.Sleep(100 * time.Millisecond)
}

func freePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}
