package wsnetwork

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/veilswap/veilswap-daemon/internal/core/domain"
	"github.com/veilswap/veilswap-daemon/internal/core/ports"
)

const inboundQueueMaxSize = 100

// Service is a ports.NetworkService that must be closed on shutdown.
type Service interface {
	ports.NetworkService
	Close() error
}

// service delivers trade messages to peers over one-shot websocket
// connections and serves an endpoint where peers do the same. Transport
// delivery is at-least-once, deduplication happens upstream.
type service struct {
	upgrader  websocket.Upgrader
	inbound   chan domain.TradeMessage
	server    *http.Server
	quit      chan struct{}
	closeOnce sync.Once
}

// NewService starts the peer endpoint on the given port and returns the
// network service.
func NewService(listenPort int) (Service, error) {
	svc := &service{
		upgrader: websocket.Upgrader{},
		inbound:  make(chan domain.TradeMessage, inboundQueueMaxSize),
		quit:     make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/messages", svc.handleInbound)
	svc.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", listenPort),
		Handler: mux,
	}

	go func() {
		if err := svc.server.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			log.WithError(err).Error("peer endpoint stopped")
		}
	}()

	return svc, nil
}

func (s *service) SendMessage(
	ctx context.Context, to domain.NodeAddress, msg domain.TradeMessage,
) error {
	url := fmt.Sprintf("ws://%s/messages", to.String())
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dialing peer %s: %w", to.String(), err)
	}
	defer conn.Close()

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *service) InboundMessages() <-chan domain.TradeMessage {
	return s.inbound
}

// Close shuts the peer endpoint down. The inbound channel is left open, the
// quit signal stops the connection handlers from feeding it.
func (s *service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.quit)
		err = s.server.Close()
	})
	return err
}

func (s *service) handleInbound(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Debug("rejected peer connection")
		return
	}
	defer conn.Close()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg domain.TradeMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Debugf("dropping malformed peer message: %v", err)
			continue
		}
		if len(msg.TradeId) <= 0 {
			log.Debug("dropping peer message without trade id")
			continue
		}
		select {
		case s.inbound <- msg:
		case <-s.quit:
			return
		}
	}
}
