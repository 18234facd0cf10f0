package ports

import (
	"context"

	"github.com/veilswap/veilswap-daemon/internal/core/domain"
)

// NetworkService is the capability to exchange typed protocol messages with
// peers. Delivery is at-least-once: consumers must tolerate duplicates of
// the same message.
type NetworkService interface {
	// SendMessage delivers the given message to the peer at the given
	// address. Delivery confirmation is reported asynchronously, a nil
	// error only means the message was handed to the transport.
	SendMessage(
		ctx context.Context, to domain.NodeAddress, msg domain.TradeMessage,
	) error
	// InboundMessages returns the channel where messages from peers are
	// delivered.
	InboundMessages() <-chan domain.TradeMessage
}
