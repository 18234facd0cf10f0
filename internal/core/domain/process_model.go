package domain

import (
	"time"

	"github.com/thanhpk/randstr"
)

const (
	MessageTypeDepositTxPublished MessageType = iota
	MessageTypePaymentSent
	MessageTypePaymentReceived
	MessageTypePayoutPublished
	MessageTypeDisputeOpened
	MessageTypeDisputeResolved
)

// MessageType identifies the kind of protocol message exchanged between the
// trade counterparts.
type MessageType int

func (mt MessageType) String() string {
	switch mt {
	case MessageTypeDepositTxPublished:
		return "DepositTxPublished"
	case MessageTypePaymentSent:
		return "PaymentSent"
	case MessageTypePaymentReceived:
		return "PaymentReceived"
	case MessageTypePayoutPublished:
		return "PayoutPublished"
	case MessageTypeDisputeOpened:
		return "DisputeOpened"
	case MessageTypeDisputeResolved:
		return "DisputeResolved"
	default:
		return "Unknown"
	}
}

// TradeMessage is one protocol message sent to or received from the
// counterpart of a trade.
type TradeMessage struct {
	Id        string
	TradeId   string
	Type      MessageType
	TxId      string
	Timestamp int64
}

// NewTradeMessage returns a message with a fresh random id.
func NewTradeMessage(tradeId string, msgType MessageType, txId string) TradeMessage {
	return TradeMessage{
		Id:        randstr.Hex(16),
		TradeId:   tradeId,
		Type:      msgType,
		TxId:      txId,
		Timestamp: time.Now().Unix(),
	}
}

// ProcessModel is the mutable working context of one trade, owned exclusively
// by its Trade. Transaction id fields are write-once: replacing a confirmed
// id would reopen a settled financial commitment, so a second set attempt is
// rejected, never silently ignored.
type ProcessModel struct {
	MakerFeeTxId string
	TakerFeeTxId string
	DepositTxId  string
	PayoutTxId   string
	MakerPubKey  []byte
	TakerPubKey  []byte
	// PayoutAddress is where the winning party is paid from the escrow.
	PayoutAddress string
	Messages      []TradeMessage
}

// NewProcessModel returns an empty ProcessModel.
func NewProcessModel() *ProcessModel {
	return &ProcessModel{Messages: make([]TradeMessage, 0)}
}

// SetMakerFeeTxId sets the maker fee transaction id exactly once.
func (p *ProcessModel) SetMakerFeeTxId(txId string) error {
	return setTxId(&p.MakerFeeTxId, txId)
}

// SetTakerFeeTxId sets the taker fee transaction id exactly once.
func (p *ProcessModel) SetTakerFeeTxId(txId string) error {
	return setTxId(&p.TakerFeeTxId, txId)
}

// SetDepositTxId sets the deposit transaction id exactly once.
func (p *ProcessModel) SetDepositTxId(txId string) error {
	return setTxId(&p.DepositTxId, txId)
}

// SetPayoutTxId sets the payout transaction id exactly once.
func (p *ProcessModel) SetPayoutTxId(txId string) error {
	return setTxId(&p.PayoutTxId, txId)
}

func setTxId(field *string, txId string) error {
	if len(txId) <= 0 {
		return ErrTxIdEmpty
	}
	if len(*field) > 0 {
		return ErrTxIdAlreadySet
	}
	*field = txId
	return nil
}

// AddMessage appends a message to the log.
func (p *ProcessModel) AddMessage(msg TradeMessage) {
	p.Messages = append(p.Messages, msg)
}

// HasMessageOfType returns whether a message of the given type was already
// logged. Delivery is at-least-once, duplicates are detected with this.
func (p *ProcessModel) HasMessageOfType(msgType MessageType) bool {
	for _, msg := range p.Messages {
		if msg.Type == msgType {
			return true
		}
	}
	return false
}
