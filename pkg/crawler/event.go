package crawler

const (
	QuitSignal EventType = iota
	TransactionConfirmed
	TransactionUnConfirmed
)

type EventType int

func (et EventType) String() string {
	switch et {
	case QuitSignal:
		return "QuitSignal"
	case TransactionConfirmed:
		return "TransactionConfirmed"
	case TransactionUnConfirmed:
		return "TransactionUnConfirmed"
	default:
		return "Unknown"
	}
}

type QuitEvent struct{}

func (q QuitEvent) Type() EventType {
	return QuitSignal
}

// TransactionEvent reports the validated confirmation status of a watched
// transaction. Confirmations is 0 while the tx sits in the mempool and
// counts the tip block as 1 once mined.
type TransactionEvent struct {
	TxId          string
	EventType     EventType
	Confirmations int64
	ChainHeight   int64
}

func (t TransactionEvent) Type() EventType {
	return t.EventType
}
