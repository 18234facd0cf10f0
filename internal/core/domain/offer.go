package domain

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
)

// OfferDirection is the direction of an offer from the maker's point of view.
type OfferDirection int

func (d OfferDirection) String() string {
	switch d {
	case OfferDirectionBuy:
		return "BUY"
	case OfferDirectionSell:
		return "SELL"
	default:
		return "Unknown"
	}
}

// Offer is the immutable snapshot of the negotiated terms a trade is built
// from. It is produced by the offerbook collaborator and only read here.
type Offer struct {
	Id                    string
	Direction             OfferDirection
	Amount                btcutil.Amount
	Price                 decimal.Decimal
	BuyerSecurityDeposit  btcutil.Amount
	SellerSecurityDeposit btcutil.Amount
	BaseCurrency          string
	QuoteCurrency         string
}

// QuoteAmount returns the quote-side volume of the offer, truncated at 8
// decimals.
func (o *Offer) QuoteAmount() decimal.Decimal {
	amount := decimal.NewFromFloat(o.Amount.ToBTC())
	return o.Price.Mul(amount).Truncate(8)
}

// NodeAddress is the network address of a trade participant.
type NodeAddress struct {
	HostName string
	Port     int
}

func (a NodeAddress) String() string {
	return fmt.Sprintf("%s:%d", a.HostName, a.Port)
}
