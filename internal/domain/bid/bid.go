package bid

import (
	"bytes"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bid represents a bid on an auction. Bids are immutable once created.
type Bid struct {
	ID         uuid.UUID       `json:"id"`
	AuctionID  uuid.UUID       `json:"auction_id"`
	BidderID   string          `json:"bidder_id"`
	AmountHbar decimal.Decimal `json:"amount_hbar"`
	CreatedAt  time.Time       `json:"created_at"`
}

// IsValid returns true if the bid amount is valid (greater than 0)
func (b *Bid) IsValid() bool {
	return b.AmountHbar.IsPositive()
}

// Outranks reports whether b wins over other: higher amount first, then
// earlier creation, then lower id so the ordering is total.
func (b *Bid) Outranks(other *Bid) bool {
	if c := b.AmountHbar.Cmp(other.AmountHbar); c != 0 {
		return c > 0
	}
	if !b.CreatedAt.Equal(other.CreatedAt) {
		return b.CreatedAt.Before(other.CreatedAt)
	}
	return bytes.Compare(b.ID[:], other.ID[:]) < 0
}

// Highest returns the winning bid, or nil when bids is empty
func Highest(bids []*Bid) *Bid {
	var best *Bid
	for _, b := range bids {
		if b == nil {
			continue
		}
		if best == nil || b.Outranks(best) {
			best = b
		}
	}
	return best
}
