package outbound

import (
	"context"

	"github.com/google/uuid"
)

// EventType represents the type of event being broadcasted
type EventType string

const (
	EventTypeAuctionSettled      EventType = "auction.settled"
	EventTypeAuctionEnded        EventType = "auction.ended"
	EventTypeAuctionDeadLettered EventType = "auction.dead_lettered"
)

// Event represents a broadcast event
type Event struct {
	Type      EventType              `json:"type"`
	AuctionID uuid.UUID              `json:"auction_id"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// Broadcaster publishes settlement events to whoever fans them out to clients
type Broadcaster interface {
	// Publish publishes an event to all subscribers of an auction
	Publish(ctx context.Context, auctionID uuid.UUID, event Event) error
}
