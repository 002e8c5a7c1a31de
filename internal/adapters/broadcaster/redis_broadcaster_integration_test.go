//go:build integration

package broadcaster

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"auction-settlement-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisBroadcaster_Publish(t *testing.T) {
	ctx := context.Background()
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	endpoint, err := ctr.Endpoint(ctx, "")
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { client.Close() })

	auctionID := uuid.New()
	sub := client.Subscribe(ctx, ChannelName(auctionID))
	t.Cleanup(func() { sub.Close() })
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	b := NewBroadcaster(RedisBroadcasterParams{RedisClient: client, Logger: zerolog.Nop()})
	require.NoError(t, b.Publish(ctx, auctionID, outbound.Event{
		Type:      outbound.EventTypeAuctionSettled,
		AuctionID: auctionID,
		Data:      map[string]interface{}{"final_price": "150"},
	}))

	select {
	case msg := <-sub.Channel():
		var got outbound.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, outbound.EventTypeAuctionSettled, got.Type)
		assert.Equal(t, auctionID, got.AuctionID)
		assert.NotZero(t, got.Timestamp)
	case <-time.After(5 * time.Second):
		t.Fatal("event not received")
	}
}
