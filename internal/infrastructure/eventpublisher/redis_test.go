package eventpublisher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"

	"github.com/iho/ledgercore/internal/domain"
)

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	sub := client.Subscribe(ctx, "ledger.events")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	pub := NewRedisPublisher(client, "ledger.events")
	if err := pub.Publish(ctx, &domain.OutboxEvent{ID: "evt-1", EventType: domain.EventTypeTransactionReversed, AggregateID: "t1"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var decoded map[string]any
		if err := json.Unmarshal([]byte(msg.Payload), &decoded); err != nil {
			t.Fatalf("invalid payload: %v", err)
		}
		if decoded["id"] != "evt-1" {
			t.Fatalf("unexpected message %v", decoded)
		}
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}
