package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	if err := q.Publish(ctx, Message{Type: "rescore", Body: []byte("C-123")}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	select {
	case msg := <-messages:
		if msg.Type != "rescore" || string(msg.Body) != "C-123" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for message")
	}
}

func TestInMemoryPublishRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewInMemory(1)
	if err := q.Publish(ctx, Message{Type: "rescore", Body: []byte("a")}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	cancel()
	if err := q.Publish(ctx, Message{Type: "rescore", Body: []byte("b")}); err == nil {
		t.Fatalf("expected publish on full queue with cancelled context to fail")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	msg := Message{Type: "rescore", Body: []byte("card|with|pipes")}
	got, err := deserialize(serialize(msg))
	if err != nil {
		t.Fatalf("deserialize failed: %v", err)
	}
	if got.Type != msg.Type || string(got.Body) != string(msg.Body) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
