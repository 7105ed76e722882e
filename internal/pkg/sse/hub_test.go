package sse

import (
	"encoding/json"
	"testing"
)

type testEvent struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

func TestBroadcastFanOut(t *testing.T) {
	hub := NewHub()

	clients := make([]*Client, 3)
	for i := range clients {
		clients[i] = hub.Subscribe(4)
	}

	if err := hub.Broadcast(testEvent{Type: "delete", ID: "m1"}); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}

	for i, c := range clients {
		select {
		case payload := <-c.Events():
			var got testEvent
			if err := json.Unmarshal(payload, &got); err != nil {
				t.Fatalf("client %d received invalid JSON: %v", i, err)
			}
			if got.Type != "delete" || got.ID != "m1" {
				t.Errorf("client %d got %+v", i, got)
			}
		default:
			t.Errorf("client %d received no event", i)
		}

		// Exactly one delivery per sink
		select {
		case extra := <-c.Events():
			t.Errorf("client %d received extra frame %s", i, extra)
		default:
		}
	}
}

func TestUnsubscribedClientReceivesNothing(t *testing.T) {
	hub := NewHub()

	stay := hub.Subscribe(4)
	leave := hub.Subscribe(4)
	hub.Unsubscribe(leave)

	if err := hub.Broadcast(testEvent{Type: "message"}); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}

	if len(stay.Events()) != 1 {
		t.Errorf("expected 1 frame for subscribed client, got %d", len(stay.Events()))
	}

	// The departed client's channel is closed and empty
	if payload, ok := <-leave.Events(); ok {
		t.Errorf("unsubscribed client received %s", payload)
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	hub := NewHub()
	client := hub.Subscribe(1)

	hub.Unsubscribe(client)
	hub.Unsubscribe(client) // must not panic on double close

	if hub.Count() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.Count())
	}
}

func TestBroadcastSkipsFullSink(t *testing.T) {
	hub := NewHub()
	slow := hub.Subscribe(1)
	fast := hub.Subscribe(4)

	// Fill the slow sink's buffer; subsequent broadcasts must not block.
	for i := 0; i < 3; i++ {
		if err := hub.Broadcast(testEvent{Type: "message"}); err != nil {
			t.Fatalf("broadcast %d failed: %v", i, err)
		}
	}

	if len(slow.Events()) != 1 {
		t.Errorf("slow sink should hold exactly its buffer, got %d", len(slow.Events()))
	}
	if len(fast.Events()) != 3 {
		t.Errorf("fast sink should hold 3 frames, got %d", len(fast.Events()))
	}
}

func TestSendTargetsSingleClient(t *testing.T) {
	hub := NewHub()
	a := hub.Subscribe(4)
	b := hub.Subscribe(4)

	if err := hub.Send(a, testEvent{Type: "agentStatus"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if len(a.Events()) != 1 {
		t.Errorf("target client expected 1 frame, got %d", len(a.Events()))
	}
	if len(b.Events()) != 0 {
		t.Errorf("other client expected 0 frames, got %d", len(b.Events()))
	}
}
