package liveserver

import (
	"context"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestHub_RegisterAndBroadcast(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := NewClient("c-1")
	hub.Register(client)
	waitFor(t, time.Second, func() bool { return hub.ClientCount() == 1 })

	hub.Broadcast(Message{Type: TypeEngineEvent, Timestamp: time.Now()})

	select {
	case msg := <-client.SendChan():
		if msg.Type != TypeEngineEvent {
			t.Fatalf("got %q", msg.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestHub_UnregisterClosesClient(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := NewClient("c-1")
	hub.Register(client)
	waitFor(t, time.Second, func() bool { return hub.ClientCount() == 1 })

	hub.Unregister(client)
	waitFor(t, time.Second, func() bool { return hub.ClientCount() == 0 })

	if client.Send(Message{Type: TypeEngineEvent}) {
		t.Fatal("send to closed client should report false")
	}
}

func TestHub_SlowClientDropsMessages(t *testing.T) {
	client := NewClient("slow")

	delivered := 0
	for i := 0; i < 300; i++ {
		if client.Send(Message{Type: TypeEngineEvent}) {
			delivered++
		}
	}
	if delivered != 256 {
		t.Fatalf("expected buffer-bound delivery of 256, got %d", delivered)
	}
}

func TestHub_ShutdownClosesAll(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	client := NewClient("c-1")
	hub.Register(client)
	waitFor(t, time.Second, func() bool { return hub.ClientCount() == 1 })

	cancel()
	waitFor(t, time.Second, func() bool { return hub.ClientCount() == 0 })
}
