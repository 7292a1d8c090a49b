package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"elo-sync/internal/domain/rank"
	"elo-sync/internal/domain/user"
	"elo-sync/internal/storage/memory"
	"elo-sync/internal/usecase/header"
	"elo-sync/internal/usecase/rating"

	"github.com/gorilla/websocket"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	h := startHub(t)
	a := &Client{hub: h, send: make(chan []byte, 1)}
	b := &Client{hub: h, send: make(chan []byte, 1)}
	h.Register(a)
	h.Register(b)
	waitFor(t, func() bool { return h.ClientCount() == 2 })

	h.Broadcast([]byte("hi"))
	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.send:
			if string(msg) != "hi" {
				t.Fatalf("got %q", msg)
			}
		case <-time.After(time.Second):
			t.Fatalf("client missed broadcast")
		}
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := startHub(t)
	slow := &Client{hub: h, send: make(chan []byte)}
	h.Register(slow)
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	h.Broadcast([]byte("hi"))
	waitFor(t, func() bool { return h.ClientCount() == 0 })
	if _, ok := <-slow.send; ok {
		t.Fatalf("slow client channel should be closed")
	}

	// A late unregister of a removed client is harmless.
	h.Unregister(slow)
}

func TestHub_RunStopClosesClients(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	c := &Client{hub: h, send: make(chan []byte, 1)}
	h.Register(c)
	waitFor(t, func() bool { return h.ClientCount() == 1 })
	cancel()
	<-stopped

	if _, ok := <-c.send; ok {
		t.Fatalf("expected closed send channel")
	}
	late := &Client{hub: h, send: make(chan []byte, 1)}
	h.Register(late)
	if _, ok := <-late.send; ok {
		t.Fatalf("register after stop should close the client")
	}
}

func TestHandler_PushesSnapshotAndUpdates(t *testing.T) {
	ctx := context.Background()
	kv := memory.New(nil)
	store := rating.NewStore(kv, rating.Options{})
	if err := store.SaveUser(ctx, user.NewRecord("Ana", "", "")); err != nil {
		t.Fatalf("save user: %v", err)
	}
	views := header.NewService(store, rank.Standard())

	h := startHub(t)
	store.OnChange(RatingNotifier(h, views, nil))

	srv := httptest.NewServer(NewHandler(h, Snapshot(views, nil), nil))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() RatingUpdatedEvent {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var evt RatingUpdatedEvent
		if err := json.Unmarshal(b, &evt); err != nil {
			t.Fatalf("decode %s: %v", b, err)
		}
		return evt
	}

	snap := read()
	if snap.Type != EventSnapshot || snap.NewRating != 1200 || snap.Header.Rank.Key != "beginner" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	waitFor(t, func() bool { return h.ClientCount() == 1 })
	store.AddDelta(ctx, 250)

	evt := read()
	if evt.Type != EventRatingUpdated || evt.NewRating != 1450 || evt.Source != rating.SourceLocal {
		t.Fatalf("unexpected event %+v", evt)
	}
	if evt.Header.Rank.Key != "intermediate" || evt.Header.RatingLabel != "1450 ELO" || evt.Timestamp == "" {
		t.Fatalf("unexpected header %+v", evt.Header)
	}
}
