package ws

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"elo-sync/internal/usecase/header"
	"elo-sync/internal/usecase/rating"
)

const (
	EventRatingUpdated = "eloUpdated"
	EventSnapshot      = "eloSnapshot"
)

type RatingUpdatedEvent struct {
	Type      string        `json:"type"`
	NewRating int           `json:"newRating"`
	Source    rating.Source `json:"source,omitempty"`
	Header    header.View   `json:"header"`
	Timestamp string        `json:"timestamp"`
}

type viewBuilder interface {
	Current(ctx context.Context) header.View
	ForRating(ctx context.Context, rating int) header.View
}

func encode(evt RatingUpdatedEvent, logger *log.Logger) []byte {
	evt.Timestamp = time.Now().UTC().Format(time.RFC3339)
	b, err := json.Marshal(evt)
	if err != nil {
		if logger != nil {
			logger.Printf("WS encode error | type=%s error=%v", evt.Type, err)
		}
		return nil
	}
	return b
}

// RatingNotifier returns a store listener that pushes every change to hub
// together with the refreshed header.
func RatingNotifier(hub *Hub, views viewBuilder, logger *log.Logger) rating.Listener {
	return func(c rating.Change) {
		b := encode(RatingUpdatedEvent{
			Type:      EventRatingUpdated,
			NewRating: c.Rating,
			Source:    c.Source,
			Header:    views.ForRating(context.Background(), c.Rating),
		}, logger)
		if b != nil {
			hub.Broadcast(b)
		}
	}
}

// Snapshot builds the greeting sent to a client on connect.
func Snapshot(views viewBuilder, logger *log.Logger) func() []byte {
	return func() []byte {
		v := views.Current(context.Background())
		return encode(RatingUpdatedEvent{Type: EventSnapshot, NewRating: v.Rating, Header: v}, logger)
	}
}
