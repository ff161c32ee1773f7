package item

import (
	"context"
	"image"
)

// Item is one generated frame travelling from the producer to a consumer.
// Consumers must treat Payload as read-only.
type Item struct {
	Payload image.Image
	Seq     uint64
}

func New(payload image.Image, seq uint64) Item {
	return Item{Payload: payload, Seq: seq}
}

// Generator creates payloads for the producer. It is only ever called from
// a single goroutine. Finite generators return iterator.Done when exhausted.
type Generator interface {
	Generate(ctx context.Context) (image.Image, error)
}
