package rag

import (
	"context"
	"time"

	"github.com/ailayzer/boltchat/domain"
)

// Defaults for progressive token delivery. Oversized payloads are re-sliced
// on the client so the consumer sees a steady update rate no matter how
// coarsely the backend batched its output.
const (
	defaultSliceThreshold = 40
	defaultSliceSize      = 6
	defaultSliceDelay     = 15 * time.Millisecond
)

// emitter forwards content tokens, fragmenting ones above the threshold into
// fixed-size slices with a pacing delay between releases. Slicing counts
// runes, so a multi-byte character is never split across slices.
type emitter struct {
	threshold int
	sliceSize int
	delay     time.Duration
}

func (e emitter) emit(ctx context.Context, token string, handler EventHandler) error {
	runes := []rune(token)
	if len(runes) <= e.threshold {
		return handler(domain.StreamEvent{Kind: domain.EventToken, Text: token})
	}

	for i := 0; i < len(runes); i += e.sliceSize {
		if i > 0 {
			if err := e.wait(ctx); err != nil {
				return err
			}
		}
		end := i + e.sliceSize
		if end > len(runes) {
			end = len(runes)
		}
		if err := handler(domain.StreamEvent{Kind: domain.EventToken, Text: string(runes[i:end])}); err != nil {
			return err
		}
	}
	return nil
}

func (e emitter) wait(ctx context.Context) error {
	t := time.NewTimer(e.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
