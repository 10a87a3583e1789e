package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// streamRetryDelay is the pause before redialing a dropped stream.
const streamRetryDelay = 5 * time.Second

// Start runs the engine's background loops until the context is cancelled:
// a periodic catch-up ticker and the live stream consumer. Blocks until both
// loops exit.
func (e *Engine) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if e.cfg.CatchUpInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(time.Duration(e.cfg.CatchUpInterval) * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := e.CatchUp(ctx); err != nil {
						e.log.Warn("periodic catch-up failed", "error", err)
					}
				}
			}
		})
	}

	if e.streams != nil && e.cfg.Streaming {
		g.Go(func() error {
			e.consumeStream(ctx)
			return nil
		})
	}

	return g.Wait()
}

// consumeStream keeps one stream subscription alive for the active timeline,
// redialing after drops and resubscribing when the timeline changes.
func (e *Engine) consumeStream(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		tl := e.Timeline()
		if tl.StreamName() == "" {
			if !sleepCtx(ctx, streamRetryDelay) {
				return
			}
			continue
		}

		subCtx, cancel := context.WithCancel(ctx)
		events, err := e.streams.Stream(subCtx, tl)
		if err != nil {
			cancel()
			e.log.Warn("stream connect failed", "timeline", tl.Key(), "error", err)
			if !sleepCtx(ctx, streamRetryDelay) {
				return
			}
			continue
		}

		for ev := range events {
			if e.Timeline().Key() != tl.Key() {
				// Active timeline changed under us; drop this subscription
				// and redial against the new one.
				break
			}
			e.HandleEvent(ctx, ev)
		}
		cancel()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
