package sim

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// PumpKeyboard types the bytes read from src on the simulated keyboard at
// the configured typematic rate. It returns when src is exhausted, when ctx
// is done or when reading src fails.
func (m *Machine) PumpKeyboard(ctx context.Context, src io.Reader, cfg KeyboardConfig) error {
	limit, burst := rate.Inf, cfg.Burst
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)

	keys := make(chan byte, 64)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(keys)

		buf := make([]byte, 64)
		for {
			n, err := src.Read(buf)
			for _, b := range buf[:n] {
				select {
				case keys <- b:
				case <-ctx.Done():
					return ctx.Err()
				}
			}

			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
		}
	})

	g.Go(func() error {
		for b := range keys {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
			m.Feed(b)
			m.log.WithField("key", b).Debug("key typed")
		}
		return nil
	})

	return g.Wait()
}
