// Package flusher runs the single background goroutine that drains a
// store's overlay into its engine on a timer, on demand, or under write
// pressure (§4.4 of the design).
package flusher

import (
	"context"
	"sync"
	"time"

	"github.com/flaxkv/flaxkv/internal/engine"
	"github.com/flaxkv/flaxkv/internal/overlay"
)

// Config controls when the flusher's background goroutine decides to drain
// the overlay. The high-water trigger itself is the store's responsibility
// (it knows the overlay size after every write); the flusher only exposes
// [Flusher.Notify] for the store to call when that threshold is crossed.
type Config struct {
	// Interval is the timer period. Zero disables timer-driven flushing.
	Interval time.Duration
	// RetryBackoff is how long to wait before retrying a failed flush.
	RetryBackoff time.Duration
	// ShutdownGrace bounds how long the final, retrying flush on Close may
	// run before giving up with pending writes still in the overlay.
	ShutdownGrace time.Duration
}

// DefaultConfig matches §4.4's suggested defaults.
func DefaultConfig() Config {
	return Config{
		Interval:      100 * time.Millisecond,
		RetryBackoff:  50 * time.Millisecond,
		ShutdownGrace: 5 * time.Second,
	}
}

// Flusher owns the single background goroutine draining one store's
// [overlay.Overlay] into its [engine.Engine].
type Flusher struct {
	cfg    Config
	ov     *overlay.Overlay
	eng    engine.Engine
	demand chan struct{}
	errCh  chan error
	done   chan struct{}

	wg sync.WaitGroup

	genMu sync.Mutex
	genCd *sync.Cond
	gen   uint64
}

// New constructs a Flusher. Call [Flusher.Run] to start its goroutine.
func New(cfg Config, ov *overlay.Overlay, eng engine.Engine) *Flusher {
	f := &Flusher{
		cfg:    cfg,
		ov:     ov,
		eng:    eng,
		demand: make(chan struct{}, 1),
		errCh:  make(chan error, 1),
		done:   make(chan struct{}),
	}
	f.genCd = sync.NewCond(&f.genMu)

	return f
}

// Errors returns the channel the store polls for background flush
// failures. It is never closed; a full channel means a prior error has not
// been observed yet, and the new one is dropped rather than blocking the
// flush loop (the store can always inspect Overlay.Size itself).
func (f *Flusher) Errors() <-chan error {
	return f.errCh
}

// Notify requests an out-of-band flush (§4.4 "demand" trigger), used after
// a write pushes the overlay over its high-water mark, or when the store's
// caller asks for FlushNow. Non-blocking: if a flush is already pending,
// this is a no-op.
func (f *Flusher) Notify() {
	select {
	case f.demand <- struct{}{}:
	default:
	}
}

// Run starts the background loop and blocks until ctx is cancelled, doing
// one final flush before returning. Call it in its own goroutine; use
// [Flusher.Wait] from elsewhere to block on completion.
func (f *Flusher) Run(ctx context.Context) {
	f.wg.Add(1)
	defer f.wg.Done()
	defer close(f.done)

	var ticker *time.Ticker

	var tickCh <-chan time.Time

	if f.cfg.Interval > 0 {
		ticker = time.NewTicker(f.cfg.Interval)
		defer ticker.Stop()

		tickCh = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), f.cfg.ShutdownGrace)
			f.flushWithRetry(shutdownCtx)
			cancel()
			f.bumpGen()

			return
		case <-tickCh:
			f.flushOnce()
			f.bumpGen()
		case <-f.demand:
			f.flushOnce()
			f.bumpGen()
		}
	}
}

// Wait blocks until Run has returned.
func (f *Flusher) Wait() {
	<-f.done
}

func (f *Flusher) bumpGen() {
	f.genMu.Lock()
	f.gen++
	f.genCd.Broadcast()
	f.genMu.Unlock()
}

// FlushNow blocks until two complete flush cycles that it explicitly
// triggered have run, or ctx is done first. Two cycles, not one, because a
// cycle may already be mid-drain when FlushNow is called and so miss a
// write that happened-before this call; the second cycle's Drain is
// guaranteed to start after this call was made, so it cannot miss it.
func (f *Flusher) FlushNow(ctx context.Context) error {
	for range 2 {
		f.genMu.Lock()
		start := f.gen
		f.genMu.Unlock()

		f.Notify()

		waitDone := make(chan struct{})

		go func() {
			f.genMu.Lock()
			for f.gen <= start {
				f.genCd.Wait()
			}
			f.genMu.Unlock()
			close(waitDone)
		}()

		select {
		case <-waitDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// flushOnce drains the overlay and commits the batch once, reporting but
// not retrying a failure (the next timer tick or demand signal will pick
// the re-staged ops back up).
func (f *Flusher) flushOnce() {
	if f.ov.Size() == 0 {
		return
	}

	batch := f.ov.Drain()
	if len(batch) == 0 {
		return
	}

	if err := f.eng.CommitBatch(batch); err != nil {
		f.ov.RestageNewerWins(batch)
		f.reportError(err)
	}
}

// flushWithRetry is used on shutdown: it must not give up and drop pending
// writes, so it retries until the batch commits or ctx is done.
func (f *Flusher) flushWithRetry(ctx context.Context) {
	for {
		if f.ov.Size() == 0 {
			return
		}

		batch := f.ov.Drain()
		if len(batch) == 0 {
			return
		}

		err := f.eng.CommitBatch(batch)
		if err == nil {
			return
		}

		f.ov.RestageNewerWins(batch)
		f.reportError(err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(f.cfg.RetryBackoff):
		}
	}
}

func (f *Flusher) reportError(err error) {
	select {
	case f.errCh <- err:
	default:
	}
}
