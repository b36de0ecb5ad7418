package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/oriys/lancebridge/internal/logging"
	"github.com/oriys/lancebridge/internal/metrics"
	"github.com/oriys/lancebridge/internal/vendorstore"
)

// Lifecycle owns the engine's up/down transitions: an idempotent Setup
// that spawns the dedicated OS thread hosting the dispatcher on first
// use, and a Shutdown that drains it via the Quit command.
type Lifecycle struct {
	opener vendorstore.Opener
	cfg    Config
	metric *metrics.Metrics

	retryAttempts int

	mu         sync.Mutex
	once       *sync.Once
	dispatcher *Dispatcher
	instances  int64
}

// NewLifecycle constructs a Lifecycle. No goroutine is spawned until the
// first Setup or implicit-start call.
func NewLifecycle(opener vendorstore.Opener, cfg Config, retryAttempts int, m *metrics.Metrics) *Lifecycle {
	if retryAttempts <= 0 {
		retryAttempts = 10
	}
	return &Lifecycle{
		opener:        opener,
		cfg:           cfg,
		metric:        m,
		retryAttempts: retryAttempts,
		once:          &sync.Once{},
	}
}

// Setup increments the instance counter and ensures the engine is
// running, blocking the caller until it is ready. Calling Setup more
// than once is a no-op beyond the counter increment.
func (l *Lifecycle) Setup(ctx context.Context) error {
	atomic.AddInt64(&l.instances, 1)
	_, err := l.EnsureRunning(ctx)
	return err
}

// Instances returns how many times Setup has been called.
func (l *Lifecycle) Instances() int64 {
	return atomic.LoadInt64(&l.instances)
}

// EnsureRunning is the implicit-setup path every FFI entry point goes
// through before enqueuing a command: start the engine if it is not
// already running, retrying a bounded number of times to guard against a
// spuriously lost race rather than retrying forever.
func (l *Lifecycle) EnsureRunning(ctx context.Context) (*Dispatcher, error) {
	var lastErr error
	for attempt := 0; attempt < l.retryAttempts; attempt++ {
		d := l.spawnOnce()
		select {
		case <-d.Ready():
			return d, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
			lastErr = fmt.Errorf("engine not ready yet (attempt %d/%d)", attempt+1, l.retryAttempts)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("engine failed to start after %d attempts", l.retryAttempts)
	}
	return nil, lastErr
}

// spawnOnce lazily creates the Dispatcher and starts its loop on a
// dedicated OS thread exactly once per lifecycle generation.
func (l *Lifecycle) spawnOnce() *Dispatcher {
	l.mu.Lock()
	once := l.once
	l.mu.Unlock()

	once.Do(func() {
		d := New(l.opener, l.cfg, l.metric)
		l.mu.Lock()
		l.dispatcher = d
		l.mu.Unlock()

		go func() {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			d.Run()
		}()
	})

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dispatcher
}

// Dispatcher returns the current dispatcher, or nil if the engine has
// never been started.
func (l *Lifecycle) Dispatcher() *Dispatcher {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dispatcher
}

// Shutdown sends the Quit command and waits for the dispatcher loop to
// exit, then resets lifecycle state so a subsequent Setup starts a fresh
// engine instance.
func (l *Lifecycle) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	d := l.dispatcher
	l.mu.Unlock()
	if d == nil {
		return nil
	}

	done := make(chan struct{})
	cmd := &Command{
		ID:   uuid.NewString(),
		Tag:  TagQuit,
		Done: done,
	}

	select {
	case d.queue <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	l.mu.Lock()
	l.dispatcher = nil
	l.once = &sync.Once{}
	l.mu.Unlock()

	logging.Op().Info("lifecycle shutdown complete")
	return nil
}
