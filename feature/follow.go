package feature

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hazyhaar/linkguard/store"
)

// FlagStore is the part of the store a follower needs.
type FlagStore interface {
	Bool(ctx context.Context, key string) (bool, error)
	Subscribe(fn store.Listener) (cancel func())
}

// Handler reacts to a flag transition. It runs on the follower goroutine.
type Handler func(ctx context.Context, active bool)

// Follower delivers the transitions of one flag to a Handler, one at a
// time and in order. Notifications that do not change the value are
// dropped.
type Follower struct {
	flag    string
	store   FlagStore
	handler Handler
	logger  *slog.Logger

	mu      sync.Mutex
	queue   []bool
	current bool

	wake        chan struct{}
	unsubscribe func()
	cancel      context.CancelFunc
	done        chan struct{}
}

// Follow subscribes to flag, reads its current value and starts the
// delivery loop. The initial value counts as a transition when true.
func Follow(ctx context.Context, fs FlagStore, flag string, h Handler, logger *slog.Logger) *Follower {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Follower{
		flag:    flag,
		store:   fs,
		handler: h,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	// Subscribe before reading so no change slips between the two.
	f.unsubscribe = fs.Subscribe(func(c store.Changes) {
		if ch, ok := c[flag]; ok {
			f.push(ch.Bool())
		}
	})
	initial, err := fs.Bool(ctx, flag)
	if err != nil {
		logger.Warn("feature: initial flag read failed, assuming off", "flag", flag, "error", err)
	}
	f.push(initial)

	ctx, f.cancel = context.WithCancel(ctx)
	go f.loop(ctx)
	return f
}

func (f *Follower) push(v bool) {
	f.mu.Lock()
	f.queue = append(f.queue, v)
	f.mu.Unlock()
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *Follower) loop(ctx context.Context) {
	defer close(f.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.wake:
		}
		for {
			f.mu.Lock()
			if len(f.queue) == 0 || ctx.Err() != nil {
				f.mu.Unlock()
				break
			}
			v := f.queue[0]
			f.queue = f.queue[1:]
			changed := v != f.current
			f.current = v
			f.mu.Unlock()

			if changed {
				f.logger.Info("feature: flag changed", "flag", f.flag, "active", v)
				f.handler(ctx, v)
			}
		}
	}
}

// Active returns the last value delivered to the handler.
func (f *Follower) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Stop unsubscribes and waits for the loop to exit. If the flag was on,
// the handler receives a final false under ctx.
func (f *Follower) Stop(ctx context.Context) {
	f.unsubscribe()
	f.cancel()
	<-f.done

	f.mu.Lock()
	wasActive := f.current
	f.current = false
	f.queue = nil
	f.mu.Unlock()
	if wasActive {
		f.handler(ctx, false)
	}
}
