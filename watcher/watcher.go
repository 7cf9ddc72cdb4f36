// Package watcher routes links inserted into a document to the engine.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/linkguard/dom"
	"github.com/hazyhaar/linkguard/engine"
)

// Watcher holds at most one insertion subscription at a time.
type Watcher struct {
	doc    dom.Document
	engine *engine.Engine
	state  *engine.RunState
	active func() bool
	logger *slog.Logger

	mu     sync.Mutex
	stop   func()
	ctx    context.Context
	flight sync.WaitGroup
}

// New creates a detached Watcher. active gates each batch; nil means
// always active while attached.
func New(doc dom.Document, e *engine.Engine, st *engine.RunState, active func() bool, logger *slog.Logger) *Watcher {
	if active == nil {
		active = func() bool { return true }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{doc: doc, engine: e, state: st, active: active, logger: logger}
}

// Attach subscribes to insertions. Deltas run under ctx. A second Attach
// while attached does nothing.
func (w *Watcher) Attach(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stop != nil {
		return nil
	}
	stop, err := w.doc.ObserveInsertions(ctx, w.onInsert)
	if err != nil {
		return fmt.Errorf("watcher: observe: %w", err)
	}
	w.stop, w.ctx = stop, ctx
	w.logger.Debug("watcher: attached", "feature", w.engine.Config().Name)
	return nil
}

// Detach unsubscribes. No batch is accepted once it returns; deltas
// already started keep running until Wait.
func (w *Watcher) Detach() {
	w.mu.Lock()
	stop := w.stop
	w.stop, w.ctx = nil, nil
	w.mu.Unlock()
	if stop != nil {
		stop()
		w.logger.Debug("watcher: detached", "feature", w.engine.Config().Name)
	}
}

// Attached reports whether a subscription is held.
func (w *Watcher) Attached() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stop != nil
}

// Wait blocks until every started delta has finished.
func (w *Watcher) Wait() { w.flight.Wait() }

func (w *Watcher) onInsert(nodes []dom.Node) {
	if !w.active() {
		return
	}
	links := Delta(nodes)
	if len(links) == 0 {
		return
	}
	w.mu.Lock()
	ctx := w.ctx
	if ctx == nil {
		w.mu.Unlock()
		return
	}
	w.flight.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.flight.Done()
		w.engine.ApplyDelta(ctx, w.state, links)
	}()
}

// Delta returns the links introduced by an insertion batch: inserted
// anchors and anchors nested in inserted containers, each once.
func Delta(nodes []dom.Node) []dom.Link {
	seen := make(map[string]bool)
	var out []dom.Link
	add := func(l dom.Link) {
		if l == nil || seen[l.Key()] {
			return
		}
		seen[l.Key()] = true
		out = append(out, l)
	}
	for _, n := range nodes {
		add(n.Link)
		for _, l := range n.Nested {
			add(l)
		}
	}
	return out
}
