// Package trigger shows on-demand verdict popups: when the pointer rests on
// a link (hover) and when the user selects text (selection).
//
// Both triggers read their activation flag on every event, so flipping
// the flag takes effect on the next interaction.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/linkguard/classify"
	"github.com/hazyhaar/linkguard/dom"
)

const (
	// HoverDelay is how long the pointer must rest on a link.
	HoverDelay = 500 * time.Millisecond
	// HoverTeardownDelay is how long a popup survives the pointer leaving.
	HoverTeardownDelay = 300 * time.Millisecond
	// SelectionDelay is how long a selection must stay unchanged before it
	// is checked.
	SelectionDelay = 250 * time.Millisecond
)

// FlagReader reads activation flags.
type FlagReader interface {
	Bool(ctx context.Context, key string) (bool, error)
}

// Config wires a trigger.
type Config struct {
	Doc        dom.Document
	Classifier classify.Classifier
	Flags      FlagReader
	Flag       string
	Logger     *slog.Logger

	// Hover only.
	ShowDelay     time.Duration
	TeardownDelay time.Duration
	// Selection only.
	SettleDelay time.Duration
	AfterFunc   AfterFunc
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.ShowDelay <= 0 {
		c.ShowDelay = HoverDelay
	}
	if c.TeardownDelay <= 0 {
		c.TeardownDelay = HoverTeardownDelay
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = SelectionDelay
	}
	if c.AfterFunc == nil {
		c.AfterFunc = systemAfterFunc
	}
}

// base holds the listener plumbing shared by both triggers.
type base struct {
	cfg  Config
	host *host

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	stop   func()
}

func newBase(cfg Config) base {
	cfg.defaults()
	return base{
		cfg:  cfg,
		host: &host{doc: cfg.Doc, classifier: cfg.Classifier, logger: cfg.Logger},
	}
}

func (b *base) start(ctx context.Context, fn func(dom.Event)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stop != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	stop, err := b.cfg.Doc.Listen(ctx, fn)
	if err != nil {
		cancel()
		return fmt.Errorf("trigger: listen: %w", err)
	}
	b.ctx, b.cancel, b.stop = ctx, cancel, stop
	return nil
}

// shutdown unsubscribes, closes the popup and waits for pending checks.
func (b *base) shutdown() {
	b.mu.Lock()
	stop, cancel := b.stop, b.cancel
	b.stop, b.cancel = nil, nil
	b.mu.Unlock()
	if stop == nil {
		return
	}
	stop()
	cancel()
	b.host.close(context.Background())
	b.host.flight.Wait()
}

func (b *base) context() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil {
		return context.Background()
	}
	return b.ctx
}

func (b *base) enabled(ctx context.Context) bool {
	on, err := b.cfg.Flags.Bool(ctx, b.cfg.Flag)
	if err != nil {
		b.cfg.Logger.Warn("trigger: flag read failed", "flag", b.cfg.Flag, "error", err)
		return false
	}
	return on
}

// Wait blocks until in-flight popup classifications finish.
func (b *base) Wait() { b.host.flight.Wait() }

// Popup returns the overlay id of the open popup, or "".
func (b *base) Popup() string { return b.host.overlayID() }

// Hover opens a popup for the link under a resting pointer.
type Hover struct {
	base
	timer slot
}

// NewHover creates a stopped Hover trigger.
func NewHover(cfg Config) *Hover {
	h := &Hover{base: newBase(cfg)}
	h.timer.after = h.cfg.AfterFunc
	return h
}

// Start listens for pointer events.
func (h *Hover) Start(ctx context.Context) error { return h.start(ctx, h.handle) }

// Stop removes the listener and any popup.
func (h *Hover) Stop() {
	h.timer.cancel()
	h.shutdown()
}

func (h *Hover) handle(ev dom.Event) {
	if ev.Kind != dom.PointerEnter && ev.Kind != dom.PointerLeave {
		return
	}
	ctx := h.context()
	if !h.enabled(ctx) {
		h.timer.cancel()
		h.host.close(ctx)
		return
	}
	switch ev.Kind {
	case dom.PointerEnter:
		if ev.Overlay != "" {
			if ev.Overlay == h.host.overlayID() {
				h.timer.cancel()
			}
			return
		}
		if !ev.IsLinkLike() {
			return
		}
		h.timer.cancel()
		if h.host.anchor() == ev.Key {
			return
		}
		h.host.close(ctx)
		h.timer.schedule(h.cfg.ShowDelay, func() {
			if ctx.Err() != nil {
				return
			}
			h.host.mu.Lock()
			h.host.open(ctx, ev.Key, ev.Href, ev.Rect)
			h.host.mu.Unlock()
		})
	case dom.PointerLeave:
		h.timer.schedule(h.cfg.TeardownDelay, func() { h.host.close(ctx) })
	}
}

// Selection opens a popup for the selected text once the selection has
// been stable for the settle delay. A drag that reports many intermediate
// selections is checked once.
type Selection struct {
	base
	timer slot
}

// NewSelection creates a stopped Selection trigger.
func NewSelection(cfg Config) *Selection {
	s := &Selection{base: newBase(cfg)}
	s.timer.after = s.cfg.AfterFunc
	return s
}

// Start listens for selection events.
func (s *Selection) Start(ctx context.Context) error { return s.start(ctx, s.handle) }

// Stop removes the listener and any popup.
func (s *Selection) Stop() {
	s.timer.cancel()
	s.shutdown()
}

const selectionAnchor = "selection"

func (s *Selection) handle(ev dom.Event) {
	if ev.Kind != dom.SelectionChange {
		return
	}
	ctx := s.context()
	if !s.enabled(ctx) || strings.TrimSpace(ev.Text) == "" {
		s.timer.cancel()
		s.host.close(ctx)
		return
	}
	s.timer.schedule(s.cfg.SettleDelay, func() {
		if ctx.Err() != nil {
			return
		}
		s.host.mu.Lock()
		defer s.host.mu.Unlock()
		if p := s.host.current; p != nil && p.text == ev.Text {
			return
		}
		s.host.open(ctx, selectionAnchor, ev.Text, ev.Rect)
	})
}
