package trigger

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hazyhaar/linkguard/classify"
	"github.com/hazyhaar/linkguard/dom"
	"github.com/hazyhaar/linkguard/overlay"
)

// PopupOffset is the gap between an element and its popup.
const PopupOffset = 10

// popup classifies one piece of text and shows the result under an
// anchor rectangle.
type popup struct {
	anchor string
	text   string
	ov     dom.Overlay
	cancel context.CancelFunc
}

// host owns the single popup of a trigger.
type host struct {
	doc        dom.Document
	classifier classify.Classifier
	logger     *slog.Logger

	mu      sync.Mutex
	current *popup
	flight  sync.WaitGroup
}

// open replaces the current popup. Caller holds h.mu.
func (h *host) open(ctx context.Context, anchor, text string, rect dom.Rect) {
	h.closeLocked(ctx)

	ov, err := h.doc.MountOverlay(ctx, dom.OverlayOptions{
		Placement: dom.Placement{Top: rect.Bottom + PopupOffset, Left: rect.Left},
		Styles:    overlay.Styles,
	})
	if err != nil {
		h.logger.Warn("trigger: mount popup failed", "error", err)
		return
	}
	h.render(ctx, ov, overlay.LoadingPopup())

	cctx, cancel := context.WithCancel(ctx)
	h.current = &popup{anchor: anchor, text: text, ov: ov, cancel: cancel}

	h.flight.Add(1)
	go func() {
		defer h.flight.Done()
		v, err := h.classifier.Classify(cctx, text)
		if cctx.Err() != nil {
			return
		}
		view := overlay.VerdictPopup(v)
		if err != nil {
			h.logger.Debug("trigger: classification failed", "text", text, "error", err)
			view = overlay.ErrorPopup(classify.Message(err))
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.current == nil || h.current.ov != ov {
			return
		}
		h.render(cctx, ov, view)
	}()
}

func (h *host) render(ctx context.Context, ov dom.Overlay, view overlay.PopupView) {
	body, err := overlay.RenderPopup(view)
	if err == nil {
		err = ov.Render(ctx, body)
	}
	if err != nil {
		h.logger.Warn("trigger: render popup failed", "error", err)
	}
}

func (h *host) close(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeLocked(ctx)
}

func (h *host) closeLocked(ctx context.Context) {
	p := h.current
	if p == nil {
		return
	}
	h.current = nil
	p.cancel()
	if err := p.ov.Remove(context.WithoutCancel(ctx)); err != nil {
		h.logger.Warn("trigger: remove popup failed", "error", err)
	}
}

// anchor returns the anchor of the current popup.
func (h *host) anchor() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return ""
	}
	return h.current.anchor
}

func (h *host) overlayID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return ""
	}
	return h.current.ov.ID()
}
