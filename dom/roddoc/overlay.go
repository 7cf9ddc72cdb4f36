package roddoc

import (
	"context"
	"fmt"
	"sync"

	"github.com/hazyhaar/linkguard/dom"
)

type overlay struct {
	doc  *Document
	id   string
	opts dom.OverlayOptions

	mu      sync.Mutex
	removed bool
}

// placement is the agent-side shape of dom.Placement.
type placement struct {
	Fixed bool    `json:"fixed"`
	Top   float64 `json:"top"`
	Left  float64 `json:"left"`
}

// MountOverlay attaches a shadow-root host to the page.
func (d *Document) MountOverlay(ctx context.Context, opts dom.OverlayOptions) (dom.Overlay, error) {
	o := &overlay{doc: d, id: d.ids(), opts: opts}
	p := placement{Fixed: opts.Placement.Fixed, Top: opts.Placement.Top, Left: opts.Placement.Left}
	if _, err := d.eval(ctx, `(id, p, css) => window.__linkguard.mount(id, p, css)`, o.id, p, opts.Styles); err != nil {
		return nil, fmt.Errorf("roddoc: mount overlay: %w", err)
	}
	d.ovMu.Lock()
	d.overlays[o.id] = o
	d.ovMu.Unlock()
	return o, nil
}

func (o *overlay) ID() string { return o.id }

func (o *overlay) Render(ctx context.Context, html string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.removed {
		return ErrOverlayRemoved
	}
	ok, err := o.doc.eval(ctx, `(id, h) => window.__linkguard.render(id, h)`, o.id, html)
	if err != nil {
		return fmt.Errorf("roddoc: render overlay: %w", err)
	}
	if !ok {
		// The page navigated away and took the host with it.
		o.removed = true
		return ErrOverlayRemoved
	}
	return nil
}

func (o *overlay) Remove(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.removed {
		return nil
	}
	o.removed = true
	o.doc.ovMu.Lock()
	delete(o.doc.overlays, o.id)
	o.doc.ovMu.Unlock()
	if _, err := o.doc.eval(ctx, `(id) => window.__linkguard.remove(id)`, o.id); err != nil {
		return fmt.Errorf("roddoc: remove overlay: %w", err)
	}
	return nil
}
