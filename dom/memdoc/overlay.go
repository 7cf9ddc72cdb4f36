package memdoc

import (
	"context"
	"fmt"
	"sync"

	"github.com/hazyhaar/linkguard/dom"
)

// overlay lives outside the page tree, like a shadow root would.
type overlay struct {
	id   string
	opts dom.OverlayOptions

	mu      sync.Mutex
	html    string
	renders int
	removed bool
}

func (o *overlay) ID() string { return o.id }

func (o *overlay) Render(ctx context.Context, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.removed {
		return ErrOverlayRemoved
	}
	o.html = html
	o.renders++
	return nil
}

func (o *overlay) Remove(context.Context) error {
	o.mu.Lock()
	o.removed = true
	o.mu.Unlock()
	return nil
}

// MountOverlay creates an overlay.
func (d *Document) MountOverlay(ctx context.Context, opts dom.OverlayOptions) (dom.Overlay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	o := &overlay{id: fmt.Sprintf("lg-overlay-%d", d.seq), opts: opts}
	d.overlays[o.id] = o
	d.overlayID = append(d.overlayID, o.id)
	return o, nil
}

// OverlayState is a snapshot of one overlay.
type OverlayState struct {
	ID        string
	Placement dom.Placement
	Styles    string
	HTML      string
	Renders   int
	Removed   bool
}

// Overlays returns every overlay ever mounted, oldest first.
func (d *Document) Overlays() []OverlayState {
	d.mu.Lock()
	ids := append([]string(nil), d.overlayID...)
	all := make([]*overlay, len(ids))
	for i, id := range ids {
		all[i] = d.overlays[id]
	}
	d.mu.Unlock()

	out := make([]OverlayState, len(all))
	for i, o := range all {
		o.mu.Lock()
		out[i] = OverlayState{
			ID:        o.id,
			Placement: o.opts.Placement,
			Styles:    o.opts.Styles,
			HTML:      o.html,
			Renders:   o.renders,
			Removed:   o.removed,
		}
		o.mu.Unlock()
	}
	return out
}

// Mounted returns the overlays that have not been removed.
func (d *Document) Mounted() []OverlayState {
	var out []OverlayState
	for _, o := range d.Overlays() {
		if !o.Removed {
			out = append(out, o)
		}
	}
	return out
}

// Click triggers a data-action inside overlay id.
func (d *Document) Click(id, action string) error {
	d.mu.Lock()
	o, ok := d.overlays[id]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("memdoc: unknown overlay %s", id)
	}
	o.mu.Lock()
	removed := o.removed
	o.mu.Unlock()
	if removed {
		return ErrOverlayRemoved
	}
	if o.opts.OnAction != nil {
		o.opts.OnAction(action)
	}
	return nil
}
