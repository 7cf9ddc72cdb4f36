// Package overlay renders the status indicator and link popups.
//
// Content is generated from embedded html/template files and rendered
// into an overlay mounted by the document, which keeps it apart from the
// page's own styles.
package overlay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/linkguard/dom"
)

// State is the indicator's visible state.
type State int

const (
	Hidden State = iota
	Processing
	Summary
)

func (s State) String() string {
	switch s {
	case Processing:
		return "processing"
	case Summary:
		return "summary"
	}
	return "hidden"
}

// ActionDismiss is the data-action of the Close control.
const ActionDismiss = "dismiss"

// Position of the status indicator, pinned to the viewport.
var Position = dom.Placement{Fixed: true, Top: 20, Left: 20}

// Indicator is the per-feature status overlay. At most one overlay is
// mounted per Indicator; renders update it in place.
type Indicator struct {
	doc     dom.Document
	message string
	logger  *slog.Logger

	mu      sync.Mutex
	state   State
	visible bool
	count   int
	ov      dom.Overlay
}

// NewIndicator creates a hidden indicator. message follows the count in
// the summary ("3 Links Are Hidden").
func NewIndicator(doc dom.Document, message string, logger *slog.Logger) *Indicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indicator{doc: doc, message: message, logger: logger}
}

// Show allows the indicator to render. It does not draw anything until
// Processing or Summary is called.
func (i *Indicator) Show() {
	i.mu.Lock()
	i.visible = true
	i.mu.Unlock()
}

// Processing switches to the in-progress view.
func (i *Indicator) Processing(ctx context.Context) error {
	return i.render(ctx, Processing, 0)
}

// Summary switches to the result view with n flagged links.
func (i *Indicator) Summary(ctx context.Context, n int) error {
	return i.render(ctx, Summary, n)
}

func (i *Indicator) render(ctx context.Context, st State, n int) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.visible {
		return nil
	}
	body, err := execute("indicator", indicatorView{Processing: st == Processing, Count: n, Message: i.message})
	if err != nil {
		return err
	}
	if i.ov == nil {
		ov, err := i.doc.MountOverlay(ctx, dom.OverlayOptions{
			Placement: Position,
			Styles:    Styles,
			OnAction:  i.onAction,
		})
		if err != nil {
			return fmt.Errorf("overlay: mount: %w", err)
		}
		i.ov = ov
	}
	if err := i.ov.Render(ctx, body); err != nil {
		return fmt.Errorf("overlay: render: %w", err)
	}
	i.state, i.count = st, n
	return nil
}

func (i *Indicator) onAction(action string) {
	if action != ActionDismiss {
		return
	}
	i.logger.Debug("overlay: dismissed", "message", i.message)
	i.Dismiss(context.Background())
}

// Dismiss hides the indicator until the next Show. The feature stays
// active; later renders are dropped.
func (i *Indicator) Dismiss(ctx context.Context) {
	i.hide(ctx)
}

// Teardown removes the overlay on deactivation.
func (i *Indicator) Teardown(ctx context.Context) {
	i.hide(ctx)
}

func (i *Indicator) hide(ctx context.Context) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.visible = false
	i.state = Hidden
	i.count = 0
	if i.ov == nil {
		return
	}
	if err := i.ov.Remove(ctx); err != nil {
		i.logger.Warn("overlay: remove failed", "error", err)
	}
	i.ov = nil
}

// State returns the current state.
func (i *Indicator) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Visible reports whether renders are currently allowed.
func (i *Indicator) Visible() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.visible
}

// Count returns the number shown in the summary.
func (i *Indicator) Count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.count
}
