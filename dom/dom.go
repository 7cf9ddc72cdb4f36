// Package dom is the boundary between linkguard and a live document.
//
// Two backends implement Document: dom/roddoc drives a Chrome tab over the
// DevTools protocol and dom/memdoc works on an in-memory HTML tree. Engine
// code only sees the interfaces below.
package dom

import (
	"context"
	"maps"
	"slices"
)

// Decoration is a set of inline style properties owned by a strategy.
// An empty value restores whatever the element carried before linkguard
// first touched that property.
type Decoration struct {
	Style map[string]string
}

// Empty reports whether applying d would change nothing.
func (d Decoration) Empty() bool { return len(d.Style) == 0 }

// Properties returns the style property names in sorted order.
func (d Decoration) Properties() []string {
	return slices.Sorted(maps.Keys(d.Style))
}

// Link is an anchor element carrying an href.
type Link interface {
	// Key identifies the element within its document.
	Key() string
	// Href is the absolute URL captured when the link was enumerated.
	Href() string
	// Apply writes d onto the element's inline style.
	Apply(ctx context.Context, d Decoration) error
	// SetTitle sets the tooltip; "" restores the original title.
	SetTitle(ctx context.Context, title string) error
}

// Node is an element inserted into the document.
type Node struct {
	// Link is set when the inserted element is itself a link.
	Link Link
	// Nested holds links found inside the inserted element.
	Nested []Link
}

// Rect is a bounding box in document coordinates (scroll offsets included).
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
}

// EventKind enumerates pointer and selection events.
type EventKind int

const (
	PointerEnter EventKind = iota + 1
	PointerLeave
	SelectionChange
)

func (k EventKind) String() string {
	switch k {
	case PointerEnter:
		return "pointer_enter"
	case PointerLeave:
		return "pointer_leave"
	case SelectionChange:
		return "selection_change"
	}
	return "unknown"
}

// Event is a user interaction observed in the document.
type Event struct {
	Kind EventKind
	// Key identifies the element under the pointer.
	Key string
	// Href is set when the element is link-like (an anchor or anything with
	// an href attribute).
	Href string
	// Overlay is the id of the overlay containing the target, if any.
	Overlay string
	// Text is the selected text for SelectionChange.
	Text string
	// Rect bounds the element or selection.
	Rect Rect
}

// Placement positions an overlay.
type Placement struct {
	// Fixed pins the overlay to the viewport; otherwise it scrolls with
	// the document.
	Fixed bool
	Top   float64
	Left  float64
}

// OverlayOptions configures MountOverlay.
type OverlayOptions struct {
	Placement Placement
	// Styles is a stylesheet scoped to the overlay.
	Styles string
	// OnAction receives the value of data-action attributes clicked inside
	// the overlay.
	OnAction func(action string)
}

// Overlay is a UI element isolated from the page styles.
type Overlay interface {
	ID() string
	// Render replaces the overlay content.
	Render(ctx context.Context, html string) error
	// Remove detaches the overlay. Further Render calls fail.
	Remove(ctx context.Context) error
}

// Document is a live page.
//
// Callbacks passed to ObserveInsertions and Listen may run on any
// goroutine. The returned stop function is synchronous: once it returns,
// no further callback runs.
type Document interface {
	URL() string
	Links(ctx context.Context) ([]Link, error)
	ObserveInsertions(ctx context.Context, fn func([]Node)) (stop func(), err error)
	Listen(ctx context.Context, fn func(Event)) (stop func(), err error)
	MountOverlay(ctx context.Context, opts OverlayOptions) (Overlay, error)
}

// IsLinkLike reports whether the event target behaves like a link.
func (e Event) IsLinkLike() bool { return e.Href != "" }
