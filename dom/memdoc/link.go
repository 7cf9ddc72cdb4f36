package memdoc

import (
	"context"

	"golang.org/x/net/html"

	"github.com/hazyhaar/linkguard/dom"
)

type link struct {
	doc  *Document
	node *html.Node
	key  string
	href string
}

func (l *link) Key() string  { return l.key }
func (l *link) Href() string { return l.href }

// Apply writes each property of dec, snapshotting the element's own value
// the first time a property is overwritten so "" can restore it.
func (l *link) Apply(ctx context.Context, dec dom.Decoration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dec.Empty() {
		return nil
	}
	d := l.doc
	d.mu.Lock()
	defer d.mu.Unlock()

	decls := parseStyle(attr(l.node, "style"))
	snap := d.styles[l.node]
	if snap == nil {
		snap = make(map[string]original)
		d.styles[l.node] = snap
	}
	for _, prop := range dec.Properties() {
		if _, ok := snap[prop]; !ok {
			if own := decls.lookup(prop); own != nil {
				snap[prop] = original{value: own.Value, important: own.Important, present: true}
			} else {
				snap[prop] = original{}
			}
		}
		value := dec.Style[prop]
		switch {
		case value != "":
			decls = decls.set(prop, value, false)
		case snap[prop].present:
			decls = decls.set(prop, snap[prop].value, snap[prop].important)
		default:
			decls = decls.remove(prop)
		}
	}
	if len(decls) == 0 {
		removeAttr(l.node, "style")
	} else {
		setAttr(l.node, "style", decls.String())
	}
	return nil
}

func (l *link) SetTitle(ctx context.Context, title string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := l.doc
	d.mu.Lock()
	defer d.mu.Unlock()

	snap, ok := d.titles[l.node]
	if !ok {
		snap = lookupAttr(l.node, "title")
		d.titles[l.node] = snap
	}
	switch {
	case title != "":
		setAttr(l.node, "title", title)
	case snap.present:
		setAttr(l.node, "title", snap.value)
	default:
		removeAttr(l.node, "title")
	}
	return nil
}
