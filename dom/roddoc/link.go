package roddoc

import (
	"context"
	"fmt"

	"github.com/hazyhaar/linkguard/dom"
)

type link struct {
	doc  *Document
	key  string
	href string
}

func (l *link) Key() string  { return l.key }
func (l *link) Href() string { return l.href }

func (l *link) Apply(ctx context.Context, dec dom.Decoration) error {
	if dec.Empty() {
		return nil
	}
	ok, err := l.doc.eval(ctx, `(k, s) => window.__linkguard.apply(k, s)`, l.key, dec.Style)
	if err != nil {
		return fmt.Errorf("roddoc: apply %s: %w", l.key, err)
	}
	if !ok {
		return ErrStaleElement
	}
	return nil
}

func (l *link) SetTitle(ctx context.Context, title string) error {
	ok, err := l.doc.eval(ctx, `(k, t) => window.__linkguard.title(k, t)`, l.key, title)
	if err != nil {
		return fmt.Errorf("roddoc: title %s: %w", l.key, err)
	}
	if !ok {
		return ErrStaleElement
	}
	return nil
}
