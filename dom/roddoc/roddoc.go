// Package roddoc implements dom.Document on a live Chrome tab.
//
// An agent script is installed in the page. Go calls into it with Eval and
// the agent reports mutations, pointer and selection events, and overlay
// clicks through a Runtime binding.
package roddoc

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/linkguard/dom"
	"github.com/hazyhaar/linkguard/idgen"
)

//go:embed linkguard.js
var agentJS string

// BindingName is the Runtime binding the agent reports through.
const BindingName = "__linkguard_binding"

// ErrOverlayRemoved is returned when rendering into a removed overlay.
var ErrOverlayRemoved = errors.New("roddoc: overlay removed")

// ErrStaleElement is returned when a link's element has left the page.
var ErrStaleElement = errors.New("roddoc: element no longer in document")

// Document drives one page.
type Document struct {
	page   *rod.Page
	url    string
	logger *slog.Logger
	ids    idgen.Generator

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// subMu is held for reading while callbacks run so that stop functions
	// can wait for in-flight dispatch.
	subMu    sync.RWMutex
	nextSub  int
	inserts  map[int]func([]dom.Node)
	handlers map[int]func(dom.Event)

	ovMu     sync.Mutex
	overlays map[string]*overlay
}

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(d *Document) { d.logger = l } }

// Open installs the agent into page and starts dispatching its messages.
// The agent is re-installed on every navigation.
func Open(ctx context.Context, page *rod.Page, opts ...Option) (*Document, error) {
	d := &Document{
		page:     page,
		logger:   slog.Default(),
		ids:      idgen.Prefixed("lg-overlay-", idgen.UUIDv7()),
		inserts:  make(map[int]func([]dom.Node)),
		handlers: make(map[int]func(dom.Event)),
		overlays: make(map[string]*overlay),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(d)
	}

	info, err := page.Context(ctx).Info()
	if err != nil {
		return nil, fmt.Errorf("roddoc: page info: %w", err)
	}
	d.url = info.URL

	if err := (proto.RuntimeAddBinding{Name: BindingName}).Call(page); err != nil {
		return nil, fmt.Errorf("roddoc: add binding: %w", err)
	}
	if _, err := page.EvalOnNewDocument(fmt.Sprintf("(%s)(%q)", agentJS, BindingName)); err != nil {
		return nil, fmt.Errorf("roddoc: install agent: %w", err)
	}
	if _, err := page.Context(ctx).Eval(agentJS, BindingName); err != nil {
		return nil, fmt.Errorf("roddoc: inject agent: %w", err)
	}

	d.ctx, d.cancel = context.WithCancel(context.Background())
	wait := page.Context(d.ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != BindingName {
			return
		}
		d.dispatch(e.Payload)
	})
	go func() {
		defer close(d.done)
		wait()
	}()

	d.logger.Info("roddoc: agent installed", "url", d.url)
	return d, nil
}

// Close stops event dispatch. The page itself is left open.
func (d *Document) Close() error {
	d.cancel()
	<-d.done
	return nil
}

// Page returns the underlying tab.
func (d *Document) Page() *rod.Page { return d.page }

// URL returns the page URL captured at Open.
func (d *Document) URL() string { return d.url }

// Links enumerates every anchor with an href.
func (d *Document) Links(ctx context.Context) ([]dom.Link, error) {
	res, err := d.page.Context(ctx).Eval(`() => window.__linkguard.links()`)
	if err != nil {
		return nil, fmt.Errorf("roddoc: links: %w", err)
	}
	refs, err := parseLinkRefs(res.Value.Str())
	if err != nil {
		return nil, err
	}
	return d.toLinks(refs), nil
}

func (d *Document) toLinks(refs []linkRef) []dom.Link {
	out := make([]dom.Link, 0, len(refs))
	for _, r := range refs {
		out = append(out, &link{doc: d, key: r.Key, href: r.Href})
	}
	return out
}

// ObserveInsertions registers fn for inserted elements.
func (d *Document) ObserveInsertions(ctx context.Context, fn func([]dom.Node)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.subMu.Lock()
	d.nextSub++
	id := d.nextSub
	d.inserts[id] = fn
	d.subMu.Unlock()
	return func() {
		d.subMu.Lock()
		delete(d.inserts, id)
		d.subMu.Unlock()
	}, nil
}

// Listen registers fn for pointer and selection events.
func (d *Document) Listen(ctx context.Context, fn func(dom.Event)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.subMu.Lock()
	d.nextSub++
	id := d.nextSub
	d.handlers[id] = fn
	d.subMu.Unlock()
	return func() {
		d.subMu.Lock()
		delete(d.handlers, id)
		d.subMu.Unlock()
	}, nil
}

func (d *Document) dispatch(payload string) {
	msg, err := parseMessage(payload)
	if err != nil {
		d.logger.Warn("roddoc: bad agent message", "error", err)
		return
	}
	switch msg.Type {
	case msgInsert:
		nodes := make([]dom.Node, 0, len(msg.Nodes))
		for _, n := range msg.Nodes {
			node := dom.Node{Nested: d.toLinks(n.Nested)}
			if n.Link != nil {
				node.Link = &link{doc: d, key: n.Link.Key, href: n.Link.Href}
			}
			nodes = append(nodes, node)
		}
		d.subMu.RLock()
		defer d.subMu.RUnlock()
		for _, fn := range d.inserts {
			fn(nodes)
		}
	case msgEvent:
		d.subMu.RLock()
		defer d.subMu.RUnlock()
		for _, fn := range d.handlers {
			fn(msg.Event)
		}
	case msgAction:
		d.ovMu.Lock()
		o := d.overlays[msg.Overlay]
		d.ovMu.Unlock()
		if o == nil || o.opts.OnAction == nil {
			return
		}
		// Actions may remove the overlay, which evaluates in the page;
		// run them off the event goroutine.
		go o.opts.OnAction(msg.Action)
	}
}

// eval runs an agent method that reports success as a boolean.
func (d *Document) eval(ctx context.Context, js string, args ...any) (bool, error) {
	res, err := d.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}
