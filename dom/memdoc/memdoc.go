// Package memdoc is an in-memory dom.Document backed by an HTML tree.
//
// It serves the static scan mode (fetch a page, decorate it, write it back
// out) and stands in for a browser in tests. Mutations are driven by the
// caller through Insert, SetAttr and Fire.
package memdoc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hazyhaar/linkguard/dom"
)

// ErrOverlayRemoved is returned when rendering into a removed overlay.
var ErrOverlayRemoved = errors.New("memdoc: overlay removed")

// Document is a dom.Document over a parsed HTML tree. It is safe for
// concurrent use.
type Document struct {
	rawURL string
	base   *url.URL

	mu        sync.Mutex
	doc       *goquery.Document
	keys      map[*html.Node]string
	nodes     map[string]*html.Node
	styles    map[*html.Node]map[string]original
	titles    map[*html.Node]original
	overlays  map[string]*overlay
	overlayID []string
	seq       int

	subMu     sync.RWMutex
	subSeq    int
	inserts   map[int]func([]dom.Node)
	listeners map[int]func(dom.Event)
}

type original struct {
	value     string
	important bool
	present   bool
}

// Parse reads an HTML document. pageURL resolves relative hrefs.
func Parse(pageURL string, r io.Reader) (*Document, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("memdoc: parse url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("memdoc: parse html: %w", err)
	}
	return &Document{
		rawURL:    pageURL,
		base:      base,
		doc:       doc,
		keys:      make(map[*html.Node]string),
		nodes:     make(map[string]*html.Node),
		styles:    make(map[*html.Node]map[string]original),
		titles:    make(map[*html.Node]original),
		overlays:  make(map[string]*overlay),
		inserts:   make(map[int]func([]dom.Node)),
		listeners: make(map[int]func(dom.Event)),
	}, nil
}

// ParseString is Parse over a string.
func ParseString(pageURL, src string) (*Document, error) {
	return Parse(pageURL, strings.NewReader(src))
}

// URL returns the page URL.
func (d *Document) URL() string { return d.rawURL }

// Links returns every anchor with an href, in document order.
func (d *Document) Links(ctx context.Context) ([]dom.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.linksIn(d.doc.Selection, false), nil
}

// linksIn collects anchors under sel; includeSelf also tests the roots.
// Caller holds d.mu.
func (d *Document) linksIn(sel *goquery.Selection, includeSelf bool) []dom.Link {
	var out []dom.Link
	if includeSelf {
		sel.Filter("a[href]").Each(func(_ int, s *goquery.Selection) {
			out = append(out, d.linkFor(s.Nodes[0]))
		})
	}
	sel.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		out = append(out, d.linkFor(s.Nodes[0]))
	})
	return out
}

func (d *Document) linkFor(n *html.Node) dom.Link {
	return &link{doc: d, node: n, key: d.keyFor(n), href: d.resolve(attr(n, "href"))}
}

func (d *Document) keyFor(n *html.Node) string {
	if k, ok := d.keys[n]; ok {
		return k
	}
	d.seq++
	k := "lg-" + strconv.Itoa(d.seq)
	d.keys[n] = k
	d.nodes[k] = n
	return k
}

func (d *Document) resolve(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return d.base.ResolveReference(ref).String()
}

// Key returns the element key of the first node matching selector.
func (d *Document) Key(selector string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return d.keyFor(sel.Nodes[0]), true
}

// Attr reads an attribute of the first node matching selector.
func (d *Document) Attr(selector, name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Find(selector).First().Attr(name)
}

// SetAttr sets an attribute on every node matching selector.
func (d *Document) SetAttr(selector, name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc.Find(selector).SetAttr(name, value)
}

// Style returns the inline value of prop on the first node matching
// selector.
func (d *Document) Style(selector, prop string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return ""
	}
	v, _ := parseStyle(attr(sel.Nodes[0], "style")).get(prop)
	return v
}

// HTML renders the current document.
func (d *Document) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	for _, n := range d.doc.Nodes {
		if err := html.Render(&b, n); err != nil {
			return "", fmt.Errorf("memdoc: render: %w", err)
		}
	}
	return b.String(), nil
}

// Insert parses fragment, appends it to the first node matching
// parentSelector and notifies insertion observers with the new nodes.
func (d *Document) Insert(parentSelector, fragment string) ([]dom.Node, error) {
	d.mu.Lock()
	parent := d.doc.Find(parentSelector).First()
	if parent.Length() == 0 {
		d.mu.Unlock()
		return nil, fmt.Errorf("memdoc: no element matches %q", parentSelector)
	}
	p := parent.Nodes[0]
	added, err := html.ParseFragment(strings.NewReader(fragment), p)
	if err != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("memdoc: parse fragment: %w", err)
	}
	var batch []dom.Node
	for _, n := range added {
		p.AppendChild(n)
		if n.Type != html.ElementNode {
			continue
		}
		sel := goquery.NewDocumentFromNode(n).Selection
		node := dom.Node{Nested: d.linksIn(sel, false)}
		if sel.Is("a[href]") {
			node.Link = d.linkFor(n)
		}
		batch = append(batch, node)
	}
	d.mu.Unlock()

	if len(batch) > 0 {
		d.subMu.RLock()
		for _, fn := range d.inserts {
			fn(batch)
		}
		d.subMu.RUnlock()
	}
	return batch, nil
}

// ObserveInsertions registers fn for Insert batches.
func (d *Document) ObserveInsertions(ctx context.Context, fn func([]dom.Node)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.subMu.Lock()
	d.subSeq++
	id := d.subSeq
	d.inserts[id] = fn
	d.subMu.Unlock()
	return func() {
		d.subMu.Lock()
		delete(d.inserts, id)
		d.subMu.Unlock()
	}, nil
}

// Listen registers fn for events passed to Fire.
func (d *Document) Listen(ctx context.Context, fn func(dom.Event)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.subMu.Lock()
	d.subSeq++
	id := d.subSeq
	d.listeners[id] = fn
	d.subMu.Unlock()
	return func() {
		d.subMu.Lock()
		delete(d.listeners, id)
		d.subMu.Unlock()
	}, nil
}

// Fire delivers ev to every listener.
func (d *Document) Fire(ev dom.Event) {
	d.subMu.RLock()
	defer d.subMu.RUnlock()
	for _, fn := range d.listeners {
		fn(ev)
	}
}

// Subscribers returns the number of insertion observers and event
// listeners currently registered.
func (d *Document) Subscribers() (inserts, listeners int) {
	d.subMu.RLock()
	defer d.subMu.RUnlock()
	return len(d.inserts), len(d.listeners)
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func lookupAttr(n *html.Node, name string) original {
	for _, a := range n.Attr {
		if a.Key == name {
			return original{value: a.Val, present: true}
		}
	}
	return original{}
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func removeAttr(n *html.Node, name string) {
	for i, a := range n.Attr {
		if a.Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}
