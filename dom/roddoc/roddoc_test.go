package roddoc

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/linkguard/dom"
)

func TestParseMessage_Insert(t *testing.T) {
	msg, err := parseMessage(`{"type":"insert","nodes":[
		{"link":{"key":"lg-1","href":"https://a.test/"},"nested":[]},
		{"link":null,"nested":[{"key":"lg-2","href":"https://b.test/"},{"key":"lg-3","href":""}]}]}`)
	if err != nil {
		t.Fatal(err)
	}
	if len(msg.Nodes) != 2 {
		t.Fatalf("nodes: got %d, want 2", len(msg.Nodes))
	}
	if msg.Nodes[0].Link == nil || msg.Nodes[0].Link.Key != "lg-1" {
		t.Errorf("node 0: %+v", msg.Nodes[0])
	}
	// WHAT: entries without an href are dropped.
	if msg.Nodes[1].Link != nil || len(msg.Nodes[1].Nested) != 1 {
		t.Errorf("node 1: %+v", msg.Nodes[1])
	}
}

func TestParseMessage_Event(t *testing.T) {
	msg, err := parseMessage(`{"type":"event","kind":"pointer_enter","key":"lg-4","href":"https://x.test/",
		"overlay":"","rect":{"top":10,"left":5,"bottom":30,"right":80}}`)
	if err != nil {
		t.Fatal(err)
	}
	ev := msg.Event
	if ev.Kind != dom.PointerEnter || ev.Key != "lg-4" || !ev.IsLinkLike() {
		t.Errorf("event: %+v", ev)
	}
	if ev.Rect.Bottom != 30 || ev.Rect.Left != 5 {
		t.Errorf("rect: %+v", ev.Rect)
	}

	msg, err = parseMessage(`{"type":"event","kind":"selection_change","text":"example.com","rect":{}}`)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Event.Kind != dom.SelectionChange || msg.Event.Text != "example.com" {
		t.Errorf("selection: %+v", msg.Event)
	}
}

func TestParseMessage_Errors(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"type":"bogus"}`,
		`{"type":"event","kind":"wheel"}`,
		`{"type":"action","overlay":"lg-overlay-1"}`,
	} {
		if _, err := parseMessage(raw); err == nil {
			t.Errorf("parseMessage(%s): expected error", raw)
		}
	}
}

func TestParseLinkRefs(t *testing.T) {
	refs, err := parseLinkRefs(`[{"key":"lg-1","href":"https://a.test/"},{"key":"lg-2"}]`)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 || refs[0].Href != "https://a.test/" {
		t.Errorf("refs: %+v", refs)
	}
	if _, err := parseLinkRefs(`{`); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

// launch starts a headless Chrome or skips when none is installed.
func launch(t *testing.T) *rod.Browser {
	t.Helper()
	if testing.Short() || os.Getenv("LINKGUARD_SKIP_BROWSER") != "" {
		t.Skip("browser tests disabled")
	}
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no Chrome binary found")
	}
	l := launcher.New().Bin(bin).Headless(true)
	u, err := l.Launch()
	if err != nil {
		t.Skipf("launch chrome: %v", err)
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		b.Close()
		l.Cleanup()
	})
	return b
}

func TestDocument_Live(t *testing.T) {
	b := launch(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		t.Fatal(err)
	}
	if err := page.SetDocumentContent(`<html><body>
<a id="a" href="https://a.test/" title="orig">A</a>
<div id="feed"></div></body></html>`); err != nil {
		t.Fatal(err)
	}
	doc, err := Open(ctx, page)
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Close()

	links, err := doc.Links(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 1 || links[0].Href() != "https://a.test/" {
		t.Fatalf("links: %v", links)
	}

	if err := links[0].Apply(ctx, dom.Decoration{Style: map[string]string{"display": "none"}}); err != nil {
		t.Fatal(err)
	}
	if got := evalStr(t, page, `() => document.getElementById("a").style.display`); got != "none" {
		t.Errorf("display: got %q, want none", got)
	}
	links[0].Apply(ctx, dom.Decoration{Style: map[string]string{"display": ""}})
	if got := evalStr(t, page, `() => document.getElementById("a").style.display`); got != "" {
		t.Errorf("display after restore: got %q", got)
	}

	links[0].SetTitle(ctx, "warning")
	links[0].SetTitle(ctx, "")
	if got := evalStr(t, page, `() => document.getElementById("a").title`); got != "orig" {
		t.Errorf("title: got %q, want orig", got)
	}

	var mu sync.Mutex
	var inserted []dom.Node
	stop, err := doc.ObserveInsertions(ctx, func(nodes []dom.Node) {
		mu.Lock()
		inserted = append(inserted, nodes...)
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	defer stop()
	if _, err := page.Eval(`() => { const d = document.createElement("div"); d.innerHTML = '<a href="https://b.test/">b</a>'; document.getElementById("feed").appendChild(d); }`); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(inserted)
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no insertion reported")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(inserted[0].Nested) != 1 || inserted[0].Nested[0].Href() != "https://b.test/" {
		t.Errorf("inserted: %+v", inserted[0])
	}

	ov, err := doc.MountOverlay(ctx, dom.OverlayOptions{Styles: ".box{}", Placement: dom.Placement{Fixed: true, Top: 20, Left: 20}})
	if err != nil {
		t.Fatal(err)
	}
	if err := ov.Render(ctx, `<div class="box">hello</div>`); err != nil {
		t.Fatal(err)
	}
	html := evalStr(t, page, `(id) => document.querySelector('[data-linkguard-overlay="' + id + '"]').shadowRoot.innerHTML`, ov.ID())
	if !strings.Contains(html, "hello") {
		t.Errorf("overlay html: %q", html)
	}
	if err := ov.Remove(ctx); err != nil {
		t.Fatal(err)
	}
	if err := ov.Render(ctx, "x"); err != ErrOverlayRemoved {
		t.Errorf("render after remove: got %v, want %v", err, ErrOverlayRemoved)
	}
}

func evalStr(t *testing.T, p *rod.Page, js string, args ...any) string {
	t.Helper()
	res, err := p.Eval(js, args...)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	return res.Value.Str()
}
