package trigger

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/linkguard/classify"
	"github.com/hazyhaar/linkguard/dom"
	"github.com/hazyhaar/linkguard/dom/memdoc"
	"github.com/hazyhaar/linkguard/store"
	"github.com/hazyhaar/linkguard/verdict"
)

// fakeClock runs timers when Advance moves past their deadline.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	at   time.Duration
	fn   func()
	done bool
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) func() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now + d, fn: fn}
	c.timers = append(c.timers, t)
	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		was := !t.done
		t.done = true
		return was
	}
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.done && t.at <= c.now {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
}

type env struct {
	doc   *memdoc.Document
	flags *store.Store
	clock *fakeClock
}

func newEnv(t *testing.T) *env {
	t.Helper()
	doc, err := memdoc.ParseString("https://page.test/", `<html><body><a href="https://a.test/">a</a></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	return &env{doc: doc, flags: store.OpenMemory(t), clock: &fakeClock{}}
}

var phishing = classify.Func(func(ctx context.Context, text string) (verdict.Verdict, error) {
	if text == "fail" {
		return verdict.Verdict{}, &classify.StatusError{Status: 500, Detail: "model offline"}
	}
	return verdict.Verdict{Classification: verdict.Phishing, Confidence: 0.9, Text: text}, nil
})

func (e *env) hover(t *testing.T) *Hover {
	t.Helper()
	h := NewHover(Config{
		Doc: e.doc, Classifier: phishing, Flags: e.flags, Flag: "isHoverActive",
		AfterFunc: e.clock.AfterFunc,
	})
	if err := h.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(h.Stop)
	return h
}

func enter(key string) dom.Event {
	return dom.Event{Kind: dom.PointerEnter, Key: key, Href: "https://" + key + ".test/",
		Rect: dom.Rect{Top: 100, Left: 40, Bottom: 120, Right: 90}}
}

func TestHover_ShowsAfterDelay(t *testing.T) {
	e := newEnv(t)
	e.flags.SetBool(context.Background(), "isHoverActive", true)
	h := e.hover(t)

	e.doc.Fire(enter("x"))
	e.clock.Advance(499 * time.Millisecond)
	if len(e.doc.Mounted()) != 0 {
		t.Fatal("popup shown before delay")
	}
	e.clock.Advance(time.Millisecond)
	h.Wait()

	m := e.doc.Mounted()
	if len(m) != 1 {
		t.Fatalf("mounted: %d", len(m))
	}
	if m[0].Placement.Top != 130 || m[0].Placement.Left != 40 || m[0].Placement.Fixed {
		t.Errorf("placement: %+v", m[0].Placement)
	}
	if !strings.Contains(m[0].HTML, "Phishing Risk") {
		t.Errorf("popup html: %s", m[0].HTML)
	}
}

func TestHover_Inactive(t *testing.T) {
	e := newEnv(t)
	e.hover(t)
	e.doc.Fire(enter("x"))
	e.clock.Advance(time.Second)
	if len(e.doc.Overlays()) != 0 {
		t.Error("inactive hover opened a popup")
	}
}

func TestHover_LeaveCancelsPendingShow(t *testing.T) {
	e := newEnv(t)
	e.flags.SetBool(context.Background(), "isHoverActive", true)
	e.hover(t)
	e.doc.Fire(enter("x"))
	e.clock.Advance(200 * time.Millisecond)
	e.doc.Fire(dom.Event{Kind: dom.PointerLeave, Key: "x"})
	e.clock.Advance(time.Second)
	if len(e.doc.Overlays()) != 0 {
		t.Error("popup shown after pointer left")
	}
}

func TestHover_TeardownAndRescue(t *testing.T) {
	e := newEnv(t)
	e.flags.SetBool(context.Background(), "isHoverActive", true)
	h := e.hover(t)
	e.doc.Fire(enter("x"))
	e.clock.Advance(HoverDelay)
	h.Wait()
	id := h.Popup()
	if id == "" {
		t.Fatal("no popup")
	}

	// Moving onto the popup keeps it alive.
	e.doc.Fire(dom.Event{Kind: dom.PointerLeave, Key: "x"})
	e.clock.Advance(100 * time.Millisecond)
	e.doc.Fire(dom.Event{Kind: dom.PointerEnter, Overlay: id})
	e.clock.Advance(time.Second)
	if h.Popup() != id {
		t.Fatal("popup torn down while pointer on it")
	}

	// Re-entering the same link does not rebuild it.
	e.doc.Fire(enter("x"))
	e.clock.Advance(time.Second)
	if h.Popup() != id || len(e.doc.Overlays()) != 1 {
		t.Fatal("popup rebuilt for the same link")
	}

	e.doc.Fire(dom.Event{Kind: dom.PointerLeave, Key: "x"})
	e.clock.Advance(HoverTeardownDelay)
	if h.Popup() != "" || len(e.doc.Mounted()) != 0 {
		t.Error("popup not torn down")
	}
}

func TestHover_SwitchLinks(t *testing.T) {
	e := newEnv(t)
	e.flags.SetBool(context.Background(), "isHoverActive", true)
	h := e.hover(t)
	e.doc.Fire(enter("x"))
	e.clock.Advance(HoverDelay)
	first := h.Popup()
	e.doc.Fire(enter("y"))
	if h.Popup() != "" {
		t.Error("old popup must close when entering another link")
	}
	e.clock.Advance(HoverDelay)
	h.Wait()
	if h.Popup() == "" || h.Popup() == first {
		t.Error("new popup not shown")
	}
	if len(e.doc.Mounted()) != 1 {
		t.Errorf("mounted: %d", len(e.doc.Mounted()))
	}
}

func TestHover_IgnoresNonLinks(t *testing.T) {
	e := newEnv(t)
	e.flags.SetBool(context.Background(), "isHoverActive", true)
	e.hover(t)
	e.doc.Fire(dom.Event{Kind: dom.PointerEnter, Key: "p"})
	e.clock.Advance(time.Second)
	if len(e.doc.Overlays()) != 0 {
		t.Error("popup for a non-link element")
	}
}

func (e *env) selection(t *testing.T) *Selection {
	t.Helper()
	return e.selectionWith(t, phishing)
}

func (e *env) selectionWith(t *testing.T, c classify.Classifier) *Selection {
	t.Helper()
	s := NewSelection(Config{
		Doc: e.doc, Classifier: c, Flags: e.flags, Flag: "isHighlighterActive",
		AfterFunc: e.clock.AfterFunc,
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Stop)
	return s
}

func TestSelection(t *testing.T) {
	e := newEnv(t)
	e.flags.SetBool(context.Background(), "isHighlighterActive", true)
	s := e.selection(t)

	e.doc.Fire(dom.Event{Kind: dom.SelectionChange, Text: "http://x.test", Rect: dom.Rect{Bottom: 50, Left: 5}})
	e.clock.Advance(SelectionDelay)
	s.Wait()
	m := e.doc.Mounted()
	if len(m) != 1 || m[0].Placement.Top != 60 || !strings.Contains(m[0].HTML, "Phishing Risk") {
		t.Fatalf("popup: %+v", m)
	}

	e.doc.Fire(dom.Event{Kind: dom.SelectionChange, Text: "fail"})
	e.clock.Advance(SelectionDelay)
	s.Wait()
	m = e.doc.Mounted()
	if len(m) != 1 || !strings.Contains(m[0].HTML, "model offline") {
		t.Fatalf("error popup: %+v", m)
	}

	e.doc.Fire(dom.Event{Kind: dom.SelectionChange, Text: "   "})
	if len(e.doc.Mounted()) != 0 {
		t.Error("blank selection must remove the popup")
	}
}

func TestSelection_Inactive(t *testing.T) {
	e := newEnv(t)
	e.selection(t)
	e.doc.Fire(dom.Event{Kind: dom.SelectionChange, Text: "http://x.test"})
	e.clock.Advance(time.Second)
	if len(e.doc.Overlays()) != 0 {
		t.Error("inactive selection opened a popup")
	}
}

func TestSelection_LoadingState(t *testing.T) {
	e := newEnv(t)
	e.flags.SetBool(context.Background(), "isHighlighterActive", true)
	release := make(chan struct{})
	slow := classify.Func(func(ctx context.Context, text string) (verdict.Verdict, error) {
		select {
		case <-release:
			return verdict.Verdict{Classification: verdict.Benign, Confidence: 1}, nil
		case <-ctx.Done():
			return verdict.Verdict{}, ctx.Err()
		}
	})
	s := e.selectionWith(t, slow)

	e.doc.Fire(dom.Event{Kind: dom.SelectionChange, Text: "abc"})
	e.clock.Advance(SelectionDelay)
	if m := e.doc.Mounted(); len(m) != 1 || !strings.Contains(m[0].HTML, "Checking link...") {
		t.Fatalf("loading: %+v", m)
	}
	close(release)
	s.Wait()
	if m := e.doc.Mounted(); !strings.Contains(m[0].HTML, "Link is Safe") {
		t.Errorf("result: %s", m[0].HTML)
	}
}

// WHAT: dragging a selection reports every intermediate text.
// WHY: only the settled selection may reach the classifier.
func TestSelection_OneCheckPerGesture(t *testing.T) {
	e := newEnv(t)
	e.flags.SetBool(context.Background(), "isHighlighterActive", true)
	var mu sync.Mutex
	var seen []string
	counting := classify.Func(func(ctx context.Context, text string) (verdict.Verdict, error) {
		mu.Lock()
		seen = append(seen, text)
		mu.Unlock()
		return verdict.Verdict{Classification: verdict.Benign, Confidence: 1, Text: text}, nil
	})
	s := e.selectionWith(t, counting)

	full := "https://drag.test/"
	for i := 1; i <= len(full); i++ {
		e.doc.Fire(dom.Event{Kind: dom.SelectionChange, Text: full[:i]})
		e.clock.Advance(SelectionDelay / 5)
	}
	if len(e.doc.Overlays()) != 0 {
		t.Fatal("popup opened while the selection was still changing")
	}
	e.clock.Advance(SelectionDelay)
	s.Wait()

	// The same selection reported again is not checked twice.
	e.doc.Fire(dom.Event{Kind: dom.SelectionChange, Text: full})
	e.clock.Advance(SelectionDelay)
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != full {
		t.Fatalf("classifier calls: got %q, want one call for %q", seen, full)
	}
	if len(e.doc.Mounted()) != 1 {
		t.Errorf("mounted: %d, want 1", len(e.doc.Mounted()))
	}
}

func TestSelection_ClearCancelsPending(t *testing.T) {
	e := newEnv(t)
	e.flags.SetBool(context.Background(), "isHighlighterActive", true)
	e.selection(t)
	e.doc.Fire(dom.Event{Kind: dom.SelectionChange, Text: "abc"})
	e.doc.Fire(dom.Event{Kind: dom.SelectionChange, Text: ""})
	e.clock.Advance(time.Second)
	if len(e.doc.Overlays()) != 0 {
		t.Error("popup opened for a cleared selection")
	}
}

func TestHover_DisabledClosesPopup(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.flags.SetBool(ctx, "isHoverActive", true)
	h := e.hover(t)
	e.doc.Fire(enter("x"))
	e.clock.Advance(HoverDelay)
	h.Wait()
	if h.Popup() == "" {
		t.Fatal("no popup")
	}

	e.flags.SetBool(ctx, "isHoverActive", false)
	e.doc.Fire(dom.Event{Kind: dom.PointerEnter, Overlay: h.Popup()})
	if h.Popup() != "" || len(e.doc.Mounted()) != 0 {
		t.Error("popup survived the feature being switched off")
	}
}

func TestSlot(t *testing.T) {
	c := &fakeClock{}
	s := slot{after: c.AfterFunc}
	var fired []string
	s.schedule(time.Second, func() { fired = append(fired, "a") })
	s.schedule(time.Second, func() { fired = append(fired, "b") })
	if !s.pending() {
		t.Fatal("expected pending")
	}
	c.Advance(time.Second)
	if len(fired) != 1 || fired[0] != "b" {
		t.Errorf("fired: %v", fired)
	}
	s.schedule(time.Second, func() { fired = append(fired, "c") })
	s.cancel()
	c.Advance(time.Second)
	if len(fired) != 1 {
		t.Errorf("cancelled timer fired: %v", fired)
	}
}
