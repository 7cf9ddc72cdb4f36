package watcher

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/hazyhaar/linkguard/classify"
	"github.com/hazyhaar/linkguard/decorate"
	"github.com/hazyhaar/linkguard/dom"
	"github.com/hazyhaar/linkguard/dom/memdoc"
	"github.com/hazyhaar/linkguard/engine"
	"github.com/hazyhaar/linkguard/verdict"
)

type fixture struct {
	doc   *memdoc.Document
	eng   *engine.Engine
	st    *engine.RunState
	calls atomic.Int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	doc, err := memdoc.ParseString("https://page.test/",
		`<html><body><a href="https://old.test/">old</a><div id="feed"></div></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{doc: doc, st: engine.NewRunState(nil)}
	c := classify.Func(func(ctx context.Context, text string) (verdict.Verdict, error) {
		f.calls.Add(1)
		if text == "https://bad.test/" {
			return verdict.Verdict{Classification: verdict.Malware, Confidence: 0.9}, nil
		}
		return verdict.Verdict{Classification: verdict.Benign, Confidence: 0.9}, nil
	})
	f.eng = engine.New(engine.FeatureConfig{Name: "hidden", Strategy: decorate.Hide}, doc, c)
	return f
}

// WHAT: a container holding three nested links adds exactly three.
// WHY: existing links must not be reprocessed on insertion.
func TestWatcher_NestedDelta(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.eng.UpdateAllLinks(ctx, f.st, true); err != nil {
		t.Fatal(err)
	}
	base := f.calls.Load()

	w := New(f.doc, f.eng, f.st, nil, nil)
	if err := w.Attach(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Detach()

	f.doc.Insert("#feed", `<ul><li><a href="https://bad.test/">1</a></li><li><a href="https://ok.test/">2</a></li><li><a href="https://ok2.test/">3</a></li></ul>`)
	w.Wait()

	if got := f.calls.Load() - base; got != 3 {
		t.Errorf("classifications: got %d, want 3", got)
	}
	if p, m := f.st.Counts(); p != 4 || m != 1 {
		t.Errorf("counts: got %d/%d, want 4/1", p, m)
	}
}

func TestWatcher_AttachIdempotent(t *testing.T) {
	f := newFixture(t)
	w := New(f.doc, f.eng, f.st, nil, nil)
	w.Attach(context.Background())
	w.Attach(context.Background())
	if ins, _ := f.doc.Subscribers(); ins != 1 {
		t.Fatalf("subscriptions: got %d, want 1", ins)
	}
	w.Detach()
	if ins, _ := f.doc.Subscribers(); ins != 0 || w.Attached() {
		t.Fatal("detach left a subscription")
	}
	w.Detach()
}

func TestWatcher_DetachStopsCallbacks(t *testing.T) {
	f := newFixture(t)
	w := New(f.doc, f.eng, f.st, nil, nil)
	w.Attach(context.Background())
	w.Detach()
	f.doc.Insert("#feed", `<a href="https://bad.test/">x</a>`)
	w.Wait()
	if f.calls.Load() != 0 {
		t.Error("callback fired after detach")
	}
}

func TestWatcher_InactiveNoop(t *testing.T) {
	f := newFixture(t)
	var active atomic.Bool
	w := New(f.doc, f.eng, f.st, active.Load, nil)
	w.Attach(context.Background())
	defer w.Detach()
	f.doc.Insert("#feed", `<a href="https://bad.test/">x</a>`)
	w.Wait()
	if f.calls.Load() != 0 {
		t.Error("inactive watcher classified links")
	}
}

type fakeLink struct{ key string }

func (l fakeLink) Key() string                                 { return l.key }
func (l fakeLink) Href() string                                { return "https://" + l.key }
func (l fakeLink) Apply(context.Context, dom.Decoration) error { return nil }
func (l fakeLink) SetTitle(context.Context, string) error      { return nil }

func TestDelta_Dedup(t *testing.T) {
	a, b, c := fakeLink{"a"}, fakeLink{"b"}, fakeLink{"c"}
	got := Delta([]dom.Node{
		{Link: a},
		{Nested: []dom.Link{b, c, a}},
		{Nested: []dom.Link{b}},
		{},
	})
	if len(got) != 3 {
		t.Fatalf("delta: got %d links, want 3", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].Key() != want {
			t.Errorf("delta[%d]: got %s, want %s", i, got[i].Key(), want)
		}
	}
}
