package guard

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/linkguard/classify"
	"github.com/hazyhaar/linkguard/dom"
	"github.com/hazyhaar/linkguard/dom/memdoc"
	"github.com/hazyhaar/linkguard/report"
	"github.com/hazyhaar/linkguard/store"
	"github.com/hazyhaar/linkguard/verdict"
)

const page = `<html><body>
<a id="good" href="https://good.test/">good</a>
<a id="bad" href="https://bad.test/">bad</a>
</body></html>`

var byName = classify.Func(func(ctx context.Context, text string) (verdict.Verdict, error) {
	if strings.Contains(text, "bad") {
		return verdict.Verdict{Classification: verdict.Phishing, Confidence: 0.97, Text: text}, nil
	}
	return verdict.Verdict{Classification: verdict.Benign, Confidence: 0.9, Text: text}, nil
})

// soon runs timers on their own goroutine without waiting.
func soon(_ time.Duration, f func()) func() bool {
	go f()
	return func() bool { return false }
}

type fixture struct {
	doc   *memdoc.Document
	st    *store.Store
	guard *Guard

	mu      sync.Mutex
	reports []report.Report
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	doc, err := memdoc.ParseString("https://page.test/", page)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{doc: doc, st: store.OpenMemory(t)}
	f.guard = New(Options{
		Doc:        doc,
		Store:      f.st,
		Classifier: byName,
		AfterFunc:  soon,
		Renderer: report.RendererFunc(func(_ context.Context, r report.Report) (string, error) {
			f.mu.Lock()
			f.reports = append(f.reports, r)
			f.mu.Unlock()
			return "memory", nil
		}),
	})
	return f
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestGuard_BulkFeatures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.guard.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer f.guard.Stop(ctx)

	f.st.SetBool(ctx, "isHideLinksActive", true)
	eventually(t, "hide", func() bool { return f.doc.Style("#bad", "display") == "none" })
	f.guard.Settle()
	if f.doc.Style("#good", "display") != "" {
		t.Error("benign link hidden")
	}

	f.st.SetBool(ctx, "isUnclickableActive", true)
	eventually(t, "unclickable", func() bool { return f.doc.Style("#bad", "pointer-events") == "none" })

	var hide FeatureState
	eventually(t, "hide summary", func() bool {
		for _, fs := range f.guard.Features(ctx) {
			if fs.Name == "hide" {
				hide = fs
			}
		}
		return hide.Indicator == "summary"
	})
	if !hide.Active || hide.Processed != 2 || hide.Malicious != 1 {
		t.Errorf("hide state: %+v", hide)
	}

	// WHAT: turning one feature off leaves the other's styling intact.
	f.st.SetBool(ctx, "isHideLinksActive", false)
	eventually(t, "unhide", func() bool { return f.doc.Style("#bad", "display") == "" })
	f.guard.Settle()
	if f.doc.Style("#bad", "pointer-events") != "none" {
		t.Error("unclickable styling lost when hide turned off")
	}

	if s := f.guard.EngineStats()["hide"]; s.Classified != 2 || s.Malicious != 1 {
		t.Errorf("hide stats: %+v", s)
	}
}

func TestGuard_StopRestoresPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.st.SetBool(ctx, "isHideLinksActive", true)
	f.guard.Start(ctx)
	eventually(t, "hide", func() bool { return f.doc.Style("#bad", "display") == "none" })

	f.guard.Stop(ctx)
	if f.doc.Style("#bad", "display") != "" {
		t.Error("stop left the link hidden")
	}
	if n := len(f.doc.Mounted()); n != 0 {
		t.Errorf("overlays after stop: %d", n)
	}
	if ins, ls := f.doc.Subscribers(); ins != 0 || ls != 0 {
		t.Errorf("subscribers after stop: %d inserts, %d listeners", ins, ls)
	}
}

func TestGuard_Hover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.st.SetBool(ctx, "isHoverActive", true)
	f.guard.Start(ctx)
	defer f.guard.Stop(ctx)

	key, _ := f.doc.Key("#bad")
	f.doc.Fire(dom.Event{Kind: dom.PointerEnter, Key: key, Href: "https://bad.test/", Rect: dom.Rect{Top: 10, Bottom: 30, Left: 5}})
	eventually(t, "popup verdict", func() bool {
		for _, o := range f.doc.Mounted() {
			if strings.Contains(o.HTML, "Phishing") {
				return true
			}
		}
		return false
	})

	var hover FeatureState
	for _, fs := range f.guard.Features(ctx) {
		if fs.Name == "hover" {
			hover = fs
		}
	}
	if !hover.Active || hover.Popup == "" {
		t.Errorf("hover state: %+v", hover)
	}
}

func TestGuard_Report(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.guard.Start(ctx)
	defer f.guard.Stop(ctx)

	f.st.SetBool(ctx, "isPageReportActive", true)
	eventually(t, "report", func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.reports) == 1
	})
	eventually(t, "flag cleared", func() bool {
		on, _ := f.st.Bool(ctx, "isPageReportActive")
		return !on
	})
	info := f.guard.LastReport()
	if info == nil || info.Links != 2 || info.Malicious != 1 || info.Location != "memory" {
		t.Errorf("last report: %+v", info)
	}
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"hide", "isHideLinksActive"} {
		f, err := Lookup(name)
		if err != nil || f.Name != "hide" {
			t.Errorf("Lookup(%q): %+v, %v", name, f, err)
		}
	}
	if _, err := Lookup("teleport"); err == nil {
		t.Error("expected error for unknown feature")
	}
	if got := len(Flags()); got != len(Catalogue) {
		t.Errorf("flags: got %d, want %d", got, len(Catalogue))
	}
}
