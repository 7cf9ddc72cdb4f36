// Package report produces a one-shot summary of every link on a page.
//
// The Generator follows the page-report flag: when it turns on, every link
// is classified without touching the page, the results are handed to a
// Renderer, and the flag is cleared again.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hazyhaar/linkguard/classify"
	"github.com/hazyhaar/linkguard/decorate"
	"github.com/hazyhaar/linkguard/dom"
	"github.com/hazyhaar/linkguard/engine"
	"github.com/hazyhaar/linkguard/feature"
	"github.com/hazyhaar/linkguard/idgen"
	"github.com/hazyhaar/linkguard/verdict"
)

// Report is the outcome of one batch run. Links whose classification
// failed are absent.
type Report struct {
	ID          string               `json:"id"`
	PageURL     string               `json:"page_url"`
	GeneratedAt time.Time            `json:"generated_at"`
	Links       []verdict.LinkReport `json:"links"`
}

// Total returns the number of classified links.
func (r Report) Total() int { return len(r.Links) }

// Malicious returns the number of links not classified benign.
func (r Report) Malicious() int {
	n := 0
	for _, l := range r.Links {
		if l.Classification.Malicious() {
			n++
		}
	}
	return n
}

// Renderer delivers a report and returns where it went (a path, a URL).
type Renderer interface {
	Render(ctx context.Context, r Report) (string, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, r Report) (string, error)

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, r Report) (string, error) { return f(ctx, r) }

// Config wires a Generator.
type Config struct {
	Doc        dom.Document
	Classifier classify.Classifier
	Renderer   Renderer
	// Store and Flag are needed by Start only.
	Store  FlagStore
	Flag   string
	Logger *slog.Logger
	// MaxConcurrency caps in-flight classifications; 0 is unbounded.
	MaxConcurrency int
	// Now defaults to time.Now.
	Now func() time.Time
	// OnReport runs after each report is rendered.
	OnReport func(r Report, location string, err error)
}

// FlagStore reads, clears and follows the report flag.
type FlagStore interface {
	feature.FlagStore
	SetBool(ctx context.Context, key string, v bool) error
}

// Generator builds reports. Runs are serialised.
type Generator struct {
	cfg    Config
	logger *slog.Logger
	engine *engine.Engine

	run      sync.Mutex
	accMu    sync.Mutex
	acc      []verdict.LinkReport
	follower *feature.Follower
}

// New creates a Generator.
func New(cfg Config) *Generator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	g := &Generator{cfg: cfg, logger: cfg.Logger}
	g.engine = engine.New(
		engine.FeatureConfig{Name: "reported", Strategy: decorate.Report},
		cfg.Doc, cfg.Classifier,
		engine.WithLogger(cfg.Logger),
		engine.WithMaxConcurrency(cfg.MaxConcurrency),
		engine.WithVerdictSink(g.collect),
	)
	return g
}

func (g *Generator) collect(href string, v verdict.Verdict) {
	g.accMu.Lock()
	g.acc = append(g.acc, verdict.NewLinkReport(href, v))
	g.accMu.Unlock()
}

// Build scans the page and returns the report without rendering it.
func (g *Generator) Build(ctx context.Context) (Report, error) {
	g.run.Lock()
	defer g.run.Unlock()

	g.accMu.Lock()
	g.acc = nil
	g.accMu.Unlock()

	if err := g.engine.UpdateAllLinks(ctx, engine.NewRunState(nil), true); err != nil {
		return Report{}, fmt.Errorf("report: %w", err)
	}

	g.accMu.Lock()
	links := g.acc
	g.acc = nil
	g.accMu.Unlock()

	// Completion order is arbitrary; keep the output stable.
	sort.SliceStable(links, func(i, j int) bool { return links[i].URL < links[j].URL })
	return Report{
		ID:          idgen.New(),
		PageURL:     g.cfg.Doc.URL(),
		GeneratedAt: g.cfg.Now().UTC(),
		Links:       links,
	}, nil
}

// Run builds a report and hands it to the renderer.
func (g *Generator) Run(ctx context.Context) (Report, string, error) {
	r, err := g.Build(ctx)
	if err != nil {
		return Report{}, "", err
	}
	loc, err := g.cfg.Renderer.Render(ctx, r)
	if err != nil {
		err = fmt.Errorf("report: render: %w", err)
	}
	g.logger.Info("report: generated", "id", r.ID, "links", r.Total(), "malicious", r.Malicious(), "location", loc)
	if g.cfg.OnReport != nil {
		g.cfg.OnReport(r, loc, err)
	}
	return r, loc, err
}

// Start follows the report flag until Stop or ctx ends.
func (g *Generator) Start(ctx context.Context) {
	g.follower = feature.Follow(ctx, g.cfg.Store, g.cfg.Flag, g.onFlag, g.logger)
}

// Stop stops following the flag.
func (g *Generator) Stop(ctx context.Context) {
	if g.follower != nil {
		g.follower.Stop(ctx)
	}
}

func (g *Generator) onFlag(ctx context.Context, active bool) {
	if !active {
		return
	}
	if _, _, err := g.Run(ctx); err != nil {
		g.logger.Error("report: run failed", "error", err)
	}
	// The flag is a one-shot request; clear it whatever the outcome.
	if err := g.cfg.Store.SetBool(context.WithoutCancel(ctx), g.cfg.Flag, false); err != nil {
		g.logger.Error("report: clear flag failed", "flag", g.cfg.Flag, "error", err)
	}
}
