// Package guard runs every linkguard feature against one document and
// exposes their flags and state over HTTP and MCP.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/linkguard/classify"
	"github.com/hazyhaar/linkguard/dom"
	"github.com/hazyhaar/linkguard/engine"
	"github.com/hazyhaar/linkguard/feature"
	"github.com/hazyhaar/linkguard/overlay"
	"github.com/hazyhaar/linkguard/report"
	"github.com/hazyhaar/linkguard/store"
	"github.com/hazyhaar/linkguard/trigger"
)

// Options wires a Guard.
type Options struct {
	Doc        dom.Document
	Store      *store.Store
	Classifier classify.Classifier
	Renderer   report.Renderer
	Logger     *slog.Logger

	MaxConcurrency     int
	HoverDelay         time.Duration
	HoverTeardownDelay time.Duration
	// AfterFunc replaces time.AfterFunc in the hover trigger.
	AfterFunc trigger.AfterFunc
}

// Guard owns the features of one page.
type Guard struct {
	opts   Options
	logger *slog.Logger

	bulk      map[string]*feature.Synchronizer
	hover     *trigger.Hover
	selection *trigger.Selection
	report    *report.Generator

	mu      sync.Mutex
	started bool

	repMu      sync.Mutex
	lastReport *ReportInfo
}

// ReportInfo describes the last generated report.
type ReportInfo struct {
	ID        string    `json:"id"`
	Location  string    `json:"location"`
	Links     int       `json:"links"`
	Malicious int       `json:"malicious"`
	At        time.Time `json:"at"`
	Error     string    `json:"error,omitempty"`
}

// New builds the feature set from Catalogue.
func New(o Options) *Guard {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	g := &Guard{opts: o, logger: o.Logger, bulk: make(map[string]*feature.Synchronizer)}
	titles := engine.NewTitles()

	for _, f := range Catalogue {
		switch f.Kind {
		case KindBulk:
			eng := engine.New(
				engine.FeatureConfig{Name: f.Label, Strategy: f.Strategy, StatusMessage: f.Message},
				o.Doc, o.Classifier,
				engine.WithLogger(o.Logger),
				engine.WithMaxConcurrency(o.MaxConcurrency),
				engine.WithTitles(titles),
			)
			g.bulk[f.Name] = feature.New(feature.Config{
				Flag:   f.Flag,
				Engine: eng,
				State:  engine.NewRunState(overlay.NewIndicator(o.Doc, f.Message, o.Logger)),
				Store:  o.Store,
				Logger: o.Logger,
			})
		case KindHover:
			g.hover = trigger.NewHover(g.triggerConfig(f))
		case KindSelection:
			g.selection = trigger.NewSelection(g.triggerConfig(f))
		case KindReport:
			g.report = report.New(report.Config{
				Doc:            o.Doc,
				Classifier:     o.Classifier,
				Renderer:       o.Renderer,
				Store:          o.Store,
				Flag:           f.Flag,
				Logger:         o.Logger,
				MaxConcurrency: o.MaxConcurrency,
				OnReport:       g.recordReport,
			})
		}
	}
	return g
}

func (g *Guard) triggerConfig(f Feature) trigger.Config {
	return trigger.Config{
		Doc:           g.opts.Doc,
		Classifier:    g.opts.Classifier,
		Flags:         g.opts.Store,
		Flag:          f.Flag,
		Logger:        g.opts.Logger,
		ShowDelay:     g.opts.HoverDelay,
		TeardownDelay: g.opts.HoverTeardownDelay,
		AfterFunc:     g.opts.AfterFunc,
	}
}

func (g *Guard) recordReport(r report.Report, location string, err error) {
	info := &ReportInfo{ID: r.ID, Location: location, Links: r.Total(), Malicious: r.Malicious(), At: r.GeneratedAt}
	if err != nil {
		info.Error = err.Error()
	}
	g.repMu.Lock()
	g.lastReport = info
	g.repMu.Unlock()
}

// Start bootstraps every feature from the store and follows the flags.
func (g *Guard) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return nil
	}
	if err := g.hover.Start(ctx); err != nil {
		return fmt.Errorf("guard: hover: %w", err)
	}
	if err := g.selection.Start(ctx); err != nil {
		g.hover.Stop()
		return fmt.Errorf("guard: selection: %w", err)
	}
	for _, f := range Catalogue {
		if s, ok := g.bulk[f.Name]; ok {
			s.Start(ctx)
		}
	}
	if g.opts.Renderer != nil {
		g.report.Start(ctx)
	}
	g.started = true
	g.logger.Info("guard: started", "url", g.opts.Doc.URL())
	return nil
}

// Stop restores the page and stops following flags.
func (g *Guard) Stop(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.started {
		return
	}
	g.report.Stop(ctx)
	for _, s := range g.bulk {
		s.Stop(ctx)
	}
	g.selection.Stop()
	g.hover.Stop()
	g.started = false
	g.logger.Info("guard: stopped", "url", g.opts.Doc.URL())
}

// Settle waits for in-flight scans, deltas and popup checks.
func (g *Guard) Settle() {
	for _, s := range g.bulk {
		s.Settle()
	}
	g.hover.Wait()
	g.selection.Wait()
}

// FeatureState is the live state of one feature.
type FeatureState struct {
	Feature
	Active    bool   `json:"active"`
	Processed int    `json:"processed,omitempty"`
	Malicious int    `json:"malicious,omitempty"`
	Indicator string `json:"indicator,omitempty"`
	Popup     string `json:"popup,omitempty"`
}

// Features reports each feature in catalogue order. Active reflects the
// running state for bulk features and the stored flag otherwise.
func (g *Guard) Features(ctx context.Context) []FeatureState {
	out := make([]FeatureState, 0, len(Catalogue))
	for _, f := range Catalogue {
		fs := FeatureState{Feature: f}
		switch f.Kind {
		case KindBulk:
			s := g.bulk[f.Name]
			fs.Active = s.Active()
			fs.Processed, fs.Malicious = s.State().Counts()
			fs.Indicator = s.State().Indicator.State().String()
		case KindHover:
			fs.Active = g.flag(ctx, f.Flag)
			fs.Popup = g.hover.Popup()
		case KindSelection:
			fs.Active = g.flag(ctx, f.Flag)
			fs.Popup = g.selection.Popup()
		default:
			fs.Active = g.flag(ctx, f.Flag)
		}
		out = append(out, fs)
	}
	return out
}

func (g *Guard) flag(ctx context.Context, key string) bool {
	on, err := g.opts.Store.Bool(ctx, key)
	if err != nil {
		g.logger.Warn("guard: flag read failed", "flag", key, "error", err)
	}
	return on
}

// EngineStats returns lifetime counters per bulk feature.
func (g *Guard) EngineStats() map[string]engine.Stats {
	out := make(map[string]engine.Stats, len(g.bulk))
	for name, s := range g.bulk {
		out[name] = s.Engine().Stats()
	}
	return out
}

// LastReport returns the most recent report, or nil.
func (g *Guard) LastReport() *ReportInfo {
	g.repMu.Lock()
	defer g.repMu.Unlock()
	return g.lastReport
}

// URL is the guarded page.
func (g *Guard) URL() string { return g.opts.Doc.URL() }
