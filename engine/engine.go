// Package engine classifies the links of a document and decorates them
// according to a feature's strategy.
//
// One Engine serves one feature. Full scans and insertion deltas may run
// concurrently; decorations are idempotent so a link processed twice ends
// in the same state.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/hazyhaar/linkguard/classify"
	"github.com/hazyhaar/linkguard/decorate"
	"github.com/hazyhaar/linkguard/dom"
	"github.com/hazyhaar/linkguard/verdict"
)

// FeatureConfig describes one link feature. It is not mutated after New.
type FeatureConfig struct {
	// Name is the participle used in the reason title ("hidden", "blocked").
	Name string
	// Strategy decorates links from their verdict.
	Strategy decorate.Strategy
	// StatusMessage follows the count in the status overlay.
	StatusMessage string
}

// VerdictSink receives every successful classification.
type VerdictSink func(href string, v verdict.Verdict)

// Engine is safe for concurrent use.
type Engine struct {
	cfg        FeatureConfig
	doc        dom.Document
	classifier classify.Classifier
	logger     *slog.Logger
	sink       VerdictSink
	limit      int
	titles     *Titles

	classified atomic.Int64
	flagged    atomic.Int64
	failed     atomic.Int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithVerdictSink registers fn for every successful classification.
func WithVerdictSink(fn VerdictSink) Option { return func(e *Engine) { e.sink = fn } }

// WithTitles shares a title arbiter with the other features of the
// document.
func WithTitles(t *Titles) Option { return func(e *Engine) { e.titles = t } }

// WithMaxConcurrency caps in-flight classifications per scan. The default
// (0) starts one call per link.
func WithMaxConcurrency(n int) Option { return func(e *Engine) { e.limit = n } }

// New creates an Engine for cfg over doc.
func New(cfg FeatureConfig, doc dom.Document, c classify.Classifier, opts ...Option) *Engine {
	if cfg.Strategy == nil {
		cfg.Strategy = decorate.Report
	}
	e := &Engine{cfg: cfg, doc: doc, classifier: c}
	for _, o := range opts {
		o(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.titles == nil {
		e.titles = NewTitles()
	}
	return e
}

// Config returns the feature descriptor.
func (e *Engine) Config() FeatureConfig { return e.cfg }

// Document returns the document the engine works on.
func (e *Engine) Document() dom.Document { return e.doc }

// Stats are point-in-time counters over the engine's lifetime.
type Stats struct {
	Classified int64 `json:"classified"`
	Malicious  int64 `json:"malicious"`
	Failed     int64 `json:"failed"`
}

// Stats returns the lifetime counters.
func (e *Engine) Stats() Stats {
	return Stats{Classified: e.classified.Load(), Malicious: e.flagged.Load(), Failed: e.failed.Load()}
}

// UpdateLink classifies link and decorates it. When active is false the
// link is restored without contacting the classifier. Classification
// failures leave the link neutral and report false.
func (e *Engine) UpdateLink(ctx context.Context, link dom.Link, active bool) bool {
	if !active {
		e.present(ctx, link, false, verdict.Verdict{})
		return false
	}

	href := link.Href()
	v, err := e.classifier.Classify(ctx, href)
	if err != nil {
		e.failed.Add(1)
		e.logger.Warn("engine: classification failed",
			"feature", e.cfg.Name, "url", href, "error", err)
		e.present(ctx, link, false, verdict.Verdict{})
		return false
	}

	e.classified.Add(1)
	malicious := v.Malicious()
	if malicious {
		e.flagged.Add(1)
	}
	if e.sink != nil {
		e.sink(href, v)
	}
	e.present(ctx, link, malicious, v)
	return malicious
}

// present applies the strategy and the reason title. It runs detached from
// ctx so a cancelled scan still leaves links in a consistent state.
func (e *Engine) present(ctx context.Context, link dom.Link, malicious bool, v verdict.Verdict) {
	dec := e.cfg.Strategy(malicious)
	if dec.Empty() {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := link.Apply(ctx, dec); err != nil {
		e.logger.Warn("engine: decorate failed", "feature", e.cfg.Name, "link", link.Key(), "error", err)
	}
	title := ""
	if malicious {
		title = verdict.Reason(e.cfg.Name, v)
	}
	if err := e.titles.set(ctx, link, e.cfg.Name, title); err != nil {
		e.logger.Warn("engine: set title failed", "feature", e.cfg.Name, "link", link.Key(), "error", err)
	}
}

// UpdateAllLinks processes every link currently in the document and
// stores the totals in st. Only a failure to enumerate is returned.
func (e *Engine) UpdateAllLinks(ctx context.Context, st *RunState, active bool) error {
	epoch := st.Epoch()
	links, err := e.doc.Links(ctx)
	if err != nil {
		return fmt.Errorf("engine: enumerate links: %w", err)
	}
	e.logger.Info("engine: scanning links", "feature", e.cfg.Name, "links", len(links), "active", active)

	if active && st.Indicator != nil {
		if err := st.Indicator.Processing(ctx); err != nil {
			e.logger.Warn("engine: indicator failed", "feature", e.cfg.Name, "error", err)
		}
	}

	results := settle(links, e.limit, func(l dom.Link) bool {
		return e.UpdateLink(ctx, l, active)
	})

	if !active {
		st.set(epoch, 0, 0)
		return nil
	}
	malicious := countTrue(results)
	if !st.set(epoch, len(links), malicious) {
		e.logger.Debug("engine: scan superseded", "feature", e.cfg.Name)
		return nil
	}
	e.logger.Info("engine: scan complete", "feature", e.cfg.Name, "links", len(links), "malicious", malicious)
	e.summary(ctx, st, malicious)
	return nil
}

// ApplyDelta processes newly inserted links and adds them to st.
func (e *Engine) ApplyDelta(ctx context.Context, st *RunState, links []dom.Link) {
	if len(links) == 0 {
		return
	}
	epoch := st.Epoch()
	results := settle(links, e.limit, func(l dom.Link) bool {
		return e.UpdateLink(ctx, l, true)
	})
	malicious, ok := st.add(epoch, len(links), countTrue(results))
	if !ok {
		return
	}
	e.logger.Debug("engine: delta applied", "feature", e.cfg.Name, "links", len(links), "malicious_total", malicious)
	e.summary(ctx, st, malicious)
}

func (e *Engine) summary(ctx context.Context, st *RunState, malicious int) {
	if st.Indicator == nil {
		return
	}
	if err := st.Indicator.Summary(ctx, malicious); err != nil {
		e.logger.Warn("engine: indicator failed", "feature", e.cfg.Name, "error", err)
	}
}
