package guard

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/hazyhaar/linkguard/classify"
	"github.com/hazyhaar/linkguard/engine"
	"github.com/hazyhaar/linkguard/internal/kit"
	"github.com/hazyhaar/linkguard/store"
	"github.com/hazyhaar/linkguard/verdict"
)

// Control serves flag, status and classification requests. Guard is nil
// when no page is attached (the CLI's mcp command); flags still work and
// a running instance picks them up through the store.
type Control struct {
	Store      *store.Store
	Classifier classify.Classifier
	Guard      *Guard
	Logger     *slog.Logger
}

var (
	// ErrEmptyText is returned when classify gets nothing to check.
	ErrEmptyText = errors.New("guard: text is empty")
	// ErrActiveRequired is returned when a flag write omits the value.
	ErrActiveRequired = errors.New("guard: active is required")
)

// SetFeatureRequest toggles a feature.
type SetFeatureRequest struct {
	Name   string `json:"name"`
	Active *bool  `json:"active"`
}

// ClassifyRequest checks one piece of text.
type ClassifyRequest struct {
	Text string `json:"text"`
}

// ClassifyResponse is a verdict with its popup wording.
type ClassifyResponse struct {
	verdict.Verdict
	Title       string `json:"title"`
	Description string `json:"description"`
	Tone        string `json:"tone"`
	Percent     string `json:"percent"`
}

// Status is the state of the control's page and classifier.
type Status struct {
	URL        string                  `json:"url,omitempty"`
	Features   []FeatureState          `json:"features"`
	Engines    map[string]engine.Stats `json:"engines,omitempty"`
	Classifier *classify.Stats         `json:"classifier,omitempty"`
	LastReport *ReportInfo             `json:"last_report,omitempty"`
}

func (c *Control) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Control) wrap(name string, e kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.Logging(c.logger(), name))(e)
}

// ListFeatures returns every feature with its stored flag, or the live
// state when a page is attached.
func (c *Control) ListFeatures(ctx context.Context, _ any) (any, error) {
	if c.Guard != nil {
		return c.Guard.Features(ctx), nil
	}
	values, err := c.Store.Get(ctx, Flags()...)
	if err != nil {
		return nil, err
	}
	out := make([]FeatureState, 0, len(Catalogue))
	for _, f := range Catalogue {
		on, _ := values[f.Flag].(bool)
		out = append(out, FeatureState{Feature: f, Active: on})
	}
	return out, nil
}

// SetFeature writes a feature flag.
func (c *Control) SetFeature(ctx context.Context, req any) (any, error) {
	r := req.(*SetFeatureRequest)
	if r.Active == nil {
		return nil, ErrActiveRequired
	}
	f, err := Lookup(r.Name)
	if err != nil {
		return nil, err
	}
	if err := c.Store.SetBool(ctx, f.Flag, *r.Active); err != nil {
		return nil, err
	}
	return FeatureState{Feature: f, Active: *r.Active}, nil
}

// Status reports features, counters and the last report.
func (c *Control) Status(ctx context.Context, _ any) (any, error) {
	feats, err := c.ListFeatures(ctx, nil)
	if err != nil {
		return nil, err
	}
	st := Status{Features: feats.([]FeatureState)}
	if c.Guard != nil {
		st.URL = c.Guard.URL()
		st.Engines = c.Guard.EngineStats()
		st.LastReport = c.Guard.LastReport()
	}
	if client, ok := c.Classifier.(*classify.Client); ok {
		s := client.Stats()
		st.Classifier = &s
	}
	return st, nil
}

// Classify checks text with the classifier.
func (c *Control) Classify(ctx context.Context, req any) (any, error) {
	r := req.(*ClassifyRequest)
	text := strings.TrimSpace(r.Text)
	if text == "" {
		return nil, ErrEmptyText
	}
	v, err := c.Classifier.Classify(ctx, text)
	if err != nil {
		return nil, &ClassifyError{Err: err}
	}
	d := verdict.Describe(v.Classification)
	return ClassifyResponse{
		Verdict:     v,
		Title:       d.Title,
		Description: d.Description,
		Tone:        string(d.Tone),
		Percent:     v.Percent(),
	}, nil
}

// ClassifyError carries the user-facing message of a classifier failure.
type ClassifyError struct {
	Err error
}

func (e *ClassifyError) Error() string { return classify.Message(e.Err) }
func (e *ClassifyError) Unwrap() error { return e.Err }
