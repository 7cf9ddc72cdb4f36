package guard

import (
	"errors"
	"fmt"

	"github.com/hazyhaar/linkguard/decorate"
)

// Kind is how a feature reacts to its flag.
type Kind string

const (
	// KindBulk decorates every link on the page.
	KindBulk Kind = "bulk"
	// KindHover checks the link under a resting pointer.
	KindHover Kind = "hover"
	// KindSelection checks selected text.
	KindSelection Kind = "selection"
	// KindReport generates a one-shot report and clears the flag.
	KindReport Kind = "report"
)

// Feature describes one switchable behaviour.
type Feature struct {
	Name string `json:"name"`
	Flag string `json:"flag"`
	Kind Kind   `json:"kind"`

	// Bulk features only.
	Label    string            `json:"-"`
	Message  string            `json:"-"`
	Strategy decorate.Strategy `json:"-"`
}

// Catalogue lists every feature with the store key of its flag.
var Catalogue = []Feature{
	{Name: "hide", Flag: "isHideLinksActive", Kind: KindBulk, Label: "hidden", Message: "Links Are Hidden", Strategy: decorate.Hide},
	{Name: "unclickable", Flag: "isUnclickableActive", Kind: KindBulk, Label: "blocked", Message: "Links Made Unclickable", Strategy: decorate.Unclickable},
	{Name: "hover", Flag: "isHoverActive", Kind: KindHover},
	{Name: "selection", Flag: "isHighlighterActive", Kind: KindSelection},
	{Name: "report", Flag: "isPageReportActive", Kind: KindReport},
}

// ErrUnknownFeature is returned by Lookup.
var ErrUnknownFeature = errors.New("guard: unknown feature")

// Lookup finds a feature by name or by flag key.
func Lookup(name string) (Feature, error) {
	for _, f := range Catalogue {
		if f.Name == name || f.Flag == name {
			return f, nil
		}
	}
	return Feature{}, fmt.Errorf("%w %q", ErrUnknownFeature, name)
}

// Flags returns every flag key.
func Flags() []string {
	out := make([]string, len(Catalogue))
	for i, f := range Catalogue {
		out[i] = f.Flag
	}
	return out
}
