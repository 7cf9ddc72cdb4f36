package engine

import (
	"context"
	"slices"
	"sync"

	"github.com/hazyhaar/linkguard/dom"
)

// Titles arbitrates the title attribute between features decorating the
// same document. A link shows the reason of the feature that set it last;
// clearing one feature's reason falls back to another feature's, and to
// the original title once none remain.
type Titles struct {
	mu      sync.Mutex
	reasons map[string]map[string]string // link key -> feature -> reason
}

// NewTitles creates an empty arbiter.
func NewTitles() *Titles {
	return &Titles{reasons: make(map[string]map[string]string)}
}

// set records reason for feature on link and writes the resulting title.
// Writes are serialised so the attribute follows the registry order.
func (t *Titles) set(ctx context.Context, link dom.Link, feature, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := link.Key()
	byFeature := t.reasons[key]
	title := reason
	if reason != "" {
		if byFeature == nil {
			byFeature = make(map[string]string)
			t.reasons[key] = byFeature
		}
		byFeature[feature] = reason
	} else {
		delete(byFeature, feature)
		if len(byFeature) == 0 {
			delete(t.reasons, key)
		} else {
			rest := make([]string, 0, len(byFeature))
			for f := range byFeature {
				rest = append(rest, f)
			}
			slices.Sort(rest)
			title = byFeature[rest[0]]
		}
	}
	return link.SetTitle(ctx, title)
}
