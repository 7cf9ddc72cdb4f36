package engine

import (
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/linkguard/dom"
)

// settle runs fn for every link and waits for all of them. Tasks never
// fail, so one link cannot stop the others. limit <= 0 means unbounded.
func settle(links []dom.Link, limit int, fn func(dom.Link) bool) []bool {
	results := make([]bool, len(links))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, l := range links {
		g.Go(func() error {
			results[i] = fn(l)
			return nil
		})
	}
	g.Wait()
	return results
}

func countTrue(bs []bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}
