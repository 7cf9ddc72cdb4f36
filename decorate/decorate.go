// Package decorate holds the presentation strategies a feature applies to
// classified links.
package decorate

import "github.com/hazyhaar/linkguard/dom"

// Strategy maps a verdict onto the inline styles it owns. It must be pure:
// the same flag always yields the same decoration.
type Strategy func(malicious bool) dom.Decoration

func set(props map[string]string, malicious bool) dom.Decoration {
	style := make(map[string]string, len(props))
	for k, v := range props {
		if malicious {
			style[k] = v
		} else {
			style[k] = ""
		}
	}
	return dom.Decoration{Style: style}
}

var hidden = map[string]string{"display": "none"}

var unclickable = map[string]string{
	"pointer-events":  "none",
	"cursor":          "not-allowed",
	"opacity":         "0.7",
	"text-decoration": "line-through",
}

// Hide removes malicious links from the layout.
func Hide(malicious bool) dom.Decoration { return set(hidden, malicious) }

// Unclickable leaves malicious links visible but inert and struck through.
func Unclickable(malicious bool) dom.Decoration { return set(unclickable, malicious) }

// Report never touches the page; the verdict is collected elsewhere.
func Report(bool) dom.Decoration { return dom.Decoration{} }
