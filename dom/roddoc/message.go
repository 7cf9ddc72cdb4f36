package roddoc

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/hazyhaar/linkguard/dom"
)

const (
	msgInsert = "insert"
	msgEvent  = "event"
	msgAction = "action"
)

type linkRef struct {
	Key  string
	Href string
}

type nodeRef struct {
	Link   *linkRef
	Nested []linkRef
}

// message is one agent report.
type message struct {
	Type    string
	Nodes   []nodeRef
	Event   dom.Event
	Overlay string
	Action  string
}

func parseLinkRefs(raw string) ([]linkRef, error) {
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("roddoc: links: invalid JSON")
	}
	return linkRefs(gjson.Parse(raw)), nil
}

func linkRefs(arr gjson.Result) []linkRef {
	var out []linkRef
	arr.ForEach(func(_, v gjson.Result) bool {
		if ref, ok := toLinkRef(v); ok {
			out = append(out, ref)
		}
		return true
	})
	return out
}

func toLinkRef(v gjson.Result) (linkRef, bool) {
	key, href := v.Get("key").String(), v.Get("href").String()
	if key == "" || href == "" {
		return linkRef{}, false
	}
	return linkRef{Key: key, Href: href}, true
}

func parseMessage(raw string) (message, error) {
	if !gjson.Valid(raw) {
		return message{}, fmt.Errorf("roddoc: invalid JSON")
	}
	root := gjson.Parse(raw)
	msg := message{Type: root.Get("type").String()}
	switch msg.Type {
	case msgInsert:
		root.Get("nodes").ForEach(func(_, n gjson.Result) bool {
			var node nodeRef
			if ref, ok := toLinkRef(n.Get("link")); ok {
				node.Link = &ref
			}
			node.Nested = linkRefs(n.Get("nested"))
			msg.Nodes = append(msg.Nodes, node)
			return true
		})
	case msgEvent:
		kind, err := parseKind(root.Get("kind").String())
		if err != nil {
			return message{}, err
		}
		r := root.Get("rect")
		msg.Event = dom.Event{
			Kind:    kind,
			Key:     root.Get("key").String(),
			Href:    root.Get("href").String(),
			Overlay: root.Get("overlay").String(),
			Text:    root.Get("text").String(),
			Rect: dom.Rect{
				Top:    r.Get("top").Float(),
				Left:   r.Get("left").Float(),
				Bottom: r.Get("bottom").Float(),
				Right:  r.Get("right").Float(),
			},
		}
	case msgAction:
		msg.Overlay = root.Get("overlay").String()
		msg.Action = root.Get("action").String()
		if msg.Overlay == "" || msg.Action == "" {
			return message{}, fmt.Errorf("roddoc: action without overlay or name")
		}
	default:
		return message{}, fmt.Errorf("roddoc: unknown message type %q", msg.Type)
	}
	return msg, nil
}

func parseKind(s string) (dom.EventKind, error) {
	for _, k := range []dom.EventKind{dom.PointerEnter, dom.PointerLeave, dom.SelectionChange} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("roddoc: unknown event kind %q", s)
}
