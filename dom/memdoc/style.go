package memdoc

import (
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

// declarations is an inline style attribute in source order.
type declarations []*css.Declaration

// parseStyle keeps whatever declarations parse cleanly; a malformed tail
// is dropped.
func parseStyle(s string) declarations {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	// The parser only closes a declaration on ';' or '}'.
	if !strings.HasSuffix(s, ";") {
		s += ";"
	}
	decls, _ := parser.ParseDeclarations(s)
	var out declarations
	for _, d := range decls {
		d.Property = strings.ToLower(strings.TrimSpace(d.Property))
		if d.Property != "" {
			out = append(out, d)
		}
	}
	return out
}

func (ds declarations) lookup(prop string) *css.Declaration {
	for _, d := range ds {
		if d.Property == prop {
			return d
		}
	}
	return nil
}

func (ds declarations) get(prop string) (string, bool) {
	if d := ds.lookup(prop); d != nil {
		return d.Value, true
	}
	return "", false
}

// set replaces the value and priority of prop, appending it when absent.
func (ds declarations) set(prop, value string, important bool) declarations {
	if d := ds.lookup(prop); d != nil {
		d.Value = value
		d.Important = important
		return ds
	}
	return append(ds, &css.Declaration{Property: prop, Value: value, Important: important})
}

func (ds declarations) remove(prop string) declarations {
	out := ds[:0]
	for _, d := range ds {
		if d.Property != prop {
			out = append(out, d)
		}
	}
	return out
}

func (ds declarations) String() string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = d.String()
	}
	return strings.Join(parts, " ")
}
