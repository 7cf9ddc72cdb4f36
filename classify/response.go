package classify

import (
	"bytes"
	"html"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/tidwall/gjson"

	"github.com/hazyhaar/linkguard/verdict"
)

const maxDetail = 200

var stripTags = bluemonday.StrictPolicy()

func parseVerdict(body []byte) (verdict.Verdict, error) {
	if !gjson.ValidBytes(body) {
		return verdict.Verdict{}, &MalformedError{Reason: "body is not JSON"}
	}
	r := gjson.ParseBytes(body)
	if !r.IsObject() {
		return verdict.Verdict{}, &MalformedError{Reason: "body is not an object"}
	}

	cls := r.Get("classification")
	if cls.Type != gjson.String {
		return verdict.Verdict{}, &MalformedError{Reason: "missing classification"}
	}
	c := verdict.Classification(cls.String())
	if !c.Valid() {
		return verdict.Verdict{}, &MalformedError{Reason: "unknown classification " + cls.String()}
	}

	conf := r.Get("confidence")
	if conf.Type != gjson.Number {
		return verdict.Verdict{}, &MalformedError{Reason: "missing confidence"}
	}
	f := conf.Float()
	if math.IsNaN(f) || f < 0 || f > 1 {
		return verdict.Verdict{}, &MalformedError{Reason: "confidence out of range: " + conf.Raw}
	}

	return verdict.Verdict{
		Classification: c,
		Confidence:     f,
		Text:           r.Get("text").String(),
	}, nil
}

// diagnose extracts a human readable reason from a non-2xx body.
func diagnose(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return "unknown error occurred"
	}
	if gjson.ValidBytes(body) {
		d := gjson.GetBytes(body, "detail")
		switch {
		case d.Type == gjson.String && d.String() != "":
			return truncate(d.String())
		case d.IsArray():
			if msg := d.Get("0.msg"); msg.Type == gjson.String {
				return truncate(msg.String())
			}
		}
		return "failed to check link"
	}
	text := html.UnescapeString(stripTags.Sanitize(string(body)))
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "unknown error occurred"
	}
	return truncate(text)
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxDetail {
		return s
	}
	r := []rune(s)
	return string(r[:maxDetail]) + "..."
}
