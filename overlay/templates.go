package overlay

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/hazyhaar/linkguard/verdict"
)

//go:embed styles.css
var Styles string

//go:embed templates/*.html
var templateFS embed.FS

var tmpl = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type indicatorView struct {
	Processing bool
	Count      int
	Message    string
}

// PopupView is the content of a link popup.
type PopupView struct {
	Loading    bool
	Error      string
	Details    verdict.Details
	Confidence string
}

// LoadingPopup is shown while a classification is in flight.
func LoadingPopup() PopupView { return PopupView{Loading: true} }

// ErrorPopup reports a failed classification.
func ErrorPopup(msg string) PopupView {
	if msg == "" {
		msg = "Failed to check link"
	}
	return PopupView{Error: msg}
}

// VerdictPopup explains a classification.
func VerdictPopup(v verdict.Verdict) PopupView {
	return PopupView{Details: verdict.Describe(v.Classification), Confidence: v.Percent()}
}

// RenderPopup renders a popup view to HTML.
func RenderPopup(v PopupView) (string, error) { return execute("popup", v) }

func execute(name string, data any) (string, error) {
	var b bytes.Buffer
	if err := tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("overlay: render %s: %w", name, err)
	}
	return b.String(), nil
}
