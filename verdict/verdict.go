// Package verdict defines the data exchanged between the classifier, the
// link engine and the report generator.
package verdict

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Classification is the label returned by the classification service.
type Classification string

const (
	Benign     Classification = "benign"
	Defacement Classification = "defacement"
	Phishing   Classification = "phishing"
	Malware    Classification = "malware"
)

// Classifications lists every label the service may return.
var Classifications = []Classification{Benign, Defacement, Phishing, Malware}

// Valid reports whether c is a known label.
func (c Classification) Valid() bool {
	switch c {
	case Benign, Defacement, Phishing, Malware:
		return true
	}
	return false
}

// Malicious reports whether c is anything other than benign.
func (c Classification) Malicious() bool { return c != Benign }

var titleCaser = cases.Title(language.English)

// Title returns the label with its first letter capitalised ("Phishing").
func (c Classification) Title() string { return titleCaser.String(string(c)) }

// Verdict is one classification result. It is never cached.
type Verdict struct {
	Classification Classification `json:"classification"`
	Confidence     float64        `json:"confidence"`
	Text           string         `json:"text"`
}

// Malicious reports whether the verdict flags the link.
func (v Verdict) Malicious() bool { return v.Classification.Malicious() }

// Percent formats the confidence as a percentage with one decimal ("88.0%").
func (v Verdict) Percent() string {
	return fmt.Sprintf("%.1f%%", v.Confidence*100)
}

// Reason builds the explanation attached to a decorated link.
func Reason(feature string, v Verdict) string {
	return fmt.Sprintf("This link was %s because it was classified as %s (%s confidence)",
		feature, v.Classification, v.Percent())
}

// Tone is the severity of a classification as shown to the user.
type Tone string

const (
	ToneSafe    Tone = "safe"
	ToneWarning Tone = "warning"
	ToneDanger  Tone = "danger"
)

// Details is the user-facing explanation of a classification.
type Details struct {
	Title       string
	Description string
	Tone        Tone
}

// Describe returns the explanation shown in popups for c.
func Describe(c Classification) Details {
	switch c {
	case Benign:
		return Details{"Link is Safe", "No threats detected. It's safe to visit this site.", ToneSafe}
	case Defacement:
		return Details{"Potential Defacement", "This site may be visually altered or tampered with.", ToneWarning}
	case Phishing:
		return Details{"Phishing Risk", "This link may trick you into giving away sensitive info. Avoid it.", ToneDanger}
	case Malware:
		return Details{"Malware Threat", "This site could install harmful software. Do not continue.", ToneDanger}
	}
	return Details{"Unknown Classification", "The classifier returned an unrecognised label.", ToneWarning}
}

// LinkReport is one row of a batch report.
type LinkReport struct {
	URL            string         `json:"url"`
	Domain         string         `json:"domain"`
	Classification Classification `json:"classification"`
	Confidence     float64        `json:"confidence"`
}

// NewLinkReport builds a report row for rawURL.
func NewLinkReport(rawURL string, v Verdict) LinkReport {
	return LinkReport{
		URL:            rawURL,
		Domain:         Domain(rawURL),
		Classification: v.Classification,
		Confidence:     v.Confidence,
	}
}

// Domain returns the registrable domain (eTLD+1) of rawURL, the bare host
// when no public suffix applies, or "" when rawURL has no host.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}
