package report

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
)

// Title heads every rendered report.
const Title = "Linkguard Page Report"

// WriteMarkdown writes r as GitHub-flavoured Markdown.
func WriteMarkdown(w io.Writer, r Report) error {
	md := markdown.NewMarkdown(w)
	md.H1(Title)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Page URL", "`" + r.PageURL + "`"},
			{"Generated", r.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Total Links Analyzed", strconv.Itoa(r.Total())},
			{"Malicious Links Found", strconv.Itoa(r.Malicious())},
		},
	})
	md.PlainText("")

	md.H2("Link Analysis Results")
	md.PlainText("")
	if len(r.Links) == 0 {
		md.PlainText("No links could be classified.")
		return md.Build()
	}
	rows := make([][]string, 0, len(r.Links))
	for _, l := range r.Links {
		verdictCell := l.Classification.Title()
		if l.Classification.Malicious() {
			verdictCell = "**" + verdictCell + "**"
		}
		rows = append(rows, []string{
			"`" + escapeCell(l.URL) + "`",
			l.Domain,
			verdictCell,
			strconv.FormatFloat(l.Confidence*100, 'f', 1, 64) + "%",
		})
	}
	md.Table(markdown.TableSet{
		Header:    []string{"URL", "Domain", "Classification", "Confidence"},
		Rows:      rows,
		Alignment: []markdown.TableAlignment{markdown.AlignLeft, markdown.AlignLeft, markdown.AlignLeft, markdown.AlignRight},
	})
	return md.Build()
}

func escapeCell(s string) string { return strings.ReplaceAll(s, "|", "%7C") }

// MarkdownRenderer writes to W and reports "markdown" as the location.
type MarkdownRenderer struct{ W io.Writer }

// Render implements Renderer.
func (m MarkdownRenderer) Render(_ context.Context, r Report) (string, error) {
	return "markdown", WriteMarkdown(m.W, r)
}
