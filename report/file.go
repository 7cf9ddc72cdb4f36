package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hazyhaar/linkguard/internal/safeio"
)

// Format selects a report encoding.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "md"
	FormatJSON     Format = "json"
)

// ParseFormat accepts the names used on the command line.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "pdf", "":
		return FormatPDF, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("report: unknown format %q", s)
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Write encodes r in format f.
func Write(w io.Writer, r Report, f Format) error {
	switch f {
	case FormatPDF:
		return WritePDF(w, r)
	case FormatMarkdown:
		return WriteMarkdown(w, r)
	case FormatJSON:
		return WriteJSON(w, r)
	}
	return fmt.Errorf("report: unknown format %q", f)
}

// FileName is the name a report is saved under.
func FileName(r Report, f Format) string {
	return "page-report-" + r.ID + "." + string(f)
}

// FileRenderer saves reports into Dir.
type FileRenderer struct {
	Dir    string
	Format Format
}

// Render writes the report file and returns its path.
func (fr FileRenderer) Render(_ context.Context, r Report) (string, error) {
	if err := os.MkdirAll(fr.Dir, 0o755); err != nil {
		return "", fmt.Errorf("report: mkdir: %w", err)
	}
	path, err := safeio.Join(fr.Dir, FileName(r, fr.Format))
	if err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("report: create: %w", err)
	}
	if err := Write(f, r, fr.Format); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("report: close: %w", err)
	}
	return path, nil
}
