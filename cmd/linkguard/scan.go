package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/linkguard/engine"
	"github.com/hazyhaar/linkguard/guard"
	"github.com/hazyhaar/linkguard/overlay"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Run one bulk feature over a page",
		Long: `Scan classifies every link on the page once and applies a bulk feature.

With --static the page is fetched over HTTP instead of loaded in Chrome, and
the decorated HTML is written to --output (or stdout).

Examples:
  linkguard scan --feature hide https://example.com/
  linkguard scan --static --feature unclickable -o page.html https://example.com/`,
		Args: cobra.ExactArgs(1),
		RunE: runScan,
	}
	cmd.Flags().StringP("feature", "f", "hide", "Bulk feature: hide or unclickable")
	cmd.Flags().Bool("static", false, "Fetch over HTTP instead of using Chrome")
	cmd.Flags().StringP("output", "o", "", "Write decorated HTML here (static only)")
	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("feature")
	static, _ := cmd.Flags().GetBool("static")
	output, _ := cmd.Flags().GetString("output")

	f, err := guard.Lookup(name)
	if err != nil {
		return err
	}
	if f.Kind != guard.KindBulk {
		return fmt.Errorf("feature %q does not scan pages", f.Name)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	p, err := e.openPage(ctx, args[0], static)
	if err != nil {
		return err
	}
	defer p.close()

	eng := engine.New(
		engine.FeatureConfig{Name: f.Label, Strategy: f.Strategy, StatusMessage: f.Message},
		p.doc, e.classifier(),
		engine.WithLogger(e.logger),
		engine.WithMaxConcurrency(e.cfg.Classifier.MaxConcurrency),
	)
	st := engine.NewRunState(overlay.NewIndicator(p.doc, f.Message, e.logger))
	st.Indicator.Show()
	if err := eng.UpdateAllLinks(ctx, st, true); err != nil {
		return err
	}
	processed, malicious := st.Counts()
	stats := eng.Stats()
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d links, %d %s, %d unchecked\n",
		p.doc.URL(), processed, malicious, f.Label, stats.Failed)

	if p.mem == nil {
		return nil
	}
	return writeHTML(cmd.OutOrStdout(), output, p.mem.HTML)
}

func writeHTML(stdout io.Writer, path string, render func() (string, error)) error {
	html, err := render()
	if err != nil {
		return err
	}
	if path == "" {
		_, err = io.WriteString(stdout, html)
		return err
	}
	return os.WriteFile(path, []byte(html), 0o644)
}
