package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/linkguard/report"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <url>",
		Short: "Write a report classifying every link on a page",
		Long: `Report classifies every link on the page without changing it and saves the
results as page-report-<id>.<format> in the report directory.`,
		Args: cobra.ExactArgs(1),
		RunE: runReport,
	}
	cmd.Flags().String("format", "", "Report format: pdf, md or json (default from configuration)")
	cmd.Flags().String("dir", "", "Report directory (default from configuration)")
	cmd.Flags().Bool("static", false, "Fetch over HTTP instead of using Chrome")
	return cmd
}

func runReport(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	formatName, _ := cmd.Flags().GetString("format")
	if formatName == "" {
		formatName = e.cfg.Report.Format
	}
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = e.cfg.Report.Dir
	}
	static, _ := cmd.Flags().GetBool("static")

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	p, err := e.openPage(ctx, args[0], static)
	if err != nil {
		return err
	}
	defer p.close()

	gen := report.New(report.Config{
		Doc:            p.doc,
		Classifier:     e.classifier(),
		Renderer:       report.FileRenderer{Dir: dir, Format: format},
		Logger:         e.logger,
		MaxConcurrency: e.cfg.Classifier.MaxConcurrency,
	})
	r, path, err := gen.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", path)
	fmt.Fprintf(cmd.ErrOrStderr(), "%d links analyzed, %d malicious\n", r.Total(), r.Malicious())
	return nil
}
