package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/linkguard/guard"
	"github.com/hazyhaar/linkguard/report"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Guard a page in Chrome until interrupted",
		Long: `Run opens the page in Chrome, starts every feature from its stored flag and
follows flag changes made through the control API, MCP or "linkguard flags".

Control API (default 127.0.0.1:8766):
  GET  /features
  PUT  /features/{name}   {"active": true}
  GET  /status
  POST /classify          {"text": "https://..."}`,
		Args: cobra.ExactArgs(1),
		RunE: runRun,
	}
	cmd.Flags().String("addr", "", "Control API listen address (default from configuration)")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = e.cfg.Control.Addr
	}
	format, err := report.ParseFormat(e.cfg.Report.Format)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	st, err := e.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	go st.Watch(ctx)

	p, err := e.openPage(ctx, args[0], false)
	if err != nil {
		return err
	}
	defer p.close()

	classifier := e.classifier()
	g := guard.New(guard.Options{
		Doc:                p.doc,
		Store:              st,
		Classifier:         classifier,
		Renderer:           report.FileRenderer{Dir: e.cfg.Report.Dir, Format: format},
		Logger:             e.logger,
		MaxConcurrency:     e.cfg.Classifier.MaxConcurrency,
		HoverDelay:         e.cfg.Triggers.HoverDelay,
		HoverTeardownDelay: e.cfg.Triggers.HoverTeardownDelay,
	})
	if err := g.Start(ctx); err != nil {
		return err
	}
	defer g.Stop(context.Background())

	ctl := &guard.Control{Store: st, Classifier: classifier, Guard: g, Logger: e.logger}
	srv := &http.Server{Addr: addr, Handler: ctl.Router(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		e.logger.Info("control: listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	return srv.Shutdown(shutdownCtx)
}
