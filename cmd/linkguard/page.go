package main

import (
	"bytes"
	"context"
	"fmt"

	"github.com/hazyhaar/linkguard/dom"
	"github.com/hazyhaar/linkguard/dom/memdoc"
	"github.com/hazyhaar/linkguard/dom/roddoc"
	"github.com/hazyhaar/linkguard/internal/browser"
	"github.com/hazyhaar/linkguard/internal/fetcher"
)

// page is an opened document and how to release it.
type page struct {
	doc   dom.Document
	mem   *memdoc.Document
	close func()
}

// openPage loads pageURL over plain HTTP when static is set, otherwise in
// Chrome.
func (e *env) openPage(ctx context.Context, pageURL string, static bool) (*page, error) {
	if static {
		res, err := fetcher.New(fetcher.WithLogger(e.logger)).Fetch(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		doc, err := memdoc.Parse(res.URL, bytes.NewReader(res.HTML))
		if err != nil {
			return nil, err
		}
		return &page{doc: doc, mem: doc, close: func() {}}, nil
	}

	bc := e.cfg.Browser
	mgr := browser.NewManager(browser.Config{
		RemoteURL:        bc.Remote,
		Bin:              bc.Bin,
		Headful:          !*bc.Headless,
		Stealth:          bc.Stealth,
		ResourceBlocking: bc.ResourceBlocking,
		Logger:           e.logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return nil, err
	}
	tab, err := mgr.OpenTab(ctx, pageURL)
	if err != nil {
		mgr.Close()
		return nil, err
	}
	doc, err := roddoc.Open(ctx, tab, roddoc.WithLogger(e.logger))
	if err != nil {
		tab.Close()
		mgr.Close()
		return nil, fmt.Errorf("open document: %w", err)
	}
	return &page{doc: doc, close: func() {
		doc.Close()
		tab.Close()
		mgr.Close()
	}}, nil
}
