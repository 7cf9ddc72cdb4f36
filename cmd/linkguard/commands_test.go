package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFlagsCmd_SetAndList(t *testing.T) {
	base := sandbox(t, "")

	out, err := execute(t, append(base, "flags", "set", "hide", "on")...)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "hide on" {
		t.Errorf("set: got %q", out)
	}

	out, err = execute(t, append(base, "flags", "list")...)
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 3 {
			continue
		}
		switch fields[0] {
		case "hide":
			if fields[2] != "on" {
				t.Errorf("hide: got %q, want on", fields[2])
			}
		case "unclickable", "hover", "selection", "report":
			if fields[2] != "off" {
				t.Errorf("%s: got %q, want off", fields[0], fields[2])
			}
		}
	}
}

func TestFlagsCmd_Errors(t *testing.T) {
	base := sandbox(t, "")
	if _, err := execute(t, append(base, "flags", "set", "teleport", "on")...); err == nil {
		t.Error("unknown feature should fail")
	}
	if _, err := execute(t, append(base, "flags", "set", "hide", "maybe")...); err == nil {
		t.Error("bad state should fail")
	}
}

func TestClassifyCmd(t *testing.T) {
	srv := newClassifier(t)
	base := sandbox(t, srv.URL)

	out, err := execute(t, append(base, "classify", "https://bad.example/")...)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Malware Threat") || !strings.Contains(out, "91.0%") {
		t.Errorf("got %q", out)
	}

	out, err = execute(t, append(base, "classify", "--json", "https://good.example/")...)
	if err != nil {
		t.Fatal(err)
	}
	var v struct {
		Classification string  `json:"classification"`
		Confidence     float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if v.Classification != "benign" || v.Confidence != 0.88 {
		t.Errorf("got %+v", v)
	}
}

func TestClassifyCmd_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"detail":"model is loading"}`))
	}))
	defer srv.Close()

	_, err := execute(t, append(sandbox(t, srv.URL), "classify", "https://x.example/")...)
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "model is loading" {
		t.Errorf("got %q, want the upstream detail", err)
	}
}

// servePage serves a small document with one bad and one good link.
func servePage(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>
<a id="b" href="https://bad.example/login">win</a>
<a id="g" href="https://good.example/">docs</a>
</body></html>`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScanCmd_Static(t *testing.T) {
	cls := newClassifier(t)
	pg := servePage(t)
	out, err := execute(t, append(sandbox(t, cls.URL), "scan", "--static", "--feature", "hide", pg.URL)...)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "classified as malware") {
		t.Errorf("bad link not decorated:\n%s", out)
	}
	if strings.Contains(out, "classified as benign") {
		t.Errorf("good link decorated:\n%s", out)
	}
}

func TestScanCmd_OutputFile(t *testing.T) {
	cls := newClassifier(t)
	pg := servePage(t)
	dst := filepath.Join(t.TempDir(), "page.html")
	if _, err := execute(t, append(sandbox(t, cls.URL), "scan", "--static", "-f", "unclickable", "-o", dst, pg.URL)...); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "This link was blocked") {
		t.Errorf("output not decorated:\n%s", data)
	}
}

func TestScanCmd_RejectsNonBulk(t *testing.T) {
	if _, err := execute(t, append(sandbox(t, ""), "scan", "--static", "-f", "hover", "http://127.0.0.1:1/")...); err == nil {
		t.Error("hover is not a bulk feature")
	}
}

func TestReportCmd_Static(t *testing.T) {
	cls := newClassifier(t)
	pg := servePage(t)
	dir := t.TempDir()
	out, err := execute(t, append(sandbox(t, cls.URL), "report", "--static", "--format", "json", "--dir", dir, pg.URL)...)
	if err != nil {
		t.Fatal(err)
	}
	path := strings.TrimSpace(out)
	if filepath.Dir(path) != dir || !strings.HasPrefix(filepath.Base(path), "page-report-") || filepath.Ext(path) != ".json" {
		t.Fatalf("unexpected path %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var r struct {
		Links []struct {
			URL            string `json:"url"`
			Classification string `json:"classification"`
		} `json:"links"`
	}
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatal(err)
	}
	if len(r.Links) != 2 {
		t.Fatalf("got %d links, want 2", len(r.Links))
	}
	if r.Links[0].URL != "https://bad.example/login" || r.Links[0].Classification != "malware" {
		t.Errorf("first link = %+v", r.Links[0])
	}
}
