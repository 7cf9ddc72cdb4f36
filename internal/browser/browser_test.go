package browser

import (
	"context"
	"testing"
)

func TestShouldBlock(t *testing.T) {
	blocked := map[string]bool{"images": true, "fonts": true, "xhr": true}
	tests := []struct {
		typ  string
		want bool
	}{
		{"Image", true},
		{"Font", true},
		{"Stylesheet", false},
		{"XHR", true},
		{"Document", false},
	}
	for _, tt := range tests {
		if got := shouldBlock(blocked, tt.typ); got != tt.want {
			t.Errorf("shouldBlock(%q): got %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestOpenTab_RejectsUnsafeURL(t *testing.T) {
	m := NewManager(Config{})
	for _, u := range []string{"file:///etc/passwd", "javascript:alert(1)", "https://"} {
		if _, err := m.OpenTab(context.Background(), u); err == nil {
			t.Errorf("OpenTab(%q): expected error", u)
		}
	}
}

func TestOpenTab_NotStarted(t *testing.T) {
	m := NewManager(Config{})
	if _, err := m.OpenTab(context.Background(), "https://example.com/"); err == nil {
		t.Fatal("expected error before Start")
	}
}

func TestStart_AfterClose(t *testing.T) {
	m := NewManager(Config{})
	m.Close()
	if _, err := m.Start(context.Background()); err == nil {
		t.Fatal("expected error after Close")
	}
}
