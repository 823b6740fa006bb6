package meowstatus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadOrCreateVisitorID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "visitor-id")

	first := LoadOrCreateVisitorID(path)
	if !strings.HasPrefix(first, "v-") {
		t.Fatalf("expected v- prefixed id, got %q", first)
	}

	second := LoadOrCreateVisitorID(path)
	if second != first {
		t.Fatalf("identity must be stable across loads: %q vs %q", first, second)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read persisted id: %v", err)
	}
	if strings.TrimSpace(string(data)) != first {
		t.Fatalf("persisted id mismatch: %q", string(data))
	}
}

func TestLoadOrCreateVisitorIDUnwritablePath(t *testing.T) {
	// Points at a path whose parent is a file, so persistence fails.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	id := LoadOrCreateVisitorID(filepath.Join(blocker, "visitor-id"))
	if !strings.HasPrefix(id, "v-") {
		t.Fatalf("session-only id still expected, got %q", id)
	}
}
