package config

import (
	"testing"
	"time"
)

func TestString(t *testing.T) {
	t.Setenv("MEOW_TEST_STR", "  value  ")
	if got := String("MEOW_TEST_STR", "fallback"); got != "value" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	if got := String("MEOW_TEST_STR_UNSET", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestInt(t *testing.T) {
	t.Setenv("MEOW_TEST_INT", "42")
	if got := Int("MEOW_TEST_INT", 7); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	t.Setenv("MEOW_TEST_INT", "not-a-number")
	if got := Int("MEOW_TEST_INT", 7); got != 7 {
		t.Fatalf("invalid int should fall back, got %d", got)
	}
}

func TestBool(t *testing.T) {
	cases := map[string]bool{"1": true, "true": true, "YES": true, "0": false, "false": false, "no": false}
	for raw, want := range cases {
		t.Setenv("MEOW_TEST_BOOL", raw)
		if got := Bool("MEOW_TEST_BOOL", !want); got != want {
			t.Errorf("Bool(%q) = %v, want %v", raw, got, want)
		}
	}
	t.Setenv("MEOW_TEST_BOOL", "maybe")
	if !Bool("MEOW_TEST_BOOL", true) {
		t.Fatal("unparseable bool should fall back")
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("MEOW_TEST_DUR", "90s")
	if got := Duration("MEOW_TEST_DUR", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
	// Bare integers are seconds, matching the *_SECS convention.
	t.Setenv("MEOW_TEST_DUR", "300")
	if got := Duration("MEOW_TEST_DUR", time.Minute); got != 5*time.Minute {
		t.Fatalf("expected 5m from bare seconds, got %v", got)
	}
	t.Setenv("MEOW_TEST_DUR", "soon")
	if got := Duration("MEOW_TEST_DUR", time.Minute); got != time.Minute {
		t.Fatalf("unparseable duration should fall back, got %v", got)
	}
}
