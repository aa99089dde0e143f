package store

import (
	"context"
	"path/filepath"
	"testing"
)

func newSQLiteBackend(t *testing.T, path string) *GormBackend {
	t.Helper()
	b, err := NewGormBackend(path)
	if err != nil {
		t.Fatalf("new gorm backend: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestGormBackendUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	b := newSQLiteBackend(t, filepath.Join(t.TempDir(), "logos.db"))

	if err := b.Set(ctx, "logos_user", `{"id":"u1"}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := b.Set(ctx, "logos_user", `{"id":"u2"}`); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, err := b.Get(ctx, "logos_user")
	if err != nil || !ok || v != `{"id":"u2"}` {
		t.Fatalf("unexpected get: %q ok=%v err=%v", v, ok, err)
	}
	if err := b.Delete(ctx, "logos_user"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, err := b.Get(ctx, "logos_user"); err != nil || ok {
		t.Fatalf("expected deleted key absent, ok=%v err=%v", ok, err)
	}
}

func TestGormBackendSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "logos.db")

	first, err := NewGormBackend(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Set(ctx, "logos_preferences", `{"biblicalBooks":["Job"]}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := newSQLiteBackend(t, path)
	v, ok, err := second.Get(ctx, "logos_preferences")
	if err != nil || !ok || v != `{"biblicalBooks":["Job"]}` {
		t.Fatalf("expected durable value after reopen, got %q ok=%v err=%v", v, ok, err)
	}
}

func TestGormBackendClear(t *testing.T) {
	ctx := context.Background()
	b := newSQLiteBackend(t, filepath.Join(t.TempDir(), "logos.db"))
	for _, k := range []string{"a", "b"} {
		if err := b.Set(ctx, k, "v"); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	if err := b.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := b.Get(ctx, "a"); ok {
		t.Fatalf("expected cleared backend to be empty")
	}
}

func TestIsPostgresDSN(t *testing.T) {
	cases := map[string]bool{
		"postgres://user@localhost/logos":        true,
		"host=localhost user=logos dbname=logos": true,
		"/home/seeker/.logos/logos.db":           false,
		"logos.db":                               false,
	}
	for dsn, want := range cases {
		if got := isPostgresDSN(dsn); got != want {
			t.Fatalf("isPostgresDSN(%q) = %v, want %v", dsn, got, want)
		}
	}
}
