package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/srs/internal/model"
)

func TestKey(t *testing.T) {
	a := Key("https://example.com/a.json")
	if a != Key("https://example.com/a.json") {
		t.Error("key should be stable")
	}
	if a == Key("https://example.com/b.json") {
		t.Error("different URLs should get different keys")
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss on empty cache")
	}
	_ = c.Set("k", []byte("body"), 0)
	got, ok := c.Get("k")
	if !ok || string(got) != "body" {
		t.Errorf("Get = %q, %v", got, ok)
	}
	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestDiskCache_Expiry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	key := Key("https://example.com/data.json")
	if err := c.Set(key, []byte(`[{"table":"company"}]`), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, ok := c.Get(key); !ok || string(got) != `[{"table":"company"}]` {
		t.Fatalf("Get = %q, %v", got, ok)
	}

	now = now.Add(2 * time.Hour)
	if _, ok := c.Get(key); ok {
		t.Error("expected expired entry to miss")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expired file should be removed, found %d", len(entries))
	}
}

func TestDiskCache_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, 0)
	key := "srs:v1:abc"
	if err := os.WriteFile(filepath.Join(dir, "srs_v1_abc.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(key); ok {
		t.Error("corrupt entry should miss")
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	first := NewLayeredCache(time.Minute, dir, time.Hour)
	if err := first.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	second := NewLayeredCache(time.Minute, dir, time.Hour)
	if got, ok := second.Get("k"); !ok || string(got) != "v" {
		t.Fatalf("disk hit expected, got %q %v", got, ok)
	}
	if got, ok := second.memory.Get("k"); !ok || string(got) != "v" {
		t.Error("disk hit should be promoted to memory")
	}
}

func TestNew(t *testing.T) {
	if _, ok := New(model.CacheConfig{}).(Nop); !ok {
		t.Error("disabled config should give Nop")
	}
	if _, ok := New(model.CacheConfig{Enabled: true}).(*MemoryCache); !ok {
		t.Error("no dir should give memory cache")
	}
	if _, ok := New(model.CacheConfig{Enabled: true, Dir: t.TempDir()}).(*LayeredCache); !ok {
		t.Error("dir should give layered cache")
	}
}
