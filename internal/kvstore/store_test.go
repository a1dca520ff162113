package kvstore

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func newStores(t *testing.T, quota int64) map[string]Store {
	t.Helper()

	sq, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "cache.db"), quota)
	if err != nil {
		t.Fatalf("Failed to open SQLite store: %v", err)
	}
	t.Cleanup(func() { sq.Close() })

	return map[string]Store{
		"memory": NewMemory(quota),
		"sqlite": sq,
	}
}

func TestStoreBasics(t *testing.T) {
	ctx := context.Background()

	for name, s := range newStores(t, 0) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
				t.Fatalf("Expected miss, got ok=%v err=%v", ok, err)
			}

			if err := s.Set(ctx, "a", "1"); err != nil {
				t.Fatalf("Failed to set: %v", err)
			}
			if err := s.Set(ctx, "a", "22"); err != nil {
				t.Fatalf("Failed to overwrite: %v", err)
			}
			v, ok, err := s.Get(ctx, "a")
			if err != nil || !ok || v != "22" {
				t.Errorf("Expected 22, got %q ok=%v err=%v", v, ok, err)
			}

			if err := s.Remove(ctx, "a"); err != nil {
				t.Fatalf("Failed to remove: %v", err)
			}
			if _, ok, _ := s.Get(ctx, "a"); ok {
				t.Error("Expected key to be removed")
			}
		})
	}
}

func TestStoreKeysAndClear(t *testing.T) {
	ctx := context.Background()

	for name, s := range newStores(t, 0) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"vt-3", "vt-1", "other-1", "vt-2", "v%_"} {
				if err := s.Set(ctx, k, "xx"); err != nil {
					t.Fatalf("Failed to set %s: %v", k, err)
				}
			}

			keys, err := s.Keys(ctx, "vt-")
			if err != nil {
				t.Fatalf("Keys failed: %v", err)
			}
			if want := []string{"vt-1", "vt-2", "vt-3"}; !reflect.DeepEqual(keys, want) {
				t.Errorf("Expected %v, got %v", want, keys)
			}

			n, err := s.ValueBytes(ctx, "vt-")
			if err != nil || n != 6 {
				t.Errorf("Expected 6 value bytes, got %d (err=%v)", n, err)
			}

			removed, err := s.Clear(ctx, "vt-")
			if err != nil || removed != 3 {
				t.Errorf("Expected 3 removed, got %d (err=%v)", removed, err)
			}
			st, err := s.Stats(ctx)
			if err != nil || st.Entries != 2 {
				t.Errorf("Expected 2 entries left, got %+v (err=%v)", st, err)
			}
		})
	}
}

func TestStoreFindSuffix(t *testing.T) {
	ctx := context.Background()

	for name, s := range newStores(t, 0) {
		t.Run(name, func(t *testing.T) {
			s.Set(ctx, "p-200-1-480|webp|0.1|http://x/a.mp4", "A")
			s.Set(ctx, "p-100-1-480|webp|0.1|http://x/b.mp4", "B")

			k, v, ok, err := s.FindSuffix(ctx, "-480|webp|0.1|http://x/a.mp4")
			if err != nil || !ok {
				t.Fatalf("Expected hit, got ok=%v err=%v", ok, err)
			}
			if v != "A" || k != "p-200-1-480|webp|0.1|http://x/a.mp4" {
				t.Errorf("Unexpected hit %q=%q", k, v)
			}

			if _, _, ok, _ := s.FindSuffix(ctx, "-480|webp|0.1|http://x/c.mp4"); ok {
				t.Error("Expected miss for unknown suffix")
			}
		})
	}
}

func TestStoreQuota(t *testing.T) {
	ctx := context.Background()

	for name, s := range newStores(t, 20) {
		t.Run(name, func(t *testing.T) {
			if err := s.Set(ctx, "k1", "12345678"); err != nil { // 10 bytes
				t.Fatalf("Failed to set k1: %v", err)
			}
			if err := s.Set(ctx, "k2", "12345678"); err != nil { // 20 bytes
				t.Fatalf("Failed to set k2: %v", err)
			}
			if err := s.Set(ctx, "k3", "1"); !errors.Is(err, ErrQuotaExceeded) {
				t.Fatalf("Expected ErrQuotaExceeded, got %v", err)
			}

			// overwriting an entry only counts the difference
			if err := s.Set(ctx, "k2", "1234"); err != nil {
				t.Fatalf("Failed to shrink k2: %v", err)
			}
			if err := s.Set(ctx, "k3", "1"); err != nil {
				t.Errorf("Expected room after shrinking, got %v", err)
			}

			st, _ := s.Stats(ctx)
			if st.Bytes != 19 {
				t.Errorf("Expected 19 bytes used, got %d", st.Bytes)
			}
		})
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := OpenSQLite(ctx, path, 0)
	if err != nil {
		t.Fatalf("Failed to open: %v", err)
	}
	if err := s.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	s.Close()

	s, err = OpenSQLite(ctx, path, 0)
	if err != nil {
		t.Fatalf("Failed to reopen: %v", err)
	}
	defer s.Close()
	if v, ok, _ := s.Get(ctx, "k"); !ok || v != "v" {
		t.Errorf("Expected persisted value, got %q ok=%v", v, ok)
	}
}
