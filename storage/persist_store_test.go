package storage

import (
	"path/filepath"
	"testing"
)

func TestPersistenceStore_BasicOperations(t *testing.T) {
	ps, err := NewMemoryPersistenceStore()
	if err != nil {
		t.Fatalf("Failed to create memory store: %v", err)
	}
	defer ps.Close()

	key := []byte("test-key")
	value := []byte("test-value")

	if err := ps.Put(key, value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, found, err := ps.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("Expected key to be found")
	}
	if string(got) != string(value) {
		t.Errorf("Get returned %q, want %q", got, value)
	}

	_, found, err = ps.Get([]byte("non-existent"))
	if err != nil {
		t.Fatalf("Get non-existent failed: %v", err)
	}
	if found {
		t.Error("Expected key not to be found")
	}

	if err := ps.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	_, found, _ = ps.Get(key)
	if found {
		t.Error("Expected key to be deleted")
	}
}

func TestPersistenceStore_PrefixAndBatch(t *testing.T) {
	ps, err := NewMemoryPersistenceStore()
	if err != nil {
		t.Fatalf("Failed to create memory store: %v", err)
	}
	defer ps.Close()

	err = ps.WriteBatch(nil, [][2][]byte{
		{[]byte("a/2"), []byte("two")},
		{[]byte("a/1"), []byte("one")},
		{[]byte("b/1"), []byte("other")},
	})
	if err != nil {
		t.Fatalf("WriteBatch failed: %v", err)
	}
	pairs, err := ps.GetWithPrefix([]byte("a/"))
	if err != nil {
		t.Fatalf("GetWithPrefix failed: %v", err)
	}
	if len(pairs) != 2 || string(pairs[0][0]) != "a/1" || string(pairs[1][1]) != "two" {
		t.Fatalf("unexpected prefix result %q", pairs)
	}

	if err := ps.WriteBatch([][]byte{[]byte("a/1")}, nil); err != nil {
		t.Fatalf("WriteBatch delete failed: %v", err)
	}
	pairs, _ = ps.GetWithPrefix([]byte("a/"))
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair after delete, got %d", len(pairs))
	}
}

func TestPersistenceStore_OnDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	ps, err := NewPersistenceStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := ps.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	ps.Close()

	ps, err = NewPersistenceStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer ps.Close()
	got, found, err := ps.Get([]byte("k"))
	if err != nil || !found || string(got) != "v" {
		t.Fatalf("value not persisted: %q %v %v", got, found, err)
	}
}
