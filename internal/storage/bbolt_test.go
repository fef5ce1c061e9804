package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"
)

func testRecord(s string) EncryptedRecord {
	return EncryptedRecord{Ciphertext: []byte("ct-" + s), Nonce: []byte("nonce-" + s)}
}

func TestBoltStoreLazyOpen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "nested", "records.db")

	db := NewBoltStore(dbPath)
	defer db.Close()

	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatalf("database should not exist before first use, stat err: %v", err)
	}

	rec, err := db.Get(context.Background(), "notes", "n1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec != nil {
		t.Error("Get on empty store should return nil")
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		t.Fatalf("database should exist after first use: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("database permissions: got %v, want 0600", info.Mode().Perm())
	}
}

func TestBoltStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	db := NewBoltStore(filepath.Join(t.TempDir(), "records.db"))
	defer db.Close()

	if err := db.Put(ctx, "notes", "n1", testRecord("1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	rec, err := db.Get(ctx, "notes", "n1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec == nil {
		t.Fatal("record should exist")
	}
	if !bytes.Equal(rec.Ciphertext, []byte("ct-1")) || !bytes.Equal(rec.Nonce, []byte("nonce-1")) {
		t.Errorf("record mismatch: got %+v", rec)
	}

	// Last write wins
	if err := db.Put(ctx, "notes", "n1", testRecord("2")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	rec, err = db.Get(ctx, "notes", "n1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(rec.Ciphertext, []byte("ct-2")) {
		t.Errorf("overwrite not applied: got %s", rec.Ciphertext)
	}

	if err := db.Delete(ctx, "notes", "n1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	rec, err = db.Get(ctx, "notes", "n1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec != nil {
		t.Error("record should be gone after Delete")
	}

	if err := db.Delete(ctx, "notes", "missing"); err != nil {
		t.Errorf("Delete of missing record should succeed, got %v", err)
	}
}

func TestBoltStoreOnDiskFormat(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "records.db")
	db := NewBoltStore(dbPath)

	if err := db.Put(ctx, "user_profile", "current", EncryptedRecord{Ciphertext: []byte{1, 2, 3}, Nonce: []byte{4, 5, 6}}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	db.Close()

	raw, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		t.Fatalf("Failed to open raw database: %v", err)
	}
	defer raw.Close()

	var value []byte
	raw.View(func(tx *bolt.Tx) error {
		value = append([]byte(nil), tx.Bucket(RecordsBucket).Get([]byte("user_profile:current"))...)
		return nil
	})

	want := `{"ciphertext":"AQID","iv":"BAUG"}`
	if string(value) != want {
		t.Errorf("stored value: got %s, want %s", value, want)
	}
}

func TestBoltStorePersistence(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "records.db")

	db := NewBoltStore(dbPath)
	for _, id := range []string{"a", "b", "c"} {
		if err := db.Put(ctx, "notes", id, testRecord(id)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	created, err := db.Created()
	if err != nil {
		t.Fatalf("Created failed: %v", err)
	}
	db.Close()

	// Reopen and verify
	db2 := NewBoltStore(dbPath)
	defer db2.Close()

	all, err := db2.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(all))
	}
	if rec, ok := all["notes:b"]; !ok || string(rec.Ciphertext) != "ct-b" {
		t.Errorf("record notes:b not persisted correctly: %+v", rec)
	}

	created2, err := db2.Created()
	if err != nil {
		t.Fatalf("Created failed: %v", err)
	}
	if !created.Equal(created2) {
		t.Errorf("created timestamp changed on reopen: %v -> %v", created, created2)
	}

	n, err := db2.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}
}

func TestBoltStoreModifiedAdvances(t *testing.T) {
	ctx := context.Background()
	db := NewBoltStore(filepath.Join(t.TempDir(), "records.db"))
	defer db.Close()

	before, err := db.Modified()
	if err != nil {
		t.Fatalf("Modified failed: %v", err)
	}
	if err := db.Put(ctx, "x", "1", testRecord("1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	after, err := db.Modified()
	if err != nil {
		t.Fatalf("Modified failed: %v", err)
	}
	if after.Before(before) {
		t.Errorf("modified went backwards: %v -> %v", before, after)
	}
}

func TestBoltStoreCompact(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "records.db")
	db := NewBoltStore(dbPath)
	defer db.Close()

	big := EncryptedRecord{Ciphertext: bytes.Repeat([]byte{0x42}, 256*1024), Nonce: []byte("nonce")}
	for _, id := range []string{"1", "2", "3", "4"} {
		if err := db.Put(ctx, "blobs", id, big); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if err := db.Put(ctx, "notes", "keep", testRecord("keep")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	for _, id := range []string{"1", "2", "3", "4"} {
		if err := db.Delete(ctx, "blobs", id); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	sizeBefore := info.Size()

	if err := db.Compact(); err != nil {
		t.Fatalf("Compact failed: %v", err)
	}

	info, err = os.Stat(dbPath)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Size() > sizeBefore {
		t.Errorf("compaction grew the file: %d -> %d", sizeBefore, info.Size())
	}

	rec, err := db.Get(ctx, "notes", "keep")
	if err != nil {
		t.Fatalf("Get after compact failed: %v", err)
	}
	if rec == nil || string(rec.Ciphertext) != "ct-keep" {
		t.Errorf("record lost during compaction: %+v", rec)
	}
}

func TestBoltStoreUndecodableRecord(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "records.db")
	db := NewBoltStore(dbPath)

	for _, id := range []string{"a", "b"} {
		if err := db.Put(ctx, "notes", id, EncryptedRecord{Ciphertext: []byte{1, 2, 3}, Nonce: []byte{4, 5, 6}}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	db.Close()

	raw, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		t.Fatalf("Failed to open raw database: %v", err)
	}
	err = raw.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(RecordsBucket).Put([]byte("notes:a"), []byte(`{"ciphertext":"!AQID","iv":"BAUG"}`))
	})
	raw.Close()
	if err != nil {
		t.Fatalf("Failed to overwrite record: %v", err)
	}

	db = NewBoltStore(dbPath)
	defer db.Close()

	all, err := db.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	if bad := all["notes:a"]; len(bad.Ciphertext) != 0 || len(bad.Nonce) != 0 {
		t.Errorf("undecodable record should be empty, got %+v", bad)
	}
	if good := all["notes:b"]; !bytes.Equal(good.Ciphertext, []byte{1, 2, 3}) {
		t.Errorf("intact record changed: %+v", good)
	}

	rec, err := db.Get(ctx, "notes", "a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec == nil || len(rec.Ciphertext) != 0 {
		t.Errorf("Get should return an empty record, got %+v", rec)
	}
}

func TestBoltStoreCompactTwice(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "records.db")
	db := NewBoltStore(dbPath)
	defer db.Close()

	if err := db.Put(ctx, "notes", "n1", testRecord("1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := db.Compact(); err != nil {
		t.Fatalf("first Compact failed: %v", err)
	}
	if err := db.Compact(); err != nil {
		t.Fatalf("second Compact failed: %v", err)
	}

	rec, err := db.Get(ctx, "notes", "n1")
	if err != nil || rec == nil || string(rec.Ciphertext) != "ct-1" {
		t.Errorf("record lost across repeated compaction: %+v, %v", rec, err)
	}
}

func TestBoltStoreLockedFile(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "records.db")

	first := NewBoltStore(dbPath)
	defer first.Close()
	if err := first.Put(ctx, "x", "1", testRecord("1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	second := NewBoltStore(dbPath)
	defer second.Close()
	_, err := second.Get(ctx, "x", "1")
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("expected ErrPersistence while file is locked, got %v", err)
	}
}

func TestSplitRecordKey(t *testing.T) {
	collection, id, err := SplitRecordKey("notes:a:b")
	if err != nil {
		t.Fatalf("SplitRecordKey failed: %v", err)
	}
	if collection != "notes" || id != "a:b" {
		t.Errorf("got (%q, %q), want (notes, a:b)", collection, id)
	}

	for _, bad := range []string{"", "nocolon", ":id", "collection:"} {
		if _, _, err := SplitRecordKey(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
