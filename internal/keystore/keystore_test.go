package keystore

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/zalando/go-keyring"
	bolt "go.etcd.io/bbolt"

	"github.com/illarion/coachvault/internal/crypto"
	cvkeyring "github.com/illarion/coachvault/internal/keyring"
	"github.com/illarion/coachvault/internal/storage"
)

func TestSaltGeneratedOnce(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "keys.db")
	ks := NewBoltStore(dbPath)

	has, err := ks.HasSalt(ctx)
	if err != nil {
		t.Fatalf("HasSalt failed: %v", err)
	}
	if has {
		t.Fatal("new store should have no salt")
	}

	salt, err := ks.GetOrGenerateSalt(ctx)
	if err != nil {
		t.Fatalf("GetOrGenerateSalt failed: %v", err)
	}
	if len(salt) != crypto.SaltSize {
		t.Errorf("salt size: got %d, want %d", len(salt), crypto.SaltSize)
	}

	again, err := ks.GetOrGenerateSalt(ctx)
	if err != nil {
		t.Fatalf("GetOrGenerateSalt failed: %v", err)
	}
	if !bytes.Equal(salt, again) {
		t.Error("salt changed between calls")
	}
	ks.Close()

	// Survives reopen
	ks2 := NewBoltStore(dbPath)
	defer ks2.Close()
	reopened, err := ks2.GetOrGenerateSalt(ctx)
	if err != nil {
		t.Fatalf("GetOrGenerateSalt after reopen failed: %v", err)
	}
	if !bytes.Equal(salt, reopened) {
		t.Error("salt changed across reopen")
	}
}

func TestSaltStoredAsBase64(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "keys.db")
	ks := NewBoltStore(dbPath)
	salt, err := ks.GetOrGenerateSalt(ctx)
	if err != nil {
		t.Fatalf("GetOrGenerateSalt failed: %v", err)
	}
	ks.Close()

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		t.Fatalf("Failed to open raw database: %v", err)
	}
	defer db.Close()

	var raw []byte
	db.View(func(tx *bolt.Tx) error {
		raw = append([]byte(nil), tx.Bucket(KeysBucket).Get([]byte(SaltEntry))...)
		return nil
	})
	if string(raw) != base64.StdEncoding.EncodeToString(salt) {
		t.Errorf("stored salt %q is not the base64 of the returned salt", raw)
	}
}

func TestSaltConcurrentFirstUse(t *testing.T) {
	ctx := context.Background()
	ks := NewBoltStore(filepath.Join(t.TempDir(), "keys.db"))
	defer ks.Close()

	const n = 16
	salts := make([][]byte, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			salts[i], errs[i] = ks.GetOrGenerateSalt(ctx)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("call %d failed: %v", i, errs[i])
		}
		if !bytes.Equal(salts[0], salts[i]) {
			t.Fatalf("call %d saw a different salt", i)
		}
	}
}

func TestCorruptedSalt(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "keys.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		t.Fatalf("Failed to open raw database: %v", err)
	}
	db.Update(func(tx *bolt.Tx) error {
		b, _ := tx.CreateBucketIfNotExists(KeysBucket)
		return b.Put([]byte(SaltEntry), []byte(base64.StdEncoding.EncodeToString([]byte("short"))))
	})
	db.Close()

	ks := NewBoltStore(dbPath)
	defer ks.Close()
	if _, err := ks.GetOrGenerateSalt(ctx); !errors.Is(err, ErrCorrupted) {
		t.Errorf("expected ErrCorrupted, got %v", err)
	}
}

func TestDeviceKeyInBucket(t *testing.T) {
	ctx := context.Background()
	ks := NewBoltStore(filepath.Join(t.TempDir(), "keys.db"))
	defer ks.Close()

	got, err := ks.RetrieveKey(ctx, DeviceKeyID)
	if err != nil {
		t.Fatalf("RetrieveKey failed: %v", err)
	}
	if got != nil {
		t.Fatal("expected no device key")
	}

	key := []byte("0123456789abcdef0123456789abcdef")
	if err := ks.StoreKey(ctx, DeviceKeyID, key); err != nil {
		t.Fatalf("StoreKey failed: %v", err)
	}
	got, err = ks.RetrieveKey(ctx, DeviceKeyID)
	if err != nil {
		t.Fatalf("RetrieveKey failed: %v", err)
	}
	if !bytes.Equal(got, key) {
		t.Errorf("device key mismatch")
	}
}

func TestDeviceKeyInOSKeyring(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()
	ks := NewBoltStore(filepath.Join(t.TempDir(), "keys.db"), WithDeviceKeyring(cvkeyring.New("coachvault-test")))
	defer ks.Close()

	key := []byte{1, 2, 3, 4}
	if err := ks.StoreKey(ctx, DeviceKeyID, key); err != nil {
		t.Fatalf("StoreKey failed: %v", err)
	}
	got, err := ks.RetrieveKey(ctx, DeviceKeyID)
	if err != nil {
		t.Fatalf("RetrieveKey failed: %v", err)
	}
	if !bytes.Equal(got, key) {
		t.Errorf("device key mismatch: got %x", got)
	}

	// Nothing written to the bolt file for device keys
	db, err := ks.open()
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if v, _ := ks.get(db, DeviceKeyID); v != nil {
		t.Error("device key should live in the OS keyring only")
	}
}

func TestReservedKeyIDs(t *testing.T) {
	ctx := context.Background()
	stores := map[string]KeyStore{
		"bolt":   NewBoltStore(filepath.Join(t.TempDir(), "keys.db")),
		"memory": NewMemoryStore(),
	}
	for name, ks := range stores {
		defer ks.Close()
		if err := ks.StoreKey(ctx, SaltEntry, []byte("x")); !errors.Is(err, ErrReservedID) {
			t.Errorf("%s: StoreKey(%s): expected ErrReservedID, got %v", name, SaltEntry, err)
		}
		if _, err := ks.RetrieveKey(ctx, InstallationIDEntry); !errors.Is(err, ErrReservedID) {
			t.Errorf("%s: RetrieveKey(%s): expected ErrReservedID, got %v", name, InstallationIDEntry, err)
		}
		if err := ks.StoreKey(ctx, "", []byte("x")); !errors.Is(err, ErrEmptyID) {
			t.Errorf("%s: expected ErrEmptyID, got %v", name, err)
		}
	}
}

func TestInstallationID(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "keys.db")
	ks := NewBoltStore(dbPath)

	id, err := ks.InstallationID(ctx)
	if err != nil {
		t.Fatalf("InstallationID failed: %v", err)
	}
	if len(id) != 36 {
		t.Errorf("expected a UUID, got %q", id)
	}
	ks.Close()

	ks2 := NewBoltStore(dbPath)
	defer ks2.Close()
	id2, err := ks2.InstallationID(ctx)
	if err != nil {
		t.Fatalf("InstallationID failed: %v", err)
	}
	if id != id2 {
		t.Errorf("installation id changed: %s -> %s", id, id2)
	}
}

func TestMemoryStoreSaltFailure(t *testing.T) {
	ctx := context.Background()
	ks := NewMemoryStore()
	ks.FailSalt(errors.New("disk on fire"))

	if _, err := ks.GetOrGenerateSalt(ctx); !errors.Is(err, storage.ErrPersistence) {
		t.Errorf("expected ErrPersistence, got %v", err)
	}

	ks.FailSalt(nil)
	s1, err := ks.GetOrGenerateSalt(ctx)
	if err != nil {
		t.Fatalf("GetOrGenerateSalt failed: %v", err)
	}
	s2, _ := ks.GetOrGenerateSalt(ctx)
	if !bytes.Equal(s1, s2) {
		t.Error("memory salt changed between calls")
	}
}
