package keystore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/illarion/coachvault/internal/crypto"
	"github.com/illarion/coachvault/internal/storage"
)

// Entry names in the key metadata store
const (
	SaltEntry           = "user-salt"
	DeviceKeyID         = "device-key"
	InstallationIDEntry = "installation-id"
)

var (
	ErrReservedID = errors.New("key id is reserved")
	ErrEmptyID    = errors.New("key id must not be empty")
	ErrCorrupted  = errors.New("key metadata is corrupted")
)

// KeyStore keeps the KDF salt and optional device keys, isolated from the
// record store.
type KeyStore interface {
	// GetOrGenerateSalt returns the installation salt, creating and persisting
	// it on first call. Concurrent first calls observe the same salt.
	GetOrGenerateSalt(ctx context.Context) ([]byte, error)
	StoreKey(ctx context.Context, id string, key []byte) error
	// RetrieveKey returns nil, nil when no key is stored under id.
	RetrieveKey(ctx context.Context, id string) ([]byte, error)
	Close() error
}

// DeviceKeyring is an external home for device keys, such as the OS keyring.
type DeviceKeyring interface {
	StoreDeviceKey(id string, key []byte) error
	RetrieveDeviceKey(id string) ([]byte, error)
}

func checkKeyID(id string) error {
	switch id {
	case "":
		return ErrEmptyID
	case SaltEntry, InstallationIDEntry:
		return fmt.Errorf("%w: %s", ErrReservedID, id)
	}
	return nil
}

func encodeSalt(salt []byte) []byte {
	return []byte(base64.StdEncoding.EncodeToString(salt))
}

func decodeSalt(data []byte) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: salt is not base64: %v", ErrCorrupted, err)
	}
	if len(salt) < crypto.MinSaltSize {
		return nil, fmt.Errorf("%w: salt is %d bytes", ErrCorrupted, len(salt))
	}
	return salt, nil
}

func newSalt() ([]byte, error) {
	salt, err := crypto.GenerateRandom(crypto.SaltSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

func persistenceErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", storage.ErrPersistence, op, err)
}
