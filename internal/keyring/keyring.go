package keyring

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const DefaultService = "coachvault"

const (
	passphrasePrefix = "passphrase:"
	deviceKeyPrefix  = "device:"
)

// Keyring stores coachvault secrets in the OS keyring under one service name
type Keyring struct {
	service string
}

// New returns a Keyring for service, or DefaultService when empty
func New(service string) *Keyring {
	if service == "" {
		service = DefaultService
	}
	return &Keyring{service: service}
}

// SavePassphrase stores a passphrase for an installation
func (k *Keyring) SavePassphrase(installationID string, passphrase string) error {
	return keyring.Set(k.service, passphrasePrefix+installationID, passphrase)
}

// GetPassphrase retrieves a passphrase for an installation
func (k *Keyring) GetPassphrase(installationID string) (string, error) {
	return keyring.Get(k.service, passphrasePrefix+installationID)
}

// DeletePassphrase removes a passphrase from the OS keyring
func (k *Keyring) DeletePassphrase(installationID string) error {
	return keyring.Delete(k.service, passphrasePrefix+installationID)
}

// HasPassphrase checks if a passphrase is stored for an installation
func (k *Keyring) HasPassphrase(installationID string) bool {
	_, err := keyring.Get(k.service, passphrasePrefix+installationID)
	return err == nil
}

// StoreDeviceKey stores an opaque device key. Keyring secrets are strings, so
// the key is base64-encoded.
func (k *Keyring) StoreDeviceKey(id string, key []byte) error {
	if err := keyring.Set(k.service, deviceKeyPrefix+id, base64.StdEncoding.EncodeToString(key)); err != nil {
		return fmt.Errorf("failed to store device key in keyring: %w", err)
	}
	return nil
}

// RetrieveDeviceKey returns nil, nil when no key is stored under id
func (k *Keyring) RetrieveDeviceKey(id string) ([]byte, error) {
	encoded, err := keyring.Get(k.service, deviceKeyPrefix+id)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read device key from keyring: %w", err)
	}

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("device key %s is corrupted: %w", id, err)
	}
	return key, nil
}
