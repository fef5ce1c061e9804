package cmd

import (
	"context"
	"fmt"

	"github.com/illarion/coachvault/internal/core"
	"github.com/illarion/coachvault/internal/crypto"
)

// KeyringSave stores the passphrase in the OS keyring. Any non-empty
// passphrase derives a key, so it is typed twice to catch typos before every
// later command starts using it.
func KeyringSave(ctx context.Context) {
	v := openInitialized(ctx)
	defer v.Close()

	passphrase, err := core.ReadPassphraseConfirm()
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(passphrase)

	if !v.session.Unlock(ctx, passphrase) {
		HandleError(ErrUnlockFailed)
	}
	v.session.Lock()

	id, err := v.keys.InstallationID(ctx)
	if err != nil {
		HandleError(err)
	}

	if err := v.keyring.SavePassphrase(id, string(passphrase)); err != nil {
		HandleError(fmt.Errorf("failed to save to keyring: %w", err))
	}

	success("Passphrase saved to keyring")
}

// KeyringDelete removes the passphrase from the OS keyring
func KeyringDelete(ctx context.Context) {
	v := openInitialized(ctx)
	defer v.Close()

	id, err := v.keys.InstallationID(ctx)
	if err != nil {
		HandleError(err)
	}

	if err := v.keyring.DeletePassphrase(id); err != nil {
		fmt.Println("No passphrase stored in keyring")
		return
	}

	success("Passphrase removed from keyring")
}

// KeyringStatus reports whether a passphrase is stored in the keyring
func KeyringStatus(ctx context.Context) {
	v := openInitialized(ctx)
	defer v.Close()

	id, err := v.keys.InstallationID(ctx)
	if err != nil {
		HandleError(err)
	}

	if v.keyring.HasPassphrase(id) {
		fmt.Println("Passphrase: stored in keyring")
	} else {
		fmt.Println("Passphrase: not stored")
	}
}
