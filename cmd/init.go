package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/illarion/coachvault/internal/config"
	"github.com/illarion/coachvault/internal/core"
	"github.com/illarion/coachvault/internal/crypto"
	"github.com/illarion/coachvault/internal/keystore"
)

// Init creates the data directory, the salt and a device key, and checks
// that the passphrase derives a key.
func Init(ctx context.Context) {
	if _, err := os.Stat(cfg.KeysPath()); err == nil {
		HandleError(ErrAlreadyInitialized)
	}

	passphrase := core.PassphraseFromEnv()
	if passphrase == nil {
		var err error
		passphrase, err = core.ReadPassphraseConfirm()
		if err != nil {
			HandleError(err)
		}
	}
	defer crypto.ClearBytes(passphrase)

	v := openVault()
	defer v.Close()

	if !v.session.Unlock(ctx, passphrase) {
		HandleError(ErrUnlockFailed)
	}

	id, err := v.keys.InstallationID(ctx)
	if err != nil {
		HandleError(err)
	}

	deviceKey, err := crypto.GenerateRandom(crypto.KeySize)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(deviceKey)
	if err := v.keys.StoreKey(ctx, keystore.DeviceKeyID, deviceKey); err != nil {
		HandleError(err)
	}

	configPath := filepath.Join(cfg.DataDir, config.FileName)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.Save(configPath); err != nil {
			warn("could not write %s: %s", configPath, err)
		}
	}

	log.WithField("installation_id", id).Debug("Vault initialized")
	success("Initialized vault in %s", cfg.DataDir)
	hint("The passphrase is not stored anywhere unless you run 'coachvault keyring save'")
}
