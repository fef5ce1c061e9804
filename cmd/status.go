package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"

	"github.com/illarion/coachvault/internal/core"
	"github.com/illarion/coachvault/internal/crypto"
	"github.com/illarion/coachvault/internal/git"
	"github.com/illarion/coachvault/internal/keystore"
)

// Status shows the state of the vault without asking for the passphrase
func Status(ctx context.Context) {
	if _, err := os.Stat(cfg.KeysPath()); os.IsNotExist(err) {
		fmt.Printf("No vault found in %s\n", cfg.DataDir)
		hint("Run 'coachvault init' to create one")
		return
	}

	v := openInitialized(ctx)
	defer v.Close()

	count, err := v.records.Count()
	if err != nil {
		HandleError(err)
	}
	created, _ := v.records.Created()
	modified, _ := v.records.Modified()

	var size int64
	if info, err := os.Stat(cfg.RecordsPath()); err == nil {
		size = info.Size()
	}

	id, err := v.keys.InstallationID(ctx)
	if err != nil {
		HandleError(err)
	}
	deviceKey, err := v.keys.RetrieveKey(ctx, keystore.DeviceKeyID)
	if err != nil {
		log.WithError(err).Debug("Device key lookup failed")
	}
	crypto.ClearBytes(deviceKey)

	fmt.Printf("Vault: %s\n", cfg.DataDir)
	fmt.Printf("  Records:      %d (%s)\n", count, formatSize(size))
	if !created.IsZero() {
		fmt.Printf("  Created:      %s\n", created.Local().Format(time.RFC3339))
		fmt.Printf("  Modified:     %s\n", modified.Local().Format(time.RFC3339))
	}
	fmt.Printf("  Encryption:   AES-256-GCM\n")
	fmt.Printf("  KDF:          PBKDF2-SHA256, %d iterations\n", cfg.KDFIterations)
	fmt.Printf("  Installation: %s\n", id)

	switch {
	case deviceKey == nil:
		fmt.Printf("  Device key:   %s\n", color.YellowString("none"))
	case cfg.Keyring.DeviceKeys:
		fmt.Printf("  Device key:   %s\n", color.GreenString("in OS keyring"))
	default:
		fmt.Printf("  Device key:   %s\n", color.GreenString("in keys.db"))
	}

	if v.keyring.HasPassphrase(id) {
		fmt.Printf("  Passphrase:   %s\n", color.GreenString("stored in keyring"))
	} else {
		fmt.Printf("  Passphrase:   not stored\n")
	}

	status, err := git.CheckDataDir(".", cfg.DataDir, []string{cfg.RecordsPath(), cfg.KeysPath()}, findExports("."))
	if err == nil {
		fmt.Print(git.FormatGitStatus(status, cfg.DataDir))
	}
}

// findExports lists JSON files in dir that hold a decrypted export
func findExports(dir string) []string {
	matches, _ := filepath.Glob(filepath.Join(dir, "*.json"))
	var exports []string
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if core.IsExport(data) {
			exports = append(exports, path)
		}
		crypto.ClearBytes(data)
	}
	return exports
}
