package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/awnumar/memguard"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/illarion/coachvault/internal/config"
	"github.com/illarion/coachvault/internal/core"
	"github.com/illarion/coachvault/internal/crypto"
	"github.com/illarion/coachvault/internal/keyring"
	"github.com/illarion/coachvault/internal/keystore"
	"github.com/illarion/coachvault/internal/security"
	"github.com/illarion/coachvault/internal/storage"
)

var (
	ErrNotInitialized     = errors.New("coachvault not initialized")
	ErrAlreadyInitialized = errors.New("coachvault already initialized")
	// ErrUnlockFailed is the only thing a user learns about a failed unlock
	ErrUnlockFailed = errors.New("incorrect passphrase or storage error")
)

var (
	cfg = config.Default()
	log = logrus.New()
)

// Setup loads the configuration and configures logging. Called by main before
// any command runs.
func Setup(configPath string, verbose bool) {
	loaded, err := config.Load(configPath)
	if err != nil {
		HandleError(err)
	}
	cfg = loaded

	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	log.SetLevel(cfg.Level())
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
}

// vault bundles the stores and session for one data directory
type vault struct {
	records *storage.BoltStore
	keys    *keystore.BoltStore
	keyring *keyring.Keyring
	session *core.Session
}

func openVault() *vault {
	kr := keyring.New(cfg.Keyring.Service)

	var opts []keystore.Option
	if cfg.Keyring.DeviceKeys {
		opts = append(opts, keystore.WithDeviceKeyring(kr))
	}

	v := &vault{
		records: storage.NewBoltStore(cfg.RecordsPath()),
		keys:    keystore.NewBoltStore(cfg.KeysPath(), opts...),
		keyring: kr,
	}
	v.session = core.New(v.keys, v.records,
		core.WithLogger(log),
		core.WithIterations(cfg.KDFIterations),
	)
	return v
}

// openInitialized opens the vault and exits unless init has run
func openInitialized(ctx context.Context) *vault {
	v := openVault()
	if _, err := os.Stat(cfg.KeysPath()); os.IsNotExist(err) {
		v.Close()
		HandleError(ErrNotInitialized)
	}
	hasSalt, err := v.keys.HasSalt(ctx)
	if err != nil {
		v.Close()
		HandleError(err)
	}
	if !hasSalt {
		v.Close()
		HandleError(ErrNotInitialized)
	}
	return v
}

func (v *vault) Close() {
	if err := v.session.Close(); err != nil {
		log.WithError(err).Debug("Failed to close vault")
	}
}

// unlock obtains the passphrase and unlocks the session, exiting on failure
func (v *vault) unlock(ctx context.Context) {
	passphrase, err := v.passphrase(ctx)
	if err != nil {
		v.Close()
		HandleError(err)
	}
	defer crypto.ClearBytes(passphrase)

	if !v.session.Unlock(ctx, passphrase) {
		v.Close()
		HandleError(ErrUnlockFailed)
	}
}

// passphrase tries the environment, then the OS keyring, then a prompt.
// The caller must clear the returned slice.
func (v *vault) passphrase(ctx context.Context) ([]byte, error) {
	if p := core.PassphraseFromEnv(); p != nil {
		log.Debug("Using passphrase from environment")
		return p, nil
	}

	if id, err := v.keys.InstallationID(ctx); err == nil {
		if p, err := v.keyring.GetPassphrase(id); err == nil && p != "" {
			log.Debug("Using passphrase from OS keyring")
			return []byte(p), nil
		}
	}

	return core.ReadPassphrase("Enter passphrase: ")
}

func success(format string, args ...any) {
	fmt.Println(color.GreenString("✓") + " " + fmt.Sprintf(format, args...))
}

func warn(format string, args ...any) {
	fmt.Fprintln(os.Stderr, color.YellowString("warning:")+" "+fmt.Sprintf(format, args...))
}

func hint(format string, args ...any) {
	fmt.Fprintln(os.Stderr, color.CyanString("→")+" "+fmt.Sprintf(format, args...))
}

// HandleError prints err for the user and exits with status 1
func HandleError(err error) {
	fail := color.RedString("Error:")
	switch {
	case errors.Is(err, ErrNotInitialized):
		fmt.Fprintf(os.Stderr, "%s coachvault not initialized in %s\n", fail, cfg.DataDir)
		hint("Run 'coachvault init' first")
	case errors.Is(err, ErrUnlockFailed):
		fmt.Fprintf(os.Stderr, "%s %s\n", fail, ErrUnlockFailed)
	case errors.Is(err, ErrAlreadyInitialized):
		fmt.Fprintf(os.Stderr, "%s vault already exists in %s\n", fail, cfg.DataDir)
		hint("Use 'coachvault status' to see current state")
	case errors.Is(err, core.ErrPassphraseMismatch):
		fmt.Fprintf(os.Stderr, "%s passphrases do not match\n", fail)
	case errors.Is(err, security.ErrInvalidName):
		fmt.Fprintf(os.Stderr, "%s %s\n", fail, err)
		hint("Collections cannot contain ':'; names must be printable and at most %d bytes", security.MaxNameLength)
	case errors.Is(err, storage.ErrPersistence):
		fmt.Fprintf(os.Stderr, "%s storage failure: %s\n", fail, err)
		hint("Is another coachvault process using %s?", cfg.DataDir)
	case errors.Is(err, core.ErrStorageLocked):
		// A command ran a record operation without unlocking first
		fmt.Fprintf(os.Stderr, "%s internal error: %s\n", fail, err)
	default:
		fmt.Fprintf(os.Stderr, "%s %s\n", fail, err)
	}
	memguard.SafeExit(1)
}

// formatSize formats a file size in human-readable form
func formatSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case size >= GB:
		return fmt.Sprintf("%.1f GB", float64(size)/GB)
	case size >= MB:
		return fmt.Sprintf("%.1f MB", float64(size)/MB)
	case size >= KB:
		return fmt.Sprintf("%.1f KB", float64(size)/KB)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}
