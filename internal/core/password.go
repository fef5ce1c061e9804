package core

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/illarion/coachvault/internal/crypto"
)

// EnvPassphrase names the environment variable read before prompting
const EnvPassphrase = "COACHVAULT_PASSPHRASE"

var ErrPassphraseMismatch = errors.New("passphrases do not match")

// ReadPassphrase reads a passphrase from the terminal without echoing
func ReadPassphrase(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)

	passphrase, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	return passphrase, nil
}

// ReadPassphraseConfirm reads a passphrase twice and ensures they match
func ReadPassphraseConfirm() ([]byte, error) {
	return confirmPassphrase(ReadPassphrase)
}

func confirmPassphrase(read func(prompt string) ([]byte, error)) ([]byte, error) {
	first, err := read("Enter passphrase: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(first)

	second, err := read("Confirm passphrase: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(second)

	if !crypto.ConstantTimeCompare(first, second) {
		return nil, ErrPassphraseMismatch
	}

	return append([]byte(nil), first...), nil
}

// PassphraseFromEnv returns a copy of $COACHVAULT_PASSPHRASE, or nil
func PassphraseFromEnv() []byte {
	passphrase := os.Getenv(EnvPassphrase)
	if passphrase == "" {
		return nil
	}
	return []byte(passphrase)
}
