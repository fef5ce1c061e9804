package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrPathEscapes  = errors.New("path escapes base directory")
	ErrAbsolutePath = errors.New("absolute paths are not allowed")
	ErrEmptyPath    = errors.New("empty path not allowed")
)

// PathValidator confines export files to one base directory using os.Root.
// Decrypted exports are the only plaintext coachvault writes to disk, so the
// CLI never lets a path argument escape the working directory.
type PathValidator struct {
	root     *os.Root
	basePath string
}

// New creates a PathValidator rooted at basePath
func New(basePath string) (*PathValidator, error) {
	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open base directory: %w", err)
	}

	return &PathValidator{
		root:     root,
		basePath: absPath,
	}, nil
}

// Close releases resources held by the PathValidator.
func (pv *PathValidator) Close() error {
	if pv.root != nil {
		return pv.root.Close()
	}
	return nil
}

// ValidateAndNormalize validates a user-provided path and returns it relative
// to the base directory with forward slashes. It rejects:
// - Empty paths
// - Absolute paths
// - Paths that escape the base directory (using ..)
// - Paths that are not local (using filepath.IsLocal)
func (pv *PathValidator) ValidateAndNormalize(userPath string) (string, error) {
	if userPath == "" {
		return "", ErrEmptyPath
	}

	if !filepath.IsLocal(userPath) {
		if filepath.IsAbs(userPath) {
			return "", fmt.Errorf("%w: %s", ErrAbsolutePath, userPath)
		}
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, userPath)
	}

	cleanPath := filepath.Clean(userPath)
	absPath := filepath.Join(pv.basePath, cleanPath)

	relPath, err := filepath.Rel(pv.basePath, absPath)
	if err != nil {
		return "", fmt.Errorf("failed to compute relative path: %w", err)
	}
	if strings.HasPrefix(relPath, "..") || filepath.IsAbs(relPath) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, userPath)
	}

	return filepath.ToSlash(relPath), nil
}

// WriteFileInRoot validates path and writes data through os.Root, so the write
// cannot leave the base directory even through symlinks.
func (pv *PathValidator) WriteFileInRoot(path string, data []byte, perm os.FileMode) error {
	validPath, err := pv.ValidateAndNormalize(filepath.FromSlash(path))
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	return pv.root.WriteFile(filepath.FromSlash(validPath), data, perm)
}

// ReadFileInRoot validates path and reads it through os.Root.
func (pv *PathValidator) ReadFileInRoot(path string) ([]byte, error) {
	validPath, err := pv.ValidateAndNormalize(filepath.FromSlash(path))
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	return pv.root.ReadFile(filepath.FromSlash(validPath))
}
