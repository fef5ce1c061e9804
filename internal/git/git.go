package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// GitStatus describes how the vault files relate to an enclosing repository
type GitStatus struct {
	IsRepo          bool
	DataDirIgnored  bool
	TrackedVault    []string // vault databases tracked by git (warning)
	TrackedExports  []string // plaintext exports tracked by git (bad)
	UnignoredExport []string // plaintext exports not in .gitignore (warning)
}

// IsGitRepo checks if the working directory is inside a git repository
func IsGitRepo(workDir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = workDir
	return cmd.Run() == nil
}

// IsTracked checks if a file is tracked by git
func IsTracked(workDir, path string) bool {
	cmd := exec.Command("git", "ls-files", "--", path)
	cmd.Dir = workDir
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(output))) > 0
}

// IsIgnored checks if a path is ignored by git (handles all .gitignore files)
func IsIgnored(workDir, path string) bool {
	cmd := exec.Command("git", "check-ignore", "-q", "--", path)
	cmd.Dir = workDir
	// exit code 0 means ignored
	return cmd.Run() == nil
}

// CheckDataDir inspects the data directory, its database files and any
// plaintext export files found next to it.
func CheckDataDir(workDir, dataDir string, dbFiles, exports []string) (*GitStatus, error) {
	status := &GitStatus{}
	if !IsGitRepo(workDir) {
		return status, nil
	}
	status.IsRepo = true
	status.DataDirIgnored = IsIgnored(workDir, dataDir)

	for _, file := range dbFiles {
		if IsTracked(workDir, file) {
			status.TrackedVault = append(status.TrackedVault, file)
		}
	}

	for _, file := range exports {
		if IsTracked(workDir, file) {
			status.TrackedExports = append(status.TrackedExports, file)
		} else if !IsIgnored(workDir, file) {
			status.UnignoredExport = append(status.UnignoredExport, file)
		}
	}

	return status, nil
}

// FormatGitStatus formats git status for display
func FormatGitStatus(status *GitStatus, dataDir string) string {
	if !status.IsRepo {
		return ""
	}

	var result strings.Builder
	result.WriteString("\nGit Integration:\n")

	if status.DataDirIgnored {
		result.WriteString(fmt.Sprintf("   ok: %s is in .gitignore\n", dataDir))
	} else {
		result.WriteString(fmt.Sprintf("   warning: %s not in .gitignore (vault data is device-local)\n", dataDir))
	}

	for _, file := range status.TrackedVault {
		result.WriteString(fmt.Sprintf("   warning: %s tracked by git (run: git rm --cached %s)\n", file, file))
	}

	if len(status.TrackedExports) > 0 {
		result.WriteString(fmt.Sprintf("   error: %d plaintext export(s) tracked by git:\n", len(status.TrackedExports)))
		for _, file := range status.TrackedExports {
			result.WriteString(fmt.Sprintf("      - %s (run: git rm --cached %s)\n", file, file))
		}
	}
	for _, file := range status.UnignoredExport {
		result.WriteString(fmt.Sprintf("   warning: plaintext export %s not in .gitignore\n", file))
	}

	return result.String()
}
