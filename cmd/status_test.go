package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-test/deep"
)

func TestFindExports(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"backup.json":   `{"notes:n1": {"text": "hi"}}`,
		"package.json":  `{"name": "app", "version": "1.0.0"}`,
		"tsconfig.json": `{"compilerOptions": {}}`,
		"notes.txt":     `{"notes:n1": {}}`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	got := findExports(dir)
	want := []string{filepath.Join(dir, "backup.json")}
	if diff := deep.Equal(got, want); diff != nil {
		t.Error(diff)
	}
}
