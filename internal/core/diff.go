package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ExportDiff lists how two exports differ, record by record
type ExportDiff struct {
	Added   []string
	Removed []string
	Changed []string
	// Unified is a line diff of the two documents, empty when identical
	Unified string
}

// Empty reports whether the exports hold the same records
func (d *ExportDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// DiffExports compares an earlier ExportAll document with a newer one
func DiffExports(name string, previous, current []byte) (*ExportDiff, error) {
	before, err := parseExport(previous)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	after, err := parseExport(current)
	if err != nil {
		return nil, fmt.Errorf("failed to parse current export: %w", err)
	}

	d := &ExportDiff{}
	for key, value := range after {
		old, ok := before[key]
		switch {
		case !ok:
			d.Added = append(d.Added, key)
		case !bytes.Equal(old, value):
			d.Changed = append(d.Changed, key)
		}
	}
	for key := range before {
		if _, ok := after[key]; !ok {
			d.Removed = append(d.Removed, key)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Changed)

	if !d.Empty() {
		d.Unified = UnifiedDiff(name, previous, current)
	}
	return d, nil
}

// parseExport decodes an export and compacts each value so formatting
// differences do not count as changes
func parseExport(data []byte) (map[string][]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(doc))
	for key, raw := range doc {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, err
		}
		out[key] = buf.Bytes()
	}
	return out, nil
}

// UnifiedDiff renders a line diff between two texts using go-diff.
// Returns an empty string when they are identical.
func UnifiedDiff(name string, before, after []byte) string {
	if bytes.Equal(before, after) {
		return ""
	}

	dmp := diffmatchpatch.New()

	// Line-mode diff for readable output
	beforeStr, afterStr := string(before), string(after)
	a, b, lineArray := dmp.DiffLinesToChars(beforeStr, afterStr)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	patches := dmp.PatchMake(beforeStr, diffs)
	if len(patches) == 0 {
		return ""
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("--- a/%s\n", name))
	result.WriteString("+++ b/current\n")
	result.WriteString(dmp.PatchToText(patches))
	return result.String()
}
