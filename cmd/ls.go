package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/illarion/coachvault/internal/storage"
)

// Ls lists record keys, optionally for one collection. Keys are stored in the
// clear, so no passphrase is needed.
func Ls(ctx context.Context, collection string) {
	v := openInitialized(ctx)
	defer v.Close()

	records, err := v.records.All(ctx)
	if err != nil {
		HandleError(err)
	}

	keys := make([]string, 0, len(records))
	for key := range records {
		c, _, err := storage.SplitRecordKey(key)
		if err != nil {
			warn("%s", err)
			continue
		}
		if collection == "" || c == collection {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	if len(keys) == 0 {
		fmt.Println("No records")
		return
	}
	for _, key := range keys {
		fmt.Printf("  %s (%s)\n", key, formatSize(int64(len(records[key].Ciphertext))))
	}
}
