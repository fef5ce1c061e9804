package cmd

import (
	"context"
)

// Remove deletes a record and compacts the record database
func Remove(ctx context.Context, collection, id string) {
	v := openInitialized(ctx)
	defer v.Close()
	v.unlock(ctx)

	if err := v.session.Remove(ctx, collection, id); err != nil {
		HandleError(err)
	}
	success("Removed %s:%s", collection, id)

	// Compact database to reclaim space
	if err := v.records.Compact(); err != nil {
		warn("compaction failed: %s", err)
	}
}
