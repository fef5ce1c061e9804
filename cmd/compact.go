package cmd

import (
	"context"
	"fmt"
	"os"
)

// Compact compacts records.db to reclaim unused space
func Compact(ctx context.Context) {
	v := openInitialized(ctx)
	defer v.Close()

	info, err := os.Stat(cfg.RecordsPath())
	if os.IsNotExist(err) {
		fmt.Println("No records to compact")
		return
	}
	if err != nil {
		HandleError(err)
	}
	sizeBefore := info.Size()

	if err := v.records.Compact(); err != nil {
		HandleError(err)
	}

	info, err = os.Stat(cfg.RecordsPath())
	if err != nil {
		HandleError(err)
	}
	sizeAfter := info.Size()

	fmt.Printf("Compacted: %s -> %s\n", formatSize(sizeBefore), formatSize(sizeAfter))
}
