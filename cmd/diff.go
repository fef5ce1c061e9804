package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"

	"github.com/illarion/coachvault/internal/core"
	"github.com/illarion/coachvault/internal/security"
)

// Diff compares an earlier export file with the current vault contents
func Diff(ctx context.Context, file string) {
	validator, err := security.New(".")
	if err != nil {
		HandleError(err)
	}
	defer validator.Close()

	previous, err := validator.ReadFileInRoot(file)
	if err != nil {
		HandleError(err)
	}

	v := openInitialized(ctx)
	defer v.Close()
	v.unlock(ctx)

	current, err := v.session.ExportAll(ctx)
	if err != nil {
		HandleError(err)
	}

	d, err := core.DiffExports(file, previous, []byte(current+"\n"))
	if err != nil {
		HandleError(err)
	}

	if d.Empty() {
		fmt.Println("No changes since", file)
		return
	}

	for _, key := range d.Added {
		fmt.Println(color.GreenString("  + %s", key))
	}
	for _, key := range d.Removed {
		fmt.Println(color.RedString("  - %s", key))
	}
	for _, key := range d.Changed {
		fmt.Println(color.YellowString("  ~ %s", key))
	}
	fmt.Println()
	fmt.Print(d.Unified)
}
