package cmd

import (
	"context"
	"fmt"

	"github.com/illarion/coachvault/internal/security"
)

// Export prints the decrypted vault, or writes it to out inside the current
// directory with owner-only permissions.
func Export(ctx context.Context, out string) {
	v := openInitialized(ctx)
	defer v.Close()
	v.unlock(ctx)

	doc, err := v.session.ExportAll(ctx)
	if err != nil {
		HandleError(err)
	}

	if out == "" {
		fmt.Println(doc)
		return
	}

	validator, err := security.New(".")
	if err != nil {
		HandleError(err)
	}
	defer validator.Close()

	if err := validator.WriteFileInRoot(out, []byte(doc+"\n"), 0600); err != nil {
		HandleError(err)
	}
	success("Exported to %s", out)
	warn("%s contains plaintext; keep it out of version control", out)
}
