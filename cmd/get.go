package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/illarion/coachvault/internal/crypto"
)

// Get decrypts and prints one record
func Get(ctx context.Context, collection, id string) {
	v := openInitialized(ctx)
	defer v.Close()
	v.unlock(ctx)

	var raw json.RawMessage
	found, err := v.session.LoadInto(ctx, collection, id, &raw)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(raw)

	if !found {
		HandleError(fmt.Errorf("%s:%s not found or not readable with this passphrase", collection, id))
	}

	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		HandleError(err)
	}
	out.WriteByte('\n')
	os.Stdout.Write(out.Bytes())
	crypto.ClearBytes(out.Bytes())
}
