package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/illarion/coachvault/internal/crypto"
	"github.com/illarion/coachvault/internal/security"
)

var errInvalidJSON = errors.New("value is not valid JSON")

// Put encrypts a JSON value and stores it under (collection, id). A value of
// "-" is read from stdin.
func Put(ctx context.Context, collection, id, value string) {
	if err := security.ValidateRecordName(collection, id); err != nil {
		HandleError(err)
	}

	data := []byte(value)
	if value == "-" {
		var err error
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			HandleError(err)
		}
	}
	defer crypto.ClearBytes(data)

	if !json.Valid(data) {
		HandleError(errInvalidJSON)
	}

	v := openInitialized(ctx)
	defer v.Close()
	v.unlock(ctx)

	if err := v.session.Save(ctx, collection, id, json.RawMessage(data)); err != nil {
		HandleError(err)
	}

	success("Saved %s:%s", collection, id)
}
