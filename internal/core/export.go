package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/illarion/coachvault/internal/crypto"
	"github.com/illarion/coachvault/internal/storage"
)

// ExportPlaceholder replaces records that could not be decrypted
const ExportPlaceholder = "Decryption Failed"

// ExportAll decrypts every record and returns a pretty-printed JSON object
// keyed by "collection:id". Unreadable records are kept as
// {"error": "Decryption Failed"} so the export always lists every record.
func (s *Session) ExportAll(ctx context.Context) (string, error) {
	var out []byte
	err := s.withKey(func(key *crypto.Key) error {
		records, err := s.records.All(ctx)
		if err != nil {
			return err
		}

		doc := make(map[string]any, len(records))
		plaintexts := make([][]byte, 0, len(records))
		defer func() {
			for _, p := range plaintexts {
				crypto.ClearBytes(p)
			}
		}()

		failed := 0
		for name, rec := range records {
			plaintext, err := crypto.Decrypt(rec.Ciphertext, rec.Nonce, key)
			if err != nil || !json.Valid(plaintext) {
				crypto.ClearBytes(plaintext)
				doc[name] = map[string]string{"error": ExportPlaceholder}
				failed++
				continue
			}
			plaintexts = append(plaintexts, plaintext)
			doc[name] = json.RawMessage(plaintext)
		}

		out, err = json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode export: %w", err)
		}

		entry := s.log.WithFields(logrus.Fields{
			"event":   "vault_exported",
			"records": len(records),
			"failed":  failed,
		})
		if failed > 0 {
			entry.Warn("Export contains unreadable records")
		} else {
			entry.Info("Vault exported")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// IsExport reports whether data looks like an ExportAll document: a non-empty
// JSON object whose keys are all "collection:id".
func IsExport(data []byte) bool {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil || len(doc) == 0 {
		return false
	}
	for key := range doc {
		if _, _, err := storage.SplitRecordKey(key); err != nil {
			return false
		}
	}
	return true
}
