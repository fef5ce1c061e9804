package security

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// MaxNameLength caps collection names and record ids, in bytes.
const MaxNameLength = 256

// ErrInvalidName is returned for collection names or ids that cannot form an
// unambiguous record key.
var ErrInvalidName = errors.New("invalid record name")

// ValidateCollection checks a collection name. Collections cannot contain a
// colon because the record key is "<collection>:<id>" and is split at the
// first colon.
func ValidateCollection(collection string) error {
	if err := validateName("collection", collection); err != nil {
		return err
	}
	if strings.Contains(collection, ":") {
		return fmt.Errorf("%w: collection %q contains ':'", ErrInvalidName, collection)
	}
	return nil
}

// ValidateID checks a record id. Ids may contain colons.
func ValidateID(id string) error {
	return validateName("id", id)
}

// ValidateRecordName checks both halves of a record key.
func ValidateRecordName(collection, id string) error {
	if err := ValidateCollection(collection); err != nil {
		return err
	}
	return ValidateID(id)
}

func validateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty %s", ErrInvalidName, kind)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: %s longer than %d bytes", ErrInvalidName, kind, MaxNameLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return fmt.Errorf("%w: %s %q contains a control or invalid character", ErrInvalidName, kind, name)
		}
	}
	return nil
}
