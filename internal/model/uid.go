package model

import (
	"strings"

	storeErrors "github.com/plugfox/foxy-entity-store/internal/errors"
)

// MaxUIDLength - longest uid accepted, the usual file name limit.
const MaxUIDLength = 255

// ValidateUID - check that the uid can name exactly one entry directly
// under the storage root.
func ValidateUID(uid string) error {
	switch {
	case uid == "":
		return storeErrors.WrapInvalidUID(uid, "empty")
	case uid == "." || uid == "..":
		return storeErrors.WrapInvalidUID(uid, "reserved name")
	case len(uid) > MaxUIDLength:
		return storeErrors.WrapInvalidUID(uid, "too long")
	case strings.ContainsAny(uid, `/\`):
		return storeErrors.WrapInvalidUID(uid, "contains a path separator")
	case strings.ContainsRune(uid, 0):
		return storeErrors.WrapInvalidUID(uid, "contains a NUL byte")
	}

	return nil
}
