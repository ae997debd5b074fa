package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("entity not found")           // No stored entity for the uid.
	ErrInvalidUID = errors.New("invalid entity uid")         // The uid cannot be mapped to a storage location.
	ErrIO         = errors.New("storage i/o failure")        // The storage backend failed to read or write.
	ErrDecode     = errors.New("stored payload is not text") // The stored bytes are not valid UTF-8.
)

// WrapNotFound reports that no entity is stored under uid.
func WrapNotFound(uid string) error {
	return fmt.Errorf("%w: %q", ErrNotFound, uid)
}

// WrapInvalidUID reports why uid was rejected.
func WrapInvalidUID(uid string, reason string) error {
	return fmt.Errorf("%w %q: %s", ErrInvalidUID, uid, reason)
}

// WrapIO attaches the failing operation and uid to a backend error.
func WrapIO(op string, uid string, err error) error {
	return fmt.Errorf("%w: %s %q: %w", ErrIO, op, uid, err)
}

// WrapDecode reports undecodable content at the given byte offset.
func WrapDecode(uid string, offset int) error {
	return fmt.Errorf("%w: %q: invalid utf-8 at byte %d", ErrDecode, uid, offset)
}
