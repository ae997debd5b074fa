package model

import (
	"fmt"

	"github.com/plugfox/foxy-entity-store/internal/utility"
)

// Entity - one stored record.
// Only the payload is persisted, the uid names the storage location and
// the hash code is recomputed from the uid on every construction.
type Entity struct {
	uid      string
	hashCode uint64
	payload  string
}

// NewEntity - create an entity, computing its hash code from the uid.
func NewEntity(uid string, payload string) *Entity {
	return &Entity{
		uid:      uid,
		hashCode: utility.Sum64(uid),
		payload:  payload,
	}
}

// UID - get the entity identifier.
func (obj *Entity) UID() string {
	return obj.uid
}

// HashCode - get the hash code derived from the uid.
func (obj *Entity) HashCode() uint64 {
	return obj.hashCode
}

// Payload - get the stored text.
func (obj *Entity) Payload() string {
	return obj.payload
}

// Digest - content hash of uid and payload.
func (obj *Entity) Digest() string {
	return utility.Digest(obj.uid, obj.payload)
}

func (obj *Entity) String() string {
	return fmt.Sprintf("Entity{uid: %q, hash_code: %d, payload: %d bytes}", obj.uid, obj.hashCode, len(obj.payload))
}
