package model

import "time"

// EntityRecord - row layout of an entity in the SQL backend.
// The hash code is not stored, same as with the file backend.
type EntityRecord struct {
	UID     string `gorm:"primaryKey;size:255" json:"uid"` // Entity identifier.
	Payload string `json:"payload"`                        // Entity payload.

	// Meta fields
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"` // Time when the entity was last saved.
}

// TableName - set the table name.
func (EntityRecord) TableName() string {
	return "entities"
}

// NewEntityRecord - convert an entity to its row.
func NewEntityRecord(entity *Entity) *EntityRecord {
	return &EntityRecord{
		UID:     entity.UID(),
		Payload: entity.Payload(),
	}
}

// ToEntity - rebuild the entity, recomputing its hash code.
func (obj *EntityRecord) ToEntity() *Entity {
	return NewEntity(obj.UID, obj.Payload)
}
