package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is the base interface for all domain entities
type Entity interface {
	GetID() uuid.UUID
	GetCreatedAt() time.Time
	GetUpdatedAt() time.Time
}

// BaseEntity provides common fields for all entities.
// Identity and audit fields are owned by the treasury backend: a draft entity
// starts with a nil ID and receives its identity on first save.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	CreatedBy *uuid.UUID
	UpdatedAt time.Time
	UpdatedBy *uuid.UUID
}

// GetID returns the entity ID
func (e *BaseEntity) GetID() uuid.UUID {
	return e.ID
}

// GetCreatedAt returns the creation timestamp
func (e *BaseEntity) GetCreatedAt() time.Time {
	return e.CreatedAt
}

// GetUpdatedAt returns the last update timestamp
func (e *BaseEntity) GetUpdatedAt() time.Time {
	return e.UpdatedAt
}

// IsPersisted reports whether the backend has assigned an identity yet
func (e *BaseEntity) IsPersisted() bool {
	return e.ID != uuid.Nil
}

// NewBaseEntity creates a new base entity with a locally generated ID
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewDraftEntity creates an entity without identity; the backend assigns the
// ID and audit fields on first save
func NewDraftEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{
		CreatedAt: now,
		UpdatedAt: now,
	}
}
