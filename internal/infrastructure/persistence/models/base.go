package models

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel carries the identity and audit columns shared by every table.
// IDs are assigned by the gateway, not by the database, so no default
// expression is attached to the primary key.
type BaseModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time  `gorm:"not null"`
	CreatedBy *uuid.UUID `gorm:"type:uuid"`
	UpdatedAt time.Time  `gorm:"not null"`
	UpdatedBy *uuid.UUID `gorm:"type:uuid"`
}

// CompanyModel scopes a row to the owning company
type CompanyModel struct {
	BaseModel
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index"`
}
