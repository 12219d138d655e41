package shared

import (
	"github.com/google/uuid"
)

// AggregateRoot is the base interface for all aggregate roots
type AggregateRoot interface {
	Entity
	GetVersion() int
	IncrementVersion()
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot provides common fields for aggregate roots
type BaseAggregateRoot struct {
	BaseEntity
	Version      int           `gorm:"not null;default:1"`
	domainEvents []DomainEvent `gorm:"-"`
}

// GetVersion returns the aggregate version for optimistic locking
func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

// IncrementVersion increments the version number
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// AddDomainEvent adds a domain event to be published
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns all pending domain events
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents clears the pending domain events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// CompanyAggregateRoot scopes an aggregate to the owning company
type CompanyAggregateRoot struct {
	BaseAggregateRoot
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// NewDraftCompanyAggregateRoot creates a company-scoped aggregate without
// identity; the backend assigns the ID on first save
func NewDraftCompanyAggregateRoot(companyID uuid.UUID) CompanyAggregateRoot {
	return CompanyAggregateRoot{
		BaseAggregateRoot: BaseAggregateRoot{
			BaseEntity:   NewDraftEntity(),
			Version:      1,
			domainEvents: make([]DomainEvent, 0),
		},
		CompanyID: companyID,
	}
}

// NewCompanyAggregateRoot creates a company-scoped aggregate with a locally
// generated identity
func NewCompanyAggregateRoot(companyID uuid.UUID) CompanyAggregateRoot {
	return CompanyAggregateRoot{
		BaseAggregateRoot: BaseAggregateRoot{
			BaseEntity:   NewBaseEntity(),
			Version:      1,
			domainEvents: make([]DomainEvent, 0),
		},
		CompanyID: companyID,
	}
}
