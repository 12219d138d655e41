package treasury

import (
	"github.com/google/uuid"

	"github.com/tresoria/backend/internal/domain/treasury"
)

// Session is the explicit per-call context the service layer operates
// under. It replaces any ambient storage: the authentication collaborator
// builds it once per request and every operation receives it as a
// parameter.
type Session struct {
	UserID       uuid.UUID             `json:"user_id"`
	Username     string                `json:"username"`
	CompanyID    uuid.UUID             `json:"company_id"`
	Capabilities treasury.Capabilities `json:"capabilities"`
}
