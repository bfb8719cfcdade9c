package role

import (
	"time"

	"github.com/consortia/consortia/internal/rule"
)

// Role is a named, reusable bundle of catalog rules assignable to users.
// A role's effective grants are the union of its rules.
type Role struct {
	ID          int64
	Name        string
	Description string
	Rules       []rule.Rule
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
