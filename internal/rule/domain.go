package rule

import (
	"fmt"
	"time"
)

// Scope is the breadth of a permission grant, ordered broad to narrow.
// Matching is always exact: a grant at one scope never satisfies a check
// at another.
type Scope string

const (
	ScopeGlobal        Scope = "global"
	ScopeOrganization  Scope = "organization"
	ScopeCollaboration Scope = "collaboration"
	ScopeOwn           Scope = "own"
)

// Scopes lists all valid scopes broad to narrow.
var Scopes = []Scope{ScopeGlobal, ScopeOrganization, ScopeCollaboration, ScopeOwn}

// ParseScope converts a stored string into a Scope.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeGlobal, ScopeOrganization, ScopeCollaboration, ScopeOwn:
		return Scope(s), nil
	}
	return "", fmt.Errorf("rule: unknown scope %q", s)
}

// Operation is the action a grant permits on a resource.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationRead   Operation = "read"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Operations lists all valid operations.
var Operations = []Operation{OperationCreate, OperationRead, OperationUpdate, OperationDelete}

// ParseOperation converts a stored string into an Operation.
func ParseOperation(s string) (Operation, error) {
	switch Operation(s) {
	case OperationCreate, OperationRead, OperationUpdate, OperationDelete:
		return Operation(s), nil
	}
	return "", fmt.Errorf("rule: unknown operation %q", s)
}

// Rule is an atomic grant of one operation on one resource at one scope.
// The (resource, scope, operation) triple identifies a rule uniquely.
type Rule struct {
	ID          int64
	Resource    string
	Scope       Scope
	Operation   Operation
	Description string
	CreatedAt   time.Time
}

// Triple is the identifying key of a rule.
type Triple struct {
	Resource  string
	Scope     Scope
	Operation Operation
}

// Key returns the identifying triple of the rule.
func (r Rule) Key() Triple {
	return Triple{Resource: r.Resource, Scope: r.Scope, Operation: r.Operation}
}

func (t Triple) String() string {
	return fmt.Sprintf("%s/%s/%s", t.Resource, t.Scope, t.Operation)
}
