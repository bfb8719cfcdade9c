// Package principal classifies the authenticated actor behind a request.
//
// Every inbound coordinator request carries a bearer token whose claims
// declare one of three kinds: a human user, a participating node, or an
// algorithm container spawned by a node. Exactly one kind is active per
// request; endpoints declare the set of kinds they accept.
package principal

import (
	"fmt"
	"time"

	"github.com/consortia/consortia/internal/platform/httpx"
)

// Kind discriminates the principal variants.
type Kind string

const (
	KindUser      Kind = "user"
	KindNode      Kind = "node"
	KindContainer Kind = "container"
)

// ParseKind converts a token claim into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindUser, KindNode, KindContainer:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: unknown principal kind %q", httpx.ErrAuth, s)
}

// Principal is the request-scoped view of the authenticated actor. It is
// built fresh from the credential on every request and never persisted.
// Which fields are set depends on Kind:
//
//   - user: UserID, OrganizationID
//   - node: NodeID, OrganizationID
//   - container: NodeID, TaskID, OrganizationID (straight from the claims,
//     containers are not persisted principals)
type Principal struct {
	Kind           Kind
	UserID         int64
	NodeID         int64
	TaskID         int64
	OrganizationID int64
}

// Identity is the persisted record behind a user or node principal.
type Identity struct {
	ID             int64
	Kind           Kind
	OrganizationID int64
	Name           string
	LastSeen       time.Time
}

// Typed rejection reasons. All wrap an httpx sentinel so handlers and
// middleware can map them to a response with a single RespondError call.
var (
	ErrMissingCredential = fmt.Errorf("%w: missing credential", httpx.ErrAuth)
	ErrInvalidCredential = fmt.Errorf("%w: invalid credential", httpx.ErrAuth)
	ErrIdentityMismatch  = fmt.Errorf("%w: identity kind mismatch", httpx.ErrAuth)
	ErrUnknownIdentity   = fmt.Errorf("%w: unknown identity", httpx.ErrAuth)
	ErrKindNotAllowed    = fmt.Errorf("%w: principal kind not allowed here", httpx.ErrAuthorizationDenied)
)
