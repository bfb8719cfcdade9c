package principal

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Repository defines the persistence operations the resolver needs.
type Repository interface {
	FindIdentity(ctx context.Context, id int64) (*Identity, error)
	TouchLastSeen(ctx context.Context, id int64, seen time.Time) error
}

// Resolver turns a raw credential into a classified Principal.
type Resolver struct {
	codec  *Codec
	repo   Repository
	logger *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(codec *Codec, repo Repository, logger *slog.Logger) *Resolver {
	return &Resolver{codec: codec, repo: repo, logger: logger}
}

// Resolve decodes the credential, classifies its kind, and materializes the
// principal. User and node credentials are checked against their persisted
// identity: the stored kind must match the claimed kind, and the identity's
// last-seen timestamp is updated as a side effect. Container credentials
// carry their identity entirely in the claims and hit no storage.
//
// Resolution is linear: decode, classify, resolve or reject. There is no
// retry within a request.
func (r *Resolver) Resolve(ctx context.Context, rawToken string) (Principal, error) {
	if rawToken == "" {
		return Principal{}, ErrMissingCredential
	}
	claims, err := r.codec.Parse(rawToken)
	if err != nil {
		return Principal{}, err
	}
	kind, err := ParseKind(claims.Kind)
	if err != nil {
		return Principal{}, err
	}

	switch kind {
	case KindUser, KindNode:
		id, err := claims.SubjectID()
		if err != nil {
			return Principal{}, err
		}
		identity, err := r.lookup(ctx, id, kind)
		if err != nil {
			return Principal{}, err
		}
		p := Principal{Kind: kind, OrganizationID: identity.OrganizationID}
		if kind == KindUser {
			p.UserID = identity.ID
		} else {
			p.NodeID = identity.ID
		}
		return p, nil

	case KindContainer:
		if claims.OrganizationID == 0 || claims.NodeID == 0 || claims.TaskID == 0 {
			return Principal{}, fmt.Errorf("%w: container claims incomplete", ErrInvalidCredential)
		}
		return Principal{
			Kind:           KindContainer,
			OrganizationID: claims.OrganizationID,
			NodeID:         claims.NodeID,
			TaskID:         claims.TaskID,
		}, nil
	}
	return Principal{}, fmt.Errorf("%w: unhandled kind %q", ErrInvalidCredential, kind)
}

// lookup fetches the persisted identity, asserts the stored kind matches
// the claimed one, and touches last-seen. Kind mismatch is fatal to the
// request, never ignored.
func (r *Resolver) lookup(ctx context.Context, id int64, claimed Kind) (*Identity, error) {
	identity, err := r.repo.FindIdentity(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownIdentity, id)
	}
	if identity.Kind != claimed {
		return nil, fmt.Errorf("%w: credential claims %s, record is %s", ErrIdentityMismatch, claimed, identity.Kind)
	}
	if err := r.repo.TouchLastSeen(ctx, id, time.Now().UTC()); err != nil {
		// Last-seen is best effort bookkeeping; losing one update must not
		// fail an otherwise valid request.
		r.logger.Warn("touch last seen", slog.Int64("id", id), slog.Any("error", err))
	}
	return identity, nil
}
