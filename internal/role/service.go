package role

import (
	"context"
	"fmt"
	"strings"

	"github.com/consortia/consortia/internal/platform/httpx"
	"github.com/consortia/consortia/internal/rule"
)

// Service orchestrates role administration.
type Service struct {
	repo    Repository
	catalog *rule.Catalog
}

// NewService constructs a Service. The catalog is used to verify that rule
// ids attached to roles exist.
func NewService(repo Repository, catalog *rule.Catalog) *Service {
	return &Service{repo: repo, catalog: catalog}
}

// List returns all roles.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// Get fetches one role with its rules.
func (s *Service) Get(ctx context.Context, id int64) (*Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, httpx.ErrNotFound
	}
	return role, nil
}

// Create inserts a new role. The name is required and unique.
func (s *Service) Create(ctx context.Context, name, description string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name required", httpx.ErrValidation)
	}
	return s.repo.CreateRole(ctx, name, strings.TrimSpace(description))
}

// Update modifies an existing role.
func (s *Service) Update(ctx context.Context, id int64, name, description string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name required", httpx.ErrValidation)
	}
	role, err := s.repo.UpdateRole(ctx, id, name, strings.TrimSpace(description))
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, httpx.ErrNotFound
	}
	return role, nil
}

// Delete removes a role.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.DeleteRole(ctx, id)
}

// SetRules replaces a role's rule set with the given catalog rule ids,
// attaching missing links and detaching stale ones.
func (s *Service) SetRules(ctx context.Context, roleID int64, ruleIDs []int64) error {
	known := make(map[int64]struct{}, s.catalog.Len())
	for _, r := range s.catalog.All() {
		known[r.ID] = struct{}{}
	}
	for _, id := range ruleIDs {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("%w: rule %d is not in the catalog", httpx.ErrValidation, id)
		}
	}

	current, err := s.repo.ListRoleRules(ctx, roleID)
	if err != nil {
		return err
	}
	existing := make(map[int64]struct{}, len(current))
	for _, r := range current {
		existing[r.ID] = struct{}{}
	}
	keep := make(map[int64]struct{}, len(ruleIDs))
	for _, id := range ruleIDs {
		keep[id] = struct{}{}
		if _, ok := existing[id]; !ok {
			if err := s.repo.AttachRule(ctx, roleID, id); err != nil {
				return err
			}
		}
	}
	for id := range existing {
		if _, ok := keep[id]; !ok {
			if err := s.repo.DetachRule(ctx, roleID, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Assign grants the role to a user.
func (s *Service) Assign(ctx context.Context, userID, roleID int64) error {
	return s.repo.AssignToUser(ctx, userID, roleID)
}

// Remove revokes the role from a user.
func (s *Service) Remove(ctx context.Context, userID, roleID int64) error {
	return s.repo.RemoveFromUser(ctx, userID, roleID)
}
