package rule_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consortia/consortia/internal/rule"
)

type stubRepo struct {
	rules []rule.Rule
}

func (s *stubRepo) ListRules(ctx context.Context) ([]rule.Rule, error) {
	return s.rules, nil
}

func (s *stubRepo) FindRule(ctx context.Context, resource string, scope rule.Scope, operation rule.Operation) (*rule.Rule, error) {
	for _, r := range s.rules {
		if r.Resource == resource && r.Scope == scope && r.Operation == operation {
			return &r, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) EnsureRule(ctx context.Context, resource string, scope rule.Scope, operation rule.Operation, description string) (rule.Rule, error) {
	if existing, _ := s.FindRule(ctx, resource, scope, operation); existing != nil {
		return *existing, nil
	}
	r := rule.Rule{
		ID:          int64(len(s.rules) + 1),
		Resource:    resource,
		Scope:       scope,
		Operation:   operation,
		Description: description,
		CreatedAt:   time.Now(),
	}
	s.rules = append(s.rules, r)
	return r, nil
}

func TestLoadCatalog(t *testing.T) {
	repo := &stubRepo{rules: []rule.Rule{
		{ID: 1, Resource: "task", Scope: rule.ScopeGlobal, Operation: rule.OperationCreate},
		{ID: 2, Resource: "task", Scope: rule.ScopeOrganization, Operation: rule.OperationCreate},
		{ID: 3, Resource: "result", Scope: rule.ScopeOwn, Operation: rule.OperationRead},
	}}

	catalog, err := rule.LoadCatalog(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, 3, catalog.Len())

	found, ok := catalog.Find("task", rule.ScopeOrganization, rule.OperationCreate)
	require.True(t, ok)
	assert.Equal(t, int64(2), found.ID)

	_, ok = catalog.Find("task", rule.ScopeCollaboration, rule.OperationCreate)
	assert.False(t, ok)
}

func TestLoadCatalogRejectsDuplicateTriple(t *testing.T) {
	repo := &stubRepo{rules: []rule.Rule{
		{ID: 1, Resource: "task", Scope: rule.ScopeGlobal, Operation: rule.OperationCreate},
		{ID: 2, Resource: "task", Scope: rule.ScopeGlobal, Operation: rule.OperationCreate},
	}}

	_, err := rule.LoadCatalog(context.Background(), repo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate catalog entry")
}

func TestSeedIsIdempotent(t *testing.T) {
	repo := &stubRepo{}
	require.NoError(t, rule.Seed(context.Background(), repo))
	seeded := len(repo.rules)
	require.Greater(t, seeded, 0)

	require.NoError(t, rule.Seed(context.Background(), repo))
	assert.Equal(t, seeded, len(repo.rules))

	// Seeded data must itself load as a valid catalog.
	_, err := rule.LoadCatalog(context.Background(), repo)
	require.NoError(t, err)
}

func TestParseScope(t *testing.T) {
	for _, scope := range rule.Scopes {
		parsed, err := rule.ParseScope(string(scope))
		require.NoError(t, err)
		assert.Equal(t, scope, parsed)
	}
	_, err := rule.ParseScope("universe")
	assert.Error(t, err)
}

func TestParseOperation(t *testing.T) {
	for _, op := range rule.Operations {
		parsed, err := rule.ParseOperation(string(op))
		require.NoError(t, err)
		assert.Equal(t, op, parsed)
	}
	_, err := rule.ParseOperation("execute")
	assert.Error(t, err)
}
