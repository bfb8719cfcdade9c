package permission_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consortia/consortia/internal/permission"
	"github.com/consortia/consortia/internal/principal"
	"github.com/consortia/consortia/internal/rule"
)

// stubRules maps user id to that user's effective rules (direct plus
// role-derived, already unioned the way the SQL does).
type stubRules struct {
	byUser map[int64][]rule.Rule
	calls  int
}

func (s *stubRules) ListEffectiveRules(ctx context.Context, userID int64) ([]rule.Rule, error) {
	s.calls++
	return s.byUser[userID], nil
}

func userPrincipal(id int64) principal.Principal {
	return principal.Principal{Kind: principal.KindUser, UserID: id, OrganizationID: 1}
}

func TestAuthorizeExactTriple(t *testing.T) {
	repo := &stubRules{byUser: map[int64][]rule.Rule{
		7: {
			{ID: 1, Resource: "task", Scope: rule.ScopeOrganization, Operation: rule.OperationCreate},
			{ID: 2, Resource: "result", Scope: rule.ScopeOwn, Operation: rule.OperationRead},
		},
	}}
	engine := permission.NewEngine(repo)

	allowed, err := engine.Authorize(context.Background(), userPrincipal(7), "task", rule.ScopeOrganization, rule.OperationCreate)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = engine.Authorize(context.Background(), userPrincipal(7), "task", rule.ScopeOrganization, rule.OperationDelete)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestAuthorizeNoScopeWidening(t *testing.T) {
	repo := &stubRules{byUser: map[int64][]rule.Rule{
		7: {{ID: 1, Resource: "task", Scope: rule.ScopeOrganization, Operation: rule.OperationCreate}},
		8: {{ID: 2, Resource: "task", Scope: rule.ScopeGlobal, Operation: rule.OperationCreate}},
	}}
	engine := permission.NewEngine(repo)

	// An organization-scope grant does not satisfy a global-scope check.
	allowed, err := engine.Authorize(context.Background(), userPrincipal(7), "task", rule.ScopeGlobal, rule.OperationCreate)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Nor does a global grant satisfy an organization-scope check.
	allowed, err = engine.Authorize(context.Background(), userPrincipal(8), "task", rule.ScopeOrganization, rule.OperationCreate)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestAuthorizeUnrelatedRuleNeverFlipsDecision(t *testing.T) {
	repo := &stubRules{byUser: map[int64][]rule.Rule{
		7: {{ID: 1, Resource: "task", Scope: rule.ScopeOwn, Operation: rule.OperationCreate}},
	}}
	engine := permission.NewEngine(repo)

	before, err := engine.Authorize(context.Background(), userPrincipal(7), "organization", rule.ScopeGlobal, rule.OperationDelete)
	require.NoError(t, err)

	repo.byUser[7] = append(repo.byUser[7],
		rule.Rule{ID: 99, Resource: "node", Scope: rule.ScopeGlobal, Operation: rule.OperationUpdate})

	after, err := engine.Authorize(context.Background(), userPrincipal(7), "organization", rule.ScopeGlobal, rule.OperationDelete)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAuthorizeRefetchesRulesEveryCall(t *testing.T) {
	repo := &stubRules{byUser: map[int64][]rule.Rule{7: nil}}
	engine := permission.NewEngine(repo)

	allowed, err := engine.Authorize(context.Background(), userPrincipal(7), "task", rule.ScopeOwn, rule.OperationRead)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Grant arrives between requests; the next check must see it.
	repo.byUser[7] = []rule.Rule{{ID: 1, Resource: "task", Scope: rule.ScopeOwn, Operation: rule.OperationRead}}

	allowed, err = engine.Authorize(context.Background(), userPrincipal(7), "task", rule.ScopeOwn, rule.OperationRead)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 2, repo.calls)
}

func TestAuthorizeNonUserKindsAreStructural(t *testing.T) {
	repo := &stubRules{byUser: map[int64][]rule.Rule{}}
	engine := permission.NewEngine(repo)

	node := principal.Principal{Kind: principal.KindNode, NodeID: 3, OrganizationID: 1}
	container := principal.Principal{Kind: principal.KindContainer, NodeID: 3, TaskID: 9, OrganizationID: 1}

	for _, p := range []principal.Principal{node, container} {
		allowed, err := engine.Authorize(context.Background(), p, "task", rule.ScopeGlobal, rule.OperationCreate)
		require.NoError(t, err)
		assert.False(t, allowed)
	}
	// The rule repository is never consulted for nodes or containers.
	assert.Equal(t, 0, repo.calls)
}

func TestAuthorizeAnyReturnsFirstListedScope(t *testing.T) {
	repo := &stubRules{byUser: map[int64][]rule.Rule{
		7: {
			{ID: 1, Resource: "task", Scope: rule.ScopeOwn, Operation: rule.OperationRead},
			{ID: 2, Resource: "task", Scope: rule.ScopeOrganization, Operation: rule.OperationRead},
		},
	}}
	engine := permission.NewEngine(repo)

	scope, allowed, err := engine.AuthorizeAny(context.Background(), userPrincipal(7), "task", rule.OperationRead,
		rule.ScopeGlobal, rule.ScopeOrganization, rule.ScopeOwn)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, rule.ScopeOrganization, scope)

	_, allowed, err = engine.AuthorizeAny(context.Background(), userPrincipal(7), "task", rule.OperationRead,
		rule.ScopeGlobal)
	require.NoError(t, err)
	assert.False(t, allowed)
}
