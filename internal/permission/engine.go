// Package permission decides whether a principal may perform an operation
// on a resource at a scope.
package permission

import (
	"context"

	"github.com/consortia/consortia/internal/principal"
	"github.com/consortia/consortia/internal/rule"
)

// Repository supplies a user's effective rules: direct grants plus the
// union of every held role's rules.
type Repository interface {
	ListEffectiveRules(ctx context.Context, userID int64) ([]rule.Rule, error)
}

// Engine evaluates rule-based authorization for user principals.
type Engine struct {
	repo Repository
}

// NewEngine constructs an Engine.
func NewEngine(repo Repository) *Engine {
	return &Engine{repo: repo}
}

// Authorize reports whether the principal holds the exact
// (resource, scope, operation) rule. There is no wildcard and no scope
// widening: an organization-scope grant never satisfies a global-scope
// check, nor the reverse. The effective rule set is fetched fresh on every
// call because role and rule membership can change between requests.
//
// Nodes and containers are not evaluated by this engine; their trust
// boundary is structural (a token scoped to one organization or task) and
// is enforced by the endpoint guard. For them Authorize is always false.
//
// Absence of a matching rule is a normal false, never an error.
func (e *Engine) Authorize(ctx context.Context, p principal.Principal, resource string, scope rule.Scope, operation rule.Operation) (bool, error) {
	if p.Kind != principal.KindUser {
		return false, nil
	}
	rules, err := e.repo.ListEffectiveRules(ctx, p.UserID)
	if err != nil {
		return false, err
	}
	want := rule.Triple{Resource: resource, Scope: scope, Operation: operation}
	for _, r := range rules {
		if r.Key() == want {
			return true, nil
		}
	}
	return false, nil
}

// AuthorizeAny reports whether the principal holds the rule at any of the
// given scopes and returns the first (broadest listed) matching scope.
// Callers wanting "at least this broad" semantics enumerate the scopes they
// accept; the engine itself never widens.
func (e *Engine) AuthorizeAny(ctx context.Context, p principal.Principal, resource string, operation rule.Operation, scopes ...rule.Scope) (rule.Scope, bool, error) {
	if p.Kind != principal.KindUser {
		return "", false, nil
	}
	rules, err := e.repo.ListEffectiveRules(ctx, p.UserID)
	if err != nil {
		return "", false, err
	}
	held := make(map[rule.Triple]struct{}, len(rules))
	for _, r := range rules {
		held[r.Key()] = struct{}{}
	}
	for _, scope := range scopes {
		if _, ok := held[rule.Triple{Resource: resource, Scope: scope, Operation: operation}]; ok {
			return scope, true, nil
		}
	}
	return "", false, nil
}
