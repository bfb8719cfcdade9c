package rule

import "context"

// seedEntry declares one default catalog rule.
type seedEntry struct {
	resource    string
	scopes      []Scope
	operations  []Operation
	description string
}

// defaultRules is the catalog seeded on first start. Resources map to the
// coordinator's own endpoints; each gets the scopes that make sense for it.
var defaultRules = []seedEntry{
	{
		resource:    "organization",
		scopes:      []Scope{ScopeGlobal, ScopeOrganization, ScopeCollaboration},
		operations:  []Operation{OperationCreate, OperationRead, OperationUpdate, OperationDelete},
		description: "manage organizations",
	},
	{
		resource:    "user",
		scopes:      []Scope{ScopeGlobal, ScopeOrganization, ScopeOwn},
		operations:  []Operation{OperationCreate, OperationRead, OperationUpdate, OperationDelete},
		description: "manage user accounts",
	},
	{
		resource:    "node",
		scopes:      []Scope{ScopeGlobal, ScopeOrganization},
		operations:  []Operation{OperationCreate, OperationRead, OperationUpdate, OperationDelete},
		description: "manage participating nodes",
	},
	{
		resource:    "role",
		scopes:      []Scope{ScopeGlobal, ScopeOrganization},
		operations:  []Operation{OperationCreate, OperationRead, OperationUpdate, OperationDelete},
		description: "manage roles and their rule assignments",
	},
	{
		resource:    "rule",
		scopes:      []Scope{ScopeGlobal},
		operations:  []Operation{OperationRead},
		description: "inspect the rule catalog",
	},
	{
		resource:    "task",
		scopes:      []Scope{ScopeGlobal, ScopeOrganization, ScopeCollaboration, ScopeOwn},
		operations:  []Operation{OperationCreate, OperationRead, OperationDelete},
		description: "manage computation tasks",
	},
	{
		resource:    "result",
		scopes:      []Scope{ScopeGlobal, ScopeOrganization, ScopeOwn},
		operations:  []Operation{OperationRead, OperationUpdate},
		description: "read and post task results",
	},
}

// Seed upserts the default rule set. It is idempotent and safe to run on
// every start; descriptions of existing rules are refreshed in place.
func Seed(ctx context.Context, repo Repository) error {
	for _, entry := range defaultRules {
		for _, scope := range entry.scopes {
			for _, operation := range entry.operations {
				if _, err := repo.EnsureRule(ctx, entry.resource, scope, operation, entry.description); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
