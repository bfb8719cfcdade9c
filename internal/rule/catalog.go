package rule

import (
	"context"
	"fmt"
)

// Catalog is the immutable set of known rules, loaded once at startup.
// All permission checks resolve against it; it is never mutated after load.
type Catalog struct {
	byTriple map[Triple]Rule
	ordered  []Rule
}

// LoadCatalog reads every rule from the repository and indexes it by triple.
// A duplicate (resource, scope, operation) triple is a configuration fault
// and aborts the load.
func LoadCatalog(ctx context.Context, repo Repository) (*Catalog, error) {
	rules, err := repo.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("rule: load catalog: %w", err)
	}
	c := &Catalog{
		byTriple: make(map[Triple]Rule, len(rules)),
		ordered:  make([]Rule, 0, len(rules)),
	}
	for _, r := range rules {
		key := r.Key()
		if dup, ok := c.byTriple[key]; ok {
			return nil, fmt.Errorf("rule: duplicate catalog entry %s (ids %d and %d)", key, dup.ID, r.ID)
		}
		c.byTriple[key] = r
		c.ordered = append(c.ordered, r)
	}
	return c, nil
}

// Find returns the catalog rule for the given triple, if it exists.
func (c *Catalog) Find(resource string, scope Scope, operation Operation) (Rule, bool) {
	r, ok := c.byTriple[Triple{Resource: resource, Scope: scope, Operation: operation}]
	return r, ok
}

// All returns the rules in load order. Callers must not modify the slice.
func (c *Catalog) All() []Rule {
	return c.ordered
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.ordered)
}
