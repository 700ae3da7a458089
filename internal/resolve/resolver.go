package resolve

import (
	"strings"

	"github.com/cctech/drsimport/internal/mapping"
)

// Resolver resolves *_ID foreign-key columns by natural-key lookup through
// a resolution context.
type Resolver struct {
	ctx *Context
}

// NewResolver creates a resolver over the given context.
func NewResolver(ctx *Context) *Resolver {
	return &Resolver{ctx: ctx}
}

// Context returns the resolution context backing this resolver.
func (r *Resolver) Context() *Context { return r.ctx }

// LookupID searches the target entity for a row matching every rule and
// returns its key-field value, or "" when no candidate matches or the source
// row lacks a value for any match field. Rows are scanned in load order
// (persisted before staged); the first match wins, so duplicate natural keys
// in the target store resolve silently to the earliest-loaded row.
func (r *Resolver) LookupID(targetEntity string, rules []mapping.MatchRule, source map[string]string) (string, error) {
	data, err := r.ctx.Rows(targetEntity)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", nil
	}

	criteria := make(map[string]string, len(rules))
	for _, rule := range rules {
		if rule.Field == "" || rule.From == "" {
			continue
		}
		v := strings.TrimSpace(source[rule.From])
		if v == "" {
			// A rule without a source value cannot be evaluated; "couldn't
			// try" and "no match" are deliberately indistinguishable.
			return "", nil
		}
		criteria[rule.Field] = v
	}
	if len(criteria) == 0 {
		return "", nil
	}

	idField := "ID"
	if info := r.ctx.art.Entity(targetEntity); info != nil && info.IDField != "" {
		idField = info.IDField
	}

	for _, candidate := range data {
		if matches(candidate, criteria) {
			return candidate[idField], nil
		}
	}
	return "", nil
}

// matches checks every criterion against a candidate row. Surrogate-key
// fields (*_ID) compare exactly since they hold resolved identifiers;
// natural-key fields compare case-insensitively.
func matches(candidate, criteria map[string]string) bool {
	for field, want := range criteria {
		got := strings.TrimSpace(candidate[field])
		if strings.HasSuffix(field, "_ID") {
			if got != want {
				return false
			}
		} else if !strings.EqualFold(got, want) {
			return false
		}
	}
	return true
}

// ResolveAll resolves every configured foreign key for one source row.
// A non-blank value already present under the foreign-key's own column wins
// verbatim over any natural-key inference. Unresolved keys map to "".
func (r *Resolver) ResolveAll(lookups map[string]mapping.Lookup, source map[string]string) (map[string]string, error) {
	resolved := make(map[string]string, len(lookups))
	for fkField, lookup := range lookups {
		if lookup.Entity == "" {
			continue
		}

		if direct := strings.TrimSpace(source[fkField]); direct != "" {
			resolved[fkField] = direct
			continue
		}

		id, err := r.LookupID(lookup.Entity, lookup.Match, source)
		if err != nil {
			return nil, err
		}
		resolved[fkField] = id
	}
	return resolved, nil
}
