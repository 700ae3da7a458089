// Package rules holds the data-quality rule tables that ride alongside the
// schema: master-data deduplication keys, per-entity duplicate handling
// policy, and exactly-one-of field exclusion rules.
//
// The tables ship with compiled-in defaults and can be overridden by a YAML
// file, so new rules do not require code changes.
package rules

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DuplicatePolicy is the closed set of behaviors for rows whose only
// validation failures are unique-constraint violations.
type DuplicatePolicy int

const (
	// DuplicateError records the violation as a hard validation error.
	DuplicateError DuplicatePolicy = iota
	// DuplicateSkip drops the row with an informational record instead.
	DuplicateSkip
)

// String implements fmt.Stringer.
func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicateSkip:
		return "skip"
	case DuplicateError:
		return "error"
	}
	return fmt.Sprintf("DuplicatePolicy(%d)", int(p))
}

// ParseDuplicatePolicy converts a config string into a policy value.
// Unrecognized strings are an error, never silently ignored.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "skip":
		return DuplicateSkip, nil
	case "error":
		return DuplicateError, nil
	default:
		return DuplicateError, fmt.Errorf("unknown duplicate policy %q (want skip or error)", s)
	}
}

// UnmarshalYAML implements yaml.Unmarshaler for DuplicatePolicy.
func (p *DuplicatePolicy) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseDuplicatePolicy(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ExclusionRule requires exactly one of two columns to be populated.
type ExclusionRule struct {
	Entity string `yaml:"entity"`
	FieldA string `yaml:"fieldA"`
	FieldB string `yaml:"fieldB"`
}

// Table aggregates all rule tables for one run.
type Table struct {
	// Dedup maps a master-data entity to its natural-key field list.
	// Entities absent from the map are transactional: never deduplicated.
	Dedup map[string][]string `yaml:"dedup"`

	// Policies maps an entity to its duplicate handling policy.
	Policies map[string]DuplicatePolicy `yaml:"policies"`

	// Exclusions lists the exactly-one-of rules, at most one per entity.
	Exclusions []ExclusionRule `yaml:"exclusions"`
}

// Default returns the built-in rule tables: master reference entities are
// deduplicated by their natural keys and skip duplicates, the transactional
// SERVICEORDERS entity skips duplicate order numbers, and UNITSCOPE rows must
// carry exactly one of RFI_ID or NC_ID.
func Default() *Table {
	return &Table{
		Dedup: map[string][]string{
			"CLUSTERS":           {"NAME"},
			"SPVS":               {"NAME"},
			"PROJECTS":           {"NAME", "TYPE", "CATEGORY"},
			"LOCATIONS":          {"NAME"},
			"PLOTS":              {"NAME"},
			"VENDORS":            {"CODE"},
			"PROJECTDEFINITIONS": {"CODE"},
			"PACKAGES":           {"NAME"},
		},
		Policies: map[string]DuplicatePolicy{
			"CLUSTERS":           DuplicateSkip,
			"LOCATIONS":          DuplicateSkip,
			"SPVS":               DuplicateSkip,
			"PROJECTS":           DuplicateSkip,
			"PACKAGES":           DuplicateSkip,
			"PROJECTDEFINITIONS": DuplicateSkip,
			"VENDORS":            DuplicateSkip,
			"PLOTS":              DuplicateSkip,
			"SERVICEORDERS":      DuplicateSkip,
		},
		Exclusions: []ExclusionRule{
			{Entity: "UNITSCOPE", FieldA: "RFI_ID", FieldB: "NC_ID"},
		},
	}
}

// Load reads a YAML rules file, overlaying the defaults. A missing file
// yields the defaults unchanged.
func Load(path string) (*Table, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return t, nil
		}
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var override Table
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	for entity, keys := range override.Dedup {
		t.Dedup[strings.ToUpper(entity)] = keys
	}
	for entity, policy := range override.Policies {
		t.Policies[strings.ToUpper(entity)] = policy
	}
	if len(override.Exclusions) > 0 {
		t.Exclusions = override.Exclusions
	}
	return t, nil
}

// ShouldDeduplicate reports whether the entity is master data.
func (t *Table) ShouldDeduplicate(entity string) bool {
	_, ok := t.Dedup[strings.ToUpper(entity)]
	return ok
}

// DedupKeys returns the natural-key field list for a master entity, or nil.
func (t *Table) DedupKeys(entity string) []string {
	return t.Dedup[strings.ToUpper(entity)]
}

// DuplicatePolicy returns the entity's policy, defaulting to DuplicateError.
func (t *Table) DuplicatePolicy(entity string) DuplicatePolicy {
	if p, ok := t.Policies[strings.ToUpper(entity)]; ok {
		return p
	}
	return DuplicateError
}

// Exclusion returns the exactly-one-of rule for an entity, or nil.
func (t *Table) Exclusion(entity string) *ExclusionRule {
	for i := range t.Exclusions {
		if strings.EqualFold(t.Exclusions[i].Entity, entity) {
			return &t.Exclusions[i]
		}
	}
	return nil
}
