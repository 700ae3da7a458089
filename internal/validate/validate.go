package validate

import (
	"fmt"
	"strings"

	"github.com/cctech/drsimport/internal/rules"
	"github.com/cctech/drsimport/internal/schema"
)

// uniqueViolationMarker identifies unique-constraint errors so callers can
// apply the duplicate-handling policy without parsing full messages.
const uniqueViolationMarker = "unique constraint"

// IsUniqueViolation reports whether a validation error message records a
// unique-constraint violation.
func IsUniqueViolation(msg string) bool {
	return strings.Contains(strings.ToLower(msg), uniqueViolationMarker)
}

// CheckEnum validates a value against a named enum's allowed set.
// Blank is always valid; enums are nullable by design.
func CheckEnum(field, value, enumName string, allowed []string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	for _, v := range allowed {
		if trimmed == v {
			return ""
		}
	}
	return fmt.Sprintf("invalid enum value '%s' for %s, allowed: %s", trimmed, field, strings.Join(allowed, ", "))
}

// CheckUnique evaluates every declared unique constraint of the entity
// against the accumulated rows (persisted plus already accepted this pass).
// A constraint with any blank key column is skipped: incomplete keys cannot
// collide. Comparison is trimmed and case-folded; the first full match
// records a violation and ends the scan for that constraint.
func CheckUnique(constraints []schema.UniqueConstraint, row map[string]string, accumulated []map[string]string) []string {
	var errs []string

	for _, constraint := range constraints {
		key, complete := constraintKey(constraint.Columns, row)
		if !complete {
			continue
		}

		for _, existing := range accumulated {
			existingKey, ok := constraintKey(constraint.Columns, existing)
			if !ok || existingKey != key {
				continue
			}
			parts := make([]string, len(constraint.Columns))
			for i, c := range constraint.Columns {
				parts[i] = fmt.Sprintf("%s=%s", c, row[c])
			}
			errs = append(errs, fmt.Sprintf("unique constraint '%s' violated: %s", constraint.Name, strings.Join(parts, ", ")))
			break
		}
	}
	return errs
}

// constraintKey builds the folded key for a constraint's columns, reporting
// false when any column is blank.
func constraintKey(columns []string, row map[string]string) (string, bool) {
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		v := strings.ToUpper(strings.TrimSpace(row[col]))
		if v == "" {
			return "", false
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, "\x1f"), true
}

// CheckExclusion enforces an exactly-one-of rule: precisely one of the two
// named columns must be populated.
func CheckExclusion(rule *rules.ExclusionRule, row map[string]string) string {
	if rule == nil {
		return ""
	}
	hasA := strings.TrimSpace(row[rule.FieldA]) != ""
	hasB := strings.TrimSpace(row[rule.FieldB]) != ""
	switch {
	case hasA && hasB:
		return fmt.Sprintf("%s must have %s or %s, not both", rule.Entity, rule.FieldA, rule.FieldB)
	case !hasA && !hasB:
		return fmt.Sprintf("%s must have either %s or %s", rule.Entity, rule.FieldA, rule.FieldB)
	}
	return ""
}

// CheckRequired verifies the entity's key field carries a value. Required
// fields are currently limited to the declared key field.
func CheckRequired(info *schema.EntityInfo, row map[string]string) []string {
	var errs []string
	for _, f := range info.Fields {
		if !f.Key {
			continue
		}
		if strings.TrimSpace(row[f.Name]) == "" {
			errs = append(errs, fmt.Sprintf("required key field '%s' is missing", f.Name))
		}
	}
	return errs
}
