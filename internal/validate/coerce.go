// Package validate implements the pure row-level checks: type coercion,
// enum membership, unique constraints, exactly-one-of rules, and required
// key fields. Every function is stateless over its inputs.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// uuidRegex matches the canonical 8-4-4-4-12 hexadecimal identifier format.
var uuidRegex = regexp.MustCompile(`^(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// timestampLayouts are the fallback formats tried after ISO-8601, in order.
var timestampLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
}

// Coercion is the outcome of coercing one cell: either a coerced value, or
// a type error with the raw value preserved so the caller can still report
// what was seen.
type Coercion struct {
	value string
	err   string
}

// Coerced builds a successful coercion result.
func Coerced(v string) Coercion { return Coercion{value: v} }

// TypeError builds a failed coercion that keeps the raw value.
func TypeError(raw, reason string) Coercion { return Coercion{value: raw, err: reason} }

// OK reports whether the coercion succeeded.
func (c Coercion) OK() bool { return c.err == "" }

// Value returns the coerced value on success, the raw value on failure.
func (c Coercion) Value() string { return c.value }

// Reason returns the type error message, or "" on success.
func (c Coercion) Reason() string { return c.err }

// CoerceType coerces a raw cell value to the declared field type.
// Blank input is an explicit null for every type and never errors;
// required-ness is enforced separately.
func CoerceType(field, value, fieldType string) Coercion {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Coerced("")
	}

	typeUpper := strings.ToUpper(fieldType)
	switch {
	case strings.HasPrefix(typeUpper, "UUID"):
		// Identifiers pass through with their original casing so explicitly
		// supplied values land in the CSV exactly as typed.
		if uuidRegex.MatchString(trimmed) {
			return Coerced(trimmed)
		}
		return TypeError(trimmed, fmt.Sprintf("invalid UUID format for %s", field))

	case strings.Contains(typeUpper, "STRING"):
		return Coerced(trimmed)

	case typeUpper == "INTEGER" || typeUpper == "INTEGER64":
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return TypeError(trimmed, fmt.Sprintf("invalid integer value '%s' for %s", trimmed, field))
		}
		return Coerced(strconv.FormatInt(n, 10))

	case strings.Contains(typeUpper, "DECIMAL") || strings.Contains(typeUpper, "FLOAT"):
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return TypeError(trimmed, fmt.Sprintf("invalid decimal value '%s' for %s", trimmed, field))
		}
		return Coerced(strconv.FormatFloat(f, 'f', -1, 64))

	case strings.Contains(typeUpper, "BOOLEAN"):
		switch strings.ToLower(trimmed) {
		case "true", "1", "yes", "t", "y":
			return Coerced("true")
		case "false", "0", "no", "f", "n":
			return Coerced("false")
		default:
			return TypeError(trimmed, fmt.Sprintf("invalid boolean value '%s' for %s", trimmed, field))
		}

	case strings.Contains(typeUpper, "TIMESTAMP"):
		return coerceTimestamp(field, trimmed)

	default:
		// Unknown types coerce to trimmed text with no further validation.
		return Coerced(trimmed)
	}
}

func coerceTimestamp(field, value string) Coercion {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return Coerced(t.Format("2006-01-02T15:04:05"))
	}
	if t, err := time.Parse("2006-01-02T15:04:05", value); err == nil {
		return Coerced(t.Format("2006-01-02T15:04:05"))
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return Coerced(t.Format("2006-01-02T15:04:05"))
		}
	}
	return TypeError(value, fmt.Sprintf("cannot parse timestamp '%s' for %s", value, field))
}
