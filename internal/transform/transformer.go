// Package transform turns source spreadsheet rows into validated,
// CSV-ready staged rows for one entity at a time.
package transform

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/cctech/drsimport/internal/mapping"
	"github.com/cctech/drsimport/internal/resolve"
	"github.com/cctech/drsimport/internal/rules"
	"github.com/cctech/drsimport/internal/schema"
	"github.com/cctech/drsimport/internal/sheet"
	"github.com/cctech/drsimport/internal/validate"
)

// fkErrorPrefix marks foreign-key resolution failures in validation errors.
// The staging engine keys its re-stage decision off this marker.
const fkErrorPrefix = "could not resolve foreign key"

// IsFKError reports whether a validation error records a foreign-key
// resolution failure.
func IsFKError(msg string) bool {
	return strings.Contains(msg, fkErrorPrefix)
}

// ErrorRecord captures all violations found for one source row.
type ErrorRecord struct {
	RowNum int       `json:"rowNum"`
	Source sheet.Row `json:"source"`
	Errors []string  `json:"errors"`
	// Info marks records kept only for traceability (policy skips), which
	// do not count as hard validation errors.
	Info bool `json:"info,omitempty"`
}

// Transformer transforms and validates rows for staging.
type Transformer struct {
	art      *schema.Artifact
	rules    *rules.Table
	resolver *resolve.Resolver
	newID    func() string
}

// New creates a transformer resolving foreign keys through the given resolver.
func New(art *schema.Artifact, ruleTable *rules.Table, resolver *resolve.Resolver) *Transformer {
	return &Transformer{
		art:      art,
		rules:    ruleTable,
		resolver: resolver,
		newID:    func() string { return uuid.NewString() },
	}
}

// TransformRow maps, defaults, identifies, resolves, and validates a single
// source row. Each step keeps going so a row reports all of its violations
// together. A row with any violation returns nil plus the violation list;
// the returned error is reserved for I/O failures while loading lookup data.
func (t *Transformer) TransformRow(entity string, cfg *mapping.Sheet, source sheet.Row, accumulated []map[string]string) (map[string]string, []string, error) {
	info := t.art.Entity(entity)
	if info == nil {
		return nil, []string{fmt.Sprintf("unknown entity %s", entity)}, nil
	}

	columns := info.Columns()
	output := make(map[string]string, len(columns))
	for _, col := range columns {
		output[col] = ""
	}

	// Column mapping: each declared mapping is applied independently.
	for sourceCol, targetCol := range cfg.ColumnMap {
		if v, ok := source[sourceCol]; ok {
			output[targetCol] = v
		}
	}

	// Defaults fill columns still blank after mapping.
	for col, def := range cfg.Defaults {
		if _, declared := output[col]; declared && strings.TrimSpace(output[col]) == "" {
			output[col] = def
		}
	}

	// Identifier policy.
	idColumn := cfg.ID.Column
	if idColumn == "" {
		idColumn = "ID"
	}
	if _, declared := output[idColumn]; declared {
		if cfg.ID.UUIDPolicy == mapping.GenerateIfBlank && strings.TrimSpace(output[idColumn]) == "" {
			output[idColumn] = t.newID()
		}
	}

	var errs []string

	// Foreign keys: resolution sees the source row overlaid with what has
	// been mapped so far, so defaults and generated values participate.
	if len(cfg.Lookups) > 0 {
		enhanced := make(map[string]string, len(source)+len(output))
		for k, v := range source {
			enhanced[k] = v
		}
		// Blank output columns must not shadow source values; every declared
		// column starts blank before mapping.
		for k, v := range output {
			if strings.TrimSpace(v) != "" {
				enhanced[k] = v
			}
		}

		resolved, err := t.resolver.ResolveAll(cfg.Lookups, enhanced)
		if err != nil {
			return nil, nil, err
		}
		for fkField, id := range resolved {
			if id != "" {
				output[fkField] = id
				continue
			}
			lookup := cfg.Lookups[fkField]
			if lookup.Optional {
				continue
			}
			if strings.TrimSpace(output[fkField]) == "" {
				errs = append(errs, fmt.Sprintf("%s '%s'", fkErrorPrefix, fkField))
			}
		}
	}

	// Type coercion and enum membership per declared field.
	for _, f := range info.Fields {
		if _, declared := output[f.Name]; !declared {
			continue
		}
		c := validate.CoerceType(f.Name, output[f.Name], f.Type)
		output[f.Name] = c.Value()
		if !c.OK() {
			errs = append(errs, c.Reason())
			continue
		}
		if allowed, isEnum := t.art.Enums[f.Type]; isEnum {
			if msg := validate.CheckEnum(f.Name, c.Value(), f.Type, allowed); msg != "" {
				errs = append(errs, msg)
			}
		}
	}

	errs = append(errs, validate.CheckUnique(info.UniqueConstraints, output, accumulated)...)

	if msg := validate.CheckExclusion(t.rules.Exclusion(entity), output); msg != "" {
		errs = append(errs, msg)
	}

	errs = append(errs, validate.CheckRequired(info, output)...)

	if len(errs) > 0 {
		return nil, errs, nil
	}
	return output, nil, nil
}
