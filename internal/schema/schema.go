// Package schema builds the in-memory schema model for the import pipeline.
//
// The declarative schema text defines enumerations and entities; this package
// parses it, derives the dependency graph between entities, and computes a
// deterministic ingestion order. The resulting artifact is the sole schema
// input for staging and commit.
package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrSchemaParse is wrapped by all parse failures. A parse failure is fatal
// and aborts the pipeline before any data file is touched.
var ErrSchemaParse = errors.New("schema parse error")

// Field is a single declared column of an entity.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Key  bool   `json:"key"`
}

// Association is a named reference from one entity to another.
type Association struct {
	Name   string `json:"name"`
	Target string `json:"target"`
}

// UniqueConstraint names an ordered set of columns that must be unique
// together within an entity.
type UniqueConstraint struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// Entity is the parsed form of one entity block.
type Entity struct {
	Name              string             `json:"-"`
	Fields            []Field            `json:"fields"`
	Associations      []Association      `json:"associations"`
	UniqueConstraints []UniqueConstraint `json:"uniqueConstraints"`
	Notes             []string           `json:"notes"`
}

// IDField returns the name of the entity's key field, or "" if none is declared.
func (e *Entity) IDField() string {
	for _, f := range e.Fields {
		if f.Key {
			return f.Name
		}
	}
	return ""
}

// Definition is the parse result for one schema text.
type Definition struct {
	Enums    map[string][]string
	Entities map[string]*Entity
}

var (
	enumRe    = regexp.MustCompile(`(?s)type\s+([A-Za-z0-9_]+)\s*:\s*String\s*enum\s*\{([^}]*)\}`)
	entityRe  = regexp.MustCompile(`(?s)entity\s+([A-Za-z0-9_]+)\s*\{(.*?)\}`)
	uniqueRe  = regexp.MustCompile(`(?s)@assert\.unique\s*:\s*\{([^}]*)\}`)
	fieldRe   = regexp.MustCompile(`(?m)^\s*(key\s+)?([A-Z0-9_]+)\s*:\s*([A-Za-z0-9_() ,]+?);`)
	assocRe   = regexp.MustCompile(`(?m)^\s*([A-Z0-9_]+)\s*:\s*Association\s+to\s+([A-Z0-9_]+)`)
	noteRe    = regexp.MustCompile(`(?m)^\s*//\s*(.*)$`)
	blockRe   = regexp.MustCompile(`(?s)/\*.*?\*/`)
	uniquePRe = regexp.MustCompile(`\[(.*?)\]`)
)

// Parse parses the declarative schema text into enums and entities.
// Line comments inside an entity body become free-text notes on that entity;
// block comments are stripped before parsing.
func Parse(text string) (*Definition, error) {
	clean := blockRe.ReplaceAllString(text, "")

	def := &Definition{
		Enums:    make(map[string][]string),
		Entities: make(map[string]*Entity),
	}

	for _, m := range enumRe.FindAllStringSubmatch(clean, -1) {
		name := m[1]
		var values []string
		for _, v := range strings.Split(strings.ReplaceAll(m[2], "\n", " "), ";") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: enum %s declares no values", ErrSchemaParse, name)
		}
		def.Enums[name] = values
	}

	// Unique annotations attach to the next entity block that follows them.
	type annotation struct {
		end         int
		constraints []UniqueConstraint
	}
	var annotations []annotation
	for _, idx := range uniqueRe.FindAllStringSubmatchIndex(clean, -1) {
		body := clean[idx[2]:idx[3]]
		annotations = append(annotations, annotation{
			end:         idx[1],
			constraints: parseUniqueBody(body),
		})
	}

	nextAnnotation := 0
	for _, idx := range entityRe.FindAllStringSubmatchIndex(clean, -1) {
		name := clean[idx[2]:idx[3]]
		body := clean[idx[4]:idx[5]]

		ent := &Entity{Name: name}
		for nextAnnotation < len(annotations) && annotations[nextAnnotation].end <= idx[0] {
			ent.UniqueConstraints = append(ent.UniqueConstraints, annotations[nextAnnotation].constraints...)
			nextAnnotation++
		}

		for _, nm := range noteRe.FindAllStringSubmatch(body, -1) {
			ent.Notes = append(ent.Notes, strings.TrimSpace(nm[1]))
		}

		keyCount := 0
		for _, fm := range fieldRe.FindAllStringSubmatch(body, -1) {
			ftype := strings.TrimSpace(fm[3])
			// Associations are matched separately.
			if strings.Contains(ftype, "Association") {
				continue
			}
			isKey := strings.TrimSpace(fm[1]) != ""
			if isKey {
				keyCount++
			}
			ent.Fields = append(ent.Fields, Field{
				Name: strings.TrimSpace(fm[2]),
				Type: ftype,
				Key:  isKey,
			})
		}
		if keyCount > 1 {
			return nil, fmt.Errorf("%w: entity %s declares %d key fields, at most one allowed", ErrSchemaParse, name, keyCount)
		}

		for _, am := range assocRe.FindAllStringSubmatch(body, -1) {
			ent.Associations = append(ent.Associations, Association{
				Name:   strings.TrimSpace(am[1]),
				Target: strings.TrimSpace(am[2]),
			})
		}

		def.Entities[name] = ent
	}

	if err := checkUnparsedBlocks(clean, def); err != nil {
		return nil, err
	}
	return def, nil
}

// checkUnparsedBlocks catches malformed entity or enum blocks: declarations
// whose keyword appears in the text but which the grammar did not capture.
func checkUnparsedBlocks(clean string, def *Definition) error {
	declRe := regexp.MustCompile(`(?m)^\s*entity\s+([A-Za-z0-9_]+)`)
	for _, m := range declRe.FindAllStringSubmatch(clean, -1) {
		if _, ok := def.Entities[m[1]]; !ok {
			return fmt.Errorf("%w: malformed entity block %q", ErrSchemaParse, m[1])
		}
	}
	enumDeclRe := regexp.MustCompile(`(?m)^\s*type\s+([A-Za-z0-9_]+)\s*:\s*String\s*enum`)
	for _, m := range enumDeclRe.FindAllStringSubmatch(clean, -1) {
		if _, ok := def.Enums[m[1]]; !ok {
			return fmt.Errorf("%w: malformed enum block %q", ErrSchemaParse, m[1])
		}
	}
	return nil
}

// parseUniqueBody parses "name: [COL1, COL2], other: [COL]" into constraints.
func parseUniqueBody(body string) []UniqueConstraint {
	var constraints []UniqueConstraint
	// Rejoin comma-split tokens until each pair's bracket list is closed.
	var pairs []string
	acc := ""
	for _, p := range strings.Split(body, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if acc != "" {
			acc += "," + p
		} else {
			acc = p
		}
		if strings.Contains(p, "]") {
			pairs = append(pairs, acc)
			acc = ""
		}
	}
	if acc != "" {
		pairs = append(pairs, acc)
	}

	for _, pair := range pairs {
		name, cols, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		m := uniquePRe.FindStringSubmatch(strings.TrimSpace(cols))
		if m == nil {
			continue
		}
		var colList []string
		for _, c := range strings.Split(m[1], ",") {
			if c = strings.TrimSpace(c); c != "" {
				colList = append(colList, c)
			}
		}
		constraints = append(constraints, UniqueConstraint{
			Name:    strings.TrimSpace(name),
			Columns: colList,
		})
	}
	return constraints
}
