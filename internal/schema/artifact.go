package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// CSVInfo describes the persisted CSV file backing an entity at build time.
type CSVInfo struct {
	File    string   `json:"file"`
	Columns []string `json:"columns"`
}

// EntityInfo is the per-entity section of the built schema artifact.
type EntityInfo struct {
	Fields            []Field            `json:"fields"`
	Associations      []Association      `json:"associations"`
	UniqueConstraints []UniqueConstraint `json:"uniqueConstraints"`
	Notes             []string           `json:"notes"`
	CSV               *CSVInfo           `json:"csv"`
	MissingInCSV      []string           `json:"missingInCsv"`
	ExtraInCSV        []string           `json:"extraInCsv"`
	IDField           string             `json:"idField"`
	UUIDRequired      bool               `json:"uuidRequired"`
}

// Columns returns the persisted column set for the entity, falling back to
// the declared field names when no CSV file existed at build time.
func (e *EntityInfo) Columns() []string {
	if e.CSV != nil && len(e.CSV.Columns) > 0 {
		return e.CSV.Columns
	}
	cols := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		cols[i] = f.Name
	}
	return cols
}

// FieldType returns the declared type of the named field, or "" if unknown.
func (e *EntityInfo) FieldType(name string) string {
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Type
		}
	}
	return ""
}

// Artifact is the built schema document consumed by staging and commit.
// It must be regenerated whenever the declarative schema or the persisted
// CSV headers change.
type Artifact struct {
	Enums          map[string][]string    `json:"enums"`
	Entities       map[string]*EntityInfo `json:"entities"`
	Dependencies   map[string][]string    `json:"dependencies"`
	IngestionOrder []string               `json:"ingestionOrder"`
}

// Entity returns the artifact entry for an entity, or nil if unknown.
func (a *Artifact) Entity(name string) *EntityInfo {
	return a.Entities[name]
}

// Build assembles the artifact from a parsed definition and the introspected
// persisted CSV headers (entity name -> file + columns).
func Build(def *Definition, csvs map[string]*CSVInfo) *Artifact {
	art := &Artifact{
		Enums:          def.Enums,
		Entities:       make(map[string]*EntityInfo, len(def.Entities)),
		Dependencies:   BuildDependencies(def),
		IngestionOrder: nil,
	}
	art.IngestionOrder = TopoSort(art.Dependencies)

	names := make([]string, 0, len(def.Entities))
	for name := range def.Entities {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ent := def.Entities[name]
		info := &EntityInfo{
			Fields:            ent.Fields,
			Associations:      ent.Associations,
			UniqueConstraints: ent.UniqueConstraints,
			Notes:             ent.Notes,
			CSV:               csvs[name],
			IDField:           ent.IDField(),
		}
		for _, f := range ent.Fields {
			if f.Key && len(f.Type) >= 4 && f.Type[:4] == "UUID" {
				info.UUIDRequired = true
			}
		}

		var csvCols []string
		if info.CSV != nil {
			csvCols = info.CSV.Columns
		}
		for _, f := range ent.Fields {
			if !contains(csvCols, f.Name) {
				info.MissingInCSV = append(info.MissingInCSV, f.Name)
			}
		}
		schemaCols := make([]string, len(ent.Fields))
		for i, f := range ent.Fields {
			schemaCols[i] = f.Name
		}
		for _, c := range csvCols {
			if !contains(schemaCols, c) {
				info.ExtraInCSV = append(info.ExtraInCSV, c)
			}
		}

		art.Entities[name] = info
	}
	return art
}

// Save writes the artifact as indented JSON, creating parent directories.
func (a *Artifact) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create build dir: %w", err)
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write schema artifact: %w", err)
	}
	return nil
}

// LoadArtifact reads a previously built schema artifact.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema artifact: %w", err)
	}
	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("parse schema artifact %s: %w", path, err)
	}
	return &art, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
