// Package mapping loads the spreadsheet-to-entity mapping configuration:
// which sheet feeds which entity, how source columns map onto CSV columns,
// how the identifier column is handled, and how foreign keys are looked up.
package mapping

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultHeaderRows is the header depth assumed for sheets that do not
// declare one when the caller supplies no default of its own.
const DefaultHeaderRows = 3

// UUIDPolicy controls how the identifier column is resolved.
type UUIDPolicy int

const (
	// Preserve keeps whatever identifier came through column mapping.
	Preserve UUIDPolicy = iota
	// GenerateIfBlank assigns a fresh v4 identifier when the column is blank.
	GenerateIfBlank
)

// String implements fmt.Stringer.
func (p UUIDPolicy) String() string {
	if p == GenerateIfBlank {
		return "generate_if_blank"
	}
	return "preserve"
}

// UnmarshalYAML implements yaml.Unmarshaler for UUIDPolicy.
func (p *UUIDPolicy) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "preserve":
		*p = Preserve
	case "generate_if_blank":
		*p = GenerateIfBlank
	default:
		return fmt.Errorf("unknown uuidPolicy %q (want preserve or generate_if_blank)", s)
	}
	return nil
}

// MatchRule pairs a target entity field with the source column supplying
// its lookup value.
type MatchRule struct {
	Field string `yaml:"field"`
	From  string `yaml:"from"`
}

// Lookup declares a foreign-key resolution for one *_ID column.
type Lookup struct {
	Entity   string      `yaml:"entity"`
	Match    []MatchRule `yaml:"match"`
	Optional bool        `yaml:"optional"`
}

// IDConfig declares the identifier column and its UUID policy.
type IDConfig struct {
	Column     string     `yaml:"column"`
	UUIDPolicy UUIDPolicy `yaml:"uuidPolicy"`
}

// Sheet is the per-entity mapping declaration.
type Sheet struct {
	Entity     string            `yaml:"entity"`
	Sheet      string            `yaml:"sheet"`
	CSVFile    string            `yaml:"csvFile"`
	HeaderRows int               `yaml:"headerRows"`
	ID         IDConfig          `yaml:"id"`
	ColumnMap  map[string]string `yaml:"columnMap"`
	Lookups    map[string]Lookup `yaml:"lookups"`
	Defaults   map[string]string `yaml:"defaults"`
}

// Config is the full mapping configuration document.
type Config struct {
	Version  int     `yaml:"version"`
	Workbook string  `yaml:"workbook"`
	Mode     string  `yaml:"mode"`
	Sheets   []Sheet `yaml:"sheets"`
}

// Load reads and validates a mapping configuration file. Sheets that do
// not declare headerRows fall back to defaultHeaderRows, or to
// DefaultHeaderRows when that is zero or negative.
func Load(path string, defaultHeaderRows int) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse mapping config %s: %w", path, err)
	}
	if err := cfg.Validate(defaultHeaderRows); err != nil {
		return nil, fmt.Errorf("mapping config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks structural requirements of the configuration and fills
// in per-sheet defaults.
func (c *Config) Validate(defaultHeaderRows int) error {
	if defaultHeaderRows <= 0 {
		defaultHeaderRows = DefaultHeaderRows
	}
	seen := make(map[string]bool, len(c.Sheets))
	for i := range c.Sheets {
		s := &c.Sheets[i]
		if s.Entity == "" {
			return fmt.Errorf("sheets[%d]: entity is required", i)
		}
		if s.Sheet == "" {
			return fmt.Errorf("sheet for entity %s: sheet name is required", s.Entity)
		}
		if seen[s.Entity] {
			return fmt.Errorf("entity %s configured more than once", s.Entity)
		}
		seen[s.Entity] = true
		if s.ID.Column == "" {
			s.ID.Column = "ID"
		}
		if s.HeaderRows <= 0 {
			s.HeaderRows = defaultHeaderRows
		}
		for fk, lookup := range s.Lookups {
			if lookup.Entity == "" {
				return fmt.Errorf("entity %s: lookup %s has no target entity", s.Entity, fk)
			}
		}
	}
	return nil
}

// ByEntity indexes the sheet configurations by entity name.
func (c *Config) ByEntity() map[string]*Sheet {
	out := make(map[string]*Sheet, len(c.Sheets))
	for i := range c.Sheets {
		out[c.Sheets[i].Entity] = &c.Sheets[i]
	}
	return out
}
