// Package config provides centralized configuration for the import pipeline.
// It loads settings from environment variables with sensible defaults and
// validates everything on startup to fail fast on misconfiguration.
package config

// Config holds all pipeline configuration.
// All settings can be configured via environment variables.
type Config struct {
	Paths   PathsConfig
	Schema  SchemaConfig
	Staging StagingConfig
	Logging LoggingConfig
}

// PathsConfig holds the data directories of one pipeline run.
type PathsConfig struct {
	// DataDir holds the persisted per-entity CSV files (default: data)
	DataDir string `env:"DRS_DATA_DIR" default:"data"`

	// StagingDir receives the per-entity staged files (default: staging)
	StagingDir string `env:"DRS_STAGING_DIR" default:"staging"`

	// BackupDir receives timestamped pre-commit backups (default: backups)
	BackupDir string `env:"DRS_BACKUP_DIR" default:"backups"`

	// WorkbookDir is the directory of exported source sheets (default: workbook)
	WorkbookDir string `env:"DRS_WORKBOOK_DIR" envAlt:"DRS_WORKBOOK" default:"workbook"`

	// HistoryFile is the append-only run log (default: build/history.log)
	HistoryFile string `env:"DRS_HISTORY_FILE" default:"build/history.log"`
}

// SchemaConfig holds the schema and mapping input locations.
type SchemaConfig struct {
	// DefinitionPath is the declarative schema text (default: schema.cds)
	DefinitionPath string `env:"DRS_SCHEMA_FILE" default:"schema.cds"`

	// ArtifactPath is the built schema JSON document (default: build/schema.json)
	ArtifactPath string `env:"DRS_SCHEMA_ARTIFACT" default:"build/schema.json"`

	// MappingPath is the YAML mapping configuration (default: config/mapping.yaml)
	MappingPath string `env:"DRS_MAPPING_FILE" default:"config/mapping.yaml"`

	// RulesPath is the optional YAML rule-table overlay (default: config/rules.yaml)
	RulesPath string `env:"DRS_RULES_FILE" default:"config/rules.yaml"`
}

// StagingConfig holds staging engine settings.
type StagingConfig struct {
	// MaxPasses bounds the convergence loop, counting the cold pass (default: 5)
	MaxPasses int `env:"DRS_MAX_PASSES" default:"5"`

	// HeaderRows is the default header-row count for sheets that do not
	// declare their own (default: 3)
	HeaderRows int `env:"DRS_HEADER_ROWS" default:"3"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"DRS_LOG_LEVEL" envAlt:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"DRS_LOG_FORMAT" envAlt:"LOG_FORMAT" default:"text"`
}
