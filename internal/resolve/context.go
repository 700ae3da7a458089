// Package resolve implements natural-key foreign-key resolution over the
// persisted CSV tables plus, during warm staging passes, the rows staged
// earlier in the same run.
package resolve

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/cctech/drsimport/internal/csvdata"
	"github.com/cctech/drsimport/internal/schema"
)

// Context is the per-run resolution view: a cache of each entity's loaded
// rows, persisted rows first, then staged rows when staged visibility is
// enabled. It is rebuilt explicitly between staging passes; the cache is
// never mutated behind the resolver's back.
type Context struct {
	art        *schema.Artifact
	dataDir    string
	stagingDir string
	cache      map[string][]map[string]string
}

// NewContext creates a cold context that sees only persisted data.
func NewContext(art *schema.Artifact, dataDir string) *Context {
	return &Context{
		art:     art,
		dataDir: dataDir,
		cache:   make(map[string][]map[string]string),
	}
}

// NewStagedContext creates a warm context that also sees rows staged under
// stagingDir, after the persisted rows of each entity.
func NewStagedContext(art *schema.Artifact, dataDir, stagingDir string) *Context {
	c := NewContext(art, dataDir)
	c.stagingDir = stagingDir
	return c
}

// SeesStaged reports whether staged rows are visible through this context.
func (c *Context) SeesStaged() bool { return c.stagingDir != "" }

// Invalidate discards all cached rows. Call when the underlying staged
// files have been rewritten within the same pass.
func (c *Context) Invalidate() {
	c.cache = make(map[string][]map[string]string)
}

// Rows returns the loaded rows for an entity: persisted first, staged after.
// Results are cached for the lifetime of the context. Unknown entities
// resolve to no rows.
func (c *Context) Rows(entity string) ([]map[string]string, error) {
	if rows, ok := c.cache[entity]; ok {
		return rows, nil
	}
	if c.art.Entity(entity) == nil {
		c.cache[entity] = nil
		return nil, nil
	}

	_, rows, err := csvdata.ReadTable(csvdata.FilePath(c.dataDir, entity))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", entity, err)
	}

	if c.stagingDir != "" {
		stagedPath := filepath.Join(c.stagingDir, entity+".csv")
		_, staged, err := csvdata.ReadTable(stagedPath)
		if err != nil {
			// Staged files are scratch output of this same run; a read
			// failure is surfaced but does not abort resolution.
			slog.Warn("could not load staged rows", "entity", entity, "error", err)
		} else {
			rows = append(rows, staged...)
		}
	}

	c.cache[entity] = rows
	return rows, nil
}
