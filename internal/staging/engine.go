package staging

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cctech/drsimport/internal/csvdata"
	"github.com/cctech/drsimport/internal/logging"
	"github.com/cctech/drsimport/internal/mapping"
	"github.com/cctech/drsimport/internal/resolve"
	"github.com/cctech/drsimport/internal/rules"
	"github.com/cctech/drsimport/internal/schema"
	"github.com/cctech/drsimport/internal/sheet"
	"github.com/cctech/drsimport/internal/transform"
)

// DefaultMaxPasses bounds the convergence loop, counting the cold pass.
const DefaultMaxPasses = 5

// Engine orchestrates multi-pass staging over all configured entities.
type Engine struct {
	art        *schema.Artifact
	cfg        *mapping.Config
	rules      *rules.Table
	workbook   sheet.Workbook
	dataDir    string
	stagingDir string

	// MaxPasses bounds the total number of staging passes.
	MaxPasses int
}

// New creates a staging engine. Staged files are written under stagingDir,
// one per entity, overwritten wholesale on every (re-)staging.
func New(art *schema.Artifact, cfg *mapping.Config, ruleTable *rules.Table, wb sheet.Workbook, dataDir, stagingDir string) *Engine {
	return &Engine{
		art:        art,
		cfg:        cfg,
		rules:      ruleTable,
		workbook:   wb,
		dataDir:    dataDir,
		stagingDir: stagingDir,
		MaxPasses:  DefaultMaxPasses,
	}
}

// StageAll stages every configured entity in ingestion order and then
// iterates warm passes over the entities that still have foreign-key errors,
// letting their lookups see rows staged earlier in this same run. The loop
// ends on convergence, on an error-count plateau, or after MaxPasses passes.
func (e *Engine) StageAll() (*RunReport, error) {
	if err := os.MkdirAll(e.stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	if cycle := schema.CycleMembers(e.art.Dependencies); len(cycle) > 0 {
		slog.Warn("dependency cycle detected; staging order for these entities is best-effort",
			"entities", cycle)
	}

	byEntity := e.cfg.ByEntity()
	report := &RunReport{Results: make(map[string]*EntityResult), Passes: 1}

	// Cold pass: foreign-key lookups see only persisted data.
	ctx := resolve.NewContext(e.art, e.dataDir)
	tr := transform.New(e.art, e.rules, resolve.NewResolver(ctx))

	passLog := logging.WithFields("pass", 1, "mode", "cold")
	passLog.Info("staging pass")
	for _, entity := range e.art.IngestionOrder {
		cfg, ok := byEntity[entity]
		if !ok {
			continue
		}
		res, err := e.stageEntity(tr, entity, cfg)
		if err != nil {
			return nil, err
		}
		report.Order = append(report.Order, entity)
		report.Results[entity] = res
		passLog.Info("staged entity", "entity", entity, "valid", res.ValidCount, "errors", res.ErrorCount)
	}

	// Warm passes: re-stage only the entities with FK failures, with the
	// resolution context rebuilt to include this run's staged rows.
	for pass := 2; pass <= e.MaxPasses; pass++ {
		var retry []string
		for _, entity := range report.Order {
			if report.Results[entity].HasFKErrors() {
				retry = append(retry, entity)
			}
		}
		if len(retry) == 0 {
			break
		}

		passLog := logging.WithFields("pass", pass, "mode", "warm")
		passLog.Info("staging pass", "entities", len(retry))
		report.Passes = pass

		ctx := resolve.NewStagedContext(e.art, e.dataDir, e.stagingDir)
		tr := transform.New(e.art, e.rules, resolve.NewResolver(ctx))

		before := 0
		for _, entity := range retry {
			before += report.Results[entity].ErrorCount
		}

		for _, entity := range retry {
			res, err := e.stageEntity(tr, entity, byEntity[entity])
			if err != nil {
				return nil, err
			}
			report.Results[entity] = res
			passLog.Info("re-staged entity", "entity", entity, "valid", res.ValidCount, "errors", res.ErrorCount)
			// Re-staged rows must be visible to entities later in this pass.
			ctx.Invalidate()
		}

		after := 0
		for _, entity := range retry {
			after += report.Results[entity].ErrorCount
		}
		if after >= before {
			slog.Info("no improvement, stopping convergence", "pass", pass, "errors", after)
			break
		}
	}

	return report, nil
}

// stageEntity reads one entity's source rows, transforms them, and replaces
// the entity's staged file.
func (e *Engine) stageEntity(tr *transform.Transformer, entity string, cfg *mapping.Sheet) (*EntityResult, error) {
	res := &EntityResult{Entity: entity, Sheet: cfg.Sheet}

	sh, err := e.workbook.ReadSheet(cfg.Sheet, cfg.HeaderRows)
	if err != nil {
		res.Note = fmt.Sprintf("sheet unavailable: %v", err)
		slog.Warn("skipping entity, sheet unavailable", "entity", entity, "sheet", cfg.Sheet, "error", err)
		return res, nil
	}
	if len(sh.Rows) == 0 {
		res.Note = "no data rows found in sheet"
		return res, nil
	}

	out, err := tr.TransformEntity(entity, cfg, e.dataDir, sh.Rows)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", entity, err)
	}

	res.ValidCount = len(out.Valid)
	res.ErrorCount = out.HardErrorCount()
	res.Errors = out.Errors

	stagedPath := filepath.Join(e.stagingDir, entity+".csv")
	if len(out.Valid) > 0 {
		columns := e.art.Entity(entity).Columns()
		if err := csvdata.WriteTable(stagedPath, columns, out.Valid); err != nil {
			return nil, fmt.Errorf("write staged file for %s: %w", entity, err)
		}
		res.StagedFile = stagedPath
	} else if err := os.Remove(stagedPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("discard stale staged file for %s: %w", entity, err)
	}

	return res, nil
}
