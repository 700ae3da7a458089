// Package staging drives the import pipeline: it reads source rows per
// entity in dependency order, transforms and validates them across bounded
// convergence passes, and writes one staged CSV per entity.
package staging

import (
	"github.com/cctech/drsimport/internal/transform"
)

// EntityResult is the staging outcome for one entity.
type EntityResult struct {
	Entity     string                  `json:"entity"`
	Sheet      string                  `json:"sheet"`
	ValidCount int                     `json:"validCount"`
	ErrorCount int                     `json:"errorCount"`
	StagedFile string                  `json:"stagedFile,omitempty"`
	Errors     []transform.ErrorRecord `json:"errors,omitempty"`
	Note       string                  `json:"note,omitempty"`
}

// HasFKErrors reports whether any hard error of this entity is a
// foreign-key resolution failure.
func (r *EntityResult) HasFKErrors() bool {
	for _, rec := range r.Errors {
		if rec.Info {
			continue
		}
		for _, msg := range rec.Errors {
			if transform.IsFKError(msg) {
				return true
			}
		}
	}
	return false
}

// RunReport aggregates one staging run. Order preserves the ingestion order
// of the entities that were actually staged.
type RunReport struct {
	Order   []string                 `json:"order"`
	Results map[string]*EntityResult `json:"results"`
	Passes  int                      `json:"passes"`
}

// TotalValid sums staged row counts across entities.
func (r *RunReport) TotalValid() int {
	n := 0
	for _, res := range r.Results {
		n += res.ValidCount
	}
	return n
}

// TotalErrors sums hard validation errors across entities.
func (r *RunReport) TotalErrors() int {
	n := 0
	for _, res := range r.Results {
		n += res.ErrorCount
	}
	return n
}

// Clean returns, in ingestion order, the entities with staged rows and zero
// errors. These are the entities a partial commit may append.
func (r *RunReport) Clean() []*EntityResult {
	var out []*EntityResult
	for _, entity := range r.Order {
		res := r.Results[entity]
		if res.ErrorCount == 0 && res.ValidCount > 0 {
			out = append(out, res)
		}
	}
	return out
}

// WithErrors returns, in ingestion order, the entities with at least one
// hard validation error.
func (r *RunReport) WithErrors() []*EntityResult {
	var out []*EntityResult
	for _, entity := range r.Order {
		if res := r.Results[entity]; res.ErrorCount > 0 {
			out = append(out, res)
		}
	}
	return out
}
