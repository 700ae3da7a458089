// Package history keeps the append-only run log: one JSON line per pipeline
// run, recording what was staged or committed and with what outcome. The log
// is the operator's answer to "what did the last import do".
package history

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Action is the kind of pipeline run being recorded.
type Action string

const (
	ActionBuildSchema   Action = "build_schema"
	ActionStage         Action = "stage"
	ActionCommit        Action = "commit"
	ActionCommitPartial Action = "commit_partial"
	ActionDiscard       Action = "discard"
)

// Entry is one recorded pipeline run.
type Entry struct {
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	Passes    int       `json:"passes,omitempty"`
	Staged    int       `json:"staged,omitempty"`
	Errors    int       `json:"errors,omitempty"`
	Appended  int       `json:"appended,omitempty"`
	Entities  []string  `json:"entities,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Recorder appends entries to a JSON-lines log file.
type Recorder struct {
	path string
	now  func() time.Time
}

// NewRecorder creates a recorder writing to the given log file. Parent
// directories are created on first write.
func NewRecorder(path string) *Recorder {
	return &Recorder{path: path, now: time.Now}
}

// Record appends one entry, assigning its ID and timestamp.
func (r *Recorder) Record(e Entry) error {
	e.ID = uuid.NewString()
	e.CreatedAt = r.now().UTC()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first. A missing log file means
// no runs have been recorded yet.
func (r *Recorder) List(limit int) ([]Entry, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			// A torn trailing line from an interrupted run is not worth
			// failing the listing over.
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history log: %w", err)
	}

	// Newest first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
