// internal/storage/archive/archiver.go
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Archiver persists the artifacts of a completed backtest run through a
// Storage backend. Each run gets its own directory:
//
//	run_<id>/run.json     - configuration and final status
//	run_<id>/ledger.json  - closed-trade ledger
//	run_<id>/equity.json  - equity curve time series
type Archiver struct {
	store Storage
}

// NewArchiver creates an archiver on top of the given backend.
func NewArchiver(store Storage) *Archiver {
	return &Archiver{store: store}
}

func runDir(runID string) string {
	return "run_" + runID
}

// ArchiveRun writes the run record, ledger, and equity curve as JSON.
func (a *Archiver) ArchiveRun(ctx context.Context, runID string, run, ledger, equity any) error {
	artifacts := []struct {
		name string
		v    any
	}{
		{"run.json", run},
		{"ledger.json", ledger},
		{"equity.json", equity},
	}

	for _, art := range artifacts {
		data, err := json.MarshalIndent(art.v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", art.name, err)
		}
		key := runDir(runID) + "/" + art.name
		if err := a.store.Put(ctx, key, data); err != nil {
			return fmt.Errorf("writing %s: %w", key, err)
		}
	}
	return nil
}

// ReadArtifact loads one artifact (for example "ledger.json") into out.
func (a *Archiver) ReadArtifact(ctx context.Context, runID, name string, out any) error {
	data, err := a.store.Get(ctx, runDir(runID)+"/"+name)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// ListRuns returns the run ids with archived artifacts.
func (a *Archiver) ListRuns(ctx context.Context) ([]string, error) {
	paths, err := a.store.Keys(ctx, "")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var runs []string
	for _, p := range paths {
		dir, _, ok := strings.Cut(p, "/")
		if !ok || !strings.HasPrefix(dir, "run_") {
			continue
		}
		id := strings.TrimPrefix(dir, "run_")
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		runs = append(runs, id)
	}
	return runs, nil
}

// DeleteRun removes every artifact archived for the run.
func (a *Archiver) DeleteRun(ctx context.Context, runID string) error {
	paths, err := a.store.Keys(ctx, runDir(runID))
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := a.store.Remove(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
