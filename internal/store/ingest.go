package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/DeusData/contractcheck/internal/facts"
)

// IngestResult reports what happened to one repo during Ingest.
type IngestResult struct {
	Repo    string `json:"repo"`
	Source  string `json:"source"`
	Facts   int    `json:"facts"`
	Changed bool   `json:"changed"`
}

// Ingest loads a facts file, or every facts file under a directory, and saves
// each repo. Files naming the same repo are merged before saving, so a repo is
// always replaced as a whole.
func (s *Store) Ingest(ctx context.Context, path string) ([]IngestResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	var snap *facts.Snapshot
	if info.IsDir() {
		snap, err = facts.LoadDir(ctx, path, nil)
		if err != nil {
			return nil, err
		}
	} else {
		rf, loadErr := facts.LoadFile(path)
		if loadErr != nil {
			return nil, loadErr
		}
		snap = facts.NewSnapshot(*rf)
	}

	names := snap.RepoNames()
	results := make([]IngestResult, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		rf := snap.Repo(name)
		changed, err := s.SaveRepo(rf, path)
		if err != nil {
			return results, err
		}
		results = append(results, IngestResult{
			Repo:    name,
			Source:  path,
			Facts:   len(rf.Facts),
			Changed: changed,
		})
	}
	slog.Info("store.ingest", "path", path, "repos", len(results))
	return results, nil
}
