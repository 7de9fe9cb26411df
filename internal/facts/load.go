package facts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/DeusData/contractcheck/internal/discover"
)

// ErrNoRepo is returned when a facts file names no repository and none can be
// derived from its file name.
var ErrNoRepo = errors.New("facts file has no repo name")

// Decode parses facts data in the given format. fallbackRepo is used when the
// document does not name its repository.
func Decode(data []byte, format discover.Format, fallbackRepo string) (*RepoFacts, error) {
	var rf RepoFacts
	switch format {
	case discover.FormatYAML:
		if err := yaml.Unmarshal(data, &rf); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &rf); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	}
	if rf.Repo == "" {
		rf.Repo = fallbackRepo
	}
	if rf.Repo == "" {
		return nil, ErrNoRepo
	}
	for i := range rf.Facts {
		rf.Facts[i].Kind = Kind(strings.ToLower(strings.TrimSpace(string(rf.Facts[i].Kind))))
	}
	return &rf, nil
}

// LoadFile reads a single facts file. The format is chosen by file suffix.
func LoadFile(path string) (*RepoFacts, error) {
	format, ok := discover.FormatFor(filepath.Base(path))
	if !ok {
		format = discover.FormatJSON
		if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
			format = discover.FormatYAML
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read facts: %w", err)
	}
	rf, err := Decode(data, format, RepoFromFileName(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rf, nil
}

// RepoFromFileName derives a repo name from "<repo>.facts.<ext>".
func RepoFromFileName(path string) string {
	name := filepath.Base(path)
	if i := strings.Index(strings.ToLower(name), ".facts."); i >= 0 {
		return name[:i]
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// LoadDir discovers every facts file under dir and loads them concurrently.
// The returned snapshot is complete: it is only built after every file has
// been read, in discovery order.
func LoadDir(ctx context.Context, dir string, opts *discover.Options) (*Snapshot, error) {
	files, err := discover.Discover(ctx, dir, opts)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	slog.Info("facts.discover", "dir", dir, "files", len(files))

	results := make([]*RepoFacts, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range files {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			rf, loadErr := LoadFile(f.Path)
			if loadErr != nil {
				return loadErr
			}
			results[i] = rf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	repos := make([]RepoFacts, 0, len(results))
	for _, rf := range results {
		repos = append(repos, *rf)
	}
	snap := NewSnapshot(repos...)
	slog.Info("facts.loaded", "repos", len(snap.Repos))
	return snap, nil
}
