package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/DeusData/contractcheck/internal/facts"
)

// Formula-derived batch sizes: SQLite has a 999 bind variable limit.
const (
	numFactCols    = 11
	factsBatchSize = 999 / numFactCols
	numDepCols     = 5
	depsBatchSize  = 999 / numDepCols
)

// InsertFactBatch appends facts to repo in batched multi-row INSERTs. The
// slice index is stored as seq so the original order survives a round trip.
func (s *Store) InsertFactBatch(repo string, fs []facts.Fact) error {
	for i := 0; i < len(fs); i += factsBatchSize {
		end := i + factsBatchSize
		if end > len(fs) {
			end = len(fs)
		}
		if err := s.insertFactChunk(repo, i, fs[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertFactChunk(repo string, offset int, batch []facts.Fact) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO facts (repo, seq, kind, method, path, owner, handler, url, parent, child, prefix) VALUES `)

	args := make([]any, 0, len(batch)*numFactCols)
	for i, f := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?,?,?,?,?,?,?)")
		args = append(args, repo, offset+i, string(f.Kind), f.Method, f.Path, f.Owner, f.Handler, f.URL, f.Parent, f.Child, f.Prefix)
	}
	if _, err := s.q.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("insert fact batch: %w", err)
	}
	return nil
}

// InsertDependencyBatch appends dependency records to repo.
func (s *Store) InsertDependencyBatch(repo string, deps []facts.Dependency) error {
	for i := 0; i < len(deps); i += depsBatchSize {
		end := i + depsBatchSize
		if end > len(deps) {
			end = len(deps)
		}
		var sb strings.Builder
		sb.WriteString(`INSERT INTO dependencies (repo, seq, name, version, source) VALUES `)
		args := make([]any, 0, (end-i)*numDepCols)
		for j, d := range deps[i:end] {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString("(?,?,?,?,?)")
			args = append(args, repo, i+j, d.Name, d.Version, d.SourcePath)
		}
		if _, err := s.q.Exec(sb.String(), args...); err != nil {
			return fmt.Errorf("insert dependency batch: %w", err)
		}
	}
	return nil
}

// LoadRepoFacts returns the stored facts and dependencies of one repo, in
// ingestion order.
func (s *Store) LoadRepoFacts(repo string) (*facts.RepoFacts, error) {
	rf := &facts.RepoFacts{Repo: repo}

	rows, err := s.q.Query(`SELECT kind, method, path, owner, handler, url, parent, child, prefix
		FROM facts WHERE repo=? ORDER BY seq`, repo)
	if err != nil {
		return nil, fmt.Errorf("load facts: %w", err)
	}
	for rows.Next() {
		var f facts.Fact
		var kind string
		if err := rows.Scan(&kind, &f.Method, &f.Path, &f.Owner, &f.Handler, &f.URL, &f.Parent, &f.Child, &f.Prefix); err != nil {
			rows.Close()
			return nil, err
		}
		f.Kind = facts.Kind(kind)
		rf.Facts = append(rf.Facts, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.q.Query(`SELECT name, version, source FROM dependencies WHERE repo=? ORDER BY seq`, repo)
	if err != nil {
		return nil, fmt.Errorf("load dependencies: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		d := facts.Dependency{Repo: repo}
		if err := rows.Scan(&d.Name, &d.Version, &d.SourcePath); err != nil {
			return nil, err
		}
		rf.Dependencies = append(rf.Dependencies, d)
	}
	return rf, rows.Err()
}

// LoadSnapshot assembles a snapshot from the named repos, or from every
// stored repo when none are named.
func (s *Store) LoadSnapshot(repos ...string) (*facts.Snapshot, error) {
	if len(repos) == 0 {
		all, err := s.ListRepos()
		if err != nil {
			return nil, fmt.Errorf("list repos: %w", err)
		}
		for _, r := range all {
			repos = append(repos, r.Name)
		}
	}
	list := make([]facts.RepoFacts, 0, len(repos))
	for _, name := range repos {
		if _, err := s.GetRepo(name); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("%w: %s", ErrRepoNotFound, name)
			}
			return nil, fmt.Errorf("get repo %s: %w", name, err)
		}
		rf, err := s.LoadRepoFacts(name)
		if err != nil {
			return nil, fmt.Errorf("load repo %s: %w", name, err)
		}
		list = append(list, *rf)
	}
	return facts.NewSnapshot(list...), nil
}

// CountFacts returns the number of stored facts for repo, or for every repo
// when repo is empty.
func (s *Store) CountFacts(repo string) (int, error) {
	var count int
	var err error
	if repo == "" {
		err = s.q.QueryRow("SELECT COUNT(*) FROM facts").Scan(&count)
	} else {
		err = s.q.QueryRow("SELECT COUNT(*) FROM facts WHERE repo=?", repo).Scan(&count)
	}
	return count, err
}
