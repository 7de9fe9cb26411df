package store

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zeebo/xxh3"

	"github.com/DeusData/contractcheck/internal/facts"
)

// ErrRepoNotFound is returned when a named repo has never been ingested.
var ErrRepoNotFound = errors.New("repo not found")

// Repo represents an ingested repository.
type Repo struct {
	Name            string `json:"name"`
	IngestedAt      string `json:"ingested_at"`
	Source          string `json:"source,omitempty"`
	FactsHash       string `json:"facts_hash"`
	FactCount       int    `json:"fact_count"`
	DependencyCount int    `json:"dependency_count"`
}

// HashRepoFacts returns the content hash of a repository's facts.
func HashRepoFacts(rf *facts.RepoFacts) (string, error) {
	data, err := json.Marshal(rf)
	if err != nil {
		return "", fmt.Errorf("marshal facts: %w", err)
	}
	h := xxh3.New()
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SaveRepo replaces everything stored for rf.Repo with rf. It is a no-op, and
// reports false, when the stored facts hash already matches.
func (s *Store) SaveRepo(rf *facts.RepoFacts, source string) (bool, error) {
	if rf.Repo == "" {
		return false, facts.ErrNoRepo
	}
	hash, err := HashRepoFacts(rf)
	if err != nil {
		return false, err
	}
	prev, err := s.repoHash(rf.Repo)
	if err != nil {
		return false, err
	}
	if prev == hash {
		slog.Debug("store.save.unchanged", "repo", rf.Repo)
		return false, nil
	}

	err = s.WithTransaction(func(tx *Store) error {
		if _, err := tx.q.Exec(`
			INSERT INTO repos (name, ingested_at, source, facts_hash) VALUES (?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET ingested_at=excluded.ingested_at, source=excluded.source, facts_hash=excluded.facts_hash`,
			rf.Repo, Now(), source, hash); err != nil {
			return fmt.Errorf("upsert repo: %w", err)
		}
		if _, err := tx.q.Exec("DELETE FROM facts WHERE repo=?", rf.Repo); err != nil {
			return fmt.Errorf("clear facts: %w", err)
		}
		if _, err := tx.q.Exec("DELETE FROM dependencies WHERE repo=?", rf.Repo); err != nil {
			return fmt.Errorf("clear dependencies: %w", err)
		}
		if err := tx.InsertFactBatch(rf.Repo, rf.Facts); err != nil {
			return err
		}
		return tx.InsertDependencyBatch(rf.Repo, rf.Dependencies)
	})
	if err != nil {
		return false, fmt.Errorf("save repo %s: %w", rf.Repo, err)
	}
	slog.Info("store.save", "repo", rf.Repo, "facts", len(rf.Facts), "dependencies", len(rf.Dependencies))
	return true, nil
}

// repoHash returns the stored facts hash, or "" for an unknown repo.
func (s *Store) repoHash(name string) (string, error) {
	var hash string
	err := s.q.QueryRow("SELECT facts_hash FROM repos WHERE name=?", name).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get repo hash: %w", err)
	}
	return hash, nil
}

const repoColumns = `
	r.name, r.ingested_at, r.source, r.facts_hash,
	(SELECT COUNT(*) FROM facts f WHERE f.repo = r.name),
	(SELECT COUNT(*) FROM dependencies d WHERE d.repo = r.name)`

// GetRepo returns a repo by name.
func (s *Store) GetRepo(name string) (*Repo, error) {
	var r Repo
	err := s.q.QueryRow("SELECT"+repoColumns+" FROM repos r WHERE r.name=?", name).
		Scan(&r.Name, &r.IngestedAt, &r.Source, &r.FactsHash, &r.FactCount, &r.DependencyCount)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRepos returns all ingested repos.
func (s *Store) ListRepos() ([]*Repo, error) {
	rows, err := s.q.Query("SELECT" + repoColumns + " FROM repos r ORDER BY r.name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*Repo
	for rows.Next() {
		var r Repo
		if err := rows.Scan(&r.Name, &r.IngestedAt, &r.Source, &r.FactsHash, &r.FactCount, &r.DependencyCount); err != nil {
			return nil, err
		}
		result = append(result, &r)
	}
	return result, rows.Err()
}

// DeleteRepo deletes a repo and all associated data (CASCADE). It reports
// whether the repo existed.
func (s *Store) DeleteRepo(name string) (bool, error) {
	res, err := s.q.Exec("DELETE FROM repos WHERE name=?", name)
	if err != nil {
		return false, fmt.Errorf("delete repo: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
