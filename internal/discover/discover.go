package discover

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// IGNORE_PATTERNS are directory names to skip during discovery.
var IGNORE_PATTERNS = map[string]bool{
	".cache": true, ".git": true, ".hg": true, ".idea": true,
	".svn": true, ".tmp": true, ".venv": true, ".vscode": true,
	"__pycache__": true, "bower_components": true, "coverage": true,
	"node_modules": true, "site-packages": true, "tmp": true,
	"vendor": true, "venv": true,
}

// Format is the encoding of a facts file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// factsSuffixes maps recognised file suffixes to their format.
var factsSuffixes = map[string]Format{
	".facts.json": FormatJSON,
	".facts.yaml": FormatYAML,
	".facts.yml":  FormatYAML,
}

// FileInfo represents a discovered facts file.
type FileInfo struct {
	Path    string // absolute path
	RelPath string // relative to the search root
	Format  Format
}

// Options configures file discovery.
type Options struct {
	IgnoreFile string // path to .contractignore file (optional)
}

// FormatFor returns the facts format for a file name, if it is a facts file.
func FormatFor(name string) (Format, bool) {
	lower := strings.ToLower(name)
	for suffix, f := range factsSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return f, true
		}
	}
	return "", false
}

// shouldSkipDir returns true if the directory should be skipped during discovery.
func shouldSkipDir(name, rel string, extraIgnore *ignore.GitIgnore) bool {
	if IGNORE_PATTERNS[name] {
		return true
	}
	return ignored(rel, extraIgnore)
}

func ignored(rel string, gi *ignore.GitIgnore) bool {
	return gi != nil && gi.MatchesPath(rel)
}

// Discover walks root and returns every facts file, in lexical order.
func Discover(ctx context.Context, root string, opts *Options) ([]FileInfo, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ignorePath := filepath.Join(root, ".contractignore")
	if opts != nil && opts.IgnoreFile != "" {
		ignorePath = opts.IgnoreFile
	}
	extraIgnore := loadIgnoreFile(ignorePath)

	var files []FileInfo

	err = filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if walkErr != nil {
			return filepath.SkipDir
		}

		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if rel != "." && shouldSkipDir(info.Name(), rel, extraIgnore) {
				return filepath.SkipDir
			}
			return nil
		}

		format, ok := FormatFor(info.Name())
		if !ok || ignored(rel, extraIgnore) {
			return nil
		}
		files = append(files, FileInfo{
			Path:    path,
			RelPath: rel,
			Format:  format,
		})
		return nil
	})

	return files, err
}

// loadIgnoreFile compiles a gitignore-style file, or returns nil if there is none.
func loadIgnoreFile(path string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
