// Package scaffold embeds a starter shrinkowners config and CI workflow
// and writes them to a target repository.
package scaffold

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

//go:embed assets
var assets embed.FS

// Options configures the scaffold operation.
type Options struct {
	// TargetDir is the repository root to scaffold into.
	// Defaults to the current working directory.
	TargetDir string

	// Force overwrites existing files when true.
	// When false, existing files are skipped.
	Force bool

	// Version is embedded in the version marker comment.
	// Defaults to "dev".
	Version string

	// Stdout is the writer for summary output.
	// Defaults to os.Stdout.
	Stdout io.Writer
}

// Result reports what the scaffold operation did.
type Result struct {
	// Created lists files that were written for the first time.
	Created []string

	// Skipped lists files that already existed and were not
	// overwritten (Force was false).
	Skipped []string

	// Overwritten lists files that existed and were replaced
	// (Force was true).
	Overwritten []string
}

// codeownersLocations are where GitHub looks for CODEOWNERS.
var codeownersLocations = []string{
	filepath.Join(".github", "CODEOWNERS"),
	"CODEOWNERS",
	filepath.Join("docs", "CODEOWNERS"),
}

func versionMarker(version string) string {
	return fmt.Sprintf("# scaffolded by shrinkowners %s\n", version)
}

// targetPath maps an embedded asset to its repository path. The
// "github" directory becomes ".github" and top-level files are dotted.
func targetPath(rel string) string {
	if rest, ok := strings.CutPrefix(rel, "github/"); ok {
		return filepath.Join(".github", filepath.FromSlash(rest))
	}
	return "." + filepath.FromSlash(rel)
}

// Run writes the embedded config and workflow into opts.TargetDir,
// each prefixed with a version marker comment. Existing files are
// skipped unless opts.Force is set.
func Run(opts Options) (*Result, error) {
	if opts.TargetDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		opts.TargetDir = cwd
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	if !hasCodeowners(opts.TargetDir) {
		fmt.Fprintln(opts.Stdout, "Warning: no CODEOWNERS found in .github/, the root or docs/.")
		fmt.Fprintln(opts.Stdout)
	}

	result := &Result{}
	marker := versionMarker(opts.Version)

	err := fs.WalkDir(assets, "assets", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel := targetPath(strings.TrimPrefix(path, "assets/"))
		outPath := filepath.Join(opts.TargetDir, rel)

		_, statErr := os.Stat(outPath)
		exists := statErr == nil
		if exists && !opts.Force {
			result.Skipped = append(result.Skipped, rel)
			return nil
		}

		content, err := assets.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading embedded asset %s: %w", path, err)
		}
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", rel, err)
		}
		out := append([]byte(marker), content...)
		if err := os.WriteFile(outPath, out, 0o644); err != nil {
			return fmt.Errorf("creating %s: %w", rel, err)
		}

		if exists {
			result.Overwritten = append(result.Overwritten, rel)
		} else {
			result.Created = append(result.Created, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	printSummary(opts.Stdout, result)
	return result, nil
}

func hasCodeowners(dir string) bool {
	for _, loc := range codeownersLocations {
		if _, err := os.Stat(filepath.Join(dir, loc)); err == nil {
			return true
		}
	}
	return false
}

func printSummary(w io.Writer, r *Result) {
	fmt.Fprintln(w, "shrinkowners initialized:")

	for _, f := range r.Created {
		fmt.Fprintf(w, "  created: %s\n", f)
	}
	for _, f := range r.Skipped {
		fmt.Fprintf(w, "  skipped: %s (already exists)\n", f)
	}
	for _, f := range r.Overwritten {
		fmt.Fprintf(w, "  overwritten: %s\n", f)
	}

	if len(r.Skipped) > 0 {
		fmt.Fprintf(w, "%d file(s) skipped (use --force to overwrite).\n", len(r.Skipped))
	}
}

// AssetPaths returns the repository paths the embedded assets are
// written to.
func AssetPaths() ([]string, error) {
	var paths []string
	err := fs.WalkDir(assets, "assets", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, targetPath(strings.TrimPrefix(path, "assets/")))
		}
		return nil
	})
	return paths, err
}
