package filelist

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
)

// Read parses a newline-separated file list. Blank lines and lines
// starting with "#" are skipped; surrounding whitespace is trimmed.
func Read(r io.Reader) ([]string, error) {
	var files []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		files = append(files, filepath.ToSlash(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading file list: %w", err)
	}
	return files, nil
}

// Walk lists the regular files in fsys that pass f, as slash separated
// paths in lexical order. Directories excluded by a "dir/**" pattern are
// not descended into.
func Walk(ctx context.Context, fsys fs.FS, f Filter) ([]string, error) {
	var files []string
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != "." && f.prunes(path) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if f.Keep(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking file tree: %w", err)
	}
	return files, nil
}
