package ownership

import (
	"context"
	"fmt"

	"github.com/unbound-force/shrinkowners/internal/rules"
	"golang.org/x/sync/errgroup"
)

// matchParallel resolves owners for files split into contiguous chunks,
// one per worker. Each worker compiles its own Ruleset from the parsed
// file, so workers share nothing mutable. Any worker error fails the
// whole match.
func matchParallel(ctx context.Context, parsed *rules.File, files []string, workers int) (map[string][]string, error) {
	chunks := split(files, workers)
	parts := make([]map[string][]string, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			rs, err := rules.Compile(parsed)
			if err != nil {
				return fmt.Errorf("worker %d: %w", i, err)
			}
			res, err := rs.Find(gctx, chunk)
			if err != nil {
				return fmt.Errorf("worker %d: matching %d files: %w", i, len(chunk), err)
			}
			parts[i] = res.Owned
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string][]string, len(files))
	for _, part := range parts {
		for file, teams := range part {
			merged[file] = teams
		}
	}
	return merged, nil
}

// split partitions files into at most n contiguous, roughly equal chunks.
func split(files []string, n int) [][]string {
	if len(files) == 0 {
		return nil
	}
	n = max(min(n, len(files)), 1)
	size := (len(files) + n - 1) / n

	chunks := make([][]string, 0, n)
	for start := 0; start < len(files); start += size {
		end := min(start+size, len(files))
		chunks = append(chunks, files[start:end])
	}
	return chunks
}
