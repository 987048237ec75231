package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"

	"github.com/GriffinCanCode/flowtrace/internal/trace/wire"
)

// ErrNoSources is returned when no pattern yields a source.
var ErrNoSources = errors.New("no trace sources found")

// Discover expands input patterns into file sources. A pattern may be a
// directory (walked for trace files), a doublestar glob, or a plain path.
// Plain paths are kept even when missing so that the failure is reported
// for that source when it is opened.
func Discover(ctx context.Context, patterns []string, format wire.Format) ([]Source, error) {
	seen := make(map[string]struct{})
	var paths []string
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}

	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		info, err := os.Stat(pattern)
		switch {
		case err == nil && info.IsDir():
			files, err := walkDir(ctx, pattern)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				add(f)
			}
		case err == nil:
			add(pattern)
		case hasMeta(pattern):
			if !doublestar.ValidatePattern(pattern) {
				return nil, fmt.Errorf("invalid glob %q", pattern)
			}
			matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("glob %q: %w", pattern, err)
			}
			for _, m := range matches {
				add(m)
			}
		default:
			add(pattern)
		}
	}

	if len(paths) == 0 {
		return nil, ErrNoSources
	}
	sort.Strings(paths)
	sources := make([]Source, len(paths))
	for i, p := range paths {
		sources[i] = NewFile(p, format)
	}
	return sources, nil
}

func walkDir(ctx context.Context, root string) ([]string, error) {
	var (
		mu    sync.Mutex
		files []string
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil || d.IsDir() || !IsTraceFile(path) {
			return nil
		}
		mu.Lock()
		files = append(files, path)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return files, nil
}

func hasMeta(pattern string) bool {
	for _, c := range pattern {
		switch c {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}
