// Package dedupe groups byte-identical files and chooses which one to keep.
package dedupe

import (
	"context"
	"os"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/quidome/archivetools/pkg/createdat"
)

// Options configures Groups.
type Options struct {
	Algorithm Algorithm

	// Workers bounds the number of files hashed concurrently.
	// Defaults to GOMAXPROCS.
	Workers int

	// Progress is called after each file is hashed. It may be nil.
	Progress func(path string)
}

// Group is a set of at least two files with the same content hash.
// Items are sorted by path.
type Group struct {
	Hash  string
	Size  int64
	Items []*createdat.Item
}

// Failure records a file that could not be sized or hashed.
// The file is left out of grouping.
type Failure struct {
	Path string
	Err  error
}

// Stats describes a grouping run.
type Stats struct {
	Scanned int
	Hashed  int
}

// Groups partitions items into groups of identical content.
//
// Files are first bucketed by size; only sizes shared by two or more files are
// hashed, and only a full-content hash match makes a group. Singletons are
// dropped. The error is non-nil only when ctx is canceled.
func Groups(ctx context.Context, items []*createdat.Item, opts Options) ([]Group, []Failure, Stats, error) {
	if opts.Algorithm == "" {
		opts.Algorithm = DefaultAlgorithm
	}
	if _, err := opts.Algorithm.new(); err != nil {
		return nil, nil, Stats{}, err
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	stats := Stats{Scanned: len(items)}
	var failures []Failure

	bySize := make(map[int64][]*createdat.Item)
	for _, it := range items {
		st, err := os.Stat(it.Path)
		if err != nil {
			failures = append(failures, Failure{Path: it.Path, Err: err})
			continue
		}
		if !st.Mode().IsRegular() {
			continue
		}
		bySize[st.Size()] = append(bySize[st.Size()], it)
	}

	type hashed struct {
		item *createdat.Item
		size int64
		sum  string
	}

	var (
		mu      sync.Mutex
		results []hashed
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for size, candidates := range bySize {
		if len(candidates) < 2 {
			continue
		}
		for _, it := range candidates {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				sum, err := HashFile(it.Path, opts.Algorithm)
				if opts.Progress != nil {
					opts.Progress(it.Path)
				}
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failures = append(failures, Failure{Path: it.Path, Err: err})
					return nil
				}
				results = append(results, hashed{item: it, size: size, sum: sum})
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, failures, stats, err
	}
	if err := ctx.Err(); err != nil {
		return nil, failures, stats, err
	}
	stats.Hashed = len(results)

	byHash := make(map[string]*Group)
	for _, r := range results {
		grp, ok := byHash[r.sum]
		if !ok {
			grp = &Group{Hash: r.sum, Size: r.size}
			byHash[r.sum] = grp
		}
		grp.Items = append(grp.Items, r.item)
	}

	var groups []Group
	for _, grp := range byHash {
		if len(grp.Items) < 2 {
			continue
		}
		sort.Slice(grp.Items, func(i, j int) bool { return grp.Items[i].Path < grp.Items[j].Path })
		groups = append(groups, *grp)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Items[0].Path < groups[j].Items[0].Path })

	sort.Slice(failures, func(i, j int) bool { return failures[i].Path < failures[j].Path })
	return groups, failures, stats, nil
}
