// Package fscache is a process-wide cache of directory listings and file
// stats shared by every agent that browses the same roots.
package fscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/armon/go-radix"
	"github.com/rs/zerolog"
	ignore "github.com/sabhiram/go-gitignore"

	ports "github.com/ZanzyTHEbar/agent-actions/actcore/executor/ports"
)

var (
	ErrPathOutsideRoot = errors.New("path escapes the root")
	ErrNotFound        = errors.New("path not found")
)

// FileInfo is the cached stat of one path.
type FileInfo struct {
	Path    string      `json:"path"`
	Size    int64       `json:"size"`
	Mode    fs.FileMode `json:"mode"`
	IsDir   bool        `json:"is_dir"`
	ModTime time.Time   `json:"mod_time"`
}

// RootStats summarizes one cached root.
type RootStats struct {
	Root       string    `json:"root"`
	Files      int       `json:"files"`
	StatHits   int64     `json:"stat_hits"`
	StatMisses int64     `json:"stat_misses"`
	ScannedAt  time.Time `json:"scanned_at"`
}

type entry struct {
	root      string
	tree      *radix.Tree
	scannedAt time.Time
	hits      atomic.Int64
	misses    atomic.Int64
}

// Cache holds one listing per root. Listings are built on first use and
// dropped on Invalidate, Clear or, when watched, any change under the root.
type Cache struct {
	mu               sync.RWMutex
	entries          map[string]*entry
	stats            ports.Cache
	statTTL          int
	respectGitignore bool
	logger           zerolog.Logger
}

type Option func(*Cache)

func WithGitignore(enabled bool) Option  { return func(c *Cache) { c.respectGitignore = enabled } }
func WithStatTTL(seconds int) Option     { return func(c *Cache) { c.statTTL = seconds } }
func WithLogger(l zerolog.Logger) Option { return func(c *Cache) { c.logger = l } }

// New creates a cache whose stat results are memoized in stats.
func New(stats ports.Cache, opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		stats:   stats,
		statTTL: 60,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func rootKey(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %s: %w", root, err)
	}
	return filepath.Clean(abs), nil
}

// CleanRel turns a model-supplied path into the cache's "/a/b" form. Any
// ".." segment is rejected rather than clamped.
func CleanRel(rel string) (string, error) {
	rel = filepath.ToSlash(strings.TrimSpace(rel))
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrPathOutsideRoot, rel)
		}
	}
	return path.Clean("/" + rel), nil
}

// GetOrCreate returns the listing for root, scanning it on first use. A
// failed scan still produces an (empty) entry so callers are not stuck
// rescanning a broken root; the error is logged.
func (c *Cache) GetOrCreate(root string) (int, error) {
	e, err := c.entry(root)
	if err != nil {
		return 0, err
	}
	return e.tree.Len(), nil
}

func (c *Cache) entry(root string) (*entry, error) {
	key, err := rootKey(root)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return e, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e, nil
	}

	e = &entry{root: key, tree: radix.New(), scannedAt: time.Now()}
	if err := c.scan(e); err != nil {
		c.logger.Warn().Err(err).Str("root", key).Msg("scan failed, caching empty listing")
	}
	c.entries[key] = e
	c.logger.Debug().Str("root", key).Int("files", e.tree.Len()).Msg("listing cached")
	return e, nil
}

func (c *Cache) scan(e *entry) error {
	var matcher *ignore.GitIgnore
	if c.respectGitignore {
		if m, err := ignore.CompileIgnoreFile(filepath.Join(e.root, ".gitignore")); err == nil {
			matcher = m
		}
	}

	return filepath.WalkDir(e.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == e.root {
				return err
			}
			c.logger.Debug().Err(err).Str("path", p).Msg("skipping unreadable path")
			return nil
		}
		if p == e.root {
			return nil
		}
		rel, relErr := filepath.Rel(e.root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if matcher != nil && (matcher.MatchesPath(rel) || (d.IsDir() && matcher.MatchesPath(rel+"/"))) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		e.tree.Insert("/"+rel, d.IsDir())
		return nil
	})
}

// Find lists cached paths under prefix in lexical order. limit <= 0 means
// no limit.
func (c *Cache) Find(root, prefix string, limit int) ([]string, error) {
	clean, err := CleanRel(prefix)
	if err != nil {
		return nil, err
	}
	e, err := c.entry(root)
	if err != nil {
		return nil, err
	}

	// published trees are read-only
	var out []string
	walk := func(s string, v interface{}) bool {
		if isDir, _ := v.(bool); isDir {
			out = append(out, s+"/")
		} else {
			out = append(out, s)
		}
		return limit > 0 && len(out) >= limit
	}
	v, ok := e.tree.Get(clean)
	isDir, _ := v.(bool)
	switch {
	case clean == "/":
		e.tree.Walk(walk)
	case ok && !isDir:
		out = append(out, clean)
	case ok:
		e.tree.WalkPrefix(clean+"/", walk)
	default:
		e.tree.WalkPrefix(clean, walk)
	}
	sort.Strings(out)
	return out, nil
}

// Stat returns the stat of rel under root, going through the stat cache.
func (c *Cache) Stat(ctx context.Context, root, rel string) (FileInfo, error) {
	clean, err := CleanRel(rel)
	if err != nil {
		return FileInfo{}, err
	}
	e, err := c.entry(root)
	if err != nil {
		return FileInfo{}, err
	}

	key := e.root + "\x00" + clean
	if raw, ok := c.stats.Get(ctx, key); ok {
		var info FileInfo
		if err := json.Unmarshal(raw, &info); err == nil {
			e.hits.Add(1)
			return info, nil
		}
	}
	e.misses.Add(1)

	st, err := os.Stat(filepath.Join(e.root, filepath.FromSlash(clean)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FileInfo{}, fmt.Errorf("%w: %s", ErrNotFound, clean)
		}
		return FileInfo{}, fmt.Errorf("stat %s: %w", clean, err)
	}
	info := FileInfo{Path: clean, Size: st.Size(), Mode: st.Mode(), IsDir: st.IsDir(), ModTime: st.ModTime()}
	if raw, err := json.Marshal(info); err == nil {
		if err := c.stats.Set(ctx, key, raw, c.statTTL); err != nil {
			c.logger.Debug().Err(err).Str("path", clean).Msg("stat cache set failed")
		}
	}
	return info, nil
}

// Invalidate drops the listing of root; the next call rescans it.
func (c *Cache) Invalidate(root string) {
	key, err := rootKey(root)
	if err != nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear drops every listing. Cached stats expire on their own TTL.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
}

// Stats reports every cached root, sorted by root.
func (c *Cache) Stats() []RootStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]RootStats, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, RootStats{
			Root:       e.root,
			Files:      e.tree.Len(),
			StatHits:   e.hits.Load(),
			StatMisses: e.misses.Load(),
			ScannedAt:  e.scannedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Root < out[j].Root })
	return out
}
