package fscache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/agent-actions/actcore/executor/adapters"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func newCache(opts ...Option) *Cache {
	return New(adapters.NewLRUCache(64), append([]Option{WithLogger(zerolog.Nop())}, opts...)...)
}

func TestCleanRel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: "/"},
		{in: ".", want: "/"},
		{in: "docs", want: "/docs"},
		{in: "/docs/./a.md", want: "/docs/a.md"},
		{in: "docs//b/", want: "/docs/b"},
	}
	for _, tt := range tests {
		got, err := CleanRel(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []string{"..", "../etc/passwd", "docs/../../x"} {
		_, err := CleanRel(bad)
		assert.ErrorIs(t, err, ErrPathOutsideRoot, bad)
	}
}

func TestCache_FindUsesPrefixIndex(t *testing.T) {
	root := writeTree(t, map[string]string{
		"docs/a.md":     "a",
		"docs/b.md":     "bb",
		"dogs.txt":      "woof",
		"src/main.go":   "package main",
		".git/HEAD":     "ref",
		"docs/sub/c.md": "c",
	})
	c := newCache()

	n, err := c.GetOrCreate(root)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	docs, err := c.Find(root, "docs", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"/docs/a.md", "/docs/b.md", "/docs/sub/", "/docs/sub/c.md"}, docs)

	partial, err := c.Find(root, "do", 0)
	require.NoError(t, err)
	assert.Contains(t, partial, "/dogs.txt")
	assert.Contains(t, partial, "/docs/a.md")

	single, err := c.Find(root, "src/main.go", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"/src/main.go"}, single)

	limited, err := c.Find(root, "/", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	_, err = c.Find(root, "../", 0)
	assert.ErrorIs(t, err, ErrPathOutsideRoot)
}

func TestCache_RespectsGitignore(t *testing.T) {
	root := writeTree(t, map[string]string{
		".gitignore":     "build/\n*.log\n",
		"build/out.bin":  "x",
		"app.log":        "x",
		"keep/readme.md": "x",
	})
	c := newCache(WithGitignore(true))

	all, err := c.Find(root, "/", 0)
	require.NoError(t, err)
	assert.Contains(t, all, "/keep/readme.md")
	assert.NotContains(t, all, "/app.log")
	assert.NotContains(t, all, "/build/out.bin")
	assert.NotContains(t, all, "/build/")
}

func TestCache_StatGoesThroughStatCache(t *testing.T) {
	root := writeTree(t, map[string]string{"docs/a.md": "hello"})
	c := newCache()
	ctx := context.Background()

	info, err := c.Stat(ctx, root, "docs/a.md")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.False(t, info.IsDir)
	assert.Equal(t, "/docs/a.md", info.Path)

	again, err := c.Stat(ctx, root, "/docs/a.md")
	require.NoError(t, err)
	assert.Equal(t, info.Size, again.Size)

	stats := c.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, int64(1), stats[0].StatHits)
	assert.Equal(t, int64(1), stats[0].StatMisses)

	dir, err := c.Stat(ctx, root, "docs")
	require.NoError(t, err)
	assert.True(t, dir.IsDir)

	_, err = c.Stat(ctx, root, "missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCache_InvalidateAndClear(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "a"})
	c := newCache()

	_, err := c.GetOrCreate(root)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("b"), 0o644))

	stale, _ := c.Find(root, "/", 0)
	assert.Equal(t, []string{"/a.txt"}, stale)

	c.Invalidate(root)
	fresh, _ := c.Find(root, "/", 0)
	assert.Equal(t, []string{"/a.txt", "/b.txt"}, fresh)

	c.Clear()
	assert.Empty(t, c.Stats())
}

func TestCache_MissingRootCachesEmptyListing(t *testing.T) {
	c := newCache()
	root := filepath.Join(t.TempDir(), "does-not-exist")

	n, err := c.GetOrCreate(root)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, c.Stats(), 1)
}

func TestCache_WatchInvalidatesOnChange(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "a"})
	c := newCache()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := c.GetOrCreate(root)
	require.NoError(t, err)
	require.NoError(t, c.Watch(ctx, root))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("b"), 0o644))

	assert.Eventually(t, func() bool {
		return len(c.Stats()) == 0
	}, 2*time.Second, 10*time.Millisecond)

	files, err := c.Find(root, "/", 0)
	require.NoError(t, err)
	assert.Contains(t, files, "/b.txt")
}
