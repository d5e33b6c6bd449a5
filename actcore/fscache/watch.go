package fscache

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch invalidates root whenever anything below it changes, until ctx is
// done. Directories created later are added to the watch as they appear.
func (c *Cache) Watch(ctx context.Context, root string) error {
	key, err := rootKey(root)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	err = filepath.WalkDir(key, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" && p != key {
			return filepath.SkipDir
		}
		return watcher.Add(p)
	})
	if err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", key, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Create) {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						_ = watcher.Add(ev.Name)
					}
				}
				c.logger.Debug().Str("root", key).Str("path", ev.Name).Str("op", ev.Op.String()).Msg("change detected, invalidating")
				c.Invalidate(key)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.Warn().Err(err).Str("root", key).Msg("watcher error")
			}
		}
	}()
	return nil
}
