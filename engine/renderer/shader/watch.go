package shader

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/anima-vk/engine/core"
)

// Watch invalidates modules whenever their source file is written, created or
// renamed over. Directories of sources loaded later are watched as they load.
func (c *Cache) Watch() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return core.ErrDisposed
	}
	if c.watcher != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	c.watcher = w
	c.done = make(chan struct{})
	for path := range c.modules {
		c.watchDir(path)
	}
	go c.watchLoop(w, c.done)
	return nil
}

// watchDir adds the directory of path. Editors often replace files, which drops
// a watch set on the file itself. c.mu must be held.
func (c *Cache) watchDir(path string) {
	dir := filepath.Dir(path)
	if _, ok := c.watched[dir]; ok {
		return
	}
	if err := c.watcher.Add(dir); err != nil {
		core.LogWarn("Cannot watch shader directory '%s': %s", dir, err)
		return
	}
	c.watched[dir] = struct{}{}
}

func (c *Cache) watchLoop(w *fsnotify.Watcher, done <-chan struct{}) {
	for {
		select {
		case e, ok := <-w.Events:
			if !ok {
				return
			}
			c.handleEvent(e)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			core.LogError("Shader watcher: %s", err)
		case <-done:
			return
		}
	}
}

func (c *Cache) handleEvent(e fsnotify.Event) {
	if e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	c.Invalidate(e.Name)
}

// stopWatch closes the watcher. c.mu must be held.
func (c *Cache) stopWatch() {
	if c.watcher == nil {
		return
	}
	close(c.done)
	if err := c.watcher.Close(); err != nil {
		core.LogWarn("Failed to close shader watcher: %s", err)
	}
	c.watcher = nil
	c.watched = make(map[string]struct{})
}
