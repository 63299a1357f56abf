// Package library loads template documents from a local directory and keeps
// them hot-reloaded, indexed by slug.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/velonis/blueprint/internal/domain/template"
)

const debounceWindow = 500 * time.Millisecond

// Library is an in-memory index of the template files in one directory.
type Library struct {
	dir string
	log *slog.Logger

	mu        sync.RWMutex
	templates map[string]*template.Template
	raw       map[string][]byte
}

// Open loads every .json, .yaml and .yml file under dir. Files that fail to
// parse are logged and skipped; they do not block the rest of the library.
func Open(dir string, log *slog.Logger) (*Library, error) {
	l := &Library{dir: dir, log: log}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload rescans the directory.
func (l *Library) Reload() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("read template directory %s: %w", l.dir, err)
	}

	templates := make(map[string]*template.Template)
	raw := make(map[string][]byte)
	for _, entry := range entries {
		if entry.IsDir() || !isTemplateFile(entry.Name()) {
			continue
		}
		path := filepath.Join(l.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			l.log.Warn("skipping unreadable template file", "path", path, "error", err)
			continue
		}
		tpl, err := template.Parse(data)
		if err != nil {
			l.log.Warn("skipping malformed template file", "path", path, "error", err)
			continue
		}
		if _, dup := templates[tpl.Meta.Slug]; dup {
			l.log.Warn("duplicate template slug, keeping first", "slug", tpl.Meta.Slug, "path", path)
			continue
		}
		templates[tpl.Meta.Slug] = tpl
		raw[tpl.Meta.Slug] = data
	}

	l.mu.Lock()
	l.templates = templates
	l.raw = raw
	l.mu.Unlock()
	l.log.Info("template library loaded", "dir", l.dir, "templates", len(templates))
	return nil
}

// Get returns the template for a slug.
func (l *Library) Get(slug string) (*template.Template, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tpl, ok := l.templates[slug]
	return tpl, ok
}

// Raw returns the original document bytes for a slug.
func (l *Library) Raw(slug string) ([]byte, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	data, ok := l.raw[slug]
	return data, ok
}

// Slugs lists the loaded template slugs, sorted.
func (l *Library) Slugs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	slugs := make([]string, 0, len(l.templates))
	for slug := range l.templates {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// Watch reloads the library when files under the directory change, with
// rapid bursts coalesced. It blocks until the context is cancelled.
func (l *Library) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("watch %s: %w", l.dir, err)
	}

	var mu sync.Mutex
	var timer *time.Timer
	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounceWindow, func() {
			if err := l.Reload(); err != nil {
				l.log.Warn("template library reload failed", "error", err)
			}
		})
	}
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isTemplateFile(filepath.Base(event.Name)) {
				continue
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) ||
				event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
				trigger()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

func isTemplateFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}
