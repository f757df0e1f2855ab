// Package content stores wiki pages, their attachments and share ids on a
// plain directory tree.
//
// This package handles:
//   - Pages (one file per WikiWord named page)
//   - Attachments (files under a per-page directory)
//   - Shares (public share ids mapped to pages, kept across renames)
//   - Search (title and full-text search)
package content

import (
	"context"
	"slices"
	"sync"
)

// PageService handles page reads and writes.
type PageService struct {
	fileStore *FileStore
	locks     *pageLocks
	titles    *titleCache
}

// NewPageService creates a new page service.
func NewPageService(fileStore *FileStore, locks *pageLocks, titles *titleCache) *PageService {
	return &PageService{
		fileStore: fileStore,
		locks:     locks,
		titles:    titles,
	}
}

// ReadPage returns the content of a page.
func (s *PageService) ReadPage(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name, err := CleanPageName(name)
	if err != nil {
		return "", errPageNotFound
	}
	return s.fileStore.ReadPage(name)
}

// WritePage creates or replaces a page.
func (s *PageService) WritePage(ctx context.Context, name, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := CleanPageName(name)
	if err != nil {
		return err
	}
	unlock := s.locks.lock(name)
	defer unlock()
	created := !s.fileStore.PageExists(name)
	if err := s.fileStore.WritePage(name, content); err != nil {
		return err
	}
	if created {
		s.titles.invalidate()
	}
	return nil
}

// PageExists reports whether a page exists. Invalid names never exist.
func (s *PageService) PageExists(ctx context.Context, name string) bool {
	name, err := CleanPageName(name)
	if err != nil {
		return false
	}
	return s.fileStore.PageExists(name)
}

// PageTitles returns the sorted names of every page.
func (s *PageService) PageTitles(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.titles.get(s.fileStore)
}

// titleCache remembers the sorted page list until a page appears or moves.
// It only caches when enabled, that is while a watcher reports outside edits;
// otherwise every get lists the directory.
type titleCache struct {
	mu      sync.Mutex
	enabled bool
	titles  []string
	valid   bool
}

func (c *titleCache) get(fs *FileStore) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled || !c.valid {
		names, err := fs.ListPages()
		if err != nil {
			return nil, err
		}
		slices.Sort(names)
		if !c.enabled {
			return names, nil
		}
		c.titles = names
		c.valid = true
	}
	return slices.Clone(c.titles), nil
}

func (c *titleCache) invalidate() {
	c.mu.Lock()
	c.valid = false
	c.titles = nil
	c.mu.Unlock()
}
