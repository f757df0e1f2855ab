package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Options configures a WikiStore.
type Options struct {
	// Watch invalidates the cached page list when files change outside the
	// store.
	Watch bool
	// SearchWorkers bounds how many pages are read concurrently. Defaults to 8.
	SearchWorkers int
	// SearchRate limits content searches per second. 0 means unlimited.
	SearchRate float64
	// SearchBurst is the number of content searches allowed at once when
	// SearchRate is set.
	SearchBurst int
}

// WikiStore is a handle to one wiki directory.
//
// All methods are safe for concurrent use. A directory must be owned by a
// single WikiStore at a time.
type WikiStore struct {
	dir       string
	fileStore *FileStore
	locks     pageLocks
	titles    titleCache
	pages     *PageService
	assets    *AssetService
	shares    *ShareService
	search    *SearchService

	closeOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// Open opens the wiki stored in dir. The directory itself is not created.
//
// A rename interrupted by a crash is completed before Open returns. With
// opts.Watch the store watches dir until Close or until ctx is canceled.
func Open(ctx context.Context, dir string, opts Options) (*WikiStore, error) {
	if opts.SearchWorkers <= 0 {
		opts.SearchWorkers = 8
	}
	shares, err := NewShareService(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load shares: %w", err)
	}
	w := &WikiStore{
		dir:       dir,
		fileStore: NewFileStore(dir),
		titles:    titleCache{enabled: opts.Watch},
		shares:    shares,
	}
	w.pages = NewPageService(w.fileStore, &w.locks, &w.titles)
	w.assets = NewAssetService(w.fileStore, &w.locks)
	w.search = NewSearchService(w.fileStore, opts.SearchWorkers, opts.SearchRate, opts.SearchBurst)
	w.cleanStaging(ctx)
	if err := w.recoverRename(ctx); err != nil {
		return nil, err
	}
	if opts.Watch {
		if err := w.watch(ctx); err != nil {
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// Close stops the watcher, if any.
func (w *WikiStore) Close() error {
	w.closeOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
			<-w.done
		}
	})
	return nil
}

// Dir returns the store directory.
func (w *WikiStore) Dir() string {
	return w.dir
}

// cleanStaging removes temporary files left by an interrupted write. The
// rename journal is kept for recoverRename.
func (w *WikiStore) cleanStaging(ctx context.Context) {
	staging := filepath.Join(w.dir, stagingDir)
	entries, err := os.ReadDir(staging)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "write-") {
			continue
		}
		if err := os.Remove(filepath.Join(staging, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.WarnContext(ctx, "failed to remove staging file", "file", e.Name(), "err", err)
		}
	}
}

// Pages

// ReadPage returns the content of a page.
func (w *WikiStore) ReadPage(ctx context.Context, name string) (string, error) {
	return w.pages.ReadPage(ctx, name)
}

// WritePage creates or fully replaces a page.
func (w *WikiStore) WritePage(ctx context.Context, name, content string) error {
	return w.pages.WritePage(ctx, name, content)
}

// PageExists reports whether a page exists.
func (w *WikiStore) PageExists(ctx context.Context, name string) bool {
	return w.pages.PageExists(ctx, name)
}

// PageTitles returns the sorted names of every page, for link rendering.
func (w *WikiStore) PageTitles(ctx context.Context) ([]string, error) {
	return w.pages.PageTitles(ctx)
}

// GetPageInfo returns every page with its content, in no particular order.
func (w *WikiStore) GetPageInfo(ctx context.Context) ([]PageInfo, error) {
	return w.search.ReadAll(ctx)
}

// SearchTitles returns the sorted titles containing every term of query.
func (w *WikiStore) SearchTitles(ctx context.Context, query string) ([]string, error) {
	titles, err := w.pages.PageTitles(ctx)
	if err != nil {
		return nil, err
	}
	return w.search.SearchTitles(titles, query), nil
}

// SearchContents returns the sorted names of pages whose content matches
// query.
func (w *WikiStore) SearchContents(ctx context.Context, query string) ([]string, error) {
	return w.search.SearchContents(ctx, query)
}

// Attachments

// AddAttachment copies the file at sourcePath as attachment filename of page.
func (w *WikiStore) AddAttachment(ctx context.Context, page, filename, sourcePath string) error {
	_, err := w.assets.AddAttachment(ctx, page, filename, sourcePath)
	return err
}

// AddAttachmentData stores r as attachment filename of page.
func (w *WikiStore) AddAttachmentData(ctx context.Context, page, filename string, r io.Reader) error {
	_, err := w.assets.AddAttachmentData(ctx, page, filename, r)
	return err
}

// GetAttachmentList returns the attachments of page sorted by filename.
func (w *WikiStore) GetAttachmentList(ctx context.Context, page string) ([]Attachment, error) {
	return w.assets.ListAttachments(ctx, page)
}

// GetAttachmentPath returns the on-disk path of an attachment.
func (w *WikiStore) GetAttachmentPath(ctx context.Context, page, filename string) (string, error) {
	return w.assets.AttachmentPath(ctx, page, filename)
}

// ReadAttachment returns the content of an attachment.
func (w *WikiStore) ReadAttachment(ctx context.Context, page, filename string) ([]byte, error) {
	return w.assets.ReadAttachment(ctx, page, filename)
}

// DeleteAttachment removes an attachment.
func (w *WikiStore) DeleteAttachment(ctx context.Context, page, filename string) error {
	return w.assets.DeleteAttachment(ctx, page, filename)
}

// Shares

// SharePage returns the active share id of page, minting a new one if the
// page is not shared.
func (w *WikiStore) SharePage(ctx context.Context, page string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name, err := CleanPageName(page)
	if err != nil {
		return "", errPageNotFound
	}
	unlock := w.locks.lock(name)
	defer unlock()
	if !w.fileStore.PageExists(name) {
		return "", errPageNotFound
	}
	id, err := w.shares.Share(name)
	if err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "page shared", "page", name, "id", id)
	return id, nil
}

// UnsharePage revokes the active share of page. The revoked id never
// resolves again.
func (w *WikiStore) UnsharePage(ctx context.Context, page string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := CleanPageName(page)
	if err != nil {
		return fmt.Errorf("%s: %w", page, ErrNotShared)
	}
	unlock := w.locks.lock(name)
	defer unlock()
	if err := w.shares.Unshare(name); err != nil {
		return err
	}
	slog.InfoContext(ctx, "page unshared", "page", name)
	return nil
}

// IsPageShared reports whether page has an active share id.
func (w *WikiStore) IsPageShared(ctx context.Context, page string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	name, err := CleanPageName(page)
	if err != nil {
		return false, nil
	}
	return w.shares.IsShared(name), nil
}

// PageShareID returns the active share id of page.
func (w *WikiStore) PageShareID(ctx context.Context, page string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name, err := CleanPageName(page)
	if err != nil {
		return "", fmt.Errorf("%s: %w", page, ErrNotShared)
	}
	return w.shares.ShareID(name)
}

// PageNameForShareID returns the page an active share id points at.
func (w *WikiStore) PageNameForShareID(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return w.shares.PageForShareID(id)
}

// GetSharedPages returns page name -> active share id.
func (w *WikiStore) GetSharedPages(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return w.shares.Shared(), nil
}
