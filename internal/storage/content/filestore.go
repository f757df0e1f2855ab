package content

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// On-disk layout entries next to the pages. Dot-prefixed names are never pages.
const (
	attachmentsDir = ".attachments"
	stagingDir     = ".staging"
	sharesFile     = ".shares.jsonl"
)

// Attachment describes a file attached to a page.
type Attachment struct {
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	MTime    time.Time `json:"mtime"`
	MimeType string    `json:"mime_type,omitempty"`
	Path     string    `json:"-"`
}

// FileStore maps pages and attachments onto a directory tree.
// Storage model:
//   - Pages: one regular file per page in the root, named after the page.
//   - Attachments: files within .attachments/<Page>/.
//   - Writes go to .staging/ first and are renamed into place.
//
// FileStore does no locking and expects already sanitized names.
type FileStore struct {
	rootDir string
}

// NewFileStore returns a FileStore rooted at rootDir. The directory is not
// created.
func NewFileStore(rootDir string) *FileStore {
	return &FileStore{rootDir: rootDir}
}

func (fs *FileStore) pagePath(name string) string {
	return filepath.Join(fs.rootDir, name)
}

func (fs *FileStore) attachmentDir(page string) string {
	return filepath.Join(fs.rootDir, attachmentsDir, page)
}

// mkdirIn creates dir, whose parent must already exist.
func mkdirIn(dir string) error {
	if err := os.Mkdir(dir, 0o755); err != nil && !errors.Is(err, os.ErrExist) { //nolint:gosec // G301: 0o755 is intentional for user data directories
		return err
	}
	return nil
}

// writeAtomic streams r into dst through a staging file so readers never see
// a partial file.
func (fs *FileStore) writeAtomic(dst string, r io.Reader) error {
	staging := filepath.Join(fs.rootDir, stagingDir)
	if err := mkdirIn(staging); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	f, err := os.CreateTemp(staging, "write-*")
	if err != nil {
		return fmt.Errorf("failed to create staging file: %w", err)
	}
	tmp := f.Name()
	if _, err = io.Copy(f, r); err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp, 0o644) //nolint:gosec // G302: 0o644 is intentional for user data files
	}
	if err == nil {
		err = os.Rename(tmp, dst)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(dst), err)
	}
	return nil
}

// PageExists checks if a page file exists.
func (fs *FileStore) PageExists(name string) bool {
	info, err := os.Stat(fs.pagePath(name))
	return err == nil && info.Mode().IsRegular()
}

// ReadPage reads a page's content.
func (fs *FileStore) ReadPage(name string) (string, error) {
	data, err := os.ReadFile(fs.pagePath(name)) //nolint:gosec // G304: name is a sanitized page name
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", errPageNotFound
		}
		return "", fmt.Errorf("failed to read page: %w", err)
	}
	return string(data), nil
}

// WritePage creates or replaces a page.
func (fs *FileStore) WritePage(name, content string) error {
	return fs.writeAtomic(fs.pagePath(name), strings.NewReader(content))
}

// ListPages returns the names of all pages, in directory order.
func (fs *FileStore) ListPages() ([]string, error) {
	entries, err := os.ReadDir(fs.rootDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStore, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsWikiWord(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// MovePage renames a page file. The caller checked newName is free.
func (fs *FileStore) MovePage(oldName, newName string) error {
	if err := os.Rename(fs.pagePath(oldName), fs.pagePath(newName)); err != nil {
		return fmt.Errorf("failed to move page: %w", err)
	}
	return nil
}

// SaveAttachment writes r as the attachment name of page, replacing any
// previous content.
func (fs *FileStore) SaveAttachment(page, name string, r io.Reader) (*Attachment, error) {
	if err := mkdirIn(filepath.Join(fs.rootDir, attachmentsDir)); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	dir := fs.attachmentDir(page)
	if err := mkdirIn(dir); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	p := filepath.Join(dir, name)
	if err := fs.writeAtomic(p, r); err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("failed to stat attachment: %w", err)
	}
	return newAttachment(dir, info), nil
}

func newAttachment(dir string, info os.FileInfo) *Attachment {
	return &Attachment{
		Filename: info.Name(),
		Size:     info.Size(),
		MTime:    info.ModTime(),
		MimeType: mime.TypeByExtension(filepath.Ext(info.Name())),
		Path:     filepath.Join(dir, info.Name()),
	}
}

// IterAttachments returns an iterator over the attachments of a page, sorted
// by filename.
func (fs *FileStore) IterAttachments(page string) (iter.Seq[*Attachment], error) {
	dir := fs.attachmentDir(page)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return func(yield func(*Attachment) bool) {}, nil
		}
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	return func(yield func(*Attachment) bool) {
		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				// Deleted since ReadDir.
				continue
			}
			if !yield(newAttachment(dir, info)) {
				return
			}
		}
	}, nil
}

// AttachmentPath returns the path of an existing attachment.
func (fs *FileStore) AttachmentPath(page, name string) (string, error) {
	p := filepath.Join(fs.attachmentDir(page), name)
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", errAttachmentNotFound
		}
		return "", fmt.Errorf("failed to stat attachment: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", errAttachmentNotFound
	}
	return p, nil
}

// DeleteAttachment removes an attachment, and the page's attachment directory
// once it is empty.
func (fs *FileStore) DeleteAttachment(page, name string) error {
	if _, err := fs.AttachmentPath(page, name); err != nil {
		return err
	}
	dir := fs.attachmentDir(page)
	if err := os.Remove(filepath.Join(dir, name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errAttachmentNotFound
		}
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	// Fails harmlessly while other attachments remain.
	_ = os.Remove(dir)
	return nil
}

// MoveAttachments moves the attachment directory of oldPage to newPage.
// It reports whether there was anything to move.
func (fs *FileStore) MoveAttachments(oldPage, newPage string) (bool, error) {
	src := fs.attachmentDir(oldPage)
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat attachments: %w", err)
	}
	dst := fs.attachmentDir(newPage)
	if _, err := os.Stat(dst); err == nil {
		return false, fmt.Errorf("attachments of %s: %w", newPage, ErrAlreadyExists)
	}
	if err := os.Rename(src, dst); err != nil {
		return false, fmt.Errorf("failed to move attachments: %w", err)
	}
	return true, nil
}
