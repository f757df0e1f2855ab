package content

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
)

// AssetService handles page attachments.
type AssetService struct {
	fileStore *FileStore
	locks     *pageLocks
}

// NewAssetService creates a new attachment service.
func NewAssetService(fileStore *FileStore, locks *pageLocks) *AssetService {
	return &AssetService{
		fileStore: fileStore,
		locks:     locks,
	}
}

// pageName cleans page and checks the page exists. Invalid names are reported
// as missing pages.
func (s *AssetService) pageName(page string) (string, error) {
	name, err := CleanPageName(page)
	if err != nil || !s.fileStore.PageExists(name) {
		return "", errPageNotFound
	}
	return name, nil
}

// AddAttachment copies the file at sourcePath into the attachments of page.
func (s *AssetService) AddAttachment(ctx context.Context, page, filename, sourcePath string) (*Attachment, error) {
	f, err := os.Open(sourcePath) //nolint:gosec // G304: sourcePath is chosen by the caller
	if err != nil {
		return nil, fmt.Errorf("failed to open attachment source: %w", err)
	}
	defer func() { _ = f.Close() }()
	return s.AddAttachmentData(ctx, page, filename, f)
}

// AddAttachmentData stores the bytes of r as an attachment of page, replacing
// any attachment with the same name.
func (s *AssetService) AddAttachmentData(ctx context.Context, page, filename string, r io.Reader) (*Attachment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := CleanAttachmentName(filename)
	if err != nil {
		return nil, err
	}
	page, err = CleanPageName(page)
	if err != nil {
		return nil, errPageNotFound
	}
	unlock := s.locks.lock(page)
	defer unlock()
	if !s.fileStore.PageExists(page) {
		return nil, errPageNotFound
	}
	a, err := s.fileStore.SaveAttachment(page, name, r)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "attachment saved", "page", page, "file", name, "size", a.Size)
	return a, nil
}

// ListAttachments returns the attachments of page sorted by filename.
func (s *AssetService) ListAttachments(ctx context.Context, page string) ([]Attachment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := s.pageName(page)
	if err != nil {
		return nil, err
	}
	it, err := s.fileStore.IterAttachments(page)
	if err != nil {
		return nil, err
	}
	out := []Attachment{}
	for a := range it {
		out = append(out, *a)
	}
	slices.SortFunc(out, func(a, b Attachment) int { return strings.Compare(a.Filename, b.Filename) })
	return out, nil
}

// AttachmentPath returns the on-disk path of an attachment.
func (s *AssetService) AttachmentPath(ctx context.Context, page, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	page, err := s.pageName(page)
	if err != nil {
		return "", err
	}
	name, err := CleanAttachmentName(filename)
	if err != nil {
		return "", errAttachmentNotFound
	}
	return s.fileStore.AttachmentPath(page, name)
}

// ReadAttachment returns the content of an attachment.
func (s *AssetService) ReadAttachment(ctx context.Context, page, filename string) ([]byte, error) {
	p, err := s.AttachmentPath(ctx, page, filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p) //nolint:gosec // G304: p is built from sanitized names
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errAttachmentNotFound
		}
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	return data, nil
}

// DeleteAttachment removes an attachment.
func (s *AssetService) DeleteAttachment(ctx context.Context, page, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	page, err := CleanPageName(page)
	if err != nil {
		return errPageNotFound
	}
	name, err := CleanAttachmentName(filename)
	if err != nil {
		return errAttachmentNotFound
	}
	unlock := s.locks.lock(page)
	defer unlock()
	if !s.fileStore.PageExists(page) {
		return errPageNotFound
	}
	return s.fileStore.DeleteAttachment(page, name)
}
