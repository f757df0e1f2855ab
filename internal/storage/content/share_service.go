// Persists the share id to page name mapping.

package content

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/maruel/ksid"
	"github.com/maruel/wikistore/internal/jsonldb"
	"github.com/maruel/wikistore/internal/storage"
)

// Share is one share id ever issued for a page.
//
// Rows are never deleted: unsharing sets Revoked, which keeps the full set of
// issued ids around so a page never gets the same id twice.
type Share struct {
	ID      ksid.ID      `json:"id"`
	ShareID string       `json:"share_id"`
	Page    string       `json:"page"`
	Created storage.Time `json:"created"`
	Revoked storage.Time `json:"revoked,omitempty"`
}

// Clone returns a copy of the Share.
func (s *Share) Clone() *Share {
	c := *s
	return &c
}

// GetID returns the row ID.
func (s *Share) GetID() ksid.ID {
	return s.ID
}

// Validate checks that the Share is well formed.
func (s *Share) Validate() error {
	if s.ID.IsZero() {
		return errors.New("id is required")
	}
	if _, err := uuid.Parse(s.ShareID); err != nil || len(s.ShareID) != 36 {
		return fmt.Errorf("malformed share id %q", s.ShareID)
	}
	if !IsWikiWord(s.Page) {
		return fmt.Errorf("page %q: %w", s.Page, ErrInvalidName)
	}
	return nil
}

// Active reports whether the share has not been revoked.
func (s *Share) Active() bool {
	return s.Revoked.IsZero()
}

// ShareService handles the share registry.
//
// It checks nothing about page existence; WikiStore does, under the page lock.
type ShareService struct {
	mu        sync.Mutex
	table     *jsonldb.Table[*Share]
	byShareID *jsonldb.UniqueIndex[string, *Share]
	byPage    *jsonldb.Index[string, *Share]
}

// NewShareService loads the registry stored in rootDir.
func NewShareService(rootDir string) (*ShareService, error) {
	table, err := jsonldb.NewTable[*Share](filepath.Join(rootDir, sharesFile))
	if err != nil {
		return nil, err
	}
	return &ShareService{
		table:     table,
		byShareID: jsonldb.NewUniqueIndex(table, func(s *Share) string { return s.ShareID }),
		byPage:    jsonldb.NewIndex(table, func(s *Share) string { return s.Page }),
	}, nil
}

// active returns the active share of page or nil. Must be called with mu held.
func (s *ShareService) active(page string) *Share {
	for row := range s.byPage.Iter(page) {
		if row.Active() {
			return row
		}
	}
	return nil
}

// Share returns the active share id of page, minting one if needed.
func (s *ShareService) Share(page string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row := s.active(page); row != nil {
		return row.ShareID, nil
	}
	// Every id ever issued stays in byShareID, so a fresh one differs from all
	// previous ids of this page.
	id := uuid.NewString()
	for s.byShareID.Has(id) {
		id = uuid.NewString()
	}
	row := &Share{
		ID:      ksid.NewID(),
		ShareID: id,
		Page:    page,
		Created: storage.Now(),
	}
	if err := s.table.Append(row); err != nil {
		return "", fmt.Errorf("failed to share %s: %w", page, err)
	}
	return id, nil
}

// Unshare revokes the active share of page.
func (s *ShareService) Unshare(page string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.active(page)
	if row == nil {
		return fmt.Errorf("%s: %w", page, ErrNotShared)
	}
	row.Revoked = storage.Now()
	if _, err := s.table.Update(row); err != nil {
		return fmt.Errorf("failed to unshare %s: %w", page, err)
	}
	return nil
}

// IsShared reports whether page has an active share.
func (s *ShareService) IsShared(page string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active(page) != nil
}

// ShareID returns the active share id of page.
func (s *ShareService) ShareID(page string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.active(page)
	if row == nil {
		return "", fmt.Errorf("%s: %w", page, ErrNotShared)
	}
	return row.ShareID, nil
}

// PageForShareID returns the page an active share id points at.
func (s *ShareService) PageForShareID(shareID string) (string, error) {
	row := s.byShareID.Get(shareID)
	if row == nil || !row.Active() {
		return "", errShareNotFound
	}
	return row.Page, nil
}

// Shared returns page name -> active share id.
func (s *ShareService) Shared() map[string]string {
	out := map[string]string{}
	for row := range s.table.All() {
		if row.Active() {
			out[row.Page] = row.ShareID
		}
	}
	return out
}

// Repoint moves every share row of oldPage, revoked ones included, to newPage.
// It returns the number of rows changed.
func (s *ShareService) Repoint(oldPage, newPage string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []*Share
	for row := range s.byPage.Iter(oldPage) {
		rows = append(rows, row)
	}
	for i, row := range rows {
		row.Page = newPage
		if _, err := s.table.Update(row); err != nil {
			return i, fmt.Errorf("failed to repoint share of %s: %w", oldPage, err)
		}
	}
	return len(rows), nil
}
