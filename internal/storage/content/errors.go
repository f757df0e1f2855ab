package content

import (
	"errors"
	"fmt"
)

// Error kinds returned by WikiStore. Match them with errors.Is.
var (
	// ErrNotFound is returned when a page, attachment or share id is absent.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a rename target is taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrForbidden is returned for identity changes of the index page.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidStore is returned when the store directory can't be enumerated.
	ErrInvalidStore = errors.New("invalid store")
	// ErrNotShared is returned when a page has no active share.
	ErrNotShared = errors.New("page is not shared")
	// ErrInvalidName is returned for names that can't be stored.
	ErrInvalidName = errors.New("invalid name")
)

var (
	errPageNotFound       = fmt.Errorf("page %w", ErrNotFound)
	errAttachmentNotFound = fmt.Errorf("attachment %w", ErrNotFound)
	errShareNotFound      = fmt.Errorf("share %w", ErrNotFound)
	errPageExists         = fmt.Errorf("page %w", ErrAlreadyExists)
	errIndexRename        = fmt.Errorf("renaming %s: %w", IndexPage, ErrForbidden)
	errSameName           = fmt.Errorf("rename onto itself: %w", ErrInvalidName)
)
