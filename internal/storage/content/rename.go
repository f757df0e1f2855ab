// Renames a page together with its attachments and share ids.

package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const renameJournal = "rename.json"

// renameIntent is persisted before a rename touches the disk so Open can
// finish it after a crash.
type renameIntent struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (w *WikiStore) journalPath() string {
	return filepath.Join(w.dir, stagingDir, renameJournal)
}

// RenamePage moves a page, its attachments and its share ids to newName.
//
// The index page can't be renamed nor be the target of a rename. On failure
// the completed steps are undone and the store is left as it was.
func (w *WikiStore) RenamePage(ctx context.Context, oldName, newName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	from, err := CleanPageName(oldName)
	if err != nil {
		return errPageNotFound
	}
	to, err := CleanPageName(newName)
	if err != nil {
		return err
	}
	if IsReservedPage(from) || IsReservedPage(to) {
		return errIndexRename
	}
	if from == to {
		return errSameName
	}

	unlock := w.locks.lock(from, to)
	defer unlock()
	if !w.fileStore.PageExists(from) {
		return errPageNotFound
	}
	if _, err := os.Lstat(w.fileStore.pagePath(to)); err == nil {
		return fmt.Errorf("%s: %w", to, errPageExists)
	}
	if _, err := os.Lstat(w.fileStore.attachmentDir(to)); err == nil {
		return fmt.Errorf("attachments of %s: %w", to, ErrAlreadyExists)
	}

	intent := renameIntent{From: from, To: to}
	if err := w.writeJournal(intent); err != nil {
		return err
	}
	err = w.applyRename(ctx, intent)
	if rerr := os.Remove(w.journalPath()); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
		slog.WarnContext(ctx, "failed to remove rename journal", "err", rerr)
	}
	w.titles.invalidate()
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "page renamed", "from", from, "to", to)
	return nil
}

func (w *WikiStore) writeJournal(intent renameIntent) error {
	data, err := json.Marshal(intent)
	if err != nil {
		return err
	}
	if err := w.fileStore.writeAtomic(w.journalPath(), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write rename journal: %w", err)
	}
	return nil
}

// applyRename moves the page file, then the attachment directory, then the
// share rows. A failing step undoes the ones before it.
func (w *WikiStore) applyRename(ctx context.Context, intent renameIntent) error {
	from, to := intent.From, intent.To
	if err := w.fileStore.MovePage(from, to); err != nil {
		return err
	}
	movedAttachments, err := w.fileStore.MoveAttachments(from, to)
	if err != nil {
		w.undoMovePage(ctx, intent)
		return err
	}
	if _, err := w.shares.Repoint(from, to); err != nil {
		if _, uerr := w.shares.Repoint(to, from); uerr != nil {
			slog.WarnContext(ctx, "failed to restore shares", "page", from, "err", uerr)
		}
		if movedAttachments {
			if _, uerr := w.fileStore.MoveAttachments(to, from); uerr != nil {
				slog.WarnContext(ctx, "failed to restore attachments", "page", from, "err", uerr)
			}
		}
		w.undoMovePage(ctx, intent)
		return err
	}
	return nil
}

func (w *WikiStore) undoMovePage(ctx context.Context, intent renameIntent) {
	if err := w.fileStore.MovePage(intent.To, intent.From); err != nil {
		slog.WarnContext(ctx, "failed to restore page", "page", intent.From, "err", err)
	}
}

// recoverRename rolls an interrupted rename forward. Every step checks
// whether it already happened, so recovery can itself be interrupted.
func (w *WikiStore) recoverRename(ctx context.Context) error {
	data, err := os.ReadFile(w.journalPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read rename journal: %w", err)
	}
	var intent renameIntent
	if err := json.Unmarshal(data, &intent); err != nil || !IsWikiWord(intent.From) || !IsWikiWord(intent.To) {
		// The journal is written atomically, so this is outside damage.
		slog.WarnContext(ctx, "discarding unreadable rename journal", "err", err)
		return os.Remove(w.journalPath())
	}
	slog.WarnContext(ctx, "completing interrupted rename", "from", intent.From, "to", intent.To)
	fs := w.fileStore
	if fs.PageExists(intent.From) && !fs.PageExists(intent.To) {
		if err := fs.MovePage(intent.From, intent.To); err != nil {
			return err
		}
	}
	if _, err := fs.MoveAttachments(intent.From, intent.To); err != nil {
		return err
	}
	if _, err := w.shares.Repoint(intent.From, intent.To); err != nil {
		return err
	}
	return os.Remove(w.journalPath())
}
