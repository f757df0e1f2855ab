package content

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// watch invalidates the page title cache whenever a page file appears,
// disappears or moves behind the store's back.
func (w *WikiStore) watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return err
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go func() {
		defer close(w.done)
		defer func() { _ = fw.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if strings.HasPrefix(filepath.Base(event.Name), ".") {
					continue
				}
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					slog.DebugContext(ctx, "store changed", "file", event.Name, "op", event.Op.String())
					w.titles.invalidate()
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching store", "err", err)
			}
		}
	}()
	return nil
}
