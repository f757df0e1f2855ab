package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/maruel/wikistore/internal/storage"
	"github.com/maruel/wikistore/internal/storage/content"
	"gopkg.in/yaml.v3"
)

// command is one subcommand. maxArgs < 0 means unbounded.
type command struct {
	name    string
	args    string
	help    string
	minArgs int
	maxArgs int
	run     func(ctx context.Context, w *content.WikiStore, e *env) error
}

// env is what a subcommand gets besides the store.
type env struct {
	args  []string
	stdin io.Reader
	out   *output
}

var commands = []command{
	{"read", "PAGE", "Print a page", 1, 1, cmdRead},
	{"write", "PAGE [FILE]", "Write a page from FILE or stdin", 1, 2, cmdWrite},
	{"list", "", "List pages with their size", 0, 0, cmdList},
	{"titles", "[QUERY...]", "List page names, or those matching every term", 0, -1, cmdTitles},
	{"search", "QUERY...", "List pages whose content matches QUERY", 1, -1, cmdSearch},
	{"rename", "OLD NEW", "Rename a page with its attachments and shares", 2, 2, cmdRename},
	{"share", "PAGE", "Print the share id of a page, creating it", 1, 1, cmdShare},
	{"unshare", "PAGE", "Revoke the share id of a page", 1, 1, cmdUnshare},
	{"shares", "", "List shared pages", 0, 0, cmdShares},
	{"resolve", "ID", "Print the page a share id points at", 1, 1, cmdResolve},
	{"attach", "PAGE FILE [NAME]", "Attach FILE (- for stdin) to a page", 2, 3, cmdAttach},
	{"attachments", "PAGE", "List the attachments of a page", 1, 1, cmdAttachments},
	{"fetch", "PAGE NAME", "Print an attachment", 2, 2, cmdFetch},
	{"detach", "PAGE NAME", "Delete an attachment", 2, 2, cmdDetach},
	{"config", "[save]", "Print the effective configuration, or save it", 0, 1, nil},
}

func findCommand(name string) *command {
	for i := range commands {
		if commands[i].name == name {
			return &commands[i]
		}
	}
	return nil
}

// output prints either text or JSON.
type output struct {
	w    io.Writer
	json bool
}

func (o *output) encode(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *output) lines(l []string) error {
	if o.json {
		return o.encode(l)
	}
	for _, s := range l {
		if _, err := fmt.Fprintln(o.w, s); err != nil {
			return err
		}
	}
	return nil
}

func (o *output) line(s string) error {
	if o.json {
		return o.encode(s)
	}
	_, err := fmt.Fprintln(o.w, s)
	return err
}

func cmdRead(ctx context.Context, w *content.WikiStore, e *env) error {
	text, err := w.ReadPage(ctx, e.args[0])
	if err != nil {
		return err
	}
	if e.out.json {
		return e.out.encode(content.PageInfo{Title: e.args[0], Contents: text})
	}
	_, err = io.WriteString(e.out.w, text)
	return err
}

func cmdWrite(ctx context.Context, w *content.WikiStore, e *env) error {
	r := e.stdin
	if len(e.args) == 2 && e.args[1] != "-" {
		f, err := os.Open(e.args[1])
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return w.WritePage(ctx, e.args[0], string(data))
}

func cmdList(ctx context.Context, w *content.WikiStore, e *env) error {
	infos, err := w.GetPageInfo(ctx)
	if err != nil {
		return err
	}
	slices.SortFunc(infos, func(a, b content.PageInfo) int { return strings.Compare(a.Title, b.Title) })
	if e.out.json {
		return e.out.encode(infos)
	}
	for _, info := range infos {
		if _, err := fmt.Fprintf(e.out.w, "%s\t%d\n", info.Title, len(info.Contents)); err != nil {
			return err
		}
	}
	return nil
}

func cmdTitles(ctx context.Context, w *content.WikiStore, e *env) error {
	var titles []string
	var err error
	if len(e.args) == 0 {
		titles, err = w.PageTitles(ctx)
	} else {
		titles, err = w.SearchTitles(ctx, strings.Join(e.args, " "))
	}
	if err != nil {
		return err
	}
	return e.out.lines(titles)
}

func cmdSearch(ctx context.Context, w *content.WikiStore, e *env) error {
	pages, err := w.SearchContents(ctx, strings.Join(e.args, " "))
	if err != nil {
		return err
	}
	return e.out.lines(pages)
}

func cmdRename(ctx context.Context, w *content.WikiStore, e *env) error {
	return w.RenamePage(ctx, e.args[0], e.args[1])
}

func cmdShare(ctx context.Context, w *content.WikiStore, e *env) error {
	id, err := w.SharePage(ctx, e.args[0])
	if err != nil {
		return err
	}
	return e.out.line(id)
}

func cmdUnshare(ctx context.Context, w *content.WikiStore, e *env) error {
	return w.UnsharePage(ctx, e.args[0])
}

func cmdShares(ctx context.Context, w *content.WikiStore, e *env) error {
	shared, err := w.GetSharedPages(ctx)
	if err != nil {
		return err
	}
	if e.out.json {
		return e.out.encode(shared)
	}
	for _, page := range slices.Sorted(maps.Keys(shared)) {
		if _, err := fmt.Fprintf(e.out.w, "%s\t%s\n", page, shared[page]); err != nil {
			return err
		}
	}
	return nil
}

func cmdResolve(ctx context.Context, w *content.WikiStore, e *env) error {
	page, err := w.PageNameForShareID(ctx, e.args[0])
	if err != nil {
		return err
	}
	return e.out.line(page)
}

func cmdAttach(ctx context.Context, w *content.WikiStore, e *env) error {
	page, src := e.args[0], e.args[1]
	name := filepath.Base(src)
	if len(e.args) == 3 {
		name = e.args[2]
	}
	if src == "-" {
		if len(e.args) != 3 {
			return errors.New("attaching from stdin requires NAME")
		}
		return w.AddAttachmentData(ctx, page, name, e.stdin)
	}
	return w.AddAttachment(ctx, page, name, src)
}

func cmdAttachments(ctx context.Context, w *content.WikiStore, e *env) error {
	list, err := w.GetAttachmentList(ctx, e.args[0])
	if err != nil {
		return err
	}
	if e.out.json {
		return e.out.encode(list)
	}
	for _, a := range list {
		if _, err := fmt.Fprintf(e.out.w, "%s\t%d\t%s\n", a.Filename, a.Size, a.MTime.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return nil
}

func cmdFetch(ctx context.Context, w *content.WikiStore, e *env) error {
	data, err := w.ReadAttachment(ctx, e.args[0], e.args[1])
	if err != nil {
		return err
	}
	_, err = e.out.w.Write(data)
	return err
}

func cmdDetach(ctx context.Context, w *content.WikiStore, e *env) error {
	return w.DeleteAttachment(ctx, e.args[0], e.args[1])
}

func cmdConfig(cfg *storage.Config, path string, args []string, out io.Writer) error {
	if len(args) == 1 {
		if args[0] != "save" {
			return fmt.Errorf("unknown config action %q", args[0])
		}
		return cfg.Save(path)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
