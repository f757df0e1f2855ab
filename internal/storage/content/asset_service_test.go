package content

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func attachmentNames(list []Attachment) []string {
	names := make([]string, len(list))
	for i, a := range list {
		names[i] = a.Filename
	}
	return names
}

// findAttachment returns the listing entry of one attachment.
func findAttachment(t *testing.T, w *WikiStore, page, name string) Attachment {
	t.Helper()
	list, err := w.GetAttachmentList(t.Context(), page)
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range list {
		if a.Filename == name {
			return a
		}
	}
	t.Fatalf("attachment %s of %s not listed in %v", name, page, attachmentNames(list))
	return Attachment{}
}

// checkUnchanged verifies an attachment kept its metadata and bytes.
func checkUnchanged(t *testing.T, w *WikiStore, old Attachment, content string) {
	t.Helper()
	got := findAttachment(t, w, "WikiIndex", old.Filename)
	if got.Size != old.Size || !got.MTime.Equal(old.MTime) || got.MimeType != old.MimeType {
		t.Errorf("%s changed from %+v to %+v", old.Filename, old, got)
	}
	if data, err := w.ReadAttachment(t.Context(), "WikiIndex", old.Filename); err != nil || string(data) != content {
		t.Errorf("%s = %q, %v, want %q", old.Filename, data, err, content)
	}
}

func TestWikiStore_Attachments(t *testing.T) {
	ctx := t.Context()

	t.Run("none by default", func(t *testing.T) {
		w := newTestStore(t, simplePages)
		list, err := w.GetAttachmentList(ctx, "WikiIndex")
		if err != nil {
			t.Fatalf("GetAttachmentList error: %v", err)
		}
		if list == nil || len(list) != 0 {
			t.Errorf("GetAttachmentList = %#v, want empty", list)
		}
	})

	t.Run("missing page", func(t *testing.T) {
		w := newTestStore(t, simplePages)
		if _, err := w.GetAttachmentList(ctx, "NonExistentPage"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetAttachmentList error = %v, want ErrNotFound", err)
		}
		src := writeSource(t, "data")
		if err := w.AddAttachment(ctx, "NonExistentPage", "foo.txt", src); !errors.Is(err, ErrNotFound) {
			t.Errorf("AddAttachment error = %v, want ErrNotFound", err)
		}
		if _, err := os.Stat(filepath.Join(w.Dir(), attachmentsDir, "NonExistentPage")); !os.IsNotExist(err) {
			t.Errorf("attachment directory created for a missing page: %v", err)
		}
	})

	t.Run("create and retrieve", func(t *testing.T) {
		w := newTestStore(t, simplePages)
		const contents = "foobar is a very nice file"
		if err := w.AddAttachment(ctx, "WikiIndex", "foobar.txt", writeSource(t, contents)); err != nil {
			t.Fatalf("AddAttachment error: %v", err)
		}
		list, err := w.GetAttachmentList(ctx, "WikiIndex")
		if err != nil {
			t.Fatal(err)
		}
		if got := attachmentNames(list); !slices.Equal(got, []string{"foobar.txt"}) {
			t.Errorf("attachments = %v", got)
		}
		if list[0].MimeType != "text/plain; charset=utf-8" {
			t.Errorf("MimeType = %q", list[0].MimeType)
		}
		p, err := w.GetAttachmentPath(ctx, "WikiIndex", "foobar.txt")
		if err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(p)
		if err != nil || string(data) != contents {
			t.Errorf("attachment content = %q, %v", data, err)
		}
		data, err = w.ReadAttachment(ctx, "WikiIndex", "foobar.txt")
		if err != nil || string(data) != contents {
			t.Errorf("ReadAttachment = %q, %v", data, err)
		}
	})

	t.Run("from reader", func(t *testing.T) {
		w := newTestStore(t, simplePages)
		if err := w.AddAttachmentData(ctx, "OswaldoPetterson", "b.bin", strings.NewReader("bbb")); err != nil {
			t.Fatal(err)
		}
		if err := w.AddAttachmentData(ctx, "OswaldoPetterson", "a.bin", strings.NewReader("a")); err != nil {
			t.Fatal(err)
		}
		list, err := w.GetAttachmentList(ctx, "OswaldoPetterson")
		if err != nil {
			t.Fatal(err)
		}
		if got := attachmentNames(list); !slices.Equal(got, []string{"a.bin", "b.bin"}) {
			t.Errorf("attachments = %v, want sorted", got)
		}
	})

	t.Run("path tricks on write", func(t *testing.T) {
		w := newTestStore(t, simplePages)
		if err := w.AddAttachment(ctx, "WikiIndex", "../lol.txt", writeSource(t, "lol")); err != nil {
			t.Fatal(err)
		}
		list, err := w.GetAttachmentList(ctx, "WikiIndex")
		if err != nil {
			t.Fatal(err)
		}
		if got := attachmentNames(list); !slices.Equal(got, []string{"lol.txt"}) {
			t.Errorf("attachments = %v", got)
		}
		if _, err := os.Stat(filepath.Join(w.Dir(), "lol.txt")); !os.IsNotExist(err) {
			t.Errorf("attachment escaped its directory: %v", err)
		}
		if _, err := os.Stat(filepath.Join(w.Dir(), attachmentsDir, "lol.txt")); !os.IsNotExist(err) {
			t.Errorf("attachment escaped its directory: %v", err)
		}
	})

	t.Run("path tricks on read", func(t *testing.T) {
		w := newTestStore(t, simplePages)
		const contents = "Some test contents"
		if err := w.AddAttachment(ctx, "WikiIndex", "../contents", writeSource(t, contents)); err != nil {
			t.Fatal(err)
		}
		p, err := w.GetAttachmentPath(ctx, "WikiIndex", "../contents")
		if err != nil {
			t.Fatal(err)
		}
		if want := filepath.Join(w.Dir(), attachmentsDir, "WikiIndex", "contents"); p != want {
			t.Errorf("GetAttachmentPath = %q, want %q", p, want)
		}
		if data, _ := os.ReadFile(p); string(data) != contents {
			t.Errorf("attachment content = %q", data)
		}
		if _, err := w.GetAttachmentPath(ctx, "WikiIndex", "../../WikiIndex"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetAttachmentPath error = %v, want ErrNotFound", err)
		}
	})

	t.Run("size and mtime", func(t *testing.T) {
		w := newTestStore(t, simplePages)
		const contents = "This is a fake, testing file"
		before := time.Now().Truncate(time.Second)
		if err := w.AddAttachment(ctx, "WikiIndex", "foo.txt", writeSource(t, contents)); err != nil {
			t.Fatal(err)
		}
		list, err := w.GetAttachmentList(ctx, "WikiIndex")
		if err != nil {
			t.Fatal(err)
		}
		if list[0].Size != int64(len(contents)) {
			t.Errorf("Size = %d, want %d", list[0].Size, len(contents))
		}
		if mt := list[0].MTime; mt.Before(before) || mt.After(before.Add(3*time.Second)) {
			t.Errorf("MTime = %v, want within 3s of %v", mt, before)
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		w := newTestStore(t, simplePages)
		if err := w.AddAttachment(ctx, "WikiIndex", "foo.txt", writeSource(t, "Original contents")); err != nil {
			t.Fatal(err)
		}
		if err := w.AddAttachment(ctx, "WikiIndex", "bar.txt", writeSource(t, "sibling")); err != nil {
			t.Fatal(err)
		}
		oldFoo := findAttachment(t, w, "WikiIndex", "foo.txt")
		oldBar := findAttachment(t, w, "WikiIndex", "bar.txt")
		const updated = "Updated, and longer, contents"
		if err := w.AddAttachment(ctx, "WikiIndex", "foo.txt", writeSource(t, updated)); err != nil {
			t.Fatal(err)
		}
		list, err := w.GetAttachmentList(ctx, "WikiIndex")
		if err != nil {
			t.Fatal(err)
		}
		if got := attachmentNames(list); !slices.Equal(got, []string{"bar.txt", "foo.txt"}) {
			t.Errorf("attachments = %v", got)
		}
		if data, _ := w.ReadAttachment(ctx, "WikiIndex", "foo.txt"); string(data) != updated {
			t.Errorf("content = %q", data)
		}
		foo := findAttachment(t, w, "WikiIndex", "foo.txt")
		if foo.Size != int64(len(updated)) {
			t.Errorf("Size = %d, want %d", foo.Size, len(updated))
		}
		if foo.MTime.Before(oldFoo.MTime) {
			t.Errorf("MTime went back from %v to %v", oldFoo.MTime, foo.MTime)
		}
		checkUnchanged(t, w, oldBar, "sibling")
	})

	t.Run("delete", func(t *testing.T) {
		w := newTestStore(t, simplePages)
		if err := w.AddAttachment(ctx, "WikiIndex", "foo.txt", writeSource(t, "foobar")); err != nil {
			t.Fatal(err)
		}
		if err := w.AddAttachment(ctx, "WikiIndex", "bar.txt", writeSource(t, "sibling")); err != nil {
			t.Fatal(err)
		}
		oldBar := findAttachment(t, w, "WikiIndex", "bar.txt")
		if err := w.DeleteAttachment(ctx, "WikiIndex", "foo.txt"); err != nil {
			t.Fatalf("DeleteAttachment error: %v", err)
		}
		list, err := w.GetAttachmentList(ctx, "WikiIndex")
		if err != nil {
			t.Fatal(err)
		}
		if got := attachmentNames(list); !slices.Equal(got, []string{"bar.txt"}) {
			t.Errorf("attachments = %v, want [bar.txt]", got)
		}
		if _, err := w.ReadAttachment(ctx, "WikiIndex", "foo.txt"); !errors.Is(err, ErrNotFound) {
			t.Errorf("ReadAttachment error = %v, want ErrNotFound", err)
		}
		checkUnchanged(t, w, oldBar, "sibling")
	})

	t.Run("delete missing", func(t *testing.T) {
		w := newTestStore(t, simplePages)
		if err := w.DeleteAttachment(ctx, "WikiIndex", "idontexist.txt"); !errors.Is(err, ErrNotFound) {
			t.Errorf("DeleteAttachment error = %v, want ErrNotFound", err)
		}
		if err := w.DeleteAttachment(ctx, "NoSuchPage", "idontexist.txt"); !errors.Is(err, ErrNotFound) {
			t.Errorf("DeleteAttachment error = %v, want ErrNotFound", err)
		}
	})

	t.Run("invalid filename", func(t *testing.T) {
		w := newTestStore(t, simplePages)
		if err := w.AddAttachmentData(ctx, "WikiIndex", "..", strings.NewReader("x")); !errors.Is(err, ErrInvalidName) {
			t.Errorf("AddAttachmentData error = %v, want ErrInvalidName", err)
		}
	})

	t.Run("missing source", func(t *testing.T) {
		w := newTestStore(t, simplePages)
		if err := w.AddAttachment(ctx, "WikiIndex", "foo.txt", filepath.Join(t.TempDir(), "nope")); err == nil {
			t.Error("AddAttachment succeeded with a missing source")
		}
	})
}
