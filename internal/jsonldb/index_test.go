package jsonldb

import (
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/maruel/ksid"
)

// grant is a revocable token pointing at a page.
type grant struct {
	ID      ksid.ID `json:"id"`
	Token   string  `json:"token"`
	Page    string  `json:"page"`
	Revoked bool    `json:"revoked,omitempty"`
}

func (g *grant) Clone() *grant {
	c := *g
	return &c
}

func (g *grant) GetID() ksid.ID {
	return g.ID
}

func (g *grant) Validate() error {
	if g.Token == "" {
		return errors.New("token is required")
	}
	return nil
}

func grantTable(t *testing.T, path string, rows ...*grant) *Table[*grant] {
	t.Helper()
	table, err := NewTable[*grant](path)
	if err != nil {
		t.Fatalf("NewTable error: %v", err)
	}
	for _, g := range rows {
		if err := table.Append(g); err != nil {
			t.Fatal(err)
		}
	}
	return table
}

func byToken(table *Table[*grant]) *UniqueIndex[string, *grant] {
	return NewUniqueIndex(table, func(g *grant) string { return g.Token })
}

func byPage(table *Table[*grant]) *Index[string, *grant] {
	return NewIndex(table, func(g *grant) string { return g.Page })
}

func TestUniqueIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grants.jsonl")
	table := grantTable(t, path, &grant{ID: 1, Token: "t1", Page: "HomePage"})
	idx := byToken(table)

	t.Run("existing rows", func(t *testing.T) {
		if got := idx.Get("t1"); got == nil || got.ID != 1 {
			t.Errorf("Get(t1) = %+v, want ID=1", got)
		}
		if got := idx.Get("nope"); got != nil {
			t.Errorf("Get(nope) = %+v, want nil", got)
		}
		if idx.Has("nope") {
			t.Error("Has(nope) = true")
		}
	})

	t.Run("revoked rows stay reachable", func(t *testing.T) {
		if err := table.Append(&grant{ID: 2, Token: "t2", Page: "HomePage"}); err != nil {
			t.Fatal(err)
		}
		if _, err := table.Update(&grant{ID: 2, Token: "t2", Page: "HomePage", Revoked: true}); err != nil {
			t.Fatal(err)
		}
		if !idx.Has("t2") {
			t.Error("Has(t2) = false after revocation")
		}
		if got := idx.Get("t2"); got == nil || !got.Revoked {
			t.Errorf("Get(t2) = %+v, want revoked", got)
		}
	})

	t.Run("repointing keeps the token", func(t *testing.T) {
		if _, err := table.Update(&grant{ID: 1, Token: "t1", Page: "OtherPage"}); err != nil {
			t.Fatal(err)
		}
		if got := idx.Get("t1"); got == nil || got.Page != "OtherPage" {
			t.Errorf("Get(t1) = %+v, want Page=OtherPage", got)
		}
	})

	t.Run("returned rows are clones", func(t *testing.T) {
		idx.Get("t1").Page = "Mutated"
		if got := idx.Get("t1"); got.Page != "OtherPage" {
			t.Errorf("Get(t1).Page = %q", got.Page)
		}
	})

	t.Run("reload", func(t *testing.T) {
		again := byToken(grantTable(t, path))
		if got := again.Get("t2"); got == nil || !got.Revoked {
			t.Errorf("Get(t2) = %+v, want revoked", got)
		}
		if got := again.Get("t1"); got == nil || got.Page != "OtherPage" {
			t.Errorf("Get(t1) = %+v, want Page=OtherPage", got)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if _, err := table.Delete(2); err != nil {
			t.Fatal(err)
		}
		if idx.Has("t2") {
			t.Error("Has(t2) after delete = true")
		}
	})

	t.Run("duplicate token", func(t *testing.T) {
		if err := table.Append(&grant{ID: 7, Token: "t1", Page: "NewerPage"}); err != nil {
			t.Fatal(err)
		}
		if got := idx.Get("t1"); got == nil || got.ID != 7 {
			t.Errorf("Get(t1) = %+v, want ID=7", got)
		}
		if _, err := table.Delete(7); err != nil {
			t.Fatal(err)
		}
		if got := idx.Get("t1"); got == nil || got.ID != 1 {
			t.Errorf("Get(t1) after delete = %+v, want ID=1", got)
		}
	})
}

func TestIndex(t *testing.T) {
	table := grantTable(t, filepath.Join(t.TempDir(), "grants.jsonl"),
		&grant{ID: 3, Token: "c", Page: "HomePage"},
		&grant{ID: 1, Token: "a", Page: "HomePage", Revoked: true},
		&grant{ID: 2, Token: "b", Page: "OtherPage"},
	)
	idx := byPage(table)
	ids := func(page string) []ksid.ID {
		var out []ksid.ID
		for g := range idx.Iter(page) {
			out = append(out, g.ID)
		}
		return out
	}

	if got := ids("HomePage"); !slices.Equal(got, []ksid.ID{1, 3}) {
		t.Errorf("Iter(HomePage) = %v, want [1 3]", got)
	}
	for g := range idx.Iter("HomePage") {
		if g.ID != 1 {
			t.Errorf("first row = %d, want 1", g.ID)
		}
		break
	}

	// Repoint every grant of HomePage, revoked ones included.
	var rows []*grant
	for g := range idx.Iter("HomePage") {
		rows = append(rows, g)
	}
	for _, g := range rows {
		g.Page = "MovedPage"
		if _, err := table.Update(g); err != nil {
			t.Fatal(err)
		}
	}
	if got := ids("HomePage"); len(got) != 0 {
		t.Errorf("Iter(HomePage) after repoint = %v, want empty", got)
	}
	if got := ids("MovedPage"); !slices.Equal(got, []ksid.ID{1, 3}) {
		t.Errorf("Iter(MovedPage) = %v, want [1 3]", got)
	}

	// Revoking keeps the row under its page.
	if _, err := table.Update(&grant{ID: 2, Token: "b", Page: "OtherPage", Revoked: true}); err != nil {
		t.Fatal(err)
	}
	if got := ids("OtherPage"); !slices.Equal(got, []ksid.ID{2}) {
		t.Errorf("Iter(OtherPage) = %v, want [2]", got)
	}

	if _, err := table.Delete(3); err != nil {
		t.Fatal(err)
	}
	if got := ids("MovedPage"); !slices.Equal(got, []ksid.ID{1}) {
		t.Errorf("Iter(MovedPage) after delete = %v, want [1]", got)
	}
}
