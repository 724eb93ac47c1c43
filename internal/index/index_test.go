package index

import (
	"errors"
	"os"
	"testing"

	"github.com/starford/inkwell/internal/apperr"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "inkwell-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM grants`).Scan(&count); err != nil {
		t.Fatalf("grants table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM posts`).Scan(&count); err != nil {
		t.Fatalf("posts table missing: %v", err)
	}
}

func TestGrants(t *testing.T) {
	db := testDB(t)
	if _, err := db.LoadGrant("site"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("LoadGrant on empty store: err = %v, want ErrNotFound", err)
	}
	if err := db.SaveGrant("site", "/srv/blog"); err != nil {
		t.Fatalf("SaveGrant: %v", err)
	}
	if err := db.SaveGrant("site", "/srv/other"); err != nil {
		t.Fatalf("SaveGrant replace: %v", err)
	}
	g, err := db.LoadGrant("site")
	if err != nil {
		t.Fatalf("LoadGrant: %v", err)
	}
	if g.Path != "/srv/other" || g.SavedAt.IsZero() {
		t.Errorf("grant = %+v", g)
	}
	if err := db.RemoveGrant("site"); err != nil {
		t.Fatalf("RemoveGrant: %v", err)
	}
	if err := db.RemoveGrant("site"); err != nil {
		t.Fatalf("RemoveGrant twice: %v", err)
	}
	if _, err := db.LoadGrant("site"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("grant still present after remove: %v", err)
	}
}

func TestReplacePosts(t *testing.T) {
	db := testDB(t)
	st, err := db.ReplacePosts([]PostRow{
		{Path: "a.md", Title: "A", Checksum: "1", Body: "alpha"},
		{Path: "b.md", Title: "B", Checksum: "2", Body: "beta"},
	})
	if err != nil {
		t.Fatalf("ReplacePosts: %v", err)
	}
	if st.Upserted != 2 || st.Deleted != 0 {
		t.Errorf("first sync stats = %+v", st)
	}

	st, err = db.ReplacePosts([]PostRow{
		{Path: "a.md", Title: "A", Checksum: "1", Body: "alpha"},
		{Path: "c.md", Title: "C", Checksum: "3", Body: "gamma"},
	})
	if err != nil {
		t.Fatalf("ReplacePosts: %v", err)
	}
	if st.Kept != 1 || st.Upserted != 1 || st.Deleted != 1 {
		t.Errorf("second sync stats = %+v", st)
	}

	cs, err := db.AllChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 2 || cs["a.md"] != "1" || cs["c.md"] != "3" {
		t.Errorf("checksums = %v", cs)
	}

	if _, err := db.ReplacePosts(nil); err != nil {
		t.Fatal(err)
	}
	if cs, _ := db.AllChecksums(); len(cs) != 0 {
		t.Errorf("posts after empty replace = %v", cs)
	}
}

func TestUpsertPost_Replaces(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertPost(PostRow{Path: "up.md", Title: "Old", Checksum: "1", Body: "old body"}); err != nil {
		t.Fatalf("UpsertPost: %v", err)
	}
	if err := db.UpsertPost(PostRow{Path: "up.md", Title: "New", Checksum: "2", Draft: true, Body: "new body"}); err != nil {
		t.Fatalf("UpsertPost: %v", err)
	}
	cs, _ := db.AllChecksums()
	if len(cs) != 1 || cs["up.md"] != "2" {
		t.Errorf("checksums = %v, want up.md=2 only", cs)
	}
	res, err := db.Search("old body", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 0 {
		t.Errorf("stale body still searchable: %+v", res)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_, _ = db.ReplacePosts([]PostRow{
		{Path: "s.md", Title: "Search Me", Checksum: "1", Body: "uniqueword appears here"},
		{Path: "t.md", Title: "Other", Checksum: "2", Body: "nothing to see"},
	})

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "s.md" || results[0].Title != "Search Me" {
		t.Errorf("search results = %+v, want 1 hit for s.md", results)
	}
}
