package index

// GrantStore remembers which folder the user opened, across restarts.
type GrantStore interface {
	SaveGrant(key, path string) error
	LoadGrant(key string) (Grant, error)
	RemoveGrant(key string) error
}

// PostMirror keeps a searchable copy of the post index.
type PostMirror interface {
	ReplacePosts(rows []PostRow) (SyncStats, error)
	UpsertPost(row PostRow) error
	Search(query string, limit int) ([]SearchResult, error)
}

// Verify *DB satisfies both interfaces at compile time.
var (
	_ GrantStore = (*DB)(nil)
	_ PostMirror = (*DB)(nil)
)
