package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ergolyam/clipbridge/internal/domain"
)

func TestClipRepoInsertAndListRecent(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "clipbridge.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := NewClipRepo(db)
	base := time.Now().UTC().Truncate(time.Millisecond)

	entries := []domain.ClipEntry{
		{Body: "oldest", Origin: domain.ClipOriginLocal, At: base},
		{Body: "middle", Origin: domain.ClipOriginRemote, At: base.Add(time.Second)},
		{Body: "newest", Origin: domain.ClipOriginLocal, At: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		if _, err := repo.Insert(ctx, e); err != nil {
			t.Fatalf("insert %q: %v", e.Body, err)
		}
	}

	got, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Body != "newest" || got[1].Body != "middle" {
		t.Fatalf("expected newest-first ordering, got %q then %q", got[0].Body, got[1].Body)
	}
	if got[0].Origin != domain.ClipOriginLocal {
		t.Fatalf("origin mismatch: got %d", got[0].Origin)
	}
	if !got[0].At.Equal(base.Add(2 * time.Second)) {
		t.Fatalf("timestamp did not roundtrip: got %v", got[0].At)
	}
}

func TestClipRepoPruneKeepsNewest(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "clipbridge.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := NewClipRepo(db)
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		entry := domain.ClipEntry{
			Body:   string(rune('a' + i)),
			Origin: domain.ClipOriginLocal,
			At:     base.Add(time.Duration(i) * time.Second),
		}
		if _, err := repo.Insert(ctx, entry); err != nil {
			t.Fatalf("insert entry %d: %v", i, err)
		}
	}

	removed, err := repo.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed rows, got %d", removed)
	}

	got, err := repo.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list after prune: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 surviving entries, got %d", len(got))
	}
	if got[0].Body != "e" || got[1].Body != "d" {
		t.Fatalf("expected newest entries to survive, got %q then %q", got[0].Body, got[1].Body)
	}
}

func TestClipRepoListRecentEmpty(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "clipbridge.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	got, err := NewClipRepo(db).ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(got))
	}
}
