package chromem_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/rivaldy/secondbrain-go/memory"
	"github.com/rivaldy/secondbrain-go/memory/embedder/mock"
	"github.com/rivaldy/secondbrain-go/memory/store/chromem"
)

func newStore(t *testing.T) *chromem.Store {
	t.Helper()
	store, err := chromem.New(mock.New())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return store
}

func chatMeta(created string, tags ...string) memory.Metadata {
	return memory.Metadata{
		Tags:       tags,
		SourceType: memory.SourceTypeChat,
		Source:     memory.SourceUser,
		CreatedAt:  created,
	}
}

func TestInsertAndGetRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	ids, err := store.Insert(ctx, "user-1",
		[]string{"second fact", "first fact"},
		[]memory.Metadata{
			chatMeta("2025-06-02T00:00:00Z", "work"),
			chatMeta("2025-06-01T00:00:00Z", "personal"),
		})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d ids, want 2", len(ids))
	}

	records, err := store.Get(ctx, "user-1", 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	// Oldest first.
	if records[0].Content != "first fact" || records[1].Content != "second fact" {
		t.Errorf("order = %q, %q", records[0].Content, records[1].Content)
	}
	if !reflect.DeepEqual(records[0].Meta.Tags, []string{"personal"}) {
		t.Errorf("tags = %v", records[0].Meta.Tags)
	}
	if records[0].Meta.UserScope != "user-1" {
		t.Errorf("scope = %q", records[0].Meta.UserScope)
	}

	limited, err := store.Get(ctx, "user-1", 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(limited) != 1 || limited[0].Content != "first fact" {
		t.Errorf("limited fetch = %+v", limited)
	}
}

func TestInsertRejectsMismatchedLengths(t *testing.T) {
	store := newStore(t)

	_, err := store.Insert(context.Background(), "user-1", []string{"a", "b"}, []memory.Metadata{{}})
	if err == nil {
		t.Error("expected length mismatch error")
	}
}

func TestSearchIsScopedToUser(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	ids1, err := store.Insert(ctx, "user-1", []string{"the wifi password is hunter2"},
		[]memory.Metadata{chatMeta("2025-06-01T00:00:00Z")})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := store.Insert(ctx, "user-2", []string{"likes green tea"},
		[]memory.Metadata{chatMeta("2025-06-01T00:00:00Z")}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Identical text embeds identically with the mock embedder, so the
	// owner's exact-text query comes back at distance ~0.
	scored, err := store.SearchWithScore(ctx, "user-1", "the wifi password is hunter2", 10)
	if err != nil {
		t.Fatalf("SearchWithScore: %v", err)
	}
	if len(scored) != 1 {
		t.Fatalf("got %d results, want 1", len(scored))
	}
	if scored[0].ID != ids1[0] {
		t.Errorf("result id = %q, want %q", scored[0].ID, ids1[0])
	}
	if scored[0].Distance > 0.01 {
		t.Errorf("exact match distance = %f", scored[0].Distance)
	}

	// The same query under user-2's scope must never return user-1's record.
	scored, err = store.SearchWithScore(ctx, "user-2", "the wifi password is hunter2", 10)
	if err != nil {
		t.Fatalf("SearchWithScore: %v", err)
	}
	for _, sr := range scored {
		if sr.ID == ids1[0] {
			t.Errorf("user-1's record leaked into user-2's results")
		}
	}
}

func TestSearchEmptyStore(t *testing.T) {
	store := newStore(t)

	scored, err := store.SearchWithScore(context.Background(), "user-1", "anything", 10)
	if err != nil {
		t.Fatalf("SearchWithScore: %v", err)
	}
	if len(scored) != 0 {
		t.Errorf("got %d results from an empty store", len(scored))
	}
}

func TestDeleteIsScopedToUser(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	ids, err := store.Insert(ctx, "user-1", []string{"a fact"},
		[]memory.Metadata{chatMeta("2025-06-01T00:00:00Z")})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Another user deleting by id is a no-op.
	if err := store.Delete(ctx, "user-2", ids[0]); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	records, err := store.Get(ctx, "user-1", 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(records) != 1 {
		t.Fatal("record was deleted by a non-owner")
	}

	if err := store.Delete(ctx, "user-1", ids[0]); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	records, err = store.Get(ctx, "user-1", 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records after delete", len(records))
	}
}

func TestUpdateMetadataKeepsContentSearchable(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	ids, err := store.Insert(ctx, "user-1", []string{"pasta needs basil"},
		[]memory.Metadata{chatMeta("2025-06-01T00:00:00Z", "recipes")})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	meta := chatMeta("2025-06-01T00:00:00Z", "recipe")
	if err := store.UpdateMetadata(ctx, "user-1", ids[0], meta); err != nil {
		t.Fatalf("UpdateMetadata: %v", err)
	}

	records, err := store.Get(ctx, "user-1", 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(records[0].Meta.Tags, []string{"recipe"}) {
		t.Errorf("tags after update = %v", records[0].Meta.Tags)
	}
	if records[0].Content != "pasta needs basil" {
		t.Errorf("content changed during update: %q", records[0].Content)
	}

	scored, err := store.SearchWithScore(ctx, "user-1", "pasta needs basil", 5)
	if err != nil {
		t.Fatalf("SearchWithScore: %v", err)
	}
	if len(scored) != 1 || scored[0].Distance > 0.01 {
		t.Errorf("record no longer searchable after update: %+v", scored)
	}

	// Updating through the wrong scope fails.
	if err := store.UpdateMetadata(ctx, "user-2", ids[0], meta); err == nil {
		t.Error("expected scope check to reject non-owner update")
	}
}
