// Package chromem implements memory.Store on top of chromem-go, a pure Go
// embedded vector database.
//
// All users share one collection. Isolation is payload-based: every document
// carries a user_scope metadata key and every query passes it as a where
// filter. chromem has no bulk-fetch or in-place update API, so the store
// keeps a guarded side index of documents for metadata-filtered fetches and
// performs updates as read-delete-reinsert under the store lock.
package chromem

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/rivaldy/secondbrain-go/memory"
)

const collectionName = "second_brain"

// Store wraps a single shared chromem collection.
type Store struct {
	db       *chromem.DB
	col      *chromem.Collection
	embedder memory.Embedder

	mu   sync.RWMutex
	docs map[string]indexedDoc // side index for bulk fetch
}

type indexedDoc struct {
	content string
	meta    map[string]string
}

// New creates a store backed by an in-memory chromem database.
// The embedder is installed as the collection's embedding function, so
// inserts and queries embed through it.
func New(embedder memory.Embedder) (*Store, error) {
	db := chromem.NewDB()

	embedFn := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}

	col, err := db.CreateCollection(collectionName, nil, embedFn)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &Store{
		db:       db,
		col:      col,
		embedder: embedder,
		docs:     make(map[string]indexedDoc),
	}, nil
}

// Insert adds one record per text in one batched call and returns the
// assigned ids.
func (s *Store) Insert(ctx context.Context, userID string, texts []string, metas []memory.Metadata) ([]string, error) {
	if len(texts) != len(metas) {
		return nil, fmt.Errorf("insert: %d texts but %d metadatas", len(texts), len(metas))
	}
	if len(texts) == 0 {
		return nil, nil
	}

	docs := make([]chromem.Document, len(texts))
	ids := make([]string, len(texts))
	for i, text := range texts {
		meta := metas[i]
		meta.UserScope = userID // the caller's scope always wins
		ids[i] = uuid.New().String()
		docs[i] = chromem.Document{
			ID:       ids[i],
			Content:  text,
			Metadata: metaToMap(meta),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.col.AddDocuments(ctx, docs, 1); err != nil {
		return nil, fmt.Errorf("add documents: %w", err)
	}
	for i, doc := range docs {
		s.docs[doc.ID] = indexedDoc{content: texts[i], meta: doc.Metadata}
	}

	log.Printf("[CHROMEM] Stored %d record(s) for scope=%s", len(docs), userID)
	return ids, nil
}

// Search returns up to k records by similarity, scoped to userID.
func (s *Store) Search(ctx context.Context, userID string, query string, k int) ([]memory.Record, error) {
	scored, err := s.SearchWithScore(ctx, userID, query, k)
	if err != nil {
		return nil, err
	}
	records := make([]memory.Record, len(scored))
	for i, sr := range scored {
		records[i] = sr.Record
	}
	return records, nil
}

// SearchWithScore returns up to k scored records, scoped to userID.
// chromem reports cosine similarity; distance is recovered as 1 - similarity
// so the usual Chroma distance thresholds apply unchanged.
func (s *Store) SearchWithScore(ctx context.Context, userID string, query string, k int) ([]memory.ScoredRecord, error) {
	if k < 1 {
		return nil, nil
	}

	where := map[string]string{"user_scope": userID}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// chromem rejects nResults larger than the candidate set, so cap the
	// limit at the scope's own record count before querying.
	scopeCount := 0
	for _, doc := range s.docs {
		if doc.meta["user_scope"] == userID {
			scopeCount++
		}
	}
	if scopeCount == 0 {
		return nil, nil
	}
	if k > scopeCount {
		k = scopeCount
	}

	// Retry with smaller limits in case the collection still disagrees.
	var results []chromem.Result
	for limit := k; limit >= 1; limit-- {
		var err error
		results, err = s.col.Query(ctx, query, limit, where, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if limit == 1 {
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	scored := make([]memory.ScoredRecord, 0, len(results))
	for _, res := range results {
		scored = append(scored, memory.ScoredRecord{
			Record:   memory.Record{ID: res.ID, Content: res.Content, Meta: metaFromMap(res.Metadata)},
			Distance: 1 - res.Similarity,
		})
	}
	return scored, nil
}

// Get bulk-fetches the user's records, oldest first. limit <= 0 means all.
func (s *Store) Get(ctx context.Context, userID string, limit int) ([]memory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []memory.Record
	for id, doc := range s.docs {
		if doc.meta["user_scope"] != userID {
			continue
		}
		records = append(records, memory.Record{ID: id, Content: doc.content, Meta: metaFromMap(doc.meta)})
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Meta.CreatedAt != records[j].Meta.CreatedAt {
			return records[i].Meta.CreatedAt < records[j].Meta.CreatedAt
		}
		return records[i].ID < records[j].ID
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Delete removes the given ids. Ids outside the user's scope are ignored.
func (s *Store) Delete(ctx context.Context, userID string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owned := make([]string, 0, len(ids))
	for _, id := range ids {
		doc, ok := s.docs[id]
		if !ok || doc.meta["user_scope"] != userID {
			continue
		}
		owned = append(owned, id)
	}
	if len(owned) == 0 {
		return nil
	}

	where := map[string]string{"user_scope": userID}
	if err := s.col.Delete(ctx, where, nil, owned...); err != nil {
		return fmt.Errorf("chromem delete: %w", err)
	}
	for _, id := range owned {
		delete(s.docs, id)
	}

	log.Printf("[CHROMEM] Deleted %d record(s) for scope=%s", len(owned), userID)
	return nil
}

// UpdateMetadata replaces a record's metadata, preserving its content and
// embedding. The swap happens under the store lock so readers never observe
// a half-rewritten record.
func (s *Store) UpdateMetadata(ctx context.Context, userID string, id string, meta memory.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	indexed, ok := s.docs[id]
	if !ok || indexed.meta["user_scope"] != userID {
		return fmt.Errorf("record %s not found in scope %s", id, userID)
	}

	doc, err := s.col.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("chromem get: %w", err)
	}

	meta.UserScope = userID
	newMeta := metaToMap(meta)

	if err := s.col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("chromem delete for update: %w", err)
	}
	if err := s.col.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   doc.Content,
		Embedding: doc.Embedding,
		Metadata:  newMeta,
	}); err != nil {
		return fmt.Errorf("chromem re-add for update: %w", err)
	}

	s.docs[id] = indexedDoc{content: doc.Content, meta: newMeta}
	return nil
}

func metaToMap(meta memory.Metadata) map[string]string {
	return map[string]string{
		"user_scope":  meta.UserScope,
		"tags":        memory.JoinTags(meta.Tags),
		"source_type": meta.SourceType,
		"source":      meta.Source,
		"source_path": meta.SourcePath,
		"page":        meta.Page,
		"created_at":  meta.CreatedAt,
	}
}

func metaFromMap(m map[string]string) memory.Metadata {
	return memory.Metadata{
		UserScope:  m["user_scope"],
		Tags:       memory.SplitTags(m["tags"]),
		SourceType: m["source_type"],
		Source:     m["source"],
		SourcePath: m["source_path"],
		Page:       m["page"],
		CreatedAt:  m["created_at"],
	}
}

// isInsufficientDocsError checks if the error is chromem complaining that
// nResults exceeds the candidate set.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
