// Package memory defines the second brain's long-term store: a single shared
// vector index holding every user's records, with per-user isolation enforced
// purely through the user_scope metadata filter. There is no index-level
// access control; a missing scope filter on any operation is a data leak,
// which is why every Store method takes the scope key explicitly.
package memory

import (
	"context"
	"strings"
)

// Source types for stored records.
const (
	SourceTypeChat     = "chat"
	SourceTypeDocument = "document"

	// SourceUser is the literal source for chat-entered facts.
	SourceUser = "user"
)

// Metadata is the source-attribution schema carried by every record.
type Metadata struct {
	// UserScope is the owning user's identifier. Every read and write
	// filters on it.
	UserScope string

	// Tags is an ordered set of short lowercase category labels. May be
	// empty before the first tagging run.
	Tags []string

	// SourceType is SourceTypeChat or SourceTypeDocument. Empty on records
	// predating this schema, until migrated.
	SourceType string

	// Source is the human-readable origin: SourceUser for chat facts, the
	// filename for document chunks.
	Source string

	// SourcePath is the absolute path the source file was persisted at.
	// Empty for chat entries.
	SourcePath string

	// Page is the 1-indexed page number as text. Empty for chat entries.
	Page string

	// CreatedAt is an RFC 3339 timestamp, set once at insert.
	CreatedAt string
}

// Record is one stored unit inside the shared index.
type Record struct {
	ID      string
	Content string
	Meta    Metadata
}

// ScoredRecord pairs a record with its similarity-search distance.
// Lower distance means more similar.
type ScoredRecord struct {
	Record
	Distance float32
}

// Store is the vector storage contract the tool set is built on.
// Implementations must scope every operation to userID.
type Store interface {
	// Insert adds one record per text, assigns ids, and returns them.
	// Texts are embedded in one batched call.
	Insert(ctx context.Context, userID string, texts []string, metas []Metadata) ([]string, error)

	// Search returns up to k records by similarity to query.
	Search(ctx context.Context, userID string, query string, k int) ([]Record, error)

	// SearchWithScore is Search with per-result distances.
	SearchWithScore(ctx context.Context, userID string, query string, k int) ([]ScoredRecord, error)

	// Get bulk-fetches the user's records. limit <= 0 means no cap.
	Get(ctx context.Context, userID string, limit int) ([]Record, error)

	// Delete removes records by id. Ids owned by other users are ignored.
	Delete(ctx context.Context, userID string, ids ...string) error

	// UpdateMetadata replaces a record's metadata, keeping content and
	// embedding. Readers never observe a half-rewritten record.
	UpdateMetadata(ctx context.Context, userID string, id string, meta Metadata) error
}

// Embedder converts text to a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// JoinTags serializes a tag list for metadata storage.
func JoinTags(tags []string) string {
	return strings.Join(tags, ",")
}

// SplitTags parses a serialized tag list, dropping empties.
func SplitTags(s string) []string {
	if s == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
