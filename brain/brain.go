// Package brain wires per-user tool closures, tag generation, and the agent
// loop into one conversational memory assistant.
package brain

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rivaldy/secondbrain-go/core"
	"github.com/rivaldy/secondbrain-go/engine"
	"github.com/rivaldy/secondbrain-go/memory"
)

// Config describes one user's brain.
type Config struct {
	// UserID is the scope key every record is written and read under.
	UserID string

	// Store is the shared vector store.
	Store memory.Store

	// Client performs model inference for both the agent loop and tag
	// generation.
	Client engine.Completer

	// Model overrides the engine's default model when set.
	Model string

	// MaxTokens caps each inference response. Zero means the engine default.
	MaxTokens int64
}

// Brain is a single user's view of the second brain. It holds no
// conversation state; history is caller-supplied on every Process call.
type Brain struct {
	userID    string
	store     memory.Store
	tags      *TagGenerator
	engine    *engine.Engine
	maxTokens int64
	now       func() time.Time
}

// New builds a brain for cfg.UserID. UserID, Store, and Client are required.
func New(cfg Config) (*Brain, error) {
	if cfg.UserID == "" {
		return nil, fmt.Errorf("brain: UserID is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("brain: Store is required")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("brain: Client is required")
	}

	b := &Brain{
		userID:    cfg.UserID,
		store:     cfg.Store,
		maxTokens: cfg.MaxTokens,
		now:       time.Now,
	}
	b.tags = NewTagGenerator(cfg.Client, cfg.Model)

	registry := engine.NewToolRegistry()
	for _, tool := range b.toolSet() {
		registry.Register(tool)
	}

	opts := []engine.Option{engine.WithGuardrails(engine.NewPhraseGuard())}
	if cfg.Model != "" {
		opts = append(opts, engine.WithModel(cfg.Model))
	}
	b.engine = engine.New(cfg.Client, registry, opts...)

	return b, nil
}

// Process handles one user message against the supplied history and returns
// the assistant's reply.
func (b *Brain) Process(ctx context.Context, message string, history []core.Message) (string, error) {
	reply, err := b.engine.Run(ctx, &engine.Input{
		UserMessage:  message,
		History:      history,
		SystemPrompt: systemPrompt,
		MaxTokens:    b.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("process message for %s: %w", b.userID, err)
	}
	return reply, nil
}

// AllNotes returns the formatted knowledge dump without going through the
// model, capped at a sane display limit.
func (b *Brain) AllNotes(ctx context.Context) (string, error) {
	records, err := b.store.Get(ctx, b.userID, plainNotesCap)
	if err != nil {
		return "", fmt.Errorf("list notes for %s: %w", b.userID, err)
	}
	return formatKnowledge(records), nil
}

// MigrationReport summarizes one MigrateLegacyRecords pass.
type MigrationReport struct {
	Already  int // records that needed no changes
	Migrated int // records whose source attribution was backfilled
	Retagged int // records whose empty tag set was regenerated
	Failed   int // records whose metadata update failed
}

// MigrateLegacyRecords backfills metadata on records written before the
// current schema: missing source attribution is set to chat/user, and
// records with no tags get a fresh tag set generated from their content.
// Records already carrying both are untouched, so repeated runs are no-ops
// after the first.
func (b *Brain) MigrateLegacyRecords(ctx context.Context) (MigrationReport, error) {
	records, err := b.store.Get(ctx, b.userID, 0)
	if err != nil {
		return MigrationReport{}, fmt.Errorf("fetch records for migration: %w", err)
	}

	var report MigrationReport
	for _, rec := range records {
		meta := rec.Meta

		attributed := false
		if meta.SourceType == "" {
			meta.SourceType = memory.SourceTypeChat
			meta.Source = memory.SourceUser
			if meta.CreatedAt == "" {
				meta.CreatedAt = b.now().Format(time.RFC3339)
			}
			attributed = true
		}

		retagged := false
		if len(meta.Tags) == 0 {
			meta.Tags = b.tags.Generate(ctx, rec.Content)
			retagged = true
		}

		if !attributed && !retagged {
			report.Already++
			continue
		}
		if err := b.store.UpdateMetadata(ctx, b.userID, rec.ID, meta); err != nil {
			log.Printf("[BRAIN] Migration failed for record %s: %v", rec.ID, err)
			report.Failed++
			continue
		}
		if attributed {
			report.Migrated++
		}
		if retagged {
			report.Retagged++
		}
	}

	if report.Migrated > 0 || report.Retagged > 0 || report.Failed > 0 {
		log.Printf("[BRAIN] Migrated %d, retagged %d record(s) for %s (%d already current, %d failed)",
			report.Migrated, report.Retagged, b.userID, report.Already, report.Failed)
	}
	return report, nil
}

const (
	// suggestionMinSimilarity gates related-knowledge suggestions; similarity
	// is recovered from search distance as 1/(1+distance).
	suggestionMinSimilarity = 0.7

	suggestionPreviewLimit = 100
)

// Suggestion is a related-knowledge pointer surfaced alongside a chat reply.
type Suggestion struct {
	ID          string
	Content     string // preview, first 100 characters with ellipsis
	FullContent string
}

// Suggestions searches the user's memory for records related to the
// conversation text and returns up to k of them, filtered by similarity.
// k <= 0 means one suggestion.
func (b *Brain) Suggestions(ctx context.Context, conversation string, k int) ([]Suggestion, error) {
	if k <= 0 {
		k = 1
	}

	scored, err := b.store.SearchWithScore(ctx, b.userID, conversation, k)
	if err != nil {
		return nil, fmt.Errorf("suggestion search for %s: %w", b.userID, err)
	}

	var suggestions []Suggestion
	for _, sr := range scored {
		similarity := 1 / (1 + sr.Distance)
		if similarity < suggestionMinSimilarity {
			continue
		}
		preview, truncated := firstRunes(sr.Content, suggestionPreviewLimit)
		if truncated {
			preview += "..."
		}
		suggestions = append(suggestions, Suggestion{
			ID:          sr.ID,
			Content:     preview,
			FullContent: sr.Content,
		})
	}
	return suggestions, nil
}
