package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rivaldy/secondbrain-go/core"
	"github.com/rivaldy/secondbrain-go/ingest"
	"github.com/rivaldy/secondbrain-go/memory"
	"github.com/rivaldy/secondbrain-go/tools"
)

// Distance tiers for scored retrieval. Distances are cosine distances in
// [0, 2]; anything at or past relatedDistance is discarded.
const (
	highConfidenceDistance = 0.8
	relatedDistance        = 1.5

	queryCandidates    = 10
	maxRelatedWithHigh = 3
	maxRelatedAlone    = 5
)

// Sentinels and markers the behavioral policy depends on for phrasing.
// These shapes are a contract; reproduce them exactly.
const (
	sentinelNoData         = "NO_EXACT_MATCH|NO_DATA"
	sentinelDistantResults = "NO_EXACT_MATCH|DISTANT_RESULTS"
	sentinelTopicsPrefix   = "NO_EXACT_MATCH|AVAILABLE_TOPICS:"
	relatedInfoMarker      = "[RELATED_INFO]"
)

const (
	noDeleteMatchResponse = "No matching information found to delete."
	noTagsResponse        = "You don't have any tags yet. Save some information and I'll start organizing it."
	nothingSavedResponse  = "You don't have anything saved yet. Tell me a fact or upload a document to get started."

	deleteEchoLimit = 100
	tagSeedExcerpt  = 500
	plainNotesCap   = 1000
	tagHintLimit    = 10
	itemSeparator   = "\n---\n"
)

// toolSet builds the per-user tool closures. Every closure reaches the store
// only through b.userID, which is what keeps one user's tools from ever
// touching another user's records.
func (b *Brain) toolSet() []core.Tool {
	return []core.Tool{
		core.NewFuncTool(core.ToolDefinition{
			ToolName:        "provide_help",
			ToolDescription: "Explain what this assistant can do. Use when the user asks for help, asks what you can do, or how to use you.",
			Schema:          tools.ObjectSchema(map[string]interface{}{}),
		}, func(ctx context.Context, _ json.RawMessage) (core.Result, error) {
			return b.provideHelp(ctx)
		}),

		core.NewFuncTool(core.ToolDefinition{
			ToolName:        "add_recall",
			ToolDescription: "Store new information, facts, notes, or memories into the second brain. Use this when the user makes a statement, shares a fact, or asks to save something.",
			Schema: tools.ObjectSchema(map[string]interface{}{
				"content": tools.StringProperty("The information to store, as a complete self-contained statement."),
			}, "content"),
		}, func(ctx context.Context, input json.RawMessage) (core.Result, error) {
			var args struct {
				Content string `json:"content"`
			}
			if err := json.Unmarshal(input, &args); err != nil {
				return core.Result{}, fmt.Errorf("parse add_recall input: %w", err)
			}
			return b.addRecall(ctx, args.Content)
		}),

		core.NewFuncTool(core.ToolDefinition{
			ToolName:        "add_document",
			ToolDescription: "Ingest an uploaded PDF document into the second brain, page by page. Use this when the user asks to read, import, or remember a file. The file must already be uploaded and its path provided.",
			Schema: tools.ObjectSchema(map[string]interface{}{
				"file_path": tools.StringProperty("Absolute path of the uploaded PDF file."),
			}, "file_path"),
		}, func(ctx context.Context, input json.RawMessage) (core.Result, error) {
			var args struct {
				FilePath string `json:"file_path"`
			}
			if err := json.Unmarshal(input, &args); err != nil {
				return core.Result{}, fmt.Errorf("parse add_document input: %w", err)
			}
			return b.addDocument(ctx, args.FilePath)
		}),

		core.NewFuncTool(core.ToolDefinition{
			ToolName:        "query_recall",
			ToolDescription: "Retrieve information from the second brain. Use this when the user asks a personal question or tries to recall a fact. Always search memory before answering.",
			Schema: tools.ObjectSchema(map[string]interface{}{
				"query": tools.StringProperty("What to search the user's memory for."),
			}, "query"),
		}, func(ctx context.Context, input json.RawMessage) (core.Result, error) {
			var args struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal(input, &args); err != nil {
				return core.Result{}, fmt.Errorf("parse query_recall input: %w", err)
			}
			return b.queryRecall(ctx, args.Query)
		}),

		core.NewFuncTool(core.ToolDefinition{
			ToolName:        "delete_recall",
			ToolDescription: "Delete information from the second brain by describing what to remove. Use this when the user wants to delete, remove, or forget previously stored information.",
			Schema: tools.ObjectSchema(map[string]interface{}{
				"content": tools.StringProperty("A description of the information to delete; the closest match is removed."),
			}, "content"),
		}, func(ctx context.Context, input json.RawMessage) (core.Result, error) {
			var args struct {
				Content string `json:"content"`
			}
			if err := json.Unmarshal(input, &args); err != nil {
				return core.Result{}, fmt.Errorf("parse delete_recall input: %w", err)
			}
			return b.deleteRecall(ctx, args.Content)
		}),

		core.NewFuncTool(core.ToolDefinition{
			ToolName:        "get_tags",
			ToolDescription: "List every tag the user's saved information is organized under, with counts. Use when the user asks what topics, categories, or tags they have.",
			Schema:          tools.ObjectSchema(map[string]interface{}{}),
		}, func(ctx context.Context, _ json.RawMessage) (core.Result, error) {
			return b.getTags(ctx)
		}),

		core.NewFuncTool(core.ToolDefinition{
			ToolName:        "get_all_knowledge",
			ToolDescription: "Dump everything the user has saved: chat memories verbatim plus a summary of each stored document. Use when the user asks to see everything they have saved.",
			Schema:          tools.ObjectSchema(map[string]interface{}{}),
		}, func(ctx context.Context, _ json.RawMessage) (core.Result, error) {
			return b.getAllKnowledge(ctx)
		}),

		core.NewFuncTool(core.ToolDefinition{
			ToolName:        "get_items_by_tag",
			ToolDescription: "List every saved item carrying a specific tag. Use when the user asks what they saved about a topic or category.",
			Schema: tools.ObjectSchema(map[string]interface{}{
				"tag": tools.StringProperty("The tag to filter by, e.g. 'work' or 'recipe'."),
			}, "tag"),
		}, func(ctx context.Context, input json.RawMessage) (core.Result, error) {
			var args struct {
				Tag string `json:"tag"`
			}
			if err := json.Unmarshal(input, &args); err != nil {
				return core.Result{}, fmt.Errorf("parse get_items_by_tag input: %w", err)
			}
			return b.getItemsByTag(ctx, args.Tag)
		}),
	}
}

// addRecall stores one chat-entered fact. The confirmation text must reach
// the user verbatim, which core.KindStored guarantees.
func (b *Brain) addRecall(ctx context.Context, content string) (core.Result, error) {
	tags := b.tags.Generate(ctx, content)

	meta := memory.Metadata{
		Tags:       tags,
		SourceType: memory.SourceTypeChat,
		Source:     memory.SourceUser,
		CreatedAt:  b.now().Format(time.RFC3339),
	}
	if _, err := b.store.Insert(ctx, b.userID, []string{content}, []memory.Metadata{meta}); err != nil {
		return core.Result{}, fmt.Errorf("store recall: %w", err)
	}

	return core.Result{
		Kind: core.KindStored,
		Text: fmt.Sprintf("Information stored successfully with tags: %s", strings.Join(tags, ", ")),
	}, nil
}

// addDocument ingests a staged PDF: one shared tag set for the document, one
// record per chunk, all inserted in a single batched call.
func (b *Brain) addDocument(ctx context.Context, filePath string) (core.Result, error) {
	if err := ingest.ValidatePDFPath(filePath); err != nil {
		return core.Result{Kind: core.KindAnswer, Text: err.Error()}, nil
	}

	pages, err := ingest.ExtractPages(filePath)
	if err != nil {
		return core.Result{}, fmt.Errorf("extract pages: %w", err)
	}

	filename := filepath.Base(filePath)
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))

	excerpt := ""
	if len(pages) > 0 {
		excerpt, _ = firstRunes(pages[0], tagSeedExcerpt)
	}
	docTags := b.tags.Generate(ctx, stem+"\n"+excerpt)

	stamp := b.now().Format(time.RFC3339)
	var texts []string
	var metas []memory.Metadata
	for i, page := range pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		for _, chunk := range ingest.ChunkText(page, ingest.DefaultChunkSize) {
			texts = append(texts, chunk)
			metas = append(metas, memory.Metadata{
				Tags:       docTags,
				SourceType: memory.SourceTypeDocument,
				Source:     filename,
				SourcePath: filePath,
				Page:       strconv.Itoa(i + 1),
				CreatedAt:  stamp,
			})
		}
	}

	if len(texts) == 0 {
		return core.Result{Kind: core.KindAnswer, Text: fmt.Sprintf("No readable text found in %q.", filename)}, nil
	}

	if _, err := b.store.Insert(ctx, b.userID, texts, metas); err != nil {
		return core.Result{}, fmt.Errorf("store document chunks: %w", err)
	}

	return core.Result{
		Kind: core.KindAnswer,
		Text: fmt.Sprintf("Stored %d chunk(s) from %q (tags: %s).", len(texts), filename, strings.Join(docTags, ", ")),
	}, nil
}

// queryRecall runs a scored search and buckets candidates into confidence
// tiers.
func (b *Brain) queryRecall(ctx context.Context, query string) (core.Result, error) {
	scored, err := b.store.SearchWithScore(ctx, b.userID, query, queryCandidates)
	if err != nil {
		return core.Result{}, fmt.Errorf("scored search: %w", err)
	}

	if len(scored) == 0 {
		topics, err := b.knownTags(ctx)
		if err != nil {
			return core.Result{}, err
		}
		if len(topics) > 0 {
			return core.Result{Kind: core.KindAnswer, Text: sentinelTopicsPrefix + strings.Join(topics, ", ")}, nil
		}
		return core.Result{Kind: core.KindAnswer, Text: sentinelNoData}, nil
	}

	var high, related []string
	for _, sr := range scored {
		switch {
		case sr.Distance < highConfidenceDistance:
			high = append(high, formatResult(sr.Record))
		case sr.Distance < relatedDistance:
			related = append(related, formatResult(sr.Record))
		}
	}

	switch {
	case len(high) > 0:
		out := strings.Join(high, "\n\n")
		if len(related) > 0 {
			if len(related) > maxRelatedWithHigh {
				related = related[:maxRelatedWithHigh]
			}
			out += "\n\n" + relatedInfoMarker + "\n" + strings.Join(related, "\n\n")
		}
		return core.Result{Kind: core.KindAnswer, Text: out}, nil

	case len(related) > 0:
		if len(related) > maxRelatedAlone {
			related = related[:maxRelatedAlone]
		}
		return core.Result{Kind: core.KindAnswer, Text: relatedInfoMarker + "\n" + strings.Join(related, "\n\n")}, nil

	default:
		return core.Result{Kind: core.KindAnswer, Text: sentinelDistantResults}, nil
	}
}

// formatResult renders one retrieved record, with a citation line for
// document-sourced chunks.
func formatResult(rec memory.Record) string {
	if rec.Meta.SourceType == memory.SourceTypeDocument {
		return fmt.Sprintf("%s\n[Source: %s, Page %s]", rec.Content, rec.Meta.Source, rec.Meta.Page)
	}
	return rec.Content
}

// deleteRecall removes the single nearest record to the description.
func (b *Brain) deleteRecall(ctx context.Context, content string) (core.Result, error) {
	matches, err := b.store.Search(ctx, b.userID, content, 1)
	if err != nil {
		return core.Result{}, fmt.Errorf("find record to delete: %w", err)
	}
	if len(matches) == 0 {
		return core.Result{Kind: core.KindAnswer, Text: noDeleteMatchResponse}, nil
	}

	target := matches[0]
	if err := b.store.Delete(ctx, b.userID, target.ID); err != nil {
		return core.Result{}, fmt.Errorf("delete record: %w", err)
	}

	echo, truncated := firstRunes(target.Content, deleteEchoLimit)
	if truncated {
		echo += "..."
	}
	return core.Result{Kind: core.KindAnswer, Text: fmt.Sprintf("Deleted: %s", echo)}, nil
}

// getTags tallies tag counts, merges near-duplicates to a canonical form
// (rewriting stored records), and reports the final counts.
func (b *Brain) getTags(ctx context.Context) (core.Result, error) {
	records, err := b.store.Get(ctx, b.userID, 0)
	if err != nil {
		return core.Result{}, fmt.Errorf("fetch records: %w", err)
	}

	counts := make(map[string]int)
	for _, rec := range records {
		for _, tag := range rec.Meta.Tags {
			counts[tag]++
		}
	}
	if len(counts) == 0 {
		return core.Result{Kind: core.KindAnswer, Text: noTagsResponse}, nil
	}

	rewrites, merges := reconcileTags(counts)
	if len(rewrites) > 0 {
		for _, rec := range records {
			newTags, changed := rewriteTags(rec.Meta.Tags, rewrites)
			if !changed {
				continue
			}
			meta := rec.Meta
			meta.Tags = newTags
			if err := b.store.UpdateMetadata(ctx, b.userID, rec.ID, meta); err != nil {
				return core.Result{}, fmt.Errorf("rewrite tags on %s: %w", rec.ID, err)
			}
		}

		// Recompute counts over the rewritten vocabulary.
		counts = make(map[string]int)
		for _, rec := range records {
			newTags, _ := rewriteTags(rec.Meta.Tags, rewrites)
			for _, tag := range newTags {
				counts[tag]++
			}
		}
	}

	type tagCount struct {
		tag   string
		count int
	}
	sorted := make([]tagCount, 0, len(counts))
	for tag, count := range counts {
		sorted = append(sorted, tagCount{tag, count})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].tag < sorted[j].tag
	})

	var lines []string
	for _, tc := range sorted {
		lines = append(lines, fmt.Sprintf("%s: %d", tc.tag, tc.count))
	}
	for _, m := range merges {
		lines = append(lines, fmt.Sprintf("'%s' → '%s' (%d note(s))", m.From, m.To, m.Notes))
	}

	return core.Result{Kind: core.KindAnswer, Text: strings.Join(lines, "\n")}, nil
}

// getAllKnowledge dumps everything the user has saved, uncapped.
func (b *Brain) getAllKnowledge(ctx context.Context) (core.Result, error) {
	records, err := b.store.Get(ctx, b.userID, 0)
	if err != nil {
		return core.Result{}, fmt.Errorf("fetch records: %w", err)
	}
	return core.Result{Kind: core.KindAnswer, Text: formatKnowledge(records)}, nil
}

// formatKnowledge renders the bulk dump: chat memories verbatim, documents
// summarized per file as chunk count plus page range.
func formatKnowledge(records []memory.Record) string {
	if len(records) == 0 {
		return nothingSavedResponse
	}

	var chat []string
	docChunks := make(map[string][]string) // filename -> page values
	var docOrder []string
	for _, rec := range records {
		if rec.Meta.SourceType == memory.SourceTypeDocument {
			name := rec.Meta.Source
			if _, seen := docChunks[name]; !seen {
				docOrder = append(docOrder, name)
			}
			docChunks[name] = append(docChunks[name], rec.Meta.Page)
			continue
		}
		// Chat records and pre-migration records with no source type.
		chat = append(chat, rec.Content)
	}

	sections := []string{fmt.Sprintf("You have %d saved item(s).", len(records))}

	if len(chat) > 0 {
		sections = append(sections, fmt.Sprintf("Chat Memories (%d):\n%s", len(chat), strings.Join(chat, "\n")))
	}

	if len(docOrder) > 0 {
		sort.Strings(docOrder)
		var lines []string
		for _, name := range docOrder {
			pages := docChunks[name]
			lo, hi := pageRange(pages)
			span := fmt.Sprintf("page %d", lo)
			if hi != lo {
				span = fmt.Sprintf("pages %d-%d", lo, hi)
			}
			lines = append(lines, fmt.Sprintf("- %s: %d chunk(s), %s", name, len(pages), span))
		}
		sections = append(sections, "Documents:\n"+strings.Join(lines, "\n"))
	}

	return strings.Join(sections, "\n\n")
}

// pageRange returns the min and max of distinct page values, numeric-aware,
// treating non-numeric values as 0.
func pageRange(pages []string) (int, int) {
	distinct := make(map[int]bool)
	for _, p := range pages {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			n = 0
		}
		distinct[n] = true
	}
	nums := make([]int, 0, len(distinct))
	for n := range distinct {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums[0], nums[len(nums)-1]
}

// getItemsByTag lists records carrying the requested tag, case-insensitive
// exact match.
func (b *Brain) getItemsByTag(ctx context.Context, tag string) (core.Result, error) {
	records, err := b.store.Get(ctx, b.userID, 0)
	if err != nil {
		return core.Result{}, fmt.Errorf("fetch records: %w", err)
	}

	want := strings.ToLower(strings.TrimSpace(tag))
	var matched []memory.Record
	for _, rec := range records {
		for _, t := range rec.Meta.Tags {
			if strings.ToLower(strings.TrimSpace(t)) == want {
				matched = append(matched, rec)
				break
			}
		}
	}

	switch len(matched) {
	case 0:
		hints := knownTagsFrom(records, tagHintLimit)
		if len(hints) > 0 {
			return core.Result{
				Kind: core.KindAnswer,
				Text: fmt.Sprintf("No items found with tag '%s'. Known tags: %s", want, strings.Join(hints, ", ")),
			}, nil
		}
		return core.Result{Kind: core.KindAnswer, Text: fmt.Sprintf("No items found with tag '%s'.", want)}, nil

	case 1:
		return core.Result{Kind: core.KindAnswer, Text: matched[0].Content}, nil

	default:
		var contents []string
		for _, rec := range matched {
			contents = append(contents, rec.Content)
		}
		return core.Result{
			Kind: core.KindAnswer,
			Text: fmt.Sprintf("Found %d items with tag '%s':\n%s", len(matched), want, strings.Join(contents, itemSeparator)),
		}, nil
	}
}

// provideHelp returns one of two fixed capability summaries depending on
// whether the user has stored anything at all.
func (b *Brain) provideHelp(ctx context.Context) (core.Result, error) {
	records, err := b.store.Get(ctx, b.userID, 1)
	if err != nil {
		return core.Result{}, fmt.Errorf("existence probe: %w", err)
	}
	if len(records) > 0 {
		return core.Result{Kind: core.KindAnswer, Text: helpPopulated}, nil
	}
	return core.Result{Kind: core.KindAnswer, Text: helpEmpty}, nil
}

// knownTags enumerates the user's distinct tags in first-seen order.
func (b *Brain) knownTags(ctx context.Context) ([]string, error) {
	records, err := b.store.Get(ctx, b.userID, 0)
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}
	return knownTagsFrom(records, 0), nil
}

// firstRunes returns the first n runes of s and whether s was longer.
// Truncation counts characters, not bytes, so multibyte content is never
// cut mid-rune.
func firstRunes(s string, n int) (string, bool) {
	if utf8.RuneCountInString(s) <= n {
		return s, false
	}
	return string([]rune(s)[:n]), true
}

func knownTagsFrom(records []memory.Record, limit int) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, rec := range records {
		for _, tag := range rec.Meta.Tags {
			if seen[tag] {
				continue
			}
			seen[tag] = true
			tags = append(tags, tag)
			if limit > 0 && len(tags) == limit {
				return tags
			}
		}
	}
	return tags
}
