package brain

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/rivaldy/secondbrain-go/engine"
)

const (
	maxTags     = 3
	fallbackTag = "note"

	// mergeThreshold is the normalized string similarity at or above which
	// two tags are considered duplicates. Two legitimately distinct short
	// tags can cross it by coincidence; that is an accepted approximation,
	// so the value must not be tuned casually.
	mergeThreshold = 0.85
)

const tagPrompt = `Analyze this information and generate 1-3 relevant category tags.

Tags should be:
- Single words or short phrases (max 2 words)
- Lowercase
- General categories like: work, personal, recipe, contact, meeting, deadline, health, finance, travel, shopping, learning, etc.

Information: %s

Return ONLY the tags as a comma-separated list (e.g., "work, meeting" or "recipe, food").`

// TagGenerator asks the model for 1-3 short lowercase category labels.
type TagGenerator struct {
	client engine.Completer
	model  string
}

// NewTagGenerator creates a generator using the given model, falling back to
// the engine default when model is empty.
func NewTagGenerator(client engine.Completer, model string) *TagGenerator {
	if model == "" {
		model = engine.DefaultModel
	}
	return &TagGenerator{client: client, model: model}
}

// Generate returns at most maxTags lowercase tags for content. Generation
// failure degrades to the single fallback tag; storing must never fail
// solely because tagging failed.
func (g *TagGenerator) Generate(ctx context.Context, content string) []string {
	resp, err := g.client.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: 64,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(fmt.Sprintf(tagPrompt, content))),
		},
	})
	if err != nil {
		log.Printf("[TAGS] Tag generation failed: %v", err)
		return []string{fallbackTag}
	}

	var raw string
	for _, block := range resp.Content {
		if block.Type == "text" {
			raw += block.Text
		}
	}

	tags := ParseTags(raw)
	if len(tags) == 0 {
		return []string{fallbackTag}
	}
	return tags
}

// ParseTags normalizes a comma-separated tag list: trimmed, lowercased,
// empties dropped, capped at maxTags.
func ParseTags(raw string) []string {
	var tags []string
	for _, part := range strings.Split(raw, ",") {
		tag := strings.ToLower(strings.TrimSpace(part))
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}

// tagMerge reports one applied canonicalization.
type tagMerge struct {
	From  string
	To    string
	Notes int // occurrence count of the merged-away tag
}

// tagSimilarity is the normalized ratio difflib.SequenceMatcher would report
// for the two tags, case-insensitive.
func tagSimilarity(a, b string) float64 {
	m := difflib.NewMatcher(splitChars(strings.ToLower(a)), splitChars(strings.ToLower(b)))
	return m.Ratio()
}

func splitChars(s string) []string {
	chars := make([]string, 0, len(s))
	for _, r := range s {
		chars = append(chars, string(r))
	}
	return chars
}

// reconcileTags groups near-duplicate tags and picks a canonical form per
// group. The canonical tag maximizes (occurrence count, string length), ties
// broken toward the longer string. Each tag participates in at most one
// group. Returns the old-to-canonical rewrite map and the merge report.
func reconcileTags(counts map[string]int) (map[string]string, []tagMerge) {
	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Strings(tags) // deterministic grouping order

	rewrites := make(map[string]string)
	var merges []tagMerge
	processed := make(map[string]bool)

	for _, tag := range tags {
		if processed[tag] {
			continue
		}

		group := []string{tag}
		for _, other := range tags {
			if other == tag || processed[other] {
				continue
			}
			if tagSimilarity(tag, other) >= mergeThreshold {
				group = append(group, other)
			}
		}

		for _, member := range group {
			processed[member] = true
		}
		if len(group) == 1 {
			continue
		}

		canonical := group[0]
		for _, candidate := range group[1:] {
			if betterCanonical(candidate, canonical, counts) {
				canonical = candidate
			}
		}

		for _, member := range group {
			if member == canonical {
				continue
			}
			rewrites[member] = canonical
			merges = append(merges, tagMerge{From: member, To: canonical, Notes: counts[member]})
		}
	}

	sort.Slice(merges, func(i, j int) bool { return merges[i].From < merges[j].From })
	return rewrites, merges
}

// betterCanonical reports whether a beats b as the group's canonical tag.
func betterCanonical(a, b string, counts map[string]int) bool {
	if counts[a] != counts[b] {
		return counts[a] > counts[b]
	}
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a < b // stable pick for full ties
}

// rewriteTags applies the canonical map to one record's tag set,
// deduplicating after substitution and preserving first-seen order.
func rewriteTags(tags []string, rewrites map[string]string) ([]string, bool) {
	var out []string
	seen := make(map[string]bool)
	changed := false
	for _, tag := range tags {
		next := tag
		if canonical, ok := rewrites[tag]; ok {
			next = canonical
			changed = true
		}
		if seen[next] {
			changed = true
			continue
		}
		seen[next] = true
		out = append(out, next)
	}
	return out, changed
}
