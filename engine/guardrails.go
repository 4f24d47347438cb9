package engine

import "strings"

// Guardrails screens the raw incoming message before the loop starts.
// A rejection short-circuits everything: no model call, no tool call.
type Guardrails interface {
	// Check returns false plus the refusal text when the message is blocked.
	Check(message string) (allowed bool, refusal string)
}

// RefusalResponse is returned for every blocked message.
const RefusalResponse = "Sorry, I am only allowed to save and retrieve information for you."

// forbiddenPhrases are prompt-injection markers, matched case-insensitively
// as substrings of the raw message.
var forbiddenPhrases = []string{
	"ignore previous instructions",
	"change your role",
	"become",
	"act as",
	"pretend",
	"jailbreak",
	"change your behavior",
	"change your purpose",
	"change your instructions",
	"system prompt",
}

// PhraseGuard is the deny-list Guardrails implementation.
type PhraseGuard struct {
	phrases []string
	refusal string
}

// NewPhraseGuard creates a guard with the default deny list.
func NewPhraseGuard() *PhraseGuard {
	return &PhraseGuard{phrases: forbiddenPhrases, refusal: RefusalResponse}
}

// Check scans for forbidden phrases.
func (g *PhraseGuard) Check(message string) (bool, string) {
	lower := strings.ToLower(message)
	for _, phrase := range g.phrases {
		if strings.Contains(lower, phrase) {
			return false, g.refusal
		}
	}
	return true, ""
}
