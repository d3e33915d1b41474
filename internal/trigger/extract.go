// Package trigger extracts [Action][Agent] commands from issue and PR text
// and finds the authoritative trigger among an entity's comments.
package trigger

import (
	"regexp"
	"strings"
)

// Actions is the closed vocabulary of trigger actions. Text that names
// anything else is not a trigger.
var Actions = []string{
	"Approved",
	"Close",
	"Summarize",
	"Debug",
	"Fix",
	"Implement",
	"Review",
}

// Agents is the closed vocabulary of agents a trigger may address.
var Agents = []string{
	"Claude",
	"Gemini",
	"OpenCode",
	"Crush",
}

// triggerRE matches the first [Action][Agent] pair, case-insensitive, with
// optional whitespace between the brackets. Both vocabularies are baked into
// the pattern so anything outside them can never produce a match.
var triggerRE = regexp.MustCompile(
	`(?i)\[(` + strings.Join(Actions, "|") + `)\]\s*\[(` + strings.Join(Agents, "|") + `)\]`)

// Trigger is a parsed (action, agent) command. Action and Agent keep the
// casing found in the source text; callers needing canonical form must
// normalize themselves.
type Trigger struct {
	Action string `json:"action"`
	Agent  string `json:"agent"`
}

// ActionKey returns the composite rate-limit/authorization action key for
// this trigger against the given entity kind, e.g. "issue_approved".
func (t Trigger) ActionKey(kind string) string {
	return kind + "_" + strings.ToLower(t.Action)
}

// Parse extracts the leftmost trigger from arbitrary text. Malformed,
// partial, or unknown-vocabulary input is simply "no trigger" — Parse
// never fails.
func Parse(text string) (Trigger, bool) {
	if text == "" {
		return Trigger{}, false
	}
	m := triggerRE.FindStringSubmatch(text)
	if m == nil {
		return Trigger{}, false
	}
	return Trigger{Action: m[1], Agent: m[2]}, true
}
