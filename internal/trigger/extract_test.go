package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantOK     bool
		wantAction string
		wantAgent  string
	}{
		{
			name:       "canonical casing",
			text:       "[Approved][Claude]",
			wantOK:     true,
			wantAction: "Approved",
			wantAgent:  "Claude",
		},
		{
			name:       "lower casing preserved",
			text:       "[approved][claude]",
			wantOK:     true,
			wantAction: "approved",
			wantAgent:  "claude",
		},
		{
			name:       "shouting casing preserved",
			text:       "[FIX][GEMINI]",
			wantOK:     true,
			wantAction: "FIX",
			wantAgent:  "GEMINI",
		},
		{
			name:       "whitespace between brackets",
			text:       "please [Review]   [OpenCode] this",
			wantOK:     true,
			wantAction: "Review",
			wantAgent:  "OpenCode",
		},
		{
			name:       "newline between brackets",
			text:       "[Debug]\n[Crush]",
			wantOK:     true,
			wantAction: "Debug",
			wantAgent:  "Crush",
		},
		{
			name:       "embedded in prose",
			text:       "Looks good to me. [Implement][Claude] when ready.",
			wantOK:     true,
			wantAction: "Implement",
			wantAgent:  "Claude",
		},
		{
			name:       "leftmost match wins",
			text:       "[Close][Gemini] then [Approved][Claude]",
			wantOK:     true,
			wantAction: "Close",
			wantAgent:  "Gemini",
		},
		{name: "empty string", text: "", wantOK: false},
		{name: "plain text", text: "no trigger here", wantOK: false},
		{name: "action only", text: "[Approved]", wantOK: false},
		{name: "agent only", text: "[Claude]", wantOK: false},
		{name: "unknown action", text: "[Deploy][Claude]", wantOK: false},
		{name: "unknown agent", text: "[Approved][HAL9000]", wantOK: false},
		{name: "reversed order", text: "[Claude][Approved]", wantOK: false},
		{name: "text between brackets", text: "[Approved] please [Claude]", wantOK: false},
		{name: "unclosed bracket", text: "[Approved[Claude]", wantOK: false},
		{name: "bare words", text: "Approved Claude", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trig, ok := Parse(tt.text)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantAction, trig.Action)
				assert.Equal(t, tt.wantAgent, trig.Agent)
			}
		})
	}
}

func TestParseAllVocabularyCombinations(t *testing.T) {
	for _, action := range Actions {
		for _, agent := range Agents {
			trig, ok := Parse("[" + action + "][" + agent + "]")
			require.True(t, ok, "%s/%s should parse", action, agent)
			assert.Equal(t, action, trig.Action)
			assert.Equal(t, agent, trig.Agent)
		}
	}
}

func TestActionKey(t *testing.T) {
	trig := Trigger{Action: "Approved", Agent: "Claude"}
	assert.Equal(t, "issue_approved", trig.ActionKey("issue"))
	assert.Equal(t, "pr_approved", trig.ActionKey("pr"))

	trig = Trigger{Action: "FIX", Agent: "Gemini"}
	assert.Equal(t, "pr_fix", trig.ActionKey("pr"))
}
