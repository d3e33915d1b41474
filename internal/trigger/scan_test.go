package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dativo-io/warden/internal/github"
)

func allowOnly(users ...string) AllowFunc {
	set := make(map[string]bool, len(users))
	for _, u := range users {
		set[u] = true
	}
	return func(p string) bool { return set[p] }
}

func TestScanMostRecentTriggerWins(t *testing.T) {
	entity := &github.Entity{
		Number: 42,
		Kind:   github.KindIssue,
		Comments: []github.Comment{
			{Author: "alice", Body: "[Close][Gemini]"},
			{Author: "alice", Body: "just discussion"},
			{Author: "alice", Body: "[Fix][Claude]"},
			{Author: "bob", Body: "more discussion"},
			{Author: "alice", Body: "[Approved][Claude]"},
		},
	}

	trig, principal, ok := Scan(entity, allowOnly("alice", "bob"))
	require.True(t, ok)
	assert.Equal(t, "Approved", trig.Action)
	assert.Equal(t, "alice", principal)
}

func TestScanUnauthorizedTriggersAreInvisible(t *testing.T) {
	entity := &github.Entity{
		Kind: github.KindIssue,
		Comments: []github.Comment{
			{Author: "alice", Body: "[Close][Gemini]"},
			{Author: "alice", Body: "hmm"},
			{Author: "alice", Body: "[Fix][Claude]"},
			{Author: "alice", Body: "wait"},
			{Author: "mallory", Body: "[Approved][Claude]"},
		},
	}

	// mallory's newer trigger must be skipped entirely, not merely
	// deprioritized: alice's trigger at index 2 wins.
	trig, principal, ok := Scan(entity, allowOnly("alice"))
	require.True(t, ok)
	assert.Equal(t, "Fix", trig.Action)
	assert.Equal(t, "alice", principal)
}

func TestScanHackerOnlyCommentIsIgnored(t *testing.T) {
	entity := &github.Entity{
		Kind: github.KindIssue,
		Comments: []github.Comment{
			{Author: "hacker", Body: "[Approved][Claude]"},
		},
	}

	_, _, ok := Scan(entity, allowOnly("AndrewAltimit"))
	assert.False(t, ok)
}

func TestScanPRBodyIsOldestPseudoComment(t *testing.T) {
	pr := &github.Entity{
		Kind:   github.KindPullRequest,
		Author: "alice",
		Body:   "[Review][Claude]",
		Comments: []github.Comment{
			{Author: "bob", Body: "nice work"},
		},
	}

	trig, principal, ok := Scan(pr, allowOnly("alice", "bob"))
	require.True(t, ok)
	assert.Equal(t, "Review", trig.Action)
	assert.Equal(t, "alice", principal)

	// A comment trigger outranks the body.
	pr.Comments = append(pr.Comments, github.Comment{Author: "bob", Body: "[Fix][Gemini]"})
	trig, principal, ok = Scan(pr, allowOnly("alice", "bob"))
	require.True(t, ok)
	assert.Equal(t, "Fix", trig.Action)
	assert.Equal(t, "bob", principal)
}

func TestScanPRBodyFromUnauthorizedAuthor(t *testing.T) {
	pr := &github.Entity{
		Kind:   github.KindPullRequest,
		Author: "mallory",
		Body:   "[Approved][Claude]",
	}

	_, _, ok := Scan(pr, allowOnly("alice"))
	assert.False(t, ok)
}

func TestScanIssueBodyIsNotATriggerSource(t *testing.T) {
	issue := &github.Entity{
		Kind:   github.KindIssue,
		Author: "alice",
		Body:   "[Approved][Claude]",
	}

	_, _, ok := Scan(issue, allowOnly("alice"))
	assert.False(t, ok)
}

func TestScanNilAndEmpty(t *testing.T) {
	_, _, ok := Scan(nil, allowOnly("alice"))
	assert.False(t, ok)

	_, _, ok = Scan(&github.Entity{Kind: github.KindIssue}, allowOnly("alice"))
	assert.False(t, ok)

	_, _, ok = Scan(&github.Entity{Kind: github.KindIssue}, nil)
	assert.False(t, ok)
}

func TestScanDoesNotMutateEntity(t *testing.T) {
	entity := &github.Entity{
		Kind: github.KindIssue,
		Comments: []github.Comment{
			{Author: "alice", Body: "[Approved][Claude]"},
			{Author: "bob", Body: "[Fix][Gemini]"},
		},
	}

	before := make([]github.Comment, len(entity.Comments))
	copy(before, entity.Comments)

	for i := 0; i < 3; i++ {
		_, _, ok := Scan(entity, allowOnly("alice", "bob"))
		require.True(t, ok)
	}
	assert.Equal(t, before, entity.Comments)
}
