// Package github holds the structured issue/PR data model the gatekeeper
// operates on. Warden never talks to GitHub itself: entities are produced
// by an external fetcher (CI job, monitor process) and handed in fully
// formed. Everything here is plain data.
package github

import "time"

// Kind distinguishes issues from pull requests. The PR body participates
// in trigger scanning as the oldest pseudo-comment; an issue body does not.
type Kind string

const (
	KindIssue       Kind = "issue"
	KindPullRequest Kind = "pr"
)

// Comment is a single issue or PR comment. Comments arrive in the order
// GitHub returned them: oldest first.
type Comment struct {
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Entity is an already-fetched issue or pull request.
type Entity struct {
	Number   int       `json:"number"`
	Kind     Kind      `json:"kind"`
	Author   string    `json:"author"`
	Body     string    `json:"body"`
	Labels   []string  `json:"labels,omitempty"`
	Comments []Comment `json:"comments"`
}

// AuthorizationRequest asks whether a principal may perform an action
// against a repository. Action is a composite key such as "issue_approved"
// or "pr_fix"; rate-limit budgets are tracked per (principal, action).
type AuthorizationRequest struct {
	Principal    string `json:"principal"`
	Action       string `json:"action"`
	Repository   string `json:"repository"` // "owner/repo"
	EntityKind   Kind   `json:"entity_kind"`
	EntityNumber int    `json:"entity_number"`
}

// Owner returns the owner half of an "owner/repo" repository name.
// Returns the input unchanged when no slash is present.
func Owner(repository string) string {
	for i := 0; i < len(repository); i++ {
		if repository[i] == '/' {
			return repository[:i]
		}
	}
	return repository
}
