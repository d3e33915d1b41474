package trigger

import (
	"github.com/rs/zerolog/log"

	"github.com/dativo-io/warden/internal/github"
)

// AllowFunc reports whether a principal's triggers are visible to the
// scanner. Triggers from principals it rejects are skipped entirely, not
// merely deprioritized, so an unauthorized commenter cannot poison the
// scan order.
type AllowFunc func(principal string) bool

// Scan finds the authoritative trigger for an entity: the most recent
// trigger posted by an allowed principal wins. Comments are walked in
// reverse chronological order; for pull requests the PR body acts as the
// oldest pseudo-comment when no comment matched. Scan is a pure query and
// never mutates the entity.
func Scan(entity *github.Entity, allow AllowFunc) (Trigger, string, bool) {
	if entity == nil || allow == nil {
		return Trigger{}, "", false
	}

	for i := len(entity.Comments) - 1; i >= 0; i-- {
		c := entity.Comments[i]
		if !allow(c.Author) {
			log.Debug().
				Str("author", c.Author).
				Int("entity", entity.Number).
				Msg("trigger_scan_skipped_unauthorized")
			continue
		}
		if t, ok := Parse(c.Body); ok {
			return t, c.Author, true
		}
	}

	if entity.Kind == github.KindPullRequest && allow(entity.Author) {
		if t, ok := Parse(entity.Body); ok {
			return t, entity.Author, true
		}
	}

	return Trigger{}, "", false
}
