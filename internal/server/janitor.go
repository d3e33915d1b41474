package server

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/dativo-io/warden/internal/ratelimit"
)

// compactionSchedule runs hourly. Pruning also happens inline on every
// check; the janitor additionally evicts keys for principals that stopped
// making requests entirely, so the store file never grows unboundedly.
const compactionSchedule = "0 * * * *"

// Janitor periodically compacts the shared rate-limit store in serve mode.
type Janitor struct {
	cron    *cron.Cron
	limiter *ratelimit.Limiter
}

// NewJanitor creates a janitor for the given limiter.
func NewJanitor(limiter *ratelimit.Limiter) (*Janitor, error) {
	j := &Janitor{cron: cron.New(), limiter: limiter}
	_, err := j.cron.AddFunc(compactionSchedule, func() {
		if err := j.limiter.Compact(); err != nil {
			log.Warn().Err(err).Msg("rate_limit_compaction_failed")
		}
	})
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Start begins the compaction schedule.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule and waits for a running compaction to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}
