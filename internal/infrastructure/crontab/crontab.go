package crontab

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mileusna/crontab"
	"github.com/rs/zerolog"

	"github.com/postora/postora-server/internal/config"
	"github.com/postora/postora-server/internal/infrastructure/metrics"
)

// StagingSweeper removes staging leftovers older than maxAge.
type StagingSweeper interface {
	SweepStaging(maxAge time.Duration) (int, error)
}

// Crontab runs the periodic storage maintenance jobs.
type Crontab struct {
	ctab    *crontab.Crontab
	cfg     *config.Config
	sweeper StagingSweeper
	log     zerolog.Logger
}

func NewCrontab(cfg *config.Config, sweeper StagingSweeper, log zerolog.Logger) *Crontab {
	return &Crontab{
		ctab:    crontab.New(),
		cfg:     cfg,
		sweeper: sweeper,
		log:     log.With().Str("component", "crontab").Logger(),
	}
}

// Run sweeps once, schedules the sweep job and blocks until ctx is done.
func (c *Crontab) Run(ctx context.Context) error {
	schedule := strings.TrimSpace(c.cfg.StagingSweepSchedule)
	if schedule == "" {
		c.log.Info().Msg("staging sweep disabled")
		c.ctab.Shutdown()
		<-ctx.Done()
		return nil
	}

	// execute once on server start
	c.sweep()

	if err := c.ctab.AddJob(schedule, c.sweep); err != nil {
		c.ctab.Shutdown()
		return fmt.Errorf("schedule staging sweep %q: %w", schedule, err)
	}
	c.log.Info().
		Str("schedule", schedule).
		Dur("max_age", c.cfg.StagingMaxAge).
		Msg("staging sweep scheduled")

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

func (c *Crontab) sweep() {
	removed, err := c.sweeper.SweepStaging(c.cfg.StagingMaxAge)
	metrics.RecordSweep(removed)
	if err != nil {
		metrics.RecordCleanupFailure("sweep")
		c.log.Warn().Err(err).Int("removed", removed).Msg("staging sweep incomplete")
	}
}
