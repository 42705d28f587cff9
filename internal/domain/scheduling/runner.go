package scheduling

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Runner keeps the publishing horizon filled and completes elapsed slots on a
// fixed schedule until its context ends.
type Runner struct {
	publisher    *Publisher
	horizonDays  int
	publishEvery time.Duration
	sweepEvery   time.Duration
	logger       zerolog.Logger
}

func NewRunner(p *Publisher, horizonDays int, logger zerolog.Logger) *Runner {
	return &Runner{
		publisher:    p,
		horizonDays:  horizonDays,
		publishEvery: time.Hour,
		sweepEvery:   15 * time.Minute,
		logger:       logger,
	}
}

func (r *Runner) WithPublishInterval(d time.Duration) *Runner {
	if d > 0 {
		r.publishEvery = d
	}
	return r
}

func (r *Runner) WithSweepInterval(d time.Duration) *Runner {
	if d > 0 {
		r.sweepEvery = d
	}
	return r
}

// Run publishes and sweeps once, then on every tick. It returns when ctx is done.
func (r *Runner) Run(ctx context.Context) {
	publish := time.NewTicker(r.publishEvery)
	defer publish.Stop()
	sweep := time.NewTicker(r.sweepEvery)
	defer sweep.Stop()

	r.publishOnce(ctx)
	r.sweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-publish.C:
			r.publishOnce(ctx)
		case <-sweep.C:
			r.sweepOnce(ctx)
		}
	}
}

func (r *Runner) publishOnce(ctx context.Context) {
	results, err := r.publisher.PublishAll(ctx, r.publisher.Today(), r.horizonDays)
	if err != nil {
		r.logger.Error().Err(err).Msg("scheduled publish finished with errors")
	}
	created := 0
	for _, res := range results {
		created += res.Created
	}
	r.logger.Debug().Int("doctors", len(results)).Int("created", created).Msg("scheduled publish done")
}

func (r *Runner) sweepOnce(ctx context.Context) {
	if _, err := r.publisher.Sweep(ctx); err != nil {
		r.logger.Error().Err(err).Msg("scheduled sweep failed")
	}
}
