// Package stats runs a periodic background job that logs per-application
// channel/connection counts, scheduled with robfig/cron rather than a bare
// time.Ticker.
package stats

import (
	"github.com/robfig/cron/v3"

	"github.com/pulsewire/broker/internal/app"
	"github.com/pulsewire/broker/internal/logger"
)

// Reporter periodically logs registry occupancy for every application.
type Reporter struct {
	apps *app.Registry
	cron *cron.Cron
}

// NewReporter builds a Reporter that has not yet been started.
func NewReporter(apps *app.Registry) *Reporter {
	return &Reporter{
		apps: apps,
		cron: cron.New(),
	}
}

// Start schedules the report job on the given cron spec (e.g. "@every 30s")
// and begins running it in the background.
func (r *Reporter) Start(spec string) error {
	_, err := r.cron.AddFunc(spec, r.report)
	if err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any in-flight report to finish.
func (r *Reporter) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

func (r *Reporter) report() {
	log := logger.Log.With().Str("component", "stats").Logger()
	for _, id := range r.apps.List() {
		a, ok := r.apps.Get(id)
		if !ok {
			continue
		}
		log.Info().
			Str("app_id", id).
			Int("channels", a.Channels.Count()).
			Int("connections", a.Connections.Count()).
			Msg("registry occupancy")
	}
}
