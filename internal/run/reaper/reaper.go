// Package reaper implements the orphan-reaper: a background sweep that
// releases claimed runs abandoned by a worker that died before calling
// start_run, per spec §4.1 "Release".
package reaper

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/agentforge/controlplane/internal/common/logger"
	"github.com/agentforge/controlplane/internal/run"
)

// Reaper periodically releases claimed-but-never-started runs back to
// queued once their claim has outlived claimTTLSeconds.
type Reaper struct {
	repo            run.Repository
	log             *logger.Logger
	claimTTLSeconds int
	cronSched       *cron.Cron
}

// New builds a Reaper. Its scheduler uses cron.WithSeconds(), so the spec
// later given to Start is a six-field cron expression with a leading
// seconds field, e.g. "0 * * * * *" for once a minute or "*/30 * * * * *"
// for every 30 seconds.
func New(repo run.Repository, log *logger.Logger, claimTTLSeconds int) *Reaper {
	return &Reaper{
		repo:            repo,
		log:             log,
		claimTTLSeconds: claimTTLSeconds,
		cronSched:       cron.New(cron.WithSeconds()),
	}
}

// Start schedules the sweep at the given cron spec and begins running it in
// the background. Call Stop to halt it.
func (r *Reaper) Start(spec string) error {
	_, err := r.cronSched.AddFunc(spec, r.sweepOnce)
	if err != nil {
		return err
	}
	r.cronSched.Start()
	return nil
}

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (r *Reaper) Stop() {
	ctx := r.cronSched.Stop()
	<-ctx.Done()
}

func (r *Reaper) sweepOnce() {
	ctx := context.Background()
	released, err := r.repo.ReleaseOrphaned(ctx, r.claimTTLSeconds)
	if err != nil {
		r.log.WithError(err).Error("orphan reaper sweep failed")
		return
	}
	if released > 0 {
		r.log.Info("released orphaned runs", zap.Int("count", released))
	}
}
