package executormanager

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/agentforge/controlplane/internal/common/config"
	"github.com/agentforge/controlplane/internal/common/logger"
	"github.com/agentforge/controlplane/internal/resolver"
	"github.com/agentforge/controlplane/internal/run"
	"github.com/agentforge/controlplane/internal/session"
	"github.com/agentforge/controlplane/internal/stager"
)

const defaultClaimPollInterval = 2 * time.Second

// Manager runs the claim/resolve/stage/dispatch loop described in spec.md
// §1-§2: a pool of workers each repeatedly claim the oldest queued run,
// resolve its effective configuration, stage its inputs, and forward the
// prepared task to an executor worker.
type Manager struct {
	runs     run.Repository
	sessions session.Repository
	resolve  *resolver.Resolver
	stage    *stager.Stager
	dispatch *Dispatcher
	cfg      config.ExecutorManagerConfig
	log      *logger.Logger
	workerID string

	resolveGroup singleflight.Group

	group  *errgroup.Group
	cancel context.CancelFunc
}

// New creates a Manager. workerID identifies this process and is passed to
// every run Claim call.
func New(
	runs run.Repository,
	sessions session.Repository,
	resolve *resolver.Resolver,
	stage *stager.Stager,
	dispatch *Dispatcher,
	cfg config.ExecutorManagerConfig,
	workerID string,
	log *logger.Logger,
) *Manager {
	if log == nil {
		log = logger.Default()
	}
	return &Manager{
		runs:     runs,
		sessions: sessions,
		resolve:  resolve,
		stage:    stage,
		dispatch: dispatch,
		cfg:      cfg,
		workerID: workerID,
		log:      log.With(zap.String("component", "executor-manager")),
	}
}

// Start launches cfg.Concurrency claim workers (at least 1) in the
// background. Calling Start twice without Stop is a no-op.
func (m *Manager) Start(ctx context.Context) {
	if m.cancel != nil {
		return
	}

	concurrency := m.cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var groupCtx context.Context
	groupCtx, m.cancel = context.WithCancel(ctx)
	g, groupCtx := errgroup.WithContext(groupCtx)
	m.group = g

	for slot := 0; slot < concurrency; slot++ {
		slot := slot
		g.Go(func() error {
			m.claimLoop(groupCtx, slot)
			return nil
		})
	}

	m.log.Info("executor manager started", zap.Int("concurrency", concurrency))
}

// Stop cancels every claim worker and waits for them to exit.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	_ = m.group.Wait()
	m.cancel = nil
	m.log.Info("executor manager stopped")
}

func (m *Manager) pollInterval() time.Duration {
	if m.cfg.ClaimPollInterval <= 0 {
		return defaultClaimPollInterval
	}
	return time.Duration(m.cfg.ClaimPollInterval) * time.Second
}

// claimLoop is one worker slot's poll loop. A successful claim is processed
// immediately and the next poll is attempted right away, so a backlog of
// queued runs drains at up to `concurrency` runs in flight rather than
// waiting out the full interval between every claim.
func (m *Manager) claimLoop(ctx context.Context, slot int) {
	ticker := time.NewTicker(m.pollInterval())
	defer ticker.Stop()

	for {
		claimed := m.pollOnce(ctx, slot)
		if claimed {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pollOnce claims at most one run and processes it, returning whether a run
// was claimed (regardless of whether processing it ultimately failed).
func (m *Manager) pollOnce(ctx context.Context, slot int) bool {
	r, err := m.runs.Claim(ctx, m.workerID)
	if err != nil {
		m.log.Error("claim failed", zap.Int("slot", slot), zap.Error(err))
		return false
	}
	if r == nil {
		return false
	}

	log := m.log.With(zap.String("run_id", r.ID), zap.Int("slot", slot))
	if err := m.processRun(ctx, r); err != nil {
		log.Error("run processing failed", zap.Error(err))
		m.failRun(ctx, r, err)
	}
	return true
}

func (m *Manager) processRun(ctx context.Context, r *run.Run) error {
	sess, err := m.sessions.GetSession(ctx, r.SessionID, false)
	if err != nil {
		return err
	}

	effective, err := m.resolveConfig(ctx, sess.UserID, r.ConfigSnapshot)
	if err != nil {
		return err
	}

	staged, err := m.stage.Stage(ctx, r.SessionID, stagerEntries(effective))
	if err != nil {
		return err
	}

	claimToken := ""
	if r.ClaimToken != nil {
		claimToken = *r.ClaimToken
	}
	if _, err := m.runs.Start(ctx, r.ID, claimToken); err != nil {
		return err
	}

	return m.dispatch.Dispatch(ctx, DispatchTask{
		RunID:            r.ID,
		SessionID:        r.SessionID,
		UserID:           sess.UserID,
		ClaimToken:       claimToken,
		EffectiveConfig:  effective,
		StagedInputFiles: toStagedInputs(staged),
	})
}

// resolveConfig collapses concurrent resolve calls carrying the same user
// and config_snapshot (e.g. two queued runs created back-to-back from the
// same chat turn, or a retry of an orphan-released run) into a single
// underlying preset/env-var fetch.
func (m *Manager) resolveConfig(ctx context.Context, userID string, snapshot map[string]any) (map[string]any, error) {
	key := userID
	if encoded, err := json.Marshal(snapshot); err == nil {
		key += ":" + string(encoded)
	}

	v, err, _ := m.resolveGroup.Do(key, func() (any, error) {
		return m.resolve.Resolve(ctx, userID, snapshot)
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

func (m *Manager) failRun(ctx context.Context, r *run.Run, cause error) {
	claimToken := ""
	if r.ClaimToken != nil {
		claimToken = *r.ClaimToken
	}
	if _, err := m.runs.Fail(ctx, r.ID, claimToken, run.RunError{
		Code:    "DISPATCH_FAILED",
		Message: cause.Error(),
	}); err != nil {
		m.log.Error("failed to mark run failed after dispatch error", zap.String("run_id", r.ID), zap.Error(err))
	}
	if err := m.sessions.SetStatus(ctx, r.SessionID, session.StatusFailed); err != nil {
		m.log.Error("failed to mark session failed after dispatch error", zap.String("session_id", r.SessionID), zap.Error(err))
	}
}
