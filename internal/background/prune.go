package background

import (
	"context"
	"log/slog"
	"time"
)

// ExpiredDeleter removes rows past their retention window.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// PruneManager periodically removes expired login audit rows.
type PruneManager struct {
	repo     ExpiredDeleter
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

func NewPruneManager(repo ExpiredDeleter, logger *slog.Logger, interval time.Duration) *PruneManager {
	return &PruneManager{
		repo:     repo,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic prune loop. It runs once immediately, then on
// every tick until Stop is called or the context is cancelled.
func (pm *PruneManager) Start(ctx context.Context) {
	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	pm.run(ctx)

	for {
		select {
		case <-ticker.C:
			pm.run(ctx)
		case <-pm.stopCh:
			pm.logger.Info("prune manager stopped")
			return
		case <-ctx.Done():
			pm.logger.Info("prune manager context cancelled")
			return
		}
	}
}

func (pm *PruneManager) run(ctx context.Context) {
	pruneCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rowsDeleted, err := pm.repo.DeleteExpired(pruneCtx)
	if err != nil {
		pm.logger.Error("failed to prune expired login audit rows", slog.Any("error", err))
		return
	}

	if rowsDeleted > 0 {
		pm.logger.Info("login audit prune completed", slog.Int64("rows_deleted", rowsDeleted))
	}
}

// Stop signals the prune manager to stop
func (pm *PruneManager) Stop() {
	close(pm.stopCh)
}
