package job

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"aether-service/internal/metrics"
	"aether-service/internal/repository"
)

const statsTimeout = 10 * time.Second

// WorkspaceCounter is the part of the workspace repository the stats job needs
type WorkspaceCounter interface {
	Count(ctx context.Context) (int64, error)
}

var _ WorkspaceCounter = (repository.WorkspaceRepository)(nil)

// WorkspaceStatsJob refreshes the workspaces_total gauge
type WorkspaceStatsJob struct {
	repo    WorkspaceCounter
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewWorkspaceStatsJob creates a new WorkspaceStatsJob instance
func NewWorkspaceStatsJob(repo WorkspaceCounter, m *metrics.Metrics, logger *zap.Logger) *WorkspaceStatsJob {
	return &WorkspaceStatsJob{
		repo:    repo,
		metrics: m,
		logger:  logger,
	}
}

// Run counts stored workspaces and publishes the total
func (j *WorkspaceStatsJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()

	count, err := j.repo.Count(ctx)
	if err != nil {
		j.logger.Warn("Failed to count workspaces", zap.Error(err))
		return
	}

	j.metrics.SetWorkspacesTotal(count)
	j.logger.Debug("Workspace stats refreshed", zap.Int64("workspaces", count))
}

// Schedule registers the job on a new cron scheduler without starting it
func Schedule(spec string, j *WorkspaceStatsJob) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddJob(spec, j); err != nil {
		return nil, fmt.Errorf("invalid stats schedule %q: %w", spec, err)
	}
	return c, nil
}
