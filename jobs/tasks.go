package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sekolah/dashboard/internal/jobs"
	"github.com/sekolah/dashboard/internal/seed"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionPurge deletes expired session rows.
	TaskSessionPurge = "session:purge"
	// TaskBanSweep lifts bans whose expiry passed.
	TaskBanSweep = "users:ban-sweep"
	// TaskSeedUsers provisions the test accounts.
	TaskSeedUsers = "seed:users"
)

// NewSessionPurgeTask builds a session purge task.
func NewSessionPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskSessionPurge, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}

// NewBanSweepTask builds a ban sweep task.
func NewBanSweepTask() *asynq.Task {
	return asynq.NewTask(TaskBanSweep, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}

// NewSeedUsersTask builds a seeding task.
func NewSeedUsersTask() *asynq.Task {
	return asynq.NewTask(TaskSeedUsers, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}

// SessionPurger removes expired session rows.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// BanSweeper lifts expired bans.
type BanSweeper interface {
	LiftExpiredBans(ctx context.Context) (int64, error)
}

// Seeder provisions the test accounts.
type Seeder interface {
	Run(ctx context.Context) seed.Report
}

// Processors binds task types to the services that execute them.
type Processors struct {
	Sessions SessionPurger
	Bans     BanSweeper
	Seeder   Seeder
	Metrics  *jobmetrics.Metrics
	Logger   *slog.Logger
}

// Handlers returns the task handlers for every configured processor.
func (p *Processors) Handlers() []TaskHandler {
	var out []TaskHandler
	if p.Sessions != nil {
		out = append(out, TaskHandler{Type: TaskSessionPurge, Handler: p.HandleSessionPurge})
	}
	if p.Bans != nil {
		out = append(out, TaskHandler{Type: TaskBanSweep, Handler: p.HandleBanSweep})
	}
	if p.Seeder != nil {
		out = append(out, TaskHandler{Type: TaskSeedUsers, Handler: p.HandleSeedUsers})
	}
	return out
}

func (p *Processors) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// HandleSessionPurge processes TaskSessionPurge tasks.
func (p *Processors) HandleSessionPurge(ctx context.Context, _ *asynq.Task) error {
	tracker := p.Metrics.Track(TaskSessionPurge)
	n, err := p.Sessions.PurgeExpiredSessions(ctx)
	if err != nil {
		p.logger().Error("session purge", slog.Any("error", err))
		return tracker.End(err)
	}
	p.Metrics.AddItems(TaskSessionPurge, n)
	p.logger().Info("session purge", slog.Int64("purged", n))
	return tracker.End(nil)
}

// HandleBanSweep processes TaskBanSweep tasks.
func (p *Processors) HandleBanSweep(ctx context.Context, _ *asynq.Task) error {
	tracker := p.Metrics.Track(TaskBanSweep)
	n, err := p.Bans.LiftExpiredBans(ctx)
	if err != nil {
		p.logger().Error("ban sweep", slog.Any("error", err))
		return tracker.End(err)
	}
	p.Metrics.AddItems(TaskBanSweep, n)
	p.logger().Info("ban sweep", slog.Int64("lifted", n))
	return tracker.End(nil)
}

// HandleSeedUsers processes TaskSeedUsers tasks. Per-account failures are
// logged by the seeder and do not fail the task.
func (p *Processors) HandleSeedUsers(ctx context.Context, _ *asynq.Task) error {
	tracker := p.Metrics.Track(TaskSeedUsers)
	report := p.Seeder.Run(ctx)
	var created int64
	for _, res := range report.Users {
		if res.Status == seed.StatusCreated {
			created++
		}
	}
	p.Metrics.AddItems(TaskSeedUsers, created)
	p.logger().Info("seed users", slog.Int("accounts", len(report.Users)), slog.Int64("created", created))
	return tracker.End(nil)
}
