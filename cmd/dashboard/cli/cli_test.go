package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolah/dashboard/internal/access"
	"github.com/sekolah/dashboard/internal/seed"
	"github.com/sekolah/dashboard/jobs"
)

type stubRunner struct {
	report seed.Report
}

func (s stubRunner) Run(context.Context) seed.Report {
	return s.report
}

func sampleReport(status string) seed.Report {
	return seed.Report{
		Message: "Seed completed",
		Users: []seed.Result{
			{Email: "admin@test.com", Role: access.RoleAdmin, Status: seed.StatusCreated},
			{Email: "guru@test.com", Role: access.RoleGuru, Status: status},
		},
		Credentials: seed.Credentials{Password: "password123"},
	}
}

func TestSeedCommandHumanOutput(t *testing.T) {
	stdout := new(bytes.Buffer)
	code := SeedCommand(context.Background(), stubRunner{report: sampleReport(seed.StatusUpdated)}, SeedOptions{Stdout: stdout, Stderr: new(bytes.Buffer)})

	require.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "admin@test.com")
	assert.Contains(t, stdout.String(), seed.StatusUpdated)
	assert.Contains(t, stdout.String(), "Password: password123")
}

func TestSeedCommandJSONOutput(t *testing.T) {
	stdout := new(bytes.Buffer)
	code := SeedCommand(context.Background(), stubRunner{report: sampleReport(seed.StatusCreated)}, SeedOptions{JSONOutput: true, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, 0, code)

	var decoded seed.Report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &decoded))
	assert.Len(t, decoded.Users, 2)
}

func TestSeedCommandFailsOnAccountError(t *testing.T) {
	code := SeedCommand(context.Background(), stubRunner{report: sampleReport(seed.StatusError)}, SeedOptions{Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)})
	assert.Equal(t, 1, code)
}

func TestSeedCommandWithoutRunner(t *testing.T) {
	stderr := new(bytes.Buffer)
	code := SeedCommand(context.Background(), nil, SeedOptions{Stdout: new(bytes.Buffer), Stderr: stderr})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "not configured")
}

type recordingEnqueuer struct {
	types []string
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	r.types = append(r.types, task.Type())
	return &asynq.TaskInfo{Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestTriggerEnqueuesKnownJobs(t *testing.T) {
	enq := &recordingEnqueuer{}
	c := NewJobsCLIWith(jobs.NewClientWith(enq), nil)

	for _, name := range []string{jobs.TaskSessionPurge, jobs.TaskBanSweep, jobs.TaskSeedUsers} {
		info, err := c.Trigger(context.Background(), name)
		require.NoError(t, err)
		assert.Equal(t, name, info.Type)
	}
	assert.Equal(t, []string{jobs.TaskSessionPurge, jobs.TaskBanSweep, jobs.TaskSeedUsers}, enq.types)

	_, err := c.Trigger(context.Background(), "report:generate")
	require.ErrorIs(t, err, jobs.ErrUnknownTask)
	assert.Len(t, enq.types, 3)

	_, err = NewJobsCLIWith(nil, nil).Trigger(context.Background(), jobs.TaskBanSweep)
	require.Error(t, err)
}

func TestInspectQueue(t *testing.T) {
	c := NewJobsCLIWith(nil, stubInspector{info: &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 2, Failed: 1}})
	stats, err := c.InspectQueue()
	require.NoError(t, err)
	assert.Equal(t, QueueStats{Queue: jobs.QueueDefault, Pending: 2, Failed: 1}, stats)

	c = NewJobsCLIWith(nil, stubInspector{err: errors.New("redis down")})
	_, err = c.InspectQueue()
	require.Error(t, err)

	_, err = NewJobsCLIWith(nil, nil).InspectQueue()
	require.Error(t, err)
}
