package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func TestAddJob_Schedules(t *testing.T) {
	s := New(zerolog.Nop())

	require.NoError(t, s.AddJob("@every 1h", &countingJob{name: "hourly"}))
	require.NoError(t, s.AddJob("0 2 * * *", &countingJob{name: "five_field"}))
	require.NoError(t, s.AddJob("30 0 2 * * *", &countingJob{name: "six_field"}))

	assert.ElementsMatch(t, []string{"hourly", "five_field", "six_field"}, s.JobNames())
	_, ok := s.Job("hourly")
	assert.True(t, ok)
}

func TestAddJob_Rejects(t *testing.T) {
	s := New(zerolog.Nop())

	assert.Error(t, s.AddJob("not a schedule", &countingJob{name: "bad"}))
	_, ok := s.Job("bad")
	assert.False(t, ok)

	require.NoError(t, s.AddJob("@daily", &countingJob{name: "dup"}))
	assert.Error(t, s.AddJob("@hourly", &countingJob{name: "dup"}))
}

func TestRunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "manual", err: errors.New("boom")}

	assert.EqualError(t, s.RunNow(job), "boom")
	assert.Equal(t, int32(1), job.runs.Load())
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "fast"}
	failing := &countingJob{name: "failing", err: errors.New("nope")}
	require.NoError(t, s.AddJob("@every 1s", job))
	require.NoError(t, s.AddJob("@every 1s", failing))

	s.Start()
	assert.Eventually(t, func() bool {
		return job.runs.Load() > 0 && failing.runs.Load() > 0
	}, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestStatus(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("@hourly", &countingJob{name: "b_hourly"}))
	require.NoError(t, s.AddJob("@every 30m", &countingJob{name: "a_half_hourly"}))

	statuses := s.Status()
	require.Len(t, statuses, 2)
	assert.Equal(t, "a_half_hourly", statuses[0].Name)
	assert.Equal(t, "@every 30m", statuses[0].Schedule)
	assert.True(t, statuses[0].NextRun.IsZero())

	s.Start()
	defer s.Stop()
	assert.Eventually(t, func() bool {
		return !s.Status()[1].NextRun.IsZero()
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"a_half_hourly", "b_hourly"}, s.JobNames())
}
