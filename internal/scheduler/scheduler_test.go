package scheduler

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJob struct {
	name string
	err  error
	runs int
}

func (f *fakeJob) Name() string { return f.name }
func (f *fakeJob) Run() error {
	f.runs++
	return f.err
}

func TestAddJob_RejectsMalformedCronExpression(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddJob("not a cron expression", &fakeJob{name: "bad"})
	require.Error(t, err)
}

func TestAddJob_AcceptsAStandardFiveFieldExpression(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddJob("0 2 * * *", &fakeJob{name: "nightly-sweep"})
	assert.NoError(t, err)
}

func TestRunNow_ExecutesTheJobImmediatelyAndReturnsItsError(t *testing.T) {
	s := New(zerolog.Nop())
	job := &fakeJob{name: "sweep"}

	require.NoError(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)

	job.err = errors.New("sweep failed")
	assert.ErrorIs(t, s.RunNow(job), job.err)
}

func TestStartAndStop_DoNotBlockWithNoScheduledJobs(t *testing.T) {
	s := New(zerolog.Nop())
	s.Start()
	s.Stop()
}
