package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentsift/talentsift/internal/domain"
)

func TestStatusTrackerLifecycle(t *testing.T) {
	t.Parallel()
	tr := NewStatusTracker(time.Hour)

	assert.Equal(t, domain.StageIdle, tr.Get("job-1").Stage)

	require.NoError(t, tr.Start("job-1", 3))
	st := tr.Get("job-1")
	assert.Equal(t, domain.StageUploading, st.Stage)
	assert.Equal(t, 3, st.Total)
	assert.False(t, st.StartedAt.IsZero())
	assert.Nil(t, st.CompletedAt)

	tr.Advance("job-1", domain.StageParsingResumes, "parsing a.pdf", 1, 3)
	tr.Advance("job-1", domain.StageGeneratingEmbeddings, "embedding a.pdf", 1, 3)
	st = tr.Get("job-1")
	assert.Equal(t, domain.StageGeneratingEmbeddings, st.Stage)
	assert.Equal(t, 1, st.Current)

	tr.Complete("job-1", "done")
	st = tr.Get("job-1")
	assert.Equal(t, domain.StageComplete, st.Stage)
	assert.Equal(t, st.Total, st.Current)
	require.NotNil(t, st.CompletedAt)
}

func TestStatusTrackerStageIsMonotonic(t *testing.T) {
	t.Parallel()
	tr := NewStatusTracker(time.Hour)
	require.NoError(t, tr.Start("job-1", 2))

	// Second item re-enters the parsing stage after the first item reached
	// embedding; the displayed stage must not move backwards.
	tr.Advance("job-1", domain.StageGeneratingEmbeddings, "embedding a.pdf", 1, 2)
	tr.Advance("job-1", domain.StageParsingResumes, "parsing b.pdf", 2, 2)

	st := tr.Get("job-1")
	assert.Equal(t, domain.StageGeneratingEmbeddings, st.Stage)
	assert.Equal(t, "parsing b.pdf", st.Message)
	assert.Equal(t, 2, st.Current)
}

func TestStatusTrackerRejectsConcurrentRuns(t *testing.T) {
	t.Parallel()
	tr := NewStatusTracker(time.Hour)
	require.NoError(t, tr.Start("job-1", 1))
	require.ErrorIs(t, tr.Start("job-1", 1), domain.ErrConflict)

	// A terminal run frees the key.
	tr.Fail("job-1", "boom")
	require.NoError(t, tr.Start("job-1", 1))
}

func TestStatusTrackerFreshRunResetsState(t *testing.T) {
	t.Parallel()
	tr := NewStatusTracker(time.Hour)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return base }

	require.NoError(t, tr.Start("job-1", 2))
	tr.Fail("job-1", "upstream down")

	tr.now = func() time.Time { return base.Add(10 * time.Minute) }
	require.NoError(t, tr.Start("job-1", 5))

	st := tr.Get("job-1")
	assert.Equal(t, domain.StageUploading, st.Stage)
	assert.Empty(t, st.Error)
	assert.Equal(t, 5, st.Total)
	assert.Equal(t, 0, st.Current)
	assert.True(t, st.StartedAt.After(base))
	assert.Nil(t, st.CompletedAt)
}

func TestStatusTrackerEvictsTerminalEntries(t *testing.T) {
	t.Parallel()
	tr := NewStatusTracker(time.Hour)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return base }

	require.NoError(t, tr.Start("done", 1))
	tr.Complete("done", "ok")
	require.NoError(t, tr.Start("running", 1))

	tr.now = func() time.Time { return base.Add(2 * time.Hour) }
	tr.evict()

	assert.Equal(t, domain.StageIdle, tr.Get("done").Stage)
	assert.Equal(t, domain.StageUploading, tr.Get("running").Stage)
}

func TestStatusTrackerIgnoresAdvanceAfterTerminal(t *testing.T) {
	t.Parallel()
	tr := NewStatusTracker(time.Hour)
	require.NoError(t, tr.Start("job-1", 1))
	tr.Complete("job-1", "ok")

	tr.Advance("job-1", domain.StageParsingResumes, "late worker", 1, 1)
	assert.Equal(t, domain.StageComplete, tr.Get("job-1").Stage)
}

func TestStatusTrackerReleaseDropsEntryImmediately(t *testing.T) {
	t.Parallel()
	tr := NewStatusTracker(time.Hour)
	require.NoError(t, tr.Start("job-1", 3))
	tr.Advance("job-1", domain.StageParsingResumes, "parsing", 1, 3)

	tr.Release("job-1")

	assert.Equal(t, domain.StageIdle, tr.Get("job-1").Stage)
	require.NoError(t, tr.Start("job-1", 1))
}

func TestStatusTrackerReportSurvivesTerminalState(t *testing.T) {
	t.Parallel()
	tr := NewStatusTracker(time.Hour)
	require.NoError(t, tr.Start("job-1", 3))

	tr.SetReport("job-1", 0, 3, []string{"a.txt: bad", "b.txt: bad", "c.txt: bad"})
	tr.Fail("job-1", "no resumes could be processed")

	st := tr.Get("job-1")
	assert.Equal(t, domain.StageError, st.Stage)
	assert.Equal(t, 0, st.Analyzed)
	assert.Equal(t, 3, st.Skipped)
	require.Len(t, st.Errors, 3)

	// SetReport after the run has ended must not resurrect the entry.
	tr.SetReport("job-1", 9, 9, nil)
	assert.Equal(t, 3, tr.Get("job-1").Skipped)
}
