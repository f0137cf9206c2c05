package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/sparkpost-monitor/internal/domain"
)

func noJitter() float64 { return 0 }

func mustPlan(t *testing.T, cfg Config, commitments map[int]time.Time, items []Input, now time.Time) []Result {
	t.Helper()
	res, err := Plan(cfg, commitments, items, now, 0, noJitter)
	require.NoError(t, err)
	return res
}

func TestPlan_EmptyPoolExhaustionWrapsAround(t *testing.T) {
	cfg := DefaultConfig(domain.SenderJeffRichmond)
	cfg.DisableWorkHours = true
	poolSize := len(domain.BaseDomains)

	items := make([]Input, poolSize+3)
	for i := range items {
		items[i] = Input{QueueItemID: "item"}
	}

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) // Monday
	res := mustPlan(t, cfg, map[int]time.Time{}, items, now)

	require.Len(t, res, poolSize+3)
	assert.Equal(t, res[0].DomainIndex, res[poolSize].DomainIndex, "round robin must wrap at pool size")
	assert.Equal(t, res[1].DomainIndex, res[poolSize+1].DomainIndex)
}

func TestPlan_ClampsOverWorkingHoursBoundary(t *testing.T) {
	cfg := DefaultConfig(domain.SenderJeffRichmond)
	cfg.WorkStart, cfg.WorkEnd = 9, 17
	cfg.IntervalMinutes = 180 // 3 hours, to push past the boundary quickly

	// Monday 16:00 PT, still inside the window.
	loc, err := time.LoadLocation(cfg.Timezone)
	require.NoError(t, err)
	now := time.Date(2026, 3, 2, 16, 0, 0, 0, loc)

	d := 0
	items := []Input{
		{QueueItemID: "a", PinnedDomainIndex: &d},
		{QueueItemID: "b", PinnedDomainIndex: &d},
	}
	res := mustPlan(t, cfg, map[int]time.Time{}, items, now)

	require.Len(t, res, 2)
	// second item lands 3 hours after the first -> past 17:00 -> clamped to next weekday 09:00
	second := res[1].ScheduledFor.In(loc)
	assert.Equal(t, 9, second.Hour())
	assert.Equal(t, time.Tuesday, second.Weekday())
}

func TestPlan_WeekendIsSkipped(t *testing.T) {
	cfg := DefaultConfig(domain.SenderJeffRichmond)
	loc, err := time.LoadLocation(cfg.Timezone)
	require.NoError(t, err)
	// Saturday
	now := time.Date(2026, 3, 7, 12, 0, 0, 0, loc)

	res := mustPlan(t, cfg, map[int]time.Time{}, []Input{{QueueItemID: "a"}}, now)
	require.Len(t, res, 1)
	scheduled := res[0].ScheduledFor.In(loc)
	assert.Equal(t, time.Monday, scheduled.Weekday())
	assert.Equal(t, cfg.WorkStart, scheduled.Hour())
}

func TestPlan_RetryReusesPinnedDomainAndRespectsCommitment(t *testing.T) {
	cfg := DefaultConfig(domain.SenderJeffRichmond)
	cfg.DisableWorkHours = true

	pinned := 4
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	existingCommit := now.Add(-1 * time.Hour)

	items := []Input{{QueueItemID: "retry-1", PinnedDomainIndex: &pinned}}
	res := mustPlan(t, cfg, map[int]time.Time{pinned: existingCommit}, items, now)

	require.Len(t, res, 1)
	assert.Equal(t, pinned, res[0].DomainIndex)
	expected := existingCommit.Add(time.Duration(cfg.IntervalMinutes * float64(time.Minute)))
	assert.Equal(t, expected, res[0].ScheduledFor)
}

func TestPlan_SecondItemOnSameDomainStacksInterval(t *testing.T) {
	cfg := DefaultConfig(domain.SenderJeffRichmond)
	cfg.DisableWorkHours = true
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	d := 2
	items := []Input{
		{QueueItemID: "a", PinnedDomainIndex: &d},
		{QueueItemID: "b", PinnedDomainIndex: &d},
	}
	res := mustPlan(t, cfg, map[int]time.Time{}, items, now)

	require.Len(t, res, 2)
	interval := time.Duration(cfg.IntervalMinutes * float64(time.Minute))
	assert.Equal(t, now, res[0].ScheduledFor)
	assert.Equal(t, res[0].ScheduledFor.Add(interval), res[1].ScheduledFor)
}
