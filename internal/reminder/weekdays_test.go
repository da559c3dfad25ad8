package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readingtracker/internal/models"
)

func TestDescribe(t *testing.T) {
	testCases := []struct {
		days []time.Weekday
		want string
	}{
		{everyDay(), "Every day"},
		{[]time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}, "Weekdays"},
		{[]time.Weekday{time.Saturday, time.Sunday}, "Weekends"},
		{[]time.Weekday{time.Wednesday, time.Monday}, "Mon, Wed"},
		{[]time.Weekday{time.Sunday}, "Sun"},
		{nil, "No days"},
	}

	for _, tc := range testCases {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, Describe(tc.days))
		})
	}
}

func TestParseWeekdays(t *testing.T) {
	days, err := ParseWeekdays("Daily")
	require.NoError(t, err)
	assert.Len(t, days, 7)

	days, err = ParseWeekdays("weekends")
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Sunday, time.Saturday}, days)

	days, err = ParseWeekdays("fri, mon wednesday,mon")
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, days)

	_, err = ParseWeekdays("mon, someday")
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = ParseWeekdays("  ")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestCronSpecFiresWeekly(t *testing.T) {
	spec := cronSpec(models.TimeOfDay{Hour: 7, Minute: 5}, time.Wednesday)
	assert.Equal(t, "5 7 * * 3", spec)

	schedule, err := cron.ParseStandard(spec)
	require.NoError(t, err)

	// Monday 2024-06-10
	from := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	next := schedule.Next(from)
	assert.Equal(t, time.Date(2024, 6, 12, 7, 5, 0, 0, time.UTC), next)
	assert.Equal(t, time.Date(2024, 6, 19, 7, 5, 0, 0, time.UTC), schedule.Next(next))
}

func TestCronScheduler_ScheduleAndCancel(t *testing.T) {
	s := NewCronScheduler(time.UTC, nil)

	require.NoError(t, s.Schedule("r_2", models.TimeOfDay{Hour: 8}, time.Monday))
	require.NoError(t, s.Schedule("r_4", models.TimeOfDay{Hour: 8}, time.Wednesday))
	// Rescheduling the same key replaces the entry
	require.NoError(t, s.Schedule("r_2", models.TimeOfDay{Hour: 9}, time.Monday))

	assert.Equal(t, []string{"r_2", "r_4"}, s.Keys())
	assert.Len(t, s.cron.Entries(), 2)

	s.CancelAll([]string{"r_2", "unknown"})
	assert.Equal(t, []string{"r_4"}, s.Keys())
	assert.Len(t, s.cron.Entries(), 1)
}

func TestCronScheduler_FireUsesNotifier(t *testing.T) {
	s := NewCronScheduler(time.UTC, nil)

	// No notifier yet
	s.fire("r_1")

	var got []string
	s.SetNotifier(NotifierFunc(func(_ context.Context, key string) {
		got = append(got, key)
	}))
	s.fire("r_1")

	assert.Equal(t, []string{"r_1"}, got)
}
