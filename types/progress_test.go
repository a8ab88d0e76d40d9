package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPeriodsAtStartsWeekOnMonday(t *testing.T) {
	// 2026-10-15 is a Thursday.
	now := time.Date(2026, time.October, 15, 18, 30, 0, 0, time.UTC)
	p := PeriodsAt(now, time.UTC)

	require.Equal(t, time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC), p.Day)
	require.Equal(t, time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC), p.Week)
	require.Equal(t, time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC), p.Month)

	sunday := time.Date(2026, time.October, 18, 23, 0, 0, 0, time.UTC)
	require.Equal(t, p.Week, PeriodsAt(sunday, time.UTC).Week)
}

func TestPeriodsAtHonoursLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	// 22:00 UTC is already the next day at UTC+3.
	now := time.Date(2026, time.October, 31, 22, 0, 0, 0, time.UTC)
	p := PeriodsAt(now, loc)

	require.Equal(t, time.Date(2026, time.November, 1, 0, 0, 0, 0, loc).UTC(), p.Day)
	require.Equal(t, time.Date(2026, time.November, 1, 0, 0, 0, 0, loc).UTC(), p.Month)
}

func TestIncrementedCapsCounters(t *testing.T) {
	periods := PeriodsAt(time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC), time.UTC)
	p := Progress{UserID: "u"}.RolledOver(periods)

	for i := 0; i < 20; i++ {
		p = p.Incremented(DefaultProgressGoals)
	}

	require.Equal(t, 1, p.WorkoutsToday)
	require.Equal(t, 3, p.WorkoutsThisWeek)
	require.Equal(t, 12, p.WorkoutsThisMonth)
	require.Equal(t, MaxStrengthProgress, p.StrengthProgress)
}

func TestStrengthReachesHundredAfterTwelve(t *testing.T) {
	p := Progress{}
	for i := 0; i < 12; i++ {
		p = p.Incremented(DefaultProgressGoals)
	}
	require.InDelta(t, 100.0, p.StrengthProgress, 1e-9)
	require.LessOrEqual(t, p.StrengthProgress, MaxStrengthProgress)
}

func TestRolledOverResetsOnlyStalePeriods(t *testing.T) {
	monday := time.Date(2026, time.October, 12, 10, 0, 0, 0, time.UTC)
	p := Progress{}.RolledOver(PeriodsAt(monday, time.UTC)).Incremented(DefaultProgressGoals)

	tuesday := monday.Add(24 * time.Hour)
	rolled := p.RolledOver(PeriodsAt(tuesday, time.UTC))

	require.Equal(t, 0, rolled.WorkoutsToday)
	require.Equal(t, 1, rolled.WorkoutsThisWeek)
	require.Equal(t, 1, rolled.WorkoutsThisMonth)
	require.Equal(t, p.StrengthProgress, rolled.StrengthProgress)

	nextMonth := time.Date(2026, time.November, 2, 10, 0, 0, 0, time.UTC)
	rolled = p.RolledOver(PeriodsAt(nextMonth, time.UTC))
	require.Zero(t, rolled.WorkoutsToday)
	require.Zero(t, rolled.WorkoutsThisWeek)
	require.Zero(t, rolled.WorkoutsThisMonth)
}
