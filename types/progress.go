package types

import (
	"math"
	"time"
)

// MaxStrengthProgress is the ceiling of Progress.StrengthProgress.
const MaxStrengthProgress = 100.0

// Progress summarises a user's recent completions. There is one record
// per user, created on first read or write.
type Progress struct {
	// UserID is the owning user and the record's key.
	UserID string `json:"userId" db:"user_id"`

	// WorkoutsToday counts completions in the current day, capped by the daily goal.
	WorkoutsToday int `json:"workoutsToday" db:"workouts_today"`

	// WorkoutsThisWeek counts completions in the current ISO week, capped by the weekly goal.
	WorkoutsThisWeek int `json:"workoutsThisWeek" db:"workouts_this_week"`

	// WorkoutsThisMonth counts completions in the current month, capped by the monthly goal.
	WorkoutsThisMonth int `json:"workoutsThisMonth" db:"workouts_this_month"`

	// StrengthProgress is a percentage in [0, 100] that grows with every
	// completion and never rolls over.
	StrengthProgress float64 `json:"strengthProgress" db:"strength_progress"`

	// DayStart, WeekStart and MonthStart are the starts of the periods the
	// counters above belong to.
	DayStart   time.Time `json:"dayStart" db:"day_start"`
	WeekStart  time.Time `json:"weekStart" db:"week_start"`
	MonthStart time.Time `json:"monthStart" db:"month_start"`

	// LastUpdated is the time of the most recent write.
	LastUpdated time.Time `json:"lastUpdated" db:"last_updated"`
}

// ProgressGoals are the ceilings applied to the progress counters.
type ProgressGoals struct {
	Daily   int `json:"daily"`
	Weekly  int `json:"weekly"`
	Monthly int `json:"monthly"`
}

// DefaultProgressGoals is one workout a day, three a week, twelve a month.
var DefaultProgressGoals = ProgressGoals{Daily: 1, Weekly: 3, Monthly: 12}

// StrengthStep is the strength percentage added per completion.
func (g ProgressGoals) StrengthStep() float64 {
	if g.Monthly <= 0 {
		return 0
	}
	return MaxStrengthProgress / float64(g.Monthly)
}

// Periods holds the period starts that contain a given instant.
type Periods struct {
	Day   time.Time
	Week  time.Time
	Month time.Time
}

// PeriodsAt returns the day, ISO week (Monday) and month starts containing
// t, evaluated in loc and returned in UTC.
func PeriodsAt(t time.Time, loc *time.Location) Periods {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	offset := (int(day.Weekday()) + 6) % 7
	week := day.AddDate(0, 0, -offset)
	month := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return Periods{Day: day.UTC(), Week: week.UTC(), Month: month.UTC()}
}

// RolledOver returns p with every counter whose period ended before now
// reset to zero and its period start moved forward.
func (p Progress) RolledOver(periods Periods) Progress {
	if !p.DayStart.Equal(periods.Day) {
		p.WorkoutsToday = 0
		p.DayStart = periods.Day
	}
	if !p.WeekStart.Equal(periods.Week) {
		p.WorkoutsThisWeek = 0
		p.WeekStart = periods.Week
	}
	if !p.MonthStart.Equal(periods.Month) {
		p.WorkoutsThisMonth = 0
		p.MonthStart = periods.Month
	}
	return p
}

// Incremented applies one completion to p, honouring the goals as ceilings.
// p must already be rolled over to the current periods.
func (p Progress) Incremented(goals ProgressGoals) Progress {
	p.WorkoutsToday = min(p.WorkoutsToday+1, goals.Daily)
	p.WorkoutsThisWeek = min(p.WorkoutsThisWeek+1, goals.Weekly)
	p.WorkoutsThisMonth = min(p.WorkoutsThisMonth+1, goals.Monthly)
	p.StrengthProgress = math.Min(p.StrengthProgress+goals.StrengthStep(), MaxStrengthProgress)
	return p
}
