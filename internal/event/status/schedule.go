package status

import (
	"time"
	// Embedded zone database so the organisation timezone resolves the same
	// way on every host.
	_ "time/tzdata"
)

const (
	registrationOpenHour = 8
	// Tuesday is two days after the publish Sunday.
	registrationOpenOffsetDays = 2
)

// Schedule holds default authoring values for a new event.
type Schedule struct {
	PublishAt           time.Time
	RegistrationOpensAt *time.Time
}

// DefaultSchedule proposes publish and registration-open times for an event
// being authored at now. Events are published at midnight on the next Sunday
// (a Sunday counts as already past) and registration opens at 08:00 on the
// Tuesday after that, both in loc. Events without registration publish
// immediately and have no registration-open time.
func DefaultSchedule(now time.Time, loc *time.Location, requiresRegistration bool) Schedule {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	if !requiresRegistration {
		return Schedule{PublishAt: local}
	}

	days := (7 - int(local.Weekday())) % 7
	if days == 0 {
		days = 7
	}
	// time.Date normalises day overflow and keeps wall-clock times stable
	// across DST transitions.
	publish := time.Date(local.Year(), local.Month(), local.Day()+days, 0, 0, 0, 0, loc)
	opens := time.Date(publish.Year(), publish.Month(), publish.Day()+registrationOpenOffsetDays,
		registrationOpenHour, 0, 0, 0, loc)
	return Schedule{PublishAt: publish, RegistrationOpensAt: &opens}
}
