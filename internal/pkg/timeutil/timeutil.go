// Package timeutil provides the working-hours and weekend arithmetic
// shared by the schedule planner and the dispatcher's working-hours
// gate. All functions take an IANA location explicitly; callers own
// the clock.
package timeutil

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const locCacheSize = 64

var (
	locMu    sync.Mutex
	locCache = mustNewLRU()
)

func mustNewLRU() *lru.Cache[string, *time.Location] {
	c, err := lru.New[string, *time.Location](locCacheSize)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadLocation resolves an IANA timezone name, caching the result.
// time.LoadLocation itself caches to some degree, but repeated lookups
// under schedule planning happen in tight per-item loops and benefit
// from a single lookup per distinct zone. The cache is bounded since a
// misbehaving caller could otherwise feed it unbounded distinct names.
func LoadLocation(name string) (*time.Location, error) {
	locMu.Lock()
	loc, ok := locCache.Get(name)
	locMu.Unlock()
	if ok {
		return loc, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	locMu.Lock()
	locCache.Add(name, loc)
	locMu.Unlock()
	return loc, nil
}

// InDate builds a UTC instant for the given year/month/day/time-of-day
// expressed in loc.
func InDate(loc *time.Location, year int, month time.Month, day, hour, minute, second int) time.Time {
	return time.Date(year, month, day, hour, minute, second, 0, loc).UTC()
}

// IsWeekend reports whether t, interpreted in loc, falls on Saturday or Sunday.
func IsWeekend(t time.Time, loc *time.Location) bool {
	wd := t.In(loc).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// NextWeekdayStart returns the next calendar day after t (in loc) that
// is not a weekend, at workStart hour, expressed as a UTC instant.
// When skipWeekends is false, simply advances one day regardless of
// weekday.
func NextWeekdayStart(t time.Time, loc *time.Location, workStart int, skipWeekends bool) time.Time {
	zoned := t.In(loc)
	next := time.Date(zoned.Year(), zoned.Month(), zoned.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	if skipWeekends {
		for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
			next = next.AddDate(0, 0, 1)
		}
	}
	return InDate(loc, next.Year(), next.Month(), next.Day(), workStart, 0, 0)
}

// StartTime computes where the planner's clock begins: if now (in loc)
// falls on a weekend, the next weekday at workStart; if before
// workStart, today at workStart; if at/after workEnd, the next weekday
// at workStart; otherwise now, truncated to the whole second.
func StartTime(now time.Time, loc *time.Location, workStart, workEnd int, skipWeekends bool) time.Time {
	zoned := now.In(loc)
	if skipWeekends && (zoned.Weekday() == time.Saturday || zoned.Weekday() == time.Sunday) {
		return NextWeekdayStart(now, loc, workStart, skipWeekends)
	}
	hour := zoned.Hour()
	switch {
	case hour < workStart:
		return InDate(loc, zoned.Year(), zoned.Month(), zoned.Day(), workStart, 0, 0)
	case hour >= workEnd:
		return NextWeekdayStart(now, loc, workStart, skipWeekends)
	default:
		return InDate(loc, zoned.Year(), zoned.Month(), zoned.Day(), zoned.Hour(), zoned.Minute(), zoned.Second())
	}
}

// InWorkingWindow reports whether t, interpreted in loc, falls within
// [workStart, workEnd) on a day that isn't a skipped weekend. The
// dispatcher uses this check so a batch never starts outside the
// window that the planner's StartTime and ClampToWorkingHours build
// schedules for.
func InWorkingWindow(t time.Time, loc *time.Location, workStart, workEnd int, skipWeekends bool) bool {
	zoned := t.In(loc)
	if skipWeekends && (zoned.Weekday() == time.Saturday || zoned.Weekday() == time.Sunday) {
		return false
	}
	hour := zoned.Hour()
	return hour >= workStart && hour < workEnd
}

// ClampToWorkingHours pushes a candidate instant out to the next
// working window if it falls on a weekend or on/after workEnd. A
// candidate already within the window (including before workStart —
// callers are expected to only ever advance from an already-clamped
// floor) is returned unchanged.
func ClampToWorkingHours(candidate time.Time, loc *time.Location, workStart, workEnd int, skipWeekends bool) time.Time {
	zoned := candidate.In(loc)
	if skipWeekends && (zoned.Weekday() == time.Saturday || zoned.Weekday() == time.Sunday) {
		return NextWeekdayStart(candidate, loc, workStart, skipWeekends)
	}
	boundaryEnd := InDate(loc, zoned.Year(), zoned.Month(), zoned.Day(), workEnd, 0, 0)
	if !candidate.Before(boundaryEnd) {
		return NextWeekdayStart(candidate, loc, workStart, skipWeekends)
	}
	return candidate
}
