package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Default slot rules applied when configuration leaves them unset.
const (
	DefaultMaxPeriodsPerDay      = 10
	DefaultMinimumPeriodDuration = 30 * time.Minute

	maxRoomNumberLength = 32
	minutesPerDay       = 24 * 60
)

// SlotRules carries the configurable limits every slot must respect.
type SlotRules struct {
	MaxPeriodsPerDay      int
	MinimumPeriodDuration time.Duration
}

// Normalize fills zero values with defaults.
func (r SlotRules) Normalize() SlotRules {
	if r.MaxPeriodsPerDay <= 0 {
		r.MaxPeriodsPerDay = DefaultMaxPeriodsPerDay
	}
	if r.MinimumPeriodDuration <= 0 {
		r.MinimumPeriodDuration = DefaultMinimumPeriodDuration
	}
	return r
}

// DayOfWeek uses ISO numbering, 1 = Monday through 7 = Sunday.
type DayOfWeek int

const (
	Monday DayOfWeek = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var dayNames = map[DayOfWeek]string{
	Monday:    "MONDAY",
	Tuesday:   "TUESDAY",
	Wednesday: "WEDNESDAY",
	Thursday:  "THURSDAY",
	Friday:    "FRIDAY",
	Saturday:  "SATURDAY",
	Sunday:    "SUNDAY",
}

// TeachingDays returns Monday through Friday in order.
func TeachingDays() []DayOfWeek {
	return []DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday}
}

// NewDayOfWeek validates that the value is a teaching day.
func NewDayOfWeek(value int) (DayOfWeek, error) {
	day := DayOfWeek(value)
	if !day.IsTeachingDay() {
		return 0, &InvalidDayOfWeekError{Provided: strconv.Itoa(value)}
	}
	return day, nil
}

// ParseDayOfWeek accepts a day name (MONDAY, mon) or its ISO number.
func ParseDayOfWeek(raw string) (DayOfWeek, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if n, err := strconv.Atoi(value); err == nil {
		return NewDayOfWeek(n)
	}
	for day, name := range dayNames {
		if value == name || (len(value) == 3 && strings.HasPrefix(name, value)) {
			if !day.IsTeachingDay() {
				return 0, &InvalidDayOfWeekError{Provided: raw}
			}
			return day, nil
		}
	}
	return 0, &InvalidDayOfWeekError{Provided: raw}
}

// IsTeachingDay reports whether classes may be scheduled on the day.
func (d DayOfWeek) IsTeachingDay() bool {
	return d >= Monday && d <= Friday
}

func (d DayOfWeek) String() string {
	if name, ok := dayNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DAY(%d)", int(d))
}

// MarshalText renders the day name.
func (d DayOfWeek) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses a day name or number.
func (d *DayOfWeek) UnmarshalText(text []byte) error {
	day, err := ParseDayOfWeek(string(text))
	if err != nil {
		return err
	}
	*d = day
	return nil
}

// ValidatePeriodNumber checks the period is within [1, max].
func ValidatePeriodNumber(period, max int) error {
	if period < 1 || period > max {
		return &InvalidPeriodNumberError{Provided: period, Max: max}
	}
	return nil
}

// TimeOfDay is a wall-clock time expressed in minutes since midnight.
type TimeOfDay int

// NewTimeOfDay builds a time from hour and minute.
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid time of day %02d:%02d", hour, minute)
	}
	return TimeOfDay(hour*60 + minute), nil
}

// ParseTimeOfDay accepts HH:MM or HH:MM:SS.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return TimeOfDay(t.Hour()*60 + t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", raw)
}

// Add shifts the time by d and reports false when it reaches or passes midnight.
// 24:00 is not a representable time of day.
func (t TimeOfDay) Add(d time.Duration) (TimeOfDay, bool) {
	next := int(t) + int(d/time.Minute)
	if next < 0 || next >= minutesPerDay {
		return t, false
	}
	return TimeOfDay(next), true
}

// Sub returns the duration between two times.
func (t TimeOfDay) Sub(other TimeOfDay) time.Duration {
	return time.Duration(int(t)-int(other)) * time.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MarshalJSON renders HH:MM.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses HH:MM.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value stores the time in a postgres TIME column.
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String() + ":00", nil
}

// Scan reads a postgres TIME column.
func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*t = TimeOfDay(v.Hour()*60 + v.Minute())
		return nil
	case []byte:
		return t.scanString(string(v))
	case string:
		return t.scanString(v)
	case nil:
		*t = 0
		return nil
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
}

func (t *TimeOfDay) scanString(raw string) error {
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TimePeriod is the wall-clock window of a single period.
type TimePeriod struct {
	Start TimeOfDay `json:"startTime"`
	End   TimeOfDay `json:"endTime"`
}

// NewTimePeriod enforces End > Start and the configured minimum duration.
func NewTimePeriod(start, end TimeOfDay, minimum time.Duration) (TimePeriod, error) {
	length := end.Sub(start)
	if length <= 0 || length < minimum {
		return TimePeriod{}, &MinimumPeriodDurationError{Provided: length, Minimum: minimum}
	}
	return TimePeriod{Start: start, End: end}, nil
}

// Duration returns the length of the period.
func (p TimePeriod) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

func (p TimePeriod) String() string {
	return p.Start.String() + "-" + p.End.String()
}

// RoomNumber identifies a room. The empty value means no room is assigned.
type RoomNumber string

// NoRoom is the unassigned room.
const NoRoom RoomNumber = ""

// NewRoomNumber validates a room token. An empty string yields NoRoom.
func NewRoomNumber(raw string) (RoomNumber, error) {
	if raw == "" {
		return NoRoom, nil
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return NoRoom, &InvalidRoomNumberError{Room: raw, Reason: "room number must not be blank"}
	}
	if len(trimmed) > maxRoomNumberLength {
		return NoRoom, &InvalidRoomNumberError{Room: raw, Reason: fmt.Sprintf("room number exceeds %d characters", maxRoomNumberLength)}
	}
	return RoomNumber(trimmed), nil
}

// IsAssigned reports whether a concrete room is set.
func (r RoomNumber) IsAssigned() bool {
	return r != NoRoom
}

func (r RoomNumber) String() string {
	return string(r)
}
