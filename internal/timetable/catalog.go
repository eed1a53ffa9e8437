// Package timetable holds the immutable weekly lesson catalog: recurring
// lessons per weekday, named term breaks, and scheduled exams.
package timetable

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrBreakBoundsExceeded indicates a forward lesson search ran past the
// configured horizon year without finding a teaching day.
var ErrBreakBoundsExceeded = errors.New("next lesson search exceeded horizon year")

// DateLayout is the civil date format used by breaks and exams.
const DateLayout = "02/01/2006"

// ClockTime is an [hour, minute] pair as stored in the catalog JSON.
type ClockTime [2]int

// Hour returns the hour component.
func (c ClockTime) Hour() int { return c[0] }

// Minute returns the minute component.
func (c ClockTime) Minute() int { return c[1] }

// Minutes returns the time as minutes since midnight, for ordering.
func (c ClockTime) Minutes() int { return c[0]*60 + c[1] }

// On anchors the clock time to the given date in its location.
func (c ClockTime) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour(), c.Minute(), 0, 0, date.Location())
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Lesson is one recurring weekly lesson.
type Lesson struct {
	Name  string    `json:"name"`
	Tutor string    `json:"tutor"`
	Room  string    `json:"room"`
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

// IsLunch reports whether the lesson is the lunch slot.
func (l Lesson) IsLunch() bool {
	return strings.EqualFold(l.Name, "lunch")
}

// Break is a named inclusive date interval with no lessons.
type Break struct {
	Name  string
	Start time.Time
	End   time.Time
}

// Contains reports whether the given date falls inside the break.
func (b Break) Contains(date time.Time) bool {
	day := dateOnly(date)
	return !day.Before(dateOnly(b.Start)) && !day.After(dateOnly(b.End))
}

// Exam is a one-off scheduled exam sitting.
type Exam struct {
	Name  string    `json:"name"`
	Date  time.Time `json:"-"`
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
	Room  string    `json:"room"`
}

// ScheduledLesson is a lesson anchored to a concrete date.
type ScheduledLesson struct {
	Lesson
	Date    time.Time
	StartAt time.Time
	EndAt   time.Time
}

// Catalog is the loaded weekly timetable. Immutable after load.
type Catalog struct {
	days        map[string][]Lesson
	breaks      []Break
	exams       []Exam
	horizonYear int
}

// Weekdays the catalog recognises, in week order.
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday"}

// LessonsOn returns the lessons for a weekday name, in catalog order.
func (c *Catalog) LessonsOn(weekday string) []Lesson {
	return c.days[strings.ToLower(weekday)]
}

// LessonsFor returns the lessons on the weekday of the given date.
func (c *Catalog) LessonsFor(date time.Time) []Lesson {
	return c.LessonsOn(date.Weekday().String())
}

// Breaks returns the configured breaks.
func (c *Catalog) Breaks() []Break { return c.breaks }

// Exams returns the scheduled exams, in catalog order.
func (c *Catalog) Exams() []Exam { return c.exams }

// BreakAt returns the break covering the given date, if any.
func (c *Catalog) BreakAt(date time.Time) (Break, bool) {
	for _, b := range c.breaks {
		if b.Contains(date) {
			return b, true
		}
	}
	return Break{}, false
}

// CurrentLesson returns the lesson whose [start, end) interval contains now.
// At most one lesson matches for a well-formed catalog.
func (c *Catalog) CurrentLesson(now time.Time) (ScheduledLesson, bool) {
	minutes := now.Hour()*60 + now.Minute()
	for _, lesson := range c.LessonsFor(now) {
		if minutes >= lesson.Start.Minutes() && minutes < lesson.End.Minutes() {
			return c.anchor(lesson, now), true
		}
	}
	return ScheduledLesson{}, false
}

// NextLesson returns the first same-day lesson starting after now.
func (c *Catalog) NextLesson(now time.Time) (ScheduledLesson, bool) {
	minutes := now.Hour()*60 + now.Minute()
	for _, lesson := range c.LessonsFor(now) {
		if minutes < lesson.Start.Minutes() {
			return c.anchor(lesson, now), true
		}
	}
	return ScheduledLesson{}, false
}

// AbsoluteNextLesson walks forward from the given date, skipping break days
// and days without scheduled lessons, and returns the first lesson of the
// first teaching day. The search is bounded by the horizon year.
func (c *Catalog) AbsoluteNextLesson(from time.Time) (ScheduledLesson, error) {
	day := dateOnly(from)
	for {
		if day.Year() > c.horizonYear {
			return ScheduledLesson{}, ErrBreakBoundsExceeded
		}
		if _, onBreak := c.BreakAt(day); !onBreak {
			if lessons := c.LessonsFor(day); len(lessons) > 0 {
				return c.anchor(lessons[0], day), nil
			}
		}
		day = day.AddDate(0, 0, 1)
	}
}

func (c *Catalog) anchor(lesson Lesson, date time.Time) ScheduledLesson {
	return ScheduledLesson{
		Lesson:  lesson,
		Date:    dateOnly(date),
		StartAt: lesson.Start.On(date),
		EndAt:   lesson.End.On(date),
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// UnmarshalJSON decodes the [hour, minute] array form.
func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var raw []int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("clock time must be a [hour, minute] pair, got %d elements", len(raw))
	}
	*c = ClockTime{raw[0], raw[1]}
	return nil
}

// MarshalJSON encodes back to the [hour, minute] array form.
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal([]int{c[0], c[1]})
}
