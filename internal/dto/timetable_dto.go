package dto

import (
	"time"

	"github.com/noah-isme/cohort-assistant/internal/timetable"
)

// LessonResponse renders one scheduled lesson on a concrete date.
type LessonResponse struct {
	Name    string    `json:"name"`
	Tutor   string    `json:"tutor"`
	Room    string    `json:"room"`
	Start   string    `json:"start"`
	End     string    `json:"end"`
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

// DayScheduleResponse renders the lessons of one calendar day.
type DayScheduleResponse struct {
	Date    string           `json:"date"`
	Weekday string           `json:"weekday"`
	Lessons []LessonResponse `json:"lessons"`
}

// ProjectionResponse renders the current/next lesson text.
type ProjectionResponse struct {
	Text string `json:"text"`
}

// ExamResponse renders a scheduled exam sitting.
type ExamResponse struct {
	Name  string `json:"name"`
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
	Room  string `json:"room"`
}

// NewLessonResponse anchors a lesson to a date and maps it.
func NewLessonResponse(lesson timetable.Lesson, date time.Time) LessonResponse {
	return LessonResponse{
		Name:    lesson.Name,
		Tutor:   lesson.Tutor,
		Room:    lesson.Room,
		Start:   lesson.Start.String(),
		End:     lesson.End.String(),
		StartAt: lesson.Start.On(date),
		EndAt:   lesson.End.On(date),
	}
}

// NewDayScheduleResponse maps a day's lessons.
func NewDayScheduleResponse(date time.Time, lessons []timetable.Lesson) DayScheduleResponse {
	out := DayScheduleResponse{
		Date:    date.Format(timetable.DateLayout),
		Weekday: date.Weekday().String(),
		Lessons: make([]LessonResponse, 0, len(lessons)),
	}
	for _, lesson := range lessons {
		out.Lessons = append(out.Lessons, NewLessonResponse(lesson, date))
	}
	return out
}

// NewExamResponseSlice maps the catalog's exams.
func NewExamResponseSlice(exams []timetable.Exam) []ExamResponse {
	out := make([]ExamResponse, 0, len(exams))
	for _, exam := range exams {
		out = append(out, ExamResponse{
			Name:  exam.Name,
			Date:  exam.Date.Format(timetable.DateLayout),
			Start: exam.Start.String(),
			End:   exam.End.String(),
			Room:  exam.Room,
		})
	}
	return out
}
