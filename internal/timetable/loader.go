package timetable

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const catalogSchema = `{
    "type": "object",
    "required": ["monday", "tuesday", "wednesday", "thursday", "friday"],
    "properties": {
        "monday": {"$ref": "#/$defs/day"},
        "tuesday": {"$ref": "#/$defs/day"},
        "wednesday": {"$ref": "#/$defs/day"},
        "thursday": {"$ref": "#/$defs/day"},
        "friday": {"$ref": "#/$defs/day"},
        "breaks": {
            "type": "object",
            "additionalProperties": {
                "type": "object",
                "required": ["start", "end"],
                "additionalProperties": false,
                "properties": {
                    "start": {"type": "string"},
                    "end": {"type": "string"}
                }
            }
        },
        "exams": {
            "type": "array",
            "items": {
                "type": "object",
                "required": ["name", "date", "start", "end", "room"],
                "additionalProperties": false,
                "properties": {
                    "name": {"type": "string"},
                    "date": {"type": "string"},
                    "start": {"$ref": "#/$defs/clock"},
                    "end": {"$ref": "#/$defs/clock"},
                    "room": {"type": "string"}
                }
            }
        }
    },
    "additionalProperties": false,
    "$defs": {
        "day": {
            "type": "array",
            "items": {
                "type": "object",
                "required": ["name", "start", "end", "tutor", "room"],
                "additionalProperties": false,
                "properties": {
                    "name": {"type": "string"},
                    "tutor": {"type": "string"},
                    "room": {"type": "string"},
                    "start": {"$ref": "#/$defs/clock"},
                    "end": {"$ref": "#/$defs/clock"}
                }
            }
        },
        "clock": {
            "type": "array",
            "minItems": 2,
            "maxItems": 2,
            "items": {"type": "integer"}
        }
    }
}`

type rawBreak struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type rawExam struct {
	Name  string    `json:"name"`
	Date  string    `json:"date"`
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
	Room  string    `json:"room"`
}

// LoadFile reads, schema-validates and decodes the weekly catalog file.
func LoadFile(path string, tutors []string, horizonYear int, logger zerolog.Logger) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timetable catalog: %w", err)
	}
	return Load(data, tutors, horizonYear, logger)
}

// Load parses a catalog document. Structure is enforced by a JSON schema;
// lesson times, tutors and break dates are then checked semantically.
func Load(data []byte, tutors []string, horizonYear int, logger zerolog.Logger) (*Catalog, error) {
	schema, err := jsonschema.CompileString("timetable.json", catalogSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile timetable schema: %w", err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("timetable catalog is not valid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("timetable catalog failed validation: %w", err)
	}

	var raw struct {
		Monday    []Lesson            `json:"monday"`
		Tuesday   []Lesson            `json:"tuesday"`
		Wednesday []Lesson            `json:"wednesday"`
		Thursday  []Lesson            `json:"thursday"`
		Friday    []Lesson            `json:"friday"`
		Breaks    map[string]rawBreak `json:"breaks"`
		Exams     []rawExam           `json:"exams"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode timetable catalog: %w", err)
	}

	tutorSet := make(map[string]struct{}, len(tutors))
	for _, tutor := range tutors {
		tutorSet[strings.ToLower(tutor)] = struct{}{}
	}

	days := map[string][]Lesson{
		"monday":    raw.Monday,
		"tuesday":   raw.Tuesday,
		"wednesday": raw.Wednesday,
		"thursday":  raw.Thursday,
		"friday":    raw.Friday,
	}
	for day, lessons := range days {
		for _, lesson := range lessons {
			if err := checkLesson(day, lesson, tutorSet, logger); err != nil {
				return nil, err
			}
		}
	}

	var breaks []Break
	for name, span := range raw.Breaks {
		start, err := time.ParseInLocation(DateLayout, span.Start, time.Local)
		if err != nil {
			return nil, fmt.Errorf("break %q has invalid start date %q: %w", name, span.Start, err)
		}
		end, err := time.ParseInLocation(DateLayout, span.End, time.Local)
		if err != nil {
			return nil, fmt.Errorf("break %q has invalid end date %q: %w", name, span.End, err)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("break %q ends before it starts", name)
		}
		breaks = append(breaks, Break{Name: name, Start: start, End: end})
	}

	var exams []Exam
	for _, re := range raw.Exams {
		date, err := time.ParseInLocation(DateLayout, re.Date, time.Local)
		if err != nil {
			return nil, fmt.Errorf("exam %q has invalid date %q: %w", re.Name, re.Date, err)
		}
		exams = append(exams, Exam{Name: re.Name, Date: date, Start: re.Start, End: re.End, Room: re.Room})
	}

	return &Catalog{days: days, breaks: breaks, exams: exams, horizonYear: horizonYear}, nil
}

// NewCatalog builds a catalog directly from parsed parts. Intended for tests.
func NewCatalog(days map[string][]Lesson, breaks []Break, exams []Exam, horizonYear int) *Catalog {
	if days == nil {
		days = map[string][]Lesson{}
	}
	return &Catalog{days: days, breaks: breaks, exams: exams, horizonYear: horizonYear}
}

func checkLesson(day string, lesson Lesson, tutors map[string]struct{}, logger zerolog.Logger) error {
	for _, clock := range []ClockTime{lesson.Start, lesson.End} {
		if clock.Hour() < 0 || clock.Hour() > 23 || clock.Minute() < 0 || clock.Minute() > 59 {
			return fmt.Errorf("lesson %q on %s has out-of-range time %s", lesson.Name, day, clock)
		}
		if clock.Minute()%15 != 0 {
			logger.Warn().
				Str("day", day).
				Str("lesson", lesson.Name).
				Str("time", clock.String()).
				Msg("lesson time is not on a quarter-hour boundary")
		}
	}
	if lesson.Start.Minutes() >= lesson.End.Minutes() {
		return fmt.Errorf("lesson %q on %s ends before it starts", lesson.Name, day)
	}
	if len(tutors) > 0 {
		if _, ok := tutors[strings.ToLower(lesson.Tutor)]; !ok {
			return fmt.Errorf("lesson %q on %s references unknown tutor %q", lesson.Name, day, lesson.Tutor)
		}
	}
	return nil
}
