package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/cohort-assistant/internal/platform"
	"github.com/noah-isme/cohort-assistant/internal/timetable"
)

// StatusPrefix marks the projector's status message body.
const StatusPrefix = "[tt]"

// TimetableChannel is the preferred home of the status message; FallbackChannel
// is used when the guild has no channel with that name.
const (
	TimetableChannel = "timetable"
	FallbackChannel  = "general"
)

const statusScanLimit = 20

// TimetableService keeps a single pinned-style status message projecting the
// current timetable position, and answers read-only schedule queries.
type TimetableService interface {
	Tick(ctx context.Context, now time.Time) error
	DaySchedule(date time.Time) []timetable.ScheduledLesson
	Projection(now time.Time) (string, error)
	Exams() []timetable.Exam
}

type timetableService struct {
	catalog   *timetable.Catalog
	announcer platform.Announcer
	guildID   string
	dev       bool
	logger    zerolog.Logger
}

// NewTimetableService builds the projection loop body.
func NewTimetableService(catalog *timetable.Catalog, announcer platform.Announcer, guildID string, dev bool, logger zerolog.Logger) TimetableService {
	return &timetableService{
		catalog:   catalog,
		announcer: announcer,
		guildID:   guildID,
		dev:       dev,
		logger:    logger.With().Str("component", "timetable_service").Logger(),
	}
}

// Tick refreshes the status message. In dev mode it does nothing: the projector
// must not touch a shared guild from a development process.
func (s *timetableService) Tick(ctx context.Context, now time.Time) error {
	if s.dev {
		return nil
	}

	text, err := s.Projection(now)
	if err != nil {
		if errors.Is(err, timetable.ErrBreakBoundsExceeded) {
			return err
		}
		return fmt.Errorf("failed to derive projection: %w", err)
	}

	channel, message, err := s.findStatusMessage(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("status message discovery failed")
		return nil
	}

	opts := platform.SendOptions{SuppressMentions: true}
	if message == nil {
		if _, err := s.announcer.SendToChannel(ctx, s.guildID, channel, StatusPrefix+" (loading)", opts); err != nil {
			s.logger.Warn().Err(err).Msg("failed to seed status message")
		}
		return nil
	}

	if message.Content == text {
		return nil
	}
	if err := s.announcer.EditMessage(ctx, message.ChannelID, message.ID, text, opts); err != nil {
		s.logger.Warn().Err(err).Msg("failed to update status message")
	}
	return nil
}

// findStatusMessage scans the newest messages of the timetable channel, falling
// back to general, for a bot-authored body starting with the status prefix.
func (s *timetableService) findStatusMessage(ctx context.Context) (string, *platform.Message, error) {
	channel := TimetableChannel
	messages, err := s.announcer.RecentMessages(ctx, s.guildID, channel, statusScanLimit)
	if err != nil {
		if !errors.Is(err, platform.ErrChannelNotFound) {
			return "", nil, err
		}
		channel = FallbackChannel
		messages, err = s.announcer.RecentMessages(ctx, s.guildID, channel, statusScanLimit)
		if err != nil {
			return "", nil, err
		}
	}

	botID := s.announcer.BotUserID()
	for i := range messages {
		if messages[i].AuthorID == botID && strings.HasPrefix(messages[i].Content, StatusPrefix) {
			return channel, &messages[i], nil
		}
	}
	return channel, nil, nil
}

// Projection renders the status text for the given instant.
func (s *timetableService) Projection(now time.Time) (string, error) {
	if brk, onBreak := s.catalog.BreakAt(now); onBreak {
		back, err := s.catalog.AbsoluteNextLesson(brk.End.AddDate(0, 0, 1))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(
			"%s On break '%s' from %s until %s. Break ends %s, and the first lesson back is '%s' with %s in %s.",
			StatusPrefix, brk.Name,
			platform.FormatShortDate(brk.Start), platform.FormatShortDate(brk.End),
			platform.FormatRelative(brk.End),
			back.Name, back.Tutor, back.Room,
		), nil
	}

	if current, ok := s.catalog.CurrentLesson(now); ok {
		if current.IsLunch() {
			return fmt.Sprintf(
				"%s \U0001F37D Lunch! %s-%s, ends in %s",
				StatusPrefix,
				platform.FormatShortTime(current.StartAt), platform.FormatShortTime(current.EndAt),
				platform.FormatRelative(current.EndAt),
			), nil
		}
		text := fmt.Sprintf(
			"%s Current Lesson: '%s' with %s in %s - ends %s",
			StatusPrefix, current.Name, current.Tutor, current.Room,
			platform.FormatRelative(current.EndAt),
		)
		if next, ok := s.catalog.NextLesson(now); ok {
			text += "\n" + s.nextLessonLine(next)
		}
		return text, nil
	}

	if next, ok := s.catalog.NextLesson(now); ok {
		return s.nextLessonLine(next), nil
	}

	next, err := s.catalog.AbsoluteNextLesson(now.AddDate(0, 0, 1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s No more lessons today!\n%s", StatusPrefix, s.nextLessonLine(next)), nil
}

func (s *timetableService) nextLessonLine(lesson timetable.ScheduledLesson) string {
	return fmt.Sprintf(
		"%s Next Lesson: '%s' with %s in %s - Starts %s",
		StatusPrefix, lesson.Name, lesson.Tutor, lesson.Room,
		platform.FormatRelative(lesson.StartAt),
	)
}

// DaySchedule returns the lessons of the given civil date, anchored to it.
func (s *timetableService) DaySchedule(date time.Time) []timetable.ScheduledLesson {
	lessons := s.catalog.LessonsFor(date)
	scheduled := make([]timetable.ScheduledLesson, 0, len(lessons))
	for _, lesson := range lessons {
		scheduled = append(scheduled, timetable.ScheduledLesson{
			Lesson:  lesson,
			Date:    date,
			StartAt: lesson.Start.On(date),
			EndAt:   lesson.End.On(date),
		})
	}
	return scheduled
}

func (s *timetableService) Exams() []timetable.Exam {
	return s.catalog.Exams()
}
