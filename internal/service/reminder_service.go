package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/cohort-assistant/internal/config"
	"github.com/noah-isme/cohort-assistant/internal/models"
	"github.com/noah-isme/cohort-assistant/internal/observability"
	"github.com/noah-isme/cohort-assistant/internal/platform"
	"github.com/noah-isme/cohort-assistant/internal/repository"
)

// ReminderChannel is the channel assignment reminders are delivered to.
const ReminderChannel = "general"

// imminentSeconds is the one duration milestone that still fires after an
// assignment is marked finished.
const imminentSeconds = 3 * 3600

const titleLimit = 100

const remindersSubject = "cohort.reminders.delivered"

// ReminderService evaluates assignment reminder milestones and delivers them
// at most once each.
type ReminderService interface {
	Tick(ctx context.Context, now time.Time) error
}

type reminderService struct {
	repo       repository.AssignmentRepository
	announcer  platform.Announcer
	natsConn   *nats.Conn
	milestones []config.Milestone
	guildID    string
	viewCmd    string
	editCmd    string
	dev        bool
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// NewReminderService builds the reminder loop body.
func NewReminderService(
	repo repository.AssignmentRepository,
	announcer platform.Announcer,
	natsConn *nats.Conn,
	cfg config.Config,
	logger zerolog.Logger,
) ReminderService {
	return &reminderService{
		repo:       repo,
		announcer:  announcer,
		natsConn:   natsConn,
		milestones: cfg.Reminders,
		guildID:    cfg.MainGuild(),
		viewCmd:    cfg.ViewCommand,
		editCmd:    cfg.EditCommand,
		dev:        cfg.Dev,
		logger:     logger.With().Str("component", "reminder_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/cohort-assistant/internal/service/reminders"),
	}
}

type milestoneDecision int

const (
	decisionSkip milestoneDecision = iota
	// decisionConsume marks the milestone as fired without a delivery: it was
	// already in the past when the assignment was created.
	decisionConsume
	decisionFire
)

// evaluateMilestone applies the firing predicates for one milestone against
// one assignment at the given wall-clock instant.
func evaluateMilestone(m config.Milestone, a models.Assignment, now time.Time) milestoneDecision {
	if a.HasReminder(m.Name) {
		return decisionSkip
	}
	if a.Finished && !(m.IsDuration() && m.Seconds == imminentSeconds) {
		return decisionSkip
	}

	if m.IsDuration() {
		if m.Seconds >= int64(a.DueBy.Sub(a.CreatedAt).Seconds()) {
			return decisionConsume
		}
		fireAt := a.DueBy.Add(-time.Duration(m.Seconds) * time.Second)
		if !now.Before(fireAt) {
			return decisionFire
		}
		return decisionSkip
	}

	ny, nm, nd := now.Date()
	dy, dm, dd := a.DueBy.Date()
	if ny == dy && nm == dm && nd == dd && now.Hour() == m.At.Hour {
		return decisionFire
	}
	return decisionSkip
}

// Tick fetches unsubmitted assignments and evaluates every configured
// milestone in order. One failing assignment does not poison its siblings.
func (s *reminderService) Tick(ctx context.Context, now time.Time) error {
	assignments, err := s.repo.ListUnsubmitted(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch assignments: %w", err)
	}

	for _, assignment := range assignments {
		if err := s.evaluate(ctx, assignment, now); err != nil {
			s.logger.Warn().Err(err).Uint("assignment", assignment.EntryID).Msg("reminder evaluation failed")
		}
	}
	return nil
}

func (s *reminderService) evaluate(ctx context.Context, assignment models.Assignment, now time.Time) error {
	for _, milestone := range s.milestones {
		switch evaluateMilestone(milestone, assignment, now) {
		case decisionSkip:
			continue

		case decisionConsume:
			if err := s.repo.AppendReminder(ctx, assignment.EntryID, milestone.Name); err != nil {
				return err
			}
			assignment.Reminders = append(assignment.Reminders, milestone.Name)

		case decisionFire:
			if err := s.deliver(ctx, assignment, milestone); err != nil {
				// Transport failure: leave the milestone unmarked so the next
				// tick retries.
				s.logger.Warn().Err(err).
					Uint("assignment", assignment.EntryID).
					Str("milestone", milestone.Name).
					Msg("reminder delivery failed")
				continue
			}
			if err := s.repo.AppendReminder(ctx, assignment.EntryID, milestone.Name); err != nil {
				return err
			}
			assignment.Reminders = append(assignment.Reminders, milestone.Name)
		}
	}
	return nil
}

func (s *reminderService) deliver(ctx context.Context, assignment models.Assignment, milestone config.Milestone) error {
	spanCtx, span := s.tracer.Start(ctx, "reminders.deliver", trace.WithAttributes(
		attribute.Int("assignment.entry_id", int(assignment.EntryID)),
		attribute.String("reminder.milestone", milestone.Name),
	))
	defer span.End()

	content := s.composeMessage(assignment, milestone)
	opts := platform.SendOptions{AllowEveryone: !s.dev}

	if _, err := s.announcer.SendToChannel(spanCtx, s.guildID, ReminderChannel, content, opts); err != nil {
		span.RecordError(err)
		return err
	}

	observability.RemindersSent().Inc()
	s.publish(assignment.EntryID, milestone.Name)
	return nil
}

func (s *reminderService) composeMessage(assignment models.Assignment, milestone config.Milestone) string {
	mentions := make([]string, 0, len(assignment.Assignees))
	for _, assignee := range assignment.Assignees {
		mentions = append(mentions, platform.MentionUser(assignee))
	}
	audience := strings.Join(mentions, " ")
	if audience == "" {
		audience = platform.MentionEveryone
	}

	title := shorten(assignment.Title, titleLimit)
	return fmt.Sprintf(
		"%s - %s reminder for project %s for **%s**!\n"+
			"Run '%s %s' to view information on the assignment.\n"+
			"You can mark this assignment as complete with '%s %s', which will prevent further reminders.",
		audience, milestone.Name, title, displayTutor(assignment.Tutor),
		s.viewCmd, title,
		s.editCmd, title,
	)
}

func (s *reminderService) publish(entryID uint, milestone string) {
	if s.natsConn == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"entry_id":  entryID,
		"milestone": milestone,
		"sent_at":   time.Now().UTC(),
	})
	if err != nil {
		return
	}
	if err := s.natsConn.Publish(remindersSubject, payload); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish reminder event")
	}
}

func shorten(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimRight(string(runes[:limit-3]), " ") + "..."
}

func displayTutor(tutor string) string {
	if tutor == "" {
		return tutor
	}
	lower := strings.ToLower(tutor)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
