package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/cohort-assistant/internal/config"
	"github.com/noah-isme/cohort-assistant/internal/models"
	"github.com/noah-isme/cohort-assistant/internal/platform"
)

func reminderFixture(t *testing.T, repo *memAssignmentRepo, fake *platform.Fake) ReminderService {
	t.Helper()
	cfg := config.Config{
		Guilds:      []string{"guild-1"},
		Reminders:   config.DefaultMilestones(),
		ViewCommand: "/assignments view",
		EditCommand: "/assignments edit",
	}
	return NewReminderService(repo, fake, nil, cfg, testLogger())
}

func seedAssignment(repo *memAssignmentRepo, a models.Assignment) uint {
	_ = repo.Create(context.Background(), &a)
	return a.EntryID
}

func baseAssignment() models.Assignment {
	return models.Assignment{
		Title:     "networking report",
		Tutor:     "jay",
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DueBy:     time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestReminderFiresFirstElapsedMilestone(t *testing.T) {
	repo := newMemAssignmentRepo()
	fake := platform.NewFake("bot")
	fake.SeedChannel("guild-1", ReminderChannel)
	svc := reminderFixture(t, repo, fake)

	id := seedAssignment(repo, baseAssignment())

	now := time.Date(2024, 1, 3, 12, 5, 0, 0, time.UTC)
	require.NoError(t, svc.Tick(context.Background(), now))

	messages := fake.Channel("guild-1", ReminderChannel)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Content, "1 week reminder for project networking report")
	assert.Contains(t, messages[0].Content, "for **Jay**!")
	assert.True(t, strings.HasPrefix(messages[0].Content, platform.MentionEveryone))

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{"1 week"}, []string(stored.Reminders))
}

func TestReminderFiredMilestoneNeverRepeats(t *testing.T) {
	repo := newMemAssignmentRepo()
	fake := platform.NewFake("bot")
	fake.SeedChannel("guild-1", ReminderChannel)
	svc := reminderFixture(t, repo, fake)

	seedAssignment(repo, baseAssignment())

	now := time.Date(2024, 1, 3, 12, 5, 0, 0, time.UTC)
	require.NoError(t, svc.Tick(context.Background(), now))
	require.NoError(t, svc.Tick(context.Background(), now.Add(time.Minute)))

	assert.Len(t, fake.Channel("guild-1", ReminderChannel), 1)
}

func TestReminderTimeOfDayMilestone(t *testing.T) {
	repo := newMemAssignmentRepo()
	fake := platform.NewFake("bot")
	fake.SeedChannel("guild-1", ReminderChannel)
	svc := reminderFixture(t, repo, fake)

	a := baseAssignment()
	a.Reminders = datatypes.JSONSlice[string]{"1 week", "2 days", "1 day"}
	id := seedAssignment(repo, a)

	now := time.Date(2024, 1, 10, 18, 5, 0, 0, time.UTC)
	require.NoError(t, svc.Tick(context.Background(), now))

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{"1 week", "2 days", "1 day", "6pm"}, []string(stored.Reminders))
	require.Len(t, fake.Channel("guild-1", ReminderChannel), 1)
	assert.Contains(t, fake.Channel("guild-1", ReminderChannel)[0].Content, "6pm reminder")
}

func TestReminderImminentMilestoneIgnoresFinished(t *testing.T) {
	repo := newMemAssignmentRepo()
	fake := platform.NewFake("bot")
	fake.SeedChannel("guild-1", ReminderChannel)
	svc := reminderFixture(t, repo, fake)

	a := baseAssignment()
	a.Finished = true
	a.Reminders = datatypes.JSONSlice[string]{"1 week", "2 days", "1 day", "6pm"}
	id := seedAssignment(repo, a)

	now := time.Date(2024, 1, 10, 9, 5, 0, 0, time.UTC)
	require.NoError(t, svc.Tick(context.Background(), now))

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Contains(t, []string(stored.Reminders), "3 hours")
	require.Len(t, fake.Channel("guild-1", ReminderChannel), 1)
	assert.Contains(t, fake.Channel("guild-1", ReminderChannel)[0].Content, "3 hours reminder")
}

func TestReminderFinishedSuppressesOtherMilestones(t *testing.T) {
	repo := newMemAssignmentRepo()
	fake := platform.NewFake("bot")
	fake.SeedChannel("guild-1", ReminderChannel)
	svc := reminderFixture(t, repo, fake)

	a := baseAssignment()
	a.Finished = true
	seedAssignment(repo, a)

	// 1 week milestone elapsed but the assignment is finished.
	now := time.Date(2024, 1, 3, 12, 5, 0, 0, time.UTC)
	require.NoError(t, svc.Tick(context.Background(), now))

	assert.Empty(t, fake.Channel("guild-1", ReminderChannel))
}

func TestReminderConsumesMilestonesPastAtCreation(t *testing.T) {
	repo := newMemAssignmentRepo()
	fake := platform.NewFake("bot")
	fake.SeedChannel("guild-1", ReminderChannel)
	svc := reminderFixture(t, repo, fake)

	a := baseAssignment()
	// Due two days after creation: the 1 week milestone was already past.
	a.DueBy = a.CreatedAt.Add(48 * time.Hour)
	id := seedAssignment(repo, a)

	now := a.CreatedAt.Add(time.Minute)
	require.NoError(t, svc.Tick(context.Background(), now))

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Contains(t, []string(stored.Reminders), "1 week")
	assert.Contains(t, []string(stored.Reminders), "2 days")
	assert.Empty(t, fake.Channel("guild-1", ReminderChannel), "consumed milestones must not deliver")
}

func TestReminderTransportFailureRetriesNextTick(t *testing.T) {
	repo := newMemAssignmentRepo()
	fake := platform.NewFake("bot")
	fake.SeedChannel("guild-1", ReminderChannel)
	svc := reminderFixture(t, repo, fake)

	id := seedAssignment(repo, baseAssignment())

	fake.SendErr = errors.New("socket closed")
	now := time.Date(2024, 1, 3, 12, 5, 0, 0, time.UTC)
	require.NoError(t, svc.Tick(context.Background(), now))

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, []string(stored.Reminders), "a failed delivery must leave the milestone unmarked")

	fake.SendErr = nil
	require.NoError(t, svc.Tick(context.Background(), now.Add(time.Minute)))

	stored, err = repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{"1 week"}, []string(stored.Reminders))
	assert.Len(t, fake.Channel("guild-1", ReminderChannel), 1)
}

func TestReminderMentionsAssignees(t *testing.T) {
	repo := newMemAssignmentRepo()
	fake := platform.NewFake("bot")
	fake.SeedChannel("guild-1", ReminderChannel)
	svc := reminderFixture(t, repo, fake)

	a := baseAssignment()
	a.Assignees = datatypes.JSONSlice[string]{"111", "222"}
	seedAssignment(repo, a)

	now := time.Date(2024, 1, 3, 12, 5, 0, 0, time.UTC)
	require.NoError(t, svc.Tick(context.Background(), now))

	messages := fake.Channel("guild-1", ReminderChannel)
	require.Len(t, messages, 1)
	assert.True(t, strings.HasPrefix(messages[0].Content, "<@111> <@222>"))
	assert.NotContains(t, messages[0].Content, platform.MentionEveryone)
}

func TestReminderTruncatesLongTitles(t *testing.T) {
	repo := newMemAssignmentRepo()
	fake := platform.NewFake("bot")
	fake.SeedChannel("guild-1", ReminderChannel)
	svc := reminderFixture(t, repo, fake)

	a := baseAssignment()
	a.Title = strings.Repeat("x", 150)
	seedAssignment(repo, a)

	now := time.Date(2024, 1, 3, 12, 5, 0, 0, time.UTC)
	require.NoError(t, svc.Tick(context.Background(), now))

	messages := fake.Channel("guild-1", ReminderChannel)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Content, strings.Repeat("x", 97)+"...")
	assert.NotContains(t, messages[0].Content, strings.Repeat("x", 101))
}

func TestEvaluateMilestoneSkipsUnreachedDuration(t *testing.T) {
	a := baseAssignment()
	m := config.Milestone{Name: "1 day", Seconds: 86400}
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, decisionSkip, evaluateMilestone(m, a, now))
}
