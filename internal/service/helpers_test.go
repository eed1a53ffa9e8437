package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/cohort-assistant/internal/models"
	"github.com/noah-isme/cohort-assistant/internal/probe"
	"github.com/noah-isme/cohort-assistant/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type memAssignmentRepo struct {
	items     map[uint]models.Assignment
	nextID    uint
	createErr error
}

func newMemAssignmentRepo() *memAssignmentRepo {
	return &memAssignmentRepo{items: map[uint]models.Assignment{}, nextID: 1}
}

func (r *memAssignmentRepo) List(_ context.Context, filter repository.AssignmentFilter) ([]models.Assignment, error) {
	out := make([]models.Assignment, 0, len(r.items))
	for _, a := range r.items {
		if filter.Tutor != "" && !strings.EqualFold(a.Tutor, filter.Tutor) {
			continue
		}
		if filter.UnfinishedOnly && a.Finished {
			continue
		}
		if filter.UnsubmittedOnly && a.Submitted {
			continue
		}
		if filter.DueAfter != nil && a.DueBy.Before(*filter.DueAfter) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueBy.After(out[j].DueBy) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *memAssignmentRepo) ListUnsubmitted(_ context.Context) ([]models.Assignment, error) {
	out := make([]models.Assignment, 0, len(r.items))
	for _, a := range r.items {
		if !a.Submitted {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryID < out[j].EntryID })
	return out, nil
}

func (r *memAssignmentRepo) GetByID(_ context.Context, id uint) (models.Assignment, error) {
	a, ok := r.items[id]
	if !ok {
		return models.Assignment{}, repository.ErrNotFound
	}
	return a, nil
}

func (r *memAssignmentRepo) Create(_ context.Context, a *models.Assignment) error {
	if r.createErr != nil {
		return r.createErr
	}
	a.EntryID = r.nextID
	r.nextID++
	r.items[a.EntryID] = *a
	return nil
}

func (r *memAssignmentRepo) Update(_ context.Context, a *models.Assignment) error {
	if _, ok := r.items[a.EntryID]; !ok {
		return repository.ErrNotFound
	}
	r.items[a.EntryID] = *a
	return nil
}

func (r *memAssignmentRepo) AppendReminder(_ context.Context, id uint, milestone string) error {
	a, ok := r.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	if !a.HasReminder(milestone) {
		a.Reminders = append(a.Reminders, milestone)
		r.items[id] = a
	}
	return nil
}

func (r *memAssignmentRepo) Delete(_ context.Context, id uint) error {
	if _, ok := r.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

type memStudentRepo struct {
	items []models.Student
}

func (r *memStudentRepo) GetByUserID(_ context.Context, userID string) (models.Student, error) {
	for _, s := range r.items {
		if s.UserID == userID {
			return s, nil
		}
	}
	return models.Student{}, repository.ErrNotFound
}

func (r *memStudentRepo) GetByStudentID(_ context.Context, studentID string) (models.Student, error) {
	for _, s := range r.items {
		if s.StudentID == studentID {
			return s, nil
		}
	}
	return models.Student{}, repository.ErrNotFound
}

func (r *memStudentRepo) Create(_ context.Context, s *models.Student) error {
	s.EntryID = uint(len(r.items) + 1)
	r.items = append(r.items, *s)
	return nil
}

type memVerifyRepo struct {
	items []models.VerifyCode
}

func (r *memVerifyRepo) Create(_ context.Context, c *models.VerifyCode) error {
	c.EntryID = uint(len(r.items) + 1)
	r.items = append(r.items, *c)
	return nil
}

func (r *memVerifyRepo) GetByCode(_ context.Context, code string) (models.VerifyCode, error) {
	for _, c := range r.items {
		if c.Code == code {
			return c, nil
		}
	}
	return models.VerifyCode{}, repository.ErrNotFound
}

func (r *memVerifyRepo) Delete(_ context.Context, id uint) error {
	for i, c := range r.items {
		if c.EntryID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type memUptimeRepo struct {
	createErr error
	mu        sync.Mutex
	items     []models.UptimeEntry
}

func (r *memUptimeRepo) Create(_ context.Context, e *models.UptimeEntry) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e.EntryID = uint(len(r.items) + 1)
	r.items = append(r.items, *e)
	return nil
}

func (r *memUptimeRepo) ListSince(_ context.Context, targetID string, cutoff time.Time) ([]models.UptimeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.UptimeEntry, 0)
	for _, e := range r.items {
		if e.TargetID == targetID && !e.Timestamp.Before(cutoff) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

type memTargetStore struct {
	targets []probe.Target
}

func (s *memTargetStore) Read() ([]probe.Target, error) {
	return append([]probe.Target(nil), s.targets...), nil
}

func (s *memTargetStore) Write(targets []probe.Target) error {
	s.targets = append([]probe.Target(nil), targets...)
	return nil
}

func (s *memTargetStore) Add(target probe.Target) error {
	for _, t := range s.targets {
		if t.ID == target.ID {
			return errors.New("duplicate id")
		}
	}
	s.targets = append(s.targets, target)
	return nil
}

func (s *memTargetStore) Remove(id string) error {
	for i, t := range s.targets {
		if t.ID == id {
			s.targets = append(s.targets[:i], s.targets[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}
