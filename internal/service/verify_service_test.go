package service

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cohort-assistant/internal/dto"
	"github.com/noah-isme/cohort-assistant/internal/models"
	"github.com/noah-isme/cohort-assistant/internal/worker"
)

type memMailer struct {
	sendErr error
	sent    []struct{ to, subject, body string }
}

func (m *memMailer) Send(to, subject, body string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, struct{ to, subject, body string }{to, subject, body})
	return nil
}

func verifyFixture(t *testing.T, codes *memVerifyRepo, students *memStudentRepo, mail *memMailer) VerifyService {
	t.Helper()
	pool := worker.NewPool(1, testLogger())
	t.Cleanup(pool.Close)
	return NewVerifyService(codes, students, mail, pool, "my.leedscitycollege.ac.uk", testLogger())
}

func TestBeginMailsCode(t *testing.T) {
	codes := &memVerifyRepo{}
	mail := &memMailer{}
	svc := verifyFixture(t, codes, &memStudentRepo{}, mail)

	err := svc.Begin(context.Background(), dto.VerifyRequest{
		UserID:    "42",
		StudentID: "B123456",
		Name:      "Noah",
	})
	require.NoError(t, err)

	require.Len(t, mail.sent, 1)
	assert.Equal(t, "B123456@my.leedscitycollege.ac.uk", mail.sent[0].to)
	assert.Equal(t, "Server Verification", mail.sent[0].subject)

	require.Len(t, codes.items, 1)
	code := codes.items[0]
	assert.Equal(t, "42", code.Bind)
	assert.Equal(t, "B123456", code.StudentID)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), code.Code)
	assert.Contains(t, mail.sent[0].body, code.Code)
}

func TestBeginRejectsMalformedStudentID(t *testing.T) {
	svc := verifyFixture(t, &memVerifyRepo{}, &memStudentRepo{}, &memMailer{})

	for _, id := range []string{"C123456", "B12345A", "b123456"} {
		err := svc.Begin(context.Background(), dto.VerifyRequest{
			UserID:    "42",
			StudentID: id,
			Name:      "Noah",
		})
		require.ErrorIs(t, err, ErrBadStudentID, id)
	}
}

func TestBeginRejectsVerifiedUser(t *testing.T) {
	students := &memStudentRepo{items: []models.Student{
		{EntryID: 1, StudentID: "B123456", UserID: "42", Name: "Noah"},
	}}
	svc := verifyFixture(t, &memVerifyRepo{}, students, &memMailer{})

	err := svc.Begin(context.Background(), dto.VerifyRequest{
		UserID:    "42",
		StudentID: "B654321",
		Name:      "Noah",
	})
	require.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestBeginRejectsTakenStudentID(t *testing.T) {
	students := &memStudentRepo{items: []models.Student{
		{EntryID: 1, StudentID: "B123456", UserID: "42", Name: "Noah"},
	}}
	svc := verifyFixture(t, &memVerifyRepo{}, students, &memMailer{})

	err := svc.Begin(context.Background(), dto.VerifyRequest{
		UserID:    "99",
		StudentID: "B123456",
		Name:      "Sam",
	})
	require.ErrorIs(t, err, ErrStudentIDTaken)
}

func TestBeginSurfacesMailFailure(t *testing.T) {
	mail := &memMailer{sendErr: errors.New("smtp down")}
	svc := verifyFixture(t, &memVerifyRepo{}, &memStudentRepo{}, mail)

	err := svc.Begin(context.Background(), dto.VerifyRequest{
		UserID:    "42",
		StudentID: "B123456",
		Name:      "Noah",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verification mail")
}

func TestRedeemCreatesStudent(t *testing.T) {
	codes := &memVerifyRepo{}
	students := &memStudentRepo{}
	mail := &memMailer{}
	svc := verifyFixture(t, codes, students, mail)

	ctx := context.Background()
	require.NoError(t, svc.Begin(ctx, dto.VerifyRequest{
		UserID:    "42",
		StudentID: "B123456",
		Name:      "Noah",
	}))
	code := codes.items[0].Code

	resp, err := svc.Redeem(ctx, dto.VerifyRedeemRequest{UserID: "42", Code: code})
	require.NoError(t, err)
	assert.Equal(t, "B123456", resp.StudentID)
	assert.Equal(t, "42", resp.UserID)
	assert.Equal(t, "Noah", resp.Name)

	require.Len(t, students.items, 1)
	assert.Empty(t, codes.items, "a redeemed code is single use")
}

func TestRedeemRejectsWrongUser(t *testing.T) {
	codes := &memVerifyRepo{}
	svc := verifyFixture(t, codes, &memStudentRepo{}, &memMailer{})

	ctx := context.Background()
	require.NoError(t, svc.Begin(ctx, dto.VerifyRequest{
		UserID:    "42",
		StudentID: "B123456",
		Name:      "Noah",
	}))

	_, err := svc.Redeem(ctx, dto.VerifyRedeemRequest{UserID: "99", Code: codes.items[0].Code})
	require.ErrorIs(t, err, ErrBadCode)
}

func TestRedeemRejectsUnknownCode(t *testing.T) {
	svc := verifyFixture(t, &memVerifyRepo{}, &memStudentRepo{}, &memMailer{})

	_, err := svc.Redeem(context.Background(), dto.VerifyRedeemRequest{
		UserID: "42",
		Code:   "00000000000000000000000000000000",
	})
	require.ErrorIs(t, err, ErrBadCode)
}
