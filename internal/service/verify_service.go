package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cohort-assistant/internal/dto"
	"github.com/noah-isme/cohort-assistant/internal/models"
	"github.com/noah-isme/cohort-assistant/internal/repository"
	"github.com/noah-isme/cohort-assistant/internal/worker"
	"github.com/noah-isme/cohort-assistant/pkg/mailer"
)

var (
	ErrBadStudentID    = errors.New("student id must be a B followed by six digits")
	ErrAlreadyVerified = errors.New("user already verified")
	ErrStudentIDTaken  = errors.New("student id already bound to another user")
	ErrBadCode         = errors.New("unknown or expired verification code")
)

var studentIDPattern = regexp.MustCompile(`^B\d{6}$`)

// mailSubject is the subject line of the one-time code mail.
const mailSubject = "Server Verification"

// VerifyService runs the two-step membership verification flow. Begin mails a
// one-time code to the student's college address; Redeem exchanges the code
// for a Student row.
type VerifyService interface {
	Begin(ctx context.Context, req dto.VerifyRequest) error
	Redeem(ctx context.Context, req dto.VerifyRedeemRequest) (dto.StudentResponse, error)
}

type verifyService struct {
	codes    repository.VerifyCodeRepository
	students repository.StudentRepository
	mail     mailer.Mailer
	pool     *worker.Pool
	domain   string
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewVerifyService wires the verification flow. domain is the college mail
// domain appended to the student id.
func NewVerifyService(
	codes repository.VerifyCodeRepository,
	students repository.StudentRepository,
	mail mailer.Mailer,
	pool *worker.Pool,
	domain string,
	logger zerolog.Logger,
) VerifyService {
	return &verifyService{
		codes:    codes,
		students: students,
		mail:     mail,
		pool:     pool,
		domain:   domain,
		validate: validator.New(),
		logger:   logger.With().Str("component", "verify_service").Logger(),
	}
}

func (s *verifyService) Begin(ctx context.Context, req dto.VerifyRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !studentIDPattern.MatchString(req.StudentID) {
		return ErrBadStudentID
	}

	if _, err := s.students.GetByUserID(ctx, req.UserID); err == nil {
		return ErrAlreadyVerified
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if _, err := s.students.GetByStudentID(ctx, req.StudentID); err == nil {
		return ErrStudentIDTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	code, err := newCode()
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}

	row := models.VerifyCode{
		Code:      code,
		Bind:      req.UserID,
		StudentID: req.StudentID,
		Name:      req.Name,
	}
	if err := s.codes.Create(ctx, &row); err != nil {
		return err
	}

	to := fmt.Sprintf("%s@%s", req.StudentID, s.domain)
	body := fmt.Sprintf(
		"Hello %s,\n\nYour verification code is:\n\n%s\n\nIf you did not request this, ignore this mail.",
		req.Name, code,
	)
	// The SMTP round trip runs on the pool so slow mail servers cannot stall
	// the caller's loop.
	if err := s.pool.Run(ctx, func(context.Context) error {
		return s.mail.Send(to, mailSubject, body)
	}); err != nil {
		return fmt.Errorf("failed to send verification mail: %w", err)
	}

	s.logger.Info().Str("student_id", req.StudentID).Msg("verification code sent")
	return nil
}

func (s *verifyService) Redeem(ctx context.Context, req dto.VerifyRedeemRequest) (dto.StudentResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.StudentResponse{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	row, err := s.codes.GetByCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dto.StudentResponse{}, ErrBadCode
		}
		return dto.StudentResponse{}, err
	}
	if row.Bind != req.UserID {
		return dto.StudentResponse{}, ErrBadCode
	}

	student := models.Student{
		StudentID: row.StudentID,
		UserID:    row.Bind,
		Name:      row.Name,
	}
	if err := s.students.Create(ctx, &student); err != nil {
		return dto.StudentResponse{}, err
	}
	if err := s.codes.Delete(ctx, row.EntryID); err != nil {
		s.logger.Warn().Err(err).Msg("failed to delete redeemed code")
	}

	s.logger.Info().Str("student_id", student.StudentID).Msg("member verified")
	return dto.StudentResponse{
		StudentID: student.StudentID,
		UserID:    student.UserID,
		Name:      student.Name,
	}, nil
}

// newCode draws TokenLength random bytes and hex-encodes them.
func newCode() (string, error) {
	buf := make([]byte, models.TokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
