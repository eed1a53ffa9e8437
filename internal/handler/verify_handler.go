package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cohort-assistant/internal/dto"
	"github.com/noah-isme/cohort-assistant/internal/platform"
	"github.com/noah-isme/cohort-assistant/internal/service"
	"github.com/noah-isme/cohort-assistant/internal/utils"
)

// stateTTL bounds how long an OAuth round trip may take.
const stateTTL = 10 * time.Minute

// VerifyHandler wires the membership verification flow: the code-by-mail
// endpoints and the optional OAuth identity round trip.
type VerifyHandler struct {
	service  service.VerifyService
	oauth    *platform.OAuthClient
	stateKey []byte
	logger   zerolog.Logger
}

// NewVerifyHandler constructs the handler. oauth may be nil when the OAuth
// flow is not configured; the mail flow still works.
func NewVerifyHandler(service service.VerifyService, oauth *platform.OAuthClient, stateKey []byte, logger zerolog.Logger) *VerifyHandler {
	return &VerifyHandler{
		service:  service,
		oauth:    oauth,
		stateKey: stateKey,
		logger:   logger.With().Str("component", "verify_handler").Logger(),
	}
}

// Register attaches verification endpoints to the router group.
func (h *VerifyHandler) Register(router fiber.Router) {
	router.Post("", h.begin)
	router.Post("/redeem", h.redeem)
	if h.oauth != nil {
		router.Get("/oauth/start", h.oauthStart)
		router.Get("/oauth/callback", h.oauthCallback)
	}
}

func (h *VerifyHandler) begin(c *fiber.Ctx) error {
	var payload dto.VerifyRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.service.Begin(c.Context(), payload); err != nil {
		return h.handleBeginError(c, err)
	}

	return utils.SendSuccess(c, "verification code sent", nil)
}

func (h *VerifyHandler) redeem(c *fiber.Ctx) error {
	var payload dto.VerifyRedeemRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	student, err := h.service.Redeem(c.Context(), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBadCode):
			return utils.SendError(c, fiber.StatusNotFound, "unknown or expired verification code")
		case errors.Is(err, service.ErrValidation):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			return h.internalError(c, err)
		}
	}

	return utils.SendSuccess(c, "member verified", student)
}

// oauthStart signs the pending student details into the state token and
// redirects the browser to the platform's consent page.
func (h *VerifyHandler) oauthStart(c *fiber.Ctx) error {
	studentID := c.Query("student_id")
	name := c.Query("name")
	if studentID == "" || name == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "student_id and name are required")
	}

	claims := jwt.MapClaims{
		"student_id": studentID,
		"name":       name,
		"exp":        time.Now().Add(stateTTL).Unix(),
	}
	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.stateKey)
	if err != nil {
		return h.internalError(c, err)
	}

	return c.Redirect(h.oauth.AuthorizeURL(state), fiber.StatusFound)
}

// oauthCallback resolves the authorizing user's identity, then starts the
// mail flow for the student id carried in the state token.
func (h *VerifyHandler) oauthCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	rawState := c.Query("state")
	if code == "" || rawState == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "code and state are required")
	}

	token, err := jwt.Parse(rawState, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return h.stateKey, nil
	})
	if err != nil || !token.Valid {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid state token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid state token")
	}
	studentID, _ := claims["student_id"].(string)
	name, _ := claims["name"].(string)

	accessToken, err := h.oauth.Exchange(c.Context(), code)
	if err != nil {
		h.logger.Warn().Err(err).Msg("oauth exchange failed")
		return utils.SendError(c, fiber.StatusBadGateway, "authorization failed")
	}
	userID, _, err := h.oauth.Identity(c.Context(), accessToken)
	if err != nil {
		h.logger.Warn().Err(err).Msg("oauth identity lookup failed")
		return utils.SendError(c, fiber.StatusBadGateway, "authorization failed")
	}

	if err := h.service.Begin(c.Context(), dto.VerifyRequest{
		UserID:    userID,
		StudentID: studentID,
		Name:      name,
	}); err != nil {
		return h.handleBeginError(c, err)
	}

	return utils.SendSuccess(c, "verification code sent", nil)
}

func (h *VerifyHandler) handleBeginError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrBadStudentID):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAlreadyVerified),
		errors.Is(err, service.ErrStudentIDTaken):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *VerifyHandler) internalError(c *fiber.Ctx, err error) error {
	h.logger.Error().Err(err).Str("path", c.Path()).Msg("verify request failed")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
