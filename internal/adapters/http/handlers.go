package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/taskboard/internal/domain/entities"
	"github.com/taskmaster/taskboard/internal/infrastructure/logger"
	"github.com/taskmaster/taskboard/internal/ports"
)

// Keys under which the auth middleware stores the caller on echo.Context
const (
	ContextKeyUser   = "user"
	ContextKeyUserID = "user_id"
	ContextKeyToken  = "token"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	authService ports.AuthService
	logger      *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService ports.AuthService, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Register godoc
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ports.RegisterRequest true "Account data"
// @Success 201 {object} ports.AuthResponse
// @Failure 400 {object} ports.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req ports.RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	response, err := h.authService.Register(c.Request().Context(), req)
	if err != nil {
		return Error(err)
	}

	return c.JSON(http.StatusCreated, response)
}

// Login godoc
// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ports.LoginRequest true "Credentials"
// @Success 200 {object} ports.AuthResponse
// @Failure 400 {object} ports.ErrorResponse
// @Failure 401 {object} ports.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req ports.LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	response, err := h.authService.Login(c.Request().Context(), req)
	if err != nil {
		return Error(err)
	}

	return c.JSON(http.StatusOK, response)
}

// Me godoc
// @Summary Current user profile
// @Tags auth
// @Produce json
// @Success 200 {object} entities.User
// @Failure 401 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	user, err := h.authService.GetProfile(c.Request().Context(), getUserIDFromContext(c))
	if err != nil {
		return Error(err)
	}
	return c.JSON(http.StatusOK, user)
}

// Logout godoc
// @Summary Revoke the presented token
// @Tags auth
// @Produce json
// @Success 200 {object} ports.MessageResponse
// @Failure 401 {object} ports.ErrorResponse
// @Security BearerAuth
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	token, _ := c.Get(ContextKeyToken).(string)

	if err := h.authService.Logout(c.Request().Context(), token); err != nil {
		h.logger.Errorw("Logout failed", "error", err, "user_id", getUserIDFromContext(c))
		return Error(err)
	}

	return c.JSON(http.StatusOK, ports.MessageResponse{Message: "Logged out successfully"})
}

// Utility functions

// bindAndValidate decodes the request into req and runs the validator. Both
// failures are returned ready for the error handler.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return Error(err)
	}
	if err := c.Validate(req); err != nil {
		return Error(err)
	}
	return nil
}

func getUserIDFromContext(c echo.Context) string {
	if id, ok := c.Get(ContextKeyUserID).(string); ok {
		return id
	}
	if user, ok := c.Get(ContextKeyUser).(*entities.User); ok {
		return user.ID
	}
	return ""
}
