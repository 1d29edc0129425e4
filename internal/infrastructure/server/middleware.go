package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	httpHandlers "github.com/taskmaster/taskboard/internal/adapters/http"
	"github.com/taskmaster/taskboard/internal/application/security"
	"github.com/taskmaster/taskboard/internal/domain/entities"
	"github.com/taskmaster/taskboard/internal/ports"
)

const notAuthorized = "Not authorized to access this route"

// clientInfo copies the caller's IP, user agent and request id into the
// request context, where the auditor reads them.
func clientInfo() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := ports.WithClientInfo(req.Context(), ports.ClientInfo{
				IP:        c.RealIP(),
				UserAgent: req.UserAgent(),
				RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
			})
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

// authMiddleware resolves the bearer token to a user. Every failure answers
// the same 401; the reason is only logged.
func (s *Server) authMiddleware(authService ports.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			tokenString, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				s.auditor.LogSuspiciousActivity(ctx, security.ActivityMissingToken,
					fmt.Sprintf("Access attempt without token to %s", c.Request().URL.Path), "")
				return echo.NewHTTPError(http.StatusUnauthorized, notAuthorized)
			}

			user, _, err := authService.Authenticate(ctx, tokenString)
			if err != nil {
				if errors.Is(err, entities.ErrUnauthenticated) {
					return echo.NewHTTPError(http.StatusUnauthorized, notAuthorized).SetInternal(err)
				}
				return httpHandlers.Error(err)
			}

			c.Set(httpHandlers.ContextKeyUser, user)
			c.Set(httpHandlers.ContextKeyUserID, user.ID)
			c.Set(httpHandlers.ContextKeyToken, tokenString)

			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
