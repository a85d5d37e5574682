package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/witos44/UserAuthSystem/app/dto"
	"github.com/witos44/UserAuthSystem/app/service"
	"github.com/witos44/UserAuthSystem/app/types"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	// TokenCookieName is the httpOnly cookie that carries the session token for browsers.
	TokenCookieName = "token"
	principalKey    = "principal"
)

type authenticator interface {
	Authenticate(ctx context.Context, token string) (*dto.Principal, error)
}

type AuthMiddleware struct {
	authService authenticator
}

func NewAuthMiddleware(authService authenticator) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// RequireAuth resolves the request token to a principal and stores it on the
// echo context for the handler to pass on explicitly.
func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := ExtractToken(c)
		if token == "" {
			logrus.Debug("Missing authentication token")
			return c.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: service.ErrUnauthorized.Error()})
		}

		principal, err := m.authService.Authenticate(c.Request().Context(), token)
		if err != nil {
			if errors.Is(err, service.ErrUnauthorized) {
				logrus.Debug("Invalid or expired session token")
				return c.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: service.ErrUnauthorized.Error()})
			}
			logrus.WithError(err).Error("Failed to authenticate request")
			return c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
		}

		c.Set(principalKey, principal)
		return next(c)
	}
}

// RequireVerifiedEmail must run after RequireAuth.
func (m *AuthMiddleware) RequireVerifiedEmail(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: service.ErrUnauthorized.Error()})
		}
		if !principal.Account.EmailVerified {
			logrus.WithField("account_id", principal.Account.ID).Debug("Email verification required")
			return c.JSON(http.StatusForbidden, types.ErrorResponse{Error: service.ErrEmailNotVerified.Error()})
		}
		return next(c)
	}
}

func PrincipalFromContext(c echo.Context) (*dto.Principal, bool) {
	principal, ok := c.Get(principalKey).(*dto.Principal)
	return principal, ok && principal != nil
}

// ExtractToken prefers a Bearer Authorization header and falls back to the token cookie.
func ExtractToken(c echo.Context) string {
	if header := c.Request().Header.Get("Authorization"); header != "" {
		parts := strings.Fields(header)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	if cookie, err := c.Cookie(TokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}
