package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/witos44/UserAuthSystem/app/middleware"
	"github.com/witos44/UserAuthSystem/app/service"
	"github.com/witos44/UserAuthSystem/app/types"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// serviceErrorStatus lists the errors that are safe to show the caller verbatim.
var serviceErrorStatus = []struct {
	err    error
	status int
}{
	{service.ErrEmailTaken, http.StatusBadRequest},
	{service.ErrWeakPassword, http.StatusBadRequest},
	{service.ErrInvalidCredentials, http.StatusUnauthorized},
	{service.ErrUnauthorized, http.StatusUnauthorized},
	{service.ErrEmailNotVerified, http.StatusForbidden},
	{service.ErrInvalidToken, http.StatusBadRequest},
	{service.ErrAlreadyVerified, http.StatusBadRequest},
	{service.ErrPasswordNotSet, http.StatusBadRequest},
	{service.ErrPasswordMismatch, http.StatusBadRequest},
}

// writeError maps err to a status and a body that leaks nothing unexpected.
func writeError(ctx echo.Context, err error, op string, fields logrus.Fields) error {
	var validationErr *types.ValidationError
	if errors.As(err, &validationErr) {
		logrus.WithFields(fields).Debugf("%s validation failed", op)
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "validation error", Fields: validationErr.Fields})
	}

	for _, m := range serviceErrorStatus {
		if errors.Is(err, m.err) {
			logrus.WithFields(fields).Warnf("%s failed: %s", op, m.err.Error())
			msg := m.err.Error()
			if m.err == service.ErrWeakPassword {
				msg = err.Error()
			}
			return ctx.JSON(m.status, types.ErrorResponse{Error: msg})
		}
	}

	logrus.WithError(err).WithFields(fields).Errorf("%s failed", op)
	return ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
}

func badBody(ctx echo.Context, err error, op string) error {
	logrus.WithError(err).Debugf("Failed to bind %s request", op)
	return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
}

// CookieSettings controls the attributes of the cookies set by the controllers.
type CookieSettings struct {
	Secure bool
	TTL    time.Duration
}

func (s CookieSettings) token(value string) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.TTL.Seconds()),
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s CookieSettings) clearToken() *http.Cookie {
	return &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
