package controller

import (
	"net/http"
	"net/url"

	"github.com/witos44/UserAuthSystem/app/oauth"
	"github.com/witos44/UserAuthSystem/app/service"
	"github.com/witos44/UserAuthSystem/app/types"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const socialAuthFailed = "social-auth-failed"

type OAuthController struct {
	userAuthService service.UserAuthService
	providers       oauth.Registry
	cookies         CookieSettings
	rootURL         string
	loginURL        string
}

func NewOAuthController(
	userAuthService service.UserAuthService,
	providers oauth.Registry,
	cookies CookieSettings,
	rootURL, loginURL string,
) *OAuthController {
	if cookies.TTL <= 0 {
		cookies.TTL = userAuthService.TokenTTL()
	}
	return &OAuthController{
		userAuthService: userAuthService,
		providers:       providers,
		cookies:         cookies,
		rootURL:         rootURL,
		loginURL:        loginURL,
	}
}

// Start redirects the browser to the provider's consent page.
func (c *OAuthController) Start(ctx echo.Context) error {
	provider, ok := c.providers.Get(ctx.Param("provider"))
	if !ok {
		return ctx.JSON(http.StatusNotFound, types.ErrorResponse{Error: "unknown or disabled provider"})
	}

	state, err := oauth.NewState()
	if err != nil {
		logrus.WithError(err).Error("Failed to generate oauth state")
		return ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
	}

	ctx.SetCookie(c.stateCookie(state, int(oauth.StateTTL.Seconds())))
	return ctx.Redirect(http.StatusFound, provider.AuthCodeURL(state))
}

// Callback completes the code exchange, signs the account in and redirects
// to the application root. Any failure redirects to the login page.
func (c *OAuthController) Callback(ctx echo.Context) error {
	name := ctx.Param("provider")
	fields := logrus.Fields{"provider": name}

	provider, ok := c.providers.Get(name)
	if !ok {
		return c.fail(ctx, fields, "provider not enabled")
	}

	issued := ""
	if cookie, err := ctx.Cookie(oauth.StateCookieName); err == nil {
		issued = cookie.Value
	}
	ctx.SetCookie(c.stateCookie("", -1))

	if !oauth.StateMatches(issued, ctx.QueryParam("state")) {
		return c.fail(ctx, fields, "state mismatch")
	}
	if providerErr := ctx.QueryParam("error"); providerErr != "" {
		return c.fail(ctx, fields, "provider returned "+providerErr)
	}

	reqCtx := ctx.Request().Context()
	profile, err := provider.Exchange(reqCtx, ctx.QueryParam("code"))
	if err != nil {
		logrus.WithError(err).WithFields(fields).Warn("OAuth code exchange failed")
		return c.fail(ctx, fields, "code exchange failed")
	}

	result, err := c.userAuthService.OAuthCallback(reqCtx, *profile)
	if err != nil {
		logrus.WithError(err).WithFields(fields).Warn("OAuth sign-in failed")
		return c.fail(ctx, fields, "sign-in failed")
	}

	ctx.SetCookie(c.cookies.token(result.Token))
	logrus.WithFields(fields).WithField("account_id", result.Account.ID).Info("OAuth sign-in successful")
	return ctx.Redirect(http.StatusFound, c.rootURL)
}

func (c *OAuthController) fail(ctx echo.Context, fields logrus.Fields, reason string) error {
	logrus.WithFields(fields).WithField("reason", reason).Info("OAuth callback rejected")
	return ctx.Redirect(http.StatusFound, c.loginURL+"?error="+url.QueryEscape(socialAuthFailed))
}

func (c *OAuthController) stateCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     oauth.StateCookieName,
		Value:    value,
		Path:     "/auth",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
