package controller

import (
	"net/http"

	"github.com/witos44/UserAuthSystem/app/middleware"
	"github.com/witos44/UserAuthSystem/app/service"
	"github.com/witos44/UserAuthSystem/app/types"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const forgotPasswordMessage = "If the email exists, a reset link has been sent"

type UserAuthController struct {
	userAuthService service.UserAuthService
	cookies         CookieSettings
}

func NewUserAuthController(userAuthService service.UserAuthService, cookies CookieSettings) *UserAuthController {
	if cookies.TTL <= 0 {
		cookies.TTL = userAuthService.TokenTTL()
	}
	return &UserAuthController{userAuthService: userAuthService, cookies: cookies}
}

func (c *UserAuthController) Register(ctx echo.Context) error {
	req, err := types.NewRegisterRequestFromContext(ctx)
	if err != nil {
		return badBody(ctx, err, "register")
	}

	fields := logrus.Fields{"email": req.Email}
	if err = req.Validate(); err != nil {
		return writeError(ctx, err, "Register", fields)
	}

	logrus.WithFields(fields).Info("Register request received")
	account, err := c.userAuthService.Register(ctx.Request().Context(), req)
	if err != nil {
		return writeError(ctx, err, "Register", fields)
	}

	logrus.WithFields(logrus.Fields{
		"account_id": account.ID,
		"email":      account.Email,
	}).Info("Account registered")

	return ctx.JSON(http.StatusCreated, types.RegisterResponse{
		Message: "User created successfully. Please check your email for verification.",
		UserID:  account.ID,
	})
}

func (c *UserAuthController) Login(ctx echo.Context) error {
	req, err := types.NewLoginRequestFromContext(ctx)
	if err != nil {
		return badBody(ctx, err, "login")
	}

	fields := logrus.Fields{"email": req.Email}
	if err = req.Validate(); err != nil {
		return writeError(ctx, err, "Login", fields)
	}

	result, err := c.userAuthService.Login(ctx.Request().Context(), req)
	if err != nil {
		return writeError(ctx, err, "Login", fields)
	}

	ctx.SetCookie(c.cookies.token(result.Token))
	logrus.WithField("account_id", result.Account.ID).Info("Login successful")

	return ctx.JSON(http.StatusOK, types.LoginResponse{
		Message: "Login successful",
		Token:   result.Token,
		User:    types.NewAccountView(result.Account),
	})
}

func (c *UserAuthController) Logout(ctx echo.Context) error {
	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		return writeError(ctx, service.ErrUnauthorized, "Logout", nil)
	}

	fields := logrus.Fields{"account_id": principal.Account.ID}
	if err := c.userAuthService.Logout(ctx.Request().Context(), principal); err != nil {
		return writeError(ctx, err, "Logout", fields)
	}

	ctx.SetCookie(c.cookies.clearToken())
	logrus.WithFields(fields).Info("Logout successful")
	return ctx.JSON(http.StatusOK, types.MessageResponse{Message: "Logout successful"})
}

func (c *UserAuthController) CurrentUser(ctx echo.Context) error {
	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		return writeError(ctx, service.ErrUnauthorized, "Current user", nil)
	}

	return ctx.JSON(http.StatusOK, types.NewUserResponse(c.userAuthService.CurrentUser(principal)))
}

func (c *UserAuthController) VerifyEmail(ctx echo.Context) error {
	if err := c.userAuthService.VerifyEmail(ctx.Request().Context(), ctx.Param("token")); err != nil {
		return writeError(ctx, err, "Verify email", nil)
	}

	logrus.Info("Email verified")
	return ctx.JSON(http.StatusOK, types.MessageResponse{Message: "Email verified successfully"})
}

func (c *UserAuthController) ResendVerification(ctx echo.Context) error {
	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		return writeError(ctx, service.ErrUnauthorized, "Resend verification", nil)
	}

	fields := logrus.Fields{"account_id": principal.Account.ID}
	if err := c.userAuthService.ResendVerification(ctx.Request().Context(), principal); err != nil {
		return writeError(ctx, err, "Resend verification", fields)
	}

	logrus.WithFields(fields).Info("Verification email reissued")
	return ctx.JSON(http.StatusOK, types.MessageResponse{Message: "Verification email sent"})
}

func (c *UserAuthController) ForgotPassword(ctx echo.Context) error {
	req, err := types.NewForgotPasswordRequestFromContext(ctx)
	if err != nil {
		return badBody(ctx, err, "forgot password")
	}

	if err = req.Validate(); err != nil {
		return writeError(ctx, err, "Forgot password", nil)
	}

	if err = c.userAuthService.ForgotPassword(ctx.Request().Context(), req); err != nil {
		return writeError(ctx, err, "Forgot password", nil)
	}

	return ctx.JSON(http.StatusOK, types.MessageResponse{Message: forgotPasswordMessage})
}

func (c *UserAuthController) ResetPassword(ctx echo.Context) error {
	req, err := types.NewResetPasswordRequestFromContext(ctx)
	if err != nil {
		return badBody(ctx, err, "reset password")
	}

	if err = req.Validate(); err != nil {
		return writeError(ctx, err, "Reset password", nil)
	}

	if err = c.userAuthService.ResetPassword(ctx.Request().Context(), req); err != nil {
		return writeError(ctx, err, "Reset password", nil)
	}

	logrus.Info("Password reset")
	return ctx.JSON(http.StatusOK, types.MessageResponse{Message: "Password reset successfully"})
}

func (c *UserAuthController) UpdateProfile(ctx echo.Context) error {
	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		return writeError(ctx, service.ErrUnauthorized, "Update profile", nil)
	}

	req, err := types.NewUpdateProfileRequestFromContext(ctx)
	if err != nil {
		return badBody(ctx, err, "update profile")
	}

	fields := logrus.Fields{"account_id": principal.Account.ID}
	if err = req.Validate(); err != nil {
		return writeError(ctx, err, "Update profile", fields)
	}

	account, err := c.userAuthService.UpdateProfile(ctx.Request().Context(), principal, req)
	if err != nil {
		return writeError(ctx, err, "Update profile", fields)
	}

	logrus.WithFields(fields).Info("Profile updated")
	return ctx.JSON(http.StatusOK, types.ProfileResponse{
		Message: "Profile updated successfully",
		User:    types.NewAccountView(account),
	})
}

func (c *UserAuthController) ChangePassword(ctx echo.Context) error {
	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		return writeError(ctx, service.ErrUnauthorized, "Change password", nil)
	}

	req, err := types.NewChangePasswordRequestFromContext(ctx)
	if err != nil {
		return badBody(ctx, err, "change password")
	}

	fields := logrus.Fields{"account_id": principal.Account.ID}
	if err = req.Validate(); err != nil {
		return writeError(ctx, err, "Change password", fields)
	}

	if err = c.userAuthService.ChangePassword(ctx.Request().Context(), principal, req); err != nil {
		return writeError(ctx, err, "Change password", fields)
	}

	logrus.WithFields(fields).Info("Password changed")
	return ctx.JSON(http.StatusOK, types.MessageResponse{Message: "Password changed successfully"})
}
