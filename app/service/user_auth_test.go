package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/witos44/UserAuthSystem/app/dto"
	"github.com/witos44/UserAuthSystem/app/entity"
	"github.com/witos44/UserAuthSystem/app/service"
	"github.com/witos44/UserAuthSystem/app/types"
)

func mustSucceed(t *testing.T, err error, op string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s failed: %v", op, err)
	}
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func register(t *testing.T, env *testEnv, email, password string) *entity.Account {
	t.Helper()
	account, err := env.svc.Register(context.Background(), &types.RegisterRequest{
		Email:           email,
		Password:        password,
		ConfirmPassword: password,
		FirstName:       "Ada",
		LastName:        "Lovelace",
	})
	mustSucceed(t, err, "register")
	return account
}

func login(t *testing.T, env *testEnv, email, password string) *dto.SignInResult {
	t.Helper()
	res, err := env.svc.Login(context.Background(), &types.LoginRequest{Email: email, Password: password})
	mustSucceed(t, err, "login")
	return res
}

func authenticate(t *testing.T, env *testEnv, token string) *dto.Principal {
	t.Helper()
	principal, err := env.svc.Authenticate(context.Background(), token)
	mustSucceed(t, err, "authenticate")
	return principal
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := register(t, env, "a@x.com", "Passw0rd!")
	stored, err := env.accounts.FindByID(ctx, account.ID)
	mustSucceed(t, err, "find")
	if stored.EmailVerified {
		t.Fatalf("expected new account to be unverified")
	}
	if !stored.EmailVerificationToken.Valid || stored.EmailVerificationToken.String == "" {
		t.Fatalf("expected a verification token to be stored")
	}
	if stored.PasswordHash.String == "Passw0rd!" {
		t.Fatalf("password stored in plaintext")
	}

	sent, ok := env.notifier.last("verify")
	if !ok {
		t.Fatalf("verification notification expected")
	}
	if sent.Token != stored.EmailVerificationToken.String || sent.Email != "a@x.com" {
		t.Fatalf("unexpected notification: %+v", sent)
	}

	_, err = env.svc.Register(ctx, &types.RegisterRequest{Email: "a@x.com", Password: "Another1!", ConfirmPassword: "Another1!"})
	expectErr(t, err, service.ErrEmailTaken)
}

func TestRegisterWeakPassword(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Register(context.Background(), &types.RegisterRequest{Email: "a@x.com", Password: "short", ConfirmPassword: "short"})
	expectErr(t, err, service.ErrWeakPassword)
}

func TestRegisterCreatesNoSession(t *testing.T) {
	env := newTestEnv(t)
	account := register(t, env, "a@x.com", "Passw0rd!")

	removed, err := env.sessions.DeleteByAccountID(context.Background(), account.ID)
	mustSucceed(t, err, "delete sessions")
	if removed != 0 {
		t.Fatalf("expected no sessions after register, got %d", removed)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	register(t, env, "a@x.com", "Passw0rd!")

	_, err := env.svc.OAuthCallback(ctx, service.OAuthProfile{Provider: entity.ProviderGitHub, SubjectID: "7", Email: "oauth@x.com"})
	mustSucceed(t, err, "oauth callback")

	cases := []types.LoginRequest{
		{Email: "missing@x.com", Password: "Passw0rd!"},
		{Email: "a@x.com", Password: "wrong-password"},
		{Email: "oauth@x.com", Password: "anything"},
	}
	for _, tc := range cases {
		_, err := env.svc.Login(ctx, &tc)
		if !errors.Is(err, service.ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials for %s, got %v", tc.Email, err)
		}
	}
}

func TestLoginAndAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := register(t, env, "a@x.com", "Passw0rd!")

	res := login(t, env, "a@x.com", "Passw0rd!")
	if res.Token == "" || res.Account.ID != account.ID {
		t.Fatalf("unexpected sign-in result: %+v", res)
	}

	principal := authenticate(t, env, res.Token)
	if principal.Account.ID != account.ID || principal.Session.Token != res.Token {
		t.Fatalf("unexpected principal: %+v", principal)
	}
	if !principal.Session.ExpiresAt.Equal(res.ExpiresAt) {
		t.Fatalf("session expiry %v does not match token expiry %v", principal.Session.ExpiresAt, res.ExpiresAt)
	}

	_, err := env.svc.Authenticate(ctx, "garbage")
	expectErr(t, err, service.ErrUnauthorized)
}

func TestAuthenticateRequiresStoredSession(t *testing.T) {
	env := newTestEnv(t)
	account := register(t, env, "a@x.com", "Passw0rd!")

	orphan, _, err := service.NewTokenCodec("test-secret", time.Hour).Issue(account.ID)
	mustSucceed(t, err, "issue")

	_, err = env.svc.Authenticate(context.Background(), orphan)
	expectErr(t, err, service.ErrUnauthorized)
}

func TestAuthenticateRejectsSessionOfAnotherAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	victim := register(t, env, "a@x.com", "Passw0rd!")
	register(t, env, "b@x.com", "Passw0rd!")
	res := login(t, env, "b@x.com", "Passw0rd!")

	// a token for a different account stored under b's session
	forged, _, err := service.NewTokenCodec("test-secret", time.Hour).Issue(victim.ID)
	mustSucceed(t, err, "issue")
	mustSucceed(t, env.sessions.Create(ctx, &entity.Session{AccountID: res.Account.ID, Token: forged, ExpiresAt: time.Now().Add(time.Hour)}), "create session")

	_, err = env.svc.Authenticate(ctx, forged)
	expectErr(t, err, service.ErrUnauthorized)
}

func TestAuthenticateRejectsExpiredSession(t *testing.T) {
	now := time.Now()
	env := newTestEnv(t, service.WithClock(func() time.Time { return now }))
	env.store.SetClock(func() time.Time { return now })
	register(t, env, "a@x.com", "Passw0rd!")
	res := login(t, env, "a@x.com", "Passw0rd!")

	env.store.SetClock(func() time.Time { return now.Add(8 * 24 * time.Hour) })
	_, err := env.svc.Authenticate(context.Background(), res.Token)
	expectErr(t, err, service.ErrUnauthorized)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	register(t, env, "a@x.com", "Passw0rd!")
	res := login(t, env, "a@x.com", "Passw0rd!")

	mustSucceed(t, env.svc.Logout(ctx, authenticate(t, env, res.Token)), "logout")

	_, err := env.svc.Authenticate(ctx, res.Token)
	expectErr(t, err, service.ErrUnauthorized)
}

func TestVerifyEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := register(t, env, "a@x.com", "Passw0rd!")
	sent, _ := env.notifier.last("verify")

	mustSucceed(t, env.svc.VerifyEmail(ctx, sent.Token), "verify")
	stored, err := env.accounts.FindByID(ctx, account.ID)
	mustSucceed(t, err, "find")
	if !stored.EmailVerified || stored.EmailVerificationToken.Valid {
		t.Fatalf("expected verified account with cleared token, got %+v", stored)
	}

	expectErr(t, env.svc.VerifyEmail(ctx, sent.Token), service.ErrInvalidToken)
	expectErr(t, env.svc.VerifyEmail(ctx, "unknown"), service.ErrInvalidToken)
}

func TestResendVerification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	register(t, env, "a@x.com", "Passw0rd!")
	first, _ := env.notifier.last("verify")
	res := login(t, env, "a@x.com", "Passw0rd!")

	mustSucceed(t, env.svc.ResendVerification(ctx, authenticate(t, env, res.Token)), "resend")

	second, _ := env.notifier.last("verify")
	if first.Token == second.Token {
		t.Fatalf("expected a fresh verification token")
	}
	expectErr(t, env.svc.VerifyEmail(ctx, first.Token), service.ErrInvalidToken)
	mustSucceed(t, env.svc.VerifyEmail(ctx, second.Token), "verify")

	expectErr(t, env.svc.ResendVerification(ctx, authenticate(t, env, res.Token)), service.ErrAlreadyVerified)
}

func TestForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	env := newTestEnv(t)
	register(t, env, "a@x.com", "Passw0rd!")
	before := env.notifier.count()

	mustSucceed(t, env.svc.ForgotPassword(context.Background(), &types.ForgotPasswordRequest{Email: "nobody@x.com"}), "forgot password")
	if env.notifier.count() != before {
		t.Fatalf("expected no notification for unknown email")
	}
}

func TestResetPasswordFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	register(t, env, "a@x.com", "Passw0rd!")
	res := login(t, env, "a@x.com", "Passw0rd!")

	mustSucceed(t, env.svc.ForgotPassword(ctx, &types.ForgotPasswordRequest{Email: "a@x.com"}), "forgot password")
	sent, ok := env.notifier.last("reset")
	if !ok {
		t.Fatalf("reset notification expected")
	}

	err := env.svc.ResetPassword(ctx, &types.ResetPasswordRequest{Token: sent.Token, Password: "short"})
	expectErr(t, err, service.ErrWeakPassword)

	mustSucceed(t, env.svc.ResetPassword(ctx, &types.ResetPasswordRequest{Token: sent.Token, Password: "NewPassw0rd!"}), "reset")
	err = env.svc.ResetPassword(ctx, &types.ResetPasswordRequest{Token: sent.Token, Password: "OtherPassw0rd!"})
	expectErr(t, err, service.ErrInvalidToken)

	login(t, env, "a@x.com", "NewPassw0rd!")
	_, err = env.svc.Login(ctx, &types.LoginRequest{Email: "a@x.com", Password: "Passw0rd!"})
	expectErr(t, err, service.ErrInvalidCredentials)

	if _, err = env.svc.Authenticate(ctx, res.Token); err != nil {
		t.Fatalf("reset must leave existing sessions alone, got %v", err)
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	now := time.Now()
	env := newTestEnv(t, service.WithClock(func() time.Time { return now }))
	ctx := context.Background()
	register(t, env, "a@x.com", "Passw0rd!")
	mustSucceed(t, env.svc.ForgotPassword(ctx, &types.ForgotPasswordRequest{Email: "a@x.com"}), "forgot password")
	sent, _ := env.notifier.last("reset")

	env.store.SetClock(func() time.Time { return now.Add(time.Hour + time.Second) })
	err := env.svc.ResetPassword(ctx, &types.ResetPasswordRequest{Token: sent.Token, Password: "NewPassw0rd!"})
	expectErr(t, err, service.ErrInvalidToken)
}

func TestResetPasswordKeepsEightCharacterFloor(t *testing.T) {
	cfg := testConfig()
	cfg.Password.Policy.MinLength = 4
	env := newTestEnvWithConfig(t, cfg)
	ctx := context.Background()
	register(t, env, "a@x.com", "Passw0rd!")
	mustSucceed(t, env.svc.ForgotPassword(ctx, &types.ForgotPasswordRequest{Email: "a@x.com"}), "forgot password")
	sent, _ := env.notifier.last("reset")

	err := env.svc.ResetPassword(ctx, &types.ResetPasswordRequest{Token: sent.Token, Password: "abc1234"})
	expectErr(t, err, service.ErrWeakPassword)

	mustSucceed(t, env.svc.ResetPassword(ctx, &types.ResetPasswordRequest{Token: sent.Token, Password: "abcd1234"}), "reset")
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	register(t, env, "a@x.com", "Passw0rd!")
	register(t, env, "b@x.com", "Passw0rd!")
	res := login(t, env, "a@x.com", "Passw0rd!")
	principal := authenticate(t, env, res.Token)

	taken := "b@x.com"
	_, err := env.svc.UpdateProfile(ctx, principal, &types.UpdateProfileRequest{Email: &taken})
	expectErr(t, err, service.ErrEmailTaken)

	first := "Grace"
	same := "a@x.com"
	updated, err := env.svc.UpdateProfile(ctx, principal, &types.UpdateProfileRequest{FirstName: &first, Email: &same})
	mustSucceed(t, err, "update profile")
	if updated.FirstName.String != "Grace" || updated.LastName.String != "Lovelace" || updated.Email != "a@x.com" {
		t.Fatalf("unexpected account after update: %+v", updated)
	}

	fresh := "c@x.com"
	updated, err = env.svc.UpdateProfile(ctx, principal, &types.UpdateProfileRequest{Email: &fresh})
	mustSucceed(t, err, "update email")
	if updated.Email != "c@x.com" {
		t.Fatalf("expected email c@x.com, got %s", updated.Email)
	}
}

func TestChangePasswordRevokesOtherSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	register(t, env, "a@x.com", "Passw0rd!")
	acting := login(t, env, "a@x.com", "Passw0rd!")
	other := login(t, env, "a@x.com", "Passw0rd!")
	if acting.Token == other.Token {
		t.Fatalf("expected distinct session tokens")
	}

	err := env.svc.ChangePassword(ctx, authenticate(t, env, acting.Token), &types.ChangePasswordRequest{
		CurrentPassword: "Passw0rd!",
		NewPassword:     "NewPassw0rd!",
		ConfirmPassword: "NewPassw0rd!",
	})
	mustSucceed(t, err, "change password")

	_, err = env.svc.Authenticate(ctx, other.Token)
	expectErr(t, err, service.ErrUnauthorized)

	still := authenticate(t, env, acting.Token)
	if !still.Session.ExpiresAt.Equal(acting.ExpiresAt) {
		t.Fatalf("acting session expiry changed: %v vs %v", still.Session.ExpiresAt, acting.ExpiresAt)
	}
	if env.svc.CurrentUser(still) == nil {
		t.Fatalf("expected current user for acting session")
	}

	login(t, env, "a@x.com", "NewPassw0rd!")
}

func TestChangePasswordErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	register(t, env, "a@x.com", "Passw0rd!")
	res := login(t, env, "a@x.com", "Passw0rd!")
	principal := authenticate(t, env, res.Token)

	err := env.svc.ChangePassword(ctx, principal, &types.ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "NewPassw0rd!"})
	expectErr(t, err, service.ErrPasswordMismatch)

	err = env.svc.ChangePassword(ctx, principal, &types.ChangePasswordRequest{CurrentPassword: "Passw0rd!", NewPassword: "short"})
	expectErr(t, err, service.ErrWeakPassword)

	oauth, err := env.svc.OAuthCallback(ctx, service.OAuthProfile{Provider: entity.ProviderGoogle, SubjectID: "g-1", Email: "g@x.com"})
	mustSucceed(t, err, "oauth callback")
	err = env.svc.ChangePassword(ctx, authenticate(t, env, oauth.Token), &types.ChangePasswordRequest{CurrentPassword: "x", NewPassword: "NewPassw0rd!"})
	expectErr(t, err, service.ErrPasswordNotSet)
}

func TestOAuthCallbackLinksExistingPasswordAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := register(t, env, "a@x.com", "Passw0rd!")

	res, err := env.svc.OAuthCallback(ctx, service.OAuthProfile{Provider: entity.ProviderGoogle, SubjectID: "g-1", Email: "a@x.com"})
	mustSucceed(t, err, "oauth callback")
	if res.Account.ID != account.ID {
		t.Fatalf("expected link onto %s, got %s", account.ID, res.Account.ID)
	}

	again, err := env.svc.OAuthCallback(ctx, service.OAuthProfile{Provider: entity.ProviderGoogle, SubjectID: "g-1", Email: "changed@x.com"})
	mustSucceed(t, err, "oauth callback")
	if again.Account.ID != account.ID {
		t.Fatalf("expected same account on provider id match, got %s", again.Account.ID)
	}

	user := env.svc.CurrentUser(authenticate(t, env, again.Token))
	if !user.HasPassword() || !user.HasGoogleAuth() || user.HasGithubAuth() {
		t.Fatalf("unexpected auth methods: %+v", user)
	}
}

func TestSignInRejectsUnknownProvider(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.SignIn(context.Background(), service.Credential{Provider: "saml"})
	expectErr(t, err, service.ErrUnsupportedProvider)

	_, err = env.svc.SignIn(context.Background(), service.Credential{Provider: entity.ProviderGitHub})
	expectErr(t, err, service.ErrIncompleteProfile)
}

func TestRevokeSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := register(t, env, "a@x.com", "Passw0rd!")
	login(t, env, "a@x.com", "Passw0rd!")
	res := login(t, env, "a@x.com", "Passw0rd!")

	removed, err := env.svc.RevokeSessions(ctx, account.ID)
	mustSucceed(t, err, "revoke sessions")
	if removed != 2 {
		t.Fatalf("expected 2 sessions revoked, got %d", removed)
	}

	_, err = env.svc.Authenticate(ctx, res.Token)
	expectErr(t, err, service.ErrUnauthorized)
}
