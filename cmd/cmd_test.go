package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/witos44/UserAuthSystem/app/oauth"
	"github.com/witos44/UserAuthSystem/app/repository"
	"github.com/witos44/UserAuthSystem/app/service"
	"github.com/witos44/UserAuthSystem/config"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPromptConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		got, err := promptConfirm(strings.NewReader(tt.input), &out, "sure? ")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Equal(t, "sure? ", out.String())
	}
}

func TestConfigureLogging(t *testing.T) {
	t.Cleanup(func() {
		logrus.SetLevel(logrus.InfoLevel)
		logrus.SetFormatter(&logrus.TextFormatter{})
	})

	require.NoError(t, configureLogging(&config.Config{Log: config.LogConfig{Level: "debug", Format: "json"}}))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logrus.StandardLogger().Formatter)

	assert.Error(t, configureLogging(&config.Config{Log: config.LogConfig{Level: "loud", Format: "text"}}))
	assert.Error(t, configureLogging(&config.Config{Log: config.LogConfig{Level: "info", Format: "xml"}}))
}

func testServerConfig() *config.Config {
	return &config.Config{
		App:    config.AppConfig{RootURL: "/", LoginURL: "/login"},
		JWT:    config.JWTConfig{Secret: "test-secret", TokenTTL: time.Hour},
		Tokens: config.TokenConfig{ResetTTL: time.Hour},
		Password: config.PasswordConfig{
			Policy:     config.PasswordPolicy{MinLength: 8},
			BcryptCost: bcrypt.MinCost,
		},
	}
}

func newRoutedServer(t *testing.T, requireVerified bool) (*echo.Echo, string) {
	t.Helper()

	cfg := testServerConfig()
	cfg.App.RequireVerifiedEmail = requireVerified
	mem := repository.NewMemoryStore()
	svc := service.NewUserAuthService(mem.Accounts(), mem.Sessions(), service.NewLogNotifier("/"), cfg,
		service.WithAsyncRunner(func(task func()) { task() }))
	e := newHTTPServer(cfg, svc, oauth.Registry{})

	register := httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"email":"a@x.com","password":"Passw0rd!","confirmPassword":"Passw0rd!"}`))
	register.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, register)
	require.Equal(t, http.StatusCreated, rec.Code)

	result, err := svc.SignIn(context.Background(), service.PasswordCredential("a@x.com", "Passw0rd!"))
	require.NoError(t, err)
	return e, result.Token
}

func TestRoutesRequireVerifiedEmailWhenEnabled(t *testing.T) {
	for _, tt := range []struct {
		name            string
		requireVerified bool
		want            int
	}{
		{name: "disabled", requireVerified: false, want: http.StatusOK},
		{name: "enabled", requireVerified: true, want: http.StatusForbidden},
	} {
		t.Run(tt.name, func(t *testing.T) {
			e, token := newRoutedServer(t, tt.requireVerified)

			req := httptest.NewRequest(http.MethodPut, "/auth/profile", strings.NewReader(`{"firstName":"Ada"}`))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)

			req = httptest.NewRequest(http.MethodGet, "/auth/user", nil)
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
			rec = httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestDisabledProviderIsNotFound(t *testing.T) {
	e, _ := newRoutedServer(t, false)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func preflight(e *echo.Echo, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/auth/user", nil)
	req.Header.Set(echo.HeaderOrigin, origin)
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCORSAllowsCredentialsOnlyForListedOrigins(t *testing.T) {
	cfg := testServerConfig()
	cfg.HTTP.CORSAllowedOrigins = []string{"https://app.example"}
	mem := repository.NewMemoryStore()
	svc := service.NewUserAuthService(mem.Accounts(), mem.Sessions(), service.NewLogNotifier("/"), cfg)
	e := newHTTPServer(cfg, svc, oauth.Registry{})

	rec := preflight(e, "https://evil.example")
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowCredentials))

	rec = preflight(e, "https://app.example")
	assert.Equal(t, "https://app.example", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "true", rec.Header().Get(echo.HeaderAccessControlAllowCredentials))
}

func TestCORSDefaultDoesNotAllowCredentials(t *testing.T) {
	cfg := testServerConfig()
	mem := repository.NewMemoryStore()
	svc := service.NewUserAuthService(mem.Accounts(), mem.Sessions(), service.NewLogNotifier("/"), cfg)
	e := newHTTPServer(cfg, svc, oauth.Registry{})

	rec := preflight(e, "https://evil.example")
	assert.NotEqual(t, "https://evil.example", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowCredentials))
}

func TestMigrateWritesToCommandOutput(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_DRIVER", "mysql")
	t.Setenv("MYSQL_DSN", "user:pass@tcp(db:3306)/authdb?parseTime=true")

	var gotDSN string
	orig := applyMigrations
	applyMigrations = func(_ context.Context, dsn string) error {
		gotDSN = dsn
		return nil
	}
	t.Cleanup(func() { applyMigrations = orig })

	var out bytes.Buffer
	migrateCmd.SetOut(&out)
	migrateCmd.SetContext(context.Background())
	t.Cleanup(func() { migrateCmd.SetOut(nil) })

	require.NoError(t, migrateCmd.RunE(migrateCmd, nil))
	assert.Equal(t, "user:pass@tcp(db:3306)/authdb?parseTime=true", gotDSN)
	assert.Equal(t, "migrations applied\n", out.String())
}
