package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/witos44/UserAuthSystem/app/repository"
	"github.com/witos44/UserAuthSystem/app/service"
	"github.com/witos44/UserAuthSystem/config"

	"golang.org/x/crypto/bcrypt"
)

type sentMessage struct {
	Kind  string
	Email string
	Token string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *recordingNotifier) SendVerificationEmail(_ context.Context, email, token string) error {
	n.record("verify", email, token)
	return nil
}

func (n *recordingNotifier) SendPasswordResetEmail(_ context.Context, email, token string) error {
	n.record("reset", email, token)
	return nil
}

func (n *recordingNotifier) record(kind, email, token string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{Kind: kind, Email: email, Token: token})
}

func (n *recordingNotifier) last(kind string) (sentMessage, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Kind == kind {
			return n.sent[i], true
		}
	}
	return sentMessage{}, false
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:   "test-secret",
			TokenTTL: 7 * 24 * time.Hour,
		},
		Tokens: config.TokenConfig{ResetTTL: time.Hour},
		Password: config.PasswordConfig{
			Policy:     config.PasswordPolicy{MinLength: 8},
			BcryptCost: bcrypt.MinCost,
		},
	}
}

type testEnv struct {
	store    *repository.MemoryStore
	accounts *repository.MemoryAccountRepository
	sessions *repository.MemorySessionRepository
	notifier *recordingNotifier
	svc      service.UserAuthService
}

func newTestEnv(t *testing.T, opts ...service.UserAuthServiceOption) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, testConfig(), opts...)
}

func newTestEnvWithConfig(t *testing.T, cfg *config.Config, opts ...service.UserAuthServiceOption) *testEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	env := &testEnv{
		store:    store,
		accounts: store.Accounts(),
		sessions: store.Sessions(),
		notifier: &recordingNotifier{},
	}
	opts = append([]service.UserAuthServiceOption{
		service.WithAsyncRunner(func(task func()) { task() }),
	}, opts...)
	env.svc = service.NewUserAuthService(env.accounts, env.sessions, env.notifier, cfg, opts...)
	return env
}
