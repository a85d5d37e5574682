package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// Notifier delivers the links that carry ephemeral tokens to account owners.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, email, token string) error
	SendPasswordResetEmail(ctx context.Context, email, token string) error
}

// LogNotifier writes the links to the log instead of sending mail.
type LogNotifier struct {
	baseURL string
}

func NewLogNotifier(baseURL string) *LogNotifier {
	return &LogNotifier{baseURL: strings.TrimRight(baseURL, "/")}
}

func (n *LogNotifier) SendVerificationEmail(_ context.Context, email, token string) error {
	logrus.WithFields(logrus.Fields{
		"email": email,
		"link":  n.baseURL + "/verify-email/" + token,
	}).Info("verification email queued")
	return nil
}

func (n *LogNotifier) SendPasswordResetEmail(_ context.Context, email, token string) error {
	logrus.WithFields(logrus.Fields{
		"email": email,
		"link":  n.baseURL + "/reset-password/" + token,
	}).Info("password reset email queued")
	return nil
}
