package service

import (
	"context"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"go.uber.org/zap"
)

// Mailer delivers account emails.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to *entity.User, link string) error
}

// LogMailer writes outgoing mail to the log instead of sending it.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, to *entity.User, link string) error {
	m.logger.Info("password reset requested",
		zap.String("user_id", to.ID),
		zap.String("email", to.Email),
		zap.String("link", link))
	return nil
}
