package notify

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/fluxo-erp/gateway/internal/config"
)

// Mailer delivers password recovery links.
type Mailer interface {
	SendRecovery(ctx context.Context, to, link string) error
}

// LogMailer is a delivery stub that only logs the outgoing message.
type LogMailer struct {
	logger *zap.Logger
	cfg    config.NotifyConfig
}

// NewLogMailer creates the stub mailer.
func NewLogMailer(logger *zap.Logger, cfg config.NotifyConfig) *LogMailer {
	return &LogMailer{logger: logger, cfg: cfg}
}

// SendRecovery logs the recovery mail. Nothing is sent without a sender address.
func (m *LogMailer) SendRecovery(_ context.Context, to, link string) error {
	if strings.TrimSpace(m.cfg.EmailFrom) == "" {
		m.logger.Warn("recovery mail skipped: no sender configured", zap.String("to", maskEmail(to)))
		return nil
	}
	m.logger.Info("sendRecoveryEmailStub",
		zap.String("from", m.cfg.EmailFrom),
		zap.String("to", maskEmail(to)),
		zap.Int("link_len", len(link)))
	return nil
}

func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	switch {
	case at < 0:
		return "***"
	case at <= 1:
		return "***" + email[at:]
	}
	return email[:1] + "***" + email[at:]
}
