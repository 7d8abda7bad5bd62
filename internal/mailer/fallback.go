package mailer

import (
	"context"
	"log/slog"
	"time"

	"credify/pkg/email"
)

// Log writes codes to the log instead of sending them. Only for demo mode.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) SendOTP(ctx context.Context, to, code string, ttl time.Duration) error {
	l.logger.WarnContext(ctx, "demo mode: otp not emailed",
		"to", email.Mask(to),
		"code", code,
		"ttl", ttl.String(),
	)
	return nil
}

func (l *Log) SendCredentialQR(ctx context.Context, to string, png []byte) error {
	l.logger.WarnContext(ctx, "demo mode: credential QR not emailed",
		"to", email.Mask(to),
		"png_bytes", len(png),
	)
	return nil
}

// Disabled refuses every send.
type Disabled struct{}

func (Disabled) SendOTP(context.Context, string, string, time.Duration) error { return ErrDisabled }
func (Disabled) SendCredentialQR(context.Context, string, []byte) error      { return ErrDisabled }
