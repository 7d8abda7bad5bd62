// Package mailer sends one-time codes and credential QR codes over SMTP.
package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"credify/internal/platform/config"
	"credify/pkg/email"
)

const appName = "Credify"

// ErrDisabled is returned by Disabled for every send.
var ErrDisabled = errors.New("outbound email is not configured")

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTP delivers mail through a single relay.
type SMTP struct {
	cfg    config.SMTPConfig
	send   SendFunc
	logger *slog.Logger
}

type Option func(*SMTP)

func WithLogger(logger *slog.Logger) Option {
	return func(m *SMTP) { m.logger = logger }
}

// WithSendFunc replaces smtp.SendMail; tests capture the raw message.
func WithSendFunc(fn SendFunc) Option {
	return func(m *SMTP) { m.send = fn }
}

func New(cfg config.SMTPConfig, opts ...Option) *SMTP {
	m := &SMTP{cfg: cfg, send: smtp.SendMail, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var otpHTML = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif; color: #333;">
<h2>{{.App}} verification code</h2>
<p>Use the following code to reveal your credential:</p>
<p style="font-size: 32px; font-weight: bold; letter-spacing: 8px;">{{.Code}}</p>
<p>This code is valid for <strong>{{.Minutes}} minutes</strong> only. Do not share it with anyone.</p>
<p>If you did not request this code, ignore this email.</p>
</body></html>`))

var qrHTML = template.Must(template.New("qr").Parse(`<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif; color: #333;">
<h2>Your {{.App}} credential</h2>
<p>Hello {{.Name}},</p>
<p>Your credential is attached as a QR code. Present it to a verifier to prove your details.</p>
<p><img src="cid:{{.CID}}" alt="credential QR code" width="256" height="256"></p>
</body></html>`))

// SendOTP mails a one-time code and its validity.
func (m *SMTP) SendOTP(ctx context.Context, to, code string, ttl time.Duration) error {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	var html bytes.Buffer
	if err := otpHTML.Execute(&html, map[string]any{"App": appName, "Code": code, "Minutes": minutes}); err != nil {
		return fmt.Errorf("render otp email: %w", err)
	}
	text := fmt.Sprintf("%s verification code: %s\r\n\r\nThis code is valid for %d minutes only. Do not share it with anyone.\r\n",
		appName, code, minutes)

	msg, err := m.build(to, appName+" - your verification code", func(w *multipart.Writer) error {
		alt, err := nested(w, "multipart/alternative")
		if err != nil {
			return err
		}
		if err := writePart(alt, "text/plain; charset=UTF-8", "quoted-printable", []byte(text), nil); err != nil {
			return err
		}
		if err := writePart(alt, "text/html; charset=UTF-8", "quoted-printable", html.Bytes(), nil); err != nil {
			return err
		}
		return alt.Close()
	})
	if err != nil {
		return err
	}
	return m.deliver(ctx, to, msg)
}

// SendCredentialQR mails the credential QR as an inline PNG.
func (m *SMTP) SendCredentialQR(ctx context.Context, to string, png []byte) error {
	const cid = "credential-qr"
	var html bytes.Buffer
	if err := qrHTML.Execute(&html, map[string]any{"App": appName, "Name": email.DisplayName(to), "CID": cid}); err != nil {
		return fmt.Errorf("render qr email: %w", err)
	}

	msg, err := m.build(to, "Your "+appName+" credential", func(w *multipart.Writer) error {
		if err := writePart(w, "text/html; charset=UTF-8", "quoted-printable", html.Bytes(), nil); err != nil {
			return err
		}
		return writePart(w, "image/png", "base64", png, textproto.MIMEHeader{
			"Content-Id":          {"<" + cid + ">"},
			"Content-Disposition": {`inline; filename="credential.png"`},
		})
	})
	if err != nil {
		return err
	}
	return m.deliver(ctx, to, msg)
}

func (m *SMTP) build(to, subject string, body func(*multipart.Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	hdr := []string{
		"From: " + m.cfg.From,
		"To: " + to,
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"Date: " + time.Now().UTC().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: multipart/related; boundary=" + strconv.Quote(w.Boundary()),
	}
	var msg bytes.Buffer
	for _, h := range hdr {
		msg.WriteString(h)
		msg.WriteString("\r\n")
	}
	msg.WriteString("\r\n")

	if err := body(w); err != nil {
		return nil, fmt.Errorf("build email: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("build email: %w", err)
	}
	msg.Write(buf.Bytes())
	return msg.Bytes(), nil
}

func (m *SMTP) deliver(ctx context.Context, to string, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
	if err := m.send(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	m.logger.DebugContext(ctx, "email sent", "to", email.Mask(to), "bytes", len(msg))
	return nil
}

func nested(w *multipart.Writer, contentType string) (*multipart.Writer, error) {
	boundary := multipart.NewWriter(io.Discard).Boundary()
	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type": {contentType + "; boundary=" + strconv.Quote(boundary)},
	})
	if err != nil {
		return nil, err
	}
	child := multipart.NewWriter(part)
	if err := child.SetBoundary(boundary); err != nil {
		return nil, err
	}
	return child, nil
}

func writePart(w *multipart.Writer, contentType, encoding string, body []byte, extra textproto.MIMEHeader) error {
	hdr := textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {encoding},
	}
	for k, v := range extra {
		hdr[k] = v
	}
	part, err := w.CreatePart(hdr)
	if err != nil {
		return err
	}
	switch encoding {
	case "base64":
		return writeBase64(part, body)
	default:
		qp := quotedprintable.NewWriter(part)
		if _, err := qp.Write(body); err != nil {
			return err
		}
		return qp.Close()
	}
}

// writeBase64 wraps at 76 columns as RFC 2045 requires.
func writeBase64(w io.Writer, body []byte) error {
	encoded := base64.StdEncoding.EncodeToString(body)
	for len(encoded) > 76 {
		if _, err := io.WriteString(w, encoded[:76]+"\r\n"); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err := io.WriteString(w, encoded+"\r\n")
	return err
}
