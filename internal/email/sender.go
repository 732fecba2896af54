package email

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// Sender define la interfaz para envio de correos transaccionales.
type Sender interface {
	SendVerificationEmail(ctx context.Context, toEmail, token, nickname string) error
	SendPasswordResetEmail(ctx context.Context, toEmail, token, nickname string) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendVerificationEmail(_ context.Context, _, _, _ string) error {
	return s.err()
}

func (s *disabledSender) SendPasswordResetEmail(_ context.Context, _, _, _ string) error {
	return s.err()
}

func (s *disabledSender) err() error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}

// VerificationLink arma el enlace que el usuario abre para verificar su correo.
func VerificationLink(baseURL, token string) string {
	return buildLink(baseURL, "/verify-email", token)
}

// PasswordResetLink arma el enlace del formulario de restablecimiento.
func PasswordResetLink(baseURL, token string) string {
	return buildLink(baseURL, "/reset-password", token)
}

func buildLink(baseURL, path, token string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return base + path + "?token=" + url.QueryEscape(token)
}
