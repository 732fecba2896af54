package http

import (
	"net/http"
	"testing"
)

func TestPasswordHandler_ResetFlow(t *testing.T) {
	env := newAPIEnv(t, true, "")
	env.register(t, "reader")
	env.verify(t, "reader")

	if rec := env.do(t, http.MethodPost, "/auth/forgot-password", map[string]string{"email": "ghost@example.com"}, ""); rec.Code != http.StatusOK {
		t.Fatalf("unknown email must look like success, got %d", rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/auth/forgot-password", map[string]string{"email": "reader@example.com"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	token := env.sender.resetToken("reader@example.com")
	if token == "" {
		t.Fatalf("expected reset email")
	}

	if rec := env.do(t, http.MethodGet, "/auth/reset-password?token="+token, nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("expected valid token, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/auth/reset-password?token=nope", nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid token, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/auth/reset-password", map[string]string{"token": token, "newPassword": "brand-new"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on reset, got %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "reader", "password": "brand-new"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected login with new password, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/auth/reset-password", map[string]string{"token": token, "newPassword": "again-new"}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("reset token must be single use, got %d", rec.Code)
	}
}
