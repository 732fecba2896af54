package domain

import "time"

type SessionEventKind string

const (
	SessionLoggedIn  SessionEventKind = "login"
	SessionRefreshed SessionEventKind = "refresh"
	SessionLoggedOut SessionEventKind = "logout"
	SessionExpired   SessionEventKind = "expired"
	SessionRevoked   SessionEventKind = "revoked"
)

// SessionEvent notifica a la UI un cambio de estado de la sesion.
type SessionEvent struct {
	UserID string           `json:"userId"`
	Kind   SessionEventKind `json:"kind"`
	At     time.Time        `json:"at"`
}
