package domain

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User es el registro de credenciales; solo lo mutan los servicios de sesion y verificacion.
type User struct {
	ID                       string     `json:"id"`
	Username                 string     `json:"username"`
	Email                    string     `json:"email"`
	Nickname                 string     `json:"nickname"`
	Role                     Role       `json:"role"`
	PasswordHash             string     `json:"-"`
	RefreshToken             *string    `json:"-"`
	SessionStartedAt         *time.Time `json:"-"`
	LastActivityAt           *time.Time `json:"lastActivityAt,omitempty"`
	EmailVerified            bool       `json:"emailVerified"`
	EmailVerificationToken   *string    `json:"-"`
	EmailVerificationExpires *time.Time `json:"emailVerificationExpires,omitempty"`
	PasswordResetToken       *string    `json:"-"`
	PasswordResetExpires     *time.Time `json:"-"`
	CreatedAt                time.Time  `json:"createdAt"`
	UpdatedAt                time.Time  `json:"updatedAt"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// VerificationExpired indica que la cuenta no verificada ya paso su ventana y debe borrarse.
func (u User) VerificationExpired(now time.Time) bool {
	if u.EmailVerified || u.EmailVerificationExpires == nil {
		return false
	}
	return u.EmailVerificationExpires.Before(now)
}

// UserFilter es el predicado compartido por CountWhere y DeleteWhere.
type UserFilter struct {
	Verified                  *bool
	VerificationExpiresBefore *time.Time
}

func (f UserFilter) Matches(u User) bool {
	if f.Verified != nil && u.EmailVerified != *f.Verified {
		return false
	}
	if f.VerificationExpiresBefore != nil {
		if u.EmailVerificationExpires == nil || !u.EmailVerificationExpires.Before(*f.VerificationExpiresBefore) {
			return false
		}
	}
	return true
}
