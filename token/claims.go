package token

import (
	"time"

	"github.com/MrEthical07/authclient/permission"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the decoded identity carried by an access token.
type Claims struct {
	Subject   string
	Username  string
	Role      permission.Role
	HasRole   bool
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}

// wireClaims is the JSON payload layout issued by the back-office user service.
type wireClaims struct {
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (w *wireClaims) toClaims() Claims {
	c := Claims{
		Subject:  w.Subject,
		Username: w.Username,
		ID:       w.ID,
	}
	if role, ok := permission.ParseRole(w.Role); ok {
		c.Role = role
		c.HasRole = true
	}
	if w.IssuedAt != nil {
		c.IssuedAt = w.IssuedAt.Time
	}
	if w.ExpiresAt != nil {
		c.ExpiresAt = w.ExpiresAt.Time
	}
	return c
}
