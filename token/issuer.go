package token

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authclient/permission"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// IssuerConfig configures an [Issuer].
type IssuerConfig struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	Issuer        string
	Audience      string
	KeyID         string
	Now           func() time.Time
}

// Issuer mints access tokens in the layout the [Codec] decodes. The back-office user service
// owns issuance in production; Issuer backs the in-process dev server and tests.
type Issuer struct {
	config  IssuerConfig
	signKey interface{}
	now     func() time.Time
}

// NewIssuer validates cfg and returns a ready [Issuer].
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if !cfg.SigningMethod.valid() {
		return nil, errors.New("unsupported signing method")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	iss := &Issuer{config: cfg, now: cfg.Now}
	if iss.now == nil {
		iss.now = time.Now
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
		iss.signKey = append([]byte(nil), cfg.PrivateKey...)
	case MethodEd25519:
		key, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		iss.signKey = key
	}
	return iss, nil
}

// Issue signs an access token for subject that expires ttl from now. A non-positive ttl
// produces an already-expired token.
func (i *Issuer) Issue(subject, username string, role permission.Role, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", ErrMissingSubject
	}
	now := i.now()
	claims := wireClaims{
		Username: username,
		Role:     string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    i.config.Issuer,
			ID:        uuid.NewString(),
		},
	}
	if i.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{i.config.Audience}
	}

	tok := jwt.NewWithClaims(i.config.SigningMethod.jwtMethod(), claims)
	if i.config.KeyID != "" {
		tok.Header["kid"] = i.config.KeyID
	}
	return tok.SignedString(i.signKey)
}
