package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	// ErrMalformed reports a token that cannot be decoded into claims.
	ErrMalformed = errors.New("malformed token")
	// ErrMissingSubject reports a token without a "sub" claim.
	ErrMissingSubject = errors.New("token missing subject")
)

// Config controls how the [Codec] decodes and judges tokens.
type Config struct {
	// SigningMethod and VerifyKey enable signature verification. VerifyKey is the HS256
	// secret or the Ed25519 public key (raw or PEM). Leave both empty to decode unverified.
	SigningMethod SigningMethod
	VerifyKey     []byte

	Issuer   string
	Audience string

	// ExpirySkew makes tokens count as expired this long before their exp instant.
	ExpirySkew time.Duration

	Now    func() time.Time
	Logger *zap.Logger
}

// Codec decodes opaque bearer tokens into [Claims].
type Codec struct {
	config    Config
	verifyKey interface{}
	parser    *jwt.Parser
	now       func() time.Time
	logger    *zap.Logger
}

// NewCodec validates cfg and returns a ready [Codec].
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.ExpirySkew < 0 || cfg.ExpirySkew > 10*time.Minute {
		return nil, errors.New("invalid expiry skew configuration")
	}

	c := &Codec{
		config: cfg,
		now:    cfg.Now,
		logger: cfg.Logger,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	if len(cfg.VerifyKey) > 0 || cfg.SigningMethod != "" {
		if !cfg.SigningMethod.valid() {
			return nil, errors.New("unsupported signing method")
		}
		if len(cfg.VerifyKey) == 0 {
			return nil, errors.New("signature verification requires a verify key")
		}
		switch cfg.SigningMethod {
		case MethodHS256:
			c.verifyKey = append([]byte(nil), cfg.VerifyKey...)
		case MethodEd25519:
			pub, err := parseEdPublicKey(cfg.VerifyKey)
			if err != nil {
				return nil, err
			}
			c.verifyKey = pub
		}
		c.parser = jwt.NewParser(
			jwt.WithValidMethods([]string{cfg.SigningMethod.jwtMethod().Alg()}),
			jwt.WithoutClaimsValidation(),
		)
	} else {
		c.parser = jwt.NewParser(jwt.WithoutClaimsValidation())
	}

	return c, nil
}

// Decode parses tok into claims. It never fails loudly: malformed input is logged and
// reported as absent claims. Expiry is not judged here; see [Codec.IsExpired].
func (c *Codec) Decode(tok string) (Claims, bool) {
	if c == nil || strings.TrimSpace(tok) == "" {
		return Claims{}, false
	}
	wire, err := c.parse(tok)
	if err != nil {
		c.logger.Warn("access token decode failed", zap.Error(err))
		return Claims{}, false
	}
	return wire.toClaims(), true
}

// IsExpired reports whether tok must be treated as expired at the current instant.
// A token without a readable exp claim is expired.
func (c *Codec) IsExpired(tok string) bool {
	if c == nil || strings.TrimSpace(tok) == "" {
		return true
	}
	wire, err := c.parse(tok)
	if err != nil || wire.ExpiresAt == nil {
		return true
	}
	return c.expiredAt(wire.ExpiresAt.Time, c.now())
}

// ExpiresAt returns the exp instant of tok, or false when it cannot be read.
func (c *Codec) ExpiresAt(tok string) (time.Time, bool) {
	if c == nil {
		return time.Time{}, false
	}
	wire, err := c.parse(tok)
	if err != nil || wire.ExpiresAt == nil {
		return time.Time{}, false
	}
	return wire.ExpiresAt.Time, true
}

func (c *Codec) expiredAt(exp, now time.Time) bool {
	return !now.Add(c.config.ExpirySkew).Before(exp)
}

func (c *Codec) parse(tok string) (*wireClaims, error) {
	wire := &wireClaims{}

	if c.verifyKey == nil {
		if _, _, err := c.parser.ParseUnverified(tok, wire); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	} else {
		parsed, err := c.parser.ParseWithClaims(tok, wire, func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != c.config.SigningMethod.jwtMethod().Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
			}
			return c.verifyKey, nil
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if !parsed.Valid {
			return nil, ErrMalformed
		}
	}

	if strings.TrimSpace(wire.Subject) == "" {
		return nil, ErrMissingSubject
	}
	if c.config.Issuer != "" && wire.Issuer != c.config.Issuer {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrMalformed)
	}
	if c.config.Audience != "" && !containsAudience(wire.Audience, c.config.Audience) {
		return nil, fmt.Errorf("%w: unexpected audience", ErrMalformed)
	}
	return wire, nil
}

func containsAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
