package identity

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrAuthentication indicates the identity assertion is missing, malformed,
// expired, or fails signature verification.
var ErrAuthentication = errors.New("authentication failed")

// Claims is the shape of the external identity system's assertion.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks bearer identity assertions against the external identity
// system's public key material. Verification is pure: no side effects, no
// network calls.
type Verifier struct {
	publicKey  *rsa.PublicKey
	hmacSecret []byte
	issuer     string
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier) error

// WithRSAPublicKeyPEM installs the identity system's RS256 public key.
func WithRSAPublicKeyPEM(pemData string) VerifierOption {
	return func(v *Verifier) error {
		pemData = strings.TrimSpace(pemData)
		if pemData == "" {
			return errors.New("identity: public key PEM is empty")
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemData))
		if err != nil {
			return fmt.Errorf("identity: parse public key: %w", err)
		}
		v.publicKey = key
		return nil
	}
}

// WithHMACSecret enables HS256 verification with a shared secret. Intended
// for local development and tests, where no external identity system exists.
func WithHMACSecret(secret string) VerifierOption {
	return func(v *Verifier) error {
		secret = strings.TrimSpace(secret)
		if secret == "" {
			return errors.New("identity: hmac secret is empty")
		}
		v.hmacSecret = []byte(secret)
		return nil
	}
}

// WithIssuer pins the expected issuer claim.
func WithIssuer(issuer string) VerifierOption {
	return func(v *Verifier) error {
		v.issuer = strings.TrimSpace(issuer)
		return nil
	}
}

// NewVerifier builds a Verifier. At least one of the key options is required.
func NewVerifier(opts ...VerifierOption) (*Verifier, error) {
	v := &Verifier{}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}
	if v.publicKey == nil && v.hmacSecret == nil {
		return nil, errors.New("identity: no verification key configured")
	}
	return v, nil
}

// Verify validates the bearer assertion and extracts the opaque subject id
// and role claims.
func (v *Verifier) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, fmt.Errorf("%w: assertion missing", ErrAuthentication)
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		switch t.Method {
		case jwt.SigningMethodRS256:
			if v.publicKey == nil {
				return nil, errors.New("rs256 not configured")
			}
			return v.publicKey, nil
		case jwt.SigningMethodHS256:
			if v.hmacSecret == nil {
				return nil, errors.New("hs256 not configured")
			}
			return v.hmacSecret, nil
		default:
			return nil, fmt.Errorf("unexpected signing method %v", t.Method.Alg())
		}
	}, jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %s", ErrAuthentication, classifyJWTError(err))
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: assertion malformed", ErrAuthentication)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, fmt.Errorf("%w: subject missing", ErrAuthentication)
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return Identity{}, fmt.Errorf("%w: unexpected issuer", ErrAuthentication)
	}

	return Identity{
		Subject: claims.Subject,
		Roles:   ParseRoles(claims.Roles),
	}, nil
}

func classifyJWTError(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "assertion expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature invalid"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return "assertion not yet valid"
	default:
		return "assertion malformed"
	}
}

// Mint signs an HS256 assertion. Only the dev tooling and tests call this;
// production assertions come from the external identity system.
func Mint(secret, subject string, roles []string, ttl time.Duration) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("identity: subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("identity: ttl must be greater than zero")
	}
	now := time.Now().UTC()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("identity: sign assertion: %w", err)
	}
	return signed, nil
}
