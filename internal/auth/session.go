// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the cookie browsers carry the token in.
const CookieName = "auth_token"

// ErrNoToken is returned when a request carries neither the cookie nor a bearer header.
var ErrNoToken = errors.New("no auth token")

// privateKey and publicKey are used for signing and verifying JWT tokens.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// tokenTTL is how long issued tokens live. Zero means no exp claim.
	tokenTTL time.Duration
)

// Claims identifies the caller. TeamID is uuid.Nil for spectators.
type Claims struct {
	UserID string
	TeamID uuid.UUID
	Admin  bool
}

type tokenClaims struct {
	TeamID string `json:"team,omitempty"`
	Admin  bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Init generates a fresh ed25519 key pair at runtime.
func Init(ttl time.Duration) error {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	tokenTTL = ttl
	return nil
}

// InitFromPath reads ed25519 private/public keys from file.
func InitFromPath(privatePath, publicPath string, ttl time.Duration) error {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return fmt.Errorf("unexpected ed25519 key sizes %d/%d", len(privateKeyData), len(publicKeyData))
	}

	privateKey = ed25519.PrivateKey(privateKeyData)
	publicKey = ed25519.PublicKey(publicKeyData)
	tokenTTL = ttl
	return nil
}

// CreateJWT signs a token for userID acting for teamID.
func CreateJWT(userID string, teamID uuid.UUID, admin bool) (string, error) {
	claims := tokenClaims{
		Admin:            admin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	}
	if teamID != uuid.Nil {
		claims.TeamID = teamID.String()
	}
	if tokenTTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(tokenTTL))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// AuthenticateJWT verifies a JWT string and returns its claims.
func AuthenticateJWT(tokenString string) (Claims, error) {
	var tc tokenClaims
	t, err := jwt.ParseWithClaims(tokenString, &tc, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return Claims{}, fmt.Errorf("invalid token")
	}
	if tc.Subject == "" {
		return Claims{}, fmt.Errorf("missing sub in jwt")
	}

	c := Claims{UserID: tc.Subject, Admin: tc.Admin}
	if tc.TeamID != "" {
		c.TeamID, err = uuid.Parse(tc.TeamID)
		if err != nil {
			return Claims{}, fmt.Errorf("invalid team in jwt: %w", err)
		}
	}
	return c, nil
}

// TokenFromRequest reads the auth cookie, falling back to an Authorization bearer header.
func TokenFromRequest(r *http.Request) (string, error) {
	if ck, err := r.Cookie(CookieName); err == nil && ck.Value != "" {
		return ck.Value, nil
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); tok != "" {
			return tok, nil
		}
	}
	return "", ErrNoToken
}

// FromRequest authenticates the token carried by r.
func FromRequest(r *http.Request) (Claims, error) {
	tok, err := TokenFromRequest(r)
	if err != nil {
		return Claims{}, err
	}
	return AuthenticateJWT(tok)
}
