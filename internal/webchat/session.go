package webchat

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for expired, malformed or tampered tokens.
var ErrInvalidToken = errors.New("webchat: invalid session token")

// sessionClaims binds a widget session to one merchant.
type sessionClaims struct {
	MerchantID string `json:"mid"`
	SessionID  string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies signed widget session tokens. The widget
// holds the token in memory and presents it on every message, so a stolen
// page script cannot talk to another merchant's bot.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for the given merchant and session.
func (t *TokenIssuer) Issue(merchantID, sessionID string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		MerchantID: merchantID,
		SessionID:  sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("webchat: sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns the merchant and session it was issued
// for.
func (t *TokenIssuer) Verify(tokenString string) (merchantID, sessionID string, err error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return "", "", ErrInvalidToken
	}
	if claims.MerchantID == "" || claims.SessionID == "" {
		return "", "", ErrInvalidToken
	}
	return claims.MerchantID, claims.SessionID, nil
}

// generateSessionID creates a random session identifier.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// originAllowed reports whether the page embedding the widget may open a
// session. An empty whitelist allows any origin (merchant hasn't locked the
// widget down yet).
func originAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	if origin == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Hostname()
	for _, domain := range allowed {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain == "" {
			continue
		}
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
