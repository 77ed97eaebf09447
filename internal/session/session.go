// Package session keeps the visitor session in a sealed cookie.
//
// The session is encoded as HS256 JWT claims, then sealed with
// XChaCha20-Poly1305 so the cookie is both tamper-proof and opaque. Both keys
// are derived from one secret with HKDF.
package session

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ryshoes/storefront/config"
	"github.com/ryshoes/storefront/types"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// MinSecretLength is the shortest secret NewManager accepts.
const MinSecretLength = 32

var (
	ErrShortSecret = fmt.Errorf("session secret must be at least %d characters", MinSecretLength)
	ErrInvalid     = errors.New("invalid session")
)

// Data is the per-visitor session payload.
type Data struct {
	IsLoggedIn bool       `json:"isLoggedIn"`
	ID         int        `json:"id,omitempty"`
	Username   string     `json:"username,omitempty"`
	Role       types.Role `json:"role,omitempty"`
}

// ForUser builds a logged-in session for user.
func ForUser(user types.User) Data {
	return Data{
		IsLoggedIn: true,
		ID:         user.ID,
		Username:   user.Username,
		Role:       user.Role,
	}
}

type claims struct {
	Data
	jwt.RegisteredClaims
}

// Manager encodes, decodes and writes session cookies.
type Manager struct {
	cookieName string
	ttl        time.Duration
	secure     bool
	aead       cipher.AEAD
	signKey    []byte
	now        func() time.Time
}

// NewManager derives the sealing and signing keys from cfg.Secret.
func NewManager(cfg config.SessionConfig) (*Manager, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrShortSecret
	}

	encKey := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(cfg.Secret), nil, []byte("storefront session seal")), encKey); err != nil {
		return nil, err
	}
	signKey := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(cfg.Secret), nil, []byte("storefront session sign")), signKey); err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(encKey)
	if err != nil {
		return nil, err
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	name := cfg.CookieName
	if name == "" {
		name = "ryshoes-session"
	}

	return &Manager{
		cookieName: name,
		ttl:        ttl,
		secure:     cfg.Secure,
		aead:       aead,
		signKey:    signKey,
		now:        time.Now,
	}, nil
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// Encode seals data into a cookie value.
func (m *Manager) Encode(data Data) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Data: data,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(data.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	})
	signed, err := token.SignedString(m.signKey)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, m.aead.NonceSize(), m.aead.NonceSize()+len(signed)+m.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := m.aead.Seal(nonce, nonce, []byte(signed), []byte(m.cookieName))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode opens a cookie value produced by Encode.
func (m *Manager) Decode(value string) (Data, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil || len(sealed) < m.aead.NonceSize() {
		return Data{}, ErrInvalid
	}
	nonce, ciphertext := sealed[:m.aead.NonceSize()], sealed[m.aead.NonceSize():]
	signed, err := m.aead.Open(nil, nonce, ciphertext, []byte(m.cookieName))
	if err != nil {
		return Data{}, ErrInvalid
	}

	var parsed claims
	token, err := jwt.ParseWithClaims(string(signed), &parsed, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.signKey, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return Data{}, ErrInvalid
	}
	return parsed.Data, nil
}

// Load returns the session carried by r. A missing, expired or tampered
// cookie yields the logged-out session.
func (m *Manager) Load(r *http.Request) Data {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return Data{}
	}
	data, err := m.Decode(cookie.Value)
	if err != nil {
		return Data{}
	}
	return data
}

// Save writes data as the session cookie.
func (m *Manager) Save(w http.ResponseWriter, data Data) error {
	value, err := m.Encode(data)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		Expires:  m.now().Add(m.ttl),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Destroy expires the session cookie.
func (m *Manager) Destroy(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type contextKey struct{}

// Middleware loads the session once per request into the context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := NewContext(r.Context(), m.Load(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// NewContext returns ctx carrying data.
func NewContext(ctx context.Context, data Data) context.Context {
	return context.WithValue(ctx, contextKey{}, data)
}

// FromContext returns the session stored by Middleware or the logged-out
// session.
func FromContext(ctx context.Context) Data {
	data, _ := ctx.Value(contextKey{}).(Data)
	return data
}
