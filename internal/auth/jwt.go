package auth

import (
	"errors"
	"fmt"
	"time"

	"lingua-go/internal/apperr"
	"lingua-go/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "lingua-go"

// ErrUnauthenticated is returned for missing, malformed, expired or forged tokens.
var ErrUnauthenticated = apperr.New(apperr.KindUnauthenticated, "unauthorized - invalid or missing session")

// Claims 是 JWT 中的自定义声明，嵌入了 jwt.RegisteredClaims。
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// SessionManager issues and verifies stateless session tokens.
// It keeps no server-side session table.
type SessionManager struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewSessionManager creates a SessionManager from the auth config.
func NewSessionManager(cfg config.AuthConfig) *SessionManager {
	return &SessionManager{
		secret: []byte(cfg.JWTSecretKey),
		expiry: cfg.JWTExpiry,
		now:    time.Now,
	}
}

// Expiry returns the validity period of issued tokens.
func (m *SessionManager) Expiry() time.Duration {
	return m.expiry
}

// Issue 为指定用户生成一个新的 JWT。
func (m *SessionManager) Issue(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("issue token: empty user id")
	}
	now := m.now()
	expiresAt := now.Add(m.expiry)
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// Verify 验证给定的 JWT 字符串的有效性，返回其中的用户 ID。
func (m *SessionManager) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrUnauthenticated
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", apperr.Wrap(ErrUnauthenticated, err)
	}
	if !token.Valid || claims.UserID == "" || claims.UserID != claims.Subject {
		return "", ErrUnauthenticated
	}
	return claims.UserID, nil
}
