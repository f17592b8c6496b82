package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenDuration is the default token lifetime
const AccessTokenDuration = 8 * time.Hour

// ErrInvalidToken is returned for any token that fails verification
var ErrInvalidToken = errors.New("invalid token")

// JWTManager signs and verifies identity tokens. The identity
// provider issues them; this service only needs the role and
// department claims to authorize workflow actions.
type JWTManager struct {
	secretKey []byte
	issuer    string
	ttl       time.Duration
}

// JWTClaims represents the claims in an identity token
type JWTClaims struct {
	UserID     uuid.UUID `json:"user_id"`
	Name       string    `json:"name,omitempty"`
	Role       string    `json:"role"`
	Department *string   `json:"department,omitempty"`
	jwt.RegisteredClaims
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secretKey, issuer string) *JWTManager {
	return &JWTManager{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		ttl:       AccessTokenDuration,
	}
}

// WithTTL returns a copy of the manager issuing tokens with ttl
func (m *JWTManager) WithTTL(ttl time.Duration) *JWTManager {
	cp := *m
	cp.ttl = ttl
	return &cp
}

// GenerateToken issues a token for the given identity
func (m *JWTManager) GenerateToken(userID uuid.UUID, name, role string, department *string) (string, error) {
	now := time.Now()

	claims := &JWTClaims{
		UserID:     userID,
		Name:       name,
		Role:       role,
		Department: department,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// ValidateToken verifies the signature, issuer and expiry and returns the claims
func (m *JWTManager) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == uuid.Nil || claims.Role == "" {
		return nil, fmt.Errorf("%w: missing user or role", ErrInvalidToken)
	}

	return claims, nil
}
