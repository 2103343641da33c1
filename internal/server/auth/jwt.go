// Package auth implements the credential primitives of the server: a codec
// for signed session tokens and a one-way password verifier.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"filevault/internal/common"
)

// TokenKind distinguishes short-lived access tokens from long-lived
// refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Claims is the fixed claim set carried by every session token:
// the registered sub/jti/iat/exp claims plus the token kind. Tokens with
// missing or unknown fields are rejected on decode rather than treated as
// optional reads.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenKind `json:"type"`
}

// UserID parses the subject claim as a numeric user id.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, common.ErrInvalidToken
	}
	return id, nil
}

// Codec issues and verifies HS256-signed session tokens. It is storage-free:
// revocation is checked by the session service, not here, so the codec stays
// unit-testable in isolation.
type Codec struct {
	secret []byte
}

// NewCodec constructs a Codec. An empty secret is a configuration error:
// the process must not serve requests without one.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token codec: empty signing secret")
	}
	return &Codec{secret: secret}, nil
}

// Issue creates a signed token for userID of the given kind, valid for ttl.
// It returns the compact token string and its jti (the revocation key).
func (c *Codec) Issue(userID int64, kind TokenKind, ttl time.Duration) (string, string, error) {
	now := time.Now()
	jti := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: kind,
	})

	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", "", err
	}

	return tokenString, jti, nil
}

// Verify parses and validates a token string. It returns ErrTokenExpired for
// tokens past their expiry and ErrInvalidToken for everything else that does
// not verify: bad signature, malformed structure, wrong algorithm, or a claim
// set missing sub, jti, iat, exp, or a known type.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	if claims.Subject == "" || claims.ID == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, common.ErrInvalidToken
	}
	if claims.TokenType != TokenKindAccess && claims.TokenType != TokenKindRefresh {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
