package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier turns a bearer credential into a verified identity.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type TokenIssuer interface {
	Issue(userID string) (string, error)
}

type TokenService interface {
	TokenVerifier
	TokenIssuer
	TTL() time.Duration
}

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type JWTTokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTTokenService(secret string, ttl time.Duration) *JWTTokenService {
	return &JWTTokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock replaces the time source used for issuing and validating tokens.
func (s *JWTTokenService) WithClock(now func() time.Time) *JWTTokenService {
	s.now = now
	return s
}

func (s *JWTTokenService) TTL() time.Duration {
	return s.ttl
}

func (s *JWTTokenService) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("cannot issue a token without a user id")
	}

	now := s.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks signature and algorithm, then expiry, then the user_id claim.
// Every failure is reported as ErrUnauthenticated.
func (s *JWTTokenService) Verify(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", ErrUnauthenticated
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(token *jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return "", ErrUnauthenticated
	}

	if claims.UserID == "" {
		return "", ErrUnauthenticated
	}

	return claims.UserID, nil
}
