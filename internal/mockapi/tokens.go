package mockapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errTokenRevoked = errors.New("token revoked")

type accessClaims struct {
	Email string `json:"email"`
	// Gen é a geração de emissão; RevokeAccessTokens avança a geração atual.
	Gen int64 `json:"gen"`
	jwt.RegisteredClaims
}

type tokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func (ti tokenIssuer) issue(userID, email string, gen int64, now time.Time) (string, time.Time, error) {
	exp := now.Add(ti.ttl)
	claims := accessClaims{
		Email: email,
		Gen:   gen,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return s, exp, nil
}

func (ti tokenIssuer) verify(raw string, gen int64) (*accessClaims, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return ti.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(ti.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.Gen != gen {
		return nil, errTokenRevoked
	}
	return &claims, nil
}
