package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoBearer     = errors.New("no bearer token")
	ErrInvalidToken = errors.New("invalid or expired JWT")
)

// Identity est le demandeur authentifié: sub et rôle du token.
type Identity struct {
	Subject string
	Role    string
}

func GenerateJWT(secret string, subject string, role string, expirationMinutes int) (string, error) {
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  time.Now().Add(time.Duration(expirationMinutes) * time.Minute).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ExtractIdentity lit le header Authorization. Les anciens tokens sans "role"
// mais avec "admin": true donnent le rôle admin.
func ExtractIdentity(r *http.Request, secret string) (Identity, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
		return Identity{}, ErrNoBearer
	}
	tokenString := strings.TrimPrefix(auth, "Bearer ")
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("invalid JWT claims")
	}
	var id Identity
	id.Subject, _ = claims["sub"].(string)
	if id.Subject == "" {
		return Identity{}, errors.New("JWT without subject")
	}
	id.Role, _ = claims["role"].(string)
	if id.Role == "" {
		switch v := claims["admin"].(type) {
		case bool:
			if v {
				id.Role = "admin"
			}
		case string:
			if v == "true" || v == "1" {
				id.Role = "admin"
			}
		case float64:
			if v == 1 {
				id.Role = "admin"
			}
		}
	}
	if id.Role == "" {
		id.Role = "user"
	}
	return id, nil
}
