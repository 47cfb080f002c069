package auth

import (
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/medtrack/claims-app/conf"
	"github.com/medtrack/claims-app/claims/models"
)

// CommonClaims are the token claims issued at login.
type CommonClaims struct {
	UserID      int64  `json:"uid"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	jwt.StandardClaims
}

func signingKey() ([]byte, error) {
	secret := conf.GetEnv("CLAIMS_JWT_SECRET")
	if secret == "" {
		return nil, errors.New("CLAIMS_JWT_SECRET must be set")
	}
	return []byte(secret), nil
}

// GenerateToken issues a signed token for an authenticated user.
func GenerateToken(user *models.User) (string, error) {
	key, err := signingKey()
	if err != nil {
		return "", err
	}

	ttl := time.Duration(conf.GetEnvInt("CLAIMS_TOKEN_TTL_MIN", 480)) * time.Minute
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, CommonClaims{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		StandardClaims: jwt.StandardClaims{
			Issuer:    "claims-app",
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	})

	signed, err := token.SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, "could not sign token")
	}

	return signed, nil
}

// DecodeToken parses and verifies a token string.
func DecodeToken(tokenString string) (*CommonClaims, error) {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return signingKey()
	}

	token, err := jwt.ParseWithClaims(tokenString, &CommonClaims{}, keyFunc)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*CommonClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
