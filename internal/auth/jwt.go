package auth

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	// Load env file into environments.
	_ "github.com/joho/godotenv/autoload"
)

// JwtIssuer is the issuer claim of every access token this service signs
const JwtIssuer = "AOTF"

const accessTokenTTL = time.Hour

var (
	secretMu  sync.RWMutex
	secretKey = []byte(os.Getenv("SECRET_KEY"))
)

// SetSecretKey replaces the HMAC key used to sign and verify tokens.
// The server calls it once at startup with the configured SECRET_KEY.
func SetSecretKey(key string) {
	secretMu.Lock()
	secretKey = []byte(key)
	secretMu.Unlock()
}

func currentKey() []byte {
	secretMu.RLock()
	defer secretMu.RUnlock()
	return secretKey
}

// GenerateStandardToken signs an access token whose subject is the user id.
func GenerateStandardToken(userID uuid.UUID) (string, error) {
	signed, _, err := GenerateTokenWithDuration(userID, accessTokenTTL, JwtIssuer)
	return signed, err
}

// GenerateTokenWithDuration signs a token valid for ttl (negative values yield an
// already expired token) and returns it with its jti.
func GenerateTokenWithDuration(userID uuid.UUID, ttl time.Duration, issuer string) (string, string, error) {
	now := time.Now()
	jti := uuid.NewString()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   userID.String(),
		ID:        jti,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	})

	signed, err := token.SignedString(currentKey())
	if err != nil {
		return "", "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, jti, nil
}

// ValidatedToken parses the token into jwt.RegisteredClaims and rejects
// foreign signing methods and issuers.
func ValidatedToken(encodeToken string) (*jwt.Token, error) {
	token, err := jwt.ParseWithClaims(encodeToken, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, isvalid := token.Method.(*jwt.SigningMethodHMAC); !isvalid {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return currentKey(), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !claims.VerifyIssuer(JwtIssuer, true) {
		return nil, jwt.ErrTokenInvalidIssuer
	}
	return token, nil
}
