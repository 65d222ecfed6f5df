// Package secretary validates the HMAC-signed tokens minted by the auth service.
package secretary

import (
	"errors"
	"fmt"
	"time"

	"github.com/danilovkiri/dk-go-mmsledger/internal/config"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelclaims"
	secretaryService "github.com/danilovkiri/dk-go-mmsledger/internal/service/secretary/v1"
	"github.com/golang-jwt/jwt"
)

// Secretary defines object structure and its attributes.
type Secretary struct {
	key []byte
}

var _ secretaryService.Secretary = (*Secretary)(nil)

// NewSecretaryService initializes a secretary service sharing the auth service key.
func NewSecretaryService(c *config.SecretConfig) (*Secretary, error) {
	if c == nil || c.SecretKey == "" {
		return nil, errors.New("secret key is not configured")
	}
	return &Secretary{key: []byte(c.SecretKey)}, nil
}

// ValidateToken checks the signature and expiry and returns the caller identity.
func (s *Secretary) ValidateToken(accessToken string) (modelclaims.Actor, error) {
	token, err := jwt.ParseWithClaims(accessToken, &modelclaims.LedgerClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil {
		return modelclaims.Actor{}, err
	}
	claims, ok := token.Claims.(*modelclaims.LedgerClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return modelclaims.Actor{}, errors.New("invalid access token")
	}
	return modelclaims.Actor{UserID: claims.UserID, IsStaff: claims.IsStaff, IsTrader: claims.IsTrader}, nil
}

// NewToken signs a token for actor. The auth service mints production tokens;
// this serves tooling and tests.
func (s *Secretary) NewToken(actor modelclaims.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &modelclaims.LedgerClaims{
		UserID:   actor.UserID,
		IsStaff:  actor.IsStaff,
		IsTrader: actor.IsTrader,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	})
	return token.SignedString(s.key)
}
