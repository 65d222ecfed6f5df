// Package secretary provides methods for bearer token handling.
package secretary

import (
	"time"

	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelclaims"
)

// Secretary defines a set of methods for types implementing Secretary.
type Secretary interface {
	ValidateToken(accessToken string) (modelclaims.Actor, error)
	NewToken(actor modelclaims.Actor, ttl time.Duration) (string, error)
}
