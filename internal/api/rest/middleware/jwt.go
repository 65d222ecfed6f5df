// Package middleware provides various middleware functionality.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelclaims"
	"github.com/danilovkiri/dk-go-mmsledger/internal/service/secretary/v1"
	"github.com/rs/zerolog"
)

type actorKey struct{}

// TokenHandler sets object structure.
type TokenHandler struct {
	sec secretary.Secretary
	log *zerolog.Logger
}

// NewTokenHandler initializes a new token handler.
func NewTokenHandler(sec secretary.Secretary, log *zerolog.Logger) (*TokenHandler, error) {
	if sec == nil {
		return nil, errors.New("nil secretary object was found")
	}
	if log == nil {
		return nil, errors.New("nil logger was found")
	}
	return &TokenHandler{sec: sec, log: log}, nil
}

// TokenHandle validates the bearer token and stores the caller identity in the request context.
func (c *TokenHandler) TokenHandle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get("Authorization")
		if !strings.HasPrefix(tokenString, "Bearer ") {
			http.Error(w, "Token authorization required", http.StatusUnauthorized)
			return
		}
		actor, err := c.sec.ValidateToken(strings.TrimPrefix(tokenString, "Bearer "))
		if err != nil {
			c.log.Warn().Err(err).Str("path", r.URL.Path).Msg("token rejected")
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor modelclaims.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the identity stored by TokenHandle.
func ActorFromContext(ctx context.Context) (modelclaims.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(modelclaims.Actor)
	return actor, ok
}
