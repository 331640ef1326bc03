package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/slotkeeper/libs/auth"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
)

const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorRole = "X-Actor-Role"
)

var errUnauthenticated = errors.New("unauthenticated")

// ActorResolver identifies the caller. With a JWT secret it requires an HS256 bearer
// token. Without one it reads the actor headers set by the gateway, and only when
// TrustHeaders is set; otherwise every caller is unauthenticated.
type ActorResolver struct {
	JWTSecret    string
	TrustHeaders bool
}

func (a ActorResolver) Resolve(r *http.Request) (model.Actor, error) {
	if a.JWTSecret != "" {
		authz := strings.TrimSpace(r.Header.Get("Authorization"))
		token, ok := strings.CutPrefix(authz, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return model.Actor{}, errUnauthenticated
		}
		claims, err := auth.ParseAndVerifyHS256(strings.TrimSpace(token), a.JWTSecret)
		if err != nil {
			return model.Actor{}, errUnauthenticated
		}
		actor := model.Actor{ID: claims.Subject, Role: model.Role(claims.Role)}
		if !actor.Role.Valid() {
			return model.Actor{}, errUnauthenticated
		}
		return actor, nil
	}
	if !a.TrustHeaders {
		return model.Actor{}, errUnauthenticated
	}

	actor := model.Actor{
		ID:   strings.TrimSpace(r.Header.Get(HeaderActorID)),
		Role: model.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderActorRole)))),
	}
	if actor.ID == "" || !actor.Role.Valid() {
		return model.Actor{}, errUnauthenticated
	}
	return actor, nil
}
