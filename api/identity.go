package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/warp/benefit-engine/benefit"
)

// Identity headers are set by the gateway in front of this service after it
// authenticates the caller.
const (
	HeaderActorID    = "X-Actor-ID"
	HeaderActorRoles = "X-Actor-Roles"
)

type actorKey struct{}

// Identity reads the caller from the identity headers. Requests without an
// actor ID are refused with 401.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderActorID))
		if id == "" {
			writeError(w, http.StatusUnauthorized, "missing "+HeaderActorID+" header", nil)
			return
		}
		actor := benefit.Actor{ID: id}
		for _, role := range strings.Split(r.Header.Get(HeaderActorRoles), ",") {
			if role = strings.TrimSpace(role); role != "" {
				actor.Roles = append(actor.Roles, role)
			}
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

func WithActor(ctx context.Context, actor benefit.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the caller stored by Identity.
func ActorFrom(ctx context.Context) (benefit.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(benefit.Actor)
	return actor, ok
}
