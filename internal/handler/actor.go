package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/riteshkumar/bank-ledger/internal/models"
)

// Identity headers set by the authenticating gateway in front of the service.
const (
	HeaderActorUserID   = "X-Actor-User-ID"
	HeaderActorClientID = "X-Actor-Client-ID"
	HeaderActorAdmin    = "X-Actor-Admin"
)

type actorKey struct{}

// ActorMiddleware attaches the caller identity carried in the request headers
// to the request context.
func ActorMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			isAdmin, _ := strconv.ParseBool(r.Header.Get(HeaderActorAdmin))
			actor := models.Actor{
				UserID:   strings.TrimSpace(r.Header.Get(HeaderActorUserID)),
				ClientID: strings.TrimSpace(r.Header.Get(HeaderActorClientID)),
				IsAdmin:  isAdmin,
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
		})
	}
}

// ActorFromContext returns the caller identity, or the zero Actor when none
// was attached.
func ActorFromContext(ctx context.Context) models.Actor {
	actor, _ := ctx.Value(actorKey{}).(models.Actor)
	return actor
}
