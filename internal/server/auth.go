package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jensholdgaard/clubhub/internal/authz"
	"github.com/jensholdgaard/clubhub/internal/domainerr"
	"github.com/jensholdgaard/clubhub/internal/store"
)

// UserHeader carries the caller's user ID, set by the authenticating
// gateway in front of the service.
const UserHeader = "X-User-ID"

type contextKey string

const actorContextKey contextKey = "actor"

var ErrNoCaller = domainerr.Forbidden("no_caller", "missing "+UserHeader+" header")

// authenticate resolves the caller into an actor. An unknown user is
// refused rather than reported as a missing resource.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserHeader))
		if userID == "" {
			s.writeError(w, r, ErrNoCaller)
			return
		}
		actor, err := s.deps.Actors.ResolveActor(r.Context(), userID)
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, r, domainerr.Forbidden("unknown_caller", "unknown user %q", userID))
			return
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), actorContextKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actorFrom returns the actor stored by authenticate.
func actorFrom(ctx context.Context) authz.Actor {
	a, _ := ctx.Value(actorContextKey).(authz.Actor)
	return a
}
