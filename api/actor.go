package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/warp/sales-payroll/payroll"
)

// Authentication is an outside collaborator: a gateway in front of the
// server sets these headers.
const (
	HeaderActorRole   = "X-Actor-Role"
	HeaderActorEntity = "X-Actor-Entity"
)

type actorKey struct{}

// ActorMiddleware reads the actor headers into the request context.
// Missing or unknown roles give an unlinked non-administrator.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := payroll.Principal{EntityID: strings.TrimSpace(r.Header.Get(HeaderActorEntity))}
		role := strings.TrimSpace(r.Header.Get(HeaderActorRole))
		if strings.EqualFold(role, "admin") {
			p.Admin = true
		} else if parsed, err := payroll.ParseRole(role); err == nil {
			p.Role = parsed
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, p)))
	})
}

func actorFrom(r *http.Request) payroll.Principal {
	p, _ := r.Context().Value(actorKey{}).(payroll.Principal)
	return p
}
