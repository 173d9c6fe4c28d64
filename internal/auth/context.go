// Package auth carries the calling user through request contexts. Identity
// is asserted by the gateway in front of the API; this package only reads it.
package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const actorKey contextKey = "actor"

// Group names checked by the API.
const (
	GroupUploader = "uploader"
	GroupEditor   = "editor"
)

// Header names set by the gateway.
const (
	HeaderUserID = "X-User-Id"
	HeaderGroups = "X-User-Groups"
)

// Actor is the authenticated caller.
type Actor struct {
	UserID string
	Groups []string
}

// HasGroup reports whether the actor belongs to group.
func (a Actor) HasGroup(group string) bool {
	for _, g := range a.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// ContextWithActor returns a new context that carries the actor.
func ContextWithActor(ctx context.Context, a Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromContext retrieves the actor, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	a, ok := ctx.Value(actorKey).(Actor)
	if !ok || a.UserID == "" {
		return Actor{}, false
	}
	return a, true
}

// ActorFromRequest parses the identity headers. Groups are comma separated.
func ActorFromRequest(r *http.Request) (Actor, bool) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		return Actor{}, false
	}
	var groups []string
	for _, g := range strings.Split(r.Header.Get(HeaderGroups), ",") {
		if g = strings.ToLower(strings.TrimSpace(g)); g != "" {
			groups = append(groups, g)
		}
	}
	return Actor{UserID: userID, Groups: groups}, true
}
