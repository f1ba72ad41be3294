package handler

import (
	"context"
	"regexp"
	"strings"
)

const ActionGetInfoFromAI = "get-info-from-ai"

var routeIDRe = regexp.MustCompile(`^(\d{1,10}|[a-z]{1,2})$`)

// Route is a parsed pipeline path: "/<anything>/<action>[/<id>]".
type Route struct {
	Action string
	ID     string
}

// ParseRoute lowercases path and splits it into action and optional id. A
// trailing segment of up to ten digits or one or two letters is the id; the
// segment before it is the action.
func ParseRoute(path string) Route {
	var segments []string
	for _, s := range strings.Split(strings.ToLower(path), "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	var route Route
	if n := len(segments); n > 1 && routeIDRe.MatchString(segments[n-1]) {
		route.ID = segments[n-1]
		segments = segments[:n-1]
	}
	if n := len(segments); n > 0 {
		route.Action = segments[n-1]
	}
	return route
}

func (r Route) Known() bool {
	return r.Action == ActionGetInfoFromAI
}

type contextKey string

const RouteIDContextKey contextKey = "route_id"

func GetRouteID(ctx context.Context) string {
	if id, ok := ctx.Value(RouteIDContextKey).(string); ok {
		return id
	}
	return ""
}
