package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

const ActorHeader = "X-Actor"

const actorKey = "actor"

// ActorFromHeader records who is making the request. Identity is supplied by
// the caller; authenticating it is the job of whatever sits in front of this
// service.
func ActorFromHeader(fallback string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := strings.TrimSpace(c.Request().Header.Get(ActorHeader))
			if actor == "" {
				actor = fallback
			}
			c.Set(actorKey, actor)
			return next(c)
		}
	}
}

// Actor returns the request's actor, reading the header directly when the
// middleware has not run.
func Actor(c echo.Context) string {
	if a, ok := c.Get(actorKey).(string); ok {
		return a
	}
	return strings.TrimSpace(c.Request().Header.Get(ActorHeader))
}
