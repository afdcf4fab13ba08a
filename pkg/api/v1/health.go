package apiv1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthGroup serves liveness probes. It never touches poller state, so it
// answers while a tick is running.
type HealthGroup struct {
	routerGroup *echo.Group
}

func NewHealthGroup(g *echo.Group) *HealthGroup {
	group := &HealthGroup{routerGroup: g}

	g.GET("", group.HealthCheck)
	g.HEAD("", group.HealthCheck)

	return group
}

func (h *HealthGroup) HealthCheck(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// RegisterRoot serves the banner on "/"
func RegisterRoot(e *echo.Echo) {
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, RootBanner)
	})
}
