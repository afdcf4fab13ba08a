package apiv1

import (
	"github.com/beam-cloud/gmail2tg/pkg/relay"
	"github.com/labstack/echo/v4"
)

// StatusProvider is implemented by *relay.Poller
type StatusProvider interface {
	Status() relay.Status
}

type StatusGroup struct {
	routerGroup *echo.Group
	provider    StatusProvider
}

func NewStatusGroup(g *echo.Group, provider StatusProvider) *StatusGroup {
	group := &StatusGroup{routerGroup: g, provider: provider}

	g.GET("", group.GetStatus)

	return group
}

func (s *StatusGroup) GetStatus(c echo.Context) error {
	if s.provider == nil {
		return HTTPServiceUnavailable("poller not running")
	}
	return SuccessResponse(c, s.provider.Status())
}
