package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/berfenger/multitek2mqtt/internal/core/domain"
	"github.com/berfenger/multitek2mqtt/internal/core/entity"
	"github.com/berfenger/multitek2mqtt/internal/metrics"
	"github.com/berfenger/multitek2mqtt/pkg/multitek"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type TabletView struct {
	Id               string         `json:"id"`
	Host             string         `json:"host"`
	Port             uint           `json:"port"`
	DeviceCount      int            `json:"device_count"`
	DeviceTypes      map[string]int `json:"device_types"`
	ConnectionStatus string         `json:"connection_status"`
	LastUpdate       *time.Time     `json:"last_update,omitempty"`
	LastError        string         `json:"last_error,omitempty"`
}

type DeviceView struct {
	multitek.Device
	On bool `json:"on"`
}

type errorView struct {
	Error string `json:"error"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := e.Group("/api")
	api.GET("/tablets", s.TabletsHandler)
	api.GET("/tablets/:id/devices", s.DevicesHandler)
	api.POST("/tablets/:id/devices/:device/:command", s.CommandHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) TabletsHandler(c echo.Context) error {
	views := make([]TabletView, 0, len(s.order))
	for _, id := range s.order {
		views = append(views, tabletView(s.platforms[id]))
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) DevicesHandler(c echo.Context) error {
	p, ok := s.platforms[c.Param("id")]
	if !ok {
		return c.JSON(http.StatusNotFound, errorView{Error: "unknown tablet"})
	}
	snapshot := p.DeviceCount().Snapshot()
	views := make([]DeviceView, 0, len(snapshot))
	for _, d := range snapshot {
		view := DeviceView{Device: d, On: d.State}
		if sw, ok := p.Switch(d.ID); ok {
			view.On = sw.IsOn()
		}
		views = append(views, view)
	}
	slices.SortFunc(views, func(a, b DeviceView) int {
		return strings.Compare(a.ID, b.ID)
	})
	return c.JSON(http.StatusOK, views)
}

func (s *Server) CommandHandler(c echo.Context) error {
	p, ok := s.platforms[c.Param("id")]
	if !ok {
		return c.JSON(http.StatusNotFound, errorView{Error: "unknown tablet"})
	}
	cmd, err := domain.ParseSwitchPayload(c.Param("command"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorView{Error: err.Error()})
	}
	deviceId, err := url.PathUnescape(c.Param("device"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorView{Error: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 25*time.Second)
	defer cancel()
	err = p.HandleCommand(ctx, deviceId, cmd)
	switch {
	case err == nil:
	case errors.Is(err, entity.ErrUnknownSwitch):
		return c.JSON(http.StatusNotFound, errorView{Error: err.Error()})
	default:
		s.logger.Warn("command failed", zap.String("tablet", p.TabletId()), zap.String("device", deviceId), zap.Error(err))
		return c.JSON(http.StatusBadGateway, errorView{Error: err.Error()})
	}

	sw, _ := p.Switch(deviceId)
	return c.JSON(http.StatusOK, DeviceView{Device: sw.Device(), On: sw.IsOn()})
}

func tabletView(p *entity.Platform) TabletView {
	tablet := p.Connection().Tablet()
	status := p.Connection().Status()
	view := TabletView{
		Id:               p.TabletId(),
		Host:             tablet.Host,
		Port:             tablet.Port,
		DeviceCount:      p.DeviceCount().Count(),
		DeviceTypes:      p.DeviceCount().CountByType(),
		ConnectionStatus: p.Connection().State(),
	}
	if status.LastUpdateSuccess {
		view.LastUpdate = status.LastUpdateTime
	}
	if status.LastError != nil {
		view.LastError = status.LastError.Error()
	}
	return view
}
