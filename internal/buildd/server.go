package buildd

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/onewithdev/peterbot-sandbox/internal/metrics"
	"github.com/onewithdev/peterbot-sandbox/pkg/types"
)

// Server is the build service HTTP API.
type Server struct {
	echo     *echo.Echo
	builder  *Builder
	store    *Store
	registry *Registry
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewServer creates the API server with all routes configured.
func NewServer(builder *Builder, store *Store, registry *Registry, hub *Hub, apiKey string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		builder:  builder,
		store:    store,
		registry: registry,
		hub:      hub,
		upgrader: websocket.Upgrader{
			// The API key middleware already gates access.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.RequestID())
	e.Use(metrics.Middleware())

	// Health and metrics (no auth)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", metrics.Handler())

	// API routes (with auth)
	api := e.Group("/api")
	api.Use(apiKeyMiddleware(apiKey))

	api.POST("/templates/builds", s.buildTemplate)
	api.GET("/templates", s.listTemplates)
	api.GET("/templates/:name", s.getTemplate)
	api.DELETE("/templates/:name", s.deleteTemplate)

	api.GET("/builds", s.listBuilds)
	api.GET("/builds/:id", s.getBuild)
	api.GET("/builds/:id/logs", s.getBuildLogs)
	api.GET("/builds/:id/logs/ws", s.watchBuild)

	return s
}

// Start starts the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Echo exposes the underlying echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// apiKeyMiddleware validates the X-API-Key header against the configured
// key. An empty configured key disables authentication (development mode).
func apiKeyMiddleware(apiKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if apiKey == "" {
				return next(c)
			}

			provided := c.Request().Header.Get("X-API-Key")
			if provided == "" {
				provided = c.QueryParam("api_key")
			}

			if provided == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "missing API key",
				})
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				return c.JSON(http.StatusForbidden, map[string]string{
					"error": "invalid API key",
				})
			}

			return next(c)
		}
	}
}

// buildTemplate runs a build, streaming log entries to the client as
// newline-delimited JSON. The terminal entry carries the final status.
func (s *Server) buildTemplate(c echo.Context) error {
	var req types.TemplateBuildRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body: " + err.Error(),
		})
	}
	if req.Name == "" || req.Definition == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "name and definition are required",
		})
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "application/x-ndjson")
	resp.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(resp)
	emit := func(entry types.BuildLogEntry) {
		if err := enc.Encode(entry); err != nil {
			return
		}
		resp.Flush()
	}

	if _, err := s.builder.Build(c.Request().Context(), &req, emit); err != nil {
		// The build never started; the stream has no entries yet, but the
		// status line is already out, so report the error in-stream.
		emit(types.BuildLogEntry{
			Type:   types.LogEntryResult,
			Status: types.BuildStatusFailed,
			Error:  err.Error(),
		})
	}
	return nil
}

func (s *Server) listTemplates(c echo.Context) error {
	return c.JSON(http.StatusOK, s.registry.List())
}

func (s *Server) getTemplate(c echo.Context) error {
	tmpl, err := s.registry.Get(c.Param("name"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, tmpl)
}

func (s *Server) deleteTemplate(c echo.Context) error {
	if err := s.registry.Delete(c.Param("name")); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listBuilds(c echo.Context) error {
	builds, err := s.store.ListBuilds(50)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if builds == nil {
		builds = []types.TemplateBuild{}
	}
	return c.JSON(http.StatusOK, builds)
}

func (s *Server) getBuild(c echo.Context) error {
	build, err := s.store.GetBuild(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, build)
}

func (s *Server) getBuildLogs(c echo.Context) error {
	logText, err := s.store.GetBuildLog(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.String(http.StatusOK, logText)
}

// watchBuild tails a running build over a websocket, replaying entries
// published so far and then following live output until the build ends.
func (s *Server) watchBuild(c echo.Context) error {
	buildID := c.Param("id")

	ch, cancel, ok := s.hub.Subscribe(buildID)
	if !ok {
		// Not live; if the build finished, report its result entry once.
		build, err := s.store.GetBuild(buildID)
		if err != nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return err
		}
		defer conn.Close()
		conn.WriteJSON(types.BuildLogEntry{
			Type:      types.LogEntryResult,
			BuildID:   build.ID,
			Status:    build.Status,
			Error:     build.Error,
			Timestamp: build.FinishedAt,
		})
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return nil
	}
	defer cancel()

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	for entry := range ch {
		if err := conn.WriteJSON(entry); err != nil {
			log.Printf("buildd: websocket write for build %s: %v", buildID, err)
			return nil
		}
	}

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}
