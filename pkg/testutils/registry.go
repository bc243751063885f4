package testutils

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"
	"github.com/whitekid/goxp/fx"

	"drg/client/common"
	"drg/client/registry"
	"drg/pkg/helper"
	"drg/pkg/simplekv"
)

// Registry in-memory registry service for tests
type Registry struct {
	URL           string
	Authorization string // required Authorization header if not empty
	Events        []string

	apps      simplekv.Interface[*common.Resource]
	devices   simplekv.Interface[*common.Resource] // key: app/device
	members   simplekv.Interface[*registry.Members]
	transfers simplekv.Interface[string]
	tokens    simplekv.Interface[*registry.AccessToken]

	mu        sync.Mutex
	calls     []string
	commands  []string
	conflicts int
}

// NewRegistryServer start registry server until ctx is done
func NewRegistryServer(ctx context.Context) (*httptest.Server, *Registry) {
	r := NewRegistry()
	ts := httptest.NewServer(r.Handler())
	r.URL = ts.URL

	go func() {
		<-ctx.Done()
		ts.Close()
	}()

	return ts, r
}

func NewRegistry() *Registry {
	return &Registry{
		apps:      simplekv.New[*common.Resource](),
		devices:   simplekv.New[*common.Resource](),
		members:   simplekv.New[*registry.Members](),
		transfers: simplekv.New[string](),
		tokens:    simplekv.New[*registry.AccessToken](),
	}
}

func (r *Registry) Handler() http.Handler {
	e := helper.NewEcho(r.recordCalls)
	e.Route(&wellKnownEndpoint{r}, &registryEndpoint{r}, &adminEndpoint{r}, &tokenEndpoint{r}, &commandEndpoint{r}, &streamEndpoint{r})
	return e
}

// Calls returns "METHOD path" of requests received so far
func (r *Registry) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.calls...)
}

// CountCalls count requests of the method whose path has prefix
func (r *Registry) CountCalls(method, prefix string) int {
	return len(fx.Filter(r.Calls(), func(c string) bool { return strings.HasPrefix(c, method+" "+prefix) }))
}

// Commands returns "device:command" sent so far
func (r *Registry) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.commands...)
}

// InjectConflicts reject next n updates with 409
func (r *Registry) InjectConflicts(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conflicts = n
}

func (r *Registry) takeConflict() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conflicts > 0 {
		r.conflicts--
		return true
	}
	return false
}

// AddApp add application fixture
func (r *Registry) AddApp(ctx context.Context, name string) *common.Resource {
	app := &common.Resource{Metadata: common.Metadata{Name: name}}
	r.initMetadata(&app.Metadata)
	r.apps.Set(ctx, name, app, 0)
	r.members.Set(ctx, name, &registry.Members{ResourceVersion: shortuuid.New(), Members: map[string]*registry.MemberEntry{}}, 0)
	return app
}

// AddDevice add device fixture
func (r *Registry) AddDevice(ctx context.Context, app, name string) *common.Resource {
	dev := &common.Resource{Metadata: common.Metadata{Name: name, Application: app}}
	r.initMetadata(&dev.Metadata)
	r.devices.Set(ctx, app+"/"+name, dev, 0)
	return dev
}

func (r *Registry) GetApp(ctx context.Context, name string) (*common.Resource, error) {
	return r.apps.Get(ctx, name)
}

func (r *Registry) GetDevice(ctx context.Context, app, name string) (*common.Resource, error) {
	return r.devices.Get(ctx, app+"/"+name)
}

func (r *Registry) GetMembers(ctx context.Context, app string) (*registry.Members, error) {
	return r.members.Get(ctx, app)
}

func (r *Registry) initMetadata(m *common.Metadata) {
	m.UID = shortuuid.New()
	m.CreationTimestamp = common.TimestampNow()
	m.ResourceVersion = shortuuid.New()
	m.Generation = 1
}

func (r *Registry) recordCalls(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		r.mu.Lock()
		r.calls = append(r.calls, c.Request().Method+" "+c.Request().URL.Path)
		r.mu.Unlock()

		if r.Authorization != "" && c.Request().Header.Get(echo.HeaderAuthorization) != r.Authorization &&
			!strings.HasPrefix(c.Request().URL.Path, "/.well-known") {
			return errorJSON(c, http.StatusUnauthorized, "NotAuthorized", "")
		}

		return next(c)
	}
}

func errorJSON(c echo.Context, code int, reason, format string, args ...interface{}) error {
	return c.JSON(code, &common.HTTPError{Reason: reason, Message: fmt.Sprintf(format, args...)})
}

func notFound(c echo.Context, kind, name string) error {
	return errorJSON(c, http.StatusNotFound, "NotFound", "%s %s not found", kind, name)
}

type wellKnownEndpoint struct{ *Registry }

func (r *wellKnownEndpoint) PathAndName() (string, string) { return "/.well-known", "discovery" }
func (r *wellKnownEndpoint) Route(e *echo.Group) {
	e.GET("/drogue-endpoints", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"api":                   r.URL,
			"issuer_url":            r.URL,
			"registry":              map[string]string{"url": r.URL},
			"websocket_integration": map[string]string{"url": "ws" + strings.TrimPrefix(r.URL, "http") + "/stream"},
		})
	})
	e.GET("/openid-configuration", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"issuer":                 r.URL,
			"authorization_endpoint": r.URL + "/auth",
			"token_endpoint":         r.URL + "/token",
		})
	})
	e.GET("/drogue-version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"version": "0.0.0-test"})
	})
}

type registryEndpoint struct{ *Registry }

func (r *registryEndpoint) PathAndName() (string, string) { return "/api/registry/v1", "registry" }
func (r *registryEndpoint) Route(e *echo.Group) {
	e.GET("/apps", func(c echo.Context) error {
		return c.JSON(http.StatusOK, filterLabels(r.apps.List(c.Request().Context(), ""), c.QueryParam("labels")))
	})
	e.POST("/apps", func(c echo.Context) error {
		var app common.Resource
		if err := helper.Bind(c, &app); err != nil {
			return err
		}

		if _, err := r.apps.Get(c.Request().Context(), app.Name()); err == nil {
			return errorJSON(c, http.StatusConflict, "AlreadyExists", "application %s already exists", app.Name())
		}

		created := r.AddApp(c.Request().Context(), app.Name())
		created.Metadata.Labels = app.Metadata.Labels
		created.Metadata.Annotations = app.Metadata.Annotations
		created.Spec = app.Spec
		return c.NoContent(http.StatusCreated)
	})
	e.GET("/apps/:app", func(c echo.Context) error {
		app, err := r.apps.Get(c.Request().Context(), c.Param("app"))
		if err != nil {
			return notFound(c, "application", c.Param("app"))
		}
		return c.JSON(http.StatusOK, app)
	})
	e.PUT("/apps/:app", func(c echo.Context) error {
		return r.update(c, r.apps, c.Param("app"), "application")
	})
	e.DELETE("/apps/:app", func(c echo.Context) error {
		ctx := c.Request().Context()
		if err := r.apps.Delete(ctx, c.Param("app")); err != nil {
			return notFound(c, "application", c.Param("app"))
		}

		for _, dev := range r.devices.List(ctx, c.Param("app")+"/") {
			r.devices.Delete(ctx, c.Param("app")+"/"+dev.Name())
		}
		r.members.Delete(ctx, c.Param("app"))
		return c.NoContent(http.StatusNoContent)
	})

	e.GET("/apps/:app/devices", func(c echo.Context) error {
		if _, err := r.apps.Get(c.Request().Context(), c.Param("app")); err != nil {
			return notFound(c, "application", c.Param("app"))
		}
		return c.JSON(http.StatusOK, filterLabels(r.devices.List(c.Request().Context(), c.Param("app")+"/"), c.QueryParam("labels")))
	})
	e.POST("/apps/:app/devices", func(c echo.Context) error {
		ctx := c.Request().Context()
		appName := c.Param("app")

		var dev common.Resource
		if err := helper.Bind(c, &dev); err != nil {
			return err
		}

		if _, err := r.apps.Get(ctx, appName); err != nil {
			return notFound(c, "application", appName)
		}

		if _, err := r.devices.Get(ctx, appName+"/"+dev.Name()); err == nil {
			return errorJSON(c, http.StatusConflict, "AlreadyExists", "device %s already exists", dev.Name())
		}

		created := r.AddDevice(ctx, appName, dev.Name())
		created.Metadata.Labels = dev.Metadata.Labels
		created.Metadata.Annotations = dev.Metadata.Annotations
		created.Spec = dev.Spec
		return c.NoContent(http.StatusCreated)
	})
	e.GET("/apps/:app/devices/:device", func(c echo.Context) error {
		dev, err := r.devices.Get(c.Request().Context(), c.Param("app")+"/"+c.Param("device"))
		if err != nil {
			return notFound(c, "device", c.Param("device"))
		}
		return c.JSON(http.StatusOK, dev)
	})
	e.PUT("/apps/:app/devices/:device", func(c echo.Context) error {
		return r.update(c, r.devices, c.Param("app")+"/"+c.Param("device"), "device")
	})
	e.DELETE("/apps/:app/devices/:device", func(c echo.Context) error {
		if err := r.devices.Delete(c.Request().Context(), c.Param("app")+"/"+c.Param("device")); err != nil {
			return notFound(c, "device", c.Param("device"))
		}
		return c.NoContent(http.StatusNoContent)
	})
}

func (r *Registry) update(c echo.Context, kv simplekv.Interface[*common.Resource], key, kind string) error {
	ctx := c.Request().Context()

	var in common.Resource
	if err := helper.Bind(c, &in); err != nil {
		return err
	}

	current, err := kv.Get(ctx, key)
	if err != nil {
		return notFound(c, kind, in.Name())
	}

	if r.takeConflict() || (in.Metadata.ResourceVersion != "" && in.Metadata.ResourceVersion != current.Metadata.ResourceVersion) {
		return errorJSON(c, http.StatusConflict, "Conflict", "resource version mismatch")
	}

	updated := &common.Resource{Metadata: current.Metadata, Spec: in.Spec, Status: current.Status}
	updated.Metadata.Labels = in.Metadata.Labels
	updated.Metadata.Annotations = in.Metadata.Annotations
	updated.Metadata.ResourceVersion = shortuuid.New()
	updated.Metadata.Generation++

	kv.Set(ctx, key, updated, 0)
	return c.NoContent(http.StatusNoContent)
}

// filterLabels filter by selector: "key=value", "key" or "!key" joined by comma
func filterLabels(resources []*common.Resource, selector string) []*common.Resource {
	if selector == "" {
		return resources
	}

	return fx.Filter(resources, func(res *common.Resource) bool {
		for _, term := range strings.Split(selector, ",") {
			term = strings.TrimSpace(term)
			key, value, hasValue := strings.Cut(term, "=")
			v, ok := res.Metadata.Labels[strings.TrimPrefix(key, "!")]

			switch {
			case strings.HasPrefix(term, "!"):
				if ok {
					return false
				}
			case hasValue:
				if !ok || v != value {
					return false
				}
			case !ok:
				return false
			}
		}
		return true
	})
}

type adminEndpoint struct{ *Registry }

func (r *adminEndpoint) PathAndName() (string, string) { return "/api/admin/v1alpha1", "admin" }
func (r *adminEndpoint) Route(e *echo.Group) {
	e.GET("/apps/:app/members", func(c echo.Context) error {
		members, err := r.members.Get(c.Request().Context(), c.Param("app"))
		if err != nil {
			return notFound(c, "application", c.Param("app"))
		}
		return c.JSON(http.StatusOK, members)
	})
	e.PUT("/apps/:app/members", func(c echo.Context) error {
		ctx := c.Request().Context()

		var in registry.Members
		if err := helper.Bind(c, &in); err != nil {
			return err
		}

		current, err := r.members.Get(ctx, c.Param("app"))
		if err != nil {
			return notFound(c, "application", c.Param("app"))
		}

		if r.takeConflict() || (in.ResourceVersion != "" && in.ResourceVersion != current.ResourceVersion) {
			return errorJSON(c, http.StatusConflict, "Conflict", "resource version mismatch")
		}

		in.ResourceVersion = shortuuid.New()
		r.members.Set(ctx, c.Param("app"), &in, 0)
		return c.NoContent(http.StatusNoContent)
	})
	e.PUT("/apps/:app/transfer-ownership", func(c echo.Context) error {
		var in struct {
			NewUser string `json:"newUser" validate:"required"`
		}
		if err := helper.Bind(c, &in); err != nil {
			return err
		}

		if _, err := r.apps.Get(c.Request().Context(), c.Param("app")); err != nil {
			return notFound(c, "application", c.Param("app"))
		}

		r.transfers.Set(c.Request().Context(), c.Param("app"), in.NewUser, 0)
		return c.NoContent(http.StatusNoContent)
	})
	e.DELETE("/apps/:app/transfer-ownership", func(c echo.Context) error {
		if err := r.transfers.Delete(c.Request().Context(), c.Param("app")); err != nil {
			return notFound(c, "transfer of", c.Param("app"))
		}
		return c.NoContent(http.StatusNoContent)
	})
	e.PUT("/apps/:app/accept-ownership", func(c echo.Context) error {
		if err := r.transfers.Delete(c.Request().Context(), c.Param("app")); err != nil {
			return notFound(c, "transfer of", c.Param("app"))
		}
		return c.NoContent(http.StatusNoContent)
	})
}

type tokenEndpoint struct{ *Registry }

func (r *tokenEndpoint) PathAndName() (string, string) { return "/api/tokens/v1alpha1", "tokens" }
func (r *tokenEndpoint) Route(e *echo.Group) {
	e.GET("", func(c echo.Context) error {
		return c.JSON(http.StatusOK, r.tokens.List(c.Request().Context(), ""))
	})
	e.POST("", func(c echo.Context) error {
		prefix := "drg_" + shortuuid.New()[:6]
		r.tokens.Set(c.Request().Context(), prefix, &registry.AccessToken{
			Prefix:      prefix,
			Created:     common.TimestampNow(),
			Description: c.QueryParam("description"),
		}, 0)
		return c.JSON(http.StatusCreated, &registry.CreatedAccessToken{Prefix: prefix, Token: prefix + shortuuid.New()})
	})
	e.DELETE("/:prefix", func(c echo.Context) error {
		if err := r.tokens.Delete(c.Request().Context(), c.Param("prefix")); err != nil {
			return notFound(c, "token", c.Param("prefix"))
		}
		return c.NoContent(http.StatusNoContent)
	})
}

type commandEndpoint struct{ *Registry }

func (r *commandEndpoint) PathAndName() (string, string) { return "/api/command/v1alpha1", "command" }
func (r *commandEndpoint) Route(e *echo.Group) {
	e.POST("/apps/:app/devices/:device", func(c echo.Context) error {
		if c.QueryParam("command") == "" {
			return errorJSON(c, http.StatusBadRequest, "BadRequest", "missing command")
		}

		if _, err := r.devices.Get(c.Request().Context(), c.Param("app")+"/"+c.Param("device")); err != nil {
			return notFound(c, "device", c.Param("device"))
		}

		r.mu.Lock()
		r.commands = append(r.commands, c.Param("device")+":"+c.QueryParam("command"))
		r.mu.Unlock()
		return c.NoContent(http.StatusAccepted)
	})
}

type streamEndpoint struct{ *Registry }

var upgrader = websocket.Upgrader{}

func (r *streamEndpoint) PathAndName() (string, string) { return "/stream", "websocket integration" }
func (r *streamEndpoint) Route(e *echo.Group) {
	e.GET("/:app", func(c echo.Context) error {
		if _, err := r.apps.Get(c.Request().Context(), c.Param("app")); err != nil {
			return notFound(c, "application", c.Param("app"))
		}

		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return err
		}
		defer conn.Close()

		for _, event := range r.Events {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(event)); err != nil {
				return nil
			}
		}

		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		return nil
	})
}
