/*
MIT License

Copyright (c) 2023 Frank Oh

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package echo_record_cache

import (
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"
)

type (
	// Handler exposes an Engine over HTTP.
	Handler[V any] struct {
		engine *Engine[V]
		config HandlerConfig[V]
	}

	// HandlerConfig represents configuration for Handler
	HandlerConfig[V any] struct {
		// FromQuery builds a value from query parameters for updates sent
		// without a body. Nil disables query updates.
		FromQuery func(key Key, query url.Values) (V, bool)
	}
)

// NewHandler creates a handler with default config
func NewHandler[V any](engine *Engine[V]) *Handler[V] {
	return NewHandlerWithConfig(engine, HandlerConfig[V]{})
}

// NewHandlerWithConfig creates a handler
func NewHandlerWithConfig[V any](engine *Engine[V], config HandlerConfig[V]) *Handler[V] {
	if engine == nil {
		panic("Engine must be provided")
	}
	return &Handler[V]{engine: engine, config: config}
}

/*
Register mounts the record routes on g

	e := echo.New()
	h := echo_record_cache.NewHandler(engine)
	h.Register(e.Group("/api/users"))
*/
func (h *Handler[V]) Register(g *echo.Group) {
	// cache routes first so /cache/* is not taken for an id
	g.POST("/cache/clear", h.clearCache)
	g.POST("/cache/flush", h.flush)
	g.GET("/cache/show", h.showCache)
	g.GET("/cache/stats", h.stats)
	g.DELETE("/cache/:id", h.invalidate)
	g.GET("/database/show", h.showDatabase)

	g.GET("/:id", h.get)
	g.POST("", h.create)
	g.POST("/", h.create)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

// RegisterHealth mounts GET /health on e.
func (h *Handler[V]) RegisterHealth(e *echo.Echo) {
	e.GET("/health", h.health)
}

func (h *Handler[V]) get(c echo.Context) error {
	key, err := pathKey(c)
	if err != nil {
		return err
	}
	value, err := h.engine.Get(c.Request().Context(), key)
	if err != nil {
		if IsNotFound(err) {
			c.Logger().Warnf("record %s not found", key)
		}
		return httpError(err)
	}
	return c.JSON(http.StatusOK, value)
}

func (h *Handler[V]) create(c echo.Context) error {
	var value V
	if err := (&echo.DefaultBinder{}).BindBody(c, &value); err != nil {
		return err
	}
	rec, err := h.engine.Put(c.Request().Context(), keyOf(value), value)
	if err != nil {
		return httpError(err)
	}
	c.Logger().Infof("created record %s", rec.Key)
	return c.JSON(http.StatusCreated, rec.Value)
}

func (h *Handler[V]) update(c echo.Context) error {
	key, err := pathKey(c)
	if err != nil {
		return err
	}

	var value V
	if c.Request().ContentLength == 0 && h.config.FromQuery != nil {
		var ok bool
		if value, ok = h.config.FromQuery(key, c.QueryParams()); !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "request body or query parameters required")
		}
	} else if err := (&echo.DefaultBinder{}).BindBody(c, &value); err != nil {
		return err
	}

	rec, err := h.engine.Update(c.Request().Context(), key, value)
	if err != nil {
		return httpError(err)
	}
	c.Logger().Infof("updated record %s", rec.Key)
	return c.JSON(http.StatusOK, rec.Value)
}

func (h *Handler[V]) delete(c echo.Context) error {
	key, err := pathKey(c)
	if err != nil {
		return err
	}
	if err := h.engine.Delete(c.Request().Context(), key); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler[V]) invalidate(c echo.Context) error {
	key, err := pathKey(c)
	if err != nil {
		return err
	}
	h.engine.Invalidate(key)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler[V]) clearCache(c echo.Context) error {
	h.engine.Clear()
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Cache cleared successfully",
	})
}

func (h *Handler[V]) flush(c echo.Context) error {
	result, err := h.engine.FlushNow(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("flush: %v", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"error":  "Flush incomplete",
			"result": result,
		})
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler[V]) showCache(c echo.Context) error {
	return c.JSON(http.StatusOK, h.engine.SnapshotCache())
}

func (h *Handler[V]) showDatabase(c echo.Context) error {
	records, err := h.engine.SnapshotStore(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, records)
}

func (h *Handler[V]) stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.engine.Stats())
}

func (h *Handler[V]) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"policy": string(h.engine.Policy()),
	})
}

func pathKey(c echo.Context) (Key, error) {
	key, err := ParseKey(c.Param("id"))
	if err != nil || key <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "id must be a positive integer")
	}
	return key, nil
}

// httpError maps engine errors onto HTTP status codes.
func httpError(err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, ErrUnsupported):
		code = http.StatusMethodNotAllowed
	case errors.Is(err, ErrStoreFault), errors.Is(err, ErrClosed):
		code = http.StatusServiceUnavailable
	}
	return echo.NewHTTPError(code, err.Error()).SetInternal(err)
}
