package graph

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/routes/identity"
	"github.com/Ramsey-B/fern/pkg/traversal"
)

var validate = validator.New()

// Handler handles graph traversal API endpoints
type Handler struct {
	engine *traversal.Engine
	logger ectologger.Logger
}

// NewHandler creates a new graph handler
func NewHandler(engine *traversal.Engine, logger ectologger.Logger) *Handler {
	return &Handler{
		engine: engine,
		logger: logger,
	}
}

// Register registers the graph routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("/neighbors", h.Neighbors)
	g.POST("/subgraph", h.Subgraph)
	g.POST("/context", h.QueryContext)
}

func (h *Handler) requireEngine(c echo.Context) (*traversal.Engine, error) {
	// Prefer the explicitly provided engine (useful for tests), but fall back
	// to DI-from-context, the standard pattern used by the other routes.
	if h != nil && h.engine != nil {
		return h.engine, nil
	}

	ctx := c.Request().Context()
	_, engine, err := ectoinject.GetContext[*traversal.Engine](ctx)
	if err != nil || engine == nil {
		return nil, httperror.NewHTTPError(http.StatusServiceUnavailable, "traversal engine unavailable")
	}
	return engine, nil
}

// Neighbors expands outward from a start entity
// @Summary Find neighbors
// @Description Breadth-first expansion from an entity up to N hops, scope-filtered
// @Tags Graph
// @Produce json
// @Param entity_id query string true "Start entity ID"
// @Param max_hops query int false "Maximum hops (default 2)"
// @Success 200 {object} models.GraphResult
// @Failure 400 {object} httperror.HTTPError
// @Failure 404 {object} httperror.HTTPError
// @Router /api/v1/graph/neighbors [get]
func (h *Handler) Neighbors(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, principal, err := identity.Principal(ctx)
	if err != nil {
		return err
	}

	engine, err := h.requireEngine(c)
	if err != nil {
		return err
	}

	entityID := c.QueryParam("entity_id")
	if entityID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "entity_id is required")
	}

	maxHops := engine.DefaultMaxHops()
	if hopsStr := c.QueryParam("max_hops"); hopsStr != "" {
		var parsed int
		if err := echo.QueryParamsBinder(c).Int("max_hops", &parsed).BindError(); err == nil && parsed > 0 {
			maxHops = parsed
		}
	}

	result, err := engine.Neighbors(ctx, principal, principal.DomainID, entityID, maxHops)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Subgraph returns the induced subgraph over a set of entities
// @Summary Fetch a subgraph
// @Description Fetch a set of entities and the relationships among them
// @Tags Graph
// @Accept json
// @Produce json
// @Param body body models.SubgraphRequest true "Subgraph request"
// @Success 200 {object} models.GraphResult
// @Failure 400 {object} httperror.HTTPError
// @Router /api/v1/graph/subgraph [post]
func (h *Handler) Subgraph(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, principal, err := identity.Principal(ctx)
	if err != nil {
		return err
	}

	engine, err := h.requireEngine(c)
	if err != nil {
		return err
	}

	var req models.SubgraphRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := engine.Subgraph(ctx, principal, principal.DomainID, req.EntityIDs, req.IncludeRelationships)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// QueryContext assembles an LLM-ready context block for a free-text query
// @Summary Build query context
// @Description Keyword-match entities and expand one hop, rendered as context text
// @Tags Graph
// @Accept json
// @Produce json
// @Param body body models.QueryContextRequest true "Context request"
// @Success 200 {object} models.QueryContextResult
// @Failure 400 {object} httperror.HTTPError
// @Router /api/v1/graph/context [post]
func (h *Handler) QueryContext(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, principal, err := identity.Principal(ctx)
	if err != nil {
		return err
	}

	engine, err := h.requireEngine(c)
	if err != nil {
		return err
	}

	var req models.QueryContextRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := engine.ContextForQuery(ctx, principal, principal.DomainID, req.Query, req.MaxEntities, req.MaxTokens)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
