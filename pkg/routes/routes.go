// Package routes mounts every resource handler group onto the server.
package routes

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/routes/directory"
	"github.com/Ramsey-B/fern/pkg/routes/domain"
	"github.com/Ramsey-B/fern/pkg/routes/entity"
	graphroutes "github.com/Ramsey-B/fern/pkg/routes/graph"
	"github.com/Ramsey-B/fern/pkg/routes/integrity"
	"github.com/Ramsey-B/fern/pkg/routes/relationship"
	"github.com/Ramsey-B/fern/pkg/routes/scopes"
	"github.com/Ramsey-B/fern/pkg/traversal"
)

// Register mounts the API surface under /api/v1. The traversal engine is
// handed to the graph handler directly; everything else resolves its
// dependencies from the DI container per request.
func Register(e *echo.Echo, engine *traversal.Engine, logger ectologger.Logger) {
	api := e.Group("/api/v1")

	entity.Register(api.Group("/entities"))
	relationship.Register(api.Group("/relationships"))
	graphroutes.NewHandler(engine, logger).Register(api.Group("/graph"))
	scopes.Register(api.Group("/scopes"))
	integrity.Register(api.Group("/integrity"))
	directory.Register(api.Group("/directory"))
	domain.Register(api.Group("/domains"))
}
