package main

import (
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"

	directoryrepo "github.com/Ramsey-B/fern/internal/repositories/directory"
	entityrepo "github.com/Ramsey-B/fern/internal/repositories/entity"
	relationshiprepo "github.com/Ramsey-B/fern/internal/repositories/relationship"
	entityservice "github.com/Ramsey-B/fern/internal/services/entity"
	relationshipservice "github.com/Ramsey-B/fern/internal/services/relationship"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/integrity"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/scope"
	"github.com/Ramsey-B/fern/pkg/traversal"
)

// containerDeps carries everything the request handlers resolve from the
// container at runtime.
type containerDeps struct {
	logger          ectologger.Logger
	db              database.DB
	entities        entityrepo.EntityRepository
	relationships   relationshiprepo.RelationshipRepository
	directory       directoryrepo.DirectoryRepository
	scopes          *scope.Service
	entitySvc       *entityservice.Service
	relationshipSvc *relationshipservice.Service
	engine          *traversal.Engine
	enforcer        *integrity.Enforcer
	locker          *redis.Locker
	graphEntities   *graph.EntityService
}

// registerDependencies fills the default DI container the handlers pull
// from via ectoinject.GetContext.
func registerDependencies(deps containerDeps) error {
	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return err
	}

	registrations := []func() error{
		func() error { return ectoinject.RegisterInstance[ectologger.Logger](container, deps.logger) },
		func() error { return ectoinject.RegisterInstance[database.DB](container, deps.db) },
		func() error { return ectoinject.RegisterInstance[entityrepo.EntityRepository](container, deps.entities) },
		func() error {
			return ectoinject.RegisterInstance[relationshiprepo.RelationshipRepository](container, deps.relationships)
		},
		func() error {
			return ectoinject.RegisterInstance[directoryrepo.DirectoryRepository](container, deps.directory)
		},
		func() error { return ectoinject.RegisterInstance[*scope.Service](container, deps.scopes) },
		func() error { return ectoinject.RegisterInstance[*entityservice.Service](container, deps.entitySvc) },
		func() error {
			return ectoinject.RegisterInstance[*relationshipservice.Service](container, deps.relationshipSvc)
		},
		func() error { return ectoinject.RegisterInstance[*traversal.Engine](container, deps.engine) },
		func() error { return ectoinject.RegisterInstance[*integrity.Enforcer](container, deps.enforcer) },
		func() error { return ectoinject.RegisterInstance[*redis.Locker](container, deps.locker) },
	}

	// The graph projection is optional; the domain wipe route probes for it
	// and skips the projection when it was never registered.
	if deps.graphEntities != nil {
		registrations = append(registrations, func() error {
			return ectoinject.RegisterInstance[*graph.EntityService](container, deps.graphEntities)
		})
	}

	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}

	return nil
}
