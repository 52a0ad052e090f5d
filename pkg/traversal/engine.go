// Package traversal implements graph neighborhood expansion, subgraph
// extraction and query context assembly over the entity store.
package traversal

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/internal/repositories/relationship"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/scope"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Engine walks the graph through the repositories. It holds no locks and no
// cache; every call re-reads the store, tolerating snapshot staleness.
type Engine struct {
	logger        ectologger.Logger
	entities      entity.EntityRepository
	relationships relationship.RelationshipRepository
	scopes        *scope.Service
	config        EngineConfig
}

// EngineConfig contains configuration for the traversal engine
type EngineConfig struct {
	DefaultMaxHops     int // hop budget the HTTP layer applies when the caller passes none (default: 2)
	DefaultMaxEntities int // context entity cap applied when the caller passes none (default: 50)
	MaxKeywords        int // keywords taken from a context query (default: 5)
	MinKeywordLength   int // words must be strictly longer than this (default: 3)
}

// DefaultConfig returns default engine configuration
func DefaultConfig() EngineConfig {
	return EngineConfig{
		DefaultMaxHops:     2,
		DefaultMaxEntities: 50,
		MaxKeywords:        5,
		MinKeywordLength:   3,
	}
}

// NewEngine creates a new traversal engine
func NewEngine(
	logger ectologger.Logger,
	entities entity.EntityRepository,
	relationships relationship.RelationshipRepository,
	scopes *scope.Service,
	config EngineConfig,
) *Engine {
	return &Engine{
		logger:        logger,
		entities:      entities,
		relationships: relationships,
		scopes:        scopes,
		config:        config,
	}
}

// DefaultMaxHops returns the hop budget to use when a request does not set
// max_hops. A zero budget stays meaningful on Neighbors itself (start entity
// only), so the engine never substitutes the default on its own.
func (e *Engine) DefaultMaxHops() int {
	if e.config.DefaultMaxHops > 0 {
		return e.config.DefaultMaxHops
	}
	return 2
}

func (e *Engine) canAccess(principal *models.Principal, ent *models.Entity) bool {
	if principal == nil {
		return true
	}
	return e.scopes.CanAccessEntity(principal, ent)
}

// Neighbors expands breadth-first from a start entity up to maxHops hops and
// returns the discovered entity and relationship sets. When a principal is
// supplied, entities it cannot access are skipped silently and never enter
// the frontier, so an inaccessible entity walls off everything behind it.
func (e *Engine) Neighbors(ctx context.Context, principal *models.Principal, domainID, startID string, maxHops int) (*models.GraphResult, error) {
	ctx, span := tracing.StartSpan(ctx, "traversal.Engine.Neighbors")
	defer span.End()
	metrics.TraversalRequestsTotal.WithLabelValues("neighbors").Inc()

	if maxHops < 0 {
		maxHops = 0
	}

	start, err := e.entities.GetByID(ctx, domainID, startID)
	if err != nil {
		return nil, err
	}
	if !e.canAccess(principal, start) {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "entity not found")
	}

	visited := map[string]bool{start.ID: true}
	seenRels := map[string]bool{}
	resultEntities := []models.Entity{*start}
	resultRels := []models.Relationship{}

	frontier := []string{start.ID}
	for depth := 0; depth < maxHops && len(frontier) > 0; depth++ {
		rels, err := e.relationships.ListTouching(ctx, domainID, frontier)
		if err != nil {
			return nil, err
		}

		candidateIDs := []string{}
		candidateSeen := map[string]bool{}
		for _, rel := range rels {
			for _, id := range []string{rel.FromEntityID, rel.ToEntityID} {
				if !visited[id] && !candidateSeen[id] {
					candidateSeen[id] = true
					candidateIDs = append(candidateIDs, id)
				}
			}
		}

		neighbors, err := e.entities.GetByIDs(ctx, domainID, candidateIDs)
		if err != nil {
			return nil, err
		}

		next := []string{}
		for _, neighbor := range neighbors {
			if !e.canAccess(principal, neighbor) {
				continue
			}
			visited[neighbor.ID] = true
			resultEntities = append(resultEntities, *neighbor)
			next = append(next, neighbor.ID)
		}

		// Emit an edge once both endpoints are visible. Converging paths
		// rediscover edges; the seen set dedupes them.
		for _, rel := range rels {
			if seenRels[rel.ID] {
				continue
			}
			if visited[rel.FromEntityID] && visited[rel.ToEntityID] {
				seenRels[rel.ID] = true
				resultRels = append(resultRels, *rel)
			}
		}

		frontier = next
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"domain_id":     domainID,
		"start_id":      startID,
		"max_hops":      maxHops,
		"entities":      len(resultEntities),
		"relationships": len(resultRels),
	}).Debug("traversal complete")

	return &models.GraphResult{
		Entities:      resultEntities,
		Relationships: resultRels,
	}, nil
}

// Subgraph returns the entities from the given id set that exist and are
// accessible, silently dropping the rest. Partial results are the contract,
// never an error. With includeRelationships it adds every relationship whose
// endpoints both survived.
func (e *Engine) Subgraph(ctx context.Context, principal *models.Principal, domainID string, entityIDs []string, includeRelationships bool) (*models.GraphResult, error) {
	ctx, span := tracing.StartSpan(ctx, "traversal.Engine.Subgraph")
	defer span.End()
	metrics.TraversalRequestsTotal.WithLabelValues("subgraph").Inc()

	entities, err := e.entities.GetByIDs(ctx, domainID, entityIDs)
	if err != nil {
		return nil, err
	}

	kept := []models.Entity{}
	keptIDs := []string{}
	for _, ent := range entities {
		if !e.canAccess(principal, ent) {
			continue
		}
		kept = append(kept, *ent)
		keptIDs = append(keptIDs, ent.ID)
	}

	result := &models.GraphResult{
		Entities:      kept,
		Relationships: []models.Relationship{},
	}

	if includeRelationships && len(keptIDs) > 0 {
		rels, err := e.relationships.ListBetween(ctx, domainID, keptIDs)
		if err != nil {
			return nil, err
		}
		for _, rel := range rels {
			result.Relationships = append(result.Relationships, *rel)
		}
	}

	return result, nil
}

// ContextForQuery assembles a context bundle for a free-text query. Keyword
// substring matching only; relevance is match order, never semantic rank.
// maxTokens is accepted as a forward-compatible budget knob but the only
// enforced cap is maxEntities.
func (e *Engine) ContextForQuery(ctx context.Context, principal *models.Principal, domainID, query string, maxEntities, maxTokens int) (*models.QueryContextResult, error) {
	ctx, span := tracing.StartSpan(ctx, "traversal.Engine.ContextForQuery")
	defer span.End()
	metrics.TraversalRequestsTotal.WithLabelValues("context").Inc()

	if maxEntities < 1 {
		maxEntities = e.config.DefaultMaxEntities
	}

	keywords := e.extractKeywords(query)

	matched := []models.Entity{}
	matchedIDs := []string{}
	seen := map[string]bool{}

	for _, keyword := range keywords {
		if len(matched) >= maxEntities {
			break
		}

		found, err := e.entities.SearchByName(ctx, domainID, principal, keyword, maxEntities)
		if err != nil {
			return nil, err
		}

		for _, ent := range found {
			if seen[ent.ID] {
				continue
			}
			seen[ent.ID] = true
			matched = append(matched, *ent)
			matchedIDs = append(matchedIDs, ent.ID)
			if len(matched) >= maxEntities {
				break
			}
		}
	}

	rels := []models.Relationship{}
	if len(matchedIDs) > 0 {
		between, err := e.relationships.ListBetween(ctx, domainID, matchedIDs)
		if err != nil {
			return nil, err
		}
		for _, rel := range between {
			rels = append(rels, *rel)
		}
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"domain_id":     domainID,
		"keywords":      keywords,
		"entities":      len(matched),
		"relationships": len(rels),
	}).Debug("assembled query context")

	return &models.QueryContextResult{
		Entities:          matched,
		Relationships:     rels,
		ContextText:       renderContextText(matched, rels),
		EntityCount:       len(matched),
		RelationshipCount: len(rels),
	}, nil
}

func (e *Engine) extractKeywords(query string) []string {
	keywords := []string{}
	for _, word := range strings.Fields(query) {
		word = strings.Trim(word, ".,;:!?\"'()")
		if len(word) <= e.config.MinKeywordLength {
			continue
		}
		keywords = append(keywords, word)
		if len(keywords) >= e.config.MaxKeywords {
			break
		}
	}
	return keywords
}

func renderContextText(entities []models.Entity, relationships []models.Relationship) string {
	if len(entities) == 0 {
		return "No relevant context found."
	}

	names := make(map[string]string, len(entities))
	for _, ent := range entities {
		names[ent.ID] = ent.Name
	}

	var b strings.Builder
	b.WriteString("Relevant context:\n")
	for _, ent := range entities {
		b.WriteString(fmt.Sprintf("- %s (%s)", ent.Name, ent.EntityType))
		if props := renderProperties(ent.Properties); props != "" {
			b.WriteString(": ")
			b.WriteString(props)
		}
		b.WriteString("\n")
	}

	if len(relationships) > 0 {
		b.WriteString("\nRelationships:\n")
		for _, rel := range relationships {
			b.WriteString(fmt.Sprintf("- %s --[%s]--> %s\n", names[rel.FromEntityID], rel.RelationshipType, names[rel.ToEntityID]))
		}
	}

	return b.String()
}

// renderProperties flattens a property bag into a stable "k=v" listing.
// Keys are sorted; map order must never leak into the rendered context.
func renderProperties(properties map[string]any) string {
	if len(properties) == 0 {
		return ""
	}

	keys := make([]string, 0, len(properties))
	for k := range properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, properties[k]))
	}

	return strings.Join(parts, ", ")
}
