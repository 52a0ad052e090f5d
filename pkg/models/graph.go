package models

// GraphResult is the discovered entity and relationship sets from a
// traversal. It carries no path structure.
type GraphResult struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
}

// SubgraphRequest extracts the subgraph induced by a set of entity ids.
// Missing or inaccessible ids are dropped, never an error.
type SubgraphRequest struct {
	EntityIDs            []string `json:"entity_ids" validate:"required,min=1"`
	IncludeRelationships bool     `json:"include_relationships"`
}

// QueryContextRequest assembles a context bundle for a free-text query.
type QueryContextRequest struct {
	Query       string `json:"query" validate:"required"`
	MaxEntities int    `json:"max_entities,omitempty" validate:"omitempty,gte=1"`
	MaxTokens   int    `json:"max_tokens,omitempty" validate:"omitempty,gte=1"`
}

// QueryContextResult is the assembled context bundle. Relevance is keyword
// substring match order; there is no semantic ranking.
type QueryContextResult struct {
	Entities          []Entity       `json:"entities"`
	Relationships     []Relationship `json:"relationships"`
	ContextText       string         `json:"context_text"`
	EntityCount       int            `json:"entity_count"`
	RelationshipCount int            `json:"relationship_count"`
}
