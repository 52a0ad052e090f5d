package models

import "strings"

// Bridge kinds written into an entity's source field by the integrity
// repair path.
const (
	BridgeKindProject = "project"
	BridgeKindTeam    = "team"
	BridgeKindUser    = "user"
	BridgeKindClient  = "client"
)

// Bridge encodes a provenance pointer from a graph entity back to the
// directory record it mirrors, in the form "{kind}:{id}".
func Bridge(kind, id string) string {
	return kind + ":" + id
}

// ParseBridge splits a source string written by Bridge. ok is false when the
// source does not follow the convention.
func ParseBridge(source string) (kind, id string, ok bool) {
	kind, id, ok = strings.Cut(source, ":")
	if !ok || kind == "" || id == "" {
		return "", "", false
	}
	return kind, id, true
}
