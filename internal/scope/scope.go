/*
Package scope computes the set of entities a caller may discover.

The caller's scope arrives from the auth layer as an already-validated
set of group paths plus an admin flag; this package trusts it. Filtering
happens before ranking: an unauthorized entity must never appear in a
response, even unranked, so its existence and relevance never leak.
*/
package scope

import (
	"fmt"

	"github.com/mcpgw/registry/internal/store"
)

// CallerScope is the per-request authorization context. It is transient:
// derived from the caller's identity by the auth layer, never persisted.
type CallerScope struct {
	// AuthorizedGroups are the group paths the caller may see.
	AuthorizedGroups []string `json:"authorizedGroups"`

	// IsAdmin short-circuits filtering to all discoverable entities.
	IsAdmin bool `json:"isAdmin"`
}

// AllowedIDs returns the ids of the given kinds that the caller may
// discover: discoverable entities that are public, in one of the
// caller's groups, or everything for admins. Tools inherit visibility
// and enablement from their parent server.
//
// An empty result is not an error; it renders the same as "no semantic
// match" by design.
func AllowedIDs(st store.Store, caller CallerScope, kinds []store.Kind) (map[string]struct{}, error) {
	wantKind := make(map[store.Kind]struct{}, len(kinds))
	for _, k := range kinds {
		wantKind[k] = struct{}{}
	}
	if len(wantKind) == 0 {
		wantKind[store.KindServer] = struct{}{}
		wantKind[store.KindTool] = struct{}{}
		wantKind[store.KindAgent] = struct{}{}
	}

	entities, err := st.ListEntities(store.Filter{DiscoverableOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list discoverable entities: %w", err)
	}

	var members map[string]struct{}
	if !caller.IsAdmin {
		groups := append([]string{store.PublicGroup}, caller.AuthorizedGroups...)
		members, err = st.MemberIDs(groups)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve group members: %w", err)
		}
	}

	allowed := make(map[string]struct{})
	_, wantTools := wantKind[store.KindTool]

	for _, e := range entities {
		if !caller.IsAdmin {
			if _, ok := members[e.ID]; !ok {
				continue
			}
		}

		if _, ok := wantKind[e.Kind]; ok {
			allowed[e.ID] = struct{}{}
		}

		if e.Kind == store.KindServer && wantTools {
			tools, err := st.ToolsFor(e.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to list tools for %s: %w", e.ID, err)
			}
			for _, t := range tools {
				allowed[store.ToolID(e.ID, t.Name)] = struct{}{}
			}
		}
	}

	return allowed, nil
}
