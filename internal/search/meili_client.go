// Package search provides candidate retrieval over the institution registry.
package search

import (
	"context"
	"encoding/hex"
	"fmt"

	ms "github.com/meilisearch/meilisearch-go"
)

// ClientWrapper wraps Meilisearch client with compatible API for v1.5.x
type ClientWrapper struct {
	cli ms.ServiceManager
}

// NewClientWrapper creates new Meilisearch client wrapper
func NewClientWrapper(url, key string) *ClientWrapper {
	client := ms.New(url, ms.WithAPIKey(key))
	return &ClientWrapper{
		cli: client,
	}
}

// SearchIndex performs a filtered search on one index
func (c *ClientWrapper) SearchIndex(ctx context.Context, index string, q string, filter string, limit int64) (*ms.SearchResponse, error) {
	idx := c.cli.Index(index)

	// Skip MatchingStrategy; 1.5.x handles matching via typo tolerance
	req := &ms.SearchRequest{
		Limit:  limit,
		Filter: filter,
	}
	return idx.SearchWithContext(ctx, q, req)
}

// FilterActiveRegion creates the filter for active entries, optionally in one region
func FilterActiveRegion(region string) string {
	if region == "" {
		return "active = true"
	}
	return fmt.Sprintf("active = true AND region_code = %q", region)
}

// documentID maps a standard code to a valid Meilisearch document id.
// Hex keeps distinct codes distinct; codes like "A.1" and "A_1" must not collide.
func documentID(standardCode string) string {
	return "c" + hex.EncodeToString([]byte(standardCode))
}
