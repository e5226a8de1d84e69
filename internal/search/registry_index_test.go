package search

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/institution-matcher/app/models"
	"github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegistryDocument(t *testing.T) {
	hash := "abc123"
	region := "11"
	e := models.RegistryEntry{
		StandardCode:  "HC/11-680",
		CanonicalName: "서울특별시 강남구",
		AddressHash:   &hash,
		RegionCode:    &region,
		Active:        true,
		Aliases:       []string{"강남구 보건"},
		RegisteredAt:  time.UnixMilli(1700000000000).UTC(),
	}

	doc := RegistryDocument(e)
	assert.Equal(t, "c"+hex.EncodeToString([]byte("HC/11-680")), doc["id"])
	assert.Equal(t, "HC/11-680", doc["standard_code"])
	assert.Equal(t, "11", doc["region_code"])
	assert.Equal(t, int64(1700000000000), doc["registered_at"])
	assert.NotEmpty(t, doc["name_romanized"])
	assert.NotEqual(t, e.CanonicalName, doc["name_romanized"])
}

func TestRegistryIndex_ParseSearchResults(t *testing.T) {
	ri := &RegistryIndex{logger: zap.NewNop()}
	resp := &meilisearch.SearchResponse{
		Hits: []interface{}{
			map[string]interface{}{
				"standard_code":  "A1",
				"canonical_name": "서울특별시 강남구",
				"address_hash":   "",
				"region_code":    "11",
				"active":         true,
				"aliases":        []interface{}{"강남 보건"},
				"registered_at":  float64(1700000000000),
			},
			map[string]interface{}{"canonical_name": "코드 없음"},
			"not a map",
		},
	}

	entries := ri.parseSearchResults(resp)
	require.Len(t, entries, 1)
	assert.Equal(t, "A1", entries[0].StandardCode)
	assert.Nil(t, entries[0].AddressHash)
	assert.Equal(t, "11", entries[0].Region())
	assert.Equal(t, []string{"강남 보건"}, entries[0].Aliases)
	assert.Equal(t, int64(1700000000000), entries[0].RegisteredAt.UnixMilli())
}

func TestFilterActiveRegion(t *testing.T) {
	assert.Equal(t, "active = true", FilterActiveRegion(""))
	assert.Equal(t, `active = true AND region_code = "11"`, FilterActiveRegion("11"))
}

func TestDocumentID_DistinctCodes(t *testing.T) {
	ids := map[string]string{}
	for _, code := range []string{"A.1", "A_1", "A/1", "A 1", "가1"} {
		id := documentID(code)
		assert.Regexp(t, `^[A-Za-z0-9_-]+$`, id)
		prev, dup := ids[id]
		assert.False(t, dup, "%s collides with %s", code, prev)
		ids[id] = code
	}
}
