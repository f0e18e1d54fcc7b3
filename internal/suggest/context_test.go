package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectContextNestedMaps(t *testing.T) {
	snap := CollectContext(map[string]any{
		"project": map[string]any{
			"title":       "Road maintenance",
			"description": "Yearly maintenance of regional roads",
		},
		"cofinancing": map[string]any{
			"program": "EU Cohesion Fund",
			"cofinancers": []any{
				map[string]any{"name": "Ministry of Infrastructure"},
				"Municipality",
			},
		},
		"lot":         map[string]any{"title": "Lot 2", "index": 2},
		"procurement": map[string]any{"type": "open procedure", "cpv_code": "45233141"},
		"criteria":    map[string]any{"price": true, "quality": false, "deadline": true},
	})

	assert.Equal(t, "Road maintenance", snap.ProjectTitle)
	assert.Equal(t, "EU Cohesion Fund", snap.FundingProgram)
	assert.ElementsMatch(t, []string{"Ministry of Infrastructure", "Municipality"}, snap.Cofinancers)
	assert.Equal(t, "Lot 2", snap.LotTitle)
	assert.Equal(t, 2, snap.LotIndex)
	assert.Equal(t, "45233141", snap.CPVCode)
	assert.ElementsMatch(t, []string{"price", "deadline"}, snap.EvaluationCriteria)
}

func TestCollectContextDottedKeys(t *testing.T) {
	snap := CollectContext(map[string]any{
		"project.title":    "Flat form",
		"procurement.type": "restricted",
		"lot.index":        "3",
	})

	assert.Equal(t, "Flat form", snap.ProjectTitle)
	assert.Equal(t, "restricted", snap.ProcurementType)
	assert.Equal(t, 3, snap.LotIndex)
}

func TestCollectContextIgnoresUnknownAndEmpty(t *testing.T) {
	snap := CollectContext(map[string]any{
		"unrelated": "value",
		"project":   map[string]any{"owner": "someone"},
	})

	assert.Empty(t, snap.ProjectTitle)
	assert.Empty(t, snap.ContextUsed())
	assert.Empty(t, snap.keywords())
}

func TestKeywordsOrderAndContent(t *testing.T) {
	snap := Snapshot{
		ProjectTitle:    "Harbor dredging",
		ProcurementType: "open procedure",
		Cofinancers:     []string{"Port Authority"},
	}

	kw := snap.keywords()
	assert.Equal(t, []string{"Harbor dredging", "open procedure", "Port Authority"}, kw)
}
