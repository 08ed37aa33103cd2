package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMediaBase = "http://localhost:1337"

func TestFlattenCMSResponseUnwrapsShells(t *testing.T) {
	input := map[string]interface{}{
		"data": map[string]interface{}{
			"id": float64(3),
			"attributes": map[string]interface{}{
				"title": "周年主题",
				"story": "一段故事",
			},
		},
	}

	flat, ok := FlattenCMSResponse(input, testMediaBase).(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3), flat["id"])
	assert.Equal(t, "周年主题", flat["title"])
	assert.Equal(t, "一段故事", flat["story"])
	assert.NotContains(t, flat, "attributes")
}

func TestFlattenCMSResponseCollapsesMediaToURL(t *testing.T) {
	input := map[string]interface{}{
		"id": float64(1),
		"attributes": map[string]interface{}{
			"coverUrl": map[string]interface{}{
				"data": map[string]interface{}{
					"id": float64(9),
					"attributes": map[string]interface{}{
						"url": "/uploads/cover.png",
					},
				},
			},
		},
	}

	flat, ok := FlattenCMSResponse(input, testMediaBase).(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "http://localhost:1337/uploads/cover.png", flat["coverUrl"])
}

func TestFlattenCMSResponseAbsolutizesImageLists(t *testing.T) {
	input := map[string]interface{}{
		"id": float64(1),
		"attributes": map[string]interface{}{
			"title": "星空灯",
			"images": []interface{}{
				map[string]interface{}{"url": "/uploads/a.png"},
				map[string]interface{}{"url": "https://cdn.example.com/b.png"},
				map[string]interface{}{"alt": "no url"}, // dropped
			},
		},
	}

	flat, ok := FlattenCMSResponse(input, testMediaBase).(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{
		"http://localhost:1337/uploads/a.png",
		"https://cdn.example.com/b.png",
	}, flat["images"])
	// coverUrl derived from the first image
	assert.Equal(t, "http://localhost:1337/uploads/a.png", flat["coverUrl"])
}

func TestFlattenCMSResponseHandlesArrays(t *testing.T) {
	input := []interface{}{
		map[string]interface{}{"id": float64(1), "attributes": map[string]interface{}{"title": "a"}},
		map[string]interface{}{"id": float64(2), "attributes": map[string]interface{}{"title": "b"}},
	}

	flat, ok := FlattenCMSResponse(input, testMediaBase).([]interface{})
	require.True(t, ok)
	require.Len(t, flat, 2)
	first := flat[0].(map[string]interface{})
	assert.Equal(t, "a", first["title"])
}

func TestFlattenCMSResponsePassesScalars(t *testing.T) {
	assert.Equal(t, "text", FlattenCMSResponse("text", testMediaBase))
	assert.Equal(t, float64(5), FlattenCMSResponse(float64(5), testMediaBase))
	assert.Nil(t, FlattenCMSResponse(nil, testMediaBase))
}
