package pagestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlatten_Nested(t *testing.T) {
	flat := Flatten(map[string]any{
		"id": float64(1),
		"repo": map[string]any{
			"id":   float64(9),
			"name": "core",
			"owner": map[string]any{
				"login": "octo",
			},
		},
	})

	assert.Equal(t, map[string]any{
		"id":               float64(1),
		"repo.id":          float64(9),
		"repo.name":        "core",
		"repo.owner.login": "octo",
	}, flat)
}

func TestFlatten_ArraysAndScalarsKept(t *testing.T) {
	flat := Flatten(map[string]any{
		"tags": []any{"a", "b"},
		"n":    nil,
	})
	assert.Equal(t, []any{"a", "b"}, flat["tags"])
	v, ok := flat["n"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestFlattenAll(t *testing.T) {
	rows := FlattenAll([]map[string]any{
		{"a": map[string]any{"b": 1}},
		{"c": 2},
	})
	assert.Equal(t, 1, rows[0]["a.b"])
	assert.Equal(t, 2, rows[1]["c"])
}
