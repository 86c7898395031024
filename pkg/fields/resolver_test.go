package fields

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gustavoairestiago/cadastro-retorno/pkg/models"
)

func TestResolverLiteralKeyBeforePathWalk(t *testing.T) {
	resolver := NewResolver(models.FieldMapping{
		"status": "info_gerais/status",
	})

	// Flattened export: the group prefix survives as a literal key.
	payload := map[string]any{
		"info_gerais/status": "01",
	}

	v, ok := resolver.Resolve("status", payload)
	require.True(t, ok)
	assert.Equal(t, "01", v)
}

func TestResolverNestedPathWalk(t *testing.T) {
	resolver := NewResolver(models.FieldMapping{
		"status": "info_gerais/status",
	})

	payload := map[string]any{
		"info_gerais": map[string]any{
			"status": "04",
		},
	}

	v, ok := resolver.Resolve("status", payload)
	require.True(t, ok)
	assert.Equal(t, "04", v)
}

func TestResolverLiteralKeyWinsOverNested(t *testing.T) {
	resolver := NewResolver(models.FieldMapping{
		"status": "grp/status",
	})

	payload := map[string]any{
		"grp/status": "literal",
		"grp": map[string]any{
			"status": "nested",
		},
	}

	v, ok := resolver.Resolve("status", payload)
	require.True(t, ok)
	assert.Equal(t, "literal", v)
}

func TestResolverDotSeparatedPath(t *testing.T) {
	resolver := NewResolver(models.FieldMapping{
		"household_id": "registro.domicilio_id",
	})

	payload := map[string]any{
		"registro": map[string]any{
			"domicilio_id": "D-42",
		},
	}

	v, ok := resolver.Resolve("household_id", payload)
	require.True(t, ok)
	assert.Equal(t, "D-42", v)
}

func TestResolverFallsBackToLogicalName(t *testing.T) {
	resolver := NewResolver(nil)

	payload := map[string]any{
		"household_id": "abc",
	}

	v, ok := resolver.Resolve("household_id", payload)
	require.True(t, ok)
	assert.Equal(t, "abc", v)
}

func TestResolverAbsenceIsNotAnError(t *testing.T) {
	resolver := NewResolver(models.FieldMapping{
		"status": "grp/status",
	})

	cases := []map[string]any{
		nil,
		{},
		{"grp": map[string]any{}},
		{"grp": "not-an-object"},
		{"grp/status": nil},
	}

	for _, payload := range cases {
		_, ok := resolver.Resolve("status", payload)
		assert.False(t, ok)
	}
}

func TestResolveStringTrimsAndRejectsBlank(t *testing.T) {
	resolver := NewResolver(nil)

	s, ok := resolver.ResolveString("status", map[string]any{"status": "  01  "})
	require.True(t, ok)
	assert.Equal(t, "01", s)

	_, ok = resolver.ResolveString("status", map[string]any{"status": "   "})
	assert.False(t, ok)
}

func TestResolveStringCoercesScalars(t *testing.T) {
	resolver := NewResolver(nil)

	cases := []struct {
		value any
		want  string
	}{
		{float64(123), "123"},
		{4.5, "4.5"},
		{7, "7"},
		{int64(8), "8"},
		{json.Number("42"), "42"},
		{true, "true"},
	}
	for _, c := range cases {
		s, ok := resolver.ResolveString("household_id", map[string]any{"household_id": c.value})
		require.True(t, ok, "value %v", c.value)
		assert.Equal(t, c.want, s)
	}

	// Structured values still have no string form.
	_, ok := resolver.ResolveString("household_id", map[string]any{"household_id": map[string]any{}})
	assert.False(t, ok)
	_, ok = resolver.ResolveString("household_id", map[string]any{"household_id": []any{"a"}})
	assert.False(t, ok)
}
