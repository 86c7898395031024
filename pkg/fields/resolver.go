// Package fields resolves a project's logical field names to values inside
// heterogeneous submission payloads.
//
// Survey payloads are flat-ish JSON objects where form group prefixes survive
// as literal keys ("info_gerais/status"). A configured path may therefore be
// a literal key, or a nested path separated by '/' or '.'. Resolution tries
// the literal key first and only then walks the tree, so flattened and nested
// exports of the same form resolve identically.
package fields

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gustavoairestiago/cadastro-retorno/pkg/models"
)

// Resolver resolves logical field names against a single form's mapping.
type Resolver struct {
	mapping models.FieldMapping
}

// NewResolver creates a resolver for one form's field mapping.
func NewResolver(mapping models.FieldMapping) *Resolver {
	return &Resolver{mapping: mapping}
}

// Resolve returns the value for a logical field name, or ok=false when the
// payload has nothing at the configured path. Absence is never an error.
func (r *Resolver) Resolve(logical string, payload map[string]any) (any, bool) {
	return Lookup(payload, r.mapping.Path(logical))
}

// ResolveString is Resolve with the value coerced to a trimmed string.
// Integer question types arrive as JSON numbers, so numeric and boolean
// scalars are formatted; structured values report ok=false.
func (r *Resolver) ResolveString(logical string, payload map[string]any) (string, bool) {
	v, ok := r.Resolve(logical, payload)
	if !ok {
		return "", false
	}
	var s string
	switch v := v.(type) {
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case json.Number:
		s = v.String()
	case bool:
		s = strconv.FormatBool(v)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

// Lookup walks a payload by path. The path is tried as a literal key first,
// then split on '/' and '.' and walked through nested objects.
func Lookup(payload map[string]any, path string) (any, bool) {
	if payload == nil || path == "" {
		return nil, false
	}

	if v, ok := payload[path]; ok {
		return v, v != nil
	}

	parts := splitPath(path)
	if len(parts) < 2 {
		return nil, false
	}

	var current any = payload
	for _, part := range parts {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return current, current != nil
}

func splitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '.'
	})
}
