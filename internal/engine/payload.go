package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Payload is the opaque, run-wide input handed to every callback. Each task
// receives its own deep copy, so a callback may mutate it freely.
type Payload map[string]any

// Clone returns a deep copy. Nested maps and slices of the shapes produced
// by JSON, YAML and the CLI are copied; other values are shared.
func (p Payload) Clone() Payload {
	if p == nil {
		return Payload{}
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Payload:
		return t.Clone()
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case map[string]string:
		m := make(map[string]string, len(t))
		for k, e := range t {
			m[k] = e
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// StringValue returns the string value at key, or def when absent.
func (p Payload) StringValue(key, def string) string {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

// IntValue returns the integer value at key, or def when absent or unparsable.
// Strings are accepted so values passed as --payload key=value work.
func (p Payload) IntValue(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// ParsePayload builds a Payload from key=value pairs.
func ParsePayload(pairs []string) (Payload, error) {
	p := Payload{}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid payload entry %q: want key=value", pair)
		}
		p[k] = v
	}
	return p, nil
}
