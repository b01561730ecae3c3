// Package jsonpath parses dot-separated field paths and resolves them
// against decoded JSON values.
package jsonpath

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	maxSourceLength = 256
	maxSegments     = 10
)

// Segment is one step of a FieldPath. A segment parsed from a base-10
// non-negative integer carries both Key (its string form) and Index, and
// is tried as a sequence index before being tried as a mapping key.
type Segment struct {
	Key      string `json:"key"`
	Index    int    `json:"index"`
	IsNumber bool   `json:"is_number"`
}

// FieldPath is an ordered sequence of segments obtained by splitting a
// dotted source string on ".".
type FieldPath struct {
	Source   string    `json:"source"`
	Segments []Segment `json:"-"`
}

// MarshalJSON renders a FieldPath as its dotted source string, matching
// the configuration file's own representation.
func (p FieldPath) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Source)
}

// Parse validates and decomposes a dotted field path.
func Parse(source string) (FieldPath, error) {
	if len(source) == 0 {
		return FieldPath{}, fmt.Errorf("field path must not be empty")
	}
	if len(source) > maxSourceLength {
		return FieldPath{}, fmt.Errorf("field path %q exceeds %d characters", source, maxSourceLength)
	}

	parts := strings.Split(source, ".")
	if len(parts) > maxSegments {
		return FieldPath{}, fmt.Errorf("field path %q has %d segments, max %d", source, len(parts), maxSegments)
	}

	segments := make([]Segment, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			return FieldPath{}, fmt.Errorf("field path %q contains an empty segment", source)
		}
		seg := Segment{Key: p}
		if n, err := strconv.Atoi(p); err == nil && n >= 0 && strconv.Itoa(n) == p {
			seg.Index = n
			seg.IsNumber = true
		}
		segments = append(segments, seg)
	}

	return FieldPath{Source: source, Segments: segments}, nil
}

// MustParse is Parse, panicking on error. Intended for config-load time use
// where the path has already been validated.
func MustParse(source string) FieldPath {
	p, err := Parse(source)
	if err != nil {
		panic(err)
	}
	return p
}

// Resolve walks value following path, returning the node found and whether
// it was found at all. An integer-looking segment is tried as a sequence
// index first; if the current node is a mapping instead, it is matched as
// a string key.
func Resolve(value interface{}, path FieldPath) (bool, interface{}) {
	current := value
	for _, seg := range path.Segments {
		switch node := current.(type) {
		case []interface{}:
			if !seg.IsNumber || seg.Index < 0 || seg.Index >= len(node) {
				return false, nil
			}
			current = node[seg.Index]
		case map[string]interface{}:
			v, ok := node[seg.Key]
			if !ok {
				return false, nil
			}
			current = v
		default:
			return false, nil
		}
	}
	return true, current
}
