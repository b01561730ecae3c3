// Package routing implements the first-mapping-only routing table that
// selects a destination URL from an extracted field value.
package routing

import (
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/janwychowaniak/flowbridge/internal/jsonpath"
)

// MappingEntry is one ordered (key, destination) pair within a RouteMapping.
type MappingEntry struct {
	Key string   `json:"key"`
	URL *url.URL `json:"url"`
}

// MarshalJSON renders MappingEntry's URL as its string form rather than
// url.URL's exported fields.
func (m MappingEntry) MarshalJSON() ([]byte, error) {
	type alias struct {
		Key string `json:"key"`
		URL string `json:"url"`
	}
	return json.Marshal(alias{Key: m.Key, URL: m.URL.String()})
}

// RouteMapping is a field path paired with its ordered lookup table.
type RouteMapping struct {
	Field    jsonpath.FieldPath `json:"field"`
	Mappings []MappingEntry     `json:"mappings"`
}

// Diagnostic carries the information surfaced in routing_context/routing_summary.
type Diagnostic struct {
	Field        string      `json:"field"`
	RoutingValue interface{} `json:"routing_value"`
	RulesChecked int         `json:"rules_checked"`
}

// Select resolves the routing field against body using the first entry of
// routes only; additional entries are ignored per the documented behavior.
// The lookup key for a found value is its canonical JSON lexical form:
// strings verbatim, numbers and booleans in canonical form.
func Select(body map[string]interface{}, routes []RouteMapping) (bool, string, Diagnostic) {
	if len(routes) == 0 {
		return false, "", Diagnostic{RulesChecked: 0}
	}

	mapping := routes[0]
	diag := Diagnostic{Field: mapping.Field.Source, RulesChecked: 1}

	found, value := jsonpath.Resolve(body, mapping.Field)
	if !found {
		diag.RoutingValue = nil
		return false, "", diag
	}

	key := stringifyKey(value)
	diag.RoutingValue = key

	for _, entry := range mapping.Mappings {
		if entry.Key == key {
			return true, entry.URL.String(), diag
		}
	}
	return false, "", diag
}

// stringifyKey renders a resolved JSON value as a routing lookup key.
func stringifyKey(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return ""
	}
}
