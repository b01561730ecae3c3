// Package config loads and validates FlowBridge's YAML configuration file
// into a strongly-typed, immutable Config.
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/janwychowaniak/flowbridge/internal/common/validation"
	"github.com/janwychowaniak/flowbridge/internal/filtering"
	"github.com/janwychowaniak/flowbridge/internal/jsonpath"
	"github.com/janwychowaniak/flowbridge/internal/routing"
	"gopkg.in/yaml.v3"
)

const maxFileSize = 1 << 20 // 1 MiB

var (
	hostPattern        = regexp.MustCompile(`^[a-zA-Z0-9.\-]+$`)
	logRotationPattern = regexp.MustCompile(`^(\d+)(kb|mb|gb)$`)
)

// GeneralConfig is the top-level "general" section.
type GeneralConfig struct {
	RouteTimeout int    `json:"route_timeout"`
	LogRotation  string `json:"log_rotation"`
}

// ServerConfig is the top-level "server" section.
type ServerConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Workers  int    `json:"workers"`
	LogLevel string `json:"log_level"`
}

// Config is the fully validated, immutable configuration tree.
type Config struct {
	General   GeneralConfig          `json:"general"`
	Server    ServerConfig           `json:"server"`
	Filtering filtering.Config       `json:"filtering"`
	Routes    []routing.RouteMapping `json:"routes"`
}

type rawGeneral struct {
	RouteTimeout int    `yaml:"route_timeout"`
	LogRotation  string `yaml:"log_rotation"`
}

type rawServer struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Workers  int    `yaml:"workers"`
	LogLevel string `yaml:"log_level"`
}

type rawRule struct {
	Field    string      `yaml:"field"`
	Operator string      `yaml:"operator"`
	Value    interface{} `yaml:"value"`
}

type rawConditions struct {
	Logic string    `yaml:"logic"`
	Rules []rawRule `yaml:"rules"`
}

type rawFiltering struct {
	DefaultAction string        `yaml:"default_action"`
	Conditions    rawConditions `yaml:"conditions"`
}

type rawRouteMapping struct {
	Field    string    `yaml:"field"`
	Mappings yaml.Node `yaml:"mappings"`
}

// Load reads, parses, and validates the configuration file at path,
// accumulating every validation failure before returning.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ConfigError: cannot read %s: %w", path, err)
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("ConfigError: %s exceeds %d bytes", path, maxFileSize)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("ConfigError: %s is not valid UTF-8", path)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("ConfigError: invalid YAML in %s: %w", path, err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("ConfigError: %s is empty", path)
	}
	docNode := root.Content[0]

	v := validation.NewValidator()

	sections, err := topLevelSections(docNode)
	if err != nil {
		return nil, fmt.Errorf("ConfigError: %w", err)
	}
	checkKnownSections(v, sections)

	var general rawGeneral
	if n, ok := sections["general"]; ok {
		decodeInto(v, "general", n, &general)
	} else {
		v.Validate(func() error { return fmt.Errorf("general: section is required") })
	}

	var server rawServer
	if n, ok := sections["server"]; ok {
		decodeInto(v, "server", n, &server)
	} else {
		v.Validate(func() error { return fmt.Errorf("server: section is required") })
	}

	var filteringRaw rawFiltering
	if n, ok := sections["filtering"]; ok {
		decodeInto(v, "filtering", n, &filteringRaw)
	} else {
		v.Validate(func() error { return fmt.Errorf("filtering: section is required") })
	}

	var routesRaw []rawRouteMapping
	if n, ok := sections["routes"]; ok {
		decodeInto(v, "routes", n, &routesRaw)
	} else {
		v.Validate(func() error { return fmt.Errorf("routes: section is required") })
	}

	validateGeneral(v, general)
	validateServer(v, server)
	filteringCfg := validateFiltering(v, filteringRaw)
	routeMappings := validateRoutes(v, routesRaw)

	if v.HasErrors() {
		return nil, formatValidationErrors(path, v)
	}

	return &Config{
		General:   GeneralConfig{RouteTimeout: general.RouteTimeout, LogRotation: general.LogRotation},
		Server:    ServerConfig{Host: server.Host, Port: server.Port, Workers: server.Workers, LogLevel: server.LogLevel},
		Filtering: filteringCfg,
		Routes:    routeMappings,
	}, nil
}

func topLevelSections(doc *yaml.Node) (map[string]*yaml.Node, error) {
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("top-level document must be a mapping")
	}
	sections := make(map[string]*yaml.Node)
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i].Value
		sections[key] = doc.Content[i+1]
	}
	return sections, nil
}

var knownSections = map[string]bool{"general": true, "server": true, "filtering": true, "routes": true}

func checkKnownSections(v *validation.Validator, sections map[string]*yaml.Node) {
	for key := range sections {
		key := key
		if !knownSections[key] {
			v.Validate(func() error { return fmt.Errorf("unknown top-level section %q", key) })
		}
	}
}

func decodeInto(v *validation.Validator, section string, node *yaml.Node, out interface{}) {
	if err := node.Decode(out); err != nil {
		v.Validate(func() error {
			return fmt.Errorf("%s (line %d, column %d): %v", section, node.Line, node.Column, err)
		})
	}
}

func validateGeneral(v *validation.Validator, g rawGeneral) {
	v.ValidateIf(g.RouteTimeout < 1 || g.RouteTimeout > 30, func() error {
		return fmt.Errorf("general.route_timeout: must be between 1 and 30 seconds, got %d", g.RouteTimeout)
	})

	m := logRotationPattern.FindStringSubmatch(g.LogRotation)
	if m == nil {
		v.Validate(func() error {
			return fmt.Errorf("general.log_rotation: %q does not match \\d+(kb|mb|gb)", g.LogRotation)
		})
		return
	}
	magnitude, _ := strconv.Atoi(m[1])
	bytesVal := magnitude
	switch m[2] {
	case "kb":
		bytesVal = magnitude * 1024
	case "mb":
		bytesVal = magnitude * 1024 * 1024
	case "gb":
		bytesVal = magnitude * 1024 * 1024 * 1024
	}
	const minBytes = 100 * 1024
	const maxBytes = 1024 * 1024 * 1024
	v.ValidateIf(bytesVal < minBytes || bytesVal > maxBytes, func() error {
		return fmt.Errorf("general.log_rotation: %q outside [100kb, 1gb]", g.LogRotation)
	})
}

func validateServer(v *validation.Validator, s rawServer) {
	v.ValidateIf(!hostPattern.MatchString(s.Host), func() error {
		return fmt.Errorf("server.host: %q is not a valid hostname", s.Host)
	})
	v.ValidateIf(s.Port < 1 || s.Port > 65535, func() error {
		return fmt.Errorf("server.port: must be in [1,65535], got %d", s.Port)
	})
	workers := s.Workers
	if workers == 0 {
		workers = 1
	}
	v.ValidateIf(workers < 1, func() error {
		return fmt.Errorf("server.workers: must be >= 1, got %d", s.Workers)
	})
	v.RequireOneOf(s.LogLevel, []string{"debug", "info", "warn", "error"}, "server.log_level")
}

func validateFiltering(v *validation.Validator, raw rawFiltering) filtering.Config {
	v.RequireOneOf(raw.DefaultAction, []string{"drop", "pass"}, "filtering.default_action")
	v.RequireOneOf(raw.Conditions.Logic, []string{"AND", "OR"}, "filtering.conditions.logic")

	v.ValidateIf(len(raw.Conditions.Rules) == 0, func() error {
		return fmt.Errorf("filtering.conditions.rules: must be non-empty")
	})

	rules := make([]filtering.Rule, 0, len(raw.Conditions.Rules))
	for i, r := range raw.Conditions.Rules {
		i, r := i, r
		rule, err := validateRule(r, i)
		if err != nil {
			v.Validate(func() error { return err })
			continue
		}
		rules = append(rules, rule)
	}

	return filtering.Config{
		DefaultAction: filtering.DefaultAction(raw.DefaultAction),
		Conditions: filtering.Conditions{
			Logic: filtering.Logic(raw.Conditions.Logic),
			Rules: rules,
		},
	}
}

func validateRule(r rawRule, index int) (filtering.Rule, error) {
	path, err := jsonpath.Parse(r.Field)
	if err != nil {
		return filtering.Rule{}, fmt.Errorf("filtering.conditions.rules[%d].field: %w", index, err)
	}

	op := filtering.Operator(r.Operator)
	if !filtering.IsValidOperator(op) {
		return filtering.Rule{}, fmt.Errorf("filtering.conditions.rules[%d].operator: %q is not recognized", index, r.Operator)
	}

	switch op {
	case filtering.OpLessThan, filtering.OpGreaterThan:
		if !isNumeric(r.Value) {
			return filtering.Rule{}, fmt.Errorf("filtering.conditions.rules[%d]: operator %q requires a numeric value", index, r.Operator)
		}
	case filtering.OpIn, filtering.OpContainsAny:
		list, ok := r.Value.([]interface{})
		if !ok || len(list) == 0 {
			return filtering.Rule{}, fmt.Errorf("filtering.conditions.rules[%d]: operator %q requires a non-empty list", index, r.Operator)
		}
		if len(list) > 100 {
			return filtering.Rule{}, fmt.Errorf("filtering.conditions.rules[%d]: list value exceeds 100 items", index)
		}
		for _, item := range list {
			if !isScalar(item) {
				return filtering.Rule{}, fmt.Errorf("filtering.conditions.rules[%d]: list items must be scalars", index)
			}
		}
	case filtering.OpEquals, filtering.OpNotEquals:
		if !isScalar(r.Value) {
			return filtering.Rule{}, fmt.Errorf("filtering.conditions.rules[%d]: operator %q requires a scalar value", index, r.Operator)
		}
	}

	return filtering.Rule{Field: path, Operator: op, Value: r.Value}, nil
}

func validateRoutes(v *validation.Validator, raw []rawRouteMapping) []routing.RouteMapping {
	mappings := make([]routing.RouteMapping, 0, len(raw))
	for i, rm := range raw {
		i, rm := i, rm
		path, err := jsonpath.Parse(rm.Field)
		if err != nil {
			v.Validate(func() error { return fmt.Errorf("routes[%d].field: %w", i, err) })
			continue
		}

		if rm.Mappings.Kind != yaml.MappingNode {
			v.Validate(func() error { return fmt.Errorf("routes[%d].mappings: must be a mapping", i) })
			continue
		}

		seen := make(map[string]bool)
		entries := make([]routing.MappingEntry, 0, len(rm.Mappings.Content)/2)
		for j := 0; j+1 < len(rm.Mappings.Content); j += 2 {
			keyNode, valNode := rm.Mappings.Content[j], rm.Mappings.Content[j+1]
			key := keyNode.Value
			if seen[key] {
				v.Validate(func() error { return fmt.Errorf("routes[%d].mappings: duplicate key %q", i, key) })
				continue
			}
			seen[key] = true

			dest, err := validateDestinationURL(valNode.Value)
			if err != nil {
				line := valNode.Line
				v.Validate(func() error {
					return fmt.Errorf("routes[%d].mappings[%q] (line %d): %w", i, key, line, err)
				})
				continue
			}
			entries = append(entries, routing.MappingEntry{Key: key, URL: dest})
		}

		if len(entries) == 0 {
			v.Validate(func() error { return fmt.Errorf("routes[%d].mappings: must be non-empty", i) })
		}
		if len(entries) > 100 {
			v.Validate(func() error { return fmt.Errorf("routes[%d].mappings: exceeds 100 entries", i) })
		}

		mappings = append(mappings, routing.RouteMapping{Field: path, Mappings: entries})
	}
	return mappings
}

func validateDestinationURL(raw string) (*url.URL, error) {
	if len(raw) == 0 || len(raw) > 2048 {
		return nil, fmt.Errorf("must be non-empty and at most 2048 characters")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("not a valid URL: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("must have a non-empty host")
	}
	if u.User != nil {
		return nil, fmt.Errorf("must not contain userinfo")
	}
	return u, nil
}

func isNumeric(v interface{}) bool {
	switch v.(type) {
	case int, int64, float64, float32:
		return true
	default:
		return false
	}
}

func isScalar(v interface{}) bool {
	switch v.(type) {
	case string, int, int64, float64, float32, bool:
		return true
	default:
		return false
	}
}

func formatValidationErrors(path string, v *validation.Validator) error {
	errs := v.Errors()
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return fmt.Errorf("ConfigError: %s failed validation:\n  - %s", path, strings.Join(parts, "\n  - "))
}
