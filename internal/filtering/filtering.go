// Package filtering implements the typed-operator predicate engine that
// decides whether an inbound document is admitted into routing/forwarding.
package filtering

import (
	"fmt"

	"github.com/janwychowaniak/flowbridge/internal/jsonpath"
)

// Operator is one of the six recognized predicate operators.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpIn          Operator = "in"
	OpContainsAny Operator = "contains_any"
	OpLessThan    Operator = "less_than"
	OpGreaterThan Operator = "greater_than"
)

// IsValidOperator reports whether op is one of the six recognized kinds.
func IsValidOperator(op Operator) bool {
	switch op {
	case OpEquals, OpNotEquals, OpIn, OpContainsAny, OpLessThan, OpGreaterThan:
		return true
	default:
		return false
	}
}

// Rule is a single predicate: a field path, an operator, and the
// configured right-hand value.
type Rule struct {
	Field    jsonpath.FieldPath `json:"field"`
	Operator Operator           `json:"operator"`
	Value    interface{}        `json:"value"`
}

// Logic combines a Conditions list.
type Logic string

const (
	LogicAND Logic = "AND"
	LogicOR  Logic = "OR"
)

// Conditions is a non-empty list of rules combined by Logic.
type Conditions struct {
	Logic Logic  `json:"logic"`
	Rules []Rule `json:"rules"`
}

// DefaultAction is the verdict applied when Conditions evaluates false.
type DefaultAction string

const (
	ActionDrop DefaultAction = "drop"
	ActionPass DefaultAction = "pass"
)

// Config is the filtering section of the loaded configuration.
type Config struct {
	DefaultAction DefaultAction `json:"default_action"`
	Conditions    Conditions    `json:"conditions"`
}

// Summary reports the diagnostics of one evaluation.
type Summary struct {
	RulesEvaluated       int   `json:"rules_evaluated"`
	MatchedRules         []int `json:"matched_rules"`
	DefaultActionApplied bool  `json:"default_action_applied"`
}

// Evaluate runs cfg's conditions against body and returns whether the
// document is admitted, plus a diagnostic summary.
func Evaluate(cfg Config, body map[string]interface{}) (bool, Summary) {
	combined, matched, evaluated := evaluateConditions(cfg.Conditions, body)

	summary := Summary{
		RulesEvaluated:       evaluated,
		MatchedRules:         matched,
		DefaultActionApplied: !combined,
	}

	if combined {
		return true, summary
	}
	return cfg.DefaultAction == ActionPass, summary
}

func evaluateConditions(c Conditions, body map[string]interface{}) (bool, []int, int) {
	var matched []int
	evaluated := 0

	switch c.Logic {
	case LogicOR:
		for i, rule := range c.Rules {
			evaluated++
			if evaluateRule(rule, body) {
				matched = append(matched, i)
				return true, matched, evaluated
			}
		}
		return false, matched, evaluated
	default: // AND
		for i, rule := range c.Rules {
			evaluated++
			if !evaluateRule(rule, body) {
				return false, matched, evaluated
			}
			matched = append(matched, i)
		}
		return true, matched, evaluated
	}
}

func evaluateRule(rule Rule, body map[string]interface{}) bool {
	found, value := jsonpath.Resolve(body, rule.Field)

	switch rule.Operator {
	case OpEquals:
		return found && deepEqual(value, rule.Value)
	case OpNotEquals:
		return !found || !deepEqual(value, rule.Value)
	case OpIn:
		if !found {
			return false
		}
		list, ok := rule.Value.([]interface{})
		if !ok {
			return false
		}
		for _, item := range list {
			if deepEqual(value, item) {
				return true
			}
		}
		return false
	case OpContainsAny:
		if !found {
			return false
		}
		seq, ok := value.([]interface{})
		if !ok {
			return false
		}
		list, ok := rule.Value.([]interface{})
		if !ok {
			return false
		}
		for _, v := range seq {
			for _, item := range list {
				if deepEqual(v, item) {
					return true
				}
			}
		}
		return false
	case OpLessThan:
		lhs, ok1 := toFloat64(value)
		rhs, ok2 := toFloat64(rule.Value)
		return found && ok1 && ok2 && lhs < rhs
	case OpGreaterThan:
		lhs, ok1 := toFloat64(value)
		rhs, ok2 := toFloat64(rule.Value)
		return found && ok1 && ok2 && lhs > rhs
	default:
		return false
	}
}

// deepEqual compares two decoded JSON scalars, cross-comparing numeric
// kinds by value rather than by Go type.
func deepEqual(a, b interface{}) bool {
	af, aIsNum := toFloat64(a)
	bf, bIsNum := toFloat64(b)
	if aIsNum && bIsNum {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b) && sameKind(a, b)
}

func sameKind(a, b interface{}) bool {
	_, aBool := a.(bool)
	_, bBool := b.(bool)
	if aBool != bBool {
		return false
	}
	return true
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
