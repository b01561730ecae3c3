package filtering

import (
	"testing"

	"github.com/janwychowaniak/flowbridge/internal/jsonpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustField(t *testing.T, source string) jsonpath.FieldPath {
	t.Helper()
	p, err := jsonpath.Parse(source)
	require.NoError(t, err)
	return p
}

func TestEvaluate_AndAllMatch_Admitted(t *testing.T) {
	cfg := Config{
		DefaultAction: ActionDrop,
		Conditions: Conditions{
			Logic: LogicAND,
			Rules: []Rule{
				{Field: mustField(t, "objectType"), Operator: OpEquals, Value: "alert"},
			},
		},
	}
	body := map[string]interface{}{"objectType": "alert"}

	admitted, summary := Evaluate(cfg, body)

	assert.True(t, admitted)
	assert.Equal(t, []int{0}, summary.MatchedRules)
	assert.False(t, summary.DefaultActionApplied)
}

func TestEvaluate_NoMatch_DefaultDrop(t *testing.T) {
	cfg := Config{
		DefaultAction: ActionDrop,
		Conditions: Conditions{
			Logic: LogicAND,
			Rules: []Rule{
				{Field: mustField(t, "objectType"), Operator: OpEquals, Value: "alert"},
			},
		},
	}
	body := map[string]interface{}{"objectType": "incident"}

	admitted, summary := Evaluate(cfg, body)

	assert.False(t, admitted)
	assert.True(t, summary.DefaultActionApplied)
	assert.Nil(t, summary.MatchedRules)
}

func TestEvaluate_NoMatch_DefaultPass(t *testing.T) {
	cfg := Config{
		DefaultAction: ActionPass,
		Conditions: Conditions{
			Logic: LogicAND,
			Rules: []Rule{
				{Field: mustField(t, "objectType"), Operator: OpEquals, Value: "alert"},
			},
		},
	}
	body := map[string]interface{}{"objectType": "incident"}

	admitted, summary := Evaluate(cfg, body)

	assert.True(t, admitted)
	assert.True(t, summary.DefaultActionApplied)
}

func TestEvaluate_OrShortCircuits(t *testing.T) {
	cfg := Config{
		DefaultAction: ActionDrop,
		Conditions: Conditions{
			Logic: LogicOR,
			Rules: []Rule{
				{Field: mustField(t, "a"), Operator: OpEquals, Value: "x"},
				{Field: mustField(t, "b"), Operator: OpEquals, Value: "y"},
			},
		},
	}
	body := map[string]interface{}{"a": "x", "b": "never read"}

	admitted, summary := Evaluate(cfg, body)

	assert.True(t, admitted)
	assert.Equal(t, []int{0}, summary.MatchedRules)
	assert.Equal(t, 1, summary.RulesEvaluated)
}

func TestEvaluate_NotEquals_AbsentFieldIsTrue(t *testing.T) {
	cfg := Config{
		DefaultAction: ActionDrop,
		Conditions: Conditions{
			Logic: LogicAND,
			Rules: []Rule{
				{Field: mustField(t, "missing"), Operator: OpNotEquals, Value: "x"},
			},
		},
	}
	admitted, _ := Evaluate(cfg, map[string]interface{}{})
	assert.True(t, admitted)
}

func TestEvaluate_In(t *testing.T) {
	cfg := Config{
		DefaultAction: ActionDrop,
		Conditions: Conditions{
			Logic: LogicAND,
			Rules: []Rule{
				{Field: mustField(t, "severity"), Operator: OpIn, Value: []interface{}{"low", "medium", "high"}},
			},
		},
	}
	admitted, _ := Evaluate(cfg, map[string]interface{}{"severity": "medium"})
	assert.True(t, admitted)

	admitted, _ = Evaluate(cfg, map[string]interface{}{"severity": "critical"})
	assert.False(t, admitted)
}

func TestEvaluate_ContainsAny(t *testing.T) {
	cfg := Config{
		DefaultAction: ActionDrop,
		Conditions: Conditions{
			Logic: LogicAND,
			Rules: []Rule{
				{Field: mustField(t, "tags"), Operator: OpContainsAny, Value: []interface{}{"urgent"}},
			},
		},
	}
	admitted, _ := Evaluate(cfg, map[string]interface{}{"tags": []interface{}{"low", "urgent"}})
	assert.True(t, admitted)

	admitted, _ = Evaluate(cfg, map[string]interface{}{"tags": []interface{}{"low"}})
	assert.False(t, admitted)
}

func TestEvaluate_NumericComparison_CrossKind(t *testing.T) {
	cfg := Config{
		DefaultAction: ActionDrop,
		Conditions: Conditions{
			Logic: LogicAND,
			Rules: []Rule{
				{Field: mustField(t, "score"), Operator: OpLessThan, Value: 10},
			},
		},
	}
	// JSON decoding always produces float64; config side may be int.
	admitted, _ := Evaluate(cfg, map[string]interface{}{"score": float64(5)})
	assert.True(t, admitted)

	admitted, _ = Evaluate(cfg, map[string]interface{}{"score": float64(15)})
	assert.False(t, admitted)
}

func TestEvaluate_TypeMismatch_IsNonMatchNotError(t *testing.T) {
	cfg := Config{
		DefaultAction: ActionDrop,
		Conditions: Conditions{
			Logic: LogicAND,
			Rules: []Rule{
				{Field: mustField(t, "name"), Operator: OpLessThan, Value: 10},
			},
		},
	}
	admitted, summary := Evaluate(cfg, map[string]interface{}{"name": "not a number"})
	assert.False(t, admitted)
	assert.True(t, summary.DefaultActionApplied)
}

func TestIsValidOperator(t *testing.T) {
	assert.True(t, IsValidOperator(OpEquals))
	assert.True(t, IsValidOperator(OpContainsAny))
	assert.False(t, IsValidOperator(Operator("bogus")))
}
