package node

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yu-iskw/dbt-fusion/internal/selector"
)

func model() *Node {
	return &Node{
		UniqueID:     "model.shop.orders",
		Name:         "orders",
		ResourceType: ResourceModel,
		PackageName:  "shop",
		FQN:          []string{"shop", "marts", "orders"},
		Path:         "models/marts/orders.sql",
		Tags:         []string{"nightly", "finance"},
		Config: map[string]any{
			"materialized": "table",
			"enabled":      true,
			"meta":         map[string]any{"owner": "data-eng"},
			"grants":       []any{"reporter", "analyst"},
		},
		Group:  "finance",
		Access: "public",
	}
}

func crit(method selector.MethodName, value string, args ...string) *selector.Criteria {
	return &selector.Criteria{Method: method, Value: value, MethodArgs: args}
}

func TestMatches(t *testing.T) {
	n := model()
	tests := []struct {
		name string
		c    *selector.Criteria
		want bool
	}{
		{"fqn exact", crit(selector.MethodFqn, "shop.marts.orders"), true},
		{"fqn by name", crit(selector.MethodFqn, "orders"), true},
		{"fqn prefix", crit(selector.MethodFqn, "shop.marts"), true},
		{"fqn partial segment", crit(selector.MethodFqn, "shop.mar"), false},
		{"fqn wildcard", crit(selector.MethodFqn, "shop.*.orders"), true},
		{"fqn wildcard miss", crit(selector.MethodFqn, "other.*"), false},
		{"tag", crit(selector.MethodTag, "nightly"), true},
		{"tag wildcard", crit(selector.MethodTag, "fin*"), true},
		{"tag miss", crit(selector.MethodTag, "deprecated"), false},
		{"path exact", crit(selector.MethodPath, "models/marts/orders.sql"), true},
		{"path dir", crit(selector.MethodPath, "models/marts"), true},
		{"path dir slash", crit(selector.MethodPath, "models/marts/"), true},
		{"path dir partial", crit(selector.MethodPath, "models/mar"), false},
		{"path glob", crit(selector.MethodPath, "models/*/orders.sql"), true},
		{"path backslash", crit(selector.MethodPath, `models\marts`), true},
		{"file name", crit(selector.MethodFile, "orders.sql"), true},
		{"file stem", crit(selector.MethodFile, "orders"), true},
		{"file glob", crit(selector.MethodFile, "ord*"), true},
		{"resource_type", crit(selector.MethodResourceType, "model"), true},
		{"resource_type miss", crit(selector.MethodResourceType, "seed"), false},
		{"package", crit(selector.MethodPackage, "shop"), true},
		{"config scalar", crit(selector.MethodConfig, "table", "materialized"), true},
		{"config scalar miss", crit(selector.MethodConfig, "view", "materialized"), false},
		{"config bool", crit(selector.MethodConfig, "true", "enabled"), true},
		{"config nested", crit(selector.MethodConfig, "data-eng", "meta", "owner"), true},
		{"config list", crit(selector.MethodConfig, "analyst", "grants"), true},
		{"config no args", crit(selector.MethodConfig, "table"), false},
		{"config missing key", crit(selector.MethodConfig, "x", "nope"), false},
		{"config map leaf", crit(selector.MethodConfig, "x", "meta"), false},
		{"group", crit(selector.MethodGroup, "finance"), true},
		{"access", crit(selector.MethodAccess, "public"), true},
		{"access miss", crit(selector.MethodAccess, "private"), false},
		{"test_name on model", crit(selector.MethodTestName, "*"), false},
		{"test_type on model", crit(selector.MethodTestType, "generic"), false},
		{"source on model", crit(selector.MethodSource, "*"), false},
		{"exposure on model", crit(selector.MethodExposure, "*"), false},
		{"unknown method", crit(selector.MethodName(99), "orders"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Matches(tt.c))
		})
	}
}

func TestMatches_Tests(t *testing.T) {
	generic := &Node{
		UniqueID:     "test.shop.not_null_orders_id",
		Name:         "not_null_orders_id",
		ResourceType: ResourceTest,
		TestName:     "not_null",
	}
	singular := &Node{
		UniqueID:     "test.shop.assert_positive_total",
		Name:         "assert_positive_total",
		ResourceType: ResourceTest,
		Path:         "tests/assert_positive_total.sql",
	}

	assert.True(t, generic.Matches(crit(selector.MethodTestName, "not_null")))
	assert.True(t, generic.Matches(crit(selector.MethodTestName, "not_*")))
	assert.False(t, singular.Matches(crit(selector.MethodTestName, "*")))

	assert.True(t, generic.Matches(crit(selector.MethodTestType, "generic")))
	assert.True(t, generic.Matches(crit(selector.MethodTestType, "schema")))
	assert.False(t, generic.Matches(crit(selector.MethodTestType, "singular")))
	assert.True(t, singular.Matches(crit(selector.MethodTestType, "singular")))
	assert.True(t, singular.Matches(crit(selector.MethodTestType, "data")))
	assert.False(t, singular.Matches(crit(selector.MethodTestType, "unit")))

	// Empty path never matches a file selector.
	assert.False(t, generic.Matches(crit(selector.MethodFile, "*")))
	assert.False(t, generic.Matches(crit(selector.MethodPath, "*")))
}

func TestMatches_SourcesAndExposures(t *testing.T) {
	src := &Node{
		UniqueID:     "source.shop.raw.orders",
		Name:         "orders",
		ResourceType: ResourceSource,
		PackageName:  "shop",
		SourceName:   "raw",
	}
	exp := &Node{
		UniqueID:     "exposure.shop.weekly_report",
		Name:         "weekly_report",
		ResourceType: ResourceExposure,
		PackageName:  "shop",
	}

	assert.True(t, src.Matches(crit(selector.MethodSource, "raw")))
	assert.True(t, src.Matches(crit(selector.MethodSource, "raw.orders")))
	assert.True(t, src.Matches(crit(selector.MethodSource, "shop.raw.orders")))
	assert.True(t, src.Matches(crit(selector.MethodSource, "raw.*")))
	assert.False(t, src.Matches(crit(selector.MethodSource, "staging")))

	assert.True(t, exp.Matches(crit(selector.MethodExposure, "weekly_report")))
	assert.True(t, exp.Matches(crit(selector.MethodExposure, "shop.weekly_report")))
	assert.False(t, exp.Matches(crit(selector.MethodExposure, "daily")))
	assert.False(t, exp.Matches(crit(selector.MethodSource, "*")))
}

func TestFileNameAndStem(t *testing.T) {
	n := &Node{Path: `models\staging\stg_orders.sql`}
	assert.Equal(t, "stg_orders.sql", n.FileName())
	assert.Equal(t, "stg_orders", n.FileStem())
	assert.Equal(t, "", (&Node{}).FileName())
}
