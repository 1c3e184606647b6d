package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yu-iskw/dbt-fusion/internal/graph"
	"github.com/yu-iskw/dbt-fusion/internal/node"
	"github.com/yu-iskw/dbt-fusion/internal/selector"
)

func bronzeNodes() []*node.Node {
	mk := func(i string, tags ...string) *node.Node {
		return &node.Node{
			UniqueID:     "model.test_project.bronze_" + i,
			Name:         "bronze_" + i,
			ResourceType: node.ResourceModel,
			PackageName:  "test_project",
			FQN:          []string{"test_project", "test_exclude", "bronze", "bronze_" + i},
			Path:         "models/test_exclude/bronze/bronze_" + i + ".sql",
			Tags:         tags,
		}
	}
	return []*node.Node{
		mk("1", "production"),
		mk("2", "production"),
		mk("3", "production", "deprecated"),
	}
}

const (
	b1 = "model.test_project.bronze_1"
	b2 = "model.test_project.bronze_2"
	b3 = "model.test_project.bronze_3"
)

func tag(v string) *selector.Atom  { return selector.NewAtom(selector.MethodTag, v) }
func path(v string) *selector.Atom { return selector.NewAtom(selector.MethodPath, v) }

func TestEvaluate_ExcludeMatchingNothingHasNoEffect(t *testing.T) {
	expr := selector.NewAnd(
		path("models/test_exclude/bronze/bronze_*"),
		selector.NewExclude(path("models/test_exclude/bronse/no_such_*")),
	)

	result := Evaluate(expr, bronzeNodes())

	assert.Equal(t, []string{b1, b2, b3}, result.Sorted())
}

func TestEvaluate_ExcludeRemovesMatches(t *testing.T) {
	expr := selector.NewAnd(tag("production"), selector.NewExclude(tag("deprecated")))

	assert.Equal(t, []string{b1, b2}, Evaluate(expr, bronzeNodes()).Sorted())
}

func TestEvaluate_ExcludeMatchingEverythingEmpties(t *testing.T) {
	expr := selector.NewAnd(
		path("models/test_exclude/bronze/*"),
		selector.NewExclude(path("models/test_exclude/bronze/*")),
	)

	assert.Empty(t, Evaluate(expr, bronzeNodes()))
}

func TestEvaluate_ExcludeAloneIsRawMatches(t *testing.T) {
	nodes := bronzeNodes()

	assert.Equal(t, []string{b3}, Evaluate(selector.NewExclude(tag("deprecated")), nodes).Sorted())

	// Inside Or it also contributes its positive matches.
	or := selector.NewOr(tag("nope"), selector.NewExclude(tag("deprecated")))
	assert.Equal(t, []string{b3}, Evaluate(or, nodes).Sorted())
}

func TestEvaluate_ExcludeAsFirstAndOperandSeeds(t *testing.T) {
	expr := selector.NewAnd(selector.NewExclude(tag("production")), tag("deprecated"))

	assert.Equal(t, []string{b3}, Evaluate(expr, bronzeNodes()).Sorted())
}

func TestEvaluate_MultipleExcludesAreUnioned(t *testing.T) {
	nodes := bronzeNodes()
	expr := selector.NewAnd(
		tag("production"),
		selector.NewExclude(selector.NewOr(tag("deprecated"), selector.NewAtom(selector.MethodFqn, "bronze_1"))),
	)
	assert.Equal(t, []string{b2}, Evaluate(expr, nodes).Sorted())

	// Sequential exclude operands compose the same way.
	seq := selector.NewAnd(
		tag("production"),
		selector.NewExclude(tag("deprecated")),
		selector.NewExclude(selector.NewAtom(selector.MethodFqn, "bronze_1")),
	)
	assert.Equal(t, []string{b2}, Evaluate(seq, nodes).Sorted())
}

func TestEvaluate_AndIntersects(t *testing.T) {
	expr := selector.NewAnd(tag("production"), tag("deprecated"))
	assert.Equal(t, []string{b3}, Evaluate(expr, bronzeNodes()).Sorted())
}

func TestEvaluate_EmptyCompositesAreEmpty(t *testing.T) {
	nodes := bronzeNodes()
	assert.Empty(t, Evaluate(selector.NewAnd(), nodes))
	assert.Empty(t, Evaluate(selector.NewOr(), nodes))
	assert.Empty(t, Evaluate(nil, nodes))

	// The parser artifact: a composite holding only excludes.
	artifact := selector.NewAnd(selector.NewOr(), selector.NewExclude(tag("deprecated")))
	assert.Empty(t, Evaluate(artifact, nodes))
}

func TestEvaluate_NestedExcludeAlwaysSubtracts(t *testing.T) {
	nodes := bronzeNodes()
	atom := func() *selector.Atom {
		return tag("production").WithExclude(tag("deprecated"))
	}

	assert.Equal(t, []string{b1, b2}, Evaluate(atom(), nodes).Sorted())
	assert.Equal(t, []string{b1, b2}, Evaluate(selector.NewOr(atom()), nodes).Sorted())
	assert.Equal(t, []string{b1, b2}, Evaluate(selector.NewAnd(atom()), nodes).Sorted())
	assert.Equal(t, []string{b1, b2}, Evaluate(selector.NewExclude(atom()), nodes).Sorted())

	// Nested exclude matching nothing is a no-op.
	noop := tag("production").WithExclude(tag("missing"))
	assert.Equal(t, []string{b1, b2, b3}, Evaluate(noop, nodes).Sorted())
}

func TestEvaluate_CustomMatcher(t *testing.T) {
	onlyFirst := func(n *node.Node, c *selector.Criteria) bool { return n.UniqueID == b1 }
	result := New(bronzeNodes(), WithMatcher(onlyFirst)).Evaluate(tag("anything"))
	assert.Equal(t, []string{b1}, result.Sorted())

	// nil keeps the default.
	result = New(bronzeNodes(), WithMatcher(nil)).Evaluate(tag("deprecated"))
	assert.Equal(t, []string{b3}, result.Sorted())
}

func TestEvaluate_ResultIsOwnedByCaller(t *testing.T) {
	e := New(bronzeNodes())
	expr := tag("production")
	first := e.Evaluate(expr)
	first.Add("mutated")
	assert.False(t, e.Evaluate(expr).Has("mutated"))
}

func dagNodes() []*node.Node {
	return []*node.Node{
		{UniqueID: "model.p.stg", Name: "stg", ResourceType: node.ResourceModel, FQN: []string{"p", "stg"}},
		{UniqueID: "model.p.orders", Name: "orders", ResourceType: node.ResourceModel, FQN: []string{"p", "orders"}, DependsOn: []string{"model.p.stg"}, Tags: []string{"wip"}},
		{UniqueID: "model.p.report", Name: "report", ResourceType: node.ResourceModel, FQN: []string{"p", "report"}, DependsOn: []string{"model.p.orders"}},
		{UniqueID: "test.p.not_null", Name: "not_null", ResourceType: node.ResourceTest, TestName: "not_null", DependsOn: []string{"model.p.orders"}},
		{UniqueID: "test.p.rel", Name: "rel", ResourceType: node.ResourceTest, TestName: "relationships", DependsOn: []string{"model.p.orders", "model.p.report"}},
	}
}

func TestEvaluate_GraphOperatorsInertWithoutGraph(t *testing.T) {
	atom := selector.NewAtom(selector.MethodFqn, "orders")
	atom.Criteria.ParentsDepth = selector.Depth(selector.DepthUnbounded)

	assert.Equal(t, []string{"model.p.orders"}, Evaluate(atom, dagNodes()).Sorted())
}

func TestEvaluate_GraphExpansionAndIndirect(t *testing.T) {
	nodes := dagNodes()
	e := New(nodes, WithGraph(graph.New(nodes)), WithDefaultIndirect(selector.IndirectCautious))

	atom := selector.NewAtom(selector.MethodFqn, "orders")
	atom.Criteria.ParentsDepth = selector.Depth(1)
	// cautious: rel needs report, which is not selected.
	assert.Equal(t, []string{"model.p.orders", "model.p.stg", "test.p.not_null"}, e.Evaluate(atom).Sorted())

	eager := selector.NewAtom(selector.MethodFqn, "orders")
	eager.Criteria.Indirect = selector.IndirectEager.Ptr()
	assert.Equal(t, []string{"model.p.orders", "test.p.not_null", "test.p.rel"}, e.Evaluate(eager).Sorted())

	empty := selector.NewAtom(selector.MethodFqn, "orders")
	empty.Criteria.Indirect = selector.IndirectEmpty.Ptr()
	assert.Equal(t, []string{"model.p.orders"}, e.Evaluate(empty).Sorted())
}

func TestEvaluate_NestedExcludeAppliesAfterExpansion(t *testing.T) {
	nodes := dagNodes()
	e := New(nodes, WithGraph(graph.New(nodes)), WithDefaultIndirect(selector.IndirectEmpty))

	atom := selector.NewAtom(selector.MethodFqn, "stg")
	atom.Criteria.ChildrenDepth = selector.Depth(selector.DepthUnbounded)
	atom.WithExclude(selector.NewAtom(selector.MethodResourceType, "test"))

	assert.Equal(t, []string{"model.p.orders", "model.p.report", "model.p.stg"}, e.Evaluate(atom).Sorted())
}

func TestEvaluate_CautiousTestsCheckedAgainstWholeUnion(t *testing.T) {
	nodes := dagNodes()
	union := selector.NewOr(
		selector.NewAtom(selector.MethodFqn, "orders"),
		selector.NewAtom(selector.MethodFqn, "report"),
	)

	// rel depends on orders and report, each selected by a different operand.
	for _, mode := range []selector.IndirectSelection{selector.IndirectCautious, selector.IndirectBuildable} {
		t.Run(string(mode), func(t *testing.T) {
			e := New(nodes, WithGraph(graph.New(nodes)), WithDefaultIndirect(mode))
			assert.Equal(t,
				[]string{"model.p.orders", "model.p.report", "test.p.not_null", "test.p.rel"},
				e.Evaluate(union).Sorted())
		})
	}
}

func TestEvaluate_PendingTestsFollowIntersectionAndExclusion(t *testing.T) {
	nodes := dagNodes()
	e := New(nodes, WithGraph(graph.New(nodes)), WithDefaultIndirect(selector.IndirectCautious))

	// Only orders survives the intersection, so rel loses report.
	narrowed := selector.NewAnd(
		selector.NewAtom(selector.MethodFqn, "orders"),
		selector.NewAtom(selector.MethodTag, "wip"),
	)
	assert.Equal(t, []string{"model.p.orders", "test.p.not_null"}, e.Evaluate(narrowed).Sorted())

	withoutRel := selector.NewAnd(
		selector.NewOr(
			selector.NewAtom(selector.MethodFqn, "orders"),
			selector.NewAtom(selector.MethodFqn, "report"),
		),
		selector.NewExclude(selector.NewAtom(selector.MethodTestName, "relationships")),
	)
	assert.Equal(t, []string{"model.p.orders", "model.p.report", "test.p.not_null"}, e.Evaluate(withoutRel).Sorted())
}
