// Package harness provides conformance testing for selector definitions.
//
// A scenario fixes a node snapshot and a set of named selectors, then lists
// cases that resolve a selection and assert on the selected unique ids.
// Every case runs on the in-memory evaluator and, unless the scenario needs
// the dependency graph, on the SQLite catalog as well; the two backends must
// agree.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	graph: false
//	nodes:
//	  - unique_id: model.shop.orders
//	    name: orders
//	    resource_type: model
//	    fqn: [shop, orders]
//	    tags: [nightly]
//	selectors:
//	  - name: nightly
//	    definition: "tag:nightly"
//	cases:
//	  - name: by_name
//	    selector: nightly
//	    expect: [model.shop.orders]
//	  - name: by_spec
//	    select: ["tag:nightly"]
//	    exclude: ["orders"]
//	    expect: []
//	  - name: broken
//	    selector: missing
//	    expect_error: "Unknown selector"
//
// A case resolves its expression from exactly one of selector (a named
// selector), default (the registry's default selector) or select/exclude
// (bare selection strings).
//
// # Deterministic Testing
//
// Results are sorted by unique_id and the selection is snapshotted with
// goldie under testdata/golden, so any change in evaluation semantics shows
// up as a golden diff.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/bronze.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness
