// Package eval turns a selector expression into the set of node ids it
// denotes against a node snapshot.
//
// Evaluation is total: every well-formed tree yields a set, possibly empty.
// "No matches" is never an error. The snapshot is read-only, so independent
// selectors may be evaluated concurrently with EvaluateAll.
//
// EXCLUDE HANDLING:
//
//	Atom     direct matches (plus graph expansion), minus the nested exclude
//	Or       union of operands; empty list is the empty set
//	And      seed with the first operand, then intersect each later operand,
//	         or subtract it when it is an *Exclude. An empty removal set
//	         leaves the running result unchanged.
//	Exclude  the inner matches, not their complement
package eval
