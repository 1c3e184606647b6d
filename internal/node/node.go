// Package node defines the node records a selection is evaluated against
// and the per-method criteria matcher.
package node

import (
	"fmt"
	"path"
	"strings"

	"github.com/yu-iskw/dbt-fusion/internal/selector"
	"github.com/yu-iskw/dbt-fusion/internal/wildcard"
)

// Resource types.
const (
	ResourceModel         = "model"
	ResourceTest          = "test"
	ResourceSeed          = "seed"
	ResourceSnapshot      = "snapshot"
	ResourceSource        = "source"
	ResourceExposure      = "exposure"
	ResourceAnalysis      = "analysis"
	ResourceUnitTest      = "unit_test"
	ResourceSemanticModel = "semantic_model"
)

// Node is one addressable unit of the project graph.
//
// Nodes are read-only during evaluation. All fields use snake_case tags so the
// same record round-trips through scenario YAML and catalog JSON columns.
type Node struct {
	UniqueID     string         `yaml:"unique_id" json:"unique_id"`
	Name         string         `yaml:"name" json:"name"`
	ResourceType string         `yaml:"resource_type" json:"resource_type"`
	PackageName  string         `yaml:"package_name" json:"package_name"`
	FQN          []string       `yaml:"fqn" json:"fqn"`
	Path         string         `yaml:"path,omitempty" json:"path,omitempty"`
	Tags         []string       `yaml:"tags,omitempty" json:"tags,omitempty"`
	Config       map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
	DependsOn    []string       `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Group        string         `yaml:"group,omitempty" json:"group,omitempty"`
	Access       string         `yaml:"access,omitempty" json:"access,omitempty"`

	// TestName is the generic test macro name (e.g. not_null). Empty for
	// singular tests and non-test nodes.
	TestName string `yaml:"test_name,omitempty" json:"test_name,omitempty"`

	// SourceName is the source block a source table belongs to.
	SourceName string `yaml:"source_name,omitempty" json:"source_name,omitempty"`
}

// DottedFQN joins the fully-qualified name with dots.
func (n *Node) DottedFQN() string {
	return strings.Join(n.FQN, ".")
}

// FileName is the base name of the node's path.
func (n *Node) FileName() string {
	if n.Path == "" {
		return ""
	}
	return path.Base(filepathToSlash(n.Path))
}

// FileStem is FileName without its extension.
func (n *Node) FileStem() string {
	name := n.FileName()
	return strings.TrimSuffix(name, path.Ext(name))
}

// IsTest reports whether the node is a data test.
func (n *Node) IsTest() bool {
	return n.ResourceType == ResourceTest
}

// Matches reports whether the node satisfies a single criteria.
//
// Only the direct predicate is tested. Graph expansion and the nested exclude
// are the evaluator's concern. A method that does not apply to this kind of
// node is a non-match, never an error.
func (n *Node) Matches(c *selector.Criteria) bool {
	v := c.Value
	switch c.Method {
	case selector.MethodFqn:
		return n.matchFQN(v)
	case selector.MethodTag:
		return wildcard.MatchAny(v, n.Tags...)
	case selector.MethodPath:
		return n.matchPath(v)
	case selector.MethodFile:
		if n.Path == "" {
			return false
		}
		return wildcard.MatchAny(v, n.FileName(), n.FileStem())
	case selector.MethodResourceType:
		return n.ResourceType == v
	case selector.MethodPackage:
		return n.PackageName == v
	case selector.MethodConfig:
		return n.matchConfig(c.MethodArgs, v)
	case selector.MethodTestName:
		return n.IsTest() && n.TestName != "" && wildcard.Match(v, n.TestName)
	case selector.MethodTestType:
		return n.matchTestType(v)
	case selector.MethodSource:
		if n.ResourceType != ResourceSource {
			return false
		}
		return wildcard.MatchAny(v,
			n.SourceName,
			n.SourceName+"."+n.Name,
			n.PackageName+"."+n.SourceName+"."+n.Name,
		)
	case selector.MethodExposure:
		if n.ResourceType != ResourceExposure {
			return false
		}
		return wildcard.MatchAny(v, n.Name, n.PackageName+"."+n.Name)
	case selector.MethodGroup:
		return n.Group != "" && wildcard.Match(v, n.Group)
	case selector.MethodAccess:
		return n.Access != "" && n.Access == v
	default:
		return false
	}
}

// matchFQN matches the dotted fqn, the bare node name, or, for literal
// values, any fqn prefix ending on a segment boundary.
func (n *Node) matchFQN(v string) bool {
	dotted := n.DottedFQN()
	if wildcard.Match(v, dotted) || wildcard.Match(v, n.Name) {
		return true
	}
	return !wildcard.HasWildcard(v) && v != "" && strings.HasPrefix(dotted, v+".")
}

// matchPath matches the node path, or, for literal values, any directory
// prefix of it.
func (n *Node) matchPath(v string) bool {
	if n.Path == "" {
		return false
	}
	p := filepathToSlash(n.Path)
	v = filepathToSlash(v)
	if wildcard.Match(v, p) {
		return true
	}
	if wildcard.HasWildcard(v) {
		return false
	}
	dir := strings.TrimSuffix(v, "/")
	return dir != "" && strings.HasPrefix(p, dir+"/")
}

func (n *Node) matchTestType(v string) bool {
	if !n.IsTest() {
		return false
	}
	switch v {
	case "generic", "schema":
		return n.TestName != ""
	case "singular", "data":
		return n.TestName == ""
	default:
		return false
	}
}

// matchConfig walks args as a key path into the node config and compares the
// leaf with v. List leaves match when any element does.
func (n *Node) matchConfig(args []string, v string) bool {
	if len(args) == 0 {
		return false
	}
	var cur any = n.Config
	for _, key := range args {
		m, ok := cur.(map[string]any)
		if !ok {
			return false
		}
		if cur, ok = m[key]; !ok {
			return false
		}
	}
	switch leaf := cur.(type) {
	case nil:
		return false
	case []any:
		for _, elem := range leaf {
			if configScalarMatches(elem, v) {
				return true
			}
		}
		return false
	case []string:
		return wildcard.MatchAny(v, leaf...)
	default:
		return configScalarMatches(leaf, v)
	}
}

func configScalarMatches(leaf any, v string) bool {
	switch leaf.(type) {
	case map[string]any, []any, nil:
		return false
	}
	return wildcard.Match(v, fmt.Sprint(leaf))
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
