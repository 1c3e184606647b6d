package schema

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/yu-iskw/dbt-fusion/internal/selector"
)

// DecodeError reports a malformed surface definition.
type DecodeError struct {
	Line    int
	Message string
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

func decodeErr(n *yaml.Node, format string, args ...any) error {
	return &DecodeError{Line: n.Line, Message: fmt.Sprintf(format, args...)}
}

var methodAtomKeys = map[string]bool{
	"method":             true,
	"value":              true,
	"childrens_parents":  true,
	"parents":            true,
	"children":           true,
	"parents_depth":      true,
	"children_depth":     true,
	"indirect_selection": true,
	"exclude":            true,
}

// UnmarshalValue decodes a definition value from YAML or JSON bytes.
func UnmarshalValue(data []byte) (Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		return DecodeValue(doc.Content[0])
	}
	return DecodeValue(&doc)
}

// DecodeValue decodes a definition value from a YAML node.
func DecodeValue(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil, decodeErr(n, "selector definition is null")
		}
		return StringValue(n.Value), nil
	case yaml.MappingNode:
		return decodeMapping(n)
	case yaml.AliasNode:
		return DecodeValue(n.Alias)
	default:
		return nil, decodeErr(n, "selector definition must be a string or a mapping")
	}
}

func decodeMapping(n *yaml.Node) (Value, error) {
	keys := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		keys[n.Content[i].Value] = n.Content[i+1]
	}

	_, hasUnion := keys["union"]
	_, hasIntersection := keys["intersection"]
	_, hasMethod := keys["method"]
	_, hasExclude := keys["exclude"]

	switch {
	case hasUnion || hasIntersection:
		return decodeComposite(n, keys)
	case hasMethod:
		return decodeMethodAtom(n, keys)
	case hasExclude:
		if len(keys) != 1 {
			return nil, decodeErr(n, "exclude block must not have other keys")
		}
		values, err := decodeList(keys["exclude"])
		if err != nil {
			return nil, err
		}
		return &ExcludeAtom{Values: values, Line: n.Line}, nil
	default:
		pairs := make(MethodKey, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if v.Kind != yaml.ScalarNode {
				return nil, decodeErr(v, "method %q must map to a scalar value", k.Value)
			}
			pairs = append(pairs, KeyValue{Key: k.Value, Value: v.Value})
		}
		return pairs, nil
	}
}

func decodeComposite(n *yaml.Node, keys map[string]*yaml.Node) (Value, error) {
	if len(keys) != 1 {
		return nil, decodeErr(n, "composite must have exactly one of union or intersection")
	}
	comp := &Composite{Line: n.Line}
	var list *yaml.Node
	if v, ok := keys["union"]; ok {
		comp.Kind, list = CompositeUnion, v
	} else {
		comp.Kind, list = CompositeIntersection, keys["intersection"]
	}
	values, err := decodeList(list)
	if err != nil {
		return nil, err
	}
	comp.Values = values
	return comp, nil
}

func decodeMethodAtom(n *yaml.Node, keys map[string]*yaml.Node) (Value, error) {
	for k := range keys {
		if !methodAtomKeys[k] {
			return nil, decodeErr(n, "unknown key %q in method selector", k)
		}
	}
	atom := &MethodAtom{Line: n.Line}

	var err error
	if atom.Method, err = scalar(keys["method"]); err != nil {
		return nil, err
	}
	if v, ok := keys["value"]; ok {
		if atom.Value, err = scalar(v); err != nil {
			return nil, err
		}
	} else {
		return nil, decodeErr(n, "method selector %q has no value", atom.Method)
	}

	for key, dst := range map[string]*bool{
		"childrens_parents": &atom.ChildrensParents,
		"parents":           &atom.Parents,
		"children":          &atom.Children,
	} {
		if v, ok := keys[key]; ok {
			if err := v.Decode(dst); err != nil {
				return nil, decodeErr(v, "%s: expected a boolean", key)
			}
		}
	}
	for key, dst := range map[string]**uint32{
		"parents_depth":  &atom.ParentsDepth,
		"children_depth": &atom.ChildrenDepth,
	} {
		if v, ok := keys[key]; ok {
			d, err := strconv.ParseUint(v.Value, 10, 32)
			if err != nil || v.Kind != yaml.ScalarNode {
				return nil, decodeErr(v, "%s: expected a non-negative integer", key)
			}
			*dst = selector.Depth(uint32(d))
		}
	}
	if v, ok := keys["indirect_selection"]; ok {
		mode, err := selector.ParseIndirectSelection(v.Value)
		if err != nil {
			return nil, decodeErr(v, "%v", err)
		}
		atom.IndirectSelection = &mode
	}
	if v, ok := keys["exclude"]; ok {
		if atom.Exclude, err = decodeList(v); err != nil {
			return nil, err
		}
	}
	return atom, nil
}

func decodeList(n *yaml.Node) ([]Value, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, decodeErr(n, "expected a list of selector definitions")
	}
	values := make([]Value, 0, len(n.Content))
	for _, item := range n.Content {
		v, err := DecodeValue(item)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func scalar(n *yaml.Node) (string, error) {
	if n.Kind != yaml.ScalarNode {
		return "", decodeErr(n, "expected a string")
	}
	return n.Value, nil
}
