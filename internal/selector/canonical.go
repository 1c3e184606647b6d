package selector

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// DomainExpression prefixes expression fingerprints.
// Version suffix enables future algorithm migration.
const DomainExpression = "dbtsel/expression/v1"

// MarshalCanonical renders expr as canonical JSON: sorted keys, NFC strings,
// no HTML escaping, no insignificant whitespace, zero-valued criteria fields
// omitted.
//
// Shapes:
//
//	{"atom":{"method":"tag","value":"nightly"}}
//	{"and":[...]}
//	{"or":[...]}
//	{"exclude":{...}}
//
// Two expressions are structurally equal iff their canonical forms are equal.
func MarshalCanonical(expr Expression) ([]byte, error) {
	v, err := toCanonicalValue(expr)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Fingerprint computes a content-addressed identity for expr.
// Format: hex(SHA256(domain + 0x00 + canonical))
func Fingerprint(expr Expression) (string, error) {
	canonical, err := MarshalCanonical(expr)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(DomainExpression))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Equal reports whether a and b are structurally identical.
// Expressions that cannot be rendered are never equal.
func Equal(a, b Expression) bool {
	ca, err := MarshalCanonical(a)
	if err != nil {
		return false
	}
	cb, err := MarshalCanonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ca, cb)
}

func toCanonicalValue(expr Expression) (any, error) {
	switch e := expr.(type) {
	case nil:
		return nil, fmt.Errorf("nil expression is forbidden in canonical JSON")
	case *Atom:
		if e == nil {
			return nil, fmt.Errorf("nil atom is forbidden in canonical JSON")
		}
		atom, err := criteriaValue(&e.Criteria)
		if err != nil {
			return nil, err
		}
		return map[string]any{"atom": atom}, nil
	case *And:
		list, err := listValue(e.Exprs)
		if err != nil {
			return nil, fmt.Errorf("and%w", err)
		}
		return map[string]any{"and": list}, nil
	case *Or:
		list, err := listValue(e.Exprs)
		if err != nil {
			return nil, fmt.Errorf("or%w", err)
		}
		return map[string]any{"or": list}, nil
	case *Exclude:
		inner, err := toCanonicalValue(e.Inner)
		if err != nil {
			return nil, fmt.Errorf("exclude: %w", err)
		}
		return map[string]any{"exclude": inner}, nil
	default:
		return nil, fmt.Errorf("unsupported expression type: %T", expr)
	}
}

func listValue(exprs []Expression) ([]any, error) {
	out := make([]any, len(exprs))
	for i, sub := range exprs {
		v, err := toCanonicalValue(sub)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func criteriaValue(c *Criteria) (map[string]any, error) {
	obj := map[string]any{
		"method": c.Method.String(),
		"value":  c.Value,
	}
	if len(c.MethodArgs) > 0 {
		args := make([]any, len(c.MethodArgs))
		for i, a := range c.MethodArgs {
			args[i] = a
		}
		obj["method_args"] = args
	}
	if c.ChildrensParents {
		obj["childrens_parents"] = true
	}
	if c.ParentsDepth != nil {
		obj["parents_depth"] = int64(*c.ParentsDepth)
	}
	if c.ChildrenDepth != nil {
		obj["children_depth"] = int64(*c.ChildrenDepth)
	}
	if c.Indirect != nil {
		obj["indirect_selection"] = string(*c.Indirect)
	}
	if c.Exclude != nil {
		ex, err := toCanonicalValue(c.Exclude)
		if err != nil {
			return nil, fmt.Errorf("atom exclude: %w", err)
		}
		obj["exclude"] = ex
	}
	return obj, nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case string:
		return writeCanonicalString(buf, val)
	case int64:
		fmt.Fprintf(buf, "%d", val)
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// writeCanonicalString writes an NFC-normalized JSON string without HTML
// escaping.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}
