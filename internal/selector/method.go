package selector

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MethodName identifies which node attribute an atom tests.
//
// The set is closed. Matchers switch over every value so an unhandled
// method is a review-time omission rather than a silent false.
type MethodName int

const (
	MethodFqn MethodName = iota
	MethodTag
	MethodPath
	MethodFile
	MethodResourceType
	MethodPackage
	MethodConfig
	MethodTestName
	MethodTestType
	MethodSource
	MethodExposure
	MethodGroup
	MethodAccess
)

// MethodSelector is the reserved method head for named-selector references.
// It never reaches an Atom; the parser resolves it to the referenced tree.
const MethodSelector = "selector"

var methodNames = [...]string{
	MethodFqn:          "fqn",
	MethodTag:          "tag",
	MethodPath:         "path",
	MethodFile:         "file",
	MethodResourceType: "resource_type",
	MethodPackage:      "package",
	MethodConfig:       "config",
	MethodTestName:     "test_name",
	MethodTestType:     "test_type",
	MethodSource:       "source",
	MethodExposure:     "exposure",
	MethodGroup:        "group",
	MethodAccess:       "access",
}

// Methods returns every method in declaration order.
func Methods() []MethodName {
	out := make([]MethodName, len(methodNames))
	for i := range methodNames {
		out[i] = MethodName(i)
	}
	return out
}

func (m MethodName) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return fmt.Sprintf("MethodName(%d)", int(m))
	}
	return methodNames[m]
}

// ParseMethodName resolves a method head such as "tag" or "resource_type".
func ParseMethodName(s string) (MethodName, error) {
	for i, name := range methodNames {
		if name == s {
			return MethodName(i), nil
		}
	}
	return 0, fmt.Errorf("unknown selection method %q", s)
}

// DefaultMethodFor infers a method from the shape of a bare value.
// Values that look like paths select by path, values with a model file
// extension select by file, everything else selects by fqn.
func DefaultMethodFor(value string) MethodName {
	switch {
	case strings.ContainsAny(value, `/\`):
		return MethodPath
	case strings.HasSuffix(value, ".sql"), strings.HasSuffix(value, ".py"), strings.HasSuffix(value, ".csv"):
		return MethodFile
	default:
		return MethodFqn
	}
}

// ResolveMethod splits a dotted method such as "config.materialized" into
// its head and arguments. An unknown head falls back to DefaultMethodFor
// the value.
func ResolveMethod(method, value string) (MethodName, []string) {
	parts := strings.Split(method, ".")
	name, err := ParseMethodName(parts[0])
	if err != nil {
		name = DefaultMethodFor(value)
	}
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	return name, args
}

func (m MethodName) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *MethodName) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMethodName(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
