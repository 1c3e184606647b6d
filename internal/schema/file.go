package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the top level of a selectors.yml document.
type File struct {
	Selectors []Definition `yaml:"selectors"`
}

// UnmarshalYAML decodes a named selector entry.
func (d *Definition) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return decodeErr(n, "selector entry must be a mapping")
	}
	d.Line = n.Line
	var sawDefinition bool
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		var err error
		switch key.Value {
		case "name":
			d.Name, err = scalar(val)
		case "description":
			d.Description, err = scalar(val)
		case "default":
			if err = val.Decode(&d.Default); err != nil {
				err = decodeErr(val, "default: expected a boolean")
			}
		case "definition":
			sawDefinition = true
			d.Definition, err = DecodeValue(val)
		default:
			err = decodeErr(key, "field %s not found in selector", key.Value)
		}
		if err != nil {
			if d.Name != "" {
				return fmt.Errorf("selector %q: %w", d.Name, err)
			}
			return err
		}
	}
	if !sawDefinition {
		return decodeErr(n, "selector %q has no definition", d.Name)
	}
	return nil
}

// ParseFile decodes a selectors document. Unknown top-level fields are
// rejected.
func ParseFile(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &File{}, nil
		}
		return nil, err
	}
	return &f, nil
}

// LoadFile reads and decodes a selectors YAML file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read selectors file: %w", err)
	}
	f, err := ParseFile(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}
