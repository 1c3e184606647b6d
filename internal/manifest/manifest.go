// Package manifest reads node snapshots out of a dbt manifest.json.
//
// Only the fields selection needs are extracted, so large manifests are read
// with gjson instead of being decoded into full structs.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/tidwall/gjson"

	"github.com/yu-iskw/dbt-fusion/internal/node"
)

// ErrInvalidJSON is returned when the manifest is not valid JSON.
var ErrInvalidJSON = errors.New("manifest is not valid JSON")

// sections holds the top-level manifest maps that contain selectable nodes.
var sections = []string{"nodes", "sources", "exposures"}

// Load reads and parses a manifest file.
func Load(path string) ([]*node.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	nodes, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return nodes, nil
}

// Parse extracts nodes from manifest JSON, ordered by unique_id.
func Parse(data []byte) ([]*node.Node, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	root := gjson.ParseBytes(data)

	var nodes []*node.Node
	var err error
	for _, section := range sections {
		root.Get(section).ForEach(func(key, value gjson.Result) bool {
			var n *node.Node
			if n, err = parseNode(key.String(), value); err != nil {
				err = fmt.Errorf("%s.%s: %w", section, key.String(), err)
				return false
			}
			nodes = append(nodes, n)
			return true
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].UniqueID < nodes[j].UniqueID
	})
	return nodes, nil
}

func parseNode(key string, v gjson.Result) (*node.Node, error) {
	if !v.IsObject() {
		return nil, fmt.Errorf("expected an object")
	}
	n := &node.Node{
		UniqueID:     v.Get("unique_id").String(),
		Name:         v.Get("name").String(),
		ResourceType: v.Get("resource_type").String(),
		PackageName:  v.Get("package_name").String(),
		FQN:          stringList(v.Get("fqn")),
		Path:         v.Get("original_file_path").String(),
		Tags:         stringList(v.Get("tags")),
		DependsOn:    stringList(v.Get("depends_on.nodes")),
		Group:        v.Get("group").String(),
		Access:       v.Get("access").String(),
		TestName:     v.Get("test_metadata.name").String(),
		SourceName:   v.Get("source_name").String(),
	}
	if n.UniqueID == "" {
		n.UniqueID = key
	}
	if n.Path == "" {
		n.Path = v.Get("path").String()
	}
	if n.Access == "" {
		n.Access = v.Get("config.access").String()
	}
	if n.Group == "" {
		n.Group = v.Get("config.group").String()
	}
	if cfg := v.Get("config"); cfg.IsObject() {
		if m, ok := cfg.Value().(map[string]any); ok && len(m) > 0 {
			n.Config = m
		}
	}
	return n, nil
}

// stringList returns the string elements of a JSON array, or nil.
func stringList(r gjson.Result) []string {
	if !r.IsArray() {
		return nil
	}
	arr := r.Array()
	if len(arr) == 0 {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, elem := range arr {
		out = append(out, elem.String())
	}
	return out
}
