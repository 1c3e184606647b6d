package catalog

import (
	"context"
	"fmt"

	"github.com/yu-iskw/dbt-fusion/internal/node"
	"github.com/yu-iskw/dbt-fusion/internal/querysql"
	"github.com/yu-iskw/dbt-fusion/internal/selector"
)

// ReadNodes returns every node ordered by unique_id COLLATE BINARY.
//
// Returns an empty slice (not nil) for an empty catalog.
func (c *Catalog) ReadNodes(ctx context.Context) ([]*node.Node, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT unique_id, name, resource_type, package_name, fqn_parts, original_path,
		       grp, access, test_name, source_name, config, depends_on
		FROM nodes
		ORDER BY unique_id ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	nodes := []*node.Node{}
	byID := map[string]*node.Node{}
	for rows.Next() {
		var n node.Node
		var fqnParts, config, dependsOn string
		if err := rows.Scan(
			&n.UniqueID, &n.Name, &n.ResourceType, &n.PackageName, &fqnParts, &n.Path,
			&n.Group, &n.Access, &n.TestName, &n.SourceName, &config, &dependsOn,
		); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		if n.FQN, err = unmarshalStrings("fqn", fqnParts); err != nil {
			return nil, err
		}
		if n.Config, err = unmarshalConfig(config); err != nil {
			return nil, err
		}
		if n.DependsOn, err = unmarshalStrings("depends_on", dependsOn); err != nil {
			return nil, err
		}
		nodes = append(nodes, &n)
		byID[n.UniqueID] = &n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	// Release the single pooled connection before the tag query.
	rows.Close()

	if err := c.readTags(ctx, byID); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (c *Catalog) readTags(ctx context.Context, byID map[string]*node.Node) error {
	rows, err := c.db.QueryContext(ctx, `
		SELECT unique_id, tag FROM node_tags
		ORDER BY unique_id ASC COLLATE BINARY, position ASC
	`)
	if err != nil {
		return fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return fmt.Errorf("scan tag: %w", err)
		}
		if n, ok := byID[id]; ok {
			n.Tags = append(n.Tags, tag)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate tags: %w", err)
	}
	return nil
}

// Count returns the number of nodes in the catalog.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	return n, nil
}

// Select returns the unique ids expr selects, in unique_id order.
//
// The expression is compiled by querysql. Expressions the SQL backend cannot
// express fail with an error wrapping querysql.ErrUnsupported.
func (c *Catalog) Select(ctx context.Context, expr selector.Expression) ([]string, error) {
	query, params, err := querysql.NewSQLCompiler().Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile selection: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query selection: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate selection: %w", err)
	}
	return ids, nil
}
