package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/yu-iskw/dbt-fusion/internal/node"
)

// WriteNodes upserts nodes by unique_id in one transaction.
// A node that already exists is replaced, tags included.
func (c *Catalog) WriteNodes(ctx context.Context, nodes []*node.Node) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write nodes: %w", err)
	}
	defer tx.Rollback()

	for _, n := range nodes {
		if err := writeNode(ctx, tx, n); err != nil {
			return fmt.Errorf("write node %s: %w", n.UniqueID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write nodes: %w", err)
	}
	return nil
}

func writeNode(ctx context.Context, tx *sql.Tx, n *node.Node) error {
	if n.UniqueID == "" {
		return fmt.Errorf("unique_id is required")
	}
	fqnParts, err := marshalStrings("fqn", n.FQN)
	if err != nil {
		return err
	}
	dependsOn, err := marshalStrings("depends_on", n.DependsOn)
	if err != nil {
		return err
	}
	config, err := marshalConfig(n.Config)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO nodes
		(unique_id, name, resource_type, package_name, fqn, fqn_parts, path, original_path,
		 file_name, file_stem, grp, access, test_name, source_name, config, depends_on)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(unique_id) DO UPDATE SET
			name = excluded.name,
			resource_type = excluded.resource_type,
			package_name = excluded.package_name,
			fqn = excluded.fqn,
			fqn_parts = excluded.fqn_parts,
			path = excluded.path,
			original_path = excluded.original_path,
			file_name = excluded.file_name,
			file_stem = excluded.file_stem,
			grp = excluded.grp,
			access = excluded.access,
			test_name = excluded.test_name,
			source_name = excluded.source_name,
			config = excluded.config,
			depends_on = excluded.depends_on
	`,
		n.UniqueID,
		n.Name,
		n.ResourceType,
		n.PackageName,
		n.DottedFQN(),
		fqnParts,
		strings.ReplaceAll(n.Path, `\`, "/"),
		n.Path,
		n.FileName(),
		n.FileStem(),
		n.Group,
		n.Access,
		n.TestName,
		n.SourceName,
		config,
		dependsOn,
	)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM node_tags WHERE unique_id = ?`, n.UniqueID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	for i, tag := range n.Tags {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO node_tags (unique_id, position, tag) VALUES (?, ?, ?)
		`, n.UniqueID, i, tag); err != nil {
			return fmt.Errorf("write tag %q: %w", tag, err)
		}
	}
	return nil
}

// Reset removes every node from the catalog.
func (c *Catalog) Reset(ctx context.Context) error {
	// node_tags rows go with their node (ON DELETE CASCADE)
	if _, err := c.db.ExecContext(ctx, `DELETE FROM nodes`); err != nil {
		return fmt.Errorf("reset catalog: %w", err)
	}
	return nil
}
