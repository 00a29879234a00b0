// Package dialects provides the built-in declarative grammars: a SQL
// language, a procedural language embedded in SQL routine bodies, and their
// generic, MySQL and SQLite dialects.
//
// Registration is explicit:
//
//	reg := dialect.NewRegistry(logger)
//	if err := dialects.RegisterAll(ctx, reg); err != nil {
//		return err
//	}
package dialects

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/leapstack-labs/sqlgrammar/pkg/dialect"
)

// ManifestFile is the manifest of the built-in definitions inside FS.
const ManifestFile = "defs/manifest.yaml"

// Built-in dialect names.
const (
	SQL       = "sql"
	SQLMySQL  = "sql-mysql"
	SQLSQLite = "sql-sqlite"
	PSQL      = "psql"
	PSQLMySQL = "psql-mysql"
)

//go:embed defs/*.yaml
var defs embed.FS

// FS returns the built-in grammar definitions.
func FS() fs.FS { return defs }

// RegisterAll registers the built-in dialects into reg and validates that
// every chameleon of every dialect resolves to an embedded dialect.
func RegisterAll(ctx context.Context, reg *dialect.Registry) error {
	m, err := dialect.LoadManifest(defs, ManifestFile)
	if err != nil {
		return err
	}
	if err := m.Register(ctx, defs, reg); err != nil {
		return fmt.Errorf("register built-in dialects: %w", err)
	}
	return reg.Validate(ctx)
}

// NewRegistry returns a registry holding the built-in dialects.
func NewRegistry(ctx context.Context, logger *slog.Logger) (*dialect.Registry, error) {
	reg := dialect.NewRegistry(logger)
	if err := RegisterAll(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}
