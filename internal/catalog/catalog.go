// Package catalog declares the example cat model served by the datamap
// command: its definition, custom types, table schema and fixture rows.
package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/conduit-lang/datamap/pkg/orm/adapter/sqlstore"
	"github.com/conduit-lang/datamap/pkg/orm/model"
	"github.com/conduit-lang/datamap/pkg/orm/schema"
	"github.com/conduit-lang/datamap/pkg/orm/types"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_postgres.sql
var postgresSchema string

// Cat is the example model. name, color and breed use handlers scoped to
// the cat model; age uses the general age handler.
var Cat = schema.Define("cat").
	Attr("name", "name", schema.With(types.Options{"required": true, "maxLength": 255})).
	Attr("color", "color").
	Attr("breed", "breed").
	Attr("createdAt", "date").
	Attr("age", "age", schema.With(types.Options{"min": 0, "max": 40})).
	Attr("isActive", "boolean", schema.Default(true)).
	MustBuild()

// Models returns the catalog's definitions keyed by model name
func Models() map[string]*schema.Definition {
	return map[string]*schema.Definition{Cat.Name(): Cat}
}

// Types returns the catalog's custom handlers keyed by type name
func Types() map[string]types.Handler {
	return map[string]types.Handler{
		schema.ScopedTypeName(Cat.Name(), "name"):  Name{},
		schema.ScopedTypeName(Cat.Name(), "color"): Color{},
		schema.ScopedTypeName(Cat.Name(), "breed"): types.String{},
		"age": Age{},
	}
}

// Fixtures returns fresh copies of the seed rows
func Fixtures() []map[string]any {
	return []map[string]any{
		{
			"name":      "Fluffy",
			"color":     "grey",
			"breed":     "Abyssinian",
			"createdAt": "2017-08-28T20:17:25.601Z",
			"age":       12,
			"isActive":  true,
		},
		{
			"name":      "Rt Hon. Douglas Meow",
			"color":     "brown",
			"breed":     "American Shorthair",
			"createdAt": "2017-07-28T20:17:25.601Z",
			"age":       10,
			"isActive":  true,
		},
	}
}

// Schema returns the DDL creating the cat table for a dialect
func Schema(dialect sqlstore.Dialect) string {
	if dialect == sqlstore.Postgres {
		return postgresSchema
	}
	return sqliteSchema
}

// Migrate creates the cat table if it does not exist
func Migrate(ctx context.Context, db *sql.DB, dialect sqlstore.Dialect) error {
	if _, err := db.ExecContext(ctx, Schema(dialect)); err != nil {
		return fmt.Errorf("failed to create %s table: %w", Cat.Table(), err)
	}
	return nil
}

// Seed replaces every cat with the fixture rows and returns the number created
func Seed(ctx context.Context, cats *model.Class) (int64, error) {
	if err := cats.Truncate(ctx); err != nil {
		return 0, err
	}
	return cats.CreateSome(ctx, Fixtures())
}
