// Package pgcatalog builds an in-memory catalog snapshot from the system
// catalogs of a live PostgreSQL database. Only the facts the optimizer uses
// are read: tables, columns, and primary key and unique constraints.
package pgcatalog

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/dshills/QuantaOpt/internal/catalog"
	qerrors "github.com/dshills/QuantaOpt/internal/errors"
	"github.com/dshills/QuantaOpt/internal/log"
	"github.com/dshills/QuantaOpt/internal/sql/types"
)

const columnsQuery = `
SELECT table_schema, table_name, column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = ANY($1)
ORDER BY table_schema, table_name, ordinal_position`

const constraintsQuery = `
SELECT n.nspname, c.relname, con.conname, con.contype, a.attname
FROM pg_catalog.pg_constraint con
JOIN pg_catalog.pg_class c ON c.oid = con.conrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
CROSS JOIN LATERAL unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord)
JOIN pg_catalog.pg_attribute a ON a.attrelid = c.oid AND a.attnum = k.attnum
WHERE con.contype IN ('p', 'u') AND n.nspname = ANY($1)
ORDER BY n.nspname, c.relname, con.conname, k.ord`

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, qerrors.CatalogConnectionError(err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, qerrors.CatalogConnectionError(err)
	}
	return db, nil
}

// Loader reads catalog snapshots from a database handle.
type Loader struct {
	db     *sql.DB
	logger log.Logger
}

// NewLoader creates a loader over db.
func NewLoader(db *sql.DB) *Loader {
	return &Loader{db: db, logger: log.Default()}
}

// WithLogger sets the logger used to report loads.
func (l *Loader) WithLogger(logger log.Logger) *Loader {
	l.logger = logger
	return l
}

// Load reads every table of the given schemas, "public" when none are given.
func (l *Loader) Load(ctx context.Context, schemas ...string) (*catalog.MemoryCatalog, error) {
	start := time.Now()
	if len(schemas) == 0 {
		schemas = []string{"public"}
	}

	defs, order, err := l.loadColumns(ctx, schemas)
	if err != nil {
		return nil, err
	}
	if err := l.loadConstraints(ctx, schemas, defs); err != nil {
		return nil, err
	}

	cat := catalog.NewMemoryCatalog()
	for _, name := range schemas {
		if name == "public" {
			continue
		}
		if err := cat.CreateSchema(name); err != nil {
			return nil, err
		}
	}
	for _, key := range order {
		if _, err := cat.CreateTable(defs[key]); err != nil {
			return nil, err
		}
	}

	l.logger.Info("loaded catalog from database",
		log.Int("schemas", len(schemas)),
		log.Int("tables", len(order)),
		log.Duration("elapsed", time.Since(start)))
	return cat, nil
}

// Load is a convenience wrapper around NewLoader(db).Load(ctx, schemas...).
func Load(ctx context.Context, db *sql.DB, schemas ...string) (*catalog.MemoryCatalog, error) {
	return NewLoader(db).Load(ctx, schemas...)
}

func (l *Loader) loadColumns(ctx context.Context, schemas []string) (map[string]*catalog.TableSchema, []string, error) {
	rows, err := l.db.QueryContext(ctx, columnsQuery, pq.Array(schemas))
	if err != nil {
		return nil, nil, qerrors.CatalogConnectionError(err)
	}
	defer rows.Close()

	defs := make(map[string]*catalog.TableSchema)
	var order []string
	for rows.Next() {
		var schemaName, tableName, columnName, dataType, nullable string
		if err := rows.Scan(&schemaName, &tableName, &columnName, &dataType, &nullable); err != nil {
			return nil, nil, qerrors.CatalogConnectionError(err)
		}

		key := schemaName + "." + tableName
		def, ok := defs[key]
		if !ok {
			def = &catalog.TableSchema{SchemaName: schemaName, TableName: tableName}
			defs[key] = def
			order = append(order, key)
		}
		def.Columns = append(def.Columns, catalog.ColumnDef{
			Name:       columnName,
			DataType:   dataTypeOf(dataType),
			IsNullable: strings.EqualFold(nullable, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, qerrors.CatalogConnectionError(err)
	}
	return defs, order, nil
}

func (l *Loader) loadConstraints(ctx context.Context, schemas []string, defs map[string]*catalog.TableSchema) error {
	rows, err := l.db.QueryContext(ctx, constraintsQuery, pq.Array(schemas))
	if err != nil {
		return qerrors.CatalogConnectionError(err)
	}
	defer rows.Close()

	type pending struct {
		table   string
		kind    string
		columns []string
	}
	var constraints []*pending
	byName := make(map[string]*pending)

	for rows.Next() {
		var schemaName, tableName, name, kind, column string
		if err := rows.Scan(&schemaName, &tableName, &name, &kind, &column); err != nil {
			return qerrors.CatalogConnectionError(err)
		}
		table := schemaName + "." + tableName
		id := table + "." + name
		p, ok := byName[id]
		if !ok {
			p = &pending{table: table, kind: kind}
			byName[id] = p
			constraints = append(constraints, p)
		}
		p.columns = append(p.columns, column)
	}
	if err := rows.Err(); err != nil {
		return qerrors.CatalogConnectionError(err)
	}

	for _, p := range constraints {
		def, ok := defs[p.table]
		if !ok {
			l.logger.Warn("constraint on a table without visible columns", log.String("table", p.table))
			continue
		}
		if p.kind == "p" {
			def.Constraints = append(def.Constraints, catalog.PrimaryKeyConstraint{Columns: p.columns})
		} else {
			def.Constraints = append(def.Constraints, catalog.UniqueConstraint{Columns: p.columns})
		}
	}
	return nil
}

// dataTypeOf maps an information_schema data type name. Types the optimizer
// has no use for map to Unknown.
func dataTypeOf(name string) types.DataType {
	switch strings.ToLower(name) {
	case "smallint":
		return types.Integer
	case "character varying", "character", "name":
		return types.Text
	case "real", "numeric":
		return types.Double
	}
	if dt, err := types.ParseDataType(name); err == nil {
		return dt
	}
	return types.Unknown
}
