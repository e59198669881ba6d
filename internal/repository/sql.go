package repository

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/deppfellow/crudrouter/internal/resource"
	"github.com/deppfellow/crudrouter/internal/schema"
	"github.com/jackc/pgx/v5"
)

// dialect holds what differs between the SQL backends.
type dialect struct {
	name        string
	idColumn    string
	types       map[schema.FieldType]string
	placeholder func(n int) string
	quote       func(ident string) string
}

var postgresDialect = dialect{
	name:     resource.StorePostgres,
	idColumn: "BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY",
	types: map[schema.FieldType]string{
		schema.TypeString:    "TEXT",
		schema.TypeInteger:   "BIGINT",
		schema.TypeNumber:    "DOUBLE PRECISION",
		schema.TypeBoolean:   "BOOLEAN",
		schema.TypeTimestamp: "TIMESTAMPTZ",
	},
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	quote:       func(ident string) string { return pgx.Identifier{ident}.Sanitize() },
}

// SQLite column types are chosen so go-sqlite3 converts BOOLEAN and
// TIMESTAMP columns back to bool and time.Time on read.
var sqliteDialect = dialect{
	name:     resource.StoreSQLite,
	idColumn: "INTEGER PRIMARY KEY AUTOINCREMENT",
	types: map[schema.FieldType]string{
		schema.TypeString:    "TEXT",
		schema.TypeInteger:   "INTEGER",
		schema.TypeNumber:    "REAL",
		schema.TypeBoolean:   "BOOLEAN",
		schema.TypeTimestamp: "TIMESTAMP",
	},
	placeholder: func(int) string { return "?" },
	quote: func(ident string) string {
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	},
}

func dialectFor(store string) (dialect, error) {
	switch store {
	case resource.StorePostgres:
		return postgresDialect, nil
	case resource.StoreSQLite:
		return sqliteDialect, nil
	}
	return dialect{}, fmt.Errorf("no SQL dialect for store %q", store)
}

// statement is a query and its arguments.
type statement struct {
	sql  string
	args []any
}

// builder renders the statements of one resource table.
type builder struct {
	d       dialect
	table   string
	columns []string
	selects string
}

func newBuilder(d dialect, desc *resource.Descriptor) builder {
	cols := desc.Columns().Names()
	quoted := make([]string, 0, len(cols)+1)
	quoted = append(quoted, d.quote(schema.IDField))
	for _, c := range cols {
		quoted = append(quoted, d.quote(c))
	}
	return builder{
		d:       d,
		table:   d.quote(desc.Name),
		columns: cols,
		selects: strings.Join(quoted, ", "),
	}
}

func (b builder) insert(rec Record) statement {
	keys := sortedKeys(rec)
	if len(keys) == 0 {
		return statement{sql: fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s", b.table, b.d.quote(schema.IDField))}
	}

	cols := make([]string, len(keys))
	marks := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		cols[i] = b.d.quote(k)
		marks[i] = b.d.placeholder(i + 1)
		args[i] = rec[k]
	}
	return statement{
		sql: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
			b.table, strings.Join(cols, ", "), strings.Join(marks, ", "), b.d.quote(schema.IDField)),
		args: args,
	}
}

func (b builder) get(id int64) statement {
	return statement{
		sql:  fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s", b.selects, b.table, b.d.quote(schema.IDField), b.d.placeholder(1)),
		args: []any{id},
	}
}

// where renders an equality conjunction starting at placeholder n.
func (b builder) where(filter Filter, n int) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}
	keys := sortedKeys(filter)
	parts := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		v := filter[k]
		if v == nil {
			parts = append(parts, b.d.quote(k)+" IS NULL")
			continue
		}
		parts = append(parts, b.d.quote(k)+" = "+b.d.placeholder(n))
		args = append(args, v)
		n++
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func (b builder) list(filter Filter, page Page) statement {
	where, args := b.where(filter, 1)
	n := len(args) + 1
	return statement{
		sql: fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s ASC LIMIT %s OFFSET %s",
			b.selects, b.table, where, b.d.quote(schema.IDField), b.d.placeholder(n), b.d.placeholder(n+1)),
		args: append(args, page.Size, page.Offset()),
	}
}

func (b builder) count(filter Filter) statement {
	where, args := b.where(filter, 1)
	return statement{
		sql:  fmt.Sprintf("SELECT COUNT(*) FROM %s%s", b.table, where),
		args: args,
	}
}

// update returns the zero statement when patch is empty.
func (b builder) update(id int64, patch Record) statement {
	keys := sortedKeys(patch)
	if len(keys) == 0 {
		return statement{}
	}
	sets := make([]string, len(keys))
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		sets[i] = b.d.quote(k) + " = " + b.d.placeholder(i+1)
		args = append(args, patch[k])
	}
	args = append(args, id)
	return statement{
		sql: fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s RETURNING %s",
			b.table, strings.Join(sets, ", "), b.d.quote(schema.IDField), b.d.placeholder(len(keys)+1), b.selects),
		args: args,
	}
}

func (b builder) delete(id int64) statement {
	return statement{
		sql:  fmt.Sprintf("DELETE FROM %s WHERE %s = %s", b.table, b.d.quote(schema.IDField), b.d.placeholder(1)),
		args: []any{id},
	}
}

// CreateTableSQL renders the table of desc for the given SQL store.
func CreateTableSQL(store string, desc *resource.Descriptor) (string, error) {
	d, err := dialectFor(store)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE IF NOT EXISTS %s (\n", d.quote(desc.Name))
	fmt.Fprintf(&sb, "    %s %s", d.quote(schema.IDField), d.idColumn)
	for _, f := range desc.Columns().Fields() {
		fmt.Fprintf(&sb, ",\n    %s %s", d.quote(f.Name), d.types[f.Type])
		if f.Unique {
			sb.WriteString(" UNIQUE")
		}
	}
	sb.WriteString("\n)")
	return sb.String(), nil
}
