package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
)

// A Filter selects and orders the rows returned by a query.
type Filter struct {
	// Where is a condition without the WHERE keyword, such as "PID = ?".
	Where string
	Args  []any

	// OrderBy is a column list without the ORDER BY keywords.
	OrderBy string

	// Limit caps the number of returned rows. Zero means no cap.
	Limit int
}

func (f Filter) clause(withOrder bool) string {
	var b strings.Builder

	if f.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(f.Where)
	}

	if !withOrder {
		return b.String()
	}

	if f.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(f.OrderBy)
	}

	if f.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", f.Limit)
	}

	return b.String()
}

// DataReader reads back the tables written by a DataRecorder.
type DataReader interface {
	// MapTable tells which struct the rows of a table are read into. A table
	// must be mapped before it is queried.
	MapTable(tableName string, sampleEntry any)

	// StoredTables returns the names of the tables in the database.
	StoredTables(ctx context.Context) ([]string, error)

	// CountRows returns the number of rows of a table.
	CountRows(ctx context.Context, tableName string) (int, error)

	// Query returns the rows of a mapped table selected by the filter, as
	// pointers to the mapped struct, and the number of rows the filter
	// selects when the limit is ignored.
	Query(ctx context.Context, tableName string, f Filter) (
		rows []any,
		total int,
		err error,
	)

	Close() error
}

type sqliteReader struct {
	db    *sql.DB
	types map[string]reflect.Type
}

// NewReader opens the SQLite database at path for reading.
func NewReader(path string) DataReader {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		panic(err)
	}

	return &sqliteReader{
		db:    db,
		types: make(map[string]reflect.Type),
	}
}

func (r *sqliteReader) MapTable(tableName string, sampleEntry any) {
	r.types[tableName] = reflect.TypeOf(sampleEntry)
}

func (r *sqliteReader) StoredTables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string

	for rows.Next() {
		var name string

		err = rows.Scan(&name)
		if err != nil {
			return nil, err
		}

		tables = append(tables, name)
	}

	return tables, rows.Err()
}

func (r *sqliteReader) CountRows(
	ctx context.Context,
	tableName string,
) (int, error) {
	return r.count(ctx, tableName, Filter{})
}

func (r *sqliteReader) count(
	ctx context.Context,
	tableName string,
	f Filter,
) (int, error) {
	var n int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+tableName+f.clause(false),
		f.Args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", tableName, err)
	}

	return n, nil
}

func (r *sqliteReader) Query(
	ctx context.Context,
	tableName string,
	f Filter,
) ([]any, int, error) {
	t, ok := r.types[tableName]
	if !ok {
		return nil, 0, fmt.Errorf("table %s is not mapped", tableName)
	}

	total, err := r.count(ctx, tableName, f)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT * FROM "+tableName+f.clause(true), f.Args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying %s: %w", tableName, err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows, t)
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", tableName, err)
	}

	return entries, total, nil
}

// scanEntries reads every row into a new value of type t. Columns are
// matched to fields by name; columns without a field are skipped.
func scanEntries(rows *sql.Rows, t reflect.Type) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var entries []any

	for rows.Next() {
		entry := reflect.New(t)
		targets := make([]any, len(columns))

		for i, name := range columns {
			field := entry.Elem().FieldByName(name)
			if !field.IsValid() {
				targets[i] = new(any)
				continue
			}

			targets[i] = field.Addr().Interface()
		}

		err = rows.Scan(targets...)
		if err != nil {
			return nil, err
		}

		entries = append(entries, entry.Interface())
	}

	return entries, rows.Err()
}

func (r *sqliteReader) Close() error {
	return r.db.Close()
}
