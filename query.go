package sqlrepo

import (
	"context"
	"database/sql"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// Query runs s and scans every row into a T, matching result columns to
// members by column name, case-insensitively. Unmatched columns, such as the
// row_number of paged statements, are discarded.
func Query[T any](ctx context.Context, s *SelectStatement) ([]T, error) {
	var zero T
	rtype := reflect.TypeOf(zero)
	if rtype == nil || rtype.Kind() != reflect.Struct {
		return nil, &SchemaError{Entity: reflect.TypeOf(&zero).Elem().String(), Msg: "query results scan into structs only"}
	}
	schema, err := SchemaOf(rtype)
	if err != nil {
		return nil, err
	}

	rows, err := s.Go(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "sqlrepo: columns")
	}

	fields := make([]*Field, len(cols))
	for i, col := range cols {
		for j := range schema.Fields {
			f := &schema.Fields[j]
			if !f.Excluded && strings.EqualFold(f.Column, col) {
				fields[i] = f
				break
			}
		}
	}

	var out []T
	for rows.Next() {
		var item T
		rv := reflect.ValueOf(&item).Elem()

		dest := make([]any, len(cols))
		for i, f := range fields {
			if f != nil {
				if ptr, ok := schema.addr(rv, *f); ok {
					dest[i] = ptr
					continue
				}
			}
			dest[i] = new(sql.RawBytes)
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrap(err, "sqlrepo: scan")
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlrepo: rows")
	}
	return out, nil
}
