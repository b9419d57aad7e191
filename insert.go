package sqlrepo

import (
	"context"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/maxshaw/sqlrepo/qb"
)

// InsertStatement builds an INSERT either from explicit With values or from
// a whole entity passed to For. Identity and excluded members of an entity
// are skipped.
type InsertStatement struct {
	executor Executor
	config   Config
	schema   *Schema

	mode      updateMode
	values    []assignment
	entity    reflect.Value
	tableName string

	err error
}

// NewInsert starts an INSERT into entity's table, using the default
// configuration and no executor.
func NewInsert(entity any) *InsertStatement {
	return newInsert(nil, defaultConfig(), entity)
}

func newInsert(executor Executor, config Config, entity any) *InsertStatement {
	i := &InsertStatement{executor: executor, config: config, schema: &Schema{}}

	schema, err := SchemaOf(entity)
	if err != nil {
		i.err = err
		return i
	}
	i.schema = schema
	return i
}

// Err returns the first error recorded by a chained call.
func (i *InsertStatement) Err() error {
	return i.err
}

// With adds one column value.
func (i *InsertStatement) With(member string, value any) *InsertStatement {
	if i.err != nil {
		return i
	}
	if i.mode == modeEntity {
		return i.fail(invalidState("With", "With cannot be used once For has been used, create a new statement"))
	}

	col, err := i.schema.Column(member)
	if err != nil {
		return i.fail(err)
	}
	if _, err := qb.FormatValue(value); err != nil {
		return i.fail(err)
	}
	if err := i.schema.checkValue(member, value); err != nil {
		return i.fail(err)
	}

	i.mode = modeAssignment
	i.values = append(i.values, assignment{column: col, value: value})
	return i
}

// For inserts the writable members of entity, read when the statement
// renders.
func (i *InsertStatement) For(entity any) *InsertStatement {
	if i.err != nil {
		return i
	}
	if i.mode != modeFresh {
		return i.fail(invalidState("For", "For cannot be used once With or For has been used, create a new statement"))
	}

	rv := reflect.ValueOf(entity)
	if entity == nil || (rv.Kind() == reflect.Pointer && rv.IsNil()) {
		return i.fail(invalidState("For", "entity is nil"))
	}
	if reflect.Indirect(rv).Type() != i.schema.Type {
		return i.fail(invalidState("For", "entity is a %s, statement inserts %s", reflect.Indirect(rv).Type(), i.schema.Type))
	}

	i.mode = modeEntity
	i.entity = rv
	return i
}

// UsingTableName overrides the table name.
func (i *InsertStatement) UsingTableName(name string) *InsertStatement {
	i.tableName = name
	return i
}

// Sql renders the statement.
func (i *InsertStatement) Sql() (string, error) {
	if i.err != nil {
		return "", i.err
	}

	values := i.values
	switch i.mode {
	case modeFresh:
		return "", invalidState("Sql", "statement has not been initialised using With or For")
	case modeEntity:
		entity := reflect.Indirect(i.entity)
		fields := lo.Filter(i.schema.Fields, func(f Field, _ int) bool {
			return !f.Identity && !f.Excluded && f.Writable
		})
		values = lo.Map(fields, func(f Field, _ int) assignment {
			return assignment{column: f.Column, value: i.schema.value(entity, f)}
		})
	}
	if len(values) == 0 {
		return "", &SchemaError{Entity: i.schema.Type.Name(), Msg: "entity has no insertable member"}
	}

	var (
		sb   strings.Builder
		vals = make([]string, 0, len(values))
	)
	for _, v := range values {
		s, err := qb.FormatValue(v.value)
		if err != nil {
			return "", err
		}
		vals = append(vals, s)
	}

	sb.WriteString("INSERT INTO ")
	sb.WriteString(qb.QuoteTable(i.config.schemaOr(i.schema.Schema), lo.Ternary(i.tableName != "", i.tableName, i.schema.Table)))
	sb.WriteString("(")
	sb.WriteString(strings.Join(lo.Map(values, func(v assignment, _ int) string { return qb.Quote("", v.column) }), ", "))
	sb.WriteString(")\nVALUES(")
	sb.WriteString(strings.Join(vals, ", "))
	sb.WriteString(");")
	return sb.String(), nil
}

// Go runs the statement and returns the number of inserted rows.
func (i *InsertStatement) Go(ctx context.Context) (int64, error) {
	sq, err := i.Sql()
	if err != nil {
		return 0, err
	}
	if i.executor == nil {
		return 0, invalidState("Go", "statement has no executor")
	}

	i.config.logf("[SQL] %s", sq)

	res, err := i.executor.ExecContext(ctx, sq)
	if err != nil {
		return 0, errors.Wrap(err, "sqlrepo: insert")
	}
	return res.RowsAffected()
}

func (i *InsertStatement) fail(err error) *InsertStatement {
	if i.err == nil {
		i.err = err
	}
	return i
}
