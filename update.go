package sqlrepo

import (
	"context"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/maxshaw/sqlrepo/qb"
)

// updateMode is the population mode of an UpdateStatement. Assignment and
// entity modes exclude each other for the lifetime of the statement.
type updateMode int

const (
	modeFresh updateMode = iota
	modeAssignment
	modeEntity
)

func (m updateMode) String() string {
	switch m {
	case modeAssignment:
		return "assignment"
	case modeEntity:
		return "entity"
	}
	return "fresh"
}

type assignment struct {
	column string
	value  any
}

// UpdateStatement builds an UPDATE either from explicit Set assignments with
// a Where predicate, or from a whole entity passed to For, whose key members
// form the WHERE clause.
//
// The first failing call is recorded; later calls are ignored and Sql and Go
// return the error. Err reports it right away.
type UpdateStatement struct {
	executor Executor
	config   Config
	schema   *Schema

	mode        updateMode
	assignments []assignment
	entity      reflect.Value
	where       *qb.WhereBuilder

	tableSchema  string
	tableName    string
	tableRenamed bool

	err error
}

// NewUpdate starts an UPDATE of entity's table, using the default
// configuration and no executor.
func NewUpdate(entity any) *UpdateStatement {
	return newUpdate(nil, defaultConfig(), entity)
}

func newUpdate(executor Executor, config Config, entity any) *UpdateStatement {
	u := &UpdateStatement{executor: executor, config: config}

	schema, err := SchemaOf(entity)
	if err != nil {
		u.err = err
		u.schema = &Schema{}
		u.where = qb.NewWhereBuilder(qb.Translator{})
		return u
	}

	u.schema = schema
	u.where = qb.NewWhereBuilder(qb.Translator{Resolve: schema.Column})
	return u
}

// Err returns the first error recorded by a chained call.
func (u *UpdateStatement) Err() error {
	return u.err
}

// IsClean reports whether neither assignments, an entity nor predicates
// have been added.
func (u *UpdateStatement) IsClean() bool {
	return u.mode == modeFresh && u.where.IsClean()
}

// enter is the single guard of mode transitions.
func (u *UpdateStatement) enter(op string, mode updateMode) error {
	switch {
	case mode == modeEntity && u.mode == modeAssignment:
		return invalidState(op, "For cannot be used once Set has been used, create a new statement")
	case mode == modeEntity && !u.where.IsClean():
		return invalidState(op, "For cannot be used once Where has been used, create a new statement")
	case mode == modeEntity && u.mode == modeEntity:
		return invalidState(op, "For can only be used once, create a new statement")
	case mode == modeAssignment && u.mode == modeEntity:
		return invalidState(op, "Set cannot be used once For has been used, create a new statement")
	case mode == modeFresh && u.mode == modeEntity:
		return invalidState(op, "%s cannot be used once For has been used, create a new statement", op)
	}
	return nil
}

// For updates every writable, non-key member of entity, matching the row
// by its key members. Values are read when the statement renders, so pass a
// pointer to see later changes.
func (u *UpdateStatement) For(entity any) *UpdateStatement {
	if u.err != nil {
		return u
	}
	if err := u.enter("For", modeEntity); err != nil {
		return u.fail(err)
	}

	rv := reflect.ValueOf(entity)
	if entity == nil || (rv.Kind() == reflect.Pointer && rv.IsNil()) {
		return u.fail(invalidState("For", "entity is nil"))
	}
	if reflect.Indirect(rv).Type() != u.schema.Type {
		return u.fail(invalidState("For", "entity is a %s, statement updates %s", reflect.Indirect(rv).Type(), u.schema.Type))
	}
	if len(u.schema.Keys()) == 0 {
		return u.fail(&SchemaError{Entity: u.schema.Type.Name(), Msg: "updating a whole entity needs at least one key member"})
	}

	u.mode = modeEntity
	u.entity = rv
	return u
}

// Set assigns value to member. The optional target names the table schema
// and table name; the last non-empty values win, and a name given to
// UsingTableName is kept.
func (u *UpdateStatement) Set(member string, value any, target ...string) *UpdateStatement {
	if u.err != nil {
		return u
	}
	if err := u.enter("Set", modeAssignment); err != nil {
		return u.fail(err)
	}

	col, err := u.schema.Column(member)
	if err != nil {
		return u.fail(err)
	}
	if f, ok := u.schema.Field(member); ok && !f.Writable {
		return u.fail(&SchemaError{Entity: u.schema.Type.Name(), Field: member, Msg: "member type cannot be written"})
	}
	if _, err := qb.FormatValue(value); err != nil {
		return u.fail(err)
	}
	if err := u.schema.checkValue(member, value); err != nil {
		return u.fail(err)
	}

	u.mode = modeAssignment
	u.assignments = append(u.assignments, assignment{column: col, value: value})

	if len(target) > 0 && target[0] != "" {
		u.tableSchema = target[0]
	}
	if len(target) > 1 && target[1] != "" && !u.tableRenamed {
		u.tableName = target[1]
	}
	return u
}

// Where adds a predicate; successive calls combine with AND.
func (u *UpdateStatement) Where(e qb.Expr) *UpdateStatement {
	return u.filter("Where", u.where.Where, e)
}

func (u *UpdateStatement) WhereIn(member string, values ...any) *UpdateStatement {
	return u.filter("WhereIn", u.where.Where, qb.In(member, values...))
}

func (u *UpdateStatement) And(e qb.Expr) *UpdateStatement {
	return u.filter("And", u.where.And, e)
}

func (u *UpdateStatement) Or(e qb.Expr) *UpdateStatement {
	return u.filter("Or", u.where.Or, e)
}

func (u *UpdateStatement) NestedAnd(e qb.Expr) *UpdateStatement {
	return u.filter("NestedAnd", u.where.NestedAnd, e)
}

func (u *UpdateStatement) NestedOr(e qb.Expr) *UpdateStatement {
	return u.filter("NestedOr", u.where.NestedOr, e)
}

func (u *UpdateStatement) filter(op string, add func(qb.Expr) error, e qb.Expr) *UpdateStatement {
	if u.err != nil {
		return u
	}
	if err := u.enter(op, modeFresh); err != nil {
		return u.fail(err)
	}
	if err := add(e); err != nil {
		return u.fail(err)
	}
	return u
}

// UsingTableName overrides the table name; later Set targets do not change
// it.
func (u *UpdateStatement) UsingTableName(name string) *UpdateStatement {
	u.tableName = name
	u.tableRenamed = true
	return u
}

// Sql renders the statement.
func (u *UpdateStatement) Sql() (string, error) {
	if u.err != nil {
		return "", u.err
	}
	if u.mode == modeFresh {
		return "", invalidState("Sql", "statement has not been initialised using Set or For")
	}

	set, err := u.setClause()
	if err != nil {
		return "", err
	}
	where, err := u.whereClause()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(qb.QuoteTable(u.config.schemaOr(lo.Ternary(u.tableSchema != "", u.tableSchema, u.schema.Schema)), u.table()))
	sb.WriteString("\nSET ")
	sb.WriteString(set)
	sb.WriteString(where)
	sb.WriteString(";")
	return sb.String(), nil
}

// Go runs the statement and returns the number of affected rows.
func (u *UpdateStatement) Go(ctx context.Context) (int64, error) {
	sq, err := u.Sql()
	if err != nil {
		return 0, err
	}
	if u.executor == nil {
		return 0, invalidState("Go", "statement has no executor")
	}

	u.config.logf("[SQL] %s", sq)

	res, err := u.executor.ExecContext(ctx, sq)
	if err != nil {
		return 0, errors.Wrap(err, "sqlrepo: update")
	}
	return res.RowsAffected()
}

func (u *UpdateStatement) table() string {
	if u.tableName != "" {
		return u.tableName
	}
	return u.schema.Table
}

func (u *UpdateStatement) setClause() (string, error) {
	if u.mode == modeAssignment {
		return u.pairs(u.assignments)
	}

	entity := reflect.Indirect(u.entity)
	fields := lo.Filter(u.schema.Fields, func(f Field, _ int) bool {
		return !f.Key && !f.Excluded && f.Writable
	})
	if len(fields) == 0 {
		return "", &SchemaError{Entity: u.schema.Type.Name(), Msg: "entity has no writable non-key member"}
	}
	return u.pairs(lo.Map(fields, func(f Field, _ int) assignment {
		return assignment{column: f.Column, value: u.schema.value(entity, f)}
	}))
}

// whereClause joins the key predicates of entity mode with commas, not AND.
func (u *UpdateStatement) whereClause() (string, error) {
	if u.mode == modeEntity {
		entity := reflect.Indirect(u.entity)
		keys := u.schema.Keys()
		if len(keys) == 0 {
			return "", nil
		}
		pairs, err := u.pairs(lo.Map(keys, func(f Field, _ int) assignment {
			return assignment{column: f.Column, value: u.schema.value(entity, f)}
		}))
		if err != nil {
			return "", err
		}
		return " WHERE  " + pairs, nil
	}

	if sq := u.where.Sql(); sq != "" {
		return "\n" + sq, nil
	}
	return "", nil
}

func (u *UpdateStatement) pairs(list []assignment) (string, error) {
	out := make([]string, 0, len(list))
	for _, a := range list {
		val, err := qb.FormatValue(a.value)
		if err != nil {
			return "", err
		}
		out = append(out, qb.Quote("", a.column)+" = "+val)
	}
	return strings.Join(out, ", "), nil
}

func (u *UpdateStatement) fail(err error) *UpdateStatement {
	if u.err == nil {
		u.err = err
	}
	return u
}
