package sqlrepo

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/maxshaw/sqlrepo/qb"
)

// SelectStatement builds a SELECT through chained calls. Calls apply to the
// current table: the anchor at first, then the most recently joined table,
// or whichever table From selected.
//
// The first failing call is recorded; later calls are ignored and Sql and Go
// return the error. Err reports it right away.
type SelectStatement struct {
	executor Executor
	config   Config

	spec    SelectStatementSpecification
	schemas []*Schema
	current int
	filter  *qb.FilterGroup
	// filtered holds the indexes of the tables named by filter terms.
	filtered []int

	err error
}

// NewSelect starts a SELECT with entity as the anchor table, using the
// default configuration and no executor.
func NewSelect(entity any) *SelectStatement {
	return newSelect(nil, defaultConfig(), entity)
}

func newSelect(executor Executor, config Config, entity any) *SelectStatement {
	s := &SelectStatement{executor: executor, config: config}
	s.spec.NoLocks = config.NoLocks
	s.spec.PageSize = config.pageSize()

	schema, err := SchemaOf(entity)
	if err != nil {
		return s.fail(err)
	}
	s.addTable(schema, "", JoinNone)
	return s
}

// Err returns the first error recorded by a chained call.
func (s *SelectStatement) Err() error {
	return s.err
}

// Specification exposes the underlying statement description.
func (s *SelectStatement) Specification() *SelectStatementSpecification {
	return &s.spec
}

// As aliases the anchor table. It must precede every other call.
func (s *SelectStatement) As(alias string) *SelectStatement {
	if s.err != nil {
		return s
	}
	if len(s.spec.Tables) != 1 || s.referenced() {
		return s.fail(invalidState("As", "the anchor table can only be aliased before it is used"))
	}
	s.spec.Tables[0].Alias = alias
	return s
}

// From makes an already declared table current.
func (s *SelectStatement) From(entity any, alias ...string) *SelectStatement {
	if s.err != nil {
		return s
	}

	rtype, err := entityType(entity)
	if err != nil {
		return s.fail(err)
	}

	var a string
	if len(alias) > 0 {
		a = alias[0]
	}
	for i, t := range s.spec.Tables {
		if t.matches(rtype, a) {
			s.current = i
			return s
		}
	}
	return s.fail(invalidState("From", "table %s (alias %q) is not part of the statement", rtype.Name(), a))
}

// UsingTableName overrides the name of the current table. It must precede
// every call referencing that table.
func (s *SelectStatement) UsingTableName(name string) *SelectStatement {
	if s.err != nil {
		return s
	}
	if s.referenced() {
		return s.fail(invalidState("UsingTableName", "table name can only change before the table is used"))
	}

	t := &s.spec.Tables[s.current]
	t.Name = name
	for i := range s.spec.Joins {
		if t.matches(s.spec.Joins[i].RightEntityType, s.spec.Joins[i].RightAlias) {
			s.spec.Joins[i].RightTable = name
		}
	}
	return s
}

// Select adds members of the current table to the select list.
func (s *SelectStatement) Select(members ...string) *SelectStatement {
	for _, m := range members {
		s.column(m, "", NoAggregate)
	}
	return s
}

// SelectAs adds one member under an output alias.
func (s *SelectStatement) SelectAs(member, alias string) *SelectStatement {
	return s.column(member, alias, NoAggregate)
}

func (s *SelectStatement) Count(member, alias string) *SelectStatement {
	return s.column(member, alias, Count)
}

func (s *SelectStatement) Sum(member, alias string) *SelectStatement {
	return s.column(member, alias, Sum)
}

func (s *SelectStatement) Min(member, alias string) *SelectStatement {
	return s.column(member, alias, Min)
}

func (s *SelectStatement) Max(member, alias string) *SelectStatement {
	return s.column(member, alias, Max)
}

func (s *SelectStatement) Avg(member, alias string) *SelectStatement {
	return s.column(member, alias, Avg)
}

func (s *SelectStatement) column(member, alias string, agg Aggregate) *SelectStatement {
	if s.err != nil {
		return s
	}
	col, err := s.schemas[s.current].Column(member)
	if err != nil {
		return s.fail(err)
	}
	s.spec.Columns = append(s.spec.Columns, ColumnSpecification{
		Table:     s.ref(),
		Name:      col,
		Alias:     alias,
		Aggregate: agg,
	})
	return s
}

func (s *SelectStatement) JoinUsing(target any, col string) *SelectStatement {
	return s.Join(JoinInner, target, "", On(col, col))
}

func (s *SelectStatement) InnerJoin(target any, first, second string) *SelectStatement {
	return s.Join(JoinInner, target, "", On(first, second))
}

func (s *SelectStatement) LeftJoinUsing(target any, col string) *SelectStatement {
	return s.Join(JoinLeft, target, "", On(col, col))
}

func (s *SelectStatement) LeftJoin(target any, first, second string) *SelectStatement {
	return s.Join(JoinLeft, target, "", On(first, second))
}

func (s *SelectStatement) RightJoinUsing(target any, col string) *SelectStatement {
	return s.Join(JoinRight, target, "", On(col, col))
}

func (s *SelectStatement) RightJoin(target any, first, second string) *SelectStatement {
	return s.Join(JoinRight, target, "", On(first, second))
}

func (s *SelectStatement) FullJoin(target any, first, second string) *SelectStatement {
	return s.Join(JoinFull, target, "", On(first, second))
}

// Join attaches target to the current table and makes it current. Each
// condition pairs a member of the current table with a member of target.
func (s *SelectStatement) Join(typ JoinType, target any, alias string, on ...JoinCondition) *SelectStatement {
	if s.err != nil {
		return s
	}
	if typ == JoinNone {
		return s.fail(invalidState("Join", "join type is required"))
	}
	if len(on) == 0 {
		return s.fail(invalidState("Join", "join needs at least one condition"))
	}

	right, err := SchemaOf(target)
	if err != nil {
		return s.fail(err)
	}
	for _, t := range s.spec.Tables {
		if t.matches(right.Type, alias) {
			return s.fail(invalidState("Join", "table %s (alias %q) is already part of the statement", right.Type.Name(), alias))
		}
	}

	left, leftTable := s.schemas[s.current], s.spec.Tables[s.current]

	conds := make([]JoinCondition, 0, len(on))
	for _, c := range on {
		l, err := left.Column(c.Left)
		if err != nil {
			return s.fail(err)
		}
		r, err := right.Column(c.Right)
		if err != nil {
			return s.fail(err)
		}
		conds = append(conds, JoinCondition{Left: l, Right: r})
	}

	s.addTable(right, alias, typ)
	t := s.spec.Tables[s.current]

	s.spec.Joins = append(s.spec.Joins, JoinSpecification{
		LeftEntityType:  leftTable.EntityType,
		LeftTable:       leftTable.Name,
		LeftAlias:       leftTable.Alias,
		RightEntityType: t.EntityType,
		RightTable:      t.Name,
		RightAlias:      t.Alias,
		JoinType:        typ,
		Conditions:      conds,
	})
	return s
}

// Where adds a predicate over the current table, combined with AND.
func (s *SelectStatement) Where(e qb.Expr) *SelectStatement {
	return s.filterBy(qb.AndConn, false, e)
}

func (s *SelectStatement) WhereIn(member string, values ...any) *SelectStatement {
	return s.filterBy(qb.AndConn, false, qb.In(member, values...))
}

func (s *SelectStatement) And(e qb.Expr) *SelectStatement {
	return s.filterBy(qb.AndConn, false, e)
}

func (s *SelectStatement) Or(e qb.Expr) *SelectStatement {
	return s.filterBy(qb.OrConn, false, e)
}

func (s *SelectStatement) NestedAnd(e qb.Expr) *SelectStatement {
	return s.filterBy(qb.AndConn, true, e)
}

func (s *SelectStatement) NestedOr(e qb.Expr) *SelectStatement {
	return s.filterBy(qb.OrConn, true, e)
}

func (s *SelectStatement) filterBy(conn qb.Conn, nested bool, e qb.Expr) *SelectStatement {
	if s.err != nil {
		return s
	}
	fragment, err := s.translator().Translate(e)
	if err != nil {
		return s.fail(err)
	}
	if s.filter == nil {
		s.filter = &qb.FilterGroup{}
		s.spec.Filters = append(s.spec.Filters, s.filter)
	}
	s.filter.Append(conn, nested, fragment)
	if fragment != "" && !lo.Contains(s.filtered, s.current) {
		s.filtered = append(s.filtered, s.current)
	}
	return s
}

func (s *SelectStatement) OrderBy(member string, sortBy ...SortBy) *SelectStatement {
	if s.err != nil {
		return s
	}
	col, err := s.schemas[s.current].Column(member)
	if err != nil {
		return s.fail(err)
	}

	dir := Ascend
	if len(sortBy) > 0 {
		dir = sortBy[0]
	}
	s.spec.Orderings = append(s.spec.Orderings, OrderSpecification{Table: s.ref(), Column: col, Direction: dir})
	return s
}

func (s *SelectStatement) OrderByDescending(member string) *SelectStatement {
	return s.OrderBy(member, Descend)
}

func (s *SelectStatement) GroupBy(members ...string) *SelectStatement {
	for _, m := range members {
		if s.err != nil {
			return s
		}
		col, err := s.schemas[s.current].Column(m)
		if err != nil {
			return s.fail(err)
		}
		s.spec.Groupings = append(s.spec.Groupings, GroupSpecification{Table: s.ref(), Column: col})
	}
	return s
}

// Having adds "agg(member) op value".
func (s *SelectStatement) Having(agg Aggregate, member string, op qb.Op, value any) *SelectStatement {
	if s.err != nil {
		return s
	}
	col, err := s.schemas[s.current].Column(member)
	if err != nil {
		return s.fail(err)
	}
	switch op {
	case qb.Equal, qb.NotEqual, qb.Greater, qb.GreaterEqual, qb.Less, qb.LessEqual:
	default:
		return s.fail(&UnsupportedExpressionError{Expr: op, Msg: "HAVING supports comparison operators only"})
	}
	val, err := qb.FormatValue(value)
	if err != nil {
		return s.fail(err)
	}
	s.spec.Havings = append(s.spec.Havings, HavingSpecification{
		Table:     s.ref(),
		Column:    col,
		Aggregate: agg,
		Op:        op,
		Value:     val,
	})
	return s
}

// Top limits the result to n rows.
func (s *SelectStatement) Top(n int) *SelectStatement {
	if s.err != nil {
		return s
	}
	if n < 1 {
		return s.fail(invalidState("Top", "row limit must be positive, got %d", n))
	}
	s.spec.Top = Ptr(n)
	s.spec.UseTopPercent = false
	return s
}

// TopPercent limits the result to n percent of the rows.
func (s *SelectStatement) TopPercent(n int) *SelectStatement {
	s.Top(n)
	if s.err == nil {
		s.spec.UseTopPercent = true
	}
	return s
}

// Page selects the 1-based page of Top rows (the configured page size when
// Top is not set). Paging needs an ordering; without one the statement
// renders unpaged.
func (s *SelectStatement) Page(page int) *SelectStatement {
	if s.err != nil {
		return s
	}
	if page < 1 {
		return s.fail(invalidState("Page", "page numbers start at 1, got %d", page))
	}
	s.spec.Page = Ptr(page)
	return s
}

// NoLocks reads every table WITH (NOLOCK).
func (s *SelectStatement) NoLocks() *SelectStatement {
	s.spec.NoLocks = true
	return s
}

// Sql renders the statement.
func (s *SelectStatement) Sql() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.spec.Sql()
}

// Go runs the statement and returns its rows.
func (s *SelectStatement) Go(ctx context.Context) (*sql.Rows, error) {
	sq, err := s.Sql()
	if err != nil {
		return nil, err
	}
	if s.executor == nil {
		return nil, invalidState("Go", "statement has no executor")
	}

	s.config.logf("[SQL] %s", sq)

	rows, err := s.executor.QueryContext(ctx, sq)
	if err != nil {
		return nil, errors.Wrap(err, "sqlrepo: select")
	}
	return rows, nil
}

func (s *SelectStatement) fail(err error) *SelectStatement {
	if s.err == nil {
		s.err = err
	}
	return s
}

func (s *SelectStatement) addTable(schema *Schema, alias string, typ JoinType) {
	s.spec.Tables = append(s.spec.Tables, TableSpecification{
		EntityType: schema.Type,
		Name:       schema.Table,
		Schema:     s.config.schemaOr(schema.Schema),
		Alias:      alias,
		JoinType:   typ,
	})
	s.schemas = append(s.schemas, schema)
	s.current = len(s.spec.Tables) - 1
}

func (s *SelectStatement) ref() string {
	return s.spec.Tables[s.current].Ref()
}

func (s *SelectStatement) translator() qb.Translator {
	return qb.Translator{Table: s.ref(), Resolve: s.schemas[s.current].Column}
}

// referenced reports whether any clause already names the current table.
// The join that attached the table does not count.
func (s *SelectStatement) referenced() bool {
	t, ref := s.spec.Tables[s.current], s.ref()
	for _, c := range s.spec.Columns {
		if c.Table == ref {
			return true
		}
	}
	for _, o := range s.spec.Orderings {
		if o.Table == ref {
			return true
		}
	}
	for _, g := range s.spec.Groupings {
		if g.Table == ref {
			return true
		}
	}
	for _, h := range s.spec.Havings {
		if h.Table == ref {
			return true
		}
	}
	for _, j := range s.spec.Joins {
		if j.leftRef() == ref || (j.rightRef() == ref && !t.matches(j.RightEntityType, j.RightAlias)) {
			return true
		}
	}
	return lo.Contains(s.filtered, s.current)
}
