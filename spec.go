package sqlrepo

import (
	"reflect"
	"strings"

	"github.com/samber/lo"

	"github.com/maxshaw/sqlrepo/qb"
)

type JoinType int

const (
	JoinNone JoinType = iota
	JoinInner
	JoinLeft
	JoinRight
	JoinFull
)

func (j JoinType) String() string {
	switch j {
	case JoinInner:
		return "INNER JOIN"
	case JoinLeft:
		return "LEFT OUTER JOIN"
	case JoinRight:
		return "RIGHT OUTER JOIN"
	case JoinFull:
		return "FULL OUTER JOIN"
	}
	return ""
}

type Aggregate string

const (
	NoAggregate Aggregate = ""
	Count       Aggregate = "COUNT"
	Sum         Aggregate = "SUM"
	Min         Aggregate = "MIN"
	Max         Aggregate = "MAX"
	Avg         Aggregate = "AVG"
)

func (a Aggregate) wrap(col string) string {
	if a == NoAggregate {
		return col
	}
	return string(a) + "(" + col + ")"
}

type SortBy int

const (
	Ascend SortBy = iota
	Descend
)

// ColumnSpecification is one entry of the select list.
type ColumnSpecification struct {
	// Table is the alias or name qualifying the column.
	Table     string
	Name      string
	Alias     string
	Aggregate Aggregate
}

func (c ColumnSpecification) String() string {
	col := c.Aggregate.wrap(qb.Quote(c.Table, c.Name))
	if c.Alias != "" {
		col += " AS " + qb.Quote("", c.Alias)
	}
	return col
}

// TableSpecification is one table of the FROM clause. NoLocks is set by the
// owning statement right before rendering.
type TableSpecification struct {
	EntityType reflect.Type
	Name       string
	Schema     string
	Alias      string
	JoinType   JoinType
	NoLocks    bool
}

// Ref returns the name columns of this table are qualified with.
func (t TableSpecification) Ref() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

func (t TableSpecification) matches(rtype reflect.Type, alias string) bool {
	return t.EntityType == rtype && t.Alias == alias
}

func (t TableSpecification) String() string {
	var sb strings.Builder

	sb.WriteString("\n")
	if t.JoinType == JoinNone {
		sb.WriteString("FROM")
	} else {
		sb.WriteString(t.JoinType.String())
	}
	sb.WriteString(" ")
	sb.WriteString(qb.QuoteTable(t.Schema, t.Name))

	if t.Alias != "" {
		sb.WriteString(" AS ")
		sb.WriteString(qb.Quote("", t.Alias))
	}
	if t.NoLocks {
		sb.WriteString(" WITH (NOLOCK)")
	}
	return sb.String()
}

// JoinCondition is one column equality of a join; Left and Right are column
// names.
type JoinCondition struct {
	Left, Right string
}

// On pairs a member of the left table with a member of the joined table.
func On(left, right string) JoinCondition {
	return JoinCondition{Left: left, Right: right}
}

// JoinSpecification is the ON predicate attaching the right table to the
// left one. Conditions are combined with AND.
type JoinSpecification struct {
	LeftEntityType  reflect.Type
	LeftTable       string
	LeftAlias       string
	RightEntityType reflect.Type
	RightTable      string
	RightAlias      string
	JoinType        JoinType
	Conditions      []JoinCondition
}

func (j JoinSpecification) String() string {
	return j.text("ON")
}

// text renders the conditions after keyword; a second join onto the same
// table continues the first one's predicate with AND.
func (j JoinSpecification) text(keyword string) string {
	conds := lo.Map(j.Conditions, func(c JoinCondition, _ int) string {
		return qb.Quote(j.leftRef(), c.Left) + " = " + qb.Quote(j.rightRef(), c.Right)
	})
	return "\n" + keyword + " " + strings.Join(conds, "\nAND ")
}

func (j JoinSpecification) leftRef() string {
	return lo.Ternary(j.LeftAlias != "", j.LeftAlias, j.LeftTable)
}

func (j JoinSpecification) rightRef() string {
	return lo.Ternary(j.RightAlias != "", j.RightAlias, j.RightTable)
}

// OrderSpecification is one ORDER BY term.
type OrderSpecification struct {
	Table     string
	Column    string
	Direction SortBy
}

func (o OrderSpecification) String() string {
	return qb.Quote(o.Table, o.Column) + lo.Ternary(o.Direction == Descend, " DESC", " ASC")
}

// GroupSpecification is one GROUP BY term.
type GroupSpecification struct {
	Table  string
	Column string
}

func (g GroupSpecification) String() string {
	return qb.Quote(g.Table, g.Column)
}

// HavingSpecification compares an aggregate with a literal. Value holds the
// already formatted literal.
type HavingSpecification struct {
	Table     string
	Column    string
	Aggregate Aggregate
	Op        qb.Op
	Value     string
}

func (h HavingSpecification) String() string {
	return h.Aggregate.wrap(qb.Quote(h.Table, h.Column)) + " " + string(h.Op) + " " + h.Value
}
