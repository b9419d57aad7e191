package sqlrepo

import (
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/maxshaw/sqlrepo/qb"
)

const pageQueryAlias = "__Page_Query"

// SelectStatementSpecification is the clause-by-clause description of a
// SELECT. Lists render in their order.
type SelectStatementSpecification struct {
	Columns   []ColumnSpecification
	Tables    []TableSpecification
	Joins     []JoinSpecification
	Filters   []*qb.FilterGroup
	Orderings []OrderSpecification
	Groupings []GroupSpecification
	Havings   []HavingSpecification

	Top           *int
	Page          *int
	UseTopPercent bool
	NoLocks       bool

	// PageSize replaces Top in paged output when Top is not set.
	PageSize int
}

// Sql renders the statement terminated by ";". It does not modify s.
func (s *SelectStatementSpecification) Sql() (string, error) {
	if err := s.validate(); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(s.selectClause())
	sb.WriteString(s.fromClause())
	sb.WriteString(s.whereClause())
	sb.WriteString(s.groupByClause())
	sb.WriteString(s.havingClause())
	sb.WriteString(s.orderByClause())

	return s.pageClause(sb.String()), nil
}

// paged reports whether the statement renders as a paging window. A page
// without ordering has no deterministic window and renders unpaged.
func (s *SelectStatementSpecification) paged() bool {
	return s.Page != nil && len(s.Orderings) > 0
}

func (s *SelectStatementSpecification) validate() error {
	if s.Top != nil && *s.Top < 1 {
		return invalidState("Top", "row limit must be positive, got %d", *s.Top)
	}
	if s.Page != nil && *s.Page < 1 {
		return invalidState("Page", "page numbers start at 1, got %d", *s.Page)
	}
	if s.paged() && s.UseTopPercent {
		return invalidState("Page", "a paged statement cannot use a percent row limit")
	}

	if len(s.Tables) == 0 {
		return &StructuralError{Msg: "statement has no table"}
	}
	if s.Tables[0].JoinType != JoinNone {
		return &StructuralError{Msg: "first table " + s.Tables[0].Name + " must not be joined"}
	}

	for _, t := range s.Tables[1:] {
		if t.JoinType == JoinNone {
			return &StructuralError{Msg: "table " + t.Name + " is a second anchor table"}
		}
		if !lo.ContainsBy(s.Joins, func(j JoinSpecification) bool { return t.matches(j.RightEntityType, j.RightAlias) }) {
			return &StructuralError{Msg: "table " + t.Name + " has no join condition"}
		}
	}

	for _, j := range s.Joins {
		if !lo.ContainsBy(s.Tables, func(t TableSpecification) bool { return t.matches(j.RightEntityType, j.RightAlias) }) {
			return &StructuralError{Msg: "join targets undeclared table " + j.RightTable}
		}
		if len(j.Conditions) == 0 {
			return &StructuralError{Msg: "join onto " + j.RightTable + " has no condition"}
		}
	}
	return nil
}

func (s *SelectStatementSpecification) selectClause() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")

	if s.paged() {
		sb.WriteString("ROW_NUMBER() OVER (ORDER BY ")
		sb.WriteString(s.orderings(", "))
		sb.WriteString(") AS row_number, ")
	} else if s.Top != nil {
		sb.WriteString("TOP (")
		sb.WriteString(strconv.Itoa(*s.Top))
		sb.WriteString(") ")
		if s.UseTopPercent {
			sb.WriteString("PERCENT ")
		}
	}

	if len(s.Columns) == 0 {
		sb.WriteString("*")
	} else {
		sb.WriteString(strings.Join(lo.Map(s.Columns, func(c ColumnSpecification, _ int) string {
			return c.String()
		}), "\n, "))
	}
	return sb.String()
}

// fromClause renders each table followed by the joins attaching it.
func (s *SelectStatementSpecification) fromClause() string {
	var sb strings.Builder
	for _, t := range s.Tables {
		t.NoLocks = s.NoLocks
		sb.WriteString(t.String())

		keyword := "ON"
		for _, j := range s.Joins {
			if !t.matches(j.RightEntityType, j.RightAlias) {
				continue
			}
			sb.WriteString(j.text(keyword))
			keyword = "AND"
		}
	}
	return sb.String()
}

func (s *SelectStatementSpecification) whereClause() string {
	groups := lo.Filter(s.Filters, func(g *qb.FilterGroup, _ int) bool { return g != nil && !g.IsClean() })
	if len(groups) == 0 {
		return ""
	}

	parts := lo.Map(groups, func(g *qb.FilterGroup, _ int) string {
		if len(groups) > 1 && g.Len() > 1 {
			return "(" + g.String() + ")"
		}
		return g.String()
	})
	return "\nWHERE " + strings.Join(parts, "\nAND ")
}

func (s *SelectStatementSpecification) groupByClause() string {
	if len(s.Groupings) == 0 {
		return ""
	}
	return "\nGROUP BY " + strings.Join(lo.Map(s.Groupings, func(g GroupSpecification, _ int) string {
		return g.String()
	}), "\n, ")
}

func (s *SelectStatementSpecification) havingClause() string {
	if len(s.Havings) == 0 {
		return ""
	}
	return "\nHAVING " + strings.Join(lo.Map(s.Havings, func(h HavingSpecification, _ int) string {
		return h.String()
	}), "\nAND ")
}

// orderByClause is empty for paged statements; their ordering lives in the
// ROW_NUMBER window.
func (s *SelectStatementSpecification) orderByClause() string {
	if s.Page != nil || len(s.Orderings) == 0 {
		return ""
	}
	return "\nORDER BY " + s.orderings("\n, ")
}

func (s *SelectStatementSpecification) orderings(sep string) string {
	return strings.Join(lo.Map(s.Orderings, func(o OrderSpecification, _ int) string {
		return o.String()
	}), sep)
}

func (s *SelectStatementSpecification) pageClause(sql string) string {
	if !s.paged() {
		return sql + ";"
	}

	top := Unwrap(s.Top)
	if top < 1 {
		top = s.PageSize
	}
	if top < 1 {
		top = DefaultPageSize
	}
	offset := (*s.Page - 1) * top

	var sb strings.Builder
	sb.WriteString("SELECT TOP (")
	sb.WriteString(strconv.Itoa(top))
	sb.WriteString(") * FROM (")
	sb.WriteString(sql)
	sb.WriteString(") AS ")
	sb.WriteString(pageQueryAlias)
	sb.WriteString(" WHERE row_number > ")
	sb.WriteString(strconv.Itoa(offset))
	sb.WriteString(";")
	return sb.String()
}
