package qb

import (
	"strings"
)

// Op is a binary comparison operator.
type Op string

const (
	Equal        Op = "="
	NotEqual     Op = "<>"
	Greater      Op = ">"
	GreaterEqual Op = ">="
	Less         Op = "<"
	LessEqual    Op = "<="
	LikeOp       Op = "LIKE"
)

// Conn joins two predicates.
type Conn string

const (
	AndConn Conn = "AND"
	OrConn  Conn = "OR"
)

// Expr is a node of a predicate tree. Sub reports whether the node combines
// other nodes and therefore needs parentheses when nested.
type Expr interface {
	Sub() bool
}

// Compare is "member op value".
type Compare struct {
	Member string
	Op     Op
	Value  any
}

func (Compare) Sub() bool { return false }

// InExpr is "member IN (values...)".
type InExpr struct {
	Member string
	Values []any
	Not    bool
}

func (InExpr) Sub() bool { return false }

// BetweenExpr is "member BETWEEN low AND high".
type BetweenExpr struct {
	Member    string
	Low, High any
}

func (BetweenExpr) Sub() bool { return false }

// Logical combines its children with one connector.
type Logical struct {
	Conn  Conn
	Exprs []Expr
}

func (e Logical) Sub() bool { return len(e.Exprs) > 1 }

// NotExpr negates its child.
type NotExpr struct {
	Expr Expr
}

func (NotExpr) Sub() bool { return false }

// Group wraps its child in parentheses.
type Group struct {
	Expr Expr
}

func (Group) Sub() bool { return false }

// Quote renders a bracket-quoted column reference, qualified by table when
// table is not empty.
func Quote(table, col string) string {
	if table == "" {
		return quoteIdent(col)
	}
	return quoteIdent(table) + "." + quoteIdent(col)
}

// QuoteTable renders [schema].[table].
func QuoteTable(schema, table string) string {
	return quoteIdent(schema) + "." + quoteIdent(table)
}

func quoteIdent(s string) string {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
}
