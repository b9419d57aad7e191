package qb

import (
	"strings"
)

type term struct {
	conn   Conn
	nested bool
	text   string
}

// FilterGroup is an ordered list of translated predicates joined by
// connectors. The first term's connector is never rendered.
type FilterGroup struct {
	terms []term
}

// Append adds an already translated fragment. Nested fragments are wrapped
// in parentheses.
func (g *FilterGroup) Append(conn Conn, nested bool, fragment string) {
	if fragment == "" {
		return
	}
	g.terms = append(g.terms, term{conn: conn, nested: nested, text: fragment})
}

// Len returns the number of terms.
func (g *FilterGroup) Len() int { return len(g.terms) }

// IsClean reports whether no predicate has been added yet.
func (g *FilterGroup) IsClean() bool { return len(g.terms) == 0 }

func (g *FilterGroup) String() string {
	var sb strings.Builder
	for i, t := range g.terms {
		if i > 0 {
			sb.WriteString(" ")
			sb.WriteString(string(t.conn))
			sb.WriteString(" ")
		}
		if t.nested {
			sb.WriteString("(")
			sb.WriteString(t.text)
			sb.WriteString(")")
		} else {
			sb.WriteString(t.text)
		}
	}
	return sb.String()
}

// WhereBuilder accumulates a WHERE clause from successive calls.
type WhereBuilder struct {
	Translator Translator

	group FilterGroup
}

// NewWhereBuilder returns a clean builder translating with tr.
func NewWhereBuilder(tr Translator) *WhereBuilder {
	return &WhereBuilder{Translator: tr}
}

// Where starts the clause. On a builder that already holds predicates it
// behaves like And.
func (w *WhereBuilder) Where(e Expr) error {
	return w.add(AndConn, false, e)
}

// WhereIn is Where(In(member, values...)).
func (w *WhereBuilder) WhereIn(member string, values ...any) error {
	return w.add(AndConn, false, In(member, values...))
}

func (w *WhereBuilder) And(e Expr) error {
	return w.add(AndConn, false, e)
}

func (w *WhereBuilder) Or(e Expr) error {
	return w.add(OrConn, false, e)
}

func (w *WhereBuilder) NestedAnd(e Expr) error {
	return w.add(AndConn, true, e)
}

func (w *WhereBuilder) NestedOr(e Expr) error {
	return w.add(OrConn, true, e)
}

// IsClean reports whether no predicate has been added yet.
func (w *WhereBuilder) IsClean() bool {
	return w.group.IsClean()
}

// Sql renders "WHERE ..." or an empty string.
func (w *WhereBuilder) Sql() string {
	if w.group.IsClean() {
		return ""
	}
	return "WHERE " + w.group.String()
}

func (w *WhereBuilder) add(conn Conn, nested bool, e Expr) error {
	s, err := w.Translator.Translate(e)
	if err != nil {
		return err
	}
	w.group.Append(conn, nested, s)
	return nil
}
