package qb

import (
	"strings"

	"github.com/samber/lo"
)

// Translator turns predicate trees into T-SQL boolean fragments.
//
// Table qualifies every column reference; leave it empty for bare [column]
// references. Resolve maps a member name to its column name; a nil Resolve
// uses the member name as is.
type Translator struct {
	Table   string
	Resolve func(member string) (string, error)
}

// Translate renders e.
func (t Translator) Translate(e Expr) (string, error) {
	switch x := e.(type) {
	case Compare:
		return t.compare(x)
	case InExpr:
		return t.in(x)
	case BetweenExpr:
		col, err := t.column(x.Member)
		if err != nil {
			return "", err
		}
		low, err := FormatValue(x.Low)
		if err != nil {
			return "", err
		}
		high, err := FormatValue(x.High)
		if err != nil {
			return "", err
		}
		return col + " BETWEEN " + low + " AND " + high, nil
	case Logical:
		return t.logical(x)
	case NotExpr:
		if x.Expr == nil {
			return "", unsupported(x, "NOT without operand")
		}
		inner, err := t.Translate(x.Expr)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case Group:
		if x.Expr == nil {
			return "", unsupported(x, "empty group")
		}
		inner, err := t.Translate(x.Expr)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	case nil:
		return "", unsupported(nil, "nil expression")
	}

	return "", unsupported(e, "unknown expression shape")
}

func (t Translator) column(member string) (string, error) {
	if member == "" {
		return "", unsupported(nil, "expression without a member")
	}
	col := member
	if t.Resolve != nil {
		var err error
		if col, err = t.Resolve(member); err != nil {
			return "", err
		}
	}
	return Quote(t.Table, col), nil
}

func (t Translator) compare(x Compare) (string, error) {
	col, err := t.column(x.Member)
	if err != nil {
		return "", err
	}

	if isNull(x.Value) {
		switch x.Op {
		case Equal:
			return col + " IS NULL", nil
		case NotEqual:
			return col + " IS NOT NULL", nil
		}
		return "", unsupported(x, "operator %s cannot compare with NULL", x.Op)
	}

	switch x.Op {
	case Equal, NotEqual, Greater, GreaterEqual, Less, LessEqual:
	case LikeOp:
		if _, ok := x.Value.(string); !ok {
			return "", unsupported(x, "LIKE needs a string pattern")
		}
	default:
		return "", unsupported(x, "unknown operator %q", x.Op)
	}

	val, err := FormatValue(x.Value)
	if err != nil {
		return "", err
	}
	return col + " " + string(x.Op) + " " + val, nil
}

func (t Translator) in(x InExpr) (string, error) {
	if len(x.Values) == 0 {
		return "", unsupported(x, "IN needs at least one value")
	}

	col, err := t.column(x.Member)
	if err != nil {
		return "", err
	}

	vals := make([]string, 0, len(x.Values))
	for _, v := range x.Values {
		s, err := FormatValue(v)
		if err != nil {
			return "", err
		}
		vals = append(vals, s)
	}

	op := " IN ("
	if x.Not {
		op = " NOT IN ("
	}
	return col + op + strings.Join(vals, ", ") + ")", nil
}

func (t Translator) logical(x Logical) (string, error) {
	if x.Conn != AndConn && x.Conn != OrConn {
		return "", unsupported(x, "unknown connector %q", x.Conn)
	}

	exprs := lo.Filter(x.Exprs, func(e Expr, _ int) bool { return e != nil })
	if len(exprs) == 0 {
		return "", unsupported(x, "%s without operands", x.Conn)
	}

	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		s, err := t.Translate(e)
		if err != nil {
			return "", err
		}
		if e.Sub() {
			s = "(" + s + ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " "+string(x.Conn)+" "), nil
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	s, err := FormatValue(v)
	return err == nil && s == "NULL"
}
