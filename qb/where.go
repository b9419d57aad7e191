package qb

import (
	"reflect"
)

func Eq(member string, val any) Expr {
	return Compare{Member: member, Op: Equal, Value: val}
}

func Neq(member string, val any) Expr {
	return Compare{Member: member, Op: NotEqual, Value: val}
}

func Gt(member string, val any) Expr {
	return Compare{Member: member, Op: Greater, Value: val}
}

func Lt(member string, val any) Expr {
	return Compare{Member: member, Op: Less, Value: val}
}

func Gte(member string, val any) Expr {
	return Compare{Member: member, Op: GreaterEqual, Value: val}
}

func Lte(member string, val any) Expr {
	return Compare{Member: member, Op: LessEqual, Value: val}
}

func Between(member string, a, b any) Expr {
	return BetweenExpr{Member: member, Low: a, High: b}
}

func Null(member string) Expr {
	return Compare{Member: member, Op: Equal}
}

func NotNull(member string) Expr {
	return Compare{Member: member, Op: NotEqual}
}

// In accepts either the values themselves or a single slice holding them.
func In(member string, args ...any) Expr {
	return InExpr{Member: member, Values: expand(args)}
}

func NotIn(member string, args ...any) Expr {
	return InExpr{Member: member, Values: expand(args), Not: true}
}

func Like(member string, val string) Expr {
	return Compare{Member: member, Op: LikeOp, Value: "%" + val + "%"}
}

func RLike(member string, val string) Expr {
	return Compare{Member: member, Op: LikeOp, Value: val + "%"}
}

func LLike(member string, val string) Expr {
	return Compare{Member: member, Op: LikeOp, Value: "%" + val}
}

func And(a ...Expr) Expr {
	return Logical{Conn: AndConn, Exprs: a}
}

func Or(a ...Expr) Expr {
	return Logical{Conn: OrConn, Exprs: a}
}

func Not(e Expr) Expr {
	return NotExpr{Expr: e}
}

func Paren(e Expr) Expr {
	return Group{Expr: e}
}

func expand(args []any) []any {
	if len(args) != 1 || args[0] == nil {
		return args
	}

	rv := reflect.ValueOf(args[0])
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return args
	}
	// []byte is a single binary literal, not a list.
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return args
	}

	out := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out = append(out, rv.Index(i).Interface())
	}
	return out
}
