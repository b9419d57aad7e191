package qb

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnsupportedExpression matches every UnsupportedExpressionError.
var ErrUnsupportedExpression = errors.New("sqlrepo: unsupported expression")

// UnsupportedExpressionError reports a predicate or value the translator
// cannot express as T-SQL.
type UnsupportedExpressionError struct {
	Expr any
	Msg  string
}

func (e *UnsupportedExpressionError) Error() string {
	if e.Expr == nil {
		return "sqlrepo: unsupported expression: " + e.Msg
	}
	return fmt.Sprintf("sqlrepo: unsupported expression %T: %s", e.Expr, e.Msg)
}

// Is lets errors.Is(err, ErrUnsupportedExpression) match.
func (e *UnsupportedExpressionError) Is(err error) bool {
	return err == ErrUnsupportedExpression
}

func unsupported(expr any, format string, args ...any) error {
	return &UnsupportedExpressionError{Expr: expr, Msg: fmt.Sprintf(format, args...)}
}
