package sqlrepo

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/maxshaw/sqlrepo/qb"
)

// Sentinel errors, one per error kind. Match them with errors.Is.
var (
	ErrInvalidState          = errors.New("sqlrepo: invalid statement state")
	ErrSchema                = errors.New("sqlrepo: invalid entity schema")
	ErrStructural            = errors.New("sqlrepo: malformed statement")
	ErrUnsupportedExpression = qb.ErrUnsupportedExpression
)

// UnsupportedExpressionError is raised by the predicate translator.
type UnsupportedExpressionError = qb.UnsupportedExpressionError

// InvalidStateError reports fluent calls used in a conflicting order or mode.
type InvalidStateError struct {
	Op, Msg string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("sqlrepo: %s: %s", e.Op, e.Msg)
}

func (e *InvalidStateError) Is(err error) bool {
	return err == ErrInvalidState
}

// SchemaError reports an entity type lacking metadata an operation needs.
type SchemaError struct {
	Entity, Field, Msg string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("sqlrepo: %s: %s", e.Entity, e.Msg)
	}
	return fmt.Sprintf("sqlrepo: %s.%s: %s", e.Entity, e.Field, e.Msg)
}

func (e *SchemaError) Is(err error) bool {
	return err == ErrSchema
}

// StructuralError reports a statement whose parts do not fit together, such
// as a joined table without a join condition.
type StructuralError struct {
	Msg string
}

func (e *StructuralError) Error() string {
	return "sqlrepo: malformed statement: " + e.Msg
}

func (e *StructuralError) Is(err error) bool {
	return err == ErrStructural
}

// IsInvalidState returns true if err is or wraps an InvalidStateError.
func IsInvalidState(err error) bool {
	return err != nil && errors.Is(err, ErrInvalidState)
}

// IsSchema returns true if err is or wraps a SchemaError.
func IsSchema(err error) bool {
	return err != nil && errors.Is(err, ErrSchema)
}

// IsStructural returns true if err is or wraps a StructuralError.
func IsStructural(err error) bool {
	return err != nil && errors.Is(err, ErrStructural)
}

// IsUnsupportedExpression returns true if err is or wraps an
// UnsupportedExpressionError.
func IsUnsupportedExpression(err error) bool {
	return err != nil && errors.Is(err, ErrUnsupportedExpression)
}

func invalidState(op, format string, args ...any) error {
	return &InvalidStateError{Op: op, Msg: fmt.Sprintf(format, args...)}
}
