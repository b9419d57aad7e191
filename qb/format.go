package qb

import (
	"database/sql/driver"
	"encoding/hex"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateTimeLayout is the layout used for date/time literals.
const DateTimeLayout = "2006-01-02 15:04:05.000"

// Literal is implemented by values that know their own T-SQL literal form.
type Literal interface {
	SQLLiteral() string
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
	literalType = reflect.TypeOf((*Literal)(nil)).Elem()
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// FormatValue renders v as a T-SQL literal.
func FormatValue(v any) (string, error) {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return "NULL", nil
	}

	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case Literal:
		return val.SQLLiteral(), nil
	case string:
		return QuoteString(val), nil
	case bool:
		if val {
			return "1", nil
		}
		return "0", nil
	case time.Time:
		return "'" + val.Format(DateTimeLayout) + "'", nil
	case uuid.UUID:
		return "'" + val.String() + "'", nil
	case decimal.Decimal:
		return val.String(), nil
	case []byte:
		if val == nil {
			return "NULL", nil
		}
		return "0x" + strings.ToUpper(hex.EncodeToString(val)), nil
	case driver.Valuer:
		dv, err := val.Value()
		if err != nil {
			return "", err
		}
		return FormatValue(dv)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer && reflect.PointerTo(rv.Type()).Implements(literalType) {
		p := reflect.New(rv.Type())
		p.Elem().Set(rv)
		return p.Interface().(Literal).SQLLiteral(), nil
	}

	switch rv.Kind() {
	case reflect.Pointer:
		return FormatValue(rv.Elem().Interface())
	case reflect.String:
		return QuoteString(rv.String()), nil
	case reflect.Bool:
		return FormatValue(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", unsupported(v, "T-SQL has no literal for float %v", f)
		}
		return strconv.FormatFloat(f, 'f', -1, rv.Type().Bits()), nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return FormatValue(rv.Bytes())
		}
	}

	return "", unsupported(v, "no literal form for value %v", v)
}

// QuoteString single-quotes s, doubling embedded quotes.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// IsLiteralType reports whether values of t can be rendered by FormatValue,
// i.e. whether a member of that type can be written by a statement.
func IsLiteralType(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Implements(literalType) || t.Implements(valuerType) || reflect.PointerTo(t).Implements(literalType) {
		return true
	}

	switch t {
	case timeType, uuidType, decimalType:
		return true
	}

	switch t.Kind() {
	case reflect.Pointer:
		return IsLiteralType(t.Elem())
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Slice:
		return t.Elem().Kind() == reflect.Uint8
	}
	return false
}

// value classes for Assignable; the empty class is unchecked.
const (
	classBool   = "bool"
	classInt    = "int"
	classNumber = "number"
	classString = "string"
	classTime   = "time"
	classUUID   = "uuid"
	classBytes  = "bytes"
)

func valueClass(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t {
	case timeType:
		return classTime
	case uuidType:
		return classUUID
	case decimalType:
		return classNumber
	}
	if t.Implements(literalType) || reflect.PointerTo(t).Implements(literalType) || t.Implements(valuerType) {
		return ""
	}

	switch t.Kind() {
	case reflect.Bool:
		return classBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return classInt
	case reflect.Float32, reflect.Float64:
		return classNumber
	case reflect.String:
		return classString
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return classBytes
		}
	}
	return ""
}

// Assignable reports whether v may be written to a member of type t. Nil is
// always accepted, and so are values or members whose type renders itself.
func Assignable(t reflect.Type, v any) bool {
	if v == nil || t == nil {
		return true
	}
	vt := reflect.TypeOf(v)
	if vt.AssignableTo(t) {
		return true
	}

	want, got := valueClass(t), valueClass(vt)
	switch {
	case want == "" || got == "" || want == got:
		return true
	case want == classNumber:
		return got == classInt
	case want == classTime, want == classUUID:
		return got == classString
	}
	return false
}
