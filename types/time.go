package types

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/maxshaw/sqlrepo/qb"
)

// Time is a date/time member rendered as a DATETIME literal; the zero Time
// is NULL.
type Time time.Time

func (t Time) IsZero() bool {
	return time.Time(t).IsZero()
}

// SQLLiteral implements qb.Literal.
func (t Time) SQLLiteral() string {
	if t.IsZero() {
		return "NULL"
	}
	return "'" + time.Time(t).Format(qb.DateTimeLayout) + "'"
}

func (t *Time) UnmarshalJSON(b []byte) (err error) {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*t = Time{}
		return nil
	}
	nt, err := time.Parse(time.DateTime, s)
	*t = Time(nt)
	return
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(t.String()), nil
}

func (t Time) String() string {
	return fmt.Sprintf("%q", time.Time(t).Format(time.DateTime))
}

// Scan implements sql.Scanner.
func (t *Time) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*t = Time{}
	case time.Time:
		*t = Time(v)
	case string:
		return t.UnmarshalJSON([]byte(v))
	case []byte:
		return t.UnmarshalJSON(v)
	default:
		return fmt.Errorf("types: cannot scan %T into Time", value)
	}
	return nil
}

// Value implements driver.Valuer.
func (t Time) Value() (driver.Value, error) {
	if t.IsZero() {
		return nil, nil
	}
	return time.Time(t), nil
}
