package types

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/maxshaw/sqlrepo/qb"
)

// JSON is a member stored as JSON text in an NVARCHAR column.
type JSON[T any] struct {
	bytes []byte
	value *T
}

// NewJSON encodes v.
func NewJSON[T any](v T) (JSON[T], error) {
	b, err := json.Marshal(v)
	if err != nil {
		return JSON[T]{}, err
	}
	return JSON[T]{bytes: b, value: &v}, nil
}

func (j *JSON[T]) Get() *T {
	return j.value
}

// SQLLiteral implements qb.Literal.
func (j JSON[T]) SQLLiteral() string {
	if j.bytes == nil {
		return "NULL"
	}
	return "N" + qb.QuoteString(string(j.bytes))
}

func (j *JSON[T]) UnmarshalJSON(b []byte) (err error) {
	if b == nil {
		j.bytes = nil
		return nil
	}

	var v T
	if err = json.Unmarshal(b, &v); err != nil {
		j.bytes = nil
	} else {
		var dst = make([]byte, len(b))
		_ = copy(dst, b)
		j.bytes, j.value = dst, &v
	}

	return
}

func (j JSON[T]) MarshalJSON() ([]byte, error) {
	if j.bytes == nil {
		return []byte("null"), nil
	}
	return j.bytes, nil
}

func (j *JSON[T]) Scan(value any) error {
	switch v := value.(type) {
	case []byte:
		return j.UnmarshalJSON(v)
	case string:
		return j.UnmarshalJSON([]byte(v))
	}
	j.bytes, j.value = nil, nil
	return nil
}

func (j JSON[T]) Value() (driver.Value, error) {
	if j.bytes == nil {
		return nil, nil
	}
	return string(j.bytes), nil
}
