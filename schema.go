package sqlrepo

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/mitranim/refut"
	"github.com/samber/lo"

	"github.com/maxshaw/sqlrepo/qb"
)

// EntityMetadata answers the per-member questions statements need.
type EntityMetadata interface {
	IsKeyField(member string) bool
	IsExcluded(member string) bool
	IsWritable(member string) bool
}

var _ EntityMetadata = (*Schema)(nil)

// Field describes one struct member of an entity.
type Field struct {
	Name     string
	Column   string
	Key      bool
	Identity bool
	Excluded bool
	Writable bool

	index []int
}

// Schema describes an entity type: its table and members in declaration
// order.
type Schema struct {
	Type   reflect.Type
	Table  string
	Schema string
	Fields []Field
}

// Field returns the member called name.
func (s *Schema) Field(name string) (*Field, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

func (s *Schema) IsKeyField(member string) bool {
	f, ok := s.Field(member)
	return ok && f.Key
}

func (s *Schema) IsExcluded(member string) bool {
	f, ok := s.Field(member)
	return ok && f.Excluded
}

func (s *Schema) IsWritable(member string) bool {
	f, ok := s.Field(member)
	return ok && f.Writable
}

// Keys returns the key members.
func (s *Schema) Keys() []Field {
	return lo.Filter(s.Fields, func(f Field, _ int) bool { return f.Key && !f.Excluded })
}

// Column maps a member name to its column name. Column names are accepted
// too.
func (s *Schema) Column(member string) (string, error) {
	f, ok := s.lookup(member)
	if !ok {
		return "", &SchemaError{Entity: s.Type.Name(), Field: member, Msg: "no such member"}
	}
	if f.Excluded {
		return "", &SchemaError{Entity: s.Type.Name(), Field: member, Msg: "member is excluded from persistence"}
	}
	return f.Column, nil
}

// lookup finds a member by name, then by column name.
func (s *Schema) lookup(member string) (*Field, bool) {
	if f, ok := s.Field(member); ok {
		return f, true
	}
	for i := range s.Fields {
		if s.Fields[i].Column == member {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// checkValue fails when value cannot be written to member.
func (s *Schema) checkValue(member string, value any) error {
	f, ok := s.lookup(member)
	if !ok || s.Type == nil {
		return nil
	}
	t := s.Type.FieldByIndex(f.index).Type
	if !qb.Assignable(t, value) {
		return &SchemaError{Entity: s.Type.Name(), Field: member, Msg: fmt.Sprintf("a %T cannot be written to a member of type %s", value, t)}
	}
	return nil
}

// value reads the member f from entity, which must be a struct value of
// s.Type. Members promoted through a nil embedded pointer read as nil.
func (s *Schema) value(entity reflect.Value, f Field) any {
	v, err := entity.FieldByIndexErr(f.index)
	if err != nil {
		return nil
	}
	return v.Interface()
}

// addr returns a pointer to the member f of entity, which must be an
// addressable struct value of s.Type. Nil embedded pointers on the path are
// allocated; ok is false when one of them cannot be set.
func (s *Schema) addr(entity reflect.Value, f Field) (ptr any, ok bool) {
	v := entity
	for i, x := range f.index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if !v.CanSet() {
					return nil, false
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	if !v.CanAddr() || !v.CanInterface() {
		return nil, false
	}
	return v.Addr().Interface(), true
}

// Modeler overrides the table name derived from the type name.
type Modeler interface {
	TableName() string
}

// SchemaNamer overrides the default table schema.
type SchemaNamer interface {
	TableSchema() string
}

var registry = struct {
	sync.RWMutex
	schemas map[reflect.Type]*Schema
}{schemas: make(map[reflect.Type]*Schema)}

// Register stores the schema of entity, replacing the struct tag derived
// one. Fields are matched to struct members by Name; Writable is derived
// from the member type.
func Register(entity any, s Schema) error {
	rtype, err := entityType(entity)
	if err != nil {
		return err
	}

	s.Type = rtype
	if s.Table == "" {
		s.Table = tableName(rtype)
	}
	if s.Schema == "" {
		s.Schema = tableSchema(rtype)
	}

	fields := make([]Field, len(s.Fields))
	for i, f := range s.Fields {
		sfield, ok := rtype.FieldByName(f.Name)
		if !ok {
			return &SchemaError{Entity: rtype.Name(), Field: f.Name, Msg: "no such struct field"}
		}
		if f.Column == "" {
			f.Column = f.Name
		}
		f.index = sfield.Index
		f.Writable = qb.IsLiteralType(sfield.Type)
		fields[i] = f
	}
	s.Fields = fields

	registry.Lock()
	registry.schemas[rtype] = &s
	registry.Unlock()
	return nil
}

// MustRegister is Register that panics on error.
func MustRegister(entity any, s Schema) {
	if err := Register(entity, s); err != nil {
		panic(err)
	}
}

// SchemaOf returns the schema of entity: the registered one if any,
// otherwise one derived from `db` struct tags.
//
// Tag grammar: `db:"column;flag;flag"`. The column defaults to the field
// name. Flags: key (or pk), identity, and pk=auto for both. `db:"-"`
// excludes the member.
func SchemaOf(entity any) (*Schema, error) {
	rtype, err := entityType(entity)
	if err != nil {
		return nil, err
	}

	registry.RLock()
	s, ok := registry.schemas[rtype]
	registry.RUnlock()
	if ok {
		return s, nil
	}

	s = &Schema{Type: rtype, Table: tableName(rtype), Schema: tableSchema(rtype)}

	err = refut.TraverseStructRtype(rtype, func(sfield reflect.StructField, index []int) error {
		if sfield.Anonymous || !refut.IsSfieldExported(sfield) {
			return nil
		}
		s.Fields = append(s.Fields, parseField(sfield, index))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func parseField(sfield reflect.StructField, index []int) Field {
	f := ParseTag(sfield.Name, sfield.Tag.Get("db"))
	f.Writable = qb.IsLiteralType(sfield.Type)
	f.index = append([]int(nil), index...)
	return f
}

// ParseTag reads the `db` tag of member name. Writable is left unset.
func ParseTag(name, tag string) Field {
	f := Field{Name: name, Column: name}
	if tag == "-" {
		f.Excluded = true
		return f
	}
	if tag == "" {
		return f
	}

	parts := strings.Split(tag, ";")
	if col := strings.TrimSpace(parts[0]); col != "" {
		f.Column = col
	}
	for _, part := range parts[1:] {
		k, v, _ := strings.Cut(strings.ToLower(strings.TrimSpace(part)), "=")
		switch k {
		case "key", "pk":
			f.Key = true
			f.Identity = f.Identity || v == "auto"
		case "identity":
			f.Identity = true
		}
	}
	return f
}

func entityType(entity any) (reflect.Type, error) {
	var rtype reflect.Type
	switch e := entity.(type) {
	case nil:
		return nil, &SchemaError{Entity: "<nil>", Msg: "entity is nil"}
	case reflect.Type:
		rtype = e
	default:
		rtype = reflect.TypeOf(entity)
	}

	rtype = refut.RtypeDeref(rtype)
	if rtype.Kind() != reflect.Struct {
		return nil, &SchemaError{Entity: rtype.String(), Msg: "entity must be a struct"}
	}
	return rtype, nil
}

func tableName(rtype reflect.Type) string {
	if m, ok := reflect.New(rtype).Interface().(Modeler); ok {
		if name := m.TableName(); name != "" {
			return name
		}
	}
	return rtype.Name()
}

func tableSchema(rtype reflect.Type) string {
	if m, ok := reflect.New(rtype).Interface().(SchemaNamer); ok {
		return m.TableSchema()
	}
	return ""
}
