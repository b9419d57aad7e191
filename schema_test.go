package sqlrepo

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaOfTags(t *testing.T) {
	s, err := SchemaOf(&Customer{})
	require.NoError(t, err)

	assert.Equal(t, "Customer", s.Table)
	assert.Equal(t, "", s.Schema)
	assert.Equal(t, reflect.TypeOf(Customer{}), s.Type)

	assert.True(t, s.IsKeyField("Id"))
	assert.False(t, s.IsKeyField("Name"))
	assert.True(t, s.IsExcluded("Notes"))
	assert.True(t, s.IsWritable("Email"))
	assert.False(t, s.IsWritable("Tags"))

	keys := s.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, "Id", keys[0].Column)
}

func TestSchemaOfNames(t *testing.T) {
	s, err := SchemaOf(RegionalAccount{})
	require.NoError(t, err)
	assert.Equal(t, "Account", s.Table)
	assert.Len(t, s.Keys(), 2)

	s, err = SchemaOf(reflect.TypeOf(Invoice{}))
	require.NoError(t, err)
	assert.Equal(t, "billing", s.Schema)
	f, ok := s.Field("Id")
	require.True(t, ok)
	assert.True(t, f.Identity)
}

func TestSchemaOfEmbedded(t *testing.T) {
	s, err := SchemaOf(Widget{})
	require.NoError(t, err)

	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"CreatedBy", "Id", "Name"}, names)

	f, ok := s.Field("CreatedBy")
	require.True(t, ok)
	assert.Nil(t, s.value(reflect.ValueOf(Widget{}), *f))
	assert.Equal(t, "ann", s.value(reflect.ValueOf(Widget{Audit: &Audit{CreatedBy: "ann"}}), *f))
}

func TestSchemaColumn(t *testing.T) {
	s, err := SchemaOf(Shipment{})
	require.NoError(t, err)

	col, err := s.Column("Carrier")
	require.NoError(t, err)
	assert.Equal(t, "CarrierName", col)

	col, err = s.Column("CarrierName")
	require.NoError(t, err)
	assert.Equal(t, "CarrierName", col)

	_, err = s.Column("Missing")
	assert.True(t, IsSchema(err))

	c, err := SchemaOf(Customer{})
	require.NoError(t, err)
	_, err = c.Column("Notes")
	assert.True(t, IsSchema(err))
}

func TestSchemaOfRejects(t *testing.T) {
	_, err := SchemaOf(nil)
	assert.True(t, IsSchema(err))

	_, err = SchemaOf(42)
	assert.True(t, IsSchema(err))

	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "int", se.Entity)
}

type registered struct {
	Code  string
	Label string
	Extra string
}

func TestRegister(t *testing.T) {
	err := Register(registered{}, Schema{
		Table:  "Lookup",
		Schema: "ref",
		Fields: []Field{
			{Name: "Code", Column: "LookupCode", Key: true},
			{Name: "Label"},
		},
	})
	require.NoError(t, err)

	s, err := SchemaOf(&registered{})
	require.NoError(t, err)
	assert.Equal(t, "Lookup", s.Table)
	assert.Equal(t, "ref", s.Schema)
	require.Len(t, s.Fields, 2)
	assert.Equal(t, "LookupCode", s.Fields[0].Column)
	assert.Equal(t, "Label", s.Fields[1].Column)
	assert.True(t, s.Fields[1].Writable)

	_, err = s.Column("Extra")
	assert.True(t, IsSchema(err))

	sq, err := NewUpdate(registered{}).For(&registered{Code: "A", Label: "Alpha"}).Sql()
	require.NoError(t, err)
	assert.Equal(t, "UPDATE [ref].[Lookup]\nSET [Label] = 'Alpha' WHERE  [LookupCode] = 'A';", sq)

	err = Register(registered{}, Schema{Fields: []Field{{Name: "Nope"}}})
	assert.True(t, IsSchema(err))
	assert.Panics(t, func() { MustRegister(registered{}, Schema{Fields: []Field{{Name: "Nope"}}}) })
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		tag  string
		want Field
	}{
		{"", Field{Name: "Code", Column: "Code"}},
		{"-", Field{Name: "Code", Column: "Code", Excluded: true}},
		{"CodeCol", Field{Name: "Code", Column: "CodeCol"}},
		{";key", Field{Name: "Code", Column: "Code", Key: true}},
		{"c; PK ;identity", Field{Name: "Code", Column: "c", Key: true, Identity: true}},
		{";pk=auto", Field{Name: "Code", Column: "Code", Key: true, Identity: true}},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTag("Code", tt.tag))
		})
	}
}
