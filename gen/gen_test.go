package gen

import (
	"bytes"
	"context"
	"go/parser"
	"go/token"
	"log"
	"os"
	"path/filepath"
	"testing"
	"text/template"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const customerSrc = `package model

import "time"

type Customer struct {
	ID       int    ` + "`db:\"Id;pk=auto\"`" + `
	Name     string
	Notes    string ` + "`db:\"-\"`" + `
	Created  time.Time
	internal int
}

type Account struct {
	Id, Region string
	Balance    int
}

func (*Account) TableName() string { return "Accounts" }

type helper struct {
	X int ` + "`db:\"x\"`" + `
}

type Plain struct {
	A int
}

type Box[T any] struct {
	V T ` + "`db:\"v\"`" + `
}
`

func writeModel(t *testing.T, dir, name, src string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(src), 0o644))
	return p
}

func TestParseFile(t *testing.T) {
	p := writeModel(t, t.TempDir(), "customer.go", customerSrc)

	f, err := parseFile(token.NewFileSet(), p)
	require.NoError(t, err)
	assert.Equal(t, "model", f.Package)

	f.resolve(f.decls)
	require.Len(t, f.Models, 2)

	c := f.Models[0]
	assert.Equal(t, "Customer", c.Name)
	require.Len(t, c.Fields, 4)
	assert.Equal(t, "Id", c.Fields[0].Column)
	assert.True(t, c.Fields[0].Key)
	assert.True(t, c.Fields[0].Identity)
	assert.True(t, c.Fields[2].Excluded)
	assert.Equal(t, "Created", c.Fields[3].Column)

	a := f.Models[1]
	assert.Equal(t, "Account", a.Name)
	require.Len(t, a.Fields, 3)
	assert.Equal(t, []string{"Id", "Region", "Balance"}, []string{a.Fields[0].Name, a.Fields[1].Name, a.Fields[2].Name})
}

func TestGen(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "customer.go", customerSrc)
	writeModel(t, dir, "plain.go", "package model\n\ntype Other struct{ A int }\n")
	writeModel(t, dir, "customer_test.go", "package model\n")

	written, err := Gen(context.Background(), &Config{
		Models: filepath.Join(dir, "*.go"),
		Schema: "sales",
		Tables: map[string]string{"Customer": "Clients"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "customer_schema.go")}, written)

	b, err := os.ReadFile(written[0])
	require.NoError(t, err)
	src := string(b)

	assert.Contains(t, src, "// Code generated by sqlrepo gen from customer.go. DO NOT EDIT.")
	assert.Contains(t, src, "package model")
	assert.Contains(t, src, `import "github.com/maxshaw/sqlrepo"`)
	assert.Contains(t, src, "sqlrepo.MustRegister(Customer{}, sqlrepo.Schema{")
	assert.Contains(t, src, `"Clients"`)
	assert.Contains(t, src, `"sales"`)
	assert.Contains(t, src, `{Name: "ID", Column: "Id", Key: true, Identity: true},`)
	assert.Contains(t, src, `{Name: "Notes", Column: "Notes", Excluded: true},`)
	assert.Contains(t, src, "sqlrepo.MustRegister(Account{}, sqlrepo.Schema{")
	assert.NotContains(t, src, "helper")
	assert.NotContains(t, src, "Plain")
	assert.NotContains(t, src, "Box")

	_, err = parser.ParseFile(token.NewFileSet(), written[0], b, parser.AllErrors)
	assert.NoError(t, err)

	// generated files are not parsed again
	again, err := Gen(context.Background(), &Config{Models: filepath.Join(dir, "*.go")})
	require.NoError(t, err)
	assert.Equal(t, written, again)
}

const baseSrc = `package model

type Base struct {
	CreatedBy string
	audit     int
}

type stamp struct {
	At string
}

type Code string
`

const widgetSrc = `package model

import "time"

type Widget struct {
	*Base
	stamp
	Code
	Id   int ` + "`db:\";key\"`" + `
	Name string
}

type Event struct {
	time.Time
	Id int ` + "`db:\";key\"`" + `
}

type Loop struct {
	*Loop
	Id int ` + "`db:\";key\"`" + `
}
`

func TestGenEmbedded(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "base.go", baseSrc)
	p := writeModel(t, dir, "widget.go", widgetSrc)

	var logs bytes.Buffer
	log.SetOutput(&logs)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	written, err := Gen(context.Background(), &Config{Models: filepath.Join(dir, "*.go")})
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "widget_schema.go")}, written)

	b, err := os.ReadFile(written[0])
	require.NoError(t, err)
	src := string(b)

	assert.Contains(t, src, "sqlrepo.MustRegister(Widget{}, sqlrepo.Schema{")
	assert.Regexp(t, `(?s)"CreatedBy".*"Id".*"Name"`, src)
	assert.NotContains(t, src, `Name: "Code"`)
	assert.NotContains(t, src, "audit")
	assert.NotContains(t, src, `"At"`)
	assert.NotContains(t, src, "Event")
	assert.NotContains(t, src, "Loop")

	assert.Contains(t, logs.String(), "skip Event")
	assert.Contains(t, logs.String(), "embedded time.Time is not a struct of this package")
	assert.Contains(t, logs.String(), "embedding cycle through Loop")

	f, err := parseFile(token.NewFileSet(), p)
	require.NoError(t, err)
	f.resolve(f.decls)
	assert.Empty(t, lo.Filter(f.Models, func(m *model, _ int) bool { return m.Name == "Widget" }),
		"Base is declared in another file")
}

func TestWriteFileFormatError(t *testing.T) {
	dir := t.TempDir()
	tpl := template.Must(template.New("broken").Parse(`{{define "schema"}}package {{.Package}}

var = 1
{{end}}`))

	var logs bytes.Buffer
	log.SetOutput(&logs)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	cfg := &Config{}
	cfg.defaults()
	_, err := writeFile(tpl, cfg, &file{Path: filepath.Join(dir, "x.go"), Package: "model"})
	assert.ErrorContains(t, err, "gen: format")
	assert.Contains(t, logs.String(), "[GEN] unformatted")
	assert.Contains(t, logs.String(), "var = 1")
	assert.NoFileExists(t, filepath.Join(dir, "x_schema.go"))
}

func TestGenOutputDirectory(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "account.go", customerSrc)
	out := filepath.Join(dir, "registry")

	written, err := Gen(context.Background(), &Config{Models: filepath.Join(dir, "*.go"), Output: out, Suffix: ".gen.go"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(out, "account.gen.go")}, written)
}

func TestGenErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Gen(context.Background(), &Config{Models: filepath.Join(dir, "*.go")})
	assert.ErrorContains(t, err, "no model file")

	writeModel(t, dir, "broken.go", "package model\n\ntype X struct {")
	_, err = Gen(context.Background(), &Config{Models: filepath.Join(dir, "*.go")})
	assert.ErrorContains(t, err, "gen: parse")

	dup := t.TempDir()
	writeModel(t, dup, "a.go", "package model\n\ntype A struct{ ID int `db:\";pk\"` }\n")
	writeModel(t, dup, "b.go", "package model\n\ntype A struct{ ID int `db:\";pk\"` }\n")
	_, err = Gen(context.Background(), &Config{Models: filepath.Join(dup, "*.go")})
	assert.ErrorContains(t, err, "model A declared at")
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultModels, cfg.Models)
	assert.Equal(t, DefaultSuffix, cfg.Suffix)
	assert.Positive(t, cfg.Workers)

	p := filepath.Join(dir, "sqlrepo.yaml")
	require.NoError(t, os.WriteFile(p, []byte("models: ./model/*.go\nschema: sales\nworkers: 2\ntables:\n  Customer: Clients\n"), 0o644))

	cfg, err = LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "./model/*.go", cfg.Models)
	assert.Equal(t, "sales", cfg.Schema)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, map[string]string{"Customer": "Clients"}, cfg.Tables)

	require.NoError(t, os.WriteFile(p, []byte("models: [unclosed"), 0o644))
	_, err = LoadConfig(p)
	assert.ErrorContains(t, err, "gen: parse config")
}
