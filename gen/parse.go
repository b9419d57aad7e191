package gen

import (
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"log"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/maxshaw/sqlrepo"
)

type model struct {
	Name   string
	Table  string
	Fields []sqlrepo.Field

	members  []member
	tagged   bool
	modeler  bool
	position token.Position
}

// Valid reports whether the struct opted into persistence, either through
// a `db` tag or a TableName method.
func (m *model) Valid() bool {
	return m.tagged || m.modeler
}

// member is one field declaration of a struct. embed names the type of an
// embedded field; local is set when that type is a plain identifier of the
// model's own package.
type member struct {
	field sqlrepo.Field
	embed string
	local bool
}

type file struct {
	Path    string
	Package string
	Models  []*model

	decls *scope
}

// scope holds the type declarations of one package directory.
type scope struct {
	structs map[string]*model
	others  map[string]bool
}

func newScope() *scope {
	return &scope{structs: make(map[string]*model), others: make(map[string]bool)}
}

func (sc *scope) merge(o *scope) {
	for k, v := range o.structs {
		sc.structs[k] = v
	}
	for k := range o.others {
		sc.others[k] = true
	}
}

// parseFile collects the struct declarations of one source file. Models
// carry their raw members until resolve expands embedded structs.
func parseFile(fset *token.FileSet, path string) (*file, error) {
	f, err := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
	if err != nil {
		return nil, errors.Wrap(err, "gen: parse")
	}

	out := &file{Path: path, Package: f.Name.Name, decls: newScope()}
	modelers := make(map[string]bool)

	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				st, ok := ts.Type.(*ast.StructType)
				if !ok || ts.TypeParams != nil {
					out.decls.others[ts.Name.Name] = true
					continue
				}

				m := parseStruct(ts.Name.Name, st)
				m.position = fset.Position(ts.Pos())
				out.decls.structs[m.Name] = m
				if ts.Name.IsExported() {
					out.Models = append(out.Models, m)
				}
			}

		case *ast.FuncDecl:
			if d.Name.Name == "TableName" && firstFieldName(d.Type.Results) == "string" {
				modelers[receiverName(d.Recv)] = true
			}
		}
	}

	for _, m := range out.Models {
		m.modeler = modelers[m.Name]
	}
	return out, nil
}

// resolve fills the fields of every model from sc, promoting the members of
// embedded structs in place, and keeps the valid models. A model embedding a
// type not declared in sc is dropped with a warning: registering it would
// hide the promoted members from statements.
func (f *file) resolve(sc *scope) {
	f.Models = lo.Filter(f.Models, func(m *model, _ int) bool {
		fields, tagged, err := sc.expand(m, nil)
		if err != nil {
			if m.Valid() {
				log.Printf("[GEN] skip %s (%s): %v", m.Name, m.position, err)
			}
			return false
		}
		m.Fields = fields
		m.tagged = m.tagged || tagged
		return m.Valid()
	})
}

func (sc *scope) expand(m *model, path []string) ([]sqlrepo.Field, bool, error) {
	if lo.Contains(path, m.Name) {
		return nil, false, errors.Errorf("embedding cycle through %s", m.Name)
	}
	path = append(path, m.Name)

	var fields []sqlrepo.Field
	tagged := m.tagged
	for _, mem := range m.members {
		switch {
		case mem.embed == "":
			fields = append(fields, mem.field)
		case mem.local && sc.structs[mem.embed] != nil:
			sub, t, err := sc.expand(sc.structs[mem.embed], path)
			if err != nil {
				return nil, false, err
			}
			fields = append(fields, sub...)
			tagged = tagged || t
		case mem.local && sc.others[mem.embed]:
			// embedded non-struct types are not members
		default:
			return nil, false, errors.Errorf("embedded %s is not a struct of this package", mem.embed)
		}
	}
	return fields, tagged, nil
}

func parseStruct(name string, st *ast.StructType) *model {
	m := &model{Name: name}

	for _, sf := range st.Fields.List {
		var tag string
		if sf.Tag != nil {
			var ok bool
			tag, ok = reflect.StructTag(strings.Trim(sf.Tag.Value, "`")).Lookup("db")
			m.tagged = m.tagged || ok
		}

		if len(sf.Names) == 0 {
			typ := sf.Type
			if star, ok := typ.(*ast.StarExpr); ok {
				typ = star.X
			}
			mem := member{embed: types.ExprString(typ)}
			if id, ok := typ.(*ast.Ident); ok {
				if !id.IsExported() {
					continue
				}
				mem.local = true
			}
			m.members = append(m.members, mem)
			continue
		}

		for _, ident := range sf.Names {
			if !ident.IsExported() {
				continue
			}
			m.members = append(m.members, member{field: sqlrepo.ParseTag(ident.Name, tag)})
		}
	}
	return m
}

func firstFieldName(l *ast.FieldList) string {
	if l.NumFields() > 0 {
		if id, ok := l.List[0].Type.(*ast.Ident); ok {
			return id.Name
		}
	}
	return ""
}

// receiverName returns the type name of a method receiver, with or without
// pointer.
func receiverName(l *ast.FieldList) string {
	if l.NumFields() == 0 {
		return ""
	}
	typ := l.List[0].Type
	if star, ok := typ.(*ast.StarExpr); ok {
		typ = star.X
	}
	if id, ok := typ.(*ast.Ident); ok {
		return id.Name
	}
	return ""
}
