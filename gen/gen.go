// Package gen writes sqlrepo schema registrations for model structs, so the
// metadata of a model is fixed at build time instead of read from struct
// tags at run time.
//
// For every model file matched by Config.Models it writes a sibling file
// whose init function calls sqlrepo.MustRegister once per model. A struct is
// a model when one of its fields carries a `db` tag or it has a TableName
// method.
//
// Members promoted from embedded structs declared in the same package are
// listed in place. A model embedding any other type is left unregistered,
// with a warning, and keeps its struct tag derived schema.
package gen

import (
	"bytes"
	"context"
	"embed"
	"go/token"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"

	"github.com/maxshaw/sqlrepo"
)

//go:embed template/*
var tplDir embed.FS

var funcs = template.FuncMap{
	"quote": strconv.Quote,
	"field": fieldLiteral,
}

// fieldLiteral renders the keyed elements of a sqlrepo.Field literal.
func fieldLiteral(f sqlrepo.Field) string {
	parts := []string{"Name: " + strconv.Quote(f.Name), "Column: " + strconv.Quote(f.Column)}
	if f.Key {
		parts = append(parts, "Key: true")
	}
	if f.Identity {
		parts = append(parts, "Identity: true")
	}
	if f.Excluded {
		parts = append(parts, "Excluded: true")
	}
	return strings.Join(parts, ", ")
}

// Gen parses every model file and writes the registration files. It returns
// the paths written.
func Gen(ctx context.Context, cfg *Config) ([]string, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()

	t, err := template.New("gen").Funcs(funcs).ParseFS(tplDir, "template/*.tmpl")
	if err != nil {
		return nil, errors.Wrap(err, "gen: templates")
	}

	paths, err := filepath.Glob(cfg.Models)
	if err != nil {
		return nil, errors.Wrapf(err, "gen: models glob %q", cfg.Models)
	}
	paths = lo.Filter(paths, func(p string, _ int) bool {
		return !strings.HasSuffix(p, "_test.go") && !strings.HasSuffix(p, cfg.Suffix)
	})
	if len(paths) == 0 {
		return nil, errors.Errorf("gen: no model file matches %q", cfg.Models)
	}

	fset := token.NewFileSet()
	parsed := make([]*file, 0, len(paths))
	scopes := make(map[string]*scope)
	seen := make(map[string]*model)
	for _, p := range paths {
		f, err := parseFile(fset, p)
		if err != nil {
			return nil, err
		}
		dir := filepath.Dir(p)
		for _, m := range f.Models {
			key := dir + "." + m.Name
			if prev, ok := seen[key]; ok {
				return nil, errors.Errorf("gen: model %s declared at %s and %s", m.Name, prev.position, m.position)
			}
			seen[key] = m
			m.Table = cfg.Tables[m.Name]
		}
		if scopes[dir] == nil {
			scopes[dir] = newScope()
		}
		scopes[dir].merge(f.decls)
		parsed = append(parsed, f)
	}

	files := make([]*file, 0, len(parsed))
	for _, f := range parsed {
		f.resolve(scopes[filepath.Dir(f.Path)])
		if len(f.Models) > 0 {
			files = append(files, f)
		}
	}

	if cfg.Output != "" {
		if err := os.MkdirAll(cfg.Output, 0o755); err != nil {
			return nil, errors.Wrap(err, "gen: output directory")
		}
	}

	written := make([]string, len(files))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.Workers)
	for i, f := range files {
		i, f := i, f
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			out, err := writeFile(t, cfg, f)
			if err != nil {
				return err
			}
			written[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return written, nil
}

func writeFile(t *template.Template, cfg *Config, f *file) (string, error) {
	dir := filepath.Dir(f.Path)
	if cfg.Output != "" {
		dir = cfg.Output
	}
	out := filepath.Join(dir, strings.TrimSuffix(filepath.Base(f.Path), ".go")+cfg.Suffix)

	var buf bytes.Buffer
	err := t.ExecuteTemplate(&buf, "schema", map[string]any{
		"Source":  filepath.Base(f.Path),
		"Package": f.Package,
		"Schema":  cfg.Schema,
		"Models":  f.Models,
	})
	if err != nil {
		return "", errors.Wrapf(err, "gen: execute template for %s", f.Path)
	}

	src, err := imports.Process(out, buf.Bytes(), &imports.Options{Comments: true, TabIndent: true, TabWidth: 8, FormatOnly: true})
	if err != nil {
		log.Printf("[GEN] unformatted %s:\n%s", out, buf.Bytes())
		return "", errors.Wrapf(err, "gen: format %s", out)
	}

	if err := os.WriteFile(out, src, 0o644); err != nil {
		return "", errors.Wrap(err, "gen: write")
	}

	log.Printf("[GEN] %s", out)
	return out, nil
}
