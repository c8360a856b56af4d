package gotypes

import (
	"context"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"go/types"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/twoslash/pkg/backend"
	"github.com/walteh/twoslash/pkg/position"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/tools/go/packages"
)

const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedImports |
	packages.NeedDeps |
	packages.NeedTypes |
	packages.NeedSyntax |
	packages.NeedTypesInfo |
	packages.NeedModule

func parseFile(fset *token.FileSet, name, src string) (*ast.File, []rawDiagnostic, error) {
	file, err := parser.ParseFile(fset, name, src, parser.ParseComments|parser.AllErrors)
	if file == nil || file.Name == nil || file.Name.Name == "" {
		if err == nil {
			err = errors.New("no package clause")
		}
		return nil, nil, err
	}

	var diags []rawDiagnostic
	var list scanner.ErrorList
	if errors.As(err, &list) {
		for _, e := range list {
			diags = append(diags, rawDiagnostic{
				offset:   e.Pos.Offset,
				message:  e.Msg,
				id:       "syntax",
				severity: backend.SeverityError,
			})
		}
	}
	return file, diags, nil
}

func typeDiagnostic(e types.Error) rawDiagnostic {
	severity := backend.SeverityError
	if e.Soft {
		severity = backend.SeverityWarning
	}
	id := "type_error"
	switch {
	case strings.Contains(e.Msg, "declared and not used"):
		id = "unused_variable"
	case strings.Contains(e.Msg, "imported and not used"):
		id = "unused_import"
	}
	return rawDiagnostic{pos: e.Pos, offset: -1, message: e.Msg, id: id, severity: severity}
}

// check type-checks src on its own, resolving imports from GOROOT sources.
func (me *Backend) check(ctx context.Context, src string) (*unit, error) {
	file, diags, err := parseFile(me.fset, me.settings.FileName, src)
	if err != nil {
		return nil, &backend.CompileError{Backend: Name, Detail: "parsing snippet", Err: err}
	}

	info := newInfo()
	conf := &types.Config{
		Importer: me.importer,
		Error: func(err error) {
			var te types.Error
			if errors.As(err, &te) {
				diags = append(diags, typeDiagnostic(te))
			}
		},
	}

	me.mu.Lock()
	pkg, _ := conf.Check(file.Name.Name, me.fset, []*ast.File{file}, info)
	me.mu.Unlock()

	zerolog.Ctx(ctx).Debug().Str("package", pkg.Path()).Int("diagnostics", len(diags)).Msg("type-checked snippet")

	return &unit{fset: me.fset, file: file, pkg: pkg, info: info, diags: diags}, nil
}

// load writes src into a fresh unit of the workspace and loads it as a package of the
// workspace module, so that module dependencies resolve.
func (me *Backend) load(ctx context.Context, src string) (*unit, error) {
	u, err := me.project.NewUnit(ctx, me.settings.FileName, src)
	if err != nil {
		return nil, &backend.CompileError{Backend: Name, Detail: "writing unit", Err: err}
	}

	fset := token.NewFileSet()
	cfg := &packages.Config{
		Context: ctx,
		Mode:    loadMode,
		Dir:     u.Dir,
		Fset:    fset,
		Tests:   false,
		ParseFile: func(fset *token.FileSet, filename string, content []byte) (*ast.File, error) {
			return parser.ParseFile(fset, filename, content, parser.ParseComments|parser.AllErrors)
		},
	}

	pkgs, err := packages.Load(cfg, ".")
	if err != nil {
		_ = u.Remove()
		return nil, &backend.CompileError{Backend: Name, Detail: "loading package", Err: err}
	}

	for _, pkg := range pkgs {
		for i, f := range pkg.CompiledGoFiles {
			if filepath.Base(f) != me.settings.FileName || i >= len(pkg.Syntax) {
				continue
			}
			out := &unit{
				fset:    pkg.Fset,
				file:    pkg.Syntax[i],
				pkg:     pkg.Types,
				info:    pkg.TypesInfo,
				cleanup: u.Remove,
			}
			out.diags = packageDiagnostics(pkg, src, me.settings.FileName)

			zerolog.Ctx(ctx).Debug().Str("package", pkg.PkgPath).Int("diagnostics", len(out.diags)).Msg("loaded snippet package")

			return out, nil
		}
	}

	_ = u.Remove()
	return nil, &backend.CompileError{Backend: Name, Detail: "loading package", Err: errors.Errorf("no syntax for %s in %d packages", me.settings.FileName, len(pkgs))}
}

// packageDiagnostics keeps the problems located in the snippet file. Problems without
// a position are reported at the start of the snippet.
func packageDiagnostics(pkg *packages.Package, src, fileName string) []rawDiagnostic {
	var diags []rawDiagnostic
	for _, te := range pkg.TypeErrors {
		if te.Fset != nil && te.Pos.IsValid() && filepath.Base(te.Fset.Position(te.Pos).Filename) != fileName {
			continue
		}
		diags = append(diags, typeDiagnostic(te))
	}

	idx := position.NewLineIndex(src)
	for _, e := range pkg.Errors {
		if e.Kind == packages.TypeError {
			continue
		}
		offset := 0
		if file, line, col, ok := splitPos(e.Pos); ok {
			if filepath.Base(file) != fileName {
				continue
			}
			if off, err := idx.Offset(position.Place{Line: line - 1, Character: col - 1}); err == nil {
				offset = off
			}
		}
		id := "syntax"
		if e.Kind != packages.ParseError {
			id = "load_error"
		}
		diags = append(diags, rawDiagnostic{offset: offset, message: e.Msg, id: id, severity: backend.SeverityError})
	}
	return diags
}

// splitPos reads a "file:line:col" position.
func splitPos(pos string) (string, int, int, bool) {
	parts := strings.Split(pos, ":")
	if len(parts) < 3 {
		return "", 0, 0, false
	}
	line, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil {
		return "", 0, 0, false
	}
	col, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return "", 0, 0, false
	}
	return strings.Join(parts[:len(parts)-2], ":"), line, col, true
}
