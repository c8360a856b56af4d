// Package gotypes is a Go backend built on go/types. Snippets are type-checked on
// their own with the source importer, or, when a workspace directory is configured,
// loaded as a package of a scaffolded module through golang.org/x/tools/go/packages.
package gotypes

import (
	"context"
	"go/ast"
	"go/importer"
	"go/scanner"
	"go/token"
	"go/types"
	"sync"

	"github.com/spf13/afero"
	"github.com/walteh/twoslash/pkg/backend"
	"github.com/walteh/twoslash/pkg/project"
	"gitlab.com/tozd/go/errors"
)

const (
	Name = "go"

	defaultFileName = "snippet.go"
	syntheticClause = "package snippet; "
)

var _ backend.Backend = (*Backend)(nil)

type Backend struct {
	settings backend.Settings

	fset *token.FileSet

	// the source importer caches checked packages and is not safe for concurrent use
	mu       sync.Mutex
	importer types.Importer

	project *project.Project
}

// New is the backend.Factory of the Go backend.
func New(ctx context.Context, s backend.Settings) (backend.Backend, error) {
	if s.FileName == "" {
		s.FileName = defaultFileName
	}
	if s.Extension == "" {
		s.Extension = ".go"
	}

	me := &Backend{settings: s, fset: token.NewFileSet()}
	me.importer = importer.ForCompiler(me.fset, "source", nil)

	if s.WorkDir != "" {
		manifest := s.Manifest
		if len(manifest) == 0 {
			manifest = map[string]string{"go.mod": "module snippet\n\ngo 1.23\n"}
		}
		p, err := project.Scaffold(ctx, afero.NewOsFs(), s.WorkDir, manifest)
		if err != nil {
			return nil, errors.Errorf("scaffolding go workspace: %w", err)
		}
		me.project = p
	}

	return me, nil
}

func (me *Backend) Name() string      { return Name }
func (me *Backend) Extension() string { return me.settings.Extension }

// Compile parses and type-checks text. Syntax and type errors become diagnostics; only
// a snippet that cannot be parsed into a file at all fails.
func (me *Backend) Compile(ctx context.Context, text string) (backend.Snapshot, error) {
	src, prefix := ensurePackageClause(text)

	var (
		u   *unit
		err error
	)
	if me.project != nil {
		u, err = me.load(ctx, src)
	} else {
		u, err = me.check(ctx, src)
	}
	if err != nil {
		return nil, err
	}

	u.text = text
	u.prefix = prefix
	return newSnapshot(u), nil
}

// unit is everything a snapshot needs from one checked file.
type unit struct {
	fset  *token.FileSet
	file  *ast.File
	pkg   *types.Package
	info  *types.Info
	diags []rawDiagnostic

	// text is the snippet as given, src the parsed text with any synthetic package
	// clause, prefix the length of that clause.
	text   string
	prefix int

	cleanup func() error
}

type rawDiagnostic struct {
	pos      token.Pos
	offset   int
	message  string
	id       string
	severity backend.Severity
}

func newInfo() *types.Info {
	return &types.Info{
		Types:      make(map[ast.Expr]types.TypeAndValue),
		Defs:       make(map[*ast.Ident]types.Object),
		Uses:       make(map[*ast.Ident]types.Object),
		Implicits:  make(map[ast.Node]types.Object),
		Selections: make(map[*ast.SelectorExpr]*types.Selection),
		Scopes:     make(map[ast.Node]*types.Scope),
	}
}

// ensurePackageClause adds a package clause on the first line of snippets that lack
// one, so that line numbers are unchanged.
func ensurePackageClause(text string) (string, int) {
	var s scanner.Scanner
	fset := token.NewFileSet()
	file := fset.AddFile("", -1, len(text))
	s.Init(file, []byte(text), nil, 0)

	for {
		_, tok, _ := s.Scan()
		switch tok {
		case token.COMMENT:
			continue
		case token.PACKAGE:
			return text, 0
		default:
			return syntheticClause + text, len(syntheticClause)
		}
	}
}
