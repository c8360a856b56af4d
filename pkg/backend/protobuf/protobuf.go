// Package protobuf is a backend for protocol buffer sources built on protocompile.
package protobuf

import (
	"context"
	"fmt"
	"strings"

	"github.com/bufbuild/protocompile"
	"github.com/bufbuild/protocompile/linker"
	"github.com/bufbuild/protocompile/reporter"
	"github.com/rs/zerolog"
	"github.com/walteh/twoslash/pkg/backend"
	"gitlab.com/tozd/go/errors"
)

const (
	Name = "protobuf"

	defaultFileName = "snippet.proto"
)

var _ backend.Backend = (*Backend)(nil)

type Backend struct {
	settings backend.Settings
}

// New is the backend.Factory of the protobuf backend. Manifest entries are made
// importable next to the snippet.
func New(ctx context.Context, s backend.Settings) (backend.Backend, error) {
	if s.FileName == "" {
		s.FileName = defaultFileName
	}
	if s.Extension == "" {
		s.Extension = ".proto"
	}
	return &Backend{settings: s}, nil
}

func (me *Backend) Name() string      { return Name }
func (me *Backend) Extension() string { return me.settings.Extension }

func (me *Backend) Compile(ctx context.Context, text string) (backend.Snapshot, error) {
	sources := make(map[string]string, len(me.settings.Manifest)+1)
	for name, content := range me.settings.Manifest {
		sources[name] = content
	}
	sources[me.settings.FileName] = text

	var problems []problem
	rep := reporter.NewReporter(
		func(err reporter.ErrorWithPos) error {
			problems = append(problems, newProblem(err, backend.SeverityError))
			return nil
		},
		func(err reporter.ErrorWithPos) {
			problems = append(problems, newProblem(err, backend.SeverityWarning))
		},
	)

	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			Accessor: protocompile.SourceAccessorFromMap(sources),
		}),
		SourceInfoMode: protocompile.SourceInfoStandard,
		Reporter:       rep,
		RetainASTs:     true,
	}

	files, err := compiler.Compile(ctx, me.settings.FileName)
	if err != nil && len(problems) == 0 {
		return nil, &backend.CompileError{Backend: Name, Detail: "compiling " + me.settings.FileName, Err: err}
	}

	snap := &snapshot{text: text, problems: localize(problems, me.settings.FileName, text)}

	if err == nil && len(files) > 0 {
		res, ok := files[0].(linker.Result)
		if !ok {
			return nil, &backend.CompileError{Backend: Name, Detail: "compiled file carries no syntax tree", Err: errors.New("unexpected result type")}
		}
		snap.index = buildIndex(res)
	}

	zerolog.Ctx(ctx).Debug().
		Int("problems", len(problems)).
		Bool("linked", snap.index != nil).
		Msg("compiled proto snippet")

	return snap, nil
}

type problem struct {
	file     string
	line     int
	col      int
	offset   int
	length   int
	message  string
	severity backend.Severity
}

func newProblem(err reporter.ErrorWithPos, severity backend.Severity) problem {
	msg := err.Error()
	if cause := err.Unwrap(); cause != nil {
		msg = cause.Error()
	}
	pos := err.GetPosition()
	return problem{
		file:     pos.Filename,
		line:     pos.Line,
		col:      pos.Col,
		offset:   pos.Offset,
		message:  msg,
		severity: severity,
	}
}

// localize moves problems found in imported files onto the import of that file in text.
// Problems of files the snippet does not import directly are dropped.
func localize(problems []problem, fileName, text string) []problem {
	out := make([]problem, 0, len(problems))
	for _, p := range problems {
		if p.file == "" || p.file == fileName {
			out = append(out, p)
			continue
		}
		at := importOffset(text, p.file)
		if at < 0 {
			continue
		}
		p.message = fmt.Sprintf("%s:%d:%d: %s", p.file, p.line, p.col, p.message)
		p.offset = at
		p.length = len(p.file)
		out = append(out, p)
	}
	return out
}

// importOffset finds the quoted file name in text and returns the offset of the name
// inside the quotes.
func importOffset(text, file string) int {
	for _, quoted := range []string{`"` + file + `"`, `'` + file + `'`} {
		if at := strings.Index(text, quoted); at >= 0 {
			return at + 1
		}
	}
	return -1
}
