package process

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/term"

	"github.com/walteh/twoslash/pkg/batch"
	"github.com/walteh/twoslash/pkg/render"
	"github.com/walteh/twoslash/pkg/session"
	"github.com/walteh/twoslash/pkg/targz"
)

type Handler struct {
	flags   session.Flags
	format  string
	outDir  string
	archive string
	hovers  bool

	fs  afero.Fs
	env func(string) (string, bool)
}

func NewProcessCommand() *cobra.Command {
	me := &Handler{fs: afero.NewOsFs(), env: os.LookupEnv}

	cmd := &cobra.Command{
		Use:   "process [files, directories or globs]",
		Short: "annotate sources and print or write the results",
		Long:  "Reads annotated sources (stdin when no arguments are given), compiles each once and emits the twoslash result.",
	}

	me.flags.Register(cmd)
	cmd.Flags().StringVarP(&me.format, "format", "f", "", "output format: json, yaml, msgpack or text (text on a terminal)")
	cmd.Flags().StringVarP(&me.outDir, "out-dir", "o", "", "write one result file per source into this directory")
	cmd.Flags().StringVarP(&me.archive, "archive", "a", "", "write every result into this .tar.gz")
	cmd.Flags().BoolVar(&me.hovers, "hovers", false, "list static hovers in text output")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return me.Run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), args)
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context, stdin io.Reader, stdout io.Writer, args []string) (err error) {
	s, err := session.Open(ctx, me.fs, ".", me.flags, session.DefaultRegistry(), me.env)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = errors.Errorf("closing backend: %w", cerr)
		}
	}()

	format, err := me.resolveFormat(s.Config.Format, stdout)
	if err != nil {
		return err
	}

	docs, err := s.Documents(ctx, me.fs, args, stdin)
	if err != nil {
		return err
	}

	outcomes, runErr := s.Runner.Run(ctx, docs)

	if me.archive != "" {
		if err := me.writeArchive(outcomes, format); err != nil {
			return err
		}
		return runErr
	}

	root := CommonDir(outcomeNames(outcomes))
	for _, outcome := range outcomes {
		if outcome.Result == nil {
			continue
		}
		if me.outDir != "" {
			if err := me.writeFile(outcome, root, format); err != nil {
				return err
			}
			continue
		}
		if err := me.print(stdout, outcome, format, len(outcomes) > 1); err != nil {
			return err
		}
	}

	return runErr
}

func (me *Handler) resolveFormat(configured string, stdout io.Writer) (render.Format, error) {
	if me.format != "" {
		return render.ParseFormat(me.format)
	}
	if f, ok := stdout.(*os.File); ok && me.outDir == "" && me.archive == "" && term.IsTerminal(int(f.Fd())) {
		return render.FormatText, nil
	}
	return render.ParseFormat(configured)
}

// OutputPath is where a result for source is written inside dir. Sources keep their
// path relative to root so equal file names in different directories stay apart.
func OutputPath(dir, root, source string, format render.Format) string {
	name := "stdin"
	if source != "-" {
		name = filepath.Base(source)
		if rel, err := filepath.Rel(root, filepath.Clean(source)); root != "" && err == nil && !escapes(rel) {
			name = rel
		}
	}
	return filepath.Join(dir, name+session.ResultSuffix+format.Extension())
}

// CommonDir is the deepest directory holding every source.
func CommonDir(sources []string) string {
	root := ""
	for _, s := range sources {
		if s == "-" {
			continue
		}
		dir := filepath.Dir(filepath.Clean(s))
		if root == "" {
			root = dir
			continue
		}
		for {
			if rel, err := filepath.Rel(root, dir); err == nil && !escapes(rel) {
				break
			}
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}
	return root
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func outcomeNames(outcomes []batch.Outcome) []string {
	names := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		names = append(names, o.Name)
	}
	return names
}

func (me *Handler) writeFile(outcome batch.Outcome, root string, format render.Format) error {
	var buf bytes.Buffer
	if err := me.encode(&buf, outcome, format, false); err != nil {
		return err
	}

	path := OutputPath(me.outDir, root, outcome.Name, format)
	if err := me.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := afero.WriteFile(me.fs, path, buf.Bytes(), 0o644); err != nil {
		return errors.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (me *Handler) writeArchive(outcomes []batch.Outcome, format render.Format) error {
	root := CommonDir(outcomeNames(outcomes))
	entries := make([]targz.Entry, 0, len(outcomes))
	for _, outcome := range outcomes {
		if outcome.Result == nil {
			continue
		}
		var buf bytes.Buffer
		if err := me.encode(&buf, outcome, format, false); err != nil {
			return err
		}
		entries = append(entries, targz.Entry{Name: OutputPath("", root, outcome.Name, format), Data: buf.Bytes()})
	}

	f, err := me.fs.Create(me.archive)
	if err != nil {
		return errors.Errorf("creating %s: %w", me.archive, err)
	}
	if err := targz.Write(f, entries); err != nil {
		f.Close()
		return errors.Errorf("writing %s: %w", me.archive, err)
	}
	if err := f.Close(); err != nil {
		return errors.Errorf("closing %s: %w", me.archive, err)
	}
	return nil
}

func (me *Handler) print(w io.Writer, outcome batch.Outcome, format render.Format, header bool) error {
	if header && format == render.FormatText {
		fmt.Fprintf(w, "%s\n", color.New(color.Bold).Sprintf("==> %s <==", outcome.Name))
	}
	return me.encode(w, outcome, format, isTerminal(w))
}

func (me *Handler) encode(w io.Writer, outcome batch.Outcome, format render.Format, colorize bool) error {
	if format != render.FormatText {
		return render.Encode(w, format, outcome.Result)
	}
	return render.Text(w, outcome.Result, render.TextOptions{
		Color:    colorize && !color.NoColor,
		TabWidth: render.TabWidthFor(outcome.Name),
		Hovers:   me.hovers,
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
