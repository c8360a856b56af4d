package check

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/twoslash/pkg/diff"
	"github.com/walteh/twoslash/pkg/render"
	"github.com/walteh/twoslash/pkg/session"
)

var ErrMismatch = errors.Base("results differ from golden files")

type Handler struct {
	flags  session.Flags
	update bool

	fs  afero.Fs
	env func(string) (string, bool)
}

func NewCheckCommand() *cobra.Command {
	me := &Handler{fs: afero.NewOsFs(), env: os.LookupEnv}

	cmd := &cobra.Command{
		Use:   "check [files, directories or globs]",
		Short: "compare results against the <file>.twoslash.json golden next to each source",
		Args:  cobra.MinimumNArgs(1),
	}

	me.flags.Register(cmd)
	cmd.Flags().BoolVarP(&me.update, "update", "u", false, "rewrite the golden files instead of comparing")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return me.Run(cmd.Context(), cmd.OutOrStdout(), args)
	}

	return cmd
}

// GoldenPath is the golden file of a source.
func GoldenPath(source string) string {
	return source + session.ResultSuffix + render.FormatJSON.Extension()
}

var (
	pass = color.New(color.FgGreen).SprintFunc()
	fail = color.New(color.FgRed).SprintFunc()
	info = color.New(color.Faint).SprintFunc()
)

func (me *Handler) Run(ctx context.Context, out io.Writer, args []string) (err error) {
	s, err := session.Open(ctx, me.fs, ".", me.flags, session.DefaultRegistry(), me.env)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = errors.Errorf("closing backend: %w", cerr)
		}
	}()

	docs, err := s.Documents(ctx, me.fs, args, nil)
	if err != nil {
		return err
	}

	outcomes, runErr := s.Runner.Run(ctx, docs)

	mismatches := 0
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			fmt.Fprintf(out, "%s %s: %v\n", fail("✗"), outcome.Name, outcome.Err)
			continue
		}

		golden := GoldenPath(outcome.Name)

		if me.update {
			var buf bytes.Buffer
			if err := render.Encode(&buf, render.FormatJSON, outcome.Result); err != nil {
				return err
			}
			if err := afero.WriteFile(me.fs, golden, buf.Bytes(), 0o644); err != nil {
				return errors.Errorf("writing %s: %w", golden, err)
			}
			fmt.Fprintf(out, "%s %s %s\n", pass("✓"), outcome.Name, info("(updated)"))
			continue
		}

		want, err := afero.ReadFile(me.fs, golden)
		if err != nil {
			if os.IsNotExist(err) {
				mismatches++
				fmt.Fprintf(out, "%s %s: missing %s\n", fail("✗"), outcome.Name, golden)
				continue
			}
			return errors.Errorf("reading %s: %w", golden, err)
		}

		d, err := diff.Golden(want, outcome.Result)
		if err != nil {
			return errors.Errorf("%s: %w", golden, err)
		}
		if d != "" {
			mismatches++
			fmt.Fprintf(out, "%s %s%s\n", fail("✗"), outcome.Name, d)
			continue
		}
		fmt.Fprintf(out, "%s %s\n", pass("✓"), outcome.Name)
	}

	if runErr != nil {
		return runErr
	}
	if mismatches > 0 {
		return errors.Errorf("%w: %d of %d", ErrMismatch, mismatches, len(outcomes))
	}
	return nil
}
